package vm

import (
	"encoding/json"
	"math/big"

	"github.com/neoref/neoref/pkg/vm/stackitem"
	"github.com/neoref/neoref/pkg/vm/vmerror"
)

// Stack implements the evaluation stack for the virtual machine. The LIFO
// semantics is emulated from a simple slice where the top of the stack
// corresponds to the latest element: pushes are appends, pops are slice
// resizes.
type Stack struct {
	elems []stackitem.Item
	name  string
	refs  *refCounter
}

// NewStack returns a new stack with the given name.
func NewStack(n string) *Stack {
	return newStack(n, newRefCounter())
}

func newStack(n string, refc *refCounter) *Stack {
	s := new(Stack)
	s.elems = make([]stackitem.Item, 0, 16) // Most uses fit into 16 elements.
	s.name = n
	s.refs = refc
	return s
}

// Clear removes all elements from the stack.
func (s *Stack) Clear() {
	if s.elems != nil {
		for _, el := range s.elems {
			s.refs.Remove(el)
		}
		s.elems = s.elems[:0]
	}
}

// Len returns the number of elements on the stack.
func (s *Stack) Len() int {
	return len(s.elems)
}

// Push pushes the given element on the stack.
func (s *Stack) Push(e stackitem.Item) {
	s.elems = append(s.elems, e)
	s.refs.Add(e)
}

// PushVal pushes the given value on the stack after converting it to a
// stack item.
func (s *Stack) PushVal(v any) {
	s.Push(stackitem.Make(v))
}

// InsertAt inserts the given item at the given position (from the top)
// shifting everything above it up.
func (s *Stack) InsertAt(e stackitem.Item, n int) {
	l := len(s.elems)
	s.elems = append(s.elems, e)
	copy(s.elems[l-n+1:], s.elems[l-n:l])
	s.elems[l-n] = e
	s.refs.Add(e)
}

// Peek returns the element (n-th from the top) on the stack without
// removing it. Returns nil when the index is out of bounds.
func (s *Stack) Peek(n int) stackitem.Item {
	n = len(s.elems) - n - 1
	if n < 0 || n >= len(s.elems) {
		return nil
	}
	return s.elems[n]
}

// RemoveAt removes the element (n-th from the top) from the stack and
// returns it, nil when the index is out of bounds.
func (s *Stack) RemoveAt(n int) stackitem.Item {
	l := len(s.elems)
	n = l - n - 1
	if n < 0 || n >= l {
		return nil
	}
	e := s.elems[n]
	copy(s.elems[n:], s.elems[n+1:])
	s.elems = s.elems[:l-1]
	s.refs.Remove(e)
	return e
}

// Pop removes and returns the element on top of the stack. It panics with
// a stack underflow error if the stack is empty, which is caught by the
// step loop and converted to FAULT.
func (s *Stack) Pop() stackitem.Item {
	l := len(s.elems)
	if l == 0 {
		panic(vmerror.ErrStackUnderflow)
	}
	e := s.elems[l-1]
	s.elems = s.elems[:l-1]
	s.refs.Remove(e)
	return e
}

// Top returns the item on top of the stack, panicking on an empty stack.
func (s *Stack) Top() stackitem.Item {
	l := len(s.elems)
	if l == 0 {
		panic(vmerror.ErrStackUnderflow)
	}
	return s.elems[l-1]
}

// PopItem is an alias for Pop used by host-side callers.
func (s *Stack) PopItem() stackitem.Item {
	return s.Pop()
}

// PopBigInt pops an integer off the stack, faulting on conversion failure.
func (s *Stack) PopBigInt() *big.Int {
	val, err := s.Pop().TryInteger()
	if err != nil {
		panic(err)
	}
	return val
}

// PopBool pops a boolean off the stack.
func (s *Stack) PopBool() bool {
	b, err := s.Pop().TryBool()
	if err != nil {
		panic(err)
	}
	return b
}

// PopBytes pops a byte slice off the stack.
func (s *Stack) PopBytes() []byte {
	bs, err := s.Pop().TryBytes()
	if err != nil {
		panic(err)
	}
	return bs
}

// PopString pops an UTF-8 string off the stack, faulting when the item
// bytes are not valid UTF-8.
func (s *Stack) PopString() string {
	str, err := stackitem.ToString(s.Pop())
	if err != nil {
		panic(err)
	}
	return str
}

// Swap swaps two elements on the stack without popping and pushing them.
func (s *Stack) Swap(n1, n2 int) error {
	if n1 < 0 || n2 < 0 {
		return vmerror.ErrOutOfRange
	}
	if n1 >= len(s.elems) || n2 >= len(s.elems) {
		return vmerror.ErrStackUnderflow
	}
	l := len(s.elems)
	s.elems[l-n1-1], s.elems[l-n2-1] = s.elems[l-n2-1], s.elems[l-n1-1]
	return nil
}

// ReverseTop reverses the top n items of the stack.
func (s *Stack) ReverseTop(n int) error {
	l := len(s.elems)
	if n < 0 {
		return vmerror.ErrOutOfRange
	}
	if n > l {
		return vmerror.ErrStackUnderflow
	}
	if n <= 1 {
		return nil
	}
	for i, j := l-n, l-1; i <= j; i, j = i+1, j-1 {
		s.elems[i], s.elems[j] = s.elems[j], s.elems[i]
	}
	return nil
}

// Roll brings an item with the given index to the top of the stack moving
// all other elements towards the removed position.
func (s *Stack) Roll(n int) error {
	l := len(s.elems)
	if n < 0 {
		return vmerror.ErrOutOfRange
	}
	if n >= l {
		return vmerror.ErrStackUnderflow
	}
	if n == 0 {
		return nil
	}
	e := s.elems[l-1-n]
	copy(s.elems[l-1-n:], s.elems[l-n:])
	s.elems[l-1] = e
	return nil
}

// PopSigElements pops keys or signatures from the stack as needed for
// CHECKMULTISIG.
func (s *Stack) PopSigElements() ([][]byte, error) {
	var elems [][]byte
	item := s.Pop()
	switch t := item.(type) {
	case *stackitem.Array:
		num := t.Len()
		elems = make([][]byte, num)
		for k, v := range t.Value().([]stackitem.Item) {
			b, ok := v.Value().([]byte)
			if !ok {
				return nil, vmerror.ErrTypeMismatch
			}
			elems[k] = b
		}
	default:
		num, err := t.TryInteger()
		if err != nil || !num.IsInt64() {
			return nil, vmerror.ErrTypeMismatch
		}
		n := int(num.Int64())
		if n < 1 || n > s.Len() {
			return nil, vmerror.ErrOutOfRange
		}
		elems = make([][]byte, n)
		for i := 0; i < n; i++ {
			b, err := s.Pop().TryBytes()
			if err != nil {
				return nil, err
			}
			elems[i] = b
		}
	}
	return elems, nil
}

// ToArray converts the stack to an array of stackitems with the top item
// being the last.
func (s *Stack) ToArray() []stackitem.Item {
	items := make([]stackitem.Item, 0, len(s.elems))
	items = append(items, s.elems...)
	return items
}

// MarshalJSON implements the json.Marshaler interface.
func (s *Stack) MarshalJSON() ([]byte, error) {
	items := make([]json.RawMessage, 0, len(s.elems))
	for i := len(s.elems) - 1; i >= 0; i-- {
		data, err := stackitem.ToJSONWithTypes(s.elems[i])
		if err == nil {
			items = append(items, data)
		}
	}
	return json.Marshal(items)
}
