package stackitem

import (
	"errors"
	"fmt"

	"github.com/neoref/neoref/pkg/encoding/bigint"
	"github.com/neoref/neoref/pkg/io"
)

// ErrRecursive is returned upon an attempt to serialize some recursive
// item (like an array including itself).
var ErrRecursive = errors.New("recursive item")

// ErrUnserializable is returned upon an attempt to serialize some
// item that can't be serialized (like Interop item or Pointer).
var ErrUnserializable = errors.New("unserializable")

// serContext is an internal serialization context.
type serContext struct {
	*io.BinWriter
	buf          *io.BufBinWriter
	allowInvalid bool
	seen         map[Item]bool
}

// Serialize encodes the given Item into a byte slice.
func Serialize(item Item) ([]byte, error) {
	w := io.NewBufBinWriter()
	sc := serContext{
		BinWriter:    &w.BinWriter,
		buf:          w,
		allowInvalid: false,
		seen:         make(map[Item]bool),
	}
	sc.serialize(item)
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Bytes(), nil
}

// EncodeBinary encodes the given Item into the given BinWriter. It's
// similar to io.Serializable's EncodeBinary but works with the Item
// interface.
func EncodeBinary(item Item, w *io.BinWriter) {
	sc := serContext{
		BinWriter:    w,
		allowInvalid: false,
		seen:         make(map[Item]bool),
	}
	sc.serialize(item)
}

// EncodeBinaryProtected encodes the given Item into the given BinWriter.
// It's similar to EncodeBinary but allows encoding interop items (type
// only, value is lost) and doesn't propagate errors into w; when an error
// (like a recursive array) is encountered it just writes the special
// InvalidT type tag into w.
func EncodeBinaryProtected(item Item, w *io.BinWriter) {
	bw := io.NewBufBinWriter()
	sc := serContext{
		BinWriter:    &bw.BinWriter,
		buf:          bw,
		allowInvalid: true,
		seen:         make(map[Item]bool),
	}
	sc.serialize(item)
	if bw.Err != nil {
		w.WriteB(byte(InvalidT))
		return
	}
	w.WriteBytes(bw.Bytes())
}

func (w *serContext) serialize(item Item) {
	if w.Err != nil {
		return
	}
	if w.seen[item] {
		w.Err = ErrRecursive
		return
	}

	switch t := item.(type) {
	case *ByteArray:
		w.WriteB(byte(ByteArrayT))
		w.WriteVarBytes(*t)
	case *Buffer:
		w.WriteB(byte(BufferT))
		w.WriteVarBytes(*t)
	case Bool:
		w.WriteB(byte(BooleanT))
		w.WriteBool(bool(t))
	case *BigInteger:
		w.WriteB(byte(IntegerT))
		w.WriteVarBytes(bigint.ToBytes(t.Big()))
	case *Interop, *Pointer:
		if w.allowInvalid {
			w.WriteB(byte(InteropT))
		} else {
			w.Err = fmt.Errorf("%w: %s", ErrUnserializable, t.String())
		}
	case *Array, *Struct:
		w.seen[item] = true

		if _, isArray := t.(*Array); isArray {
			w.WriteB(byte(ArrayT))
		} else {
			w.WriteB(byte(StructT))
		}

		arr := t.Value().([]Item)
		w.WriteVarUint(uint64(len(arr)))
		for i := range arr {
			w.serialize(arr[i])
		}
		delete(w.seen, item)
	case *Map:
		w.seen[item] = true

		elems := t.value
		w.WriteB(byte(MapT))
		w.WriteVarUint(uint64(len(elems)))
		for i := range elems {
			w.serialize(elems[i].Key)
			w.serialize(elems[i].Value)
		}
		delete(w.seen, item)
	case Null:
		w.WriteB(byte(AnyT))
	case nil:
		if w.allowInvalid {
			w.WriteB(byte(InvalidT))
		} else {
			w.Err = fmt.Errorf("%w: nil", ErrUnserializable)
		}
	}

	if w.Err == nil && w.buf != nil && w.buf.Len() > MaxSize {
		w.Err = errTooBigSize
	}
}

// Deserialize decodes an Item from the given byte slice.
func Deserialize(data []byte) (Item, error) {
	r := io.NewBinReaderFromBuf(data)
	item := DecodeBinary(r)
	if r.Err != nil {
		return nil, r.Err
	}
	return item, nil
}

// DecodeBinary decodes a previously serialized Item from the given reader.
// It's similar to io.Serializable's DecodeBinary() but implemented as a
// function because Item itself is an interface. Caveat: always check the
// reader's error value before using the returned Item.
func DecodeBinary(r *io.BinReader) Item {
	items := MaxDeserialized
	return decodeBinary(r, false, &items)
}

// DecodeBinaryProtected is similar to DecodeBinary but allows Interop and
// Invalid values to be present (making it symmetric to
// EncodeBinaryProtected).
func DecodeBinaryProtected(r *io.BinReader) Item {
	items := MaxDeserialized
	return decodeBinary(r, true, &items)
}

func decodeBinary(r *io.BinReader, allowInvalid bool, limit *int) Item {
	*limit--
	if *limit < 0 {
		r.Err = errTooBigElements
		return nil
	}
	var t = Type(r.ReadB())
	if r.Err != nil {
		return nil
	}

	switch t {
	case ByteArrayT, BufferT:
		data := r.ReadVarBytes(MaxSize)
		if t == ByteArrayT {
			return NewByteArray(data)
		}
		return NewBuffer(data)
	case BooleanT:
		return NewBool(r.ReadBool())
	case IntegerT:
		data := r.ReadVarBytes(bigint.MaxBytesLen)
		if r.Err != nil {
			return nil
		}
		return NewBigInteger(bigint.FromBytes(data))
	case ArrayT, StructT:
		size := int(r.ReadVarUint())
		if size > MaxDeserialized {
			r.Err = errTooBigElements
			return nil
		}
		arr := make([]Item, size)
		for i := 0; i < size; i++ {
			arr[i] = decodeBinary(r, allowInvalid, limit)
			if r.Err != nil {
				return nil
			}
		}

		if t == ArrayT {
			return NewArray(arr)
		}
		return NewStruct(arr)
	case MapT:
		size := int(r.ReadVarUint())
		if size > MaxDeserialized {
			r.Err = errTooBigElements
			return nil
		}
		m := NewMap()
		for i := 0; i < size; i++ {
			key := decodeBinary(r, allowInvalid, limit)
			value := decodeBinary(r, allowInvalid, limit)
			if r.Err != nil {
				return nil
			}
			if err := IsValidMapKey(key); err != nil {
				r.Err = err
				return nil
			}
			m.Add(key, value)
		}
		return m
	case AnyT:
		return Null{}
	case InteropT:
		if allowInvalid {
			return NewInterop(nil)
		}
		fallthrough
	default:
		if t == InvalidT && allowInvalid {
			return nil
		}
		r.Err = fmt.Errorf("%w: %v", ErrInvalidType, t)
		return nil
	}
}
