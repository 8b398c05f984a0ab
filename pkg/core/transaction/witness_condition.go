package transaction

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/neoref/neoref/pkg/crypto/keys"
	"github.com/neoref/neoref/pkg/io"
	"github.com/neoref/neoref/pkg/util"
)

// ConditionType encodes a witness condition type.
type ConditionType byte

// Condition types.
const (
	WitnessBoolean         ConditionType = 0x00
	WitnessNot             ConditionType = 0x01
	WitnessAnd             ConditionType = 0x02
	WitnessOr              ConditionType = 0x03
	WitnessScriptHash      ConditionType = 0x18
	WitnessGroup           ConditionType = 0x19
	WitnessCalledByEntry   ConditionType = 0x20
	WitnessCalledByContract ConditionType = 0x28
	WitnessCalledByGroup   ConditionType = 0x29
)

const (
	// MaxConditionNesting limits the depth of condition nesting.
	MaxConditionNesting = 2
	// maxConditionSubitems is the maximum number of subconditions of And/Or.
	maxConditionSubitems = 16
)

// WitnessCondition is a condition of the witness rule.
type WitnessCondition interface {
	// Type returns the condition type.
	Type() ConditionType
	// Match checks whether the condition matches the current context.
	Match(MatchContext) (bool, error)

	EncodeBinary(*io.BinWriter)
	DecodeBinarySpecific(*io.BinReader, int)

	MarshalJSON() ([]byte, error)
}

// MatchContext is the interface conditions get their context data from.
type MatchContext interface {
	GetCallingScriptHash() util.Uint160
	GetCurrentScriptHash() util.Uint160
	CallingScriptHasGroup(*keys.PublicKey) (bool, error)
	CurrentScriptHasGroup(*keys.PublicKey) (bool, error)
	IsCalledByEntry() bool
}

type (
	// ConditionBoolean is a boolean constant condition.
	ConditionBoolean bool
	// ConditionNot inverses the meaning of the contained condition.
	ConditionNot struct {
		Condition WitnessCondition
	}
	// ConditionAnd is true iff all contained conditions are true.
	ConditionAnd []WitnessCondition
	// ConditionOr is true iff any one of the contained conditions is true.
	ConditionOr []WitnessCondition
	// ConditionScriptHash matches the executing contract hash.
	ConditionScriptHash util.Uint160
	// ConditionGroup matches the executing contract group.
	ConditionGroup keys.PublicKey
	// ConditionCalledByEntry matches when the execution is rooted in the
	// entry script.
	ConditionCalledByEntry struct{}
	// ConditionCalledByContract matches the calling contract hash.
	ConditionCalledByContract util.Uint160
	// ConditionCalledByGroup matches the calling contract group.
	ConditionCalledByGroup keys.PublicKey
)

// Type implements the WitnessCondition interface.
func (c *ConditionBoolean) Type() ConditionType { return WitnessBoolean }

// Match implements the WitnessCondition interface.
func (c *ConditionBoolean) Match(_ MatchContext) (bool, error) { return bool(*c), nil }

// EncodeBinary implements the WitnessCondition interface.
func (c *ConditionBoolean) EncodeBinary(w *io.BinWriter) {
	w.WriteB(byte(WitnessBoolean))
	w.WriteBool(bool(*c))
}

// DecodeBinarySpecific implements the WitnessCondition interface.
func (c *ConditionBoolean) DecodeBinarySpecific(r *io.BinReader, _ int) {
	*c = ConditionBoolean(r.ReadBool())
}

// MarshalJSON implements the json.Marshaler interface.
func (c *ConditionBoolean) MarshalJSON() ([]byte, error) {
	return json.Marshal(conditionAux{
		Type:       WitnessBoolean.String(),
		Expression: json.RawMessage(fmt.Sprintf("%t", *c)),
	})
}

// Type implements the WitnessCondition interface.
func (c *ConditionNot) Type() ConditionType { return WitnessNot }

// Match implements the WitnessCondition interface.
func (c *ConditionNot) Match(ctx MatchContext) (bool, error) {
	res, err := c.Condition.Match(ctx)
	return ((err == nil) && !res), err
}

// EncodeBinary implements the WitnessCondition interface.
func (c *ConditionNot) EncodeBinary(w *io.BinWriter) {
	w.WriteB(byte(WitnessNot))
	c.Condition.EncodeBinary(w)
}

// DecodeBinarySpecific implements the WitnessCondition interface.
func (c *ConditionNot) DecodeBinarySpecific(r *io.BinReader, maxDepth int) {
	c.Condition = decodeBinaryCondition(r, maxDepth-1)
}

// MarshalJSON implements the json.Marshaler interface.
func (c *ConditionNot) MarshalJSON() ([]byte, error) {
	cond, err := c.Condition.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(conditionAux{
		Type:       WitnessNot.String(),
		Expression: cond,
	})
}

// Type implements the WitnessCondition interface.
func (c *ConditionAnd) Type() ConditionType { return WitnessAnd }

// Match implements the WitnessCondition interface.
func (c *ConditionAnd) Match(ctx MatchContext) (bool, error) {
	for _, cond := range *c {
		res, err := cond.Match(ctx)
		if err != nil {
			return false, err
		}
		if !res {
			return false, nil
		}
	}
	return true, nil
}

// EncodeBinary implements the WitnessCondition interface.
func (c *ConditionAnd) EncodeBinary(w *io.BinWriter) {
	w.WriteB(byte(WitnessAnd))
	w.WriteVarUint(uint64(len(*c)))
	for _, cond := range *c {
		cond.EncodeBinary(w)
	}
}

func readArrayOfConditions(r *io.BinReader, maxDepth int) []WitnessCondition {
	l := r.ReadVarUint()
	if l == 0 {
		r.Err = errors.New("empty condition sequence")
		return nil
	}
	if l > maxConditionSubitems {
		r.Err = errors.New("too many conditions")
		return nil
	}
	res := make([]WitnessCondition, l)
	for i := 0; i < int(l); i++ {
		res[i] = decodeBinaryCondition(r, maxDepth-1)
	}
	if r.Err != nil {
		return nil
	}
	return res
}

// DecodeBinarySpecific implements the WitnessCondition interface.
func (c *ConditionAnd) DecodeBinarySpecific(r *io.BinReader, maxDepth int) {
	a := readArrayOfConditions(r, maxDepth)
	if r.Err == nil {
		*c = a
	}
}

func arrayToJSON(c ConditionType, a []WitnessCondition) ([]byte, error) {
	exprs := make([]json.RawMessage, len(a))
	for i, cond := range a {
		b, err := cond.MarshalJSON()
		if err != nil {
			return nil, err
		}
		exprs[i] = json.RawMessage(b)
	}
	data, err := json.Marshal(exprs)
	if err != nil {
		return nil, err
	}
	return json.Marshal(conditionAux{
		Type:       c.String(),
		Expression: data,
	})
}

// MarshalJSON implements the json.Marshaler interface.
func (c *ConditionAnd) MarshalJSON() ([]byte, error) {
	return arrayToJSON(WitnessAnd, *c)
}

// Type implements the WitnessCondition interface.
func (c *ConditionOr) Type() ConditionType { return WitnessOr }

// Match implements the WitnessCondition interface.
func (c *ConditionOr) Match(ctx MatchContext) (bool, error) {
	for _, cond := range *c {
		res, err := cond.Match(ctx)
		if err != nil {
			return false, err
		}
		if res {
			return true, nil
		}
	}
	return false, nil
}

// EncodeBinary implements the WitnessCondition interface.
func (c *ConditionOr) EncodeBinary(w *io.BinWriter) {
	w.WriteB(byte(WitnessOr))
	w.WriteVarUint(uint64(len(*c)))
	for _, cond := range *c {
		cond.EncodeBinary(w)
	}
}

// DecodeBinarySpecific implements the WitnessCondition interface.
func (c *ConditionOr) DecodeBinarySpecific(r *io.BinReader, maxDepth int) {
	a := readArrayOfConditions(r, maxDepth)
	if r.Err == nil {
		*c = a
	}
}

// MarshalJSON implements the json.Marshaler interface.
func (c *ConditionOr) MarshalJSON() ([]byte, error) {
	return arrayToJSON(WitnessOr, *c)
}

// Type implements the WitnessCondition interface.
func (c *ConditionScriptHash) Type() ConditionType { return WitnessScriptHash }

// Match implements the WitnessCondition interface.
func (c *ConditionScriptHash) Match(ctx MatchContext) (bool, error) {
	return util.Uint160(*c).Equals(ctx.GetCurrentScriptHash()), nil
}

// EncodeBinary implements the WitnessCondition interface.
func (c *ConditionScriptHash) EncodeBinary(w *io.BinWriter) {
	w.WriteB(byte(WitnessScriptHash))
	w.WriteBytes(c[:])
}

// DecodeBinarySpecific implements the WitnessCondition interface.
func (c *ConditionScriptHash) DecodeBinarySpecific(r *io.BinReader, _ int) {
	r.ReadBytes(c[:])
}

// MarshalJSON implements the json.Marshaler interface.
func (c *ConditionScriptHash) MarshalJSON() ([]byte, error) {
	h := util.Uint160(*c)
	return json.Marshal(conditionAux{
		Type:       WitnessScriptHash.String(),
		Hash:       &h,
	})
}

// Type implements the WitnessCondition interface.
func (c *ConditionGroup) Type() ConditionType { return WitnessGroup }

// Match implements the WitnessCondition interface.
func (c *ConditionGroup) Match(ctx MatchContext) (bool, error) {
	return ctx.CurrentScriptHasGroup((*keys.PublicKey)(c))
}

// EncodeBinary implements the WitnessCondition interface.
func (c *ConditionGroup) EncodeBinary(w *io.BinWriter) {
	w.WriteB(byte(WitnessGroup))
	(*keys.PublicKey)(c).EncodeBinary(w)
}

// DecodeBinarySpecific implements the WitnessCondition interface.
func (c *ConditionGroup) DecodeBinarySpecific(r *io.BinReader, _ int) {
	(*keys.PublicKey)(c).DecodeBinary(r)
}

// MarshalJSON implements the json.Marshaler interface.
func (c *ConditionGroup) MarshalJSON() ([]byte, error) {
	g := (*keys.PublicKey)(c)
	return json.Marshal(conditionAux{
		Type:  WitnessGroup.String(),
		Group: g,
	})
}

// Type implements the WitnessCondition interface.
func (c ConditionCalledByEntry) Type() ConditionType { return WitnessCalledByEntry }

// Match implements the WitnessCondition interface.
func (c ConditionCalledByEntry) Match(ctx MatchContext) (bool, error) {
	return ctx.IsCalledByEntry(), nil
}

// EncodeBinary implements the WitnessCondition interface.
func (c ConditionCalledByEntry) EncodeBinary(w *io.BinWriter) {
	w.WriteB(byte(WitnessCalledByEntry))
}

// DecodeBinarySpecific implements the WitnessCondition interface.
func (c ConditionCalledByEntry) DecodeBinarySpecific(_ *io.BinReader, _ int) {
}

// MarshalJSON implements the json.Marshaler interface.
func (c ConditionCalledByEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(conditionAux{
		Type: WitnessCalledByEntry.String(),
	})
}

// Type implements the WitnessCondition interface.
func (c *ConditionCalledByContract) Type() ConditionType { return WitnessCalledByContract }

// Match implements the WitnessCondition interface.
func (c *ConditionCalledByContract) Match(ctx MatchContext) (bool, error) {
	return util.Uint160(*c).Equals(ctx.GetCallingScriptHash()), nil
}

// EncodeBinary implements the WitnessCondition interface.
func (c *ConditionCalledByContract) EncodeBinary(w *io.BinWriter) {
	w.WriteB(byte(WitnessCalledByContract))
	w.WriteBytes(c[:])
}

// DecodeBinarySpecific implements the WitnessCondition interface.
func (c *ConditionCalledByContract) DecodeBinarySpecific(r *io.BinReader, _ int) {
	r.ReadBytes(c[:])
}

// MarshalJSON implements the json.Marshaler interface.
func (c *ConditionCalledByContract) MarshalJSON() ([]byte, error) {
	h := util.Uint160(*c)
	return json.Marshal(conditionAux{
		Type: WitnessCalledByContract.String(),
		Hash: &h,
	})
}

// Type implements the WitnessCondition interface.
func (c *ConditionCalledByGroup) Type() ConditionType { return WitnessCalledByGroup }

// Match implements the WitnessCondition interface.
func (c *ConditionCalledByGroup) Match(ctx MatchContext) (bool, error) {
	return ctx.CallingScriptHasGroup((*keys.PublicKey)(c))
}

// EncodeBinary implements the WitnessCondition interface.
func (c *ConditionCalledByGroup) EncodeBinary(w *io.BinWriter) {
	w.WriteB(byte(WitnessCalledByGroup))
	(*keys.PublicKey)(c).EncodeBinary(w)
}

// DecodeBinarySpecific implements the WitnessCondition interface.
func (c *ConditionCalledByGroup) DecodeBinarySpecific(r *io.BinReader, _ int) {
	(*keys.PublicKey)(c).DecodeBinary(r)
}

// MarshalJSON implements the json.Marshaler interface.
func (c *ConditionCalledByGroup) MarshalJSON() ([]byte, error) {
	g := (*keys.PublicKey)(c)
	return json.Marshal(conditionAux{
		Type:  WitnessCalledByGroup.String(),
		Group: g,
	})
}

// String implements the fmt.Stringer interface.
func (t ConditionType) String() string {
	switch t {
	case WitnessBoolean:
		return "Boolean"
	case WitnessNot:
		return "Not"
	case WitnessAnd:
		return "And"
	case WitnessOr:
		return "Or"
	case WitnessScriptHash:
		return "ScriptHash"
	case WitnessGroup:
		return "Group"
	case WitnessCalledByEntry:
		return "CalledByEntry"
	case WitnessCalledByContract:
		return "CalledByContract"
	case WitnessCalledByGroup:
		return "CalledByGroup"
	default:
		return "Unknown"
	}
}

type conditionAux struct {
	Type       string          `json:"type"`
	Expression json.RawMessage `json:"expression,omitempty"`
	Hash       *util.Uint160   `json:"hash,omitempty"`
	Group      *keys.PublicKey `json:"group,omitempty"`
}

// DecodeBinaryCondition decodes and returns the condition from the given
// binary stream.
func DecodeBinaryCondition(r *io.BinReader) WitnessCondition {
	return decodeBinaryCondition(r, MaxConditionNesting)
}

func decodeBinaryCondition(r *io.BinReader, maxDepth int) WitnessCondition {
	if maxDepth < 0 {
		r.Err = errors.New("too deep conditions nesting")
		return nil
	}
	t := ConditionType(r.ReadB())
	if r.Err != nil {
		return nil
	}
	var res WitnessCondition
	switch t {
	case WitnessBoolean:
		res = new(ConditionBoolean)
	case WitnessNot:
		res = new(ConditionNot)
	case WitnessAnd:
		res = new(ConditionAnd)
	case WitnessOr:
		res = new(ConditionOr)
	case WitnessScriptHash:
		res = new(ConditionScriptHash)
	case WitnessGroup:
		res = new(ConditionGroup)
	case WitnessCalledByEntry:
		res = ConditionCalledByEntry{}
	case WitnessCalledByContract:
		res = new(ConditionCalledByContract)
	case WitnessCalledByGroup:
		res = new(ConditionCalledByGroup)
	default:
		r.Err = fmt.Errorf("invalid condition type: %d", t)
		return nil
	}
	res.DecodeBinarySpecific(r, maxDepth)
	if r.Err != nil {
		return nil
	}
	return res
}

func unmarshalConditionJSON(data []byte, maxDepth int) (WitnessCondition, error) {
	if maxDepth < 0 {
		return nil, errors.New("too deep conditions nesting")
	}
	aux := new(conditionAux)
	if err := json.Unmarshal(data, aux); err != nil {
		return nil, err
	}
	switch aux.Type {
	case WitnessBoolean.String():
		var b bool
		if err := json.Unmarshal(aux.Expression, &b); err != nil {
			return nil, err
		}
		return (*ConditionBoolean)(&b), nil
	case WitnessNot.String():
		cond, err := unmarshalConditionJSON(aux.Expression, maxDepth-1)
		if err != nil {
			return nil, err
		}
		return &ConditionNot{Condition: cond}, nil
	case WitnessAnd.String(), WitnessOr.String():
		var exprs []json.RawMessage
		if err := json.Unmarshal(aux.Expression, &exprs); err != nil {
			return nil, err
		}
		if len(exprs) == 0 || len(exprs) > maxConditionSubitems {
			return nil, errors.New("invalid condition sequence")
		}
		conds := make([]WitnessCondition, len(exprs))
		for i := range exprs {
			var err error
			conds[i], err = unmarshalConditionJSON(exprs[i], maxDepth-1)
			if err != nil {
				return nil, err
			}
		}
		if aux.Type == WitnessAnd.String() {
			return (*ConditionAnd)(&conds), nil
		}
		return (*ConditionOr)(&conds), nil
	case WitnessScriptHash.String():
		if aux.Hash == nil {
			return nil, errors.New("no hash specified")
		}
		return (*ConditionScriptHash)(aux.Hash), nil
	case WitnessGroup.String():
		if aux.Group == nil {
			return nil, errors.New("no group specified")
		}
		return (*ConditionGroup)(aux.Group), nil
	case WitnessCalledByEntry.String():
		return ConditionCalledByEntry{}, nil
	case WitnessCalledByContract.String():
		if aux.Hash == nil {
			return nil, errors.New("no hash specified")
		}
		return (*ConditionCalledByContract)(aux.Hash), nil
	case WitnessCalledByGroup.String():
		if aux.Group == nil {
			return nil, errors.New("no group specified")
		}
		return (*ConditionCalledByGroup)(aux.Group), nil
	default:
		return nil, fmt.Errorf("invalid condition type: %s", aux.Type)
	}
}
