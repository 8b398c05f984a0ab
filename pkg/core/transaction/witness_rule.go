package transaction

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/neoref/neoref/pkg/io"
)

// WitnessAction represents an action to perform if the corresponding
// witness condition matches.
type WitnessAction byte

const (
	// WitnessDeny rejects the witness if the condition is satisfied.
	WitnessDeny WitnessAction = 0
	// WitnessAllow approves the witness if the condition is satisfied.
	WitnessAllow WitnessAction = 1
)

// WitnessRule represents a single rule for the Rules witness scope.
type WitnessRule struct {
	Action    WitnessAction    `json:"action"`
	Condition WitnessCondition `json:"condition"`
}

// EncodeBinary implements the Serializable interface.
func (w *WitnessRule) EncodeBinary(bw *io.BinWriter) {
	bw.WriteB(byte(w.Action))
	w.Condition.EncodeBinary(bw)
}

// DecodeBinary implements the Serializable interface.
func (w *WitnessRule) DecodeBinary(br *io.BinReader) {
	w.Action = WitnessAction(br.ReadB())
	if br.Err == nil && w.Action != WitnessDeny && w.Action != WitnessAllow {
		br.Err = errors.New("unknown witness rule action")
		return
	}
	w.Condition = DecodeBinaryCondition(br)
}

type witnessRuleAux struct {
	Action    string          `json:"action"`
	Condition json.RawMessage `json:"condition"`
}

// MarshalJSON implements the json.Marshaler interface.
func (w *WitnessRule) MarshalJSON() ([]byte, error) {
	cond, err := w.Condition.MarshalJSON()
	if err != nil {
		return nil, err
	}
	action := "Deny"
	if w.Action == WitnessAllow {
		action = "Allow"
	}
	return json.Marshal(&witnessRuleAux{
		Action:    action,
		Condition: cond,
	})
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (w *WitnessRule) UnmarshalJSON(data []byte) error {
	aux := &witnessRuleAux{}
	err := json.Unmarshal(data, aux)
	if err != nil {
		return err
	}
	var action WitnessAction
	switch aux.Action {
	case "Deny":
		action = WitnessDeny
	case "Allow":
		action = WitnessAllow
	default:
		return fmt.Errorf("unknown witness rule action: %s", aux.Action)
	}
	cond, err := unmarshalConditionJSON(aux.Condition, MaxConditionNesting)
	if err != nil {
		return err
	}
	w.Action = action
	w.Condition = cond
	return nil
}
