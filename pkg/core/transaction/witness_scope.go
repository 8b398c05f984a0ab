package transaction

import (
	"encoding/json"
	"fmt"
	"strings"
)

// WitnessScope represents a set of witness flags for a Transaction signer.
type WitnessScope byte

const (
	// None is only valid for a sender, it can't be used during
	// execution.
	None WitnessScope = 0
	// CalledByEntry means that this condition must hold:
	// EntryScriptHash == CallingScriptHash. The witness given on the
	// first invocation automatically expires on deeper internal
	// invokes. A safe default for NEO/GAS transfers.
	CalledByEntry WitnessScope = 0x01
	// CustomContracts defines contract hashes the witness is valid for.
	CustomContracts WitnessScope = 0x10
	// CustomGroups defines group keys the witness is valid for.
	CustomGroups WitnessScope = 0x20
	// Rules is a set of conditions with boolean operators.
	Rules WitnessScope = 0x40
	// Global allows the witness in all contexts. This cannot be combined
	// with other flags.
	Global WitnessScope = 0x80
)

var scopeNames = []struct {
	s WitnessScope
	n string
}{
	{CalledByEntry, "CalledByEntry"},
	{CustomContracts, "CustomContracts"},
	{CustomGroups, "CustomGroups"},
	{Rules, "WitnessRules"},
	{Global, "Global"},
}

// String implements the fmt.Stringer interface.
func (s WitnessScope) String() string {
	if s == None {
		return "None"
	}
	var res []string
	for _, sn := range scopeNames {
		if s&sn.s != 0 {
			res = append(res, sn.n)
		}
	}
	return strings.Join(res, ", ")
}

// ScopesFromString converts a string of comma-separated scopes to a set
// of scopes (case-sensitive).
func ScopesFromString(s string) (WitnessScope, error) {
	var result WitnessScope
	if strings.TrimSpace(s) == "None" {
		return None, nil
	}
	var isGlobal bool
loop:
	for _, scopeStr := range strings.Split(s, ",") {
		scopeStr = strings.TrimSpace(scopeStr)
		for _, sn := range scopeNames {
			if scopeStr == sn.n {
				result |= sn.s
				if sn.s == Global {
					isGlobal = true
				}
				continue loop
			}
		}
		return result, fmt.Errorf("invalid witness scope: %v", scopeStr)
	}
	if isGlobal && result != Global {
		return result, fmt.Errorf("Global scope can not be combined with other scopes")
	}
	return result, nil
}

// MarshalJSON implements the json.Marshaler interface.
func (s WitnessScope) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (s *WitnessScope) UnmarshalJSON(data []byte) error {
	var js string
	if err := json.Unmarshal(data, &js); err != nil {
		return err
	}
	scopes, err := ScopesFromString(js)
	if err != nil {
		return err
	}
	*s = scopes
	return nil
}
