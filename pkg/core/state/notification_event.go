package state

import (
	"encoding/json"
	"errors"

	"github.com/neoref/neoref/pkg/smartcontract/trigger"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm"
	"github.com/neoref/neoref/pkg/vm/stackitem"
)

// NotificationEvent is a tuple of the emitter contract hash, the event
// name and the stack items attached.
type NotificationEvent struct {
	ScriptHash util.Uint160     `json:"contract"`
	Name       string           `json:"eventname"`
	Item       *stackitem.Array `json:"state"`
}

// AppExecResult represents the result of the script execution, gathering
// the VM status, consumed gas, the result stack and emitted notifications.
type AppExecResult struct {
	Container util.Uint256 `json:"container"`
	Execution
}

// Execution represents the result of a single script execution.
type Execution struct {
	Trigger        trigger.Type        `json:"trigger"`
	VMState        vm.State            `json:"vmstate"`
	GasConsumed    int64               `json:"gasconsumed,string"`
	Stack          []stackitem.Item    `json:"stack"`
	Events         []NotificationEvent `json:"notifications"`
	FaultException string              `json:"exception,omitempty"`
}

// MarshalJSON implements the json.Marshaler interface.
func (ne NotificationEvent) MarshalJSON() ([]byte, error) {
	item, err := stackitem.ToJSONWithTypes(ne.Item)
	if err != nil {
		item = []byte(`"error: recursive reference"`)
	}
	return json.Marshal(notificationEventAux{
		ScriptHash: ne.ScriptHash,
		Name:       ne.Name,
		Item:       item,
	})
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (ne *NotificationEvent) UnmarshalJSON(data []byte) error {
	aux := new(notificationEventAux)
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	item, err := stackitem.FromJSONWithTypes(aux.Item)
	if err != nil {
		return err
	}
	arr, ok := item.(*stackitem.Array)
	if !ok {
		return errors.New("not an array")
	}
	ne.Item = arr
	ne.Name = aux.Name
	ne.ScriptHash = aux.ScriptHash
	return nil
}

type notificationEventAux struct {
	ScriptHash util.Uint160    `json:"contract"`
	Name       string          `json:"eventname"`
	Item       json.RawMessage `json:"state"`
}

// MarshalJSON implements the json.Marshaler interface for Execution
// projecting every stack item with its variant tag.
func (e Execution) MarshalJSON() ([]byte, error) {
	arr := make([]json.RawMessage, 0, len(e.Stack))
	for i := len(e.Stack) - 1; i >= 0; i-- {
		// Top-first order for reporting.
		data, err := stackitem.ToJSONWithTypes(e.Stack[i])
		if err != nil {
			data = []byte(`"error: unserializable"`)
		}
		arr = append(arr, data)
	}
	return json.Marshal(executionAux{
		Trigger:        e.Trigger.String(),
		VMState:        e.VMState,
		GasConsumed:    e.GasConsumed,
		Stack:          arr,
		Events:         e.Events,
		FaultException: e.FaultException,
	})
}

type executionAux struct {
	Trigger        string              `json:"trigger"`
	VMState        vm.State            `json:"vmstate"`
	GasConsumed    int64               `json:"gasconsumed,string"`
	Stack          []json.RawMessage   `json:"stack"`
	Events         []NotificationEvent `json:"notifications"`
	FaultException string              `json:"exception,omitempty"`
}
