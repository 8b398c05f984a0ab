package manifest

import (
	"errors"

	json "github.com/nspcc-dev/go-ordered-json"
	"github.com/neoref/neoref/pkg/crypto/hash"
	"github.com/neoref/neoref/pkg/crypto/keys"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm/stackitem"
)

// Group represents a group of smartcontracts identified by a public key.
// Every SC in a group must provide a signature of its hash to prove it
// belongs to the group.
type Group struct {
	PublicKey *keys.PublicKey `json:"pubkey"`
	Signature []byte          `json:"signature"`
}

// Groups is just an array of Group.
type Groups []Group

type groupAux struct {
	PublicKey string `json:"pubkey"`
	Signature []byte `json:"signature"`
}

// IsValid checks whether the group's signature corresponds to the given
// hash.
func (g *Group) IsValid(h util.Uint160) error {
	if !g.PublicKey.Verify(g.Signature, hash.Sha256(h.BytesBE()).BytesBE()) {
		return errors.New("incorrect group signature")
	}
	return nil
}

// AreValid checks for groups correctness and uniqueness.
func (gs Groups) AreValid(h util.Uint160) error {
	for i := range gs {
		err := gs[i].IsValid(h)
		if err != nil {
			return err
		}
	}
	if len(gs) < 2 {
		return nil
	}
	for i := range gs {
		for j := i + 1; j < len(gs); j++ {
			if gs[i].PublicKey.Cmp(gs[j].PublicKey) == 0 {
				return errors.New("duplicate group keys")
			}
		}
	}
	return nil
}

// Contains checks whether the given key is present in the groups.
func (gs Groups) Contains(k *keys.PublicKey) bool {
	for i := range gs {
		if k.Cmp(gs[i].PublicKey) == 0 {
			return true
		}
	}
	return false
}

// MarshalJSON implements the json.Marshaler interface.
func (g *Group) MarshalJSON() ([]byte, error) {
	aux := &groupAux{
		PublicKey: g.PublicKey.StringCompressed(),
		Signature: g.Signature,
	}
	return json.Marshal(aux)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (g *Group) UnmarshalJSON(data []byte) error {
	aux := new(groupAux)
	err := json.Unmarshal(data, aux)
	if err != nil {
		return err
	}
	b, err := keys.NewPublicKeyFromString(aux.PublicKey)
	if err != nil {
		return err
	}
	g.PublicKey = b
	if len(aux.Signature) != keys.SignatureLen {
		return errors.New("wrong signature length")
	}
	g.Signature = aux.Signature
	return nil
}

// ToStackItem converts Group to stackitem.Item.
func (g *Group) ToStackItem() stackitem.Item {
	return stackitem.NewStruct([]stackitem.Item{
		stackitem.Make(g.PublicKey.Bytes()),
		stackitem.Make(g.Signature),
	})
}

// FromStackItem converts stackitem.Item to Group.
func (g *Group) FromStackItem(item stackitem.Item) error {
	if item.Type() != stackitem.StructT {
		return errors.New("invalid Group stackitem type")
	}
	group := item.Value().([]stackitem.Item)
	if len(group) != 2 {
		return errors.New("invalid Group stackitem length")
	}
	pKey, err := group[0].TryBytes()
	if err != nil {
		return err
	}
	g.PublicKey, err = keys.NewPublicKeyFromBytes(pKey)
	if err != nil {
		return err
	}
	sig, err := group[1].TryBytes()
	if err != nil {
		return err
	}
	if len(sig) != keys.SignatureLen {
		return errors.New("wrong signature length")
	}
	g.Signature = sig
	return nil
}
