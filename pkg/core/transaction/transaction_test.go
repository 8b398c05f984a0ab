package transaction

import (
	"encoding/json"
	"testing"

	"github.com/neoref/neoref/pkg/io"
	"github.com/neoref/neoref/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTx() *Transaction {
	tx := New([]byte{0x40}, 100)
	tx.Nonce = 42
	tx.NetworkFee = 10
	tx.ValidUntilBlock = 1000
	tx.Signers = []Signer{{
		Account: util.Uint160{1, 2, 3},
		Scopes:  CalledByEntry,
	}}
	tx.Scripts = []Witness{{
		InvocationScript:   []byte{1},
		VerificationScript: []byte{2},
	}}
	return tx
}

func TestTransactionSerDes(t *testing.T) {
	tx := newTestTx()
	data, err := tx.Bytes()
	require.NoError(t, err)

	decoded, err := NewTransactionFromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, tx.Hash(), decoded.Hash())
	assert.Equal(t, tx.Nonce, decoded.Nonce)
	assert.Equal(t, tx.SystemFee, decoded.SystemFee)
	assert.Equal(t, tx.Signers[0].Account, decoded.Signers[0].Account)
}

func TestTransactionSizeCap(t *testing.T) {
	data := make([]byte, MaxTransactionSize+1)
	_, err := NewTransactionFromBytes(data)
	require.Error(t, err)
	require.Contains(t, err.Error(), "too big")
}

func TestDuplicateSigners(t *testing.T) {
	tx := newTestTx()
	tx.Signers = append(tx.Signers, tx.Signers[0])
	tx.Scripts = append(tx.Scripts, tx.Scripts[0])
	data, err := tx.Bytes()
	require.NoError(t, err)
	_, err = NewTransactionFromBytes(data)
	require.Error(t, err)
}

func TestGlobalScopeIsExclusive(t *testing.T) {
	s := Signer{
		Account: util.Uint160{1},
		Scopes:  Global | CalledByEntry,
	}
	w := io.NewBufBinWriter()
	s.EncodeBinary(&w.BinWriter)
	require.NoError(t, w.Err)

	var dec Signer
	r := io.NewBinReaderFromBuf(w.Bytes())
	dec.DecodeBinary(r)
	require.Error(t, r.Err)
}

func TestSignerWithRules(t *testing.T) {
	b := true
	s := Signer{
		Account: util.Uint160{1},
		Scopes:  Rules,
		Rules: []WitnessRule{{
			Action:    WitnessAllow,
			Condition: (*ConditionBoolean)(&b),
		}},
	}
	w := io.NewBufBinWriter()
	s.EncodeBinary(&w.BinWriter)
	require.NoError(t, w.Err)

	var dec Signer
	r := io.NewBinReaderFromBuf(w.Bytes())
	dec.DecodeBinary(r)
	require.NoError(t, r.Err)
	require.Equal(t, 1, len(dec.Rules))
	assert.Equal(t, WitnessAllow, dec.Rules[0].Action)
	assert.Equal(t, WitnessBoolean, dec.Rules[0].Condition.Type())
}

func TestWitnessConditionNesting(t *testing.T) {
	var b bool
	inner := make([]WitnessCondition, 0, 2)
	inner = append(inner, (*ConditionBoolean)(&b), ConditionCalledByEntry{})
	and := ConditionAnd(inner)
	not := &ConditionNot{Condition: &and}

	w := io.NewBufBinWriter()
	not.EncodeBinary(&w.BinWriter)
	require.NoError(t, w.Err)

	r := io.NewBinReaderFromBuf(w.Bytes())
	dec := DecodeBinaryCondition(r)
	require.NoError(t, r.Err)
	require.Equal(t, WitnessNot, dec.Type())

	// Depth limit: Not(Not(Not(bool))) exceeds depth 2.
	deep := &ConditionNot{Condition: &ConditionNot{Condition: &ConditionNot{Condition: (*ConditionBoolean)(&b)}}}
	w = io.NewBufBinWriter()
	deep.EncodeBinary(&w.BinWriter)
	require.NoError(t, w.Err)
	r = io.NewBinReaderFromBuf(w.Bytes())
	_ = DecodeBinaryCondition(r)
	require.Error(t, r.Err)
}

func TestTransactionJSONRoundtrip(t *testing.T) {
	tx := newTestTx()
	data, err := json.Marshal(tx)
	require.NoError(t, err)
	decoded := new(Transaction)
	require.NoError(t, json.Unmarshal(data, decoded))
	assert.Equal(t, tx.Hash(), decoded.Hash())
}

func TestAttributesSerDes(t *testing.T) {
	tx := newTestTx()
	tx.Attributes = []Attribute{
		{Type: HighPriority},
		{Type: NotValidBeforeT, Value: &NotValidBefore{Height: 123}},
		{Type: ConflictsT, Value: &Conflicts{Hash: util.Uint256{1, 2}}},
		{Type: NotaryAssistedT, Value: &NotaryAssisted{NKeys: 4}},
	}
	data, err := tx.Bytes()
	require.NoError(t, err)
	decoded, err := NewTransactionFromBytes(data)
	require.NoError(t, err)
	require.Equal(t, 4, len(decoded.Attributes))
	nvb := decoded.GetAttributes(NotValidBeforeT)
	require.Equal(t, 1, len(nvb))
	assert.Equal(t, uint32(123), nvb[0].Value.(*NotValidBefore).Height)
}
