package main

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/neoref/neoref/pkg/core/transaction"
	"github.com/neoref/neoref/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

func writeFixture(t *testing.T, dir, name string, v any) string {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newTestContext(args map[string]string) *cli.Context {
	set := flag.NewFlagSet("t8n", flag.ContinueOnError)
	for k, v := range args {
		set.String(k, v, "")
	}
	set.Bool("strict", false, "")
	set.Bool("verbose", false, "")
	return cli.NewContext(nil, set, nil)
}

func TestTransitionBasic(t *testing.T) {
	dir := t.TempDir()

	sender := util.Uint160{1, 2, 3}
	alloc := Alloc{
		"0x" + sender.StringLE(): {Gas: "1000000000"},
	}
	tx := transaction.New([]byte{0x13, 0x15, 0x9E, 0x40}, 1_0000_0000)
	tx.ValidUntilBlock = 10
	tx.Signers = []transaction.Signer{{Account: sender, Scopes: transaction.CalledByEntry}}
	env := Env{Index: 1, Timestamp: 1600000000000, Nonce: 7}

	args := map[string]string{
		"input.alloc":   writeFixture(t, dir, "alloc.json", alloc),
		"input.txs":     writeFixture(t, dir, "txs.json", []*transaction.Transaction{tx}),
		"input.env":     writeFixture(t, dir, "env.json", env),
		"output.result": filepath.Join(dir, "result.json"),
		"output.alloc":  filepath.Join(dir, "out-alloc.json"),
		"network":       "unknown",
		"config":        "",
		"db":            "",
	}
	require.NoError(t, run(newTestContext(args)))

	var receipts []Receipt
	data, err := os.ReadFile(args["output.result"])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &receipts))
	require.Equal(t, 1, len(receipts))
	assert.Equal(t, "HALT", receipts[0].VMState)
	require.Equal(t, 1, len(receipts[0].Stack))
	assert.Contains(t, string(receipts[0].Stack[0]), `"8"`)

	var post Alloc
	data, err = os.ReadFile(args["output.alloc"])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &post))
	// Fees were burned from the sender's GAS during OnPersist.
	acc := post["0x"+sender.StringLE()]
	assert.Equal(t, "900000000", acc.Gas)
}

func TestTransitionNoTransactions(t *testing.T) {
	dir := t.TempDir()

	alloc := Alloc{}
	env := Env{Index: 1}

	args := map[string]string{
		"input.alloc":   writeFixture(t, dir, "alloc.json", alloc),
		"input.env":     writeFixture(t, dir, "env.json", env),
		"output.result": filepath.Join(dir, "result.json"),
		"output.alloc":  filepath.Join(dir, "out-alloc.json"),
		"network":       "unknown",
		"config":        "",
		"db":            "",
		"input.txs":     "",
	}
	// No transactions at all: the transition still runs end-to-end and
	// produces empty receipts.
	require.NoError(t, run(newTestContext(args)))

	var receipts []Receipt
	data, err := os.ReadFile(args["output.result"])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &receipts))
	assert.Equal(t, 0, len(receipts))
}
