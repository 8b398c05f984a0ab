package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/neoref/neoref/pkg/config"
	"github.com/neoref/neoref/pkg/config/netmode"
	"github.com/neoref/neoref/pkg/core"
	"github.com/neoref/neoref/pkg/core/block"
	"github.com/neoref/neoref/pkg/core/state"
	"github.com/neoref/neoref/pkg/core/storage"
	"github.com/neoref/neoref/pkg/core/transaction"
	"github.com/neoref/neoref/pkg/encoding/address"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm/stackitem"
	"github.com/urfave/cli"
)

// Alloc is a per-account pre/post state: token balances in their
// smallest units.
type Alloc map[string]Account

// Account is a single account allocation.
type Account struct {
	Neo string `json:"neo,omitempty"`
	Gas string `json:"gas,omitempty"`
}

// Env is the block environment of the transition.
type Env struct {
	Index        uint32 `json:"currentIndex"`
	Timestamp    uint64 `json:"currentTimestamp"`
	Nonce        uint64 `json:"currentNonce"`
	PrimaryIndex byte   `json:"currentPrimary"`
}

// Receipt is a per-transaction result.
type Receipt struct {
	TxHash        util.Uint256              `json:"txhash"`
	VMState       string                    `json:"vmstate"`
	GasConsumed   int64                     `json:"gasconsumed,string"`
	Stack         []json.RawMessage         `json:"stack"`
	Notifications []state.NotificationEvent `json:"notifications"`
	Exception     string                    `json:"exception,omitempty"`
	Error         string                    `json:"error,omitempty"`
}

func run(ctx *cli.Context) error {
	log, err := newLogger(ctx.Bool("verbose"))
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cfg, err := loadProfile(ctx)
	if err != nil {
		return err
	}

	var alloc Alloc
	if err := readJSON(ctx.String("input.alloc"), &alloc); err != nil {
		return fmt.Errorf("reading alloc: %w", err)
	}
	var txs []*transaction.Transaction
	if inTxs := ctx.String("input.txs"); inTxs != "" {
		if err := readJSON(inTxs, &txs); err != nil {
			return fmt.Errorf("reading txs: %w", err)
		}
	}
	var env Env
	if err := readJSON(ctx.String("input.env"), &env); err != nil {
		return fmt.Errorf("reading env: %w", err)
	}
	if len(txs) > int(cfg.MaxTransactionsPerBlock) {
		return fmt.Errorf("too many transactions: %d > %d", len(txs), cfg.MaxTransactionsPerBlock)
	}

	store, err := openStore(ctx.String("db"))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	eng, err := core.NewEngine(cfg, store, log)
	if err != nil {
		return err
	}
	if err := applyAlloc(eng, alloc); err != nil {
		return err
	}

	b := &block.Block{
		Header: block.Header{
			Version:      block.VersionInitial,
			Timestamp:    env.Timestamp,
			Nonce:        env.Nonce,
			Index:        env.Index,
			PrimaryIndex: env.PrimaryIndex,
		},
		Transactions: txs,
	}
	b.RebuildMerkleRoot()

	if err := eng.OnPersist(b); err != nil {
		return fmt.Errorf("onPersist: %w", err)
	}

	strict := ctx.Bool("strict")
	receipts := make([]Receipt, 0, len(txs))
	for i, tx := range txs {
		if err := preValidate(tx); err != nil {
			if strict {
				return fmt.Errorf("tx %d is malformed: %w", i, err)
			}
			receipts = append(receipts, Receipt{
				TxHash:  tx.Hash(),
				VMState: "FAULT",
				Error:   err.Error(),
			})
			continue
		}
		aer, err := eng.ApplyTransaction(b, tx)
		if err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
		receipts = append(receipts, receiptFromAER(aer))
	}

	if err := eng.PostPersist(b); err != nil {
		return fmt.Errorf("postPersist: %w", err)
	}
	if err := eng.Persist(); err != nil {
		return err
	}

	post := dumpAlloc(eng)
	if err := writeJSON(ctx.String("output.result"), receipts); err != nil {
		return err
	}
	return writeJSON(ctx.String("output.alloc"), post)
}

func loadProfile(ctx *cli.Context) (config.ProtocolConfiguration, error) {
	if cfgPath := ctx.String("config"); cfgPath != "" {
		return config.Load(cfgPath)
	}
	switch net := ctx.String("network"); net {
	case "mainnet":
		return config.MainNet(), nil
	case "testnet":
		return config.TestNet(), nil
	case "unknown", "":
		return config.Default(netmode.PrivNet), nil
	default:
		magic, err := strconv.ParseUint(net, 10, 32)
		if err != nil {
			return config.ProtocolConfiguration{}, fmt.Errorf("unknown network: %s", net)
		}
		return config.Default(netmode.Magic(magic)), nil
	}
}

func openStore(spec string) (storage.Store, error) {
	if spec == "" {
		return storage.NewMemoryStore(), nil
	}
	typ, path, found := strings.Cut(spec, ":")
	if !found {
		return nil, errors.New("db spec must be <type>:<path>")
	}
	switch typ {
	case "leveldb":
		return storage.NewLevelDBStore(path)
	case "boltdb":
		return storage.NewBoltDBStore(path)
	default:
		return nil, fmt.Errorf("unknown db type: %s", typ)
	}
}

func preValidate(tx *transaction.Transaction) error {
	if err := tx.IsValid(); err != nil {
		return err
	}
	if tx.Size() > transaction.MaxTransactionSize {
		return fmt.Errorf("transaction is too big (%d)", tx.Size())
	}
	return nil
}

func parseAccount(s string) (util.Uint160, error) {
	if strings.HasPrefix(s, "0x") {
		return util.Uint160DecodeStringLE(s[2:])
	}
	if len(s) == util.Uint160Size*2 {
		return util.Uint160DecodeStringLE(s)
	}
	return address.StringToUint160(s)
}

// applyAlloc writes the initial balances directly into the token
// contracts' storage.
func applyAlloc(eng *core.Engine, alloc Alloc) error {
	for addr, acc := range alloc {
		h, err := parseAccount(addr)
		if err != nil {
			return fmt.Errorf("invalid account %s: %w", addr, err)
		}
		if acc.Gas != "" {
			amount, ok := new(big.Int).SetString(acc.Gas, 10)
			if !ok {
				return fmt.Errorf("invalid GAS amount for %s", addr)
			}
			if err := eng.MintGAS(h, amount); err != nil {
				return err
			}
		}
		if acc.Neo != "" {
			amount, ok := new(big.Int).SetString(acc.Neo, 10)
			if !ok {
				return fmt.Errorf("invalid NEO amount for %s", addr)
			}
			if err := eng.MintNEO(h, amount); err != nil {
				return err
			}
		}
	}
	return eng.Persist()
}

func dumpAlloc(eng *core.Engine) Alloc {
	res := make(Alloc)
	for h, balances := range eng.DumpBalances() {
		res[`0x`+h.StringLE()] = Account{
			Neo: balances.Neo,
			Gas: balances.Gas,
		}
	}
	return res
}

func stackitemJSON(it stackitem.Item) ([]byte, error) {
	return stackitem.ToJSONWithTypes(it)
}

func receiptFromAER(aer *state.AppExecResult) Receipt {
	stack := make([]json.RawMessage, 0, len(aer.Stack))
	for i := len(aer.Stack) - 1; i >= 0; i-- {
		data, err := stackitemJSON(aer.Stack[i])
		if err != nil {
			data = []byte(`{"type":"InteropInterface"}`)
		}
		stack = append(stack, data)
	}
	events := aer.Events
	if events == nil {
		events = []state.NotificationEvent{}
	}
	return Receipt{
		TxHash:        aer.Container,
		VMState:       aer.VMState.String(),
		GasConsumed:   aer.GasConsumed,
		Stack:         stack,
		Notifications: events,
		Exception:     aer.FaultException,
	}
}

func readJSON(path string, v any) error {
	if path == "" {
		return errors.New("missing input file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
