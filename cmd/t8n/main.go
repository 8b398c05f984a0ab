// Command t8n is the state transition tool: it takes an initial
// allocation, a transaction list and a block environment, executes the
// transactions through the engine and emits the receipts and the
// post-state allocation.
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

func main() {
	ctl := cli.NewApp()
	ctl.Name = "t8n"
	ctl.Version = "0.1.0"
	ctl.Usage = "deterministic state transition over a block of transactions"
	ctl.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "input.alloc",
			Usage: "JSON file with the pre-state allocation",
		},
		cli.StringFlag{
			Name:  "input.txs",
			Usage: "JSON file with the transaction array",
		},
		cli.StringFlag{
			Name:  "input.env",
			Usage: "JSON file with the block environment",
		},
		cli.StringFlag{
			Name:  "output.result",
			Usage: "file to write receipts to (stdout by default)",
		},
		cli.StringFlag{
			Name:  "output.alloc",
			Usage: "file to write the post-state allocation to (stdout by default)",
		},
		cli.StringFlag{
			Name:  "network",
			Usage: "protocol profile: mainnet, testnet or a magic number",
			Value: "unknown",
		},
		cli.StringFlag{
			Name:  "config",
			Usage: "YAML file with the protocol configuration",
		},
		cli.StringFlag{
			Name:  "db",
			Usage: "persistent post-state database: leveldb:<path> or boltdb:<path>",
		},
		cli.BoolFlag{
			Name:  "strict",
			Usage: "stop at the first malformed transaction",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "verbose engine logging",
		},
	}
	ctl.Action = run

	if err := ctl.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return log.With(zap.String("run", uuid.NewString())), nil
}
