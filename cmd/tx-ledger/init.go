package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var flagForce bool

func init() {
	initCmd.Flags().BoolVar(&flagForce, "force", false, "Overwrite an existing config file")
}

const sampleConfig = `version: 1

global:
  db_driver: sqlite
  db_dsn: ./tx-ledger.db

chain:
  id: 97
  rpc_url: ${RPC_URL}
  native_symbol: BNB
  native_decimals: 18

assets:
  - address: "0x787A697324dbA4AB965C58CD33c13ff5eeA6295F"
    symbol: USDT
    decimals: 18
  - address: "0x342e3aA1248AB77E319e3331C6fD3f1F2d4B36B1"
    symbol: USDC
    decimals: 18

cache:
  redis_addr: ""
  ttl: 5m

tracing:
  endpoint: ""
  service_name: tx-ledger

server:
  addr: ":5000"

sinks: []
#  - id: large_transfers
#    type: slack
#    webhook_url: https://hooks.slack.com/services/T000/B000/XXXX
#    where: ["amount >= 1000", "asset in USDT,USDC"]
#    rate_limit: {capacity: 5, per_second: 0.1}
#  - id: ledger_stream
#    type: kafka
#    brokers: ["localhost:9092"]
#    topic: ledger-entries
`

const sampleEnv = "RPC_URL=https://bsc-testnet-dataseed.bnbchain.org\n"

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample config for BSC testnet",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if err := writeSample(cfgPath, sampleConfig, flagForce); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", cfgPath)

		envPath := filepath.Join(filepath.Dir(cfgPath), ".env")
		if _, err := os.Stat(envPath); errors.Is(err, os.ErrNotExist) {
			if err := writeSample(envPath, sampleEnv, false); err != nil {
				return err
			}
			fmt.Fprintf(out, "wrote %s\n", envPath)
		}
		return nil
	},
}

func writeSample(path, body string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
