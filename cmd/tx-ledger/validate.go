package main

import (
	"context"
	"fmt"
	"time"

	"github.com/devblac/tx-ledger/internal/config"
	"github.com/devblac/tx-ledger/internal/source/evm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

const defaultRPCTimeout = 8 * time.Second

// chainReader is the subset of evm.RPCReader validate needs.
type chainReader interface {
	ChainID(ctx context.Context) (uint64, error)
	AssetDecimals(ctx context.Context, contract common.Address) (uint8, error)
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config, the RPC chain id and asset decimals",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}
		fmt.Fprintf(out, "config OK (version %d)\n", cfg.Version)

		reader, err := evm.Dial(cfg.Chain.RPCURL, cfg.Chain.ID)
		if err != nil {
			return err
		}
		defer reader.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), defaultRPCTimeout)
		defer cancel()
		return checkChain(ctx, cmd, cfg, reader)
	},
}

// checkChain fails on connectivity or chain id problems. Decimals mismatches
// are reported but do not fail; live decimals are authoritative.
func checkChain(ctx context.Context, cmd *cobra.Command, cfg *config.Config, chain chainReader) error {
	out := cmd.OutOrStdout()

	id, err := chain.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("validate: rpc: %w", err)
	}
	if id != cfg.Chain.ID {
		return fmt.Errorf("validate: chain id mismatch: node=%d configured=%d", id, cfg.Chain.ID)
	}
	fmt.Fprintf(out, "- chain %d OK\n", id)

	failures := 0
	for _, a := range cfg.Assets {
		dec, err := chain.AssetDecimals(ctx, common.HexToAddress(a.Address))
		if err != nil {
			failures++
			fmt.Fprintf(out, "- asset %s (%s): ERROR %v\n", a.Symbol, a.Address, err)
			continue
		}
		if dec != a.Decimals {
			fmt.Fprintf(out, "- asset %s (%s): WARN decimals %d on chain, %d configured\n", a.Symbol, a.Address, dec, a.Decimals)
			continue
		}
		fmt.Fprintf(out, "- asset %s (%s): decimals %d OK\n", a.Symbol, a.Address, dec)
	}

	if failures > 0 {
		return fmt.Errorf("validate: %d asset(s) failed", failures)
	}
	fmt.Fprintln(out, "validate: success")
	return nil
}
