package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/devblac/tx-ledger/internal/history"
	"github.com/devblac/tx-ledger/internal/ledger"
	"github.com/spf13/cobra"
)

var flagFormat string

func init() {
	historyCmd.Flags().StringVar(&flagFormat, "format", "json", "Output format: json|csv")
}

var historyCmd = &cobra.Command{
	Use:   "history <address>",
	Short: "Print the recorded history of an address, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(flagFormat)
		if format != "json" && format != "csv" {
			return fmt.Errorf("unsupported format %q (json|csv)", flagFormat)
		}

		a, err := openLedger()
		if err != nil {
			return err
		}
		defer a.close()

		svc := history.NewService(nil, a.ledger, history.WithLogger(a.log))
		entries, err := svc.GetHistory(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if format == "csv" {
			return writeCSV(cmd.OutOrStdout(), entries)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	},
}

var csvHeader = []string{"hash", "from", "to", "amount", "asset_symbol", "block_number", "status", "observed_at"}

func writeCSV(out io.Writer, entries []ledger.Entry) error {
	w := csv.NewWriter(out)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		record := []string{
			e.Hash,
			e.From,
			e.To,
			e.Amount,
			e.AssetSymbol,
			strconv.FormatUint(e.BlockNumber, 10),
			string(e.Status),
			e.ObservedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
