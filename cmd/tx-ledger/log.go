package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log <hash>",
	Short: "Classify one transaction and record it in the ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		entry, err := a.svc.LogTransaction(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entry)
	},
}
