package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ledger size and the highest recorded block",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openLedger()
		if err != nil {
			return err
		}
		defer a.close()

		st, err := a.store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "entries: %d\n", st.Entries)
		fmt.Fprintf(out, "latest block: %d\n", st.LatestBlock)
		return nil
	},
}
