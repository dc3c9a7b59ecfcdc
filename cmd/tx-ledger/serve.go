package main

import (
	"fmt"

	"github.com/devblac/tx-ledger/internal/health"
	"github.com/devblac/tx-ledger/internal/httpapi"
	"github.com/spf13/cobra"
)

var flagAddr string

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "HTTP listen address (overrides server.addr)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ledger HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openService(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		checker := health.Checker{
			DBPing:  a.store.Ping,
			RPCPing: health.NewRPCChecker(a.reader, a.cfg.Chain.ID).Ping,
		}
		if a.ledger.Enabled() {
			checker.CachePing = a.ledger.PingCache
		}

		srv, err := httpapi.NewServer(a.svc, checker, a.log)
		if err != nil {
			return err
		}

		addr := a.cfg.Server.Addr
		if flagAddr != "" {
			addr = flagAddr
		}
		if err := srv.ListenAndServe(ctx, addr); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		a.log.Info("http server stopped")
		return nil
	},
}
