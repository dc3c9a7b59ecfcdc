package health

import (
	"context"
	"fmt"
)

// ChainClient is the subset of the chain reader the RPC check needs.
type ChainClient interface {
	Ping(ctx context.Context) error
	ChainID(ctx context.Context) (uint64, error)
}

// RPCChecker verifies the node answers and serves the configured chain.
type RPCChecker struct {
	client  ChainClient
	chainID uint64
}

// NewRPCChecker creates a checker that expects chainID. Zero skips the id comparison.
func NewRPCChecker(client ChainClient, chainID uint64) *RPCChecker {
	return &RPCChecker{client: client, chainID: chainID}
}

// Ping checks the RPC endpoint.
func (c *RPCChecker) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx); err != nil {
		return fmt.Errorf("rpc: %w", err)
	}
	if c.chainID == 0 {
		return nil
	}
	got, err := c.client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("rpc: %w", err)
	}
	if got != c.chainID {
		return fmt.Errorf("rpc: chain id mismatch: node=%d configured=%d", got, c.chainID)
	}
	return nil
}
