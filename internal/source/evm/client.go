package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthClient captures the subset of ethclient used by RPCReader.
type EthClient interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// RPCReader implements ChainReader on top of an EVM JSON-RPC node.
type RPCReader struct {
	client EthClient
	signer types.Signer
	close  func()
}

// Dial connects to an EVM node. chainID selects the signer used to recover senders.
func Dial(rpcURL string, chainID uint64) (*RPCReader, error) {
	c, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial evm rpc: %w", err)
	}
	r := NewRPCReader(c, chainID)
	r.close = c.Close
	return r, nil
}

// NewRPCReader wraps an existing client.
func NewRPCReader(client EthClient, chainID uint64) *RPCReader {
	return &RPCReader{
		client: client,
		signer: types.LatestSignerForChainID(new(big.Int).SetUint64(chainID)),
	}
}

// Close releases the underlying connection when Dial created it.
func (r *RPCReader) Close() {
	if r.close != nil {
		r.close()
	}
}

// Receipt returns ErrNotFound when the node has no receipt (unknown or pending hash).
func (r *RPCReader) Receipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	rc, err := r.client.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) || (err == nil && rc == nil) {
		return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
	}

	out := &Receipt{
		TxHash:          rc.TxHash,
		Status:          rc.Status,
		GasUsed:         rc.GasUsed,
		ContractAddress: rc.ContractAddress,
		Logs:            make([]types.Log, 0, len(rc.Logs)),
	}
	if rc.BlockNumber != nil {
		out.BlockNumber = rc.BlockNumber.Uint64()
	}
	for _, lg := range rc.Logs {
		if lg != nil {
			out.Logs = append(out.Logs, *lg)
		}
	}
	return out, nil
}

// Transaction fetches a transaction and recovers its sender.
func (r *RPCReader) Transaction(ctx context.Context, hash common.Hash) (*Transaction, error) {
	tx, _, err := r.client.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, fmt.Errorf("transaction %s: %w", hash.Hex(), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", hash.Hex(), err)
	}

	from, err := types.Sender(r.signer, tx)
	if err != nil {
		return nil, fmt.Errorf("recover sender %s: %w", hash.Hex(), err)
	}
	return &Transaction{
		Hash:  tx.Hash(),
		From:  from,
		To:    tx.To(),
		Value: tx.Value(),
		Input: tx.Data(),
	}, nil
}

// Block fetches the header at number.
func (r *RPCReader) Block(ctx context.Context, number uint64) (*Block, error) {
	h, err := r.client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if errors.Is(err, ethereum.NotFound) {
		return nil, fmt.Errorf("block %d: %w", number, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", number, err)
	}
	return &Block{
		Number:    number,
		Hash:      h.Hash(),
		Timestamp: h.Time,
	}, nil
}

// AssetDecimals calls decimals() on the token contract at the latest block.
func (r *RPCReader) AssetDecimals(ctx context.Context, contract common.Address) (uint8, error) {
	data, err := ERC20.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("pack decimals: %w", err)
	}
	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("call decimals %s: %w", contract.Hex(), err)
	}
	vals, err := ERC20.Unpack("decimals", out)
	if err != nil {
		return 0, fmt.Errorf("unpack decimals %s: %w", contract.Hex(), err)
	}
	dec, ok := vals[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type %T", vals[0])
	}
	return dec, nil
}

// ChainID reports the node's chain id.
func (r *RPCReader) ChainID(ctx context.Context) (uint64, error) {
	id, err := r.client.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain id: %w", err)
	}
	return id.Uint64(), nil
}

// Ping checks that the node answers a latest-header request.
func (r *RPCReader) Ping(ctx context.Context) error {
	if _, err := r.client.HeaderByNumber(ctx, nil); err != nil {
		return fmt.Errorf("latest header: %w", err)
	}
	return nil
}
