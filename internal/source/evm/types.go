package evm

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrNotFound signals that the node has no record for the requested hash.
var ErrNotFound = errors.New("not found")

// ChainReader fetches the three views of a transaction plus token metadata.
type ChainReader interface {
	Receipt(ctx context.Context, hash common.Hash) (*Receipt, error)
	Transaction(ctx context.Context, hash common.Hash) (*Transaction, error)
	Block(ctx context.Context, number uint64) (*Block, error)
	AssetDecimals(ctx context.Context, contract common.Address) (uint8, error)
}

// Transaction is the subset of a signed transaction the ledger needs.
type Transaction struct {
	Hash  common.Hash
	From  common.Address
	To    *common.Address
	Value *big.Int
	Input []byte
}

// Receipt carries the execution outcome and emitted logs.
type Receipt struct {
	TxHash          common.Hash
	BlockNumber     uint64
	Status          uint64
	GasUsed         uint64
	ContractAddress common.Address
	Logs            []types.Log
}

// Block holds the header fields used for timestamping.
type Block struct {
	Number    uint64
	Hash      common.Hash
	Timestamp uint64
}
