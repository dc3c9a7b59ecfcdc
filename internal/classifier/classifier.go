package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devblac/tx-ledger/internal/ledger"
	"github.com/devblac/tx-ledger/internal/source/evm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrNotMined means the node has no receipt for the hash yet (or never will).
	ErrNotMined = errors.New("transaction not mined")
	// ErrChainRead wraps any other reader failure; callers may retry.
	ErrChainRead = errors.New("chain read failed")
)

// Native describes the chain's base currency.
type Native struct {
	Symbol   string
	Decimals uint8
}

// Classifier turns a transaction hash into a normalized ledger entry.
type Classifier struct {
	reader   evm.ChainReader
	registry *Registry
	native   Native
	tracer   trace.Tracer
}

// New builds a classifier. The registry must not be mutated afterwards.
func New(reader evm.ChainReader, registry *Registry, native Native) *Classifier {
	return &Classifier{
		reader:   reader,
		registry: registry,
		native:   native,
		tracer:   otel.Tracer("tx-ledger/classifier"),
	}
}

// Classify reads the receipt, transaction and block for hash and produces one entry.
// Reads are sequential: each step needs the previous step's output.
func (c *Classifier) Classify(ctx context.Context, hash common.Hash) (entry ledger.Entry, err error) {
	ctx, span := c.tracer.Start(ctx, "classifier.classify", trace.WithAttributes(
		attribute.String("tx.hash", hash.Hex()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("asset", entry.AssetSymbol))
		}
		span.End()
	}()

	rc, err := c.reader.Receipt(ctx, hash)
	if errors.Is(err, evm.ErrNotFound) {
		return ledger.Entry{}, fmt.Errorf("%w: %s", ErrNotMined, hash.Hex())
	}
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("%w: %w", ErrChainRead, err)
	}

	tx, err := c.reader.Transaction(ctx, hash)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("%w: %w", ErrChainRead, err)
	}
	block, err := c.reader.Block(ctx, rc.BlockNumber)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("%w: %w", ErrChainRead, err)
	}

	entry = ledger.Entry{
		Hash:        strings.ToLower(hash.Hex()),
		From:        lowerHex(tx.From), // the signer, also when a router moves tokens via transferFrom
		BlockNumber: rc.BlockNumber,
		Status:      receiptStatus(rc.Status),
		ObservedAt:  time.Unix(int64(block.Timestamp), 0).UTC(),
	}

	if len(tx.Input) == 0 {
		entry.AssetSymbol = c.native.Symbol
		entry.Amount = FormatUnits(tx.Value, c.native.Decimals)
		entry.To = declaredRecipient(tx, rc)
		return entry, nil
	}

	// Only the first registry-known Transfer is reported; later legs are ignored.
	asset, transfer, ok := c.firstTransfer(rc.Logs)
	if !ok {
		entry.AssetSymbol = ledger.UnknownAsset
		entry.Amount = ledger.ZeroAmount
		entry.To = declaredRecipient(tx, rc)
		return entry, nil
	}

	decimals, err := c.reader.AssetDecimals(ctx, asset.Address)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("%w: %w", ErrChainRead, err)
	}
	entry.AssetSymbol = asset.Symbol
	entry.Amount = FormatUnits(transfer.Value, decimals)
	entry.To = lowerHex(transfer.To)
	return entry, nil
}

func (c *Classifier) firstTransfer(logs []types.Log) (Asset, evm.Transfer, bool) {
	for _, lg := range logs {
		asset, known := c.registry.Lookup(lg.Address)
		if !known {
			continue
		}
		res := evm.DecodeTransfer(lg)
		if res.Kind != evm.Decoded {
			continue
		}
		return asset, res.Transfer, true
	}
	return Asset{}, evm.Transfer{}, false
}

func declaredRecipient(tx *evm.Transaction, rc *evm.Receipt) string {
	if tx.To != nil {
		return lowerHex(*tx.To)
	}
	if rc.ContractAddress != (common.Address{}) {
		return lowerHex(rc.ContractAddress)
	}
	return ""
}

func receiptStatus(status uint64) ledger.Status {
	if status == types.ReceiptStatusSuccessful {
		return ledger.StatusSuccess
	}
	return ledger.StatusFailed
}

func lowerHex(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
