package evm

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type fakeEthClient struct {
	receipts map[common.Hash]*types.Receipt
	txs      map[common.Hash]*types.Transaction
	headers  map[uint64]*types.Header
	decimals map[common.Address]uint8
	calls    []ethereum.CallMsg
	err      error
}

func (f *fakeEthClient) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	if f.err != nil {
		return nil, f.err
	}
	if rc, ok := f.receipts[hash]; ok {
		return rc, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeEthClient) TransactionByHash(_ context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	if tx, ok := f.txs[hash]; ok {
		return tx, false, nil
	}
	return nil, false, ethereum.NotFound
}

func (f *fakeEthClient) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	if f.err != nil {
		return nil, f.err
	}
	if number == nil {
		return &types.Header{Number: big.NewInt(1)}, nil
	}
	if h, ok := f.headers[number.Uint64()]; ok {
		return h, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeEthClient) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls = append(f.calls, msg)
	dec, ok := f.decimals[*msg.To]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return common.LeftPadBytes([]byte{dec}, 32), nil
}

func (f *fakeEthClient) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(97), nil
}

func TestRPCReaderReceiptNotFound(t *testing.T) {
	r := NewRPCReader(&fakeEthClient{}, 97)
	_, err := r.Receipt(context.Background(), common.HexToHash("0x01"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRPCReaderReceiptTransportError(t *testing.T) {
	boom := errors.New("connection refused")
	r := NewRPCReader(&fakeEthClient{err: boom}, 97)
	_, err := r.Receipt(context.Background(), common.HexToHash("0x01"))
	if errors.Is(err, ErrNotFound) || !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestRPCReaderReceiptCopiesLogs(t *testing.T) {
	hash := common.HexToHash("0xbb")
	lg := &types.Log{Address: common.HexToAddress("0x1"), Topics: []common.Hash{TransferTopic}}
	fc := &fakeEthClient{receipts: map[common.Hash]*types.Receipt{
		hash: {TxHash: hash, Status: 1, GasUsed: 21000, BlockNumber: big.NewInt(42), Logs: []*types.Log{lg, nil}},
	}}

	rc, err := NewRPCReader(fc, 97).Receipt(context.Background(), hash)
	if err != nil {
		t.Fatalf("receipt: %v", err)
	}
	if rc.BlockNumber != 42 || rc.Status != 1 || rc.GasUsed != 21000 {
		t.Fatalf("unexpected receipt: %+v", rc)
	}
	if len(rc.Logs) != 1 || rc.Logs[0].Address != lg.Address {
		t.Fatalf("unexpected logs: %+v", rc.Logs)
	}
}

func TestRPCReaderTransactionRecoversSender(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	to := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	value := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	signed, err := types.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    1,
		To:       &to,
		Value:    value,
		Gas:      21000,
		GasPrice: big.NewInt(1),
	}), types.LatestSignerForChainID(big.NewInt(97)), key)
	if err != nil {
		t.Fatalf("sign tx: %v", err)
	}

	fc := &fakeEthClient{txs: map[common.Hash]*types.Transaction{signed.Hash(): signed}}
	tx, err := NewRPCReader(fc, 97).Transaction(context.Background(), signed.Hash())
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if tx.From != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("unexpected sender %s", tx.From.Hex())
	}
	if tx.To == nil || *tx.To != to {
		t.Fatalf("unexpected recipient %v", tx.To)
	}
	if tx.Value.Cmp(value) != 0 || len(tx.Input) != 0 {
		t.Fatalf("unexpected value/input: %s %x", tx.Value, tx.Input)
	}
}

func TestRPCReaderBlockTimestamp(t *testing.T) {
	fc := &fakeEthClient{headers: map[uint64]*types.Header{
		7: {Number: big.NewInt(7), Time: 1_700_000_000},
	}}
	b, err := NewRPCReader(fc, 97).Block(context.Background(), 7)
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if b.Number != 7 || b.Timestamp != 1_700_000_000 {
		t.Fatalf("unexpected block: %+v", b)
	}
}

func TestRPCReaderAssetDecimals(t *testing.T) {
	token := common.HexToAddress("0x787A697324dbA4AB965C58CD33c13ff5eeA6295F")
	fc := &fakeEthClient{decimals: map[common.Address]uint8{token: 6}}
	r := NewRPCReader(fc, 97)

	dec, err := r.AssetDecimals(context.Background(), token)
	if err != nil {
		t.Fatalf("decimals: %v", err)
	}
	if dec != 6 {
		t.Fatalf("decimals = %d, want 6", dec)
	}
	if len(fc.calls) != 1 || !bytes.Equal(fc.calls[0].Data, ERC20.Methods["decimals"].ID) {
		t.Fatalf("unexpected call data: %+v", fc.calls)
	}

	if _, err := r.AssetDecimals(context.Background(), common.HexToAddress("0x9")); err == nil {
		t.Fatalf("expected error for reverting call")
	}
}
