package evm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ResultKind tags the outcome of DecodeTransfer.
type ResultKind int

const (
	NotApplicable ResultKind = iota
	Decoded
)

func (k ResultKind) String() string {
	if k == Decoded {
		return "decoded"
	}
	return "not_applicable"
}

// Transfer is a decoded ERC-20 Transfer event.
type Transfer struct {
	Contract common.Address
	From     common.Address
	To       common.Address
	Value    *big.Int
}

// DecodeResult is either Decoded with a Transfer or NotApplicable.
type DecodeResult struct {
	Kind     ResultKind
	Transfer Transfer
}

var transferIndexed, transferData = splitIndexed(ERC20.Events["Transfer"].Inputs)

// DecodeTransfer recognizes the canonical ERC-20 Transfer event regardless of which
// contract emitted it. Logs of any other shape are NotApplicable; it never fails.
func DecodeTransfer(lg types.Log) DecodeResult {
	if len(lg.Topics) != 1+len(transferIndexed) || lg.Topics[0] != TransferTopic {
		return DecodeResult{Kind: NotApplicable}
	}
	if len(lg.Data) != 32*len(transferData) {
		return DecodeResult{Kind: NotApplicable}
	}

	args := map[string]any{}
	if err := abi.ParseTopicsIntoMap(args, transferIndexed, lg.Topics[1:]); err != nil {
		return DecodeResult{Kind: NotApplicable}
	}
	if err := transferData.UnpackIntoMap(args, lg.Data); err != nil {
		return DecodeResult{Kind: NotApplicable}
	}

	from, okFrom := args["from"].(common.Address)
	to, okTo := args["to"].(common.Address)
	value, okValue := args["value"].(*big.Int)
	if !okFrom || !okTo || !okValue {
		return DecodeResult{Kind: NotApplicable}
	}

	return DecodeResult{
		Kind: Decoded,
		Transfer: Transfer{
			Contract: lg.Address,
			From:     from,
			To:       to,
			Value:    value,
		},
	}
}

func splitIndexed(args abi.Arguments) (indexed abi.Arguments, nonIndexed abi.Arguments) {
	for _, a := range args {
		if a.Indexed {
			indexed = append(indexed, a)
		} else {
			nonIndexed = append(nonIndexed, a)
		}
	}
	return indexed, nonIndexed
}
