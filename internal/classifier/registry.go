package classifier

import (
	"errors"
	"fmt"
	"sort"

	"github.com/devblac/tx-ledger/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
)

// Asset describes a known token contract. DecimalsHint is informational only;
// the classifier always asks the contract for its live decimals.
type Asset struct {
	Address      common.Address
	Symbol       string
	DecimalsHint uint8
}

// Registry is an immutable lookup of known token contracts.
type Registry struct {
	assets map[common.Address]Asset
}

// NewRegistry builds a registry, rejecting duplicate contracts and reserved symbols.
func NewRegistry(assets []Asset) (*Registry, error) {
	m := make(map[common.Address]Asset, len(assets))
	for _, a := range assets {
		if a.Symbol == "" {
			return nil, fmt.Errorf("asset %s: symbol is required", a.Address.Hex())
		}
		if a.Symbol == ledger.UnknownAsset {
			return nil, fmt.Errorf("asset %s: symbol %s is reserved", a.Address.Hex(), a.Symbol)
		}
		if a.Address == (common.Address{}) {
			return nil, errors.New("asset address must not be zero")
		}
		if _, exists := m[a.Address]; exists {
			return nil, fmt.Errorf("duplicate asset address: %s", a.Address.Hex())
		}
		m[a.Address] = a
	}
	return &Registry{assets: m}, nil
}

// Lookup returns the asset registered at addr.
func (r *Registry) Lookup(addr common.Address) (Asset, bool) {
	if r == nil {
		return Asset{}, false
	}
	a, ok := r.assets[addr]
	return a, ok
}

// Assets returns a copy of the registry ordered by symbol.
func (r *Registry) Assets() []Asset {
	if r == nil {
		return nil
	}
	out := make([]Asset, 0, len(r.assets))
	for _, a := range r.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
