package classifier

import (
	"testing"

	"github.com/devblac/tx-ledger/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
)

func TestRegistryLookup(t *testing.T) {
	reg, err := NewRegistry([]Asset{
		{Address: usdtAddr, Symbol: "USDT", DecimalsHint: 18},
		{Address: usdcAddr, Symbol: "USDC", DecimalsHint: 18},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	// Mixed-case input resolves to the same 20 bytes.
	a, ok := reg.Lookup(common.HexToAddress("0x787a697324dba4ab965c58cd33c13ff5eea6295f"))
	if !ok || a.Symbol != "USDT" {
		t.Fatalf("lookup failed: %+v ok=%v", a, ok)
	}
	if _, ok := reg.Lookup(common.HexToAddress("0x1")); ok {
		t.Fatalf("unexpected hit for unknown contract")
	}

	assets := reg.Assets()
	if len(assets) != 2 || assets[0].Symbol != "USDC" || assets[1].Symbol != "USDT" {
		t.Fatalf("unexpected assets order: %+v", assets)
	}
	assets[0].Symbol = "MUTATED"
	if a, _ := reg.Lookup(usdcAddr); a.Symbol != "USDC" {
		t.Fatalf("registry mutated through Assets()")
	}
}

func TestRegistryRejectsInvalidAssets(t *testing.T) {
	tests := []struct {
		name   string
		assets []Asset
	}{
		{"duplicate", []Asset{{Address: usdtAddr, Symbol: "USDT"}, {Address: usdtAddr, Symbol: "USDT2"}}},
		{"empty_symbol", []Asset{{Address: usdtAddr}}},
		{"reserved_symbol", []Asset{{Address: usdtAddr, Symbol: ledger.UnknownAsset}}},
		{"zero_address", []Asset{{Symbol: "ZERO"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.assets); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
