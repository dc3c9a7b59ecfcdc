package storage

import (
	"context"
	"testing"
)

func TestCachedStorePassthroughWhenDisabled(t *testing.T) {
	base := newTestStore(t)
	cs, err := NewCachedStore(base, CacheConfig{})
	if err != nil {
		t.Fatalf("cached store: %v", err)
	}
	if cs.Enabled() {
		t.Fatalf("cache should be disabled without an address")
	}
	ctx := context.Background()

	e := testEntry(1, alice, bob, 1_700_000_000)
	if _, inserted, err := cs.Upsert(ctx, e); err != nil || !inserted {
		t.Fatalf("upsert: inserted=%v err=%v", inserted, err)
	}
	got, err := cs.FindByAddress(ctx, bob)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].Hash != e.Hash {
		t.Fatalf("unexpected history: %+v", got)
	}
	if err := cs.PingCache(ctx); err != nil {
		t.Fatalf("disabled cache ping: %v", err)
	}
}

func TestNewCachedStoreRequiresBase(t *testing.T) {
	if _, err := NewCachedStore(nil, CacheConfig{}); err == nil {
		t.Fatalf("expected error for nil base")
	}
}

func TestHistoryKeyLowercases(t *testing.T) {
	if got := historyKey("0xAbC"); got != "txledger:history:0xabc" {
		t.Fatalf("unexpected key %s", got)
	}
}
