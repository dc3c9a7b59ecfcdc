package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/devblac/tx-ledger/internal/ledger"
)

type recordingSender struct {
	got []ledger.Entry
	err error
}

func (r *recordingSender) Send(ctx context.Context, e ledger.Entry) error {
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, e)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherRoutesByPredicate(t *testing.T) {
	big := &recordingSender{}
	all := &recordingSender{}

	bigRoute, err := NewRoute("big", big, []string{"amount > 10000"}, 0, 0)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	allRoute, err := NewRoute("all", all, nil, 0, 0)
	if err != nil {
		t.Fatalf("route: %v", err)
	}

	d := NewDispatcher([]Route{bigRoute, allRoute}, nil, quietLogger())
	if err := d.Notify(context.Background(), usdtEntry()); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(big.got) != 0 {
		t.Fatalf("big route should not fire for 1500.25")
	}
	if len(all.got) != 1 || all.got[0].Hash != usdtEntry().Hash {
		t.Fatalf("all route should receive the entry once, got %d", len(all.got))
	}
}

func TestDispatcherRateLimits(t *testing.T) {
	s := &recordingSender{}
	r, err := NewRoute("limited", s, nil, 1, 0.001)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	d := NewDispatcher([]Route{r}, nil, quietLogger())
	fixed := time.Unix(1700000000, 0)
	d.nowFunc = func() time.Time { return fixed }

	for i := 0; i < 3; i++ {
		if err := d.Notify(context.Background(), usdtEntry()); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	if len(s.got) != 1 {
		t.Fatalf("expected 1 delivery under rate limit, got %d", len(s.got))
	}
}

func TestDispatcherJoinsErrorsAndContinues(t *testing.T) {
	boom := errors.New("hook down")
	failing := &recordingSender{err: boom}
	ok := &recordingSender{}

	r1, _ := NewRoute("failing", failing, nil, 0, 0)
	r2, _ := NewRoute("ok", ok, nil, 0, 0)
	d := NewDispatcher([]Route{r1, r2}, nil, quietLogger())

	err := d.Notify(context.Background(), usdtEntry())
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined sink error, got %v", err)
	}
	if !strings.Contains(err.Error(), "sink failing") {
		t.Fatalf("error should name the sink: %v", err)
	}
	if len(ok.got) != 1 {
		t.Fatalf("later routes should still be attempted")
	}
}

func TestNilDispatcherIsNoop(t *testing.T) {
	var d *Dispatcher
	if err := d.Notify(context.Background(), usdtEntry()); err != nil {
		t.Fatalf("nil dispatcher should be a no-op: %v", err)
	}
}

func TestNewRouteRejectsBadPredicate(t *testing.T) {
	if _, err := NewRoute("x", &recordingSender{}, []string{"nope > 1"}, 0, 0); err == nil {
		t.Fatalf("expected predicate error")
	}
}
