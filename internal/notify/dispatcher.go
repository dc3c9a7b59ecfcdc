package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/devblac/tx-ledger/internal/ledger"
	"github.com/devblac/tx-ledger/internal/metrics"
	"github.com/devblac/tx-ledger/internal/sink"
)

// Route sends entries matching every predicate to one sink.
type Route struct {
	SinkID  string
	Sender  sink.Sender
	Preds   []Predicate
	Limiter *TokenBucket
}

// NewRoute compiles where expressions for a sink. A zero capacity disables rate limiting.
func NewRoute(sinkID string, sender sink.Sender, where []string, capacity, perSecond float64) (Route, error) {
	preds, err := CompilePredicates(where)
	if err != nil {
		return Route{}, fmt.Errorf("sink %s predicates: %w", sinkID, err)
	}
	r := Route{SinkID: sinkID, Sender: sender, Preds: preds}
	if capacity > 0 {
		r.Limiter = NewTokenBucket(capacity, perSecond)
	}
	return r, nil
}

// Dispatcher fans newly recorded entries out to configured sinks.
type Dispatcher struct {
	routes  []Route
	metrics *metrics.Metrics
	logger  *slog.Logger
	nowFunc func() time.Time
}

func NewDispatcher(routes []Route, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{routes: routes, metrics: m, logger: logger, nowFunc: time.Now}
}

// Notify delivers entry to every matching route. Every route is attempted;
// failures are joined.
func (d *Dispatcher) Notify(ctx context.Context, entry ledger.Entry) error {
	if d == nil || len(d.routes) == 0 {
		return nil
	}
	fields := fieldsOf(entry)

	var errs []error
	for _, r := range d.routes {
		if r.Sender == nil || !allPredicates(r.Preds, fields) {
			continue
		}
		if r.Limiter != nil && !r.Limiter.Allow(d.nowFunc()) {
			d.metrics.NotificationDropped()
			d.logger.Warn("notification rate limited", "sink", r.SinkID, "hash", entry.Hash)
			continue
		}
		if err := r.Sender.Send(ctx, entry); err != nil {
			d.metrics.NotificationDropped()
			errs = append(errs, fmt.Errorf("sink %s: %w", r.SinkID, err))
			continue
		}
		d.metrics.NotificationSent()
	}
	return errors.Join(errs...)
}

func allPredicates(preds []Predicate, fields map[string]any) bool {
	for _, p := range preds {
		if !p(fields) {
			return false
		}
	}
	return true
}
