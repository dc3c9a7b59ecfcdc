package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/devblac/tx-ledger/internal/classifier"
	"github.com/devblac/tx-ledger/internal/config"
	"github.com/devblac/tx-ledger/internal/history"
	"github.com/devblac/tx-ledger/internal/logging"
	"github.com/devblac/tx-ledger/internal/metrics"
	"github.com/devblac/tx-ledger/internal/notify"
	"github.com/devblac/tx-ledger/internal/sink"
	"github.com/devblac/tx-ledger/internal/source/evm"
	"github.com/devblac/tx-ledger/internal/storage"
	"github.com/devblac/tx-ledger/internal/telemetry"
	"github.com/ethereum/go-ethereum/common"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	store   *storage.Store
	ledger  *storage.CachedStore
	reader  *evm.RPCReader
	svc     *history.Service
	metrics *metrics.Metrics
	closers []func() error
}

func newLogger() *slog.Logger {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	return logging.NewWithLevel(logLevel)
}

// openLedger loads config and opens storage (and the optional cache). It does
// not touch the chain.
func openLedger() (*app, error) {
	a := &app{log: newLogger()}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	store, err := storage.Open(cfg.Global.DBDriver, cfg.Global.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.store = store

	ledger, err := storage.NewCachedStore(store, storage.CacheConfig{
		Addr: cfg.Cache.RedisAddr,
		TTL:  cfg.CacheTTL(),
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}
	a.ledger = ledger
	a.closers = append(a.closers, ledger.Close)
	if ledger.Enabled() {
		a.log.Info("history cache enabled", "addr", cfg.Cache.RedisAddr, "ttl", cfg.CacheTTL())
	}
	return a, nil
}

// openService extends openLedger with tracing, the chain reader, sinks and the
// history service.
func openService(ctx context.Context) (*app, error) {
	a, err := openLedger()
	if err != nil {
		return nil, err
	}
	if err := a.wireService(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wireService(ctx context.Context) error {
	cfg := a.cfg

	shutdown, err := telemetry.InitTracer(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
	if err != nil {
		a.log.Warn("tracing disabled", "err", err)
	}
	a.closers = append(a.closers, func() error { return shutdown(context.Background()) })

	reader, err := evm.Dial(cfg.Chain.RPCURL, cfg.Chain.ID)
	if err != nil {
		return err
	}
	a.reader = reader
	a.closers = append(a.closers, func() error { reader.Close(); return nil })

	registry, err := buildRegistry(cfg.Assets)
	if err != nil {
		return err
	}

	a.metrics = metrics.Init()

	routes, closers, err := buildRoutes(cfg.Sinks)
	a.closers = append(a.closers, closers...)
	if err != nil {
		return err
	}

	cls := classifier.New(reader, registry, classifier.Native{
		Symbol:   cfg.Chain.NativeSymbol,
		Decimals: cfg.NativeDecimals(),
	})
	a.svc = history.NewService(cls, a.ledger,
		history.WithNotifier(notify.NewDispatcher(routes, a.metrics, a.log)),
		history.WithMetrics(a.metrics),
		history.WithLogger(a.log),
	)
	return nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func buildRegistry(assets []config.Asset) (*classifier.Registry, error) {
	out := make([]classifier.Asset, 0, len(assets))
	for _, a := range assets {
		out = append(out, classifier.Asset{
			Address:      common.HexToAddress(a.Address),
			Symbol:       a.Symbol,
			DecimalsHint: a.Decimals,
		})
	}
	return classifier.NewRegistry(out)
}

func buildRoutes(sinks []config.Sink) ([]notify.Route, []func() error, error) {
	var (
		routes  []notify.Route
		closers []func() error
	)
	for _, s := range sinks {
		var (
			sender sink.Sender
			err    error
		)
		switch s.Type {
		case "slack":
			sender, err = sink.NewSlackSender(s.WebhookURL, s.Template)
		case "teams":
			sender, err = sink.NewTeamsSender(s.WebhookURL, s.Template)
		case "webhook":
			sender, err = sink.NewWebhookSender(s.URL, s.Method, s.Template, nil)
		case "kafka":
			var k *sink.KafkaSender
			k, err = sink.NewKafkaSender(s.Brokers, s.Topic)
			if err == nil {
				closers = append(closers, k.Close)
				sender = k
			}
		default:
			continue
		}
		if err != nil {
			return nil, closers, fmt.Errorf("sink %s: %w", s.ID, err)
		}

		var capacity, perSecond float64
		if s.RateLimit != nil {
			capacity, perSecond = s.RateLimit.Capacity, s.RateLimit.PerSecond
		}
		route, err := notify.NewRoute(s.ID, sender, s.Where, capacity, perSecond)
		if err != nil {
			return nil, closers, err
		}
		routes = append(routes, route)
	}
	return routes, closers, nil
}
