package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/devblac/tx-ledger/internal/classifier"
	"github.com/devblac/tx-ledger/internal/ledger"
	"github.com/devblac/tx-ledger/internal/metrics"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidHash    = errors.New("invalid transaction hash")
	ErrInvalidAddress = errors.New("invalid address")
)

var (
	hashPattern    = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

// Classifier produces a ledger entry for a mined transaction.
type Classifier interface {
	Classify(ctx context.Context, hash common.Hash) (ledger.Entry, error)
}

// Ledger is the persistence the service needs.
type Ledger interface {
	GetEntry(ctx context.Context, hash string) (ledger.Entry, bool, error)
	Upsert(ctx context.Context, e ledger.Entry) (ledger.Entry, bool, error)
	FindByAddress(ctx context.Context, address string) ([]ledger.Entry, error)
}

// Notifier receives entries the first time they are recorded.
type Notifier interface {
	Notify(ctx context.Context, e ledger.Entry) error
}

// Service validates requests and coordinates classification and storage.
type Service struct {
	classifier Classifier
	ledger     Ledger
	notifier   Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

func NewService(c Classifier, l Ledger, opts ...Option) *Service {
	s := &Service{classifier: c, ledger: l, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LogTransaction records the transaction behind rawHash and returns the stored
// entry. Logging an already-recorded hash returns the existing entry unchanged.
func (s *Service) LogTransaction(ctx context.Context, rawHash string) (ledger.Entry, error) {
	if !hashPattern.MatchString(rawHash) {
		return ledger.Entry{}, fmt.Errorf("%w: %q", ErrInvalidHash, rawHash)
	}
	key := strings.ToLower(rawHash)

	if existing, ok, err := s.ledger.GetEntry(ctx, key); err != nil {
		s.logger.Error("ledger lookup failed", "hash", key, "error", err)
		return ledger.Entry{}, err
	} else if ok {
		s.metrics.Duplicate()
		s.logger.Debug("entry already recorded", "hash", key)
		return existing, nil
	}

	entry, err := s.classifier.Classify(ctx, common.HexToHash(rawHash))
	if err != nil {
		kind := errorKind(err)
		s.metrics.ClassifyError(kind)
		if kind == "not_mined" {
			s.logger.Warn("transaction not mined", "hash", key, "error", err)
		} else {
			s.logger.Error("classify failed", "hash", key, "kind", kind, "error", err)
		}
		return ledger.Entry{}, err
	}

	stored, inserted, err := s.ledger.Upsert(ctx, entry)
	if err != nil {
		s.logger.Error("ledger upsert failed", "hash", key, "error", err)
		return ledger.Entry{}, err
	}
	if !inserted {
		s.metrics.Duplicate()
		s.logger.Debug("entry recorded concurrently", "hash", key)
		return stored, nil
	}

	s.metrics.EntryRecorded(stored.AssetSymbol)
	s.logger.Info("entry recorded",
		"hash", stored.Hash,
		"asset", stored.AssetSymbol,
		"amount", stored.Amount,
		"block", stored.BlockNumber,
	)
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, stored); err != nil {
			s.logger.Warn("notification failed", "hash", stored.Hash, "error", err)
		}
	}
	return stored, nil
}

// GetHistory returns entries sent or received by rawAddress, newest first.
// The result is never nil.
func (s *Service) GetHistory(ctx context.Context, rawAddress string) ([]ledger.Entry, error) {
	if !addressPattern.MatchString(rawAddress) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, rawAddress)
	}
	entries, err := s.ledger.FindByAddress(ctx, strings.ToLower(rawAddress))
	if err != nil {
		return nil, err
	}
	s.metrics.HistoryQuery()
	if entries == nil {
		entries = []ledger.Entry{}
	}
	return entries, nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, classifier.ErrNotMined):
		return "not_mined"
	case errors.Is(err, classifier.ErrChainRead):
		return "chain_read"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
