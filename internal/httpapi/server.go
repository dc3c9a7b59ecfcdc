package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/devblac/tx-ledger/internal/classifier"
	"github.com/devblac/tx-ledger/internal/health"
	"github.com/devblac/tx-ledger/internal/history"
	"github.com/devblac/tx-ledger/internal/ledger"
	"github.com/devblac/tx-ledger/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// HistoryService is the core the HTTP layer exposes.
type HistoryService interface {
	LogTransaction(ctx context.Context, hash string) (ledger.Entry, error)
	GetHistory(ctx context.Context, address string) ([]ledger.Entry, error)
}

type Server struct {
	svc     HistoryService
	checker health.Checker
	logger  *slog.Logger
	tracer  trace.Tracer
}

func NewServer(svc HistoryService, checker health.Checker, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("history service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		svc:     svc,
		checker: checker,
		logger:  logger,
		tracer:  otel.Tracer("tx-ledger/httpapi"),
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tx/{hash}", s.handleLogTransaction)
	mux.HandleFunc("GET /api/history/{address}", s.handleHistory)
	mux.Handle("GET /healthz", health.Handler(s.checker))
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleLogTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "http.log_transaction")
	defer span.End()

	entry, err := s.svc.LogTransaction(ctx, r.PathValue("hash"))
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "http.get_history")
	defer span.End()

	entries, err := s.svc.GetHistory(ctx, r.PathValue("address"))
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (s *Server) startSpan(r *http.Request, name string) (context.Context, trace.Span) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	return s.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	respondError(w, status, message)
}

// statusFor maps service errors to HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, history.ErrInvalidHash), errors.Is(err, history.ErrInvalidAddress):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, classifier.ErrNotMined):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, classifier.ErrChainRead):
		return http.StatusBadGateway, "chain read failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
