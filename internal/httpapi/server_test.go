package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/devblac/tx-ledger/internal/classifier"
	"github.com/devblac/tx-ledger/internal/health"
	"github.com/devblac/tx-ledger/internal/history"
	"github.com/devblac/tx-ledger/internal/ledger"
)

type fakeService struct {
	entry   ledger.Entry
	history []ledger.Entry
	err     error
	gotHash string
	gotAddr string
}

func (f *fakeService) LogTransaction(ctx context.Context, hash string) (ledger.Entry, error) {
	f.gotHash = hash
	return f.entry, f.err
}

func (f *fakeService) GetHistory(ctx context.Context, address string) ([]ledger.Entry, error) {
	f.gotAddr = address
	return f.history, f.err
}

func sampleEntry() ledger.Entry {
	return ledger.Entry{
		Hash:        "0x" + strings.Repeat("bb", 32),
		From:        "0x1111111111111111111111111111111111111111",
		To:          "0x00000000000000000000000000000000000000cc",
		Amount:      "2.5",
		AssetSymbol: "USDT",
		BlockNumber: 9,
		Status:      ledger.StatusSuccess,
		ObservedAt:  time.Unix(1700000000, 0).UTC(),
	}
}

func newTestServer(t *testing.T, svc HistoryService) http.Handler {
	t.Helper()
	srv, err := NewServer(svc, health.Checker{}, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv.Handler()
}

func TestLogTransactionEndpoint(t *testing.T) {
	svc := &fakeService{entry: sampleEntry()}
	h := newTestServer(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/tx/"+sampleEntry().Hash, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	if svc.gotHash != sampleEntry().Hash {
		t.Fatalf("hash not forwarded: %q", svc.gotHash)
	}
	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["assetSymbol"] != "USDT" || got["amount"] != "2.5" || got["status"] != "success" {
		t.Fatalf("unexpected body: %v", got)
	}
}

func TestHistoryEndpointReturnsEmptyArray(t *testing.T) {
	svc := &fakeService{history: []ledger.Entry{}}
	h := newTestServer(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/history/0x1111111111111111111111111111111111111111", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Fatalf("expected empty array, got %s", body)
	}
	if svc.gotAddr != "0x1111111111111111111111111111111111111111" {
		t.Fatalf("address not forwarded: %q", svc.gotAddr)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"invalid hash", fmt.Errorf("%w: %q", history.ErrInvalidHash, "0x1"), http.StatusBadRequest},
		{"invalid address", history.ErrInvalidAddress, http.StatusBadRequest},
		{"not mined", fmt.Errorf("%w: 0xaa", classifier.ErrNotMined), http.StatusNotFound},
		{"chain read", fmt.Errorf("%w: %w", classifier.ErrChainRead, errors.New("timeout")), http.StatusBadGateway},
		{"storage", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &fakeService{err: tt.err})
			req := httptest.NewRequest(http.MethodPost, "/api/tx/0x1", nil)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.code {
				t.Fatalf("status = %d, want %d", w.Code, tt.code)
			}
			var body map[string]string
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["error"] == "" {
				t.Fatalf("missing error message")
			}
			if tt.code == http.StatusInternalServerError && strings.Contains(body["error"], "disk") {
				t.Fatalf("internal error details leaked: %s", body["error"])
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(t, &fakeService{})
	req := httptest.NewRequest(http.MethodGet, "/api/tx/0x1", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
}

func TestHealthzMounted(t *testing.T) {
	srv, err := NewServer(&fakeService{}, health.Checker{
		DBPing: func(ctx context.Context) error { return errors.New("down") },
	}, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestNewServerRequiresService(t *testing.T) {
	if _, err := NewServer(nil, health.Checker{}, nil); err == nil {
		t.Fatalf("expected error for nil service")
	}
}
