package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.EntryRecorded("BNB")
	m.Duplicate()
	m.ClassifyError("chain_read")
	m.HistoryQuery()
	m.NotificationSent()
	m.NotificationDropped()
}

func TestInitIsIdempotentAndExported(t *testing.T) {
	a := Init()
	b := Init()
	if a != b {
		t.Fatalf("Init should return the same instance")
	}

	a.EntryRecorded("USDT")
	a.ClassifyError("not_mined")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	body := w.Body.String()
	for _, want := range []string{
		`tx_ledger_entries_recorded_total{asset="USDT"}`,
		`tx_ledger_classify_errors_total{kind="not_mined"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %s", want)
		}
	}
}
