package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type Checker struct {
	DBPing    func(ctx context.Context) error
	RPCPing   func(ctx context.Context) error
	CachePing func(ctx context.Context) error
}

// Handler serves /healthz. The cache check only runs when CachePing is set.
func Handler(checker Checker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok"}
		code := http.StatusOK

		check := func(name string, ping func(ctx context.Context) error) {
			if ping == nil {
				return
			}
			if err := ping(ctx); err != nil {
				status[name] = "fail"
				code = http.StatusServiceUnavailable
				return
			}
			status[name] = "ok"
		}
		check("db", checker.DBPing)
		check("rpc", checker.RPCPing)
		check("cache", checker.CachePing)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})
}
