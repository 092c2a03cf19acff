package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady toggles readiness. The API clears it when shutdown begins.
func SetReady(v bool) { ready.Store(v) }

// Probe checks one dependency.
type Probe struct {
	Name    string
	Timeout time.Duration
	Check   func(ctx context.Context) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Probes []Probe
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every probe concurrently and reports 503 if any fails.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !ready.Load() {
		writeStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
		return
	}
	status := make(map[string]string, len(h.Probes))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, p := range h.Probes {
		wg.Add(1)
		go func(p Probe) {
			defer wg.Done()
			result := "ok"
			if err := runProbe(r.Context(), p); err != nil {
				result = err.Error()
			}
			mu.Lock()
			status[p.Name] = result
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	code := http.StatusOK
	for _, v := range status {
		if v != "ok" {
			code = http.StatusServiceUnavailable
			break
		}
	}
	writeStatus(w, code, status)
}

func runProbe(ctx context.Context, p Probe) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Check(ctx)
}

func writeStatus(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
