package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/erp-billing/internal/obs"
)

type stubStore struct {
	entries []Entry
	err     error
}

func (s *stubStore) Insert(_ context.Context, e Entry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *stubStore) ListForBill(_ context.Context, billID string, limit, offset int) ([]Entry, error) {
	out := []Entry{}
	for _, e := range s.entries {
		if e.BillID == billID {
			out = append(out, e)
		}
	}
	if offset >= len(out) {
		return []Entry{}, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func TestServiceRecord(t *testing.T) {
	store := &stubStore{}
	fixed := time.Date(2024, 4, 1, 10, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))
	svc := Service{Store: store, Enabled: true, SamplingRate: 1, Now: func() time.Time { return fixed }}

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-123")
	ctx = obs.WithRoutePattern(ctx, "/api/v1/bills/{id}")

	err := svc.Record(ctx, ActionBillUpdate, " b1 ", 0, map[string]any{"totalAmount": 1180.0})
	require.NoError(t, err)
	require.Len(t, store.entries, 1)

	e := store.entries[0]
	require.NotEqual(t, [16]byte{}, [16]byte(e.ID))
	require.Equal(t, ActionBillUpdate, e.Action)
	require.Equal(t, "b1", e.BillID)
	require.Equal(t, http.StatusOK, e.Status)
	require.Equal(t, "req-123", e.RequestID)
	require.Equal(t, "/api/v1/bills/{id}", e.Route)
	require.Equal(t, time.UTC, e.CreatedAt.Location())

	var meta map[string]float64
	require.NoError(t, json.Unmarshal(e.Metadata, &meta))
	require.Equal(t, 1180.0, meta["totalAmount"])
}

func TestServiceRecordRouteFromRouter(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: true, SamplingRate: 1}

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Delete("/bills/{id}", func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, svc.Record(r.Context(), ActionBillDelete, chi.URLParam(r, "id"), http.StatusNoContent, nil))
			w.WriteHeader(http.StatusNoContent)
		})
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/v1/bills/b9", nil))

	require.Len(t, store.entries, 1)
	require.Equal(t, "b9", store.entries[0].BillID)
	require.Equal(t, "/api/v1/bills/{id}", store.entries[0].Route)
}

func TestServiceDisabled(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store}
	require.NoError(t, svc.Record(context.Background(), ActionBillCreate, "b1", 201, nil))
	require.Empty(t, store.entries)

	entries, err := svc.List(context.Background(), "b1", 10, 0)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestServiceRequiresStoreAndAction(t *testing.T) {
	require.Error(t, Service{Enabled: true}.Record(context.Background(), ActionBillCreate, "b1", 0, nil))
	require.Error(t, Service{Enabled: true, Store: &stubStore{}}.Record(context.Background(), "", "b1", 0, nil))
}

func TestServicePropagatesStoreError(t *testing.T) {
	boom := errors.New("db down")
	svc := Service{Store: &stubStore{err: boom}, Enabled: true}
	require.ErrorIs(t, svc.Record(context.Background(), ActionBillDelete, "b1", 204, nil), boom)
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	require.NoError(t, err)
	require.Contains(t, names, "migrations/0001_bill_audit_log.up.sql")
	require.Contains(t, names, "migrations/0001_bill_audit_log.down.sql")
}

func TestMigrateURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/billing?sslmode=disable", migrateURL("postgres://u:p@db:5432/billing?sslmode=disable"))
	require.Equal(t, "pgx5://db/billing", migrateURL("postgresql://db/billing"))
	require.Equal(t, "pgx5://db/billing", migrateURL("pgx5://db/billing"))
}
