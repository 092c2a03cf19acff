package audit

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/noah-isme/erp-billing/internal/obs"
)

// Action names an audited bill change.
type Action string

const (
	ActionBillCreate Action = "bill.create"
	ActionBillUpdate Action = "bill.update"
	ActionBillDelete Action = "bill.delete"
)

// Entry is one audit record.
type Entry struct {
	ID        uuid.UUID       `json:"id"`
	Action    Action          `json:"action"`
	BillID    string          `json:"billId"`
	Status    int             `json:"status"`
	RequestID string          `json:"requestId,omitempty"`
	Route     string          `json:"route,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Store defines the persistence operations required for auditing.
type Store interface {
	Insert(ctx context.Context, e Entry) error
	ListForBill(ctx context.Context, billID string, limit, offset int) ([]Entry, error)
}

// Service records bill changes when auditing is enabled.
type Service struct {
	Store        Store
	Enabled      bool
	SamplingRate float64
	Now          func() time.Time
}

// Record persists an audit entry. Request id and route are taken from ctx.
func (s Service) Record(ctx context.Context, action Action, billID string, status int, metadata map[string]any) error {
	if !s.Enabled {
		return nil
	}
	if s.SamplingRate > 0 && s.SamplingRate < 1 && rand.Float64() > s.SamplingRate {
		return nil
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}
	if strings.TrimSpace(string(action)) == "" {
		return errors.New("audit: action is required")
	}

	var raw json.RawMessage
	if len(metadata) > 0 {
		data, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		raw = data
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	if status == 0 {
		status = 200
	}
	return s.Store.Insert(ctx, Entry{
		ID:        uuid.New(),
		Action:    action,
		BillID:    strings.TrimSpace(billID),
		Status:    status,
		RequestID: middleware.GetReqID(ctx),
		Route:     obs.RoutePatternFromContext(ctx),
		Metadata:  raw,
		CreatedAt: now().UTC(),
	})
}

// List returns audit entries for a bill.
func (s Service) List(ctx context.Context, billID string, limit, offset int) ([]Entry, error) {
	if s.Store == nil || !s.Enabled {
		return []Entry{}, nil
	}
	return s.Store.ListForBill(ctx, billID, limit, offset)
}
