package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/erp-billing/internal/backend"
	"github.com/noah-isme/erp-billing/internal/common"
	"github.com/noah-isme/erp-billing/internal/invoice"
	"github.com/noah-isme/erp-billing/internal/obs"
)

// Profiles resolves the parties named on a bill.
type Profiles interface {
	Vendor(ctx context.Context, id string) (invoice.Vendor, error)
	Customer(ctx context.Context, id string) (invoice.Customer, error)
}

// Handler delivers bill notification tasks as email.
type Handler struct {
	Mail      common.EmailSender
	Profiles  Profiles
	Replay    ReplayProtector
	ReplayTTL time.Duration
	Metrics   *obs.BillingMetrics
	Logger    zerolog.Logger
}

// NewServeMux routes every bill task type to h.
func NewServeMux(h *Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeBillCreated, h)
	mux.Handle(TypeBillUpdated, h)
	mux.Handle(TypeBillPaid, h)
	return mux
}

// ProcessTask implements asynq.Handler.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) (err error) {
	kind := t.Type()
	defer func() { h.Metrics.ObserveNotification(kind, err) }()

	payload, err := decodePayload(t.Payload())
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	if h.Mail == nil {
		return errors.New("notify: email sender not configured")
	}

	view := View{BillPayload: payload, Vendor: payload.VendorName, Customer: payload.CustomerName}
	if h.Profiles != nil {
		if err := h.fillParties(ctx, &view); err != nil {
			return err
		}
	}
	logger := h.Logger.With().Str("task", kind).Str("bill_id", payload.BillID).Logger()
	if view.Recipient == "" {
		logger.Info().Msg("notification skipped: customer has no email")
		return nil
	}
	if view.Vendor == "" {
		view.Vendor = invoice.PlaceholderVendorName
	}
	if view.Customer == "" {
		view.Customer = invoice.PlaceholderCustomerName
	}

	msg, err := Render(kind, view)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	key := replayKey(ctx, kind, payload.BillID)
	if h.Replay != nil && key != "" {
		ok, err := h.Replay.Acquire(ctx, key, h.replayTTL())
		if err != nil {
			logger.Warn().Err(err).Msg("replay guard unavailable")
		} else if !ok {
			logger.Info().Msg("notification already delivered")
			return nil
		}
	}

	err = h.Mail.Send(ctx, common.Email{
		To:      view.Recipient,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
		Tags:    map[string]string{"category": "billing", "notification": kind},
	})
	if err != nil {
		if h.Replay != nil && key != "" {
			_ = h.Replay.Release(ctx, key)
		}
		return fmt.Errorf("notify: send %s: %w", kind, err)
	}
	logger.Info().Str("to", view.Recipient).Msg("notification sent")
	return nil
}

func (h *Handler) fillParties(ctx context.Context, view *View) error {
	customer, err := h.Profiles.Customer(ctx, view.CustomerID)
	switch {
	case errors.Is(err, backend.ErrNotFound):
	case err != nil:
		return fmt.Errorf("notify: resolve customer: %w", err)
	default:
		view.Recipient = strings.TrimSpace(customer.Email)
		if customer.Name != "" {
			view.Customer = customer.Name
		}
	}
	vendor, err := h.Profiles.Vendor(ctx, view.VendorID)
	switch {
	case errors.Is(err, backend.ErrNotFound):
	case err != nil:
		return fmt.Errorf("notify: resolve vendor: %w", err)
	default:
		if vendor.Name != "" {
			view.Vendor = vendor.Name
		}
	}
	return nil
}

func (h *Handler) replayTTL() time.Duration {
	if h.ReplayTTL <= 0 {
		return 24 * time.Hour
	}
	return h.ReplayTTL
}

func replayKey(ctx context.Context, kind, billID string) string {
	id, ok := asynq.GetTaskID(ctx)
	if !ok || id == "" {
		return ""
	}
	return fmt.Sprintf("notify:%s:%s:%s", kind, billID, id)
}
