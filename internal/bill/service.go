package bill

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/erp-billing/internal/audit"
	"github.com/noah-isme/erp-billing/internal/backend"
	"github.com/noah-isme/erp-billing/internal/billing"
	"github.com/noah-isme/erp-billing/internal/common"
	"github.com/noah-isme/erp-billing/internal/invoice"
	"github.com/noah-isme/erp-billing/internal/notify"
	"github.com/noah-isme/erp-billing/internal/obs"
)

// Store is the persistence backend for bills.
type Store interface {
	ListBills(ctx context.Context, page, size int) (backend.Page[billing.PricedBill], error)
	GetBill(ctx context.Context, id string) (billing.PricedBill, error)
	CreateBill(ctx context.Context, bill billing.PricedBill) (billing.PricedBill, error)
	UpdateBill(ctx context.Context, id string, bill billing.PricedBill) (billing.PricedBill, error)
	DeleteBill(ctx context.Context, id string) error
}

// Auditor records bill changes.
type Auditor interface {
	Record(ctx context.Context, action audit.Action, billID string, status int, metadata map[string]any) error
}

// Notifier publishes bill notifications.
type Notifier interface {
	Publish(ctx context.Context, kind string, bill billing.PricedBill) error
}

// PartyResolver loads the vendor and customer printed on an invoice.
type PartyResolver interface {
	ForBill(ctx context.Context, bill billing.PricedBill) (invoice.Vendor, invoice.Customer, error)
}

// Service prices, stores and invoices bills.
type Service struct {
	Store          Store
	Validator      *Validator
	Audit          Auditor
	Notifier       Notifier
	Parties        PartyResolver
	Renderer       invoice.PDFRenderer
	InvoiceOptions invoice.Options
	Metrics        *obs.BillingMetrics
	Logger         zerolog.Logger
}

var tracer = otel.Tracer("erp-billing/bill")

// Price runs the calculator over draft without storing anything.
func (s *Service) Price(ctx context.Context, draft billing.Bill) billing.PricedBill {
	_, span := tracer.Start(ctx, "bill.Price")
	defer span.End()
	priced := s.price("price", draft)
	span.SetAttributes(attribute.Int("bill.lines", len(priced.Items)))
	return priced
}

// List returns a page of stored bills.
func (s *Service) List(ctx context.Context, q common.PageQuery) (backend.Page[billing.PricedBill], error) {
	ctx, span := tracer.Start(ctx, "bill.List")
	defer span.End()
	page, err := s.Store.ListBills(ctx, q.Page, q.Size)
	if err != nil {
		return backend.Page[billing.PricedBill]{}, s.fail(span, mapBackendErr(err))
	}
	return page, nil
}

// Get returns a stored bill.
func (s *Service) Get(ctx context.Context, id string) (billing.PricedBill, error) {
	ctx, span := tracer.Start(ctx, "bill.Get", trace.WithAttributes(attribute.String("bill.id", id)))
	defer span.End()
	b, err := s.Store.GetBill(ctx, id)
	if err != nil {
		return billing.PricedBill{}, s.fail(span, mapBackendErr(err))
	}
	return b, nil
}

// Create validates, prices and stores a new bill.
func (s *Service) Create(ctx context.Context, draft billing.Bill) (billing.PricedBill, error) {
	ctx, span := tracer.Start(ctx, "bill.Create")
	defer span.End()
	if err := s.validate(draft); err != nil {
		return billing.PricedBill{}, s.fail(span, err)
	}
	draft.ID = ""
	saved, err := s.Store.CreateBill(ctx, s.price("create", draft))
	if err != nil {
		return billing.PricedBill{}, s.fail(span, mapBackendErr(err))
	}
	span.SetAttributes(attribute.String("bill.id", saved.ID))
	s.afterSave(ctx, audit.ActionBillCreate, http.StatusCreated, nil, saved)
	return saved, nil
}

// Update validates, reprices and replaces the bill with id.
func (s *Service) Update(ctx context.Context, id string, draft billing.Bill) (billing.PricedBill, error) {
	ctx, span := tracer.Start(ctx, "bill.Update", trace.WithAttributes(attribute.String("bill.id", id)))
	defer span.End()
	if err := s.validate(draft); err != nil {
		return billing.PricedBill{}, s.fail(span, err)
	}
	previous, err := s.Store.GetBill(ctx, id)
	if err != nil {
		return billing.PricedBill{}, s.fail(span, mapBackendErr(err))
	}
	draft.ID = id
	saved, err := s.Store.UpdateBill(ctx, id, s.price("update", draft))
	if err != nil {
		return billing.PricedBill{}, s.fail(span, mapBackendErr(err))
	}
	if saved.ID == "" {
		saved.ID = id
	}
	s.afterSave(ctx, audit.ActionBillUpdate, http.StatusOK, &previous, saved)
	return saved, nil
}

// Delete removes the bill with id.
func (s *Service) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "bill.Delete", trace.WithAttributes(attribute.String("bill.id", id)))
	defer span.End()
	if err := s.Store.DeleteBill(ctx, id); err != nil {
		return s.fail(span, mapBackendErr(err))
	}
	s.record(ctx, audit.ActionBillDelete, id, http.StatusNoContent, nil)
	return nil
}

// Invoice assembles the printable invoice for the bill with id.
func (s *Service) Invoice(ctx context.Context, id string) (invoice.Document, error) {
	ctx, span := tracer.Start(ctx, "bill.Invoice", trace.WithAttributes(attribute.String("bill.id", id)))
	defer span.End()
	start := time.Now()
	doc, err := s.document(ctx, id)
	s.Metrics.ObserveRender("json", time.Since(start), err)
	if err != nil {
		return invoice.Document{}, s.fail(span, err)
	}
	return doc, nil
}

// InvoicePDF renders the invoice for the bill with id.
func (s *Service) InvoicePDF(ctx context.Context, id string) ([]byte, invoice.Document, error) {
	ctx, span := tracer.Start(ctx, "bill.InvoicePDF", trace.WithAttributes(attribute.String("bill.id", id)))
	defer span.End()
	start := time.Now()
	doc, err := s.document(ctx, id)
	if err != nil {
		s.Metrics.ObserveRender("pdf", time.Since(start), err)
		return nil, invoice.Document{}, s.fail(span, err)
	}
	var buf bytes.Buffer
	pages, err := s.Renderer.Render(&buf, doc)
	s.Metrics.ObserveRender("pdf", time.Since(start), err)
	if err != nil {
		return nil, invoice.Document{}, s.fail(span, common.NewAppError(common.CodeInternal, "unable to render invoice", http.StatusInternalServerError, err))
	}
	span.SetAttributes(attribute.Int("invoice.pages", pages))
	return buf.Bytes(), doc, nil
}

func (s *Service) document(ctx context.Context, id string) (invoice.Document, error) {
	b, err := s.Store.GetBill(ctx, id)
	if err != nil {
		return invoice.Document{}, mapBackendErr(err)
	}
	// invoices print totals recomputed from the lines
	priced := billing.PriceBill(b.Draft())
	var (
		vendor   invoice.Vendor
		customer invoice.Customer
	)
	if s.Parties != nil {
		vendor, customer, err = s.Parties.ForBill(ctx, priced)
		if err != nil {
			return invoice.Document{}, mapBackendErr(err)
		}
	}
	return invoice.Assemble(priced, vendor, customer, s.InvoiceOptions), nil
}

func (s *Service) price(operation string, draft billing.Bill) billing.PricedBill {
	priced := billing.PriceBill(draft)
	zero := priced.ZeroAmountLines()
	s.Metrics.ObservePriced(operation, len(zero))
	if len(zero) > 0 {
		s.Logger.Debug().Str("operation", operation).Ints("lines", zero).Msg("bill has zero-amount lines")
	}
	return priced
}

func (s *Service) validate(draft billing.Bill) error {
	if s.Validator == nil {
		return nil
	}
	return s.Validator.Validate(draft)
}

func (s *Service) afterSave(ctx context.Context, action audit.Action, status int, previous *billing.PricedBill, saved billing.PricedBill) {
	s.record(ctx, action, saved.ID, status, map[string]any{
		"totalAmount":   saved.TotalAmount,
		"totalQuantity": saved.TotalQuantity,
		"lines":         len(saved.Items),
		"paymentStatus": saved.PaymentStatus,
	})
	if s.Notifier == nil {
		return
	}
	kind := notify.KindFor(previous, saved)
	if err := s.Notifier.Publish(ctx, kind, saved); err != nil {
		s.logger(ctx).Error().Err(err).Str("bill_id", saved.ID).Str("notification", kind).Msg("notification enqueue failed")
	}
}

func (s *Service) record(ctx context.Context, action audit.Action, billID string, status int, metadata map[string]any) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Record(ctx, action, billID, status, metadata); err != nil {
		s.logger(ctx).Error().Err(err).Str("bill_id", billID).Str("action", string(action)).Msg("audit record failed")
	}
}

func (s *Service) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.Logger
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func mapBackendErr(err error) error {
	if err == nil || common.IsAppError(err) {
		return err
	}
	if errors.Is(err, backend.ErrNotFound) {
		return common.NotFound("bill", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return common.NewAppError(common.CodeUpstream, "backend timed out", http.StatusGatewayTimeout, err)
	}
	var respErr *backend.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode >= 400 && respErr.StatusCode < 500 {
		return common.NewAppError(common.CodeBadRequest, "backend rejected the bill", respErr.StatusCode, err)
	}
	return common.Upstream("backend unavailable", err)
}
