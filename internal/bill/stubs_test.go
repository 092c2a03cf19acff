package bill_test

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/noah-isme/erp-billing/internal/audit"
	"github.com/noah-isme/erp-billing/internal/backend"
	"github.com/noah-isme/erp-billing/internal/billing"
	"github.com/noah-isme/erp-billing/internal/invoice"
)

type memStore struct {
	mu    sync.Mutex
	bills map[string]billing.PricedBill
	order []string
	next  int
	err   error
}

func newMemStore() *memStore {
	return &memStore{bills: map[string]billing.PricedBill{}}
}

func (m *memStore) ListBills(_ context.Context, page, size int) (backend.Page[billing.PricedBill], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return backend.Page[billing.PricedBill]{}, m.err
	}
	out := backend.Page[billing.PricedBill]{Content: []billing.PricedBill{}}
	if size <= 0 {
		size = 20
	}
	out.TotalPages = (len(m.order) + size - 1) / size
	for i := page * size; i < len(m.order) && i < (page+1)*size; i++ {
		out.Content = append(out.Content, m.bills[m.order[i]])
	}
	return out, nil
}

func (m *memStore) GetBill(_ context.Context, id string) (billing.PricedBill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return billing.PricedBill{}, m.err
	}
	b, ok := m.bills[id]
	if !ok {
		return billing.PricedBill{}, backend.ErrNotFound
	}
	return b, nil
}

func (m *memStore) CreateBill(_ context.Context, b billing.PricedBill) (billing.PricedBill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return billing.PricedBill{}, m.err
	}
	m.next++
	b.ID = "b" + strconv.Itoa(m.next)
	m.bills[b.ID] = b
	m.order = append(m.order, b.ID)
	return b, nil
}

func (m *memStore) UpdateBill(_ context.Context, id string, b billing.PricedBill) (billing.PricedBill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bills[id]; !ok {
		return billing.PricedBill{}, backend.ErrNotFound
	}
	m.bills[id] = b
	return b, nil
}

func (m *memStore) DeleteBill(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bills[id]; !ok {
		return backend.ErrNotFound
	}
	delete(m.bills, id)
	return nil
}

type auditCall struct {
	Action audit.Action
	BillID string
	Status int
}

type stubAuditor struct {
	calls []auditCall
	err   error
}

func (s *stubAuditor) Record(_ context.Context, action audit.Action, billID string, status int, _ map[string]any) error {
	s.calls = append(s.calls, auditCall{action, billID, status})
	return s.err
}

type published struct {
	Kind   string
	BillID string
}

type stubNotifier struct {
	sent []published
	err  error
}

func (s *stubNotifier) Publish(_ context.Context, kind string, b billing.PricedBill) error {
	s.sent = append(s.sent, published{kind, b.ID})
	return s.err
}

type stubParties struct {
	vendor   invoice.Vendor
	customer invoice.Customer
}

func (s stubParties) ForBill(context.Context, billing.PricedBill) (invoice.Vendor, invoice.Customer, error) {
	return s.vendor, s.customer, nil
}

var errBackendDown = errors.New("dial tcp: connection refused")
