package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/erp-billing/internal/backend"
	"github.com/noah-isme/erp-billing/internal/billing"
	"github.com/noah-isme/erp-billing/internal/resilience"
)

func newClient(t *testing.T, h http.Handler) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cl, err := backend.New(backend.Config{BaseURL: srv.URL + "/api/", Token: "secret", MaxAttempts: 2, Timeout: time.Second})
	require.NoError(t, err)
	return cl
}

func TestListBillsForwardsPagingAndToken(t *testing.T) {
	cl := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/bills", r.URL.Path)
		require.Equal(t, "2", r.URL.Query().Get("page"))
		require.Equal(t, "10", r.URL.Query().Get("size"))
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"content":[{"id":"b1","vendorId":"v1","customerId":"c1","items":[],"totalAmount":1180,"totalQuantity":10}],"totalPages":3}`))
	}))

	page, err := cl.ListBills(context.Background(), 2, 10)
	require.NoError(t, err)
	require.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Content, 1)
	require.Equal(t, "b1", page.Content[0].ID)
	require.Equal(t, 1180.0, page.Content[0].TotalAmount)
}

func TestListBillsEmptyContent(t *testing.T) {
	cl := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"totalPages":0}`))
	}))
	page, err := cl.ListBills(context.Background(), 0, 0)
	require.NoError(t, err)
	require.NotNil(t, page.Content)
	require.Empty(t, page.Content)
}

func TestGetBillNotFound(t *testing.T) {
	cl := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/bills/missing", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	_, err := cl.GetBill(context.Background(), "missing")
	require.ErrorIs(t, err, backend.ErrNotFound)
}

func TestCreateBillSendsJSON(t *testing.T) {
	cl := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in billing.PricedBill
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		in.ID = "new-id"
		w.WriteHeader(http.StatusCreated)
		require.NoError(t, json.NewEncoder(w).Encode(in))
	}))

	priced := billing.PriceBill(billing.Bill{
		BillHeader: billing.BillHeader{VendorID: "v1", CustomerID: "c1", BillDate: "2024-04-01", PaymentStatus: billing.PaymentPending},
		Items:      []billing.LineItemDraft{{Quantity: "10", Rate: "100", SGSTRate: "9", CGSTRate: "9"}},
	})
	stored, err := cl.CreateBill(context.Background(), priced)
	require.NoError(t, err)
	require.Equal(t, "new-id", stored.ID)
	require.Equal(t, 1180.0, stored.TotalAmount)
	require.Equal(t, billing.Numeric("10"), stored.Items[0].Quantity)
}

func TestCreateBillIsSentOnceOnServerError(t *testing.T) {
	var posts atomic.Int32
	cl := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		if posts.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"dup"}`))
	}))

	_, err := cl.CreateBill(context.Background(), billing.PricedBill{})
	var statusErr *resilience.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	require.EqualValues(t, 1, posts.Load())
}

func TestUpdateBillRetriesServerError(t *testing.T) {
	var puts atomic.Int32
	cl := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		if puts.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"b1"}`))
	}))

	stored, err := cl.UpdateBill(context.Background(), "b1", billing.PricedBill{})
	require.NoError(t, err)
	require.Equal(t, "b1", stored.ID)
	require.EqualValues(t, 2, puts.Load())
}

func TestDeleteBillNoContent(t *testing.T) {
	cl := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	require.NoError(t, cl.DeleteBill(context.Background(), "b1"))
}

func TestClientErrorIsNotRetried(t *testing.T) {
	calls := 0
	cl := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`bad vendor`))
	}))
	_, err := cl.GetVendor(context.Background(), "v1")
	var respErr *backend.ResponseError
	require.ErrorAs(t, err, &respErr)
	require.Equal(t, http.StatusBadRequest, respErr.StatusCode)
	require.Equal(t, "bad vendor", respErr.Body)
	require.Equal(t, 1, calls)
}

func TestGetCustomerDecodesProfile(t *testing.T) {
	cl := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/customers/c1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"c1","name":"Acme","gstin":"29ABCDE1234F1Z5"}`))
	}))
	cust, err := cl.GetCustomer(context.Background(), "c1")
	require.NoError(t, err)
	require.Equal(t, "Acme", cust.Name)
	require.Equal(t, "29ABCDE1234F1Z5", cust.GSTIN)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := backend.New(backend.Config{})
	require.Error(t, err)
}
