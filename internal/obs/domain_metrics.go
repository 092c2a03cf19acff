package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BillingMetrics counts pricing, invoice and notification outcomes. A nil
// *BillingMetrics records nothing.
type BillingMetrics struct {
	BillsPriced     *prometheus.CounterVec
	ZeroAmountLines *prometheus.CounterVec
	InvoiceRender   *prometheus.CounterVec
	InvoiceDuration *prometheus.HistogramVec
	Notifications   *prometheus.CounterVec
}

// NewBillingMetrics registers the billing collectors on reg.
func NewBillingMetrics(namespace string, reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &BillingMetrics{
		BillsPriced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bills_priced_total",
			Help:      "Bills run through the calculator by operation.",
		}, []string{"operation"}),
		ZeroAmountLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bill_zero_amount_lines_total",
			Help:      "Priced lines whose total came out zero, usually from unparseable input.",
		}, []string{"operation"}),
		InvoiceRender: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_render_total",
			Help:      "Invoice renders by format and result.",
		}, []string{"format", "result"}),
		InvoiceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invoice_render_duration_ms",
			Help:      "Invoice render latency in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"format"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_total",
			Help:      "Bill notifications by kind and result.",
		}, []string{"kind", "result"}),
	}
	m.BillsPriced = mustRegister(reg, m.BillsPriced)
	m.ZeroAmountLines = mustRegister(reg, m.ZeroAmountLines)
	m.InvoiceRender = mustRegister(reg, m.InvoiceRender)
	m.InvoiceDuration = mustRegister(reg, m.InvoiceDuration)
	m.Notifications = mustRegister(reg, m.Notifications)
	return m
}

// ObservePriced records one priced bill and its zero-amount lines.
func (m *BillingMetrics) ObservePriced(operation string, zeroLines int) {
	if m == nil {
		return
	}
	m.BillsPriced.WithLabelValues(operation).Inc()
	if zeroLines > 0 {
		m.ZeroAmountLines.WithLabelValues(operation).Add(float64(zeroLines))
	}
}

// ObserveRender records an invoice render.
func (m *BillingMetrics) ObserveRender(format string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.InvoiceRender.WithLabelValues(format, result(err)).Inc()
	m.InvoiceDuration.WithLabelValues(format).Observe(DurationMillis(took))
}

// ObserveNotification records a notification enqueue or delivery outcome.
func (m *BillingMetrics) ObserveNotification(kind string, err error) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(kind, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
