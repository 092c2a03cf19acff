// Package reprice recomputes stored bills and reports the ones whose totals
// no longer match the calculator.
package reprice

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/noah-isme/erp-billing/internal/backend"
	"github.com/noah-isme/erp-billing/internal/billing"
)

// Store lists and rewrites bills.
type Store interface {
	ListBills(ctx context.Context, page, size int) (backend.Page[billing.PricedBill], error)
	UpdateBill(ctx context.Context, id string, bill billing.PricedBill) (billing.PricedBill, error)
}

// Drift describes one bill whose stored figures disagree with a fresh pricing.
type Drift struct {
	BillID             string  `json:"billId"`
	StoredTotal        float64 `json:"storedTotal"`
	RecomputedTotal    float64 `json:"recomputedTotal"`
	StoredQuantity     int64   `json:"storedQuantity"`
	RecomputedQuantity int64   `json:"recomputedQuantity"`
	Lines              []int   `json:"lines,omitempty"`
}

// Report summarises a run.
type Report struct {
	Pages   int     `json:"pages"`
	Scanned int     `json:"scanned"`
	Drifted []Drift `json:"drifted"`
	Applied int     `json:"applied"`
	Failed  int     `json:"failed"`
}

// Runner walks every page of bills.
type Runner struct {
	Store       Store
	PageSize    int
	Concurrency int
	Apply       bool
	Tolerance   float64
	Logger      zerolog.Logger
}

const (
	defaultPageSize  = 100
	defaultTolerance = 0.005
)

// Run scans every page starting at page zero. With Apply set, drifted bills
// are written back with the recomputed figures; a failed write is counted and
// logged but does not stop the scan.
func (r Runner) Run(ctx context.Context) (Report, error) {
	if r.Store == nil {
		return Report{}, errors.New("reprice: store not configured")
	}
	size := r.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	tol := r.Tolerance
	if tol <= 0 {
		tol = defaultTolerance
	}

	report := Report{Drifted: []Drift{}}
	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := r.Store.ListBills(ctx, page, size)
		if err != nil {
			return report, fmt.Errorf("reprice: list page %d: %w", page, err)
		}
		report.Pages++
		if len(res.Content) == 0 {
			break
		}

		drafts := make([]billing.Bill, len(res.Content))
		for i, b := range res.Content {
			drafts[i] = b.Draft()
		}
		fresh := billing.PriceBills(drafts, r.Concurrency)

		for i, stored := range res.Content {
			report.Scanned++
			d, drifted := compare(stored, fresh[i], tol)
			if !drifted {
				continue
			}
			report.Drifted = append(report.Drifted, d)
			r.Logger.Info().
				Str("bill_id", d.BillID).
				Float64("stored_total", d.StoredTotal).
				Float64("recomputed_total", d.RecomputedTotal).
				Ints("lines", d.Lines).
				Msg("bill drift")
			if !r.Apply {
				continue
			}
			if _, err := r.Store.UpdateBill(ctx, stored.ID, fresh[i]); err != nil {
				report.Failed++
				r.Logger.Error().Err(err).Str("bill_id", stored.ID).Msg("write repriced bill")
				continue
			}
			report.Applied++
		}

		if page+1 >= res.TotalPages {
			break
		}
	}
	return report, nil
}

func compare(stored, fresh billing.PricedBill, tol float64) (Drift, bool) {
	d := Drift{
		BillID:             stored.ID,
		StoredTotal:        stored.TotalAmount,
		RecomputedTotal:    fresh.TotalAmount,
		StoredQuantity:     stored.TotalQuantity,
		RecomputedQuantity: fresh.TotalQuantity,
	}
	for i := range fresh.Items {
		if !near(stored.Items[i].TotalAmount, fresh.Items[i].TotalAmount, tol) ||
			!near(stored.Items[i].SGSTAmount, fresh.Items[i].SGSTAmount, tol) ||
			!near(stored.Items[i].CGSTAmount, fresh.Items[i].CGSTAmount, tol) ||
			!near(stored.Items[i].IGSTAmount, fresh.Items[i].IGSTAmount, tol) {
			d.Lines = append(d.Lines, i)
		}
	}
	drifted := len(d.Lines) > 0 ||
		!near(d.StoredTotal, d.RecomputedTotal, tol) ||
		d.StoredQuantity != d.RecomputedQuantity
	return d, drifted
}

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
