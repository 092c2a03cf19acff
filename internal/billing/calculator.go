package billing

import (
	"golang.org/x/sync/errgroup"
)

// PaymentStatus is the settlement state of a bill.
type PaymentStatus string

const (
	// PaymentPending marks a bill that has not been settled.
	PaymentPending PaymentStatus = "Pending"
	// PaymentPaid marks a settled bill.
	PaymentPaid PaymentStatus = "Paid"
)

// LineItemDraft is one bill row as entered in the form. Numeric fields are kept
// as text; SGST/CGST and IGST rates may all be set on the same row.
type LineItemDraft struct {
	Description string  `json:"description"`
	HSNSAC      string  `json:"hsnSac"`
	Quantity    Numeric `json:"quantity" validate:"omitempty,number"`
	Rate        Numeric `json:"rate" validate:"omitempty,numeric"`
	SGSTRate    Numeric `json:"sgstRate" validate:"omitempty,percent"`
	CGSTRate    Numeric `json:"cgstRate" validate:"omitempty,percent"`
	IGSTRate    Numeric `json:"igstRate" validate:"omitempty,percent"`
}

// PricedLineItem is a draft row with its tax amounts and tax-inclusive total.
type PricedLineItem struct {
	LineItemDraft
	SGSTAmount  float64 `json:"sgstAmount"`
	CGSTAmount  float64 `json:"cgstAmount"`
	IGSTAmount  float64 `json:"igstAmount"`
	TotalAmount float64 `json:"totalAmount"`
}

// BaseAmount returns quantity * rate, the tax-exclusive amount. TotalAmount
// folds tax in; invoices print BaseAmount and the tax columns separately.
func (p PricedLineItem) BaseAmount() float64 {
	return float64(ParseQuantity(p.Quantity)) * ParseAmount(p.Rate)
}

// BillHeader carries the identifying fields shared by drafts and priced bills.
type BillHeader struct {
	ID            string        `json:"id,omitempty"`
	VendorID      string        `json:"vendorId" validate:"required"`
	VendorName    string        `json:"vendorName"`
	CustomerID    string        `json:"customerId" validate:"required"`
	CustomerName  string        `json:"customerName"`
	BillDate      string        `json:"billDate" validate:"required,datetime=2006-01-02"`
	PaymentStatus PaymentStatus `json:"paymentStatus" validate:"required,oneof=Pending Paid"`
}

// Bill is a draft bill owned by the caller.
type Bill struct {
	BillHeader
	Items []LineItemDraft `json:"items" validate:"min=1,dive"`
}

// PricedBill is a bill with every line priced and the aggregates derived.
type PricedBill struct {
	BillHeader
	Items         []PricedLineItem `json:"items"`
	TotalAmount   float64          `json:"totalAmount"`
	TotalQuantity int64            `json:"totalQuantity"`
}

// TaxTotals aggregates the columns of an invoice footer.
type TaxTotals struct {
	Taxable float64 `json:"taxable"`
	SGST    float64 `json:"sgst"`
	CGST    float64 `json:"cgst"`
	IGST    float64 `json:"igst"`
}

// PriceLineItem prices a single row. It never fails: unparseable numbers count
// as zero.
func PriceLineItem(draft LineItemDraft) PricedLineItem {
	qty := ParseQuantity(draft.Quantity)
	rate := ParseAmount(draft.Rate)
	base := float64(qty) * rate

	sgst := base * ParseRate(draft.SGSTRate)
	cgst := base * ParseRate(draft.CGSTRate)
	igst := base * ParseRate(draft.IGSTRate)

	return PricedLineItem{
		LineItemDraft: draft,
		SGSTAmount:    sgst,
		CGSTAmount:    cgst,
		IGSTAmount:    igst,
		TotalAmount:   base + sgst + cgst + igst,
	}
}

// PriceBill prices every row in order and derives the bill totals. The input
// is left untouched.
func PriceBill(draft Bill) PricedBill {
	out := PricedBill{
		BillHeader: draft.BillHeader,
		Items:      make([]PricedLineItem, 0, len(draft.Items)),
	}
	for _, item := range draft.Items {
		priced := PriceLineItem(item)
		out.Items = append(out.Items, priced)
		out.TotalQuantity += ParseQuantity(item.Quantity)
		out.TotalAmount += priced.TotalAmount
	}
	return out
}

// PriceBills prices a batch with at most concurrency bills in flight. The
// result is index-aligned with drafts.
func PriceBills(drafts []Bill, concurrency int) []PricedBill {
	out := make([]PricedBill, len(drafts))
	if concurrency <= 0 {
		concurrency = 1
	}
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i := range drafts {
		g.Go(func() error {
			out[i] = PriceBill(drafts[i])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Draft strips the derived fields so the bill can be repriced.
func (b PricedBill) Draft() Bill {
	items := make([]LineItemDraft, len(b.Items))
	for i, it := range b.Items {
		items[i] = it.LineItemDraft
	}
	return Bill{BillHeader: b.BillHeader, Items: items}
}

// TaxTotals sums the taxable base and each tax column.
func (b PricedBill) TaxTotals() TaxTotals {
	var t TaxTotals
	for _, it := range b.Items {
		t.Taxable += it.BaseAmount()
		t.SGST += it.SGSTAmount
		t.CGST += it.CGSTAmount
		t.IGST += it.IGSTAmount
	}
	return t
}

// ZeroAmountLines returns the indexes of rows whose total degraded to zero.
func (b PricedBill) ZeroAmountLines() []int {
	var idx []int
	for i, it := range b.Items {
		if it.TotalAmount == 0 {
			idx = append(idx, i)
		}
	}
	return idx
}
