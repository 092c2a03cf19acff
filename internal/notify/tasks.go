package notify

import (
	"encoding/json"
	"fmt"

	"github.com/noah-isme/erp-billing/internal/billing"
)

// Task types handled by the worker.
const (
	TypeBillCreated = "bill_created"
	TypeBillUpdated = "bill_updated"
	TypeBillPaid    = "bill_paid"
)

// QueueName is the asynq queue notifications are published to.
const QueueName = "notifications"

// BillPayload is the task body. Recipients are resolved by the worker.
type BillPayload struct {
	BillID        string  `json:"billId"`
	VendorID      string  `json:"vendorId"`
	VendorName    string  `json:"vendorName,omitempty"`
	CustomerID    string  `json:"customerId"`
	CustomerName  string  `json:"customerName,omitempty"`
	BillDate      string  `json:"billDate"`
	PaymentStatus string  `json:"paymentStatus"`
	TotalAmount   float64 `json:"totalAmount"`
	TotalQuantity int64   `json:"totalQuantity"`
	LineCount     int     `json:"lineCount"`
}

// PayloadFor captures the fields of a priced bill the emails print.
func PayloadFor(bill billing.PricedBill) BillPayload {
	return BillPayload{
		BillID:        bill.ID,
		VendorID:      bill.VendorID,
		VendorName:    bill.VendorName,
		CustomerID:    bill.CustomerID,
		CustomerName:  bill.CustomerName,
		BillDate:      bill.BillDate,
		PaymentStatus: string(bill.PaymentStatus),
		TotalAmount:   bill.TotalAmount,
		TotalQuantity: bill.TotalQuantity,
		LineCount:     len(bill.Items),
	}
}

// KindFor picks the notification for a saved bill. A bill moving from
// Pending to Paid announces the payment rather than a plain update.
func KindFor(previous *billing.PricedBill, saved billing.PricedBill) string {
	if previous == nil {
		return TypeBillCreated
	}
	if previous.PaymentStatus != billing.PaymentPaid && saved.PaymentStatus == billing.PaymentPaid {
		return TypeBillPaid
	}
	return TypeBillUpdated
}

func decodePayload(data []byte) (BillPayload, error) {
	var p BillPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return BillPayload{}, fmt.Errorf("notify: decode payload: %w", err)
	}
	if p.BillID == "" {
		return BillPayload{}, fmt.Errorf("notify: payload missing bill id")
	}
	return p, nil
}
