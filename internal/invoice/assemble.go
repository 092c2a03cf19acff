package invoice

import (
	"strings"
	"time"

	"github.com/noah-isme/erp-billing/internal/billing"
)

// Placeholders printed when a profile field is blank.
const (
	PlaceholderVendorName      = "Vendor Name"
	PlaceholderVendorAddress   = "Vendor Address"
	PlaceholderCustomerName    = "Customer Name"
	PlaceholderCustomerAddress = "Customer Address"
	PlaceholderGSTIN           = "GSTIN"
	PlaceholderState           = "State"
	PlaceholderContact         = "Contact"
	PlaceholderEmail           = "Email"
	PlaceholderBankName        = "Bank Name"
	PlaceholderAccountNumber   = "Account Number"
	PlaceholderIFSC            = "IFSC Code"
	PlaceholderBranch          = "Branch"
)

// BankDetails identifies the account a customer pays into.
type BankDetails struct {
	Name          string `json:"bankName"`
	AccountNumber string `json:"accountNumber"`
	IFSC          string `json:"ifsc"`
	Branch        string `json:"branch"`
}

// Vendor is the issuing company profile.
type Vendor struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	GSTIN   string      `json:"gstin"`
	Address string      `json:"address"`
	State   string      `json:"state"`
	Contact string      `json:"contact"`
	Email   string      `json:"email"`
	Bank    BankDetails `json:"bank"`
}

// Customer is the billed party profile.
type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	GSTIN   string `json:"gstin"`
	Address string `json:"address"`
	State   string `json:"state"`
	Contact string `json:"contact"`
	Email   string `json:"email"`
}

// Party is a printed company or client block.
type Party struct {
	Name    string `json:"name"`
	GSTIN   string `json:"gstin"`
	Address string `json:"address"`
	State   string `json:"state"`
	Contact string `json:"contact"`
	Email   string `json:"email"`
}

// Line is an invoice row. Amount is quantity * rate without tax; the tax
// amounts are carried in their own columns.
type Line struct {
	Description string  `json:"description"`
	HSNSAC      string  `json:"hsnSac"`
	Quantity    int64   `json:"quantity"`
	Rate        float64 `json:"rate"`
	SGST        float64 `json:"sgst"`
	CGST        float64 `json:"cgst"`
	IGST        float64 `json:"igst"`
	Amount      float64 `json:"amount"`
}

// Totals is the invoice footer.
type Totals struct {
	Subtotal      float64 `json:"subtotal"`
	SGST          float64 `json:"sgstTotal"`
	CGST          float64 `json:"cgstTotal"`
	IGST          float64 `json:"igstTotal"`
	GrandTotal    float64 `json:"grandTotal"`
	TotalQuantity int64   `json:"totalQuantity"`
}

// Document is everything the renderer reads. Every field is populated.
type Document struct {
	InvoiceNumber string      `json:"invoiceNumber"`
	InvoiceDate   string      `json:"invoiceDate"`
	PaymentStatus string      `json:"paymentStatus"`
	Currency      string      `json:"currency"`
	Company       Party       `json:"company"`
	Bank          BankDetails `json:"bank"`
	Client        Party       `json:"client"`
	Items         []Line      `json:"items"`
	Totals        Totals      `json:"totals"`
}

// Options tune document assembly.
type Options struct {
	// InvoiceNumber overrides the default of "INV-" + bill id.
	InvoiceNumber string
	Currency      string
	DateLayout    string
}

// Assemble maps a priced bill and its parties into a Document.
func Assemble(bill billing.PricedBill, vendor Vendor, customer Customer, opts Options) Document {
	doc := Document{
		InvoiceNumber: invoiceNumber(bill, opts),
		InvoiceDate:   formatDate(bill.BillDate, opts.DateLayout),
		PaymentStatus: orDefault(string(bill.PaymentStatus), string(billing.PaymentPending)),
		Currency:      orDefault(opts.Currency, "INR"),
		Company: Party{
			Name:    orDefault(firstNonBlank(vendor.Name, bill.VendorName), PlaceholderVendorName),
			GSTIN:   orDefault(vendor.GSTIN, PlaceholderGSTIN),
			Address: orDefault(vendor.Address, PlaceholderVendorAddress),
			State:   orDefault(vendor.State, PlaceholderState),
			Contact: orDefault(vendor.Contact, PlaceholderContact),
			Email:   orDefault(vendor.Email, PlaceholderEmail),
		},
		Bank: BankDetails{
			Name:          orDefault(vendor.Bank.Name, PlaceholderBankName),
			AccountNumber: orDefault(vendor.Bank.AccountNumber, PlaceholderAccountNumber),
			IFSC:          orDefault(vendor.Bank.IFSC, PlaceholderIFSC),
			Branch:        orDefault(vendor.Bank.Branch, PlaceholderBranch),
		},
		Client: Party{
			Name:    orDefault(firstNonBlank(customer.Name, bill.CustomerName), PlaceholderCustomerName),
			GSTIN:   orDefault(customer.GSTIN, PlaceholderGSTIN),
			Address: orDefault(customer.Address, PlaceholderCustomerAddress),
			State:   orDefault(customer.State, PlaceholderState),
			Contact: orDefault(customer.Contact, PlaceholderContact),
			Email:   orDefault(customer.Email, PlaceholderEmail),
		},
		Items: make([]Line, 0, len(bill.Items)),
	}

	for _, it := range bill.Items {
		line := Line{
			Description: it.Description,
			HSNSAC:      it.HSNSAC,
			Quantity:    billing.ParseQuantity(it.Quantity),
			Rate:        billing.ParseAmount(it.Rate),
			SGST:        it.SGSTAmount,
			CGST:        it.CGSTAmount,
			IGST:        it.IGSTAmount,
			Amount:      it.BaseAmount(),
		}
		doc.Items = append(doc.Items, line)
		doc.Totals.Subtotal += line.Amount
		doc.Totals.SGST += line.SGST
		doc.Totals.CGST += line.CGST
		doc.Totals.IGST += line.IGST
		doc.Totals.TotalQuantity += line.Quantity
	}
	doc.Totals.GrandTotal = doc.Totals.Subtotal + doc.Totals.SGST + doc.Totals.CGST + doc.Totals.IGST
	return doc
}

func invoiceNumber(bill billing.PricedBill, opts Options) string {
	if n := strings.TrimSpace(opts.InvoiceNumber); n != "" {
		return n
	}
	if id := strings.TrimSpace(bill.ID); id != "" {
		return "INV-" + id
	}
	return "INV-DRAFT"
}

func formatDate(value, layout string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	if layout == "" {
		layout = "02 Jan 2006"
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return value
	}
	return t.Format(layout)
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
