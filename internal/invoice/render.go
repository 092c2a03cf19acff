package invoice

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// column widths in mm for the item table; they add up to the A4 printable width
var columns = []struct {
	title string
	width float64
	align string
}{
	{"#", 8, "C"},
	{"Description", 52, "L"},
	{"HSN/SAC", 20, "C"},
	{"Qty", 14, "R"},
	{"Rate", 20, "R"},
	{"SGST", 18, "R"},
	{"CGST", 18, "R"},
	{"IGST", 18, "R"},
	{"Amount", 22, "R"},
}

const (
	rowHeight = 7.0
	margin    = 10.0
)

// PDFRenderer renders invoice documents as A4 PDFs.
type PDFRenderer struct {
	Title    string
	Compress bool
}

// Render writes doc to w and returns the number of pages produced.
func (r PDFRenderer) Render(w io.Writer, doc Document) (int, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.Compress)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AliasNbPages("")
	title := r.Title
	if title == "" {
		title = "Tax Invoice"
	}
	pdf.SetTitle(title+" "+doc.InvoiceNumber, true)
	pdf.SetCreator("erp-billing", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	inTable := false
	pdf.SetHeaderFunc(func() {
		if !inTable {
			return
		}
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s %s (continued)", title, doc.InvoiceNumber)), "", 1, "R", false, 0, "")
		tableHeader(pdf)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(95, 6, tr("Invoice No: "+doc.InvoiceNumber), "", 0, "L", false, 0, "")
	pdf.CellFormat(95, 6, tr("Date: "+doc.InvoiceDate), "", 1, "R", false, 0, "")
	pdf.CellFormat(95, 6, tr("Status: "+doc.PaymentStatus), "", 0, "L", false, 0, "")
	pdf.CellFormat(95, 6, tr("Currency: "+doc.Currency), "", 1, "R", false, 0, "")
	pdf.Ln(3)

	partyBlocks(pdf, tr, doc)
	pdf.Ln(4)

	tableHeader(pdf)
	inTable = true
	pdf.SetFont("Arial", "", 9)
	for i, line := range doc.Items {
		cells := []string{
			strconv.Itoa(i + 1),
			fit(pdf, tr(line.Description), columns[1].width-2),
			tr(line.HSNSAC),
			strconv.FormatInt(line.Quantity, 10),
			money(line.Rate),
			money(line.SGST),
			money(line.CGST),
			money(line.IGST),
			money(line.Amount),
		}
		for c, col := range columns {
			pdf.CellFormat(col.width, rowHeight, cells[c], "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	inTable = false

	totalsBlock(pdf, doc.Totals)
	pdf.Ln(4)
	bankBlock(pdf, tr, doc.Bank)

	if err := pdf.Output(w); err != nil {
		return 0, fmt.Errorf("invoice: render pdf: %w", err)
	}
	return pdf.PageCount(), nil
}

func tableHeader(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range columns {
		pdf.CellFormat(col.width, rowHeight, col.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
}

func partyBlocks(pdf *gofpdf.Fpdf, tr func(string) string, doc Document) {
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(95, 6, "From", "", 0, "L", false, 0, "")
	pdf.CellFormat(95, 6, "Bill To", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	rows := [][2]string{
		{doc.Company.Name, doc.Client.Name},
		{"GSTIN: " + doc.Company.GSTIN, "GSTIN: " + doc.Client.GSTIN},
		{doc.Company.Address, doc.Client.Address},
		{doc.Company.State, doc.Client.State},
		{doc.Company.Contact, doc.Client.Contact},
		{doc.Company.Email, doc.Client.Email},
	}
	for _, row := range rows {
		pdf.CellFormat(95, 5, fit(pdf, tr(row[0]), 93), "", 0, "L", false, 0, "")
		pdf.CellFormat(95, 5, fit(pdf, tr(row[1]), 93), "", 1, "L", false, 0, "")
	}
}

func totalsBlock(pdf *gofpdf.Fpdf, t Totals) {
	labelWidth := 40.0
	valueWidth := 30.0
	offset := 190 - labelWidth - valueWidth
	rows := [][2]string{
		{"Total Quantity", strconv.FormatInt(t.TotalQuantity, 10)},
		{"Subtotal", money(t.Subtotal)},
		{"SGST", money(t.SGST)},
		{"CGST", money(t.CGST)},
		{"IGST", money(t.IGST)},
		{"Grand Total", money(t.GrandTotal)},
	}
	pdf.Ln(2)
	for i, row := range rows {
		style := ""
		if i == len(rows)-1 {
			style = "B"
		}
		pdf.SetFont("Arial", style, 9)
		pdf.CellFormat(offset, 6, "", "", 0, "L", false, 0, "")
		pdf.CellFormat(labelWidth, 6, row[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(valueWidth, 6, row[1], "1", 1, "R", false, 0, "")
	}
}

func bankBlock(pdf *gofpdf.Fpdf, tr func(string) string, bank BankDetails) {
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Bank Details", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, line := range []string{
		"Bank: " + bank.Name,
		"Account No: " + bank.AccountNumber,
		"IFSC: " + bank.IFSC,
		"Branch: " + bank.Branch,
	} {
		pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
	}
}

// fit truncates text with an ellipsis so it stays inside width mm. text is
// already translated to the single-byte code page of the core fonts.
func fit(pdf *gofpdf.Fpdf, text string, width float64) string {
	if pdf.GetStringWidth(text) <= width {
		return text
	}
	b := []byte(text)
	for len(b) > 0 && pdf.GetStringWidth(string(b)+"...") > width {
		b = b[:len(b)-1]
	}
	return strings.TrimSpace(string(b)) + "..."
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
