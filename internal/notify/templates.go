package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
)

// Rendered is a ready-to-send message body.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// View is the data the templates see.
type View struct {
	BillPayload
	Recipient string
	Vendor    string
	Customer  string
	Amount    string
}

type messageTemplate struct {
	subject *texttemplate.Template
	html    *template.Template
	text    *texttemplate.Template
}

const htmlLayout = `<!doctype html>
<html><body style="font-family:Arial,sans-serif;color:#222">
<p>Dear {{.Customer}},</p>
{{template "lead" .}}
<table cellpadding="4" style="border-collapse:collapse">
<tr><td>Bill</td><td><strong>{{.BillID}}</strong></td></tr>
<tr><td>Date</td><td>{{.BillDate}}</td></tr>
<tr><td>Items</td><td>{{.LineCount}} ({{.TotalQuantity}} units)</td></tr>
<tr><td>Total</td><td><strong>INR {{.Amount}}</strong></td></tr>
<tr><td>Status</td><td>{{.PaymentStatus}}</td></tr>
</table>
<p>Regards,<br>{{.Vendor}}</p>
</body></html>`

const textLayout = `Dear {{.Customer}},

{{template "lead" .}}

Bill:   {{.BillID}}
Date:   {{.BillDate}}
Items:  {{.LineCount}} ({{.TotalQuantity}} units)
Total:  INR {{.Amount}}
Status: {{.PaymentStatus}}

Regards,
{{.Vendor}}
`

var templates = map[string]messageTemplate{
	TypeBillCreated: mustTemplate(
		"New bill {{.BillID}} from {{.Vendor}}",
		"A new bill has been raised for you.",
	),
	TypeBillUpdated: mustTemplate(
		"Bill {{.BillID}} from {{.Vendor}} was updated",
		"A bill issued to you has been revised. The latest figures are below.",
	),
	TypeBillPaid: mustTemplate(
		"Payment received for bill {{.BillID}}",
		"Thank you. We have recorded your payment for the bill below.",
	),
}

func mustTemplate(subject, lead string) messageTemplate {
	htmlLead := `{{define "lead"}}<p>` + template.HTMLEscapeString(lead) + `</p>{{end}}`
	textLead := `{{define "lead"}}` + lead + `{{end}}`
	return messageTemplate{
		subject: texttemplate.Must(texttemplate.New("subject").Parse(subject)),
		html:    template.Must(template.Must(template.New("html").Parse(htmlLayout)).Parse(htmlLead)),
		text:    texttemplate.Must(texttemplate.Must(texttemplate.New("text").Parse(textLayout)).Parse(textLead)),
	}
}

// Render produces the message for kind.
func Render(kind string, view View) (Rendered, error) {
	tpl, ok := templates[kind]
	if !ok {
		return Rendered{}, fmt.Errorf("notify: no template for %q", kind)
	}
	if view.Amount == "" {
		view.Amount = fmt.Sprintf("%.2f", view.TotalAmount)
	}
	var subject, html, text bytes.Buffer
	if err := tpl.subject.Execute(&subject, view); err != nil {
		return Rendered{}, fmt.Errorf("notify: render subject: %w", err)
	}
	if err := tpl.html.Execute(&html, view); err != nil {
		return Rendered{}, fmt.Errorf("notify: render html: %w", err)
	}
	if err := tpl.text.Execute(&text, view); err != nil {
		return Rendered{}, fmt.Errorf("notify: render text: %w", err)
	}
	return Rendered{
		Subject: strings.TrimSpace(subject.String()),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
