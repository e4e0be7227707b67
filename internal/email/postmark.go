// Package email delivers invoice notices through the Postmark API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	textTemplate "text/template"
)

const defaultAPIURL = "https://api.postmarkapp.com/email"

var ErrNotConfigured = errors.New("email client not configured: missing server token")

type Client struct {
	serverToken string
	fromEmail   string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIURL points the client at another Postmark-compatible endpoint.
func WithAPIURL(url string) Option {
	return func(cl *Client) {
		cl.apiURL = url
	}
}

func NewClient(serverToken, fromEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		apiURL:      defaultAPIURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != "" && c.fromEmail != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
	Tag      string `json:"Tag,omitempty"`
}

// InvoiceNotice is everything a member needs to pay an invoice.
type InvoiceNotice struct {
	Organization  string
	Recipient     string
	InvoiceNumber string
	Year          int
	Amount        string
	DueDate       string
	Reference     string
	IBAN          string
	BIC           string
	Barcode       string
	Lines         []NoticeLine
}

type NoticeLine struct {
	Description string
	Amount      string
}

const noticeText = `Hello {{.Recipient}},

{{.Organization}} membership invoice {{.InvoiceNumber}} for {{.Year}}.
{{range .Lines}}
  {{.Description}}: {{.Amount}} EUR{{end}}

Total: {{.Amount}} EUR
Due date: {{.DueDate}}
Reference: {{.Reference}}
{{if .IBAN}}Account: {{.IBAN}}{{if .BIC}} ({{.BIC}}){{end}}
{{end}}{{if .Barcode}}Virtual barcode: {{.Barcode}}
{{end}}`

const noticeHTML = `<p>Hello {{.Recipient}},</p>
<p>{{.Organization}} membership invoice <strong>{{.InvoiceNumber}}</strong> for {{.Year}}.</p>
<table>{{range .Lines}}<tr><td>{{.Description}}</td><td>{{.Amount}} EUR</td></tr>{{end}}</table>
<p>Total: <strong>{{.Amount}} EUR</strong><br>Due date: {{.DueDate}}<br>Reference: {{.Reference}}
{{if .IBAN}}<br>Account: {{.IBAN}}{{if .BIC}} ({{.BIC}}){{end}}{{end}}</p>
{{if .Barcode}}<p>Virtual barcode: <code>{{.Barcode}}</code></p>{{end}}`

var (
	noticeTextTmpl = textTemplate.Must(textTemplate.New("notice.txt").Parse(noticeText))
	noticeHTMLTmpl = template.Must(template.New("notice.html").Parse(noticeHTML))
)

// SendInvoice emails the notice to one address.
func (c *Client) SendInvoice(ctx context.Context, toEmail string, n InvoiceNotice) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	var text, html strings.Builder
	if err := noticeTextTmpl.Execute(&text, n); err != nil {
		return fmt.Errorf("render text body: %w", err)
	}
	if err := noticeHTMLTmpl.Execute(&html, n); err != nil {
		return fmt.Errorf("render html body: %w", err)
	}

	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  fmt.Sprintf("%s: membership invoice %s", n.Organization, n.InvoiceNumber),
		HtmlBody: html.String(),
		TextBody: text.String(),
		Tag:      "invoice",
	})
}

func (c *Client) send(ctx context.Context, payload postmarkEmail) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}
	return nil
}
