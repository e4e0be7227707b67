package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/laskutin/internal/billing"
	"github.com/dukerupert/laskutin/internal/email"
	"github.com/dukerupert/laskutin/internal/model"
	"github.com/dukerupert/laskutin/internal/store"
	"github.com/dukerupert/laskutin/internal/websocket"
)

// Mailer delivers invoice notices by email.
type Mailer interface {
	Configured() bool
	SendInvoice(ctx context.Context, toEmail string, n email.InvoiceNotice) error
}

type InvoiceHandler struct {
	engine   *billing.Engine
	invoices *store.InvoiceStore
	orgs     *store.OrganizationStore
	mailer   Mailer
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewInvoiceHandler(engine *billing.Engine, invoices *store.InvoiceStore, orgs *store.OrganizationStore, mailer Mailer, hub *websocket.Hub, logger *slog.Logger) *InvoiceHandler {
	return &InvoiceHandler{engine: engine, invoices: invoices, orgs: orgs, mailer: mailer, hub: hub, logger: logger}
}

func (h *InvoiceHandler) broadcast(e websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(e)
	}
}

func (h *InvoiceHandler) Validate(w http.ResponseWriter, r *http.Request) {
	year, err := parseYearQuery(r, currentYear())
	if err != nil {
		writeError(w, h.logger, "failed to validate invoices", err)
		return
	}

	v, err := h.engine.Validate(r.Context(), year)
	if err != nil {
		writeError(w, h.logger, "failed to validate invoices", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type generateRequest struct {
	Year int `json:"year"`
}

type generateResponse struct {
	Year        int             `json:"year"`
	Count       int             `json:"count"`
	AmountCents int64           `json:"amount_cents"`
	Amount      string          `json:"amount"`
	Invoices    []model.Invoice `json:"invoices"`
}

// Generate is idempotent: a repeated run answers 200 with no invoices.
func (h *InvoiceHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "failed to generate invoices", err)
		return
	}

	invoices, err := h.engine.GenerateForYear(r.Context(), req.Year)
	if err != nil {
		writeError(w, h.logger, "failed to generate invoices", err)
		return
	}

	if invoices == nil {
		invoices = []model.Invoice{}
	}
	resp := generateResponse{Year: req.Year, Count: len(invoices), Invoices: invoices}
	for _, inv := range invoices {
		resp.AmountCents += inv.AmountCents
	}
	resp.Amount = formatAmount(resp.AmountCents)

	status := http.StatusOK
	if len(invoices) > 0 {
		status = http.StatusCreated
		h.broadcast(websocket.InvoicesGenerated(req.Year, resp.Count, resp.AmountCents))
	}
	writeJSON(w, status, resp)
}

func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	year, err := parseYearQuery(r, 0)
	if err != nil {
		writeError(w, h.logger, "failed to list invoices", err)
		return
	}

	invoices, err := h.invoices.List(r.Context(), year)
	if err != nil {
		writeError(w, h.logger, "failed to list invoices", err)
		return
	}
	if invoices == nil {
		invoices = []model.Invoice{}
	}
	writeJSON(w, http.StatusOK, invoices)
}

// Get returns the invoice detail. The barcode is included when the
// organization has an IBAN on file.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, "failed to get invoice", err)
		return
	}

	detail, err := h.invoices.Detail(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "failed to get invoice", err)
		return
	}
	if detail == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "invoice not found"})
		return
	}

	org, err := h.orgs.Get(r.Context())
	if err != nil {
		writeError(w, h.logger, "failed to get organization", err)
		return
	}
	detail.Barcode = h.barcode(org, detail.Invoice)
	writeJSON(w, http.StatusOK, detail)
}

func (h *InvoiceHandler) barcode(org *model.Organization, inv model.Invoice) string {
	if org == nil || org.IBAN == nil {
		return ""
	}
	code, err := billing.Barcode(*org.IBAN, inv.AmountCents, inv.ReferenceNumber, inv.DueDate)
	if err != nil {
		h.logger.Warn("barcode unavailable", "invoice_id", inv.ID, "error", err)
		return ""
	}
	return code
}

type sendResponse struct {
	InvoiceID  int64    `json:"invoice_id"`
	Recipients []string `json:"recipients"`
}

// Send emails the invoice notice to every member on the invoice who has an
// email address. Each address gets one message.
func (h *InvoiceHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, "failed to send invoice", err)
		return
	}
	if h.mailer == nil || !h.mailer.Configured() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": email.ErrNotConfigured.Error()})
		return
	}

	detail, err := h.invoices.Detail(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "failed to send invoice", err)
		return
	}
	if detail == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "invoice not found"})
		return
	}
	org, err := h.orgs.Get(r.Context())
	if err != nil {
		writeError(w, h.logger, "failed to get organization", err)
		return
	}
	if org == nil {
		writeError(w, h.logger, "failed to send invoice",
			fmt.Errorf("%w: set the organization profile before sending invoices", billing.ErrValidation))
		return
	}

	notice := newNotice(org, detail, h.barcode(org, detail.Invoice))
	sent := []string{}
	seen := make(map[string]bool)
	for _, l := range detail.Lines {
		if l.Member.Email == nil {
			continue
		}
		to := strings.TrimSpace(*l.Member.Email)
		if to == "" || seen[strings.ToLower(to)] {
			continue
		}
		seen[strings.ToLower(to)] = true

		notice.Recipient = l.Member.FullName()
		if err := h.mailer.SendInvoice(r.Context(), to, notice); err != nil {
			h.logger.Error("send invoice", "invoice_id", id, "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":      "failed to send invoice",
				"recipients": sent,
			})
			return
		}
		sent = append(sent, to)
	}
	if len(sent) == 0 {
		writeError(w, h.logger, "failed to send invoice",
			fmt.Errorf("%w: no member on invoice %d has an email address", billing.ErrValidation, id))
		return
	}

	h.logger.Info("invoice sent", "invoice_id", id, "recipients", len(sent))
	h.broadcast(websocket.NewEvent("invoice", "sent", id))
	writeJSON(w, http.StatusOK, sendResponse{InvoiceID: id, Recipients: sent})
}

func newNotice(org *model.Organization, d *model.InvoiceDetail, barcode string) email.InvoiceNotice {
	inv := d.Invoice
	n := email.InvoiceNotice{
		Organization:  org.Name,
		InvoiceNumber: inv.ReferenceNumber,
		Year:          inv.BillingYear,
		Amount:        formatAmount(inv.AmountCents),
		DueDate:       inv.DueDate.String(),
		Reference:     inv.ReferenceNumber,
		Barcode:       barcode,
	}
	if inv.InvoiceNumber != nil {
		n.InvoiceNumber = *inv.InvoiceNumber
	}
	if org.IBAN != nil {
		n.IBAN = *org.IBAN
	}
	if org.BIC != nil {
		n.BIC = *org.BIC
	}
	for _, l := range d.Lines {
		n.Lines = append(n.Lines, email.NoticeLine{
			Description: l.Line.Description,
			Amount:      formatAmount(l.Line.AmountCents),
		})
	}
	return n
}

type paidRequest struct {
	PaymentDate string `json:"payment_date"`
}

func (h *InvoiceHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, "failed to mark invoice paid", err)
		return
	}

	var req paidRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "failed to mark invoice paid", err)
		return
	}
	paymentDate := model.NewDate(time.Now())
	if req.PaymentDate != "" {
		if paymentDate, err = parseDate("payment_date", req.PaymentDate); err != nil {
			writeError(w, h.logger, "failed to mark invoice paid", err)
			return
		}
	}

	inv, err := h.engine.MarkInvoicePaid(r.Context(), id, paymentDate)
	if err != nil {
		writeError(w, h.logger, "failed to mark invoice paid", err)
		return
	}

	h.broadcast(websocket.NewEvent("invoice", "paid", id))
	writeJSON(w, http.StatusOK, inv)
}

func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, "failed to delete invoice", err)
		return
	}

	if err := h.engine.DeleteInvoice(r.Context(), id); err != nil {
		writeError(w, h.logger, "failed to delete invoice", err)
		return
	}

	h.broadcast(websocket.NewEvent("invoice", "deleted", id))
	w.WriteHeader(http.StatusNoContent)
}

type statsResponse struct {
	*model.Stats
	Receivables string `json:"receivables"`
	Income      string `json:"yearly_income"`
}

func (h *InvoiceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	year, err := parseYearQuery(r, currentYear())
	if err != nil {
		writeError(w, h.logger, "failed to load statistics", err)
		return
	}

	stats, err := h.invoices.Stats(r.Context(), year)
	if err != nil {
		writeError(w, h.logger, "failed to load statistics", err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Stats:       stats,
		Receivables: formatAmount(stats.ReceivablesCents),
		Income:      formatAmount(stats.YearlyIncome),
	})
}
