package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/laskutin/internal/billing"
	"github.com/dukerupert/laskutin/internal/handler"
	"github.com/dukerupert/laskutin/internal/metrics"
	"github.com/dukerupert/laskutin/internal/middleware"
	"github.com/dukerupert/laskutin/internal/snapshot"
	"github.com/dukerupert/laskutin/internal/store"
	ws "github.com/dukerupert/laskutin/internal/websocket"
)

const healthTimeout = 2 * time.Second

// Config collects the long-lived components the router dispatches to.
type Config struct {
	Ledger    *store.Ledger
	Engine    *billing.Engine
	Hub       *ws.Hub
	Snapshots *snapshot.Manager
	Metrics   *metrics.Metrics
	// Mailer sends invoice notices. Nil disables sending.
	Mailer handler.Mailer
	// OriginPatterns lists extra hosts allowed to open /ws.
	OriginPatterns []string
}

type Server struct {
	ledger         *store.Ledger
	hub            *ws.Hub
	metrics        *metrics.Metrics
	originPatterns []string
	invoiceH       *handler.InvoiceHandler
	memberH        *handler.MemberHandler
	householdH     *handler.HouseholdHandler
	feeH           *handler.FeeHandler
	organizationH  *handler.OrganizationHandler
	snapshotH      *handler.SnapshotHandler
	rateLimiter    *middleware.RateLimiter
	logger         *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Server {
	orgs := store.NewOrganizationStore(cfg.Ledger)

	return &Server{
		ledger:         cfg.Ledger,
		hub:            cfg.Hub,
		metrics:        cfg.Metrics,
		originPatterns: cfg.OriginPatterns,
		invoiceH:       handler.NewInvoiceHandler(cfg.Engine, store.NewInvoiceStore(cfg.Ledger), orgs, cfg.Mailer, cfg.Hub, logger.With("component", "invoice")),
		memberH:        handler.NewMemberHandler(cfg.Engine, store.NewMemberStore(cfg.Ledger), cfg.Hub, logger.With("component", "member")),
		householdH:     handler.NewHouseholdHandler(cfg.Engine, store.NewHouseholdStore(cfg.Ledger), cfg.Hub, logger.With("component", "household")),
		feeH:           handler.NewFeeHandler(store.NewFeeStore(cfg.Ledger), cfg.Hub, logger.With("component", "fee")),
		organizationH:  handler.NewOrganizationHandler(orgs, cfg.Hub, logger.With("component", "organization")),
		snapshotH:      handler.NewSnapshotHandler(cfg.Snapshots, store.NewSnapshotStore(cfg.Ledger), cfg.Hub, logger.With("component", "snapshot")),
		rateLimiter:    middleware.NewRateLimiter(),
		logger:         logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	if s.hub != nil {
		mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.originPatterns))
	}

	s.registerAPIRoutes(mux)

	var obs middleware.Observer
	if s.metrics != nil {
		obs = s.metrics
	}
	logged := middleware.RequestLogger(s.logger.With("component", "http"), obs)(mux)
	return middleware.RequestID(logged)
}

func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	// Invoices
	mux.HandleFunc("GET /api/invoices/validate", s.invoiceH.Validate)
	mux.HandleFunc("POST /api/invoices/generate", s.rateLimited(s.invoiceH.Generate))
	mux.HandleFunc("GET /api/invoices", s.invoiceH.List)
	mux.HandleFunc("GET /api/invoices/{id}", s.invoiceH.Get)
	mux.HandleFunc("POST /api/invoices/{id}/paid", s.invoiceH.MarkPaid)
	mux.HandleFunc("DELETE /api/invoices/{id}", s.invoiceH.Delete)
	mux.HandleFunc("POST /api/invoices/{id}/send", s.rateLimited(s.invoiceH.Send))
	mux.HandleFunc("GET /api/stats", s.invoiceH.Stats)

	// Members
	mux.HandleFunc("POST /api/members", s.memberH.Create)
	mux.HandleFunc("GET /api/members", s.memberH.List)
	mux.HandleFunc("GET /api/members/{id}", s.memberH.Get)
	mux.HandleFunc("PUT /api/members/{id}/active", s.memberH.SetActive)
	mux.HandleFunc("DELETE /api/members/{id}", s.memberH.Delete)

	// Households
	mux.HandleFunc("GET /api/households", s.householdH.List)
	mux.HandleFunc("GET /api/households/{id}", s.householdH.Get)
	mux.HandleFunc("PUT /api/households/{id}/billing-address", s.householdH.SetBillingAddress)
	mux.HandleFunc("DELETE /api/households/{id}/billing-address", s.householdH.ClearBillingAddress)
	mux.HandleFunc("DELETE /api/households/{id}", s.householdH.Delete)

	// Fees and organization
	mux.HandleFunc("POST /api/fees", s.feeH.Set)
	mux.HandleFunc("GET /api/fees", s.feeH.List)
	mux.HandleFunc("GET /api/organization", s.organizationH.Get)
	mux.HandleFunc("PUT /api/organization", s.organizationH.Put)

	// Snapshots
	mux.HandleFunc("POST /api/snapshots", s.rateLimited(s.snapshotH.Create))
	mux.HandleFunc("GET /api/snapshots", s.snapshotH.List)
	mux.HandleFunc("GET /api/snapshots/{id}/download", s.snapshotH.Download)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.ledger.Ping(ctx); err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, 10, time.Minute)
	return rl(h).ServeHTTP
}
