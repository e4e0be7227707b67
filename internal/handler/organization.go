package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/laskutin/internal/model"
	"github.com/dukerupert/laskutin/internal/store"
	"github.com/dukerupert/laskutin/internal/websocket"
)

type OrganizationHandler struct {
	orgs   *store.OrganizationStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewOrganizationHandler(orgs *store.OrganizationStore, hub *websocket.Hub, logger *slog.Logger) *OrganizationHandler {
	return &OrganizationHandler{orgs: orgs, hub: hub, logger: logger}
}

func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	org, err := h.orgs.Get(r.Context())
	if err != nil {
		writeError(w, h.logger, "failed to get organization", err)
		return
	}
	if org == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "organization profile not set"})
		return
	}
	writeJSON(w, http.StatusOK, org)
}

type organizationRequest struct {
	Name       string  `json:"name"`
	Street     string  `json:"street"`
	PostalCode string  `json:"postal_code"`
	City       string  `json:"city"`
	Phone      *string `json:"phone"`
	Email      *string `json:"email"`
	BusinessID *string `json:"business_id"`
	IBAN       *string `json:"iban"`
	BIC        *string `json:"bic"`
}

func (h *OrganizationHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req organizationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "failed to save organization", err)
		return
	}

	org, err := h.orgs.Save(r.Context(), model.Organization{
		Name:       req.Name,
		Street:     req.Street,
		PostalCode: req.PostalCode,
		City:       req.City,
		Phone:      req.Phone,
		Email:      req.Email,
		BusinessID: req.BusinessID,
		IBAN:       req.IBAN,
		BIC:        req.BIC,
	})
	if err != nil {
		writeError(w, h.logger, "failed to save organization", err)
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(websocket.NewEvent("organization", "updated", org.ID))
	}
	writeJSON(w, http.StatusOK, org)
}
