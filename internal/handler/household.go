package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/laskutin/internal/billing"
	"github.com/dukerupert/laskutin/internal/model"
	"github.com/dukerupert/laskutin/internal/store"
	"github.com/dukerupert/laskutin/internal/websocket"
)

type HouseholdHandler struct {
	engine     *billing.Engine
	households *store.HouseholdStore
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewHouseholdHandler(engine *billing.Engine, households *store.HouseholdStore, hub *websocket.Hub, logger *slog.Logger) *HouseholdHandler {
	return &HouseholdHandler{engine: engine, households: households, hub: hub, logger: logger}
}

func (h *HouseholdHandler) broadcast(e websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(e)
	}
}

func (h *HouseholdHandler) List(w http.ResponseWriter, r *http.Request) {
	households, err := h.households.List(r.Context())
	if err != nil {
		writeError(w, h.logger, "failed to list households", err)
		return
	}
	if households == nil {
		households = []model.HouseholdSummary{}
	}
	writeJSON(w, http.StatusOK, households)
}

func (h *HouseholdHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, "failed to get household", err)
		return
	}

	household, err := h.households.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "failed to get household", err)
		return
	}
	if household == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "household not found"})
		return
	}
	writeJSON(w, http.StatusOK, household)
}

type billingAddressRequest struct {
	Addressee  *string `json:"addressee"`
	Street     string  `json:"street"`
	PostalCode string  `json:"postal_code"`
	City       string  `json:"city"`
}

// SetBillingAddress handles PUT with a separate billing address.
func (h *HouseholdHandler) SetBillingAddress(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, "failed to set billing address", err)
		return
	}

	var req billingAddressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "failed to set billing address", err)
		return
	}

	household, err := h.households.SetBillingAddress(r.Context(), id, req.Addressee, &model.AddressInput{
		Street:     req.Street,
		PostalCode: req.PostalCode,
		City:       req.City,
	})
	if err != nil {
		writeError(w, h.logger, "failed to set billing address", err)
		return
	}

	h.broadcast(websocket.NewEvent("household", "updated", id))
	writeJSON(w, http.StatusOK, household)
}

// ClearBillingAddress sends invoices to the household's own address again.
func (h *HouseholdHandler) ClearBillingAddress(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, "failed to clear billing address", err)
		return
	}

	household, err := h.households.SetBillingAddress(r.Context(), id, nil, nil)
	if err != nil {
		writeError(w, h.logger, "failed to clear billing address", err)
		return
	}

	h.broadcast(websocket.NewEvent("household", "updated", id))
	writeJSON(w, http.StatusOK, household)
}

func (h *HouseholdHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, "failed to delete household", err)
		return
	}

	if err := h.engine.DeleteHousehold(r.Context(), id); err != nil {
		writeError(w, h.logger, "failed to delete household", err)
		return
	}

	h.broadcast(websocket.NewEvent("household", "deleted", id))
	w.WriteHeader(http.StatusNoContent)
}
