package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/laskutin/internal/model"
	"github.com/dukerupert/laskutin/internal/store"
	"github.com/dukerupert/laskutin/internal/websocket"
)

type FeeHandler struct {
	fees   *store.FeeStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewFeeHandler(fees *store.FeeStore, hub *websocket.Hub, logger *slog.Logger) *FeeHandler {
	return &FeeHandler{fees: fees, hub: hub, logger: logger}
}

type feeRequest struct {
	Year       int    `json:"year"`
	MemberType string `json:"member_type"`
	Amount     string `json:"amount"`
}

type feeResponse struct {
	model.MembershipFee
	Amount string `json:"amount"`
}

func newFeeResponse(f model.MembershipFee) feeResponse {
	return feeResponse{MembershipFee: f, Amount: formatAmount(f.AmountCents)}
}

// Set creates the fee of a year and member type, replacing the amount of an
// existing one.
func (h *FeeHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req feeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "failed to save fee", err)
		return
	}
	memberType, err := parseMemberType(req.MemberType)
	if err != nil {
		writeError(w, h.logger, "failed to save fee", err)
		return
	}
	cents, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, h.logger, "failed to save fee", err)
		return
	}

	fee, err := h.fees.Set(r.Context(), req.Year, memberType, cents)
	if err != nil {
		writeError(w, h.logger, "failed to save fee", err)
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(websocket.NewEvent("fee", "saved", fee.ID))
	}
	writeJSON(w, http.StatusCreated, newFeeResponse(*fee))
}

func (h *FeeHandler) List(w http.ResponseWriter, r *http.Request) {
	year, err := parseYearQuery(r, 0)
	if err != nil {
		writeError(w, h.logger, "failed to list fees", err)
		return
	}

	fees, err := h.fees.List(r.Context(), year)
	if err != nil {
		writeError(w, h.logger, "failed to list fees", err)
		return
	}
	resp := make([]feeResponse, 0, len(fees))
	for _, f := range fees {
		resp = append(resp, newFeeResponse(f))
	}
	writeJSON(w, http.StatusOK, resp)
}
