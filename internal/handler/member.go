package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/laskutin/internal/billing"
	"github.com/dukerupert/laskutin/internal/model"
	"github.com/dukerupert/laskutin/internal/store"
	"github.com/dukerupert/laskutin/internal/websocket"
)

type MemberHandler struct {
	engine  *billing.Engine
	members *store.MemberStore
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewMemberHandler(engine *billing.Engine, members *store.MemberStore, hub *websocket.Hub, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{engine: engine, members: members, hub: hub, logger: logger}
}

func (h *MemberHandler) broadcast(e websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(e)
	}
}

type newHouseholdRequest struct {
	Name       *string `json:"name"`
	Addressee  *string `json:"addressee"`
	Street     string  `json:"street"`
	PostalCode string  `json:"postal_code"`
	City       string  `json:"city"`
}

type memberRequest struct {
	FirstName   string               `json:"first_name"`
	LastName    string               `json:"last_name"`
	NationalID  *string              `json:"national_id"`
	BirthDate   *string              `json:"birth_date"`
	Phone       *string              `json:"phone"`
	Email       *string              `json:"email"`
	JoinDate    string               `json:"join_date"`
	MemberType  string               `json:"member_type"`
	Active      *bool                `json:"active"`
	HouseholdID *int64               `json:"household_id"`
	Household   *newHouseholdRequest `json:"household"`
}

// params parses dates and the member type. A missing join date means today
// and a missing active flag means active.
func (req memberRequest) params(today time.Time) (store.MemberParams, error) {
	p := store.MemberParams{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		NationalID:  req.NationalID,
		Phone:       req.Phone,
		Email:       req.Email,
		Active:      req.Active == nil || *req.Active,
		HouseholdID: req.HouseholdID,
	}

	var err error
	if p.MemberType, err = parseMemberType(req.MemberType); err != nil {
		return p, err
	}
	if p.BirthDate, err = parseOptionalDate("birth_date", req.BirthDate); err != nil {
		return p, err
	}
	p.JoinDate = model.NewDate(today)
	if req.JoinDate != "" {
		if p.JoinDate, err = parseDate("join_date", req.JoinDate); err != nil {
			return p, err
		}
	}

	if req.Household != nil {
		p.Household = &store.NewHousehold{
			Name:      req.Household.Name,
			Addressee: req.Household.Addressee,
			Address: model.AddressInput{
				Street:     req.Household.Street,
				PostalCode: req.Household.PostalCode,
				City:       req.Household.City,
			},
		}
	}
	return p, nil
}

func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "failed to create member", err)
		return
	}
	params, err := req.params(time.Now())
	if err != nil {
		writeError(w, h.logger, "failed to create member", err)
		return
	}

	member, err := h.members.Create(r.Context(), params)
	if err != nil {
		writeError(w, h.logger, "failed to create member", err)
		return
	}

	h.broadcast(websocket.NewEvent("member", "created", member.Member.ID))
	writeJSON(w, http.StatusCreated, member)
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.List(r.Context())
	if err != nil {
		writeError(w, h.logger, "failed to list members", err)
		return
	}
	if members == nil {
		members = []model.MemberWithHousehold{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, "failed to get member", err)
		return
	}

	member, err := h.members.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "failed to get member", err)
		return
	}
	if member == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "member not found"})
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *MemberHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, "failed to update member", err)
		return
	}

	var req struct {
		Active *bool `json:"active"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "failed to update member", err)
		return
	}
	if req.Active == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "active is required"})
		return
	}

	member, err := h.members.SetActive(r.Context(), id, *req.Active)
	if err != nil {
		writeError(w, h.logger, "failed to update member", err)
		return
	}

	h.broadcast(websocket.NewEvent("member", "updated", id))
	writeJSON(w, http.StatusOK, member)
}

func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, "failed to delete member", err)
		return
	}

	result, err := h.engine.DeleteMember(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "failed to delete member", err)
		return
	}

	h.broadcast(websocket.NewEvent("member", "deleted", id))
	if result.HouseholdRemoved {
		h.broadcast(websocket.NewEvent("household", "deleted", result.HouseholdID))
	}
	writeJSON(w, http.StatusOK, result)
}
