package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/laskutin/internal/billing"
	"github.com/dukerupert/laskutin/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the billing error taxonomy onto HTTP statuses. Storage
// failures are logged and reported with the generic message only.
func writeError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	var status int
	switch {
	case errors.Is(err, billing.ErrParse):
		status = http.StatusBadRequest
	case errors.Is(err, billing.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, billing.ErrReferentialIntegrity):
		status = http.StatusConflict
	case errors.Is(err, billing.ErrValidation):
		status = http.StatusUnprocessableEntity
	default:
		logger.Error(msg, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msg})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON", billing.ErrParse)
	}
	return nil
}

func parseIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", billing.ErrParse, r.PathValue("id"))
	}
	return id, nil
}

// parseYearQuery reads ?year=. A missing year yields fallback.
func parseYearQuery(r *http.Request, fallback int) (int, error) {
	s := r.URL.Query().Get("year")
	if s == "" {
		return fallback, nil
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid year %q", billing.ErrParse, s)
	}
	return year, nil
}

func parseDate(field, s string) (model.Date, error) {
	d, err := model.ParseDate(s)
	if err != nil {
		return model.Date{}, fmt.Errorf("%w: %s: %v", billing.ErrParse, field, err)
	}
	return d, nil
}

func parseOptionalDate(field string, s *string) (*model.Date, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := parseDate(field, *s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseMemberType(s string) (model.MemberType, error) {
	t, err := model.ParseMemberType(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", billing.ErrParse, err)
	}
	return t, nil
}

// parseAmount converts a decimal euro string such as "25.00" to cents.
func parseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid amount %q", billing.ErrParse, s)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: amount %s is negative", billing.ErrParse, s)
	}
	if !d.Equal(d.Truncate(2)) {
		return 0, fmt.Errorf("%w: amount %s has more than two decimals", billing.ErrParse, s)
	}
	return d.Shift(2).IntPart(), nil
}

func formatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

func currentYear() int {
	return time.Now().Year()
}
