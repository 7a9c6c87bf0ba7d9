package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fvila/renovaciones/internal/httpx"
	"github.com/fvila/renovaciones/internal/rules"
	"github.com/go-playground/validator/v10"
)

// validate checks request DTO shape (required fields, enum membership).
// Domain policy (per-type required dates, payment consistency) lives in the
// rules package and runs after the DTO is mapped onto a document.
var validate = validator.New()

const dateLayout = "2006-01-02"

// parseDate parses an optional YYYY-MM-DD request field.
func parseDate(value string) (*time.Time, bool) {
	if value == "" {
		return nil, true
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, false
	}
	t = rules.DateOnly(t)
	return &t, true
}

// pathID extracts the {id} segment of a routed request.
func pathID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func badRequest(w http.ResponseWriter, msg string, details any) {
	httpx.JSONError(w, http.StatusBadRequest, msg, details)
}
