package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fvila/renovaciones/internal/rules"
	"gorm.io/gorm"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// best-effort error response; avoid writing partial JSON
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		// nothing we can do at this point
		_ = err
	}
}

func JSONError(w http.ResponseWriter, status int, msg string, details any) {
	JSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// Decode parses a JSON request body into dst.
func Decode(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// Fail maps the core error taxonomy onto HTTP statuses: validation failures
// carry their human-readable reason as 422, missing records become 404,
// unique-index violations become 409, anything else is a 500. The 409 arm
// backs up the handlers' NIF pre-check when a concurrent write slips past it.
func Fail(w http.ResponseWriter, err error) {
	var verr *rules.ValidationError
	if errors.As(err, &verr) {
		JSONError(w, http.StatusUnprocessableEntity, verr.Reason, nil)
		return
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		JSONError(w, http.StatusConflict, "already_exists", nil)
		return
	}
	JSONError(w, http.StatusInternalServerError, "internal_error", nil)
}
