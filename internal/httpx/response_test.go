package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fvila/renovaciones/internal/rules"
	"gorm.io/gorm"
)

func TestFailTaxonomy(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		want     int
		wantBody string
	}{
		{"validation", &rules.ValidationError{Reason: "falta fecha de caducidad"}, http.StatusUnprocessableEntity, "falta fecha de caducidad"},
		{"not found", gorm.ErrRecordNotFound, http.StatusNotFound, "not_found"},
		{"duplicate key", gorm.ErrDuplicatedKey, http.StatusConflict, "already_exists"},
		{"wrapped duplicate key", errors.Join(errors.New("insert failed"), gorm.ErrDuplicatedKey), http.StatusConflict, "already_exists"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		Fail(rec, tc.err)
		if rec.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, rec.Code, tc.want)
		}
		if !strings.Contains(rec.Body.String(), tc.wantBody) {
			t.Errorf("%s: body = %s", tc.name, rec.Body.String())
		}
	}
}
