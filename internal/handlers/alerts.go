package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fvila/renovaciones/internal/audit"
	"github.com/fvila/renovaciones/internal/httpx"
	"github.com/fvila/renovaciones/internal/models"
	"github.com/fvila/renovaciones/internal/rules"
	"gorm.io/gorm"
)

// AlertHandler exposes the secondary direct-edit affordance over alerts.
// Under normal operation alerts are written only by reconciliation and the
// deadline scan.
type AlertHandler struct {
	DB    *gorm.DB
	Audit *audit.Sink
}

func NewAlertHandler(db *gorm.DB, sink *audit.Sink) *AlertHandler {
	return &AlertHandler{DB: db, Audit: sink}
}

type alertCreateReq struct {
	ClientID   uint   `json:"client_id" validate:"required"`
	DocumentID *uint  `json:"document_id"`
	ExpiryDate string `json:"expiry_date" validate:"required"`
	AlertDate  string `json:"alert_date" validate:"required"`
}

// Create: POST /alerts — standalone client-level reminder.
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req alertCreateReq
	if err := httpx.Decode(r, &req); err != nil {
		badRequest(w, "invalid_json", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		badRequest(w, "validation_failed", err.Error())
		return
	}
	var client models.Client
	if err := h.DB.First(&client, req.ClientID).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	if req.DocumentID != nil {
		var doc models.Document
		if err := h.DB.First(&doc, *req.DocumentID).Error; err != nil {
			httpx.Fail(w, err)
			return
		}
	}
	expiry, ok := parseDate(req.ExpiryDate)
	if !ok || expiry == nil {
		badRequest(w, "invalid_date", map[string]string{"expiry_date": req.ExpiryDate})
		return
	}
	alertDate, ok := parseDate(req.AlertDate)
	if !ok || alertDate == nil {
		badRequest(w, "invalid_date", map[string]string{"alert_date": req.AlertDate})
		return
	}

	alert := models.Alert{
		ClientID:   req.ClientID,
		DocumentID: req.DocumentID,
		ExpiryDate: *expiry,
		AlertDate:  *alertDate,
	}
	if err := h.DB.Create(&alert).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	h.Audit.Log("create_alert", fmt.Sprintf("alert_id=%d, client_id=%d", alert.ID, alert.ClientID))
	httpx.JSON(w, http.StatusCreated, alert)
}

// List: GET /alerts — window, urgency and client filters, most urgent first.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	query := h.DB.Model(&models.Alert{})
	today := rules.DateOnly(time.Now())

	if v := r.URL.Query().Get("window_days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || (days != 30 && days != 60 && days != 90) {
			badRequest(w, "invalid_window_days", nil)
			return
		}
		query = query.Where("expiry_date >= ? AND expiry_date <= ?", today, today.AddDate(0, 0, days))
	}
	if r.URL.Query().Get("urgent_only") == "true" {
		query = query.Where("alert_date <= ?", today)
	}
	if v := r.URL.Query().Get("client_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			badRequest(w, "invalid_client_id", nil)
			return
		}
		query = query.Where("client_id = ?", id)
	}

	var out []models.Alert
	if err := query.Order("alert_date asc, created_at desc").Find(&out).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

// Get: GET /alerts/{id}
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid_id", nil)
		return
	}
	var alert models.Alert
	if err := h.DB.First(&alert, id).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, alert)
}

type alertPatchReq struct {
	ClientID   *uint   `json:"client_id"`
	DocumentID *uint   `json:"document_id"`
	ExpiryDate *string `json:"expiry_date"`
	AlertDate  *string `json:"alert_date"`
}

// Patch: PATCH /alerts/{id}
func (h *AlertHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid_id", nil)
		return
	}
	var alert models.Alert
	if err := h.DB.First(&alert, id).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	var req alertPatchReq
	if err := httpx.Decode(r, &req); err != nil {
		badRequest(w, "invalid_json", nil)
		return
	}
	if req.ClientID != nil {
		var client models.Client
		if err := h.DB.First(&client, *req.ClientID).Error; err != nil {
			httpx.Fail(w, err)
			return
		}
		alert.ClientID = *req.ClientID
	}
	if req.DocumentID != nil {
		var doc models.Document
		if err := h.DB.First(&doc, *req.DocumentID).Error; err != nil {
			httpx.Fail(w, err)
			return
		}
		alert.DocumentID = req.DocumentID
	}
	if req.ExpiryDate != nil {
		expiry, ok := parseDate(*req.ExpiryDate)
		if !ok || expiry == nil {
			badRequest(w, "invalid_date", map[string]string{"expiry_date": *req.ExpiryDate})
			return
		}
		alert.ExpiryDate = *expiry
	}
	if req.AlertDate != nil {
		alertDate, ok := parseDate(*req.AlertDate)
		if !ok || alertDate == nil {
			badRequest(w, "invalid_date", map[string]string{"alert_date": *req.AlertDate})
			return
		}
		alert.AlertDate = *alertDate
	}
	if err := h.DB.Save(&alert).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	h.Audit.Log("update_alert", fmt.Sprintf("alert_id=%d", alert.ID))
	httpx.JSON(w, http.StatusOK, alert)
}

// Delete: DELETE /alerts/{id}
func (h *AlertHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid_id", nil)
		return
	}
	var alert models.Alert
	if err := h.DB.First(&alert, id).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	if err := h.DB.Delete(&alert).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	h.Audit.Log("delete_alert", fmt.Sprintf("alert_id=%d", id))
	w.WriteHeader(http.StatusNoContent)
}
