package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/fvila/renovaciones/internal/audit"
	"github.com/fvila/renovaciones/internal/httpx"
	"github.com/fvila/renovaciones/internal/models"
	"github.com/fvila/renovaciones/internal/rules"
	"github.com/fvila/renovaciones/internal/storage"
	"gorm.io/gorm"
)

type ClientHandler struct {
	DB    *gorm.DB
	Audit *audit.Sink
	Store *storage.Store
}

func NewClientHandler(db *gorm.DB, sink *audit.Sink, store *storage.Store) *ClientHandler {
	return &ClientHandler{DB: db, Audit: sink, Store: store}
}

type clientCreateReq struct {
	FullName string `json:"full_name" validate:"required"`
	Company  string `json:"company"`
	NIF      string `json:"nif" validate:"required"`
	Phone    string `json:"phone"`
	Email    string `json:"email" validate:"omitempty,email"`
}

// Create: POST /clients
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req clientCreateReq
	if err := httpx.Decode(r, &req); err != nil {
		badRequest(w, "invalid_json", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		badRequest(w, "validation_failed", err.Error())
		return
	}

	var count int64
	if err := h.DB.Model(&models.Client{}).Where("nif = ?", req.NIF).Count(&count).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	if count > 0 {
		httpx.JSONError(w, http.StatusConflict, "Client with this NIF already exists", nil)
		return
	}

	client := models.Client{
		FullName: req.FullName,
		Company:  req.Company,
		NIF:      req.NIF,
		Phone:    req.Phone,
		Email:    req.Email,
	}
	if err := h.DB.Create(&client).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	h.Audit.Log("create_client", fmt.Sprintf("client_id=%d, nif=%s", client.ID, client.NIF))
	httpx.JSON(w, http.StatusCreated, client)
}

// List: GET /clients with text filters and the alert-status color filter.
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	query := h.DB.Model(&models.Client{})

	like := func(column, value string) {
		query = query.Where("lower("+column+") LIKE lower(?)", "%"+value+"%")
	}
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		needle := "%" + strings.ToLower(q) + "%"
		query = query.Where(
			"lower(full_name) LIKE ? OR lower(nif) LIKE ? OR lower(company) LIKE ? OR lower(phone) LIKE ?",
			needle, needle, needle, needle,
		)
	}
	if v := r.URL.Query().Get("full_name"); v != "" {
		like("full_name", v)
	}
	if v := r.URL.Query().Get("nif"); v != "" {
		like("nif", v)
	}
	if v := r.URL.Query().Get("company"); v != "" {
		like("company", v)
	}
	if v := r.URL.Query().Get("phone"); v != "" {
		like("phone", v)
	}

	today := rules.DateOnly(time.Now())
	switch r.URL.Query().Get("status_color") {
	case "red":
		query = query.Where("EXISTS (SELECT 1 FROM alerts WHERE alerts.client_id = clients.id AND alerts.alert_date <= ?)", today)
	case "yellow":
		query = query.Where("EXISTS (SELECT 1 FROM alerts WHERE alerts.client_id = clients.id AND alerts.alert_date > ?)", today)
	case "green":
		query = query.Where("NOT EXISTS (SELECT 1 FROM alerts WHERE alerts.client_id = clients.id)")
	}

	var clients []models.Client
	if err := query.Order("created_at desc").Find(&clients).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, clients)
}

// Get: GET /clients/{id}
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid_id", nil)
		return
	}
	var client models.Client
	if err := h.DB.First(&client, id).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

type clientPatchReq struct {
	FullName *string `json:"full_name"`
	Company  *string `json:"company"`
	NIF      *string `json:"nif"`
	Phone    *string `json:"phone"`
	Email    *string `json:"email"`
}

// Patch: PATCH /clients/{id} — absent fields are left untouched.
func (h *ClientHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid_id", nil)
		return
	}
	var client models.Client
	if err := h.DB.First(&client, id).Error; err != nil {
		httpx.Fail(w, err)
		return
	}

	var req clientPatchReq
	if err := httpx.Decode(r, &req); err != nil {
		badRequest(w, "invalid_json", nil)
		return
	}
	if req.NIF != nil && *req.NIF != client.NIF {
		var count int64
		if err := h.DB.Model(&models.Client{}).Where("nif = ? AND id <> ?", *req.NIF, id).Count(&count).Error; err != nil {
			httpx.Fail(w, err)
			return
		}
		if count > 0 {
			httpx.JSONError(w, http.StatusConflict, "Client with this NIF already exists", nil)
			return
		}
		client.NIF = *req.NIF
	}
	if req.FullName != nil {
		client.FullName = *req.FullName
	}
	if req.Company != nil {
		client.Company = *req.Company
	}
	if req.Phone != nil {
		client.Phone = *req.Phone
	}
	if req.Email != nil {
		client.Email = *req.Email
	}

	if err := h.DB.Save(&client).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	h.Audit.Log("update_client", fmt.Sprintf("client_id=%d", client.ID))
	httpx.JSON(w, http.StatusOK, client)
}

// UploadPhoto: POST /clients/{id}/photo — image or PDF scan.
func (h *ClientHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid_id", nil)
		return
	}
	var client models.Client
	if err := h.DB.First(&client, id).Error; err != nil {
		httpx.Fail(w, err)
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		badRequest(w, "missing_file", nil)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	allowed := map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".bmp": true, ".gif": true, ".tif": true, ".tiff": true, ".pdf": true}
	contentType := strings.ToLower(header.Header.Get("Content-Type"))
	if !allowed[ext] && !strings.HasPrefix(contentType, "image/") && contentType != "application/pdf" {
		badRequest(w, "Only image or PDF files are allowed", nil)
		return
	}

	path, err := h.Store.SaveClientPhoto(client.NIF, header.Filename, file)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	client.PhotoPath = path
	if err := h.DB.Save(&client).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	h.Audit.Log("upload_client_photo", fmt.Sprintf("client_id=%d, file=%s", client.ID, path))
	httpx.JSON(w, http.StatusOK, client)
}

// Delete: DELETE /clients/{id} — cascades to the client's documents and
// alerts in one transaction.
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid_id", nil)
		return
	}
	var client models.Client
	if err := h.DB.First(&client, id).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("client_id = ?", id).Delete(&models.Alert{}).Error; err != nil {
			return err
		}
		if err := tx.Where("client_id = ?", id).Delete(&models.Document{}).Error; err != nil {
			return err
		}
		return tx.Delete(&client).Error
	})
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	h.Audit.Log("delete_client", fmt.Sprintf("client_id=%d", id))
	w.WriteHeader(http.StatusNoContent)
}
