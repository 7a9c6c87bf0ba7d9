package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fvila/renovaciones/internal/alerts"
	"github.com/fvila/renovaciones/internal/audit"
	"github.com/fvila/renovaciones/internal/httpx"
	"github.com/fvila/renovaciones/internal/models"
	"github.com/fvila/renovaciones/internal/rules"
	"github.com/fvila/renovaciones/internal/storage"
	"gorm.io/gorm"
)

type DocumentHandler struct {
	DB    *gorm.DB
	Audit *audit.Sink
	Store *storage.Store
}

func NewDocumentHandler(db *gorm.DB, sink *audit.Sink, store *storage.Store) *DocumentHandler {
	return &DocumentHandler{DB: db, Audit: sink, Store: store}
}

type documentCreateReq struct {
	ClientID uint   `json:"client_id" validate:"required"`
	DocType  string `json:"doc_type" validate:"required,oneof=dni driving_license cap tachograph_card power_of_attorney other"`

	ExpiryDate string `json:"expiry_date"`
	IssueDate  string `json:"issue_date"`
	BirthDate  string `json:"birth_date"`
	Address    string `json:"address"`

	CourseNumber string `json:"course_number"`

	RenewedWithUs     bool   `json:"renewed_with_us"`
	PaymentMethod     string `json:"payment_method" validate:"omitempty,oneof=efectivo visa empresa"`
	Fundae            bool   `json:"fundae"`
	FundaePaymentType string `json:"fundae_payment_type" validate:"omitempty,oneof=recibo transferencia"`
	OperationNumber   string `json:"operation_number"`

	FlagFran      bool   `json:"flag_fran"`
	FlagCiusaba   bool   `json:"flag_ciusaba"`
	ExpiryFran    string `json:"expiry_fran"`
	ExpiryCiusaba string `json:"expiry_ciusaba"`

	LicenseC bool `json:"license_c"`
	LicenseD bool `json:"license_d"`
}

// Create: POST /documents. Normalization and validation run on the proposed
// field set; the document insert and its alert reconciliation share one
// transaction so a failure rolls back both.
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req documentCreateReq
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

	doc := models.Document{ClientID: req.ClientID, DocType: req.DocType}
	if !applyDocumentFields(&doc, &req, w) {
		return
	}

	normalized, err := rules.NormalizePaymentFields(rules.PaymentFieldsOf(&doc), doc.DocType)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	normalized.Apply(&doc)
	if err := rules.ValidateDocument(&doc); err != nil {
		httpx.Fail(w, err)
		return
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&doc).Error; err != nil {
			return err
		}
		return alerts.Reconcile(tx, &doc)
	})
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	h.Audit.Log("create_document", fmt.Sprintf("document_id=%d, client_id=%d", doc.ID, doc.ClientID))
	httpx.JSON(w, http.StatusCreated, doc)
}

// applyDocumentFields maps the request's date strings and scalar fields onto
// the document; returns false after writing a 400 for an unparseable date.
func applyDocumentFields(doc *models.Document, req *documentCreateReq, w http.ResponseWriter) bool {
	dates := []struct {
		raw  string
		dst  **time.Time
		name string
	}{
		{req.ExpiryDate, &doc.ExpiryDate, "expiry_date"},
		{req.IssueDate, &doc.IssueDate, "issue_date"},
		{req.BirthDate, &doc.BirthDate, "birth_date"},
		{req.ExpiryFran, &doc.ExpiryFran, "expiry_fran"},
		{req.ExpiryCiusaba, &doc.ExpiryCiusaba, "expiry_ciusaba"},
	}
	for _, d := range dates {
		parsed, ok := parseDate(d.raw)
		if !ok {
			badRequest(w, "invalid_date", map[string]string{d.name: d.raw})
			return false
		}
		*d.dst = parsed
	}
	doc.Address = req.Address
	doc.CourseNumber = req.CourseNumber
	doc.RenewedWithUs = req.RenewedWithUs
	doc.PaymentMethod = req.PaymentMethod
	doc.Fundae = req.Fundae
	doc.FundaePaymentType = req.FundaePaymentType
	doc.OperationNumber = req.OperationNumber
	doc.FlagFran = req.FlagFran
	doc.FlagCiusaba = req.FlagCiusaba
	doc.LicenseC = req.LicenseC
	doc.LicenseD = req.LicenseD
	return true
}

// List: GET /documents with expiration filters.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	query := h.DB.Model(&models.Document{})

	if v := r.URL.Query().Get("client_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			badRequest(w, "invalid_client_id", nil)
			return
		}
		query = query.Where("client_id = ?", id)
	}
	if v := r.URL.Query().Get("doc_type"); v != "" {
		if !models.KnownDocType(v) {
			badRequest(w, "invalid_doc_type", nil)
			return
		}
		query = query.Where("doc_type = ?", v)
	}
	if r.URL.Query().Get("missing_pdf") == "true" {
		query = query.Where("pdf_path = '' OR pdf_path IS NULL")
	}

	today := rules.DateOnly(time.Now())
	switch r.URL.Query().Get("expiration_status") {
	case "expired":
		query = query.Where("expiry_date IS NOT NULL AND expiry_date < ?", today)
	case "expiring":
		query = query.Where("expiry_date IS NOT NULL AND expiry_date >= ? AND expiry_date <= ?", today, today.AddDate(0, 0, 90))
	case "ok":
		query = query.Where("expiry_date IS NULL OR expiry_date > ?", today.AddDate(0, 0, 90))
	}
	if v := r.URL.Query().Get("expires_within_days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			badRequest(w, "invalid_expires_within_days", nil)
			return
		}
		query = query.Where("expiry_date IS NOT NULL AND expiry_date >= ? AND expiry_date <= ?", today, today.AddDate(0, 0, days))
	}

	var docs []models.Document
	if err := query.Order("created_at desc").Find(&docs).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, docs)
}

// Get: GET /documents/{id}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid_id", nil)
		return
	}
	var doc models.Document
	if err := h.DB.First(&doc, id).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

type documentPatchReq struct {
	ClientID *uint   `json:"client_id"`
	DocType  *string `json:"doc_type"`

	ExpiryDate *string `json:"expiry_date"`
	IssueDate  *string `json:"issue_date"`
	BirthDate  *string `json:"birth_date"`
	Address    *string `json:"address"`

	CourseNumber *string `json:"course_number"`

	RenewedWithUs     *bool   `json:"renewed_with_us"`
	PaymentMethod     *string `json:"payment_method"`
	Fundae            *bool   `json:"fundae"`
	FundaePaymentType *string `json:"fundae_payment_type"`
	OperationNumber   *string `json:"operation_number"`

	FlagFran      *bool   `json:"flag_fran"`
	FlagCiusaba   *bool   `json:"flag_ciusaba"`
	ExpiryFran    *string `json:"expiry_fran"`
	ExpiryCiusaba *string `json:"expiry_ciusaba"`

	LicenseC *bool `json:"license_c"`
	LicenseD *bool `json:"license_d"`
}

// Patch: PATCH /documents/{id}. The partial update is merged onto the stored
// record, then normalization and validation run on the full field set and
// the alert set is reconciled, all in one transaction.
func (h *DocumentHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid_id", nil)
		return
	}
	var doc models.Document
	if err := h.DB.First(&doc, id).Error; err != nil {
		httpx.Fail(w, err)
		return
	}

	var req documentPatchReq
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
		doc.ClientID = *req.ClientID
	}
	if req.DocType != nil {
		if !models.KnownDocType(*req.DocType) {
			badRequest(w, "invalid_doc_type", nil)
			return
		}
		doc.DocType = *req.DocType
	}
	if !mergePatchDates(&doc, &req, w) {
		return
	}
	if req.Address != nil {
		doc.Address = *req.Address
	}
	if req.CourseNumber != nil {
		doc.CourseNumber = *req.CourseNumber
	}
	if req.RenewedWithUs != nil {
		doc.RenewedWithUs = *req.RenewedWithUs
	}
	if req.PaymentMethod != nil {
		doc.PaymentMethod = *req.PaymentMethod
	}
	if req.Fundae != nil {
		doc.Fundae = *req.Fundae
	}
	if req.FundaePaymentType != nil {
		doc.FundaePaymentType = *req.FundaePaymentType
	}
	if req.OperationNumber != nil {
		doc.OperationNumber = *req.OperationNumber
	}
	if req.FlagFran != nil {
		doc.FlagFran = *req.FlagFran
	}
	if req.FlagCiusaba != nil {
		doc.FlagCiusaba = *req.FlagCiusaba
	}
	if req.LicenseC != nil {
		doc.LicenseC = *req.LicenseC
	}
	if req.LicenseD != nil {
		doc.LicenseD = *req.LicenseD
	}

	normalized, err := rules.NormalizePaymentFields(rules.PaymentFieldsOf(&doc), doc.DocType)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	normalized.Apply(&doc)
	if err := rules.ValidateDocument(&doc); err != nil {
		httpx.Fail(w, err)
		return
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&doc).Error; err != nil {
			return err
		}
		return alerts.Reconcile(tx, &doc)
	})
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	h.Audit.Log("update_document", fmt.Sprintf("document_id=%d", doc.ID))
	httpx.JSON(w, http.StatusOK, doc)
}

func mergePatchDates(doc *models.Document, req *documentPatchReq, w http.ResponseWriter) bool {
	dates := []struct {
		raw  *string
		dst  **time.Time
		name string
	}{
		{req.ExpiryDate, &doc.ExpiryDate, "expiry_date"},
		{req.IssueDate, &doc.IssueDate, "issue_date"},
		{req.BirthDate, &doc.BirthDate, "birth_date"},
		{req.ExpiryFran, &doc.ExpiryFran, "expiry_fran"},
		{req.ExpiryCiusaba, &doc.ExpiryCiusaba, "expiry_ciusaba"},
	}
	for _, d := range dates {
		if d.raw == nil {
			continue
		}
		parsed, ok := parseDate(*d.raw)
		if !ok {
			badRequest(w, "invalid_date", map[string]string{d.name: *d.raw})
			return false
		}
		*d.dst = parsed
	}
	return true
}

// UploadFile: POST /documents/{id}/file — stores the document's PDF scan.
func (h *DocumentHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid_id", nil)
		return
	}
	var doc models.Document
	if err := h.DB.First(&doc, id).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	var client models.Client
	if err := h.DB.First(&client, doc.ClientID).Error; err != nil {
		httpx.Fail(w, err)
		return
	}

	file, header, err := r.FormFile("document_file")
	if err != nil {
		badRequest(w, "missing_file", nil)
		return
	}
	defer file.Close()
	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		badRequest(w, "Solo se permiten archivos PDF.", nil)
		return
	}

	path, err := h.Store.SaveDocumentPDF(client.NIF, doc.DocType, header.Filename, file)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	doc.PdfPath = path
	if err := h.DB.Save(&doc).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	h.Audit.Log("upload_document_pdf", fmt.Sprintf("document_id=%d, file=%s", doc.ID, path))
	httpx.JSON(w, http.StatusOK, doc)
}

// Delete: DELETE /documents/{id} — removes the document and its alerts.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid_id", nil)
		return
	}
	var doc models.Document
	if err := h.DB.First(&doc, id).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&models.Alert{}).Error; err != nil {
			return err
		}
		return tx.Delete(&doc).Error
	})
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	h.Audit.Log("delete_document", fmt.Sprintf("document_id=%d", id))
	w.WriteHeader(http.StatusNoContent)
}
