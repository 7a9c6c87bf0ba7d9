package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fvila/renovaciones/internal/alerts"
	"github.com/fvila/renovaciones/internal/audit"
	"github.com/fvila/renovaciones/internal/httpx"
	"github.com/fvila/renovaciones/internal/importer"
	"github.com/fvila/renovaciones/internal/models"
	"github.com/fvila/renovaciones/internal/reports"
	"github.com/fvila/renovaciones/internal/rules"
	"github.com/fvila/renovaciones/internal/storage"
	"gorm.io/gorm"
)

// ToolsHandler groups the operational endpoints: spreadsheet import, manual
// deadline scan, audit tail and PDF report generation.
type ToolsHandler struct {
	DB      *gorm.DB
	Audit   *audit.Sink
	Store   *storage.Store
	Scanner *alerts.DeadlineScanner
}

func NewToolsHandler(db *gorm.DB, sink *audit.Sink, store *storage.Store, scanner *alerts.DeadlineScanner) *ToolsHandler {
	return &ToolsHandler{DB: db, Audit: sink, Store: store, Scanner: scanner}
}

// ImportClients: POST /tools/import/clients — multipart spreadsheet upload.
// Batch-fatal problems (bad format, missing columns) reject the request;
// row-level failures are reported in the result and never abort the batch.
func (h *ToolsHandler) ImportClients(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "missing_file", nil)
		return
	}
	defer file.Close()

	dir, err := h.Store.ImportsDir()
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	inputPath := filepath.Join(dir, filepath.Base(header.Filename))
	out, err := os.Create(inputPath)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		httpx.Fail(w, err)
		return
	}
	out.Close()

	rows, err := importer.ReadFile(inputPath)
	if err != nil {
		var berr *importer.BatchError
		if errors.As(err, &berr) {
			httpx.JSONError(w, http.StatusUnprocessableEntity, berr.Reason, nil)
			return
		}
		httpx.Fail(w, err)
		return
	}

	result, err := importer.NewMerger(h.DB).Run(rows)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	h.Audit.Log("import_clients", fmt.Sprintf(
		"created=%d, updated=%d, docs=%d, errors=%d",
		result.ClientsCreated, result.ClientsUpdated, result.DocumentsCreated, len(result.Errors)))
	httpx.JSON(w, http.StatusOK, result)
}

// RunScan: POST /tools/scan/run — synchronous deadline scan for operations
// and testing, bypassing the daily timer.
func (h *ToolsHandler) RunScan(w http.ResponseWriter, r *http.Request) {
	created, err := h.Scanner.Run()
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	h.Audit.Log("run_deadline_scan", fmt.Sprintf("alerts_created=%d", created))
	httpx.JSON(w, http.StatusOK, map[string]int{"alerts_created": created})
}

// AuditTail: GET /tools/audit — newest audit events.
func (h *ToolsHandler) AuditTail(w http.ResponseWriter, r *http.Request) {
	lines, err := h.Audit.ReadRecent(200)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	if lines == nil {
		lines = []string{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"lines": lines})
}

// ClientPDF: POST /tools/pdf/client/{id} — renders the per-client renewal
// report under the exports directory. Runs outside any DB transaction.
func (h *ToolsHandler) ClientPDF(w http.ResponseWriter, r *http.Request) {
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
	var docs []models.Document
	if err := h.DB.Where("client_id = ?", id).Order("created_at asc").Find(&docs).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	var clientAlerts []models.Alert
	if err := h.DB.Where("client_id = ?", id).Order("alert_date asc, created_at asc").Find(&clientAlerts).Error; err != nil {
		httpx.Fail(w, err)
		return
	}

	dir, err := h.Store.ExportsDir()
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	outPath := filepath.Join(dir, reports.DefaultOutputName(client.NIF))
	if err := reports.Generate(outPath, reports.ClientReport{Client: client, Documents: docs, Alerts: clientAlerts}); err != nil {
		httpx.Fail(w, err)
		return
	}
	h.Audit.Log("generate_client_pdf", fmt.Sprintf(
		"client_id=%d, documents=%d, alerts=%d, output=%s", id, len(docs), len(clientAlerts), outPath))
	httpx.JSON(w, http.StatusOK, map[string]string{"path": outPath, "filename": filepath.Base(outPath)})
}

// Summary: GET /reports/summary — dashboard counters, including how many
// documents expire within each scan window.
func (h *ToolsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	today := rules.DateOnly(time.Now())

	dueWithin := func(days int) (int64, error) {
		var n int64
		err := h.DB.Model(&models.Document{}).
			Where("expiry_date IS NOT NULL AND expiry_date >= ? AND expiry_date <= ?", today, today.AddDate(0, 0, days)).
			Count(&n).Error
		return n, err
	}

	var clients, documents, urgent, upcoming int64
	if err := h.DB.Model(&models.Client{}).Count(&clients).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	if err := h.DB.Model(&models.Document{}).Count(&documents).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	if err := h.DB.Model(&models.Alert{}).Where("alert_date <= ?", today).Count(&urgent).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	if err := h.DB.Model(&models.Alert{}).
		Where("expiry_date >= ? AND expiry_date <= ?", today, today.AddDate(0, 0, 90)).
		Count(&upcoming).Error; err != nil {
		httpx.Fail(w, err)
		return
	}
	due30, err := dueWithin(30)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	due60, err := dueWithin(60)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	due90, err := dueWithin(90)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{
		"clients":         clients,
		"documents":       documents,
		"urgent_alerts":   urgent,
		"upcoming_alerts": upcoming,
		"due_in_30_days":  due30,
		"due_in_60_days":  due60,
		"due_in_90_days":  due90,
	})
}

// renewalItem is one renewed CAP / tachograph-card document joined with its
// owning client.
type renewalItem struct {
	DocumentID        uint       `json:"document_id"`
	ClientID          uint       `json:"client_id"`
	ClientName        string     `json:"client_name"`
	ClientNIF         string     `json:"client_nif"`
	Company           string     `json:"company,omitempty"`
	DocType           string     `json:"doc_type"`
	ExpiryDate        *time.Time `json:"expiry_date,omitempty"`
	PaymentMethod     string     `json:"payment_method"`
	Fundae            bool       `json:"fundae"`
	FundaePaymentType string     `json:"fundae_payment_type,omitempty"`
	OperationNumber   string     `json:"operation_number,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type renewalsReport struct {
	Year            int            `json:"year"`
	PaymentMethod   string         `json:"payment_method,omitempty"`
	Fundae          *bool          `json:"fundae,omitempty"`
	DocType         string         `json:"doc_type,omitempty"`
	Total           int            `json:"total"`
	ByDocType       map[string]int `json:"by_doc_type"`
	ByPaymentMethod map[string]int `json:"by_payment_method"`
	Items           []renewalItem  `json:"items"`
}

// Renewals: GET /reports/renewals — documents renewed with us in one calendar
// year (by creation date), CAP and tachograph card only, with optional
// payment filters and per-type / per-payment-method breakdowns.
func (h *ToolsHandler) Renewals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	year := time.Now().Year()
	if v := q.Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 2000 || n > 2100 {
			badRequest(w, "invalid_year", nil)
			return
		}
		year = n
	}
	paymentMethod := q.Get("payment_method")
	switch paymentMethod {
	case "", models.PaymentEfectivo, models.PaymentVisa, models.PaymentEmpresa:
	default:
		badRequest(w, "invalid_payment_method", nil)
		return
	}
	var fundae *bool
	if v := q.Get("fundae"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(w, "invalid_fundae", nil)
			return
		}
		fundae = &b
	}
	docType := q.Get("doc_type")
	if docType != "" && docType != models.DocTypeCAP && docType != models.DocTypeTachographCard {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "Solo se permite filtrar por CAP o tarjeta de tacografo.", nil)
		return
	}

	yearStart := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	query := h.DB.Model(&models.Document{}).
		Where("renewed_with_us = ?", true).
		Where("doc_type IN ?", []string{models.DocTypeCAP, models.DocTypeTachographCard}).
		Where("created_at >= ? AND created_at < ?", yearStart, yearStart.AddDate(1, 0, 0)).
		Where("payment_method <> ''")
	if paymentMethod != "" {
		query = query.Where("payment_method = ?", paymentMethod)
	}
	if fundae != nil {
		query = query.Where("fundae = ?", *fundae)
	}
	if docType != "" {
		query = query.Where("doc_type = ?", docType)
	}

	var docs []models.Document
	if err := query.Order("created_at desc").Find(&docs).Error; err != nil {
		httpx.Fail(w, err)
		return
	}

	clientIDs := make([]uint, 0, len(docs))
	seen := map[uint]bool{}
	for _, doc := range docs {
		if !seen[doc.ClientID] {
			seen[doc.ClientID] = true
			clientIDs = append(clientIDs, doc.ClientID)
		}
	}
	owners := map[uint]models.Client{}
	if len(clientIDs) > 0 {
		var list []models.Client
		if err := h.DB.Where("id IN ?", clientIDs).Find(&list).Error; err != nil {
			httpx.Fail(w, err)
			return
		}
		for _, c := range list {
			owners[c.ID] = c
		}
	}

	report := renewalsReport{
		Year:            year,
		PaymentMethod:   paymentMethod,
		Fundae:          fundae,
		DocType:         docType,
		ByDocType:       map[string]int{},
		ByPaymentMethod: map[string]int{},
		Items:           []renewalItem{},
	}
	for _, doc := range docs {
		owner := owners[doc.ClientID]
		report.ByDocType[doc.DocType]++
		report.ByPaymentMethod[doc.PaymentMethod]++
		report.Items = append(report.Items, renewalItem{
			DocumentID:        doc.ID,
			ClientID:          doc.ClientID,
			ClientName:        owner.FullName,
			ClientNIF:         owner.NIF,
			Company:           owner.Company,
			DocType:           doc.DocType,
			ExpiryDate:        doc.ExpiryDate,
			PaymentMethod:     doc.PaymentMethod,
			Fundae:            doc.Fundae,
			FundaePaymentType: doc.FundaePaymentType,
			OperationNumber:   doc.OperationNumber,
			CreatedAt:         doc.CreatedAt,
		})
	}
	report.Total = len(report.Items)
	httpx.JSON(w, http.StatusOK, report)
}
