package importer

import (
	"fmt"
	"testing"

	"github.com/fvila/renovaciones/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Client{}, &models.Document{}, &models.Alert{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func row(number int, data map[string]string) Row {
	return Row{Data: data, Number: number}
}

func TestMergeCreatesClientDocumentAndAlert(t *testing.T) {
	db := setupDB(t)
	merger := NewMerger(db)

	res, err := merger.Run([]Row{row(2, map[string]string{
		"full_name":       "Juan Perez",
		"nif":             "11111111A",
		"phone":           "600123123",
		"document_type":   "cap",
		"expiry_date":     "2027-03-15",
		"renewed_with_us": "si",
		"payment_method":  "visa",
	})})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ClientsCreated != 1 || res.DocumentsCreated != 1 || len(res.Errors) != 0 {
		t.Fatalf("unexpected result: %#v", res)
	}

	var doc models.Document
	if err := db.First(&doc).Error; err != nil {
		t.Fatalf("load doc: %v", err)
	}
	if doc.PaymentMethod != models.PaymentVisa || !doc.RenewedWithUs {
		t.Errorf("payment not normalized: %#v", doc)
	}

	var nAlerts int64
	db.Model(&models.Alert{}).Where("document_id = ?", doc.ID).Count(&nAlerts)
	if nAlerts != 1 {
		t.Fatalf("alerts = %d, want 1", nAlerts)
	}
}

func TestMergeReimportIsIdempotent(t *testing.T) {
	db := setupDB(t)
	merger := NewMerger(db)
	rows := []Row{row(2, map[string]string{
		"full_name":     "Ana Lopez",
		"nif":           "22222222B",
		"document_type": "cap",
		"expiry_date":   "2027-04-01",
	})}

	if _, err := merger.Run(rows); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res, err := merger.Run(rows)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.ClientsCreated != 0 || res.ClientsUpdated != 1 || res.DocumentsCreated != 0 || res.Skipped != 1 {
		t.Fatalf("second run result: %#v", res)
	}

	var nDocs, nAlerts int64
	db.Model(&models.Document{}).Count(&nDocs)
	db.Model(&models.Alert{}).Count(&nAlerts)
	if nDocs != 1 || nAlerts != 1 {
		t.Fatalf("docs = %d alerts = %d, want 1 and 1", nDocs, nAlerts)
	}
}

func TestMergeFundaePaymentToken(t *testing.T) {
	db := setupDB(t)
	merger := NewMerger(db)

	res, err := merger.Run([]Row{row(2, map[string]string{
		"full_name":           "Luis Gil",
		"nif":                 "33333333C",
		"document_type":       "cap",
		"expiry_date":         "2027-05-01",
		"renewed_with_us":     "1",
		"payment_method":      "FUNDAE",
		"fundae_payment_type": "recibo",
		"operation_number":    "OP-77",
	})})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("errors: %v", res.Errors)
	}

	var doc models.Document
	if err := db.First(&doc).Error; err != nil {
		t.Fatalf("load doc: %v", err)
	}
	if doc.PaymentMethod != models.PaymentEmpresa || !doc.Fundae {
		t.Errorf("fundae token should mean empresa payment with FUNDAE on: %#v", doc)
	}
	if doc.FundaePaymentType != models.FundaeRecibo || doc.OperationNumber != "OP-77" {
		t.Errorf("fundae details lost: %#v", doc)
	}
}

func TestMergeDrivingLicensePermissions(t *testing.T) {
	db := setupDB(t)
	merger := NewMerger(db)

	base := map[string]string{
		"full_name":     "Sara Ruiz",
		"nif":           "44444444D",
		"document_type": "carnet",
		"expiry_date":   "2028-01-01",
		"issue_date":    "2018-01-01",
		"address":       "Calle Sol 2",
		"license_c":     "1",
	}
	if _, err := merger.Run([]Row{row(2, base)}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// A later row adds permission D without repeating the rest.
	res, err := merger.Run([]Row{row(2, map[string]string{
		"full_name":     "Sara Ruiz",
		"nif":           "44444444D",
		"document_type": "carnet",
		"license_d":     "1",
	})})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.DocumentsCreated != 0 || res.DocumentsUpdated != 1 {
		t.Fatalf("result: %#v", res)
	}

	var doc models.Document
	if err := db.First(&doc).Error; err != nil {
		t.Fatalf("load doc: %v", err)
	}
	if !doc.LicenseC || !doc.LicenseD {
		t.Fatalf("permissions = C:%v D:%v, want both", doc.LicenseC, doc.LicenseD)
	}

	// Same flags again: nothing to merge.
	res, err = merger.Run([]Row{row(2, map[string]string{
		"full_name":     "Sara Ruiz",
		"nif":           "44444444D",
		"document_type": "carnet",
		"license_d":     "1",
	})})
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if res.DocumentsUpdated != 0 || res.Skipped != 1 {
		t.Fatalf("result: %#v", res)
	}
}

func TestMergeBadRowDoesNotAbortBatch(t *testing.T) {
	db := setupDB(t)
	merger := NewMerger(db)

	res, err := merger.Run([]Row{
		row(2, map[string]string{"full_name": "", "nif": "55555555E"}),
		row(3, map[string]string{
			"full_name":     "Pedro Vega",
			"nif":           "66666666F",
			"document_type": "cap",
			// missing expiry
		}),
		row(4, map[string]string{"full_name": "Eva Mora", "nif": "77777777G"}),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("errors = %v, want 2 row errors", res.Errors)
	}
	if res.ClientsCreated != 2 {
		t.Fatalf("clients created = %d, want 2 (rows 3 and 4)", res.ClientsCreated)
	}
	var nDocs int64
	db.Model(&models.Document{}).Count(&nDocs)
	if nDocs != 0 {
		t.Fatalf("docs = %d, want 0", nDocs)
	}
}

func TestMergeClientOnlyRowSkipsDocument(t *testing.T) {
	db := setupDB(t)
	merger := NewMerger(db)

	res, err := merger.Run([]Row{row(2, map[string]string{
		"full_name": "Marta Diaz",
		"nif":       "88888888H",
		"company":   "Transportes Diaz SL",
	})})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ClientsCreated != 1 || res.DocumentsCreated != 0 || len(res.Errors) != 0 {
		t.Fatalf("result: %#v", res)
	}

	var client models.Client
	if err := db.First(&client).Error; err != nil {
		t.Fatalf("load client: %v", err)
	}
	if client.Company != "Transportes Diaz SL" {
		t.Errorf("company = %q", client.Company)
	}
}

func TestMergeKeepsManualFieldsOnBlankCells(t *testing.T) {
	db := setupDB(t)
	if err := db.Create(&models.Client{FullName: "Old Name", NIF: "99999999I", Phone: "611111111", Email: "old@example.com"}).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}
	merger := NewMerger(db)

	if _, err := merger.Run([]Row{row(2, map[string]string{
		"full_name": "New Name",
		"nif":       "99999999I",
		"phone":     "",
		"email":     "",
	})}); err != nil {
		t.Fatalf("run: %v", err)
	}

	var client models.Client
	if err := db.Where("nif = ?", "99999999I").First(&client).Error; err != nil {
		t.Fatalf("load client: %v", err)
	}
	if client.FullName != "New Name" {
		t.Errorf("name = %q, want overwritten", client.FullName)
	}
	if client.Phone != "611111111" || client.Email != "old@example.com" {
		t.Errorf("blank cells erased manual data: %#v", client)
	}
}
