package alerts

import (
	"testing"
	"time"

	"github.com/fvila/renovaciones/internal/models"
	"gorm.io/gorm"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func seedDoc(t *testing.T, db *gorm.DB, clientID uint, expiry time.Time) *models.Document {
	t.Helper()
	doc := &models.Document{ClientID: clientID, DocType: models.DocTypeCAP, ExpiryDate: &expiry}
	if err := db.Create(doc).Error; err != nil {
		t.Fatalf("create doc: %v", err)
	}
	return doc
}

func TestDeadlineScanCreatesWindowAlerts(t *testing.T) {
	db := setupDB(t)
	client := mkClient(t, db, "77777777G")
	now := mkDate(2026, 1, 1)

	in30 := seedDoc(t, db, client.ID, now.AddDate(0, 0, 30))
	in60 := seedDoc(t, db, client.ID, now.AddDate(0, 0, 60))
	in90 := seedDoc(t, db, client.ID, now.AddDate(0, 0, 90))
	seedDoc(t, db, client.ID, now.AddDate(0, 0, 45))  // outside every window
	seedDoc(t, db, client.ID, now.AddDate(0, 0, -30)) // already expired

	scanner := &DeadlineScanner{DB: db, Now: fixedNow(now)}
	created, err := scanner.Run()
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if created != 3 {
		t.Fatalf("created = %d, want 3", created)
	}
	for _, doc := range []*models.Document{in30, in60, in90} {
		if n := countAlerts(t, db, doc.ID); n != 1 {
			t.Errorf("doc %d alert count = %d, want 1", doc.ID, n)
		}
	}
	var total int64
	db.Model(&models.Alert{}).Count(&total)
	if total != 3 {
		t.Fatalf("total alerts = %d, want 3", total)
	}
}

func TestDeadlineScanSkipsExistingAlerts(t *testing.T) {
	db := setupDB(t)
	client := mkClient(t, db, "88888888H")
	now := mkDate(2026, 1, 1)

	doc := seedDoc(t, db, client.ID, now.AddDate(0, 0, 60))
	if err := Reconcile(db, doc); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	scanner := &DeadlineScanner{DB: db, Now: fixedNow(now)}
	created, err := scanner.Run()
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if created != 0 {
		t.Fatalf("created = %d, want 0", created)
	}
	if n := countAlerts(t, db, doc.ID); n != 1 {
		t.Fatalf("alert count = %d, want 1", n)
	}
}

func TestDeadlineScanNeverDeletes(t *testing.T) {
	db := setupDB(t)
	client := mkClient(t, db, "99999999I")
	now := mkDate(2026, 1, 1)

	// Manual alert unrelated to any window.
	manual := models.Alert{ClientID: client.ID, ExpiryDate: mkDate(2026, 2, 14), AlertDate: mkDate(2025, 12, 26)}
	if err := db.Create(&manual).Error; err != nil {
		t.Fatalf("seed manual alert: %v", err)
	}

	scanner := &DeadlineScanner{DB: db, Now: fixedNow(now)}
	if _, err := scanner.Run(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	var n int64
	db.Model(&models.Alert{}).Where("id = ?", manual.ID).Count(&n)
	if n != 1 {
		t.Fatal("scan removed a manual alert")
	}
}

func TestDeadlineScanPowerOfAttorneyWindows(t *testing.T) {
	db := setupDB(t)
	client := mkClient(t, db, "10101010J")
	now := mkDate(2026, 1, 1)

	fran := now.AddDate(0, 0, 30)
	ciusaba := now.AddDate(0, 0, 90)
	doc := &models.Document{
		ClientID:      client.ID,
		DocType:       models.DocTypePowerOfAttorney,
		FlagFran:      true,
		FlagCiusaba:   true,
		ExpiryFran:    &fran,
		ExpiryCiusaba: &ciusaba,
	}
	if err := db.Create(doc).Error; err != nil {
		t.Fatalf("create doc: %v", err)
	}

	scanner := &DeadlineScanner{DB: db, Now: fixedNow(now)}
	created, err := scanner.Run()
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if created != 2 {
		t.Fatalf("created = %d, want one alert per granted power", created)
	}
}
