package scheduler

import (
	"fmt"
	"testing"
	"time"

	"github.com/fvila/renovaciones/internal/alerts"
	"github.com/fvila/renovaciones/internal/models"
	"github.com/fvila/renovaciones/internal/rules"
	"go.uber.org/zap"
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

func TestRunOnceScans(t *testing.T) {
	db := setupDB(t)
	client := models.Client{FullName: "Juan Perez", NIF: "11111111A"}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("create client: %v", err)
	}
	expiry := rules.DateOnly(time.Now()).AddDate(0, 0, 90)
	doc := models.Document{ClientID: client.ID, DocType: models.DocTypeCAP, ExpiryDate: &expiry}
	if err := db.Create(&doc).Error; err != nil {
		t.Fatalf("create doc: %v", err)
	}

	daily := NewDaily(alerts.NewDeadlineScanner(db), 3, 0, zap.NewNop())
	created, err := daily.RunOnce()
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
}

func TestStartStop(t *testing.T) {
	db := setupDB(t)
	daily := NewDaily(alerts.NewDeadlineScanner(db), 3, 0, zap.NewNop())
	if err := daily.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	// starting twice is a no-op
	if err := daily.Start(); err != nil {
		t.Fatalf("second start: %v", err)
	}
	daily.Stop()
	daily.Stop() // stop after stop must not panic
}
