package alerts

import (
	"time"

	"github.com/fvila/renovaciones/internal/models"
	"github.com/fvila/renovaciones/internal/rules"
	"gorm.io/gorm"
)

// scanWindows are the only day offsets the deadline scan acts on.
var scanWindows = map[int]bool{30: true, 60: true, 90: true}

// DeadlineScanner is the gap-filling safety net behind reconciliation: it
// walks every document and creates any alert missing for an expiry date
// sitting exactly 30, 60 or 90 days out. It never deletes alerts.
type DeadlineScanner struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewDeadlineScanner(db *gorm.DB) *DeadlineScanner {
	return &DeadlineScanner{DB: db, Now: time.Now}
}

// Run scans all documents once and returns how many alerts were created.
// The whole scan commits as one transaction.
func (s *DeadlineScanner) Run() (int, error) {
	today := rules.DateOnly(s.Now())
	created := 0
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var docs []models.Document
		if err := tx.Find(&docs).Error; err != nil {
			return err
		}
		for i := range docs {
			doc := &docs[i]
			for _, expiry := range rules.CollectExpiryDates(doc) {
				days := int(expiry.Sub(today).Hours() / 24)
				if !scanWindows[days] {
					continue
				}
				var count int64
				if err := tx.Model(&models.Alert{}).
					Where("client_id = ? AND document_id = ? AND expiry_date = ?", doc.ClientID, doc.ID, expiry).
					Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					continue
				}
				docID := doc.ID
				alert := models.Alert{
					ClientID:   doc.ClientID,
					DocumentID: &docID,
					ExpiryDate: expiry,
					AlertDate:  CalculateAlertDate(expiry),
				}
				if err := tx.Create(&alert).Error; err != nil {
					return err
				}
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
