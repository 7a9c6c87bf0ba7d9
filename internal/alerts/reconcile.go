package alerts

import (
	"time"

	"github.com/fvila/renovaciones/internal/models"
	"github.com/fvila/renovaciones/internal/rules"
	"gorm.io/gorm"
)

// LeadTime is the fixed offset between a document's expiry date and the date
// its alert becomes due.
const LeadTime = 50 * 24 * time.Hour

// CalculateAlertDate returns the date a reminder for the given expiry
// becomes due. UTC midnight dates make the subtraction exact calendar days.
func CalculateAlertDate(expiry time.Time) time.Time {
	return rules.DateOnly(expiry).Add(-LeadTime)
}

// Reconcile mutates the alert set of a saved document so it exactly matches
// the document's current expiry set. It runs within the caller's transaction
// and is idempotent: a second call with no document change issues no writes.
//
// Duplicate alerts sharing one expiry date are a drift state that should not
// occur, but when found the extras are deleted rather than reported.
func Reconcile(tx *gorm.DB, doc *models.Document) error {
	targets := map[string]time.Time{}
	for _, d := range rules.CollectExpiryDates(doc) {
		targets[rules.DateKey(d)] = d
	}

	var existing []models.Alert
	if err := tx.Where("document_id = ?", doc.ID).Find(&existing).Error; err != nil {
		return err
	}

	byDate := map[string]models.Alert{}
	for _, alert := range existing {
		key := rules.DateKey(alert.ExpiryDate)
		if _, dup := byDate[key]; dup {
			if err := tx.Delete(&models.Alert{}, alert.ID).Error; err != nil {
				return err
			}
			continue
		}
		byDate[key] = alert
	}

	for key, alert := range byDate {
		if _, want := targets[key]; !want {
			if err := tx.Delete(&models.Alert{}, alert.ID).Error; err != nil {
				return err
			}
		}
	}

	for key, expiry := range targets {
		alertDate := CalculateAlertDate(expiry)
		alert, ok := byDate[key]
		if !ok {
			docID := doc.ID
			fresh := models.Alert{
				ClientID:   doc.ClientID,
				DocumentID: &docID,
				ExpiryDate: expiry,
				AlertDate:  alertDate,
			}
			if err := tx.Create(&fresh).Error; err != nil {
				return err
			}
			continue
		}
		// Refresh in case the document moved to another client; skip the
		// write entirely when nothing changed.
		if alert.ClientID == doc.ClientID && alert.ExpiryDate.Equal(expiry) && alert.AlertDate.Equal(alertDate) {
			continue
		}
		alert.ClientID = doc.ClientID
		alert.ExpiryDate = expiry
		alert.AlertDate = alertDate
		if err := tx.Save(&alert).Error; err != nil {
			return err
		}
	}
	return nil
}
