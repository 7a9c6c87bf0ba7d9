package models

import "time"

// Alert is a scheduled renewal reminder for one expiry date. DocumentID is
// nullable: an alert outlives its document (set-null) and may also be created
// standalone. The composite unique index keeps a document from ever holding
// two alerts for the same date, even across concurrent deadline scans.
type Alert struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ClientID   uint      `gorm:"not null;index" json:"client_id"`
	DocumentID *uint     `gorm:"index;uniqueIndex:idx_alerts_doc_expiry" json:"document_id,omitempty"`
	ExpiryDate time.Time `gorm:"not null;index;uniqueIndex:idx_alerts_doc_expiry" json:"expiry_date"`
	AlertDate  time.Time `gorm:"not null;index" json:"alert_date"`
	CreatedAt  time.Time `json:"created_at"`
}
