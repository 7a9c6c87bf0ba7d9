package models

import "time"

// Client entity
type Client struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FullName  string    `gorm:"not null;index" json:"full_name"`
	Company   string    `gorm:"index" json:"company,omitempty"`
	PhotoPath string    `json:"photo_path,omitempty"`
	NIF       string    `gorm:"uniqueIndex;not null;size:32" json:"nif"`
	Phone     string    `gorm:"index" json:"phone"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Documents []Document `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Alerts    []Alert    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
