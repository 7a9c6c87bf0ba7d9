package models

import "time"

// Document types form a closed set; validation and expiry extraction switch
// on the discriminant rather than on per-type models.
const (
	DocTypeDNI             = "dni"
	DocTypeDrivingLicense  = "driving_license"
	DocTypeCAP             = "cap"
	DocTypeTachographCard  = "tachograph_card"
	DocTypePowerOfAttorney = "power_of_attorney"
	DocTypeOther           = "other"
)

// Payment methods accepted on CAP / tachograph-card renewals.
const (
	PaymentEfectivo = "efectivo"
	PaymentVisa     = "visa"
	PaymentEmpresa  = "empresa"
)

// FUNDAE payment types (only meaningful under empresa payment).
const (
	FundaeRecibo        = "recibo"
	FundaeTransferencia = "transferencia"
)

// DocTypeLabels maps canonical types to the labels used in user-facing
// validation messages.
var DocTypeLabels = map[string]string{
	DocTypeDNI:             "DNI",
	DocTypeDrivingLicense:  "carnet de conducir",
	DocTypeCAP:             "CAP",
	DocTypeTachographCard:  "tarjeta de tacografo",
	DocTypePowerOfAttorney: "poder notarial",
	DocTypeOther:           "otro",
}

// KnownDocType reports whether t is one of the canonical document types.
func KnownDocType(t string) bool {
	_, ok := DocTypeLabels[t]
	return ok
}

// Document is one regulatory artifact owned by a client. It carries the
// superset of all type-specific fields; which ones matter depends on DocType.
type Document struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	ClientID uint   `gorm:"not null;index" json:"client_id"`
	Client   Client `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	DocType  string `gorm:"not null;index;size:32" json:"doc_type"`

	ExpiryDate *time.Time `gorm:"index" json:"expiry_date,omitempty"`
	IssueDate  *time.Time `json:"issue_date,omitempty"`
	BirthDate  *time.Time `json:"birth_date,omitempty"`
	Address    string     `gorm:"size:500" json:"address,omitempty"`
	PdfPath    string     `gorm:"size:500" json:"pdf_path,omitempty"`

	CourseNumber string `gorm:"size:128" json:"course_number,omitempty"`

	RenewedWithUs     bool   `gorm:"not null;default:false" json:"renewed_with_us"`
	PaymentMethod     string `gorm:"size:32" json:"payment_method,omitempty"`
	Fundae            bool   `gorm:"not null;default:false" json:"fundae"`
	FundaePaymentType string `gorm:"size:32" json:"fundae_payment_type,omitempty"`
	OperationNumber   string `gorm:"size:128" json:"operation_number,omitempty"`

	// Power-of-attorney grants: each flag carries its own expiry date.
	FlagFran      bool       `gorm:"not null;default:false" json:"flag_fran"`
	FlagCiusaba   bool       `gorm:"not null;default:false" json:"flag_ciusaba"`
	ExpiryFran    *time.Time `json:"expiry_fran,omitempty"`
	ExpiryCiusaba *time.Time `json:"expiry_ciusaba,omitempty"`

	// Driving-license category entitlements.
	LicenseC bool `gorm:"not null;default:false" json:"license_c"`
	LicenseD bool `gorm:"not null;default:false" json:"license_d"`

	CreatedAt time.Time `json:"created_at"`

	Alerts []Alert `gorm:"constraint:OnDelete:SET NULL" json:"-"`
}
