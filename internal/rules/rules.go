package rules

import (
	"strings"
	"time"

	"github.com/fvila/renovaciones/internal/models"
)

// ValidationError carries the human-readable reason a document cannot be
// saved. Handlers map it to a 422 response.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func failf(reason string) *ValidationError { return &ValidationError{Reason: reason} }

// DateOnly truncates t to a calendar date at UTC midnight so equality and
// day arithmetic are timezone-proof.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateKey is the canonical map key for one calendar date.
func DateKey(t time.Time) string { return DateOnly(t).Format("2006-01-02") }

// CollectExpiryDates returns the ordered, first-seen de-duplicated set of
// dates that require a renewal alert for the document's current state.
// Power-of-attorney documents contribute one date per active grant flag;
// every other type contributes its single expiry date when present.
func CollectExpiryDates(doc *models.Document) []time.Time {
	var out []time.Time
	if doc.DocType == models.DocTypePowerOfAttorney {
		seen := map[string]bool{}
		add := func(d *time.Time) {
			if d == nil {
				return
			}
			key := DateKey(*d)
			if seen[key] {
				return
			}
			seen[key] = true
			out = append(out, DateOnly(*d))
		}
		if doc.FlagFran {
			add(doc.ExpiryFran)
		}
		if doc.FlagCiusaba {
			add(doc.ExpiryCiusaba)
		}
		return out
	}
	if doc.ExpiryDate != nil {
		out = append(out, DateOnly(*doc.ExpiryDate))
	}
	return out
}

// PaymentFields is the renewal/payment subset of a document, normalized as a
// value so the validator never sees a half-mutated record.
type PaymentFields struct {
	RenewedWithUs     bool
	PaymentMethod     string
	Fundae            bool
	FundaePaymentType string
	OperationNumber   string
}

// PaymentFieldsOf extracts the renewal/payment fields from a document.
func PaymentFieldsOf(doc *models.Document) PaymentFields {
	return PaymentFields{
		RenewedWithUs:     doc.RenewedWithUs,
		PaymentMethod:     doc.PaymentMethod,
		Fundae:            doc.Fundae,
		FundaePaymentType: doc.FundaePaymentType,
		OperationNumber:   doc.OperationNumber,
	}
}

// Apply writes the normalized fields back onto the document.
func (p PaymentFields) Apply(doc *models.Document) {
	doc.RenewedWithUs = p.RenewedWithUs
	doc.PaymentMethod = p.PaymentMethod
	doc.Fundae = p.Fundae
	doc.FundaePaymentType = p.FundaePaymentType
	doc.OperationNumber = p.OperationNumber
}

// NormalizePaymentFields enforces the cross-field payment policy for the
// given document type and returns the consistent field set. Only one
// combination is unsatisfiable: renewed-with-us without a payment method.
func NormalizePaymentFields(in PaymentFields, docType string) (PaymentFields, error) {
	out := in
	if strings.TrimSpace(out.OperationNumber) == "" {
		out.OperationNumber = ""
	}

	if docType != models.DocTypeCAP && docType != models.DocTypeTachographCard {
		out.RenewedWithUs = false
		out.PaymentMethod = ""
		out.Fundae = false
		out.FundaePaymentType = ""
		out.OperationNumber = ""
		return out, nil
	}

	if !out.RenewedWithUs {
		out.PaymentMethod = ""
		out.Fundae = false
		out.FundaePaymentType = ""
		out.OperationNumber = ""
		return out, nil
	}

	if out.PaymentMethod == "" {
		return out, failf("Si el documento esta renovado con nosotros, la forma de pago es obligatoria.")
	}

	if out.PaymentMethod != models.PaymentEmpresa {
		out.Fundae = false
		out.FundaePaymentType = ""
		out.OperationNumber = ""
		return out, nil
	}

	// Under empresa payment FUNDAE is informational only; the payment type
	// and operation number are stored regardless of the flag.
	return out, nil
}

// ValidateDocument checks the per-type required-field policy against the
// fully resolved field set. It reports the first unmet requirement.
func ValidateDocument(doc *models.Document) error {
	switch doc.DocType {
	case models.DocTypeDNI:
		if doc.ExpiryDate == nil || doc.BirthDate == nil || doc.Address == "" {
			return failf("El DNI requiere fecha de caducidad, fecha de nacimiento y direccion.")
		}
	case models.DocTypeDrivingLicense:
		if doc.ExpiryDate == nil || doc.IssueDate == nil || doc.Address == "" {
			return failf("El carnet de conducir requiere fecha de caducidad, fecha de obtencion y direccion.")
		}
	case models.DocTypeCAP, models.DocTypeTachographCard, models.DocTypeOther:
		if doc.ExpiryDate == nil {
			return failf("El documento " + models.DocTypeLabels[doc.DocType] + " requiere fecha de caducidad.")
		}
	case models.DocTypePowerOfAttorney:
		if !doc.FlagFran && !doc.FlagCiusaba {
			return failf("El poder notarial requiere al menos un apoderamiento: Fran o CIUSABA.")
		}
		if doc.FlagFran && doc.ExpiryFran == nil {
			return failf("expiry_fran es obligatorio cuando flag_fran es verdadero.")
		}
		if doc.FlagCiusaba && doc.ExpiryCiusaba == nil {
			return failf("expiry_ciusaba es obligatorio cuando flag_ciusaba es verdadero.")
		}
	default:
		return failf("Tipo de documento desconocido: " + doc.DocType)
	}
	return nil
}
