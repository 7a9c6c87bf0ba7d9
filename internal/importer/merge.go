package importer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fvila/renovaciones/internal/alerts"
	"github.com/fvila/renovaciones/internal/models"
	"github.com/fvila/renovaciones/internal/rules"
	"gorm.io/gorm"
)

// Result summarizes one import batch. Errors carry the spreadsheet row
// number; a bad row never aborts the rest of the batch.
type Result struct {
	ClientsCreated   int      `json:"clients_created"`
	ClientsUpdated   int      `json:"clients_updated"`
	DocumentsCreated int      `json:"documents_created"`
	DocumentsUpdated int      `json:"documents_updated"`
	Skipped          int      `json:"skipped"`
	Errors           []string `json:"errors"`
}

// Merger applies parsed spreadsheet rows to the client/document store with
// the same normalization and validation policy as direct document writes.
type Merger struct {
	DB *gorm.DB
}

func NewMerger(db *gorm.DB) *Merger { return &Merger{DB: db} }

// Run merges every row inside one transaction; the batch commits once at the
// end, so a crash mid-batch imports nothing.
func (m *Merger) Run(rows []Row) (Result, error) {
	res := Result{Errors: []string{}}
	err := m.DB.Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			m.mergeRow(tx, row, &res)
		}
		return nil
	})
	if err != nil {
		return Result{Errors: []string{}}, err
	}
	return res, nil
}

func (m *Merger) mergeRow(tx *gorm.DB, row Row, res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: %v", row.Number, r))
		}
	}()

	rowErr := func(reason string) {
		res.Errors = append(res.Errors, fmt.Sprintf("Row %d: %s", row.Number, reason))
	}

	data := row.Data
	nif := strings.TrimSpace(data["nif"])
	fullName := strings.TrimSpace(data["full_name"])
	if nif == "" || fullName == "" {
		rowErr("missing required fields")
		return
	}

	client, err := m.upsertClient(tx, nif, fullName, data, res)
	if err != nil {
		rowErr(err.Error())
		return
	}

	docType, ok := ParseDocType(data["document_type"])
	if !ok {
		return // client-only row
	}

	doc, err := buildDocument(client.ID, docType, data)
	if err != nil {
		rowErr(err.Error())
		return
	}

	if docType == models.DocTypeDrivingLicense {
		if merged, err := m.mergeDrivingLicense(tx, doc, res); err != nil {
			rowErr(err.Error())
			return
		} else if merged {
			return
		}
	} else {
		dup, err := m.findExactDuplicate(tx, doc)
		if err != nil {
			rowErr(err.Error())
			return
		}
		if dup {
			res.Skipped++
			return
		}
	}

	if err := tx.Create(doc).Error; err != nil {
		rowErr(err.Error())
		return
	}
	res.DocumentsCreated++

	for _, expiry := range rules.CollectExpiryDates(doc) {
		var count int64
		if err := tx.Model(&models.Alert{}).
			Where("document_id = ? AND expiry_date = ?", doc.ID, expiry).
			Count(&count).Error; err != nil {
			rowErr(err.Error())
			return
		}
		if count > 0 {
			continue
		}
		docID := doc.ID
		alert := models.Alert{
			ClientID:   doc.ClientID,
			DocumentID: &docID,
			ExpiryDate: expiry,
			AlertDate:  alerts.CalculateAlertDate(expiry),
		}
		if err := tx.Create(&alert).Error; err != nil {
			rowErr(err.Error())
			return
		}
	}
}

// upsertClient finds the client by NIF or creates it. On update the name is
// always overwritten; phone, company and email only when the row carries a
// non-blank value, so sparse imports cannot erase earlier manual entries.
func (m *Merger) upsertClient(tx *gorm.DB, nif, fullName string, data map[string]string, res *Result) (*models.Client, error) {
	var client models.Client
	err := tx.Where("nif = ?", nif).First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		client = models.Client{
			FullName: fullName,
			NIF:      nif,
			Phone:    strings.TrimSpace(data["phone"]),
			Company:  strings.TrimSpace(data["company"]),
			Email:    strings.TrimSpace(data["email"]),
		}
		if err := tx.Create(&client).Error; err != nil {
			return nil, err
		}
		res.ClientsCreated++
		return &client, nil
	}
	if err != nil {
		return nil, err
	}

	client.FullName = fullName
	if v := strings.TrimSpace(data["phone"]); v != "" {
		client.Phone = v
	}
	if v := strings.TrimSpace(data["company"]); v != "" {
		client.Company = v
	}
	if v := strings.TrimSpace(data["email"]); v != "" {
		client.Email = v
	}
	if err := tx.Save(&client).Error; err != nil {
		return nil, err
	}
	res.ClientsUpdated++
	return &client, nil
}

// buildDocument assembles the candidate document from row values, running
// the shared payment normalization. The literal payment token "fundae" is an
// import-only shorthand for empresa payment with the FUNDAE flag on.
func buildDocument(clientID uint, docType string, data map[string]string) (*models.Document, error) {
	doc := &models.Document{
		ClientID:      clientID,
		DocType:       docType,
		ExpiryDate:    ParseDate(data["expiry_date"]),
		IssueDate:     ParseDate(data["issue_date"]),
		BirthDate:     ParseDate(data["birth_date"]),
		Address:       strings.TrimSpace(data["address"]),
		CourseNumber:  strings.TrimSpace(data["course_number"]),
		FlagFran:      ParseBool(data["flag_fran"]),
		FlagCiusaba:   ParseBool(data["flag_ciusaba"]),
		ExpiryFran:    ParseDate(data["expiry_fran"]),
		ExpiryCiusaba: ParseDate(data["expiry_ciusaba"]),
		LicenseC:      ParseBool(data["license_c"]),
		LicenseD:      ParseBool(data["license_d"]),
	}

	payment := rules.PaymentFields{
		RenewedWithUs:     ParseBool(data["renewed_with_us"]),
		Fundae:            ParseBool(data["fundae"]),
		OperationNumber:   strings.TrimSpace(data["operation_number"]),
		FundaePaymentType: parseFundaeType(data["fundae_payment_type"]),
	}
	switch token := strings.ToLower(strings.TrimSpace(data["payment_method"])); token {
	case "fundae":
		payment.PaymentMethod = models.PaymentEmpresa
		payment.Fundae = true
	case models.PaymentEfectivo, models.PaymentVisa, models.PaymentEmpresa:
		payment.PaymentMethod = token
	}
	normalized, err := rules.NormalizePaymentFields(payment, docType)
	if err != nil {
		return nil, err
	}
	normalized.Apply(doc)

	switch docType {
	case models.DocTypePowerOfAttorney:
		if (!doc.FlagFran || doc.ExpiryFran == nil) && (!doc.FlagCiusaba || doc.ExpiryCiusaba == nil) {
			return nil, errors.New("el poder notarial requiere un apoderamiento con su fecha de caducidad")
		}
	case models.DocTypeDrivingLicense:
		// expiry optional on import; the row may only carry permission flags
	default:
		if doc.ExpiryDate == nil {
			return nil, errors.New("falta fecha de caducidad")
		}
	}
	return doc, nil
}

func parseFundaeType(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case models.FundaeRecibo:
		return models.FundaeRecibo
	case models.FundaeTransferencia:
		return models.FundaeTransferencia
	}
	return ""
}

// mergeDrivingLicense folds a row's C/D permission flags into the client's
// existing driving license instead of duplicating it. Returns true when the
// row was consumed (merged or skipped).
func (m *Merger) mergeDrivingLicense(tx *gorm.DB, doc *models.Document, res *Result) (bool, error) {
	var existing models.Document
	err := tx.Where("client_id = ? AND doc_type = ?", doc.ClientID, models.DocTypeDrivingLicense).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	changed := false
	if doc.LicenseC && !existing.LicenseC {
		existing.LicenseC = true
		changed = true
	}
	if doc.LicenseD && !existing.LicenseD {
		existing.LicenseD = true
		changed = true
	}
	if !changed {
		res.Skipped++
		return true, nil
	}
	if err := tx.Save(&existing).Error; err != nil {
		return false, err
	}
	res.DocumentsUpdated++
	return true, nil
}

// findExactDuplicate reports whether the client already holds a document
// matching the candidate across every persisted field, which makes
// re-importing the same spreadsheet safe.
func (m *Merger) findExactDuplicate(tx *gorm.DB, doc *models.Document) (bool, error) {
	var existing []models.Document
	if err := tx.Where("client_id = ? AND doc_type = ?", doc.ClientID, doc.DocType).
		Find(&existing).Error; err != nil {
		return false, err
	}
	for i := range existing {
		if sameDocument(&existing[i], doc) {
			return true, nil
		}
	}
	return false, nil
}

func sameDocument(a, b *models.Document) bool {
	return sameDate(a.ExpiryDate, b.ExpiryDate) &&
		sameDate(a.IssueDate, b.IssueDate) &&
		sameDate(a.BirthDate, b.BirthDate) &&
		sameDate(a.ExpiryFran, b.ExpiryFran) &&
		sameDate(a.ExpiryCiusaba, b.ExpiryCiusaba) &&
		a.Address == b.Address &&
		a.CourseNumber == b.CourseNumber &&
		a.RenewedWithUs == b.RenewedWithUs &&
		a.PaymentMethod == b.PaymentMethod &&
		a.Fundae == b.Fundae &&
		a.FundaePaymentType == b.FundaePaymentType &&
		a.OperationNumber == b.OperationNumber &&
		a.FlagFran == b.FlagFran &&
		a.FlagCiusaba == b.FlagCiusaba &&
		a.LicenseC == b.LicenseC &&
		a.LicenseD == b.LicenseD
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return rules.DateKey(*a) == rules.DateKey(*b)
}
