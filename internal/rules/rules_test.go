package rules

import (
	"testing"
	"time"

	"github.com/fvila/renovaciones/internal/models"
)

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestCollectExpiryDatesSingle(t *testing.T) {
	doc := &models.Document{DocType: models.DocTypeCAP, ExpiryDate: datePtr(2026, 10, 1)}
	got := CollectExpiryDates(doc)
	if len(got) != 1 || !got[0].Equal(*datePtr(2026, 10, 1)) {
		t.Fatalf("unexpected expiries: %v", got)
	}

	doc.ExpiryDate = nil
	if got := CollectExpiryDates(doc); len(got) != 0 {
		t.Fatalf("expected no expiries, got %v", got)
	}
}

func TestCollectExpiryDatesPowerOfAttorney(t *testing.T) {
	doc := &models.Document{
		DocType:       models.DocTypePowerOfAttorney,
		FlagFran:      true,
		FlagCiusaba:   false,
		ExpiryFran:    datePtr(2026, 5, 1),
		ExpiryCiusaba: datePtr(2026, 6, 1),
	}
	got := CollectExpiryDates(doc)
	if len(got) != 1 || !got[0].Equal(*datePtr(2026, 5, 1)) {
		t.Fatalf("expected only fran date, got %v", got)
	}

	doc.FlagCiusaba = true
	got = CollectExpiryDates(doc)
	if len(got) != 2 {
		t.Fatalf("expected both dates, got %v", got)
	}
	if !got[0].Equal(*datePtr(2026, 5, 1)) || !got[1].Equal(*datePtr(2026, 6, 1)) {
		t.Fatalf("wrong order: %v", got)
	}

	// identical dates collapse to one
	doc.ExpiryCiusaba = datePtr(2026, 5, 1)
	if got := CollectExpiryDates(doc); len(got) != 1 {
		t.Fatalf("expected de-duplicated single date, got %v", got)
	}

	// a set flag without its date contributes nothing
	doc.ExpiryCiusaba = nil
	doc.FlagFran = false
	if got := CollectExpiryDates(doc); len(got) != 0 {
		t.Fatalf("expected no dates, got %v", got)
	}
}

func TestNormalizePaymentNonRenewalTypesForcedBlank(t *testing.T) {
	in := PaymentFields{
		RenewedWithUs:     true,
		PaymentMethod:     models.PaymentEmpresa,
		Fundae:            true,
		FundaePaymentType: models.FundaeRecibo,
		OperationNumber:   "OP-1",
	}
	out, err := NormalizePaymentFields(in, models.DocTypeDNI)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.RenewedWithUs || out.PaymentMethod != "" || out.Fundae || out.FundaePaymentType != "" || out.OperationNumber != "" {
		t.Fatalf("expected blank payment fields, got %#v", out)
	}
}

func TestNormalizePaymentNotRenewed(t *testing.T) {
	for _, method := range []string{"", models.PaymentEfectivo, models.PaymentVisa, models.PaymentEmpresa} {
		in := PaymentFields{RenewedWithUs: false, PaymentMethod: method, Fundae: true, FundaePaymentType: models.FundaeRecibo, OperationNumber: "X"}
		out, err := NormalizePaymentFields(in, models.DocTypeCAP)
		if err != nil {
			t.Fatalf("method %q: unexpected error: %v", method, err)
		}
		if out.PaymentMethod != "" || out.Fundae || out.FundaePaymentType != "" || out.OperationNumber != "" {
			t.Fatalf("method %q: expected cleared fields, got %#v", method, out)
		}
	}
}

func TestNormalizePaymentRenewedRequiresMethod(t *testing.T) {
	_, err := NormalizePaymentFields(PaymentFields{RenewedWithUs: true}, models.DocTypeCAP)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	verr, ok := err.(*ValidationError)
	if !ok || verr.Reason == "" {
		t.Fatalf("expected ValidationError with reason, got %#v", err)
	}
}

func TestNormalizePaymentNonCompanyClearsFundae(t *testing.T) {
	in := PaymentFields{
		RenewedWithUs:     true,
		PaymentMethod:     models.PaymentVisa,
		Fundae:            true,
		FundaePaymentType: models.FundaeTransferencia,
		OperationNumber:   "OP-2",
	}
	out, err := NormalizePaymentFields(in, models.DocTypeTachographCard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.PaymentMethod != models.PaymentVisa || out.Fundae || out.FundaePaymentType != "" || out.OperationNumber != "" {
		t.Fatalf("unexpected normalization: %#v", out)
	}
}

func TestNormalizePaymentCompanyKeepsFundaeFields(t *testing.T) {
	in := PaymentFields{
		RenewedWithUs:     true,
		PaymentMethod:     models.PaymentEmpresa,
		Fundae:            false,
		FundaePaymentType: models.FundaeTransferencia,
		OperationNumber:   "OP-3",
	}
	out, err := NormalizePaymentFields(in, models.DocTypeCAP)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// FUNDAE is informational under empresa payment; type and operation
	// number survive even with the flag off.
	if out.Fundae || out.FundaePaymentType != models.FundaeTransferencia || out.OperationNumber != "OP-3" {
		t.Fatalf("unexpected normalization: %#v", out)
	}
}

func TestNormalizePaymentBlankOperationNumberCollapses(t *testing.T) {
	in := PaymentFields{RenewedWithUs: true, PaymentMethod: models.PaymentEmpresa, OperationNumber: "   "}
	out, err := NormalizePaymentFields(in, models.DocTypeCAP)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.OperationNumber != "" {
		t.Fatalf("expected collapsed operation number, got %q", out.OperationNumber)
	}
}

func TestValidateDocumentByType(t *testing.T) {
	cases := []struct {
		name    string
		doc     models.Document
		wantErr bool
	}{
		{"dni complete", models.Document{DocType: models.DocTypeDNI, ExpiryDate: datePtr(2027, 1, 1), BirthDate: datePtr(1980, 1, 1), Address: "Calle Mayor 1"}, false},
		{"dni missing birth date", models.Document{DocType: models.DocTypeDNI, ExpiryDate: datePtr(2027, 1, 1), Address: "Calle Mayor 1"}, true},
		{"license complete", models.Document{DocType: models.DocTypeDrivingLicense, ExpiryDate: datePtr(2027, 1, 1), IssueDate: datePtr(2017, 1, 1), Address: "Calle Mayor 1"}, false},
		{"license missing issue date", models.Document{DocType: models.DocTypeDrivingLicense, ExpiryDate: datePtr(2027, 1, 1), Address: "Calle Mayor 1"}, true},
		{"cap missing expiry", models.Document{DocType: models.DocTypeCAP}, true},
		{"other with expiry", models.Document{DocType: models.DocTypeOther, ExpiryDate: datePtr(2027, 1, 1)}, false},
		{"poa no flags", models.Document{DocType: models.DocTypePowerOfAttorney}, true},
		{"poa fran without date", models.Document{DocType: models.DocTypePowerOfAttorney, FlagFran: true}, true},
		{"poa fran complete", models.Document{DocType: models.DocTypePowerOfAttorney, FlagFran: true, ExpiryFran: datePtr(2027, 1, 1)}, false},
		{"poa ciusaba without date", models.Document{DocType: models.DocTypePowerOfAttorney, FlagCiusaba: true}, true},
		{"unknown type", models.Document{DocType: "passport"}, true},
	}
	for _, tc := range cases {
		err := ValidateDocument(&tc.doc)
		if tc.wantErr && err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
		}
	}
}
