package importer

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fvila/renovaciones/internal/models"
	"github.com/xuri/excelize/v2"
)

// Row is one flattened spreadsheet record. Values are trimmed strings; dates
// are canonicalized to YYYY-MM-DD. Number is the 1-based spreadsheet row.
type Row struct {
	Data   map[string]string
	Number int
}

// BatchError aborts an import before any row is processed (unreadable file,
// unsupported format, missing required columns).
type BatchError struct {
	Reason string
}

func (e *BatchError) Error() string { return e.Reason }

var requiredColumns = []string{"full_name", "nif"}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006"}

// ReadFile loads a .csv or .xlsx file into flat rows. Any failure here is
// batch-fatal; per-row problems are left to the merger.
func ReadFile(path string) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".xlsx":
		return readXLSX(path)
	default:
		return nil, &BatchError{Reason: "Unsupported file type: " + filepath.Ext(path)}
	}
}

func readCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &BatchError{Reason: "Cannot open file: " + err.Error()}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, &BatchError{Reason: "Cannot parse CSV: " + err.Error()}
	}
	return assemble(records)
}

func readXLSX(path string) ([]Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &BatchError{Reason: "Cannot open file: " + err.Error()}
	}
	defer f.Close()

	records, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, &BatchError{Reason: "Cannot read sheet: " + err.Error()}
	}
	return assemble(records)
}

func assemble(records [][]string) ([]Row, error) {
	if len(records) == 0 {
		return nil, &BatchError{Reason: "File has no data rows"}
	}
	headers := make([]string, len(records[0]))
	present := map[string]bool{}
	for i, h := range records[0] {
		headers[i] = strings.TrimPrefix(strings.TrimSpace(h), "\uFEFF")
		present[headers[i]] = true
	}
	var missing []string
	for _, want := range requiredColumns {
		if !present[want] {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return nil, &BatchError{Reason: "Missing required columns: " + strings.Join(missing, ", ")}
	}

	var rows []Row
	for idx, record := range records[1:] {
		data := map[string]string{}
		empty := true
		for col, raw := range record {
			if col >= len(headers) || headers[col] == "" {
				continue
			}
			value := normalizeValue(raw)
			if value != "" {
				empty = false
			}
			data[headers[col]] = value
		}
		if empty {
			continue
		}
		rows = append(rows, Row{Data: data, Number: idx + 2})
	}

	if len(rows) == 0 {
		return nil, &BatchError{Reason: "File has no data rows"}
	}
	return rows, nil
}

// normalizeValue trims and canonicalizes cell values; recognized date
// spellings collapse to YYYY-MM-DD.
func normalizeValue(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return value
}

// ParseDate interprets a normalized cell as a calendar date.
func ParseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &t
		}
	}
	return nil
}

// ParseBool accepts the spreadsheet truthy tokens, Spanish ones included.
func ParseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "y", "si", "s":
		return true
	}
	return false
}

var docTypeAliases = map[string]string{
	"dni":               models.DocTypeDNI,
	"carnet":            models.DocTypeDrivingLicense,
	"driving_license":   models.DocTypeDrivingLicense,
	"cap":               models.DocTypeCAP,
	"tacografo":         models.DocTypeTachographCard,
	"tachograph":        models.DocTypeTachographCard,
	"tachograph_card":   models.DocTypeTachographCard,
	"poder_notarial":    models.DocTypePowerOfAttorney,
	"power_of_attorney": models.DocTypePowerOfAttorney,
	"otro":              models.DocTypeOther,
	"other":             models.DocTypeOther,
}

// ParseDocType resolves a spreadsheet document-type token to a canonical
// type. Unresolvable tokens mean the row contributes no document.
func ParseDocType(value string) (string, bool) {
	t, ok := docTypeAliases[strings.ToLower(strings.TrimSpace(value))]
	return t, ok
}
