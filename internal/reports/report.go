package reports

import (
	"fmt"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/fvila/renovaciones/internal/models"
)

const dateLayout = "02/01/2006"

// ClientReport bundles everything the per-client renewal report shows.
type ClientReport struct {
	Client    models.Client
	Documents []models.Document
	Alerts    []models.Alert
}

// DefaultOutputName builds a timestamped file name for one client report.
func DefaultOutputName(nif string) string {
	return fmt.Sprintf("cliente_%s_%s.pdf", nif, time.Now().Format("20060102_150405"))
}

// Generate renders the client report PDF to outPath.
func Generate(outPath string, data ClientReport) error {
	m := maroto.New(config.NewBuilder().Build())

	m.AddRow(14, text.NewCol(12, "Informe de renovaciones de cliente",
		props.Text{Size: 15, Style: fontstyle.Bold, Align: align.Center}))
	m.AddRow(8,
		text.NewCol(6, "Cliente: "+data.Client.FullName),
		text.NewCol(6, "NIF: "+data.Client.NIF),
	)
	m.AddRow(8,
		text.NewCol(6, "Telefono: "+data.Client.Phone),
		text.NewCol(6, "Email: "+data.Client.Email),
	)

	m.AddRow(10, text.NewCol(12, "Documentos", props.Text{Size: 12, Style: fontstyle.Bold}))
	m.AddRow(7,
		text.NewCol(4, "Tipo", props.Text{Style: fontstyle.Bold}),
		text.NewCol(4, "Caducidad", props.Text{Style: fontstyle.Bold}),
		text.NewCol(4, "Curso", props.Text{Style: fontstyle.Bold}),
	)
	for _, doc := range data.Documents {
		m.AddRow(6,
			text.NewCol(4, models.DocTypeLabels[doc.DocType]),
			text.NewCol(4, formatDate(doc.ExpiryDate)),
			text.NewCol(4, doc.CourseNumber),
		)
	}

	m.AddRow(10, text.NewCol(12, "Avisos", props.Text{Size: 12, Style: fontstyle.Bold}))
	m.AddRow(7,
		text.NewCol(6, "Fecha de aviso", props.Text{Style: fontstyle.Bold}),
		text.NewCol(6, "Caducidad", props.Text{Style: fontstyle.Bold}),
	)
	for _, alert := range data.Alerts {
		m.AddRow(6,
			text.NewCol(6, alert.AlertDate.Format(dateLayout)),
			text.NewCol(6, alert.ExpiryDate.Format(dateLayout)),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return err
	}
	return doc.Save(outPath)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(dateLayout)
}
