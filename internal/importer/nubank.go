package importer

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/conciliar-dev/conciliar/internal/document"
	"github.com/conciliar-dev/conciliar/internal/model"
)

// NubankParser parses Nubank account CSV exports:
// Data,Valor,Identificador,Descrição with dot-decimal signed values and no balance.
type NubankParser struct{}

const (
	nubankColDate   = "DATA"
	nubankColAmount = "VALOR"
	nubankColID     = "IDENTIFICADOR"
	nubankColDesc   = "DESCRICAO"
)

// ExtraExternalID is the extra field carrying the bank's own transaction identifier.
const ExtraExternalID = "external_id"

func (p *NubankParser) Bank() string { return "NUBANK" }

func (p *NubankParser) Formats() []document.Format {
	return []document.Format{document.FormatCSV}
}

// Parse reads a Nubank CSV.
func (p *NubankParser) Parse(doc *document.Document) ([]model.RawRecord, error) {
	text, err := doc.Text()
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(strings.NewReader(text))
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading nubank CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols, err := columnIndex(rows[0], nubankColDate, nubankColAmount, nubankColID, nubankColDesc)
	if err != nil {
		return nil, fmt.Errorf("nubank CSV: %w", err)
	}

	var records []model.RawRecord
	for _, row := range rows[1:] {
		get := cellGetter(row)
		if get(cols[nubankColDate]) == "" && get(cols[nubankColAmount]) == "" {
			continue
		}
		rec := model.RawRecord{
			Kind:        model.RecordMovement,
			Date:        get(cols[nubankColDate]),
			Description: get(cols[nubankColDesc]),
			Amount:      get(cols[nubankColAmount]),
			Source:      strings.Join(row, ","),
		}
		if id := get(cols[nubankColID]); id != "" {
			rec.Extra = map[string]string{ExtraExternalID: id}
		}
		records = append(records, rec)
	}
	return number(records), nil
}
