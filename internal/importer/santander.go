package importer

import (
	"regexp"
	"strings"

	"github.com/conciliar-dev/conciliar/internal/document"
	"github.com/conciliar-dev/conciliar/internal/model"
)

// SantanderParser reads Santander statements: Data | Histórico | Valor, without
// a running balance.
type SantanderParser struct{}

var reSantanderAmount = regexp.MustCompile(`(-?\s*(?:R\$\s*)?` + brNumber + `)\s*$`)

func (p *SantanderParser) Bank() string { return "SANTANDER" }

func (p *SantanderParser) Formats() []document.Format {
	return []document.Format{document.FormatPDF, document.FormatText}
}

func (p *SantanderParser) Parse(doc *document.Document) ([]model.RawRecord, error) {
	lines, err := doc.Lines()
	if err != nil {
		return nil, err
	}
	return number(parseSantanderLines(lines)), nil
}

func parseSantanderLines(lines []string) []model.RawRecord {
	var records []model.RawRecord
	for _, line := range lines {
		up := fold(line)
		if hasAnyPrefix(up, "DATA ", "TOTAL", "SANTANDER", "OUVIDORIA", "SAC ") ||
			containsAny(up, "EXTRATO", "SALDO DO DIA", "SALDO ANTERIOR") {
			continue
		}
		date, rest, ok := splitDateLine(line)
		if !ok {
			continue
		}
		m := reSantanderAmount.FindStringSubmatchIndex(rest)
		if m == nil {
			continue
		}
		description := strings.TrimSpace(rest[:m[2]])
		if description == "" {
			description = strings.TrimSpace(rest)
		}
		records = append(records, model.RawRecord{
			Kind:        model.RecordMovement,
			Date:        date,
			Description: cleanSpaces(description),
			Amount:      cleanSpaces(rest[m[2]:m[3]]),
			Source:      line,
		})
	}
	return records
}
