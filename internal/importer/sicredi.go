package importer

import (
	"regexp"
	"strings"

	"github.com/conciliar-dev/conciliar/internal/document"
	"github.com/conciliar-dev/conciliar/internal/model"
)

// SicrediParser reads Sicredi statements laid out as
// Data | Descrição | Documento | Valor (R$) | Saldo (R$).
type SicrediParser struct{}

// Document tokens look like COB000013 or PIX_DEB.
var reSicrediDoc = regexp.MustCompile(`^[A-Z0-9_/-]{3,}$`)

func (p *SicrediParser) Bank() string { return "SICREDI" }

func (p *SicrediParser) Formats() []document.Format {
	return []document.Format{document.FormatPDF, document.FormatText}
}

func (p *SicrediParser) Parse(doc *document.Document) ([]model.RawRecord, error) {
	lines, err := doc.Lines()
	if err != nil {
		return nil, err
	}
	return number(parseSicrediLines(lines)), nil
}

func parseSicrediLines(lines []string) []model.RawRecord {
	var records []model.RawRecord
	for _, line := range lines {
		up := fold(line)
		if strings.Contains(up, "SALDO ANTERIOR") {
			if bal, ok := lastMoney(line); ok {
				date, _, _ := splitDateLine(line)
				records = append(records, model.RawRecord{
					Kind:        model.RecordOpeningBalance,
					Date:        date,
					Description: "SALDO ANTERIOR",
					Balance:     bal,
					Source:      line,
				})
			}
			continue
		}
		if strings.HasPrefix(up, "LANCAMENTOS FUTUROS") {
			break
		}
		if strings.HasPrefix(up, "DATA ") {
			continue
		}

		date, rest, ok := splitDateLine(line)
		if !ok {
			continue
		}
		parts := strings.Fields(rest)
		if len(parts) < 3 {
			continue
		}
		amount, balance := parts[len(parts)-2], parts[len(parts)-1]
		if !reMoneyToken.MatchString(amount) || !reMoneyToken.MatchString(balance) {
			continue
		}

		desc := parts[:len(parts)-2]
		ref := ""
		if cand := parts[len(parts)-3]; reSicrediDoc.MatchString(cand) && strings.ContainsAny(cand, "0123456789_") {
			ref = cand
			desc = parts[:len(parts)-3]
		}
		description := strings.Join(desc, " ")
		if description == "" {
			description = rest
		}

		records = append(records, model.RawRecord{
			Kind:        model.RecordMovement,
			Date:        date,
			Description: description,
			Reference:   ref,
			Amount:      amount,
			Balance:     balance,
			Source:      line,
		})
	}
	return records
}
