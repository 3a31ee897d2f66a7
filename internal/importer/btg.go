package importer

import (
	"strings"

	"github.com/conciliar-dev/conciliar/internal/document"
	"github.com/conciliar-dev/conciliar/internal/model"
)

// BTGParser reads BTG Pactual statements with value and balance at the end of
// each movement line.
type BTGParser struct{}

func (p *BTGParser) Bank() string { return "BTG" }

func (p *BTGParser) Formats() []document.Format {
	return []document.Format{document.FormatPDF, document.FormatText}
}

func (p *BTGParser) Parse(doc *document.Document) ([]model.RawRecord, error) {
	lines, err := doc.Lines()
	if err != nil {
		return nil, err
	}
	return number(parseBTGLines(lines)), nil
}

func parseBTGLines(lines []string) []model.RawRecord {
	var records []model.RawRecord
	for _, line := range lines {
		up := fold(line)
		if strings.Contains(up, "SALDO DE ABERTURA") {
			if bal, ok := lastMoney(line); ok {
				date, _, _ := splitDateLine(line)
				records = append(records, model.RawRecord{
					Kind:        model.RecordOpeningBalance,
					Date:        date,
					Description: "SALDO DE ABERTURA",
					Balance:     bal,
					Source:      line,
				})
			}
			continue
		}
		if containsAny(up, "SALDO DE FECHAMENTO", "TOTAL DE ENTRADAS", "TOTAL DE SAIDAS") {
			continue
		}

		date, rest, ok := splitDateLine(line)
		if !ok {
			continue
		}
		parts := strings.Fields(rest)
		if len(parts) < 2 {
			continue
		}
		amount, balance := parts[len(parts)-2], parts[len(parts)-1]
		if !reMoneyToken.MatchString(amount) || !reMoneyToken.MatchString(balance) {
			continue
		}
		records = append(records, model.RawRecord{
			Kind:        model.RecordMovement,
			Date:        date,
			Description: strings.Join(parts[:len(parts)-2], " "),
			Amount:      amount,
			Balance:     balance,
			Source:      line,
		})
	}
	return records
}
