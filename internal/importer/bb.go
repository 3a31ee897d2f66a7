package importer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/conciliar-dev/conciliar/internal/document"
	"github.com/conciliar-dev/conciliar/internal/model"
)

// BBParser reads Banco do Brasil checking account statements. Values carry a
// C/D marker; the balance, when present, is signed by its own marker.
type BBParser struct{}

var (
	reBBValue = regexp.MustCompile(`(?i)(` + brNumber + `)\s*([CD])\b`)
	reBBDoc   = regexp.MustCompile(`\b\d{1,3}(?:\.\d{3})+\b|\b\d{4,}\b`)
	reBBSaldo = regexp.MustCompile(`\bS\s*A\s*L\s*D\s*O\b`)
)

func (p *BBParser) Bank() string { return "BB" }

func (p *BBParser) Formats() []document.Format {
	return []document.Format{document.FormatPDF, document.FormatText}
}

func (p *BBParser) Parse(doc *document.Document) ([]model.RawRecord, error) {
	lines, err := doc.Lines()
	if err != nil {
		return nil, err
	}
	return number(parseBBLines(lines)), nil
}

// bbSection returns the lines between the "Lançamentos" and "Lançamentos futuros"
// headings, or all lines when the headings are missing.
func bbSection(lines []string) []string {
	var section []string
	started := false
	for _, line := range lines {
		up := fold(line)
		if !started {
			if strings.HasPrefix(up, "LANCAMENTOS") {
				started = true
			}
			continue
		}
		if strings.HasPrefix(up, "LANCAMENTOS FUTUROS") {
			break
		}
		section = append(section, cleanSpaces(line))
	}
	if len(section) == 0 {
		for _, line := range lines {
			section = append(section, cleanSpaces(line))
		}
	}
	return section
}

func isBBNoise(up string) bool {
	if strings.Contains(up, "SALDO ANTERIOR") {
		return false
	}
	return reBBSaldo.MatchString(up) ||
		hasAnyPrefix(up, "OBSERVA", "SERVICO DE ATENDIMENTO", "SAC ", "OUVIDORIA", "PARA DEFICIENTES", "TRANSACAO EFETUADA")
}

func parseBBLines(lines []string) []model.RawRecord {
	// Continuation lines ("05/01 12:55 BENEFICIARIO", wrapped names) belong to
	// the previous dated line.
	var joined []string
	for _, line := range bbSection(lines) {
		if isBBNoise(fold(line)) {
			continue
		}
		if _, _, ok := splitDateLine(line); ok || len(joined) == 0 {
			joined = append(joined, line)
			continue
		}
		joined[len(joined)-1] = joined[len(joined)-1] + " " + line
	}

	var records []model.RawRecord
	for _, line := range joined {
		date, rest, ok := splitDateLine(line)
		if !ok {
			continue
		}
		marks := reBBValue.FindAllStringSubmatchIndex(rest, -1)
		if len(marks) == 0 {
			continue
		}

		if strings.Contains(fold(rest), "SALDO ANTERIOR") {
			last := marks[len(marks)-1]
			records = append(records, model.RawRecord{
				Kind:        model.RecordOpeningBalance,
				Date:        date,
				Description: "SALDO ANTERIOR",
				Balance:     bbSigned(rest[last[2]:last[3]], rest[last[4]:last[5]]),
				Source:      line,
			})
			continue
		}

		value := marks[len(marks)-1]
		balance := ""
		remove := [][]int{value[:2]}
		if len(marks) >= 2 {
			value = marks[len(marks)-2]
			last := marks[len(marks)-1]
			balance = bbSigned(rest[last[2]:last[3]], rest[last[4]:last[5]])
			remove = [][]int{value[:2], last[:2]}
		}

		description := cleanSpaces(removeSpans(rest, remove))
		ref := ""
		if docs := reBBDoc.FindAllString(description, -1); len(docs) > 0 {
			ref = docs[len(docs)-1]
		}
		if description == "" {
			description = "Lançamento"
		}
		records = append(records, model.RawRecord{
			Kind:        model.RecordMovement,
			Date:        date,
			Description: description,
			Reference:   ref,
			Amount:      rest[value[2]:value[3]],
			Direction:   strings.ToUpper(rest[value[4]:value[5]]),
			Balance:     balance,
			Source:      line,
		})
	}
	return records
}

// bbSigned turns a C/D marked balance into a signed value.
func bbSigned(value, marker string) string {
	if strings.EqualFold(marker, "D") {
		return "-" + value
	}
	return value
}

func removeSpans(s string, spans [][]int) string {
	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })
	var b strings.Builder
	last := 0
	for _, sp := range spans {
		if sp[0] > last {
			b.WriteString(s[last:sp[0]])
		}
		last = max(last, sp[1])
	}
	b.WriteString(s[last:])
	return b.String()
}
