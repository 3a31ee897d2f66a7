package importer

import (
	"encoding/csv"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/conciliar-dev/conciliar/internal/document"
	"github.com/conciliar-dev/conciliar/internal/model"
)

// InterParser reads Banco Inter statements: the PDF export, where each day opens
// with a "27 de Outubro de 2025 Saldo do dia: ..." header, and the CSV export.
type InterParser struct{}

var (
	reInterDay   = regexp.MustCompile(`(?i)^(\d{1,2})\s+de\s+(\p{L}+)\s+de\s+(\d{4})\b`)
	reInterMoney = regexp.MustCompile(`-?\s*R\$\s*` + brNumber)
)

var ptMonths = map[string]int{
	"JANEIRO": 1, "FEVEREIRO": 2, "MARCO": 3, "ABRIL": 4, "MAIO": 5, "JUNHO": 6,
	"JULHO": 7, "AGOSTO": 8, "SETEMBRO": 9, "OUTUBRO": 10, "NOVEMBRO": 11, "DEZEMBRO": 12,
}

const interCSVHeader = "DATA LANCAMENTO;"

// Inter CSV columns.
const (
	interColDate    = "DATA LANCAMENTO"
	interColHistory = "HISTORICO"
	interColDesc    = "DESCRICAO"
	interColAmount  = "VALOR"
	interColBalance = "SALDO"
)

func (p *InterParser) Bank() string { return "INTER" }

func (p *InterParser) Formats() []document.Format {
	return []document.Format{document.FormatPDF, document.FormatText, document.FormatCSV}
}

// Parse dispatches on the document format.
func (p *InterParser) Parse(doc *document.Document) ([]model.RawRecord, error) {
	if doc.Format == document.FormatCSV {
		return p.parseCSV(doc)
	}
	lines, err := doc.Lines()
	if err != nil {
		return nil, err
	}
	return number(parseInterLines(lines)), nil
}

func parseInterLines(lines []string) []model.RawRecord {
	var records []model.RawRecord
	day := ""
	for _, line := range lines {
		if d, ok := interDay(line); ok {
			day = d
			continue
		}
		up := fold(line)
		if hasAnyPrefix(up, "SOLICITADO EM:", "PERIODO:", "SALDO TOTAL") ||
			strings.Contains(up, "VALOR SALDO POR TRANSACAO") {
			continue
		}
		if day == "" {
			continue
		}

		// Movement lines carry the amount and the balance after it.
		spans := reInterMoney.FindAllStringIndex(line, -1)
		if len(spans) < 2 {
			continue
		}
		amount, balance := spans[len(spans)-2], spans[len(spans)-1]
		records = append(records, model.RawRecord{
			Kind:        model.RecordMovement,
			Date:        day,
			Description: cleanSpaces(line[:amount[0]]),
			Amount:      cleanSpaces(line[amount[0]:amount[1]]),
			Balance:     cleanSpaces(line[balance[0]:balance[1]]),
			Source:      line,
		})
	}
	return records
}

// interDay parses a day header into dd/mm/yyyy.
func interDay(line string) (string, bool) {
	m := reInterDay.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	month, ok := ptMonths[fold(m[2])]
	if !ok {
		return "", false
	}
	day, err := strconv.Atoi(m[1])
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%02d/%02d/%s", day, month, m[3]), true
}

func (p *InterParser) parseCSV(doc *document.Document) ([]model.RawRecord, error) {
	text, err := doc.Text()
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	start := -1
	for i, l := range lines {
		if strings.HasPrefix(fold(strings.TrimSpace(l)), interCSVHeader) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("inter CSV: header %q not found", "Data Lançamento;Histórico;Descrição;Valor;Saldo")
	}

	cr := csv.NewReader(strings.NewReader(strings.Join(lines[start:], "\n")))
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading inter CSV: %w", err)
	}

	cols, err := columnIndex(rows[0], interColDate, interColHistory, interColDesc, interColAmount, interColBalance)
	if err != nil {
		return nil, fmt.Errorf("inter CSV: %w", err)
	}

	var records []model.RawRecord
	for _, row := range rows[1:] {
		get := cellGetter(row)
		if get(cols[interColDate]) == "" && get(cols[interColAmount]) == "" {
			continue
		}
		records = append(records, model.RawRecord{
			Kind:        model.RecordMovement,
			Date:        get(cols[interColDate]),
			Description: cleanSpaces(get(cols[interColHistory]) + " " + get(cols[interColDesc])),
			Amount:      get(cols[interColAmount]),
			Balance:     get(cols[interColBalance]),
			Source:      strings.Join(row, ";"),
		})
	}
	return number(records), nil
}

// columnIndex maps folded header names to their positions and fails when any
// required column is missing.
func columnIndex(header []string, required ...string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[fold(strings.TrimSpace(h))] = i
	}
	var missing []string
	for _, r := range required {
		if _, ok := cols[r]; !ok {
			missing = append(missing, r)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func cellGetter(row []string) func(int) string {
	return func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
}
