package importer

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/conciliar-dev/conciliar/internal/document"
	"github.com/conciliar-dev/conciliar/internal/model"
)

// ItauParser reads Itaú statements:
// Data | Lançamentos | Razão Social | CNPJ/CPF | Valor (R$) | Saldo (R$).
// Most movement lines carry only the value; the balance arrives on separate
// "SALDO TOTAL DISPONÍVEL DIA" lines.
type ItauParser struct{}

var (
	reCNPJ = regexp.MustCompile(`\b\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2}\b`)
	reCPF  = regexp.MustCompile(`\b\d{3}\.?\d{3}\.?\d{3}-?\d{2}\b`)
)

func (p *ItauParser) Bank() string { return "ITAU" }

func (p *ItauParser) Formats() []document.Format {
	return []document.Format{document.FormatPDF, document.FormatText, document.FormatXLSX}
}

func (p *ItauParser) Parse(doc *document.Document) ([]model.RawRecord, error) {
	if doc.Format == document.FormatXLSX {
		rows, err := doc.SheetRows()
		if err != nil {
			return nil, err
		}
		records, err := parseItauSheet(rows)
		if err != nil {
			return nil, err
		}
		return number(records), nil
	}
	lines, err := doc.Lines()
	if err != nil {
		return nil, err
	}
	return number(parseItauLines(lines)), nil
}

// itauStatement accumulates records and back-fills daily balances.
type itauStatement struct {
	records []model.RawRecord
}

func (s *itauStatement) opening(date, balance, source string) {
	s.records = append(s.records, model.RawRecord{
		Kind:        model.RecordOpeningBalance,
		Date:        date,
		Description: "SALDO ANTERIOR",
		Balance:     balance,
		Source:      source,
	})
}

func (s *itauStatement) movement(r model.RawRecord) {
	r.Kind = model.RecordMovement
	s.records = append(s.records, r)
}

// dayBalance assigns balance to the last movement of date still without one.
func (s *itauStatement) dayBalance(date, balance string) {
	for i := len(s.records) - 1; i >= 0; i-- {
		r := &s.records[i]
		if r.Kind == model.RecordMovement && r.Date == date && r.Balance == "" {
			r.Balance = balance
			return
		}
	}
}

func isItauFooter(up string) bool {
	return hasAnyPrefix(up, "AVISO:", "EM CASO DE DUVIDAS", "ATUALIZADO EM") ||
		containsAny(up, "RECLAMACOES", "OUVIDORIA", "FALE CONOSCO") ||
		strings.HasPrefix(up, "SAC ")
}

func isItauHeader(up string) bool {
	return hasAnyPrefix(up, "LANCAMENTOS DO PERIODO", "DATA LANCAMENTOS")
}

// mergeItauLines joins continuation lines onto the previous date-led line,
// dropping header and footer fragments.
func mergeItauLines(lines []string) []string {
	var merged []string
	for _, line := range lines {
		up := fold(line)
		if isItauFooter(up) || isItauHeader(up) {
			continue
		}
		if _, _, ok := splitDateLine(line); ok || len(merged) == 0 {
			merged = append(merged, line)
			continue
		}
		merged[len(merged)-1] = merged[len(merged)-1] + " " + line
	}
	return merged
}

func parseItauLines(lines []string) []model.RawRecord {
	var st itauStatement
	for _, line := range mergeItauLines(lines) {
		date, rest, ok := splitDateLine(line)
		if !ok {
			continue
		}
		restUp := fold(rest)

		switch {
		case strings.Contains(restUp, "SALDO ANTERIOR"):
			if bal, ok := lastMoney(rest); ok {
				st.opening(date, bal, line)
			}
			continue
		case strings.HasPrefix(restUp, "SALDO TOTAL"):
			if bal, ok := lastMoney(rest); ok {
				st.dayBalance(date, bal)
			}
			continue
		}

		spans := moneySpans(rest)
		if len(spans) == 0 {
			continue
		}
		amount := spans[len(spans)-1]
		balance := ""
		if len(spans) >= 2 {
			amount = spans[len(spans)-2]
			last := spans[len(spans)-1]
			balance = cleanSpaces(rest[last[0]:last[1]])
		}

		description := cleanSpaces(rest[:amount[0]])
		ref := itauReference(rest)
		if ref != "" {
			description = cleanSpaces(strings.Replace(description, ref, "", 1))
		}
		st.movement(model.RawRecord{
			Date:        date,
			Description: description,
			Reference:   ref,
			Amount:      cleanSpaces(rest[amount[0]:amount[1]]),
			Balance:     balance,
			Source:      line,
		})
	}
	return st.records
}

func itauReference(s string) string {
	if m := reCNPJ.FindString(s); m != "" {
		return m
	}
	return reCPF.FindString(s)
}

// Itaú spreadsheet header cells, folded.
const (
	itauColDate    = "DATA"
	itauColEntry   = "LANCAMENTO"
	itauColCompany = "RAZAO SOCIAL"
	itauColTaxID   = "CNPJ"
	itauColAmount  = "VALOR"
	itauColBalance = "SALDO"
)

// parseItauSheet reads the spreadsheet export. The header row is located by its
// cell text since the export starts with a variable block of account details.
// Every non-blank row below the header must carry a readable date and value;
// errors report the spreadsheet row number.
func parseItauSheet(rows [][]string) ([]model.RawRecord, error) {
	header := -1
	var cols map[string]int
	for i, row := range rows {
		if c, ok := itauHeader(row); ok {
			header, cols = i, c
			break
		}
	}
	if header < 0 {
		return nil, fmt.Errorf("itau spreadsheet: header row with Data, Lançamentos and Valor not found")
	}

	var st itauStatement
	for i, row := range rows[header+1:] {
		sheetRow := header + i + 2
		source := sheetLine(row)
		if source == "" || isItauFooter(fold(source)) {
			continue
		}
		get := cellGetter(row)
		col := func(name string) string {
			i, ok := cols[name]
			if !ok {
				return ""
			}
			return get(i)
		}

		date, ok := sheetDate(col(itauColDate))
		if !ok {
			return nil, sheetError(sheetRow, "date", col(itauColDate))
		}
		entry := cleanSpaces(col(itauColEntry))
		entryUp := fold(entry)
		if strings.Contains(entryUp, "SALDO ANTERIOR") || strings.HasPrefix(entryUp, "SALDO TOTAL") {
			raw := firstNonEmpty(col(itauColBalance), col(itauColAmount))
			bal, ok := sheetMoney(raw)
			if !ok {
				return nil, sheetError(sheetRow, "balance", raw)
			}
			if strings.HasPrefix(entryUp, "SALDO TOTAL") {
				st.dayBalance(date, bal)
			} else {
				st.opening(date, bal, source)
			}
			continue
		}

		amount, ok := sheetMoney(col(itauColAmount))
		if !ok {
			return nil, sheetError(sheetRow, "amount", col(itauColAmount))
		}
		balance := ""
		if raw := col(itauColBalance); raw != "" {
			if balance, ok = sheetMoney(raw); !ok {
				return nil, sheetError(sheetRow, "balance", raw)
			}
		}
		st.movement(model.RawRecord{
			Date:        date,
			Description: cleanSpaces(entry + " " + col(itauColCompany)),
			Reference:   col(itauColTaxID),
			Amount:      amount,
			Balance:     balance,
			Source:      source,
		})
	}
	return st.records, nil
}

func sheetError(row int, field, value string) error {
	return &model.ParseFieldError{Row: row, Field: field, Value: value, Err: errUnreadableCell}
}

var errUnreadableCell = errors.New("unreadable spreadsheet cell")

// sheetLine is the text of a spreadsheet row as document.Lines renders it.
func sheetLine(row []string) string {
	return strings.TrimSpace(strings.Join(row, " "))
}

// sheetDate accepts a dd/mm/yyyy text cell or an Excel date serial.
func sheetDate(cell string) (string, bool) {
	if reDateOnly.MatchString(cell) {
		return cell, true
	}
	serial, err := strconv.ParseFloat(cell, 64)
	if err != nil || serial < 1 {
		return "", false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return "", false
	}
	return t.Format("02/01/2006"), true
}

var reRawNumber = regexp.MustCompile(`^-?\d+(?:\.\d+)?(?:[eE][-+]?\d+)?$`)

// sheetMoney accepts a value as printed on the statement ("1.000,00") or a raw
// numeric cell, which is returned in dot-decimal form. Float noise past the
// cents is dropped; genuine fractions of a cent are kept for normalization to reject.
func sheetMoney(cell string) (string, bool) {
	if cell == "" {
		return "", false
	}
	if reRawNumber.MatchString(cell) {
		d, err := decimal.NewFromString(cell)
		if err != nil {
			return "", false
		}
		if cents := d.Round(2); d.Sub(cents).Abs().LessThan(floatNoise) {
			return cents.StringFixed(2), true
		}
		return d.String(), true
	}
	if reMoneyToken.MatchString(strings.ReplaceAll(cell, " ", "")) {
		return cell, true
	}
	return "", false
}

var floatNoise = decimal.New(1, -6)

var reDateOnly = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

// itauHeader maps header cells to columns by prefix; a row is the header when it
// names at least the date, entry and value columns.
func itauHeader(row []string) (map[string]int, bool) {
	cols := make(map[string]int)
	for i, cell := range row {
		up := fold(strings.TrimSpace(cell))
		for _, name := range []string{itauColDate, itauColEntry, itauColCompany, itauColTaxID, itauColAmount, itauColBalance} {
			if _, seen := cols[name]; !seen && strings.HasPrefix(up, name) {
				cols[name] = i
				break
			}
		}
	}
	_, hasDate := cols[itauColDate]
	_, hasEntry := cols[itauColEntry]
	_, hasAmount := cols[itauColAmount]
	return cols, hasDate && hasEntry && hasAmount
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
