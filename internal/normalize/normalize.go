// Package normalize turns raw statement records into validated candidates with
// fixed-point amounts, and checks running-balance continuity.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/conciliar-dev/conciliar/internal/model"
)

// DefaultTolerance is the largest accepted difference between a reported
// balance and the computed one.
var DefaultTolerance = decimal.New(1, -2)

// Statement is a normalized document: the optional opening balance anchor and
// the movements in document order.
type Statement struct {
	Opening    decimal.NullDecimal
	Candidates []model.Candidate
}

var (
	errNegativeIn    = errors.New("negative amount with an IN marker")
	errOpeningNotTop = errors.New("opening balance must be the first record")
	errEmpty         = errors.New("empty value")
)

// Normalize validates records in order. The first failing record stops the run.
func Normalize(records []model.RawRecord, tolerance decimal.Decimal) (*Statement, error) {
	st := &Statement{}
	for i, r := range records {
		if r.Kind == model.RecordOpeningBalance {
			if i != 0 {
				return nil, &model.ParseFieldError{Row: r.Row, Field: "kind", Value: r.Kind.String(), Err: errOpeningNotTop}
			}
			bal, err := ParseAmount(r.Balance)
			if err != nil {
				return nil, &model.ParseFieldError{Row: r.Row, Field: "balance", Value: r.Balance, Err: err}
			}
			st.Opening = decimal.NewNullDecimal(bal)
			continue
		}
		c, err := NormalizeRecord(r)
		if err != nil {
			return nil, err
		}
		st.Candidates = append(st.Candidates, c)
	}
	if err := VerifyContinuity(st.Opening, st.Candidates, tolerance); err != nil {
		return nil, err
	}
	return st, nil
}

// NormalizeRecord converts one movement record.
func NormalizeRecord(r model.RawRecord) (model.Candidate, error) {
	fieldErr := func(field, value string, err error) error {
		return &model.ParseFieldError{Row: r.Row, Field: field, Value: value, Err: err}
	}

	date, err := ParseDate(r.Date)
	if err != nil {
		return model.Candidate{}, fieldErr("date", r.Date, err)
	}
	amount, err := ParseAmount(r.Amount)
	if err != nil {
		return model.Candidate{}, fieldErr("amount", r.Amount, err)
	}

	dir := model.DirectionIn
	if amount.IsNegative() {
		dir = model.DirectionOut
	}
	if strings.TrimSpace(r.Direction) != "" {
		marked, err := model.ParseDirection(r.Direction)
		if err != nil {
			return model.Candidate{}, fieldErr("direction", r.Direction, err)
		}
		if marked == model.DirectionIn && amount.IsNegative() {
			return model.Candidate{}, fieldErr("amount", r.Amount, errNegativeIn)
		}
		dir = marked
	}

	c := model.Candidate{
		Row:         r.Row,
		Date:        date,
		Description: cleanSpaces(r.Description),
		Reference:   strings.TrimSpace(r.Reference),
		Amount:      amount.Abs(),
		Direction:   dir,
		Extra:       r.Extra,
		Source:      r.Source,
	}
	if strings.TrimSpace(r.Balance) != "" {
		bal, err := ParseAmount(r.Balance)
		if err != nil {
			return model.Candidate{}, fieldErr("balance", r.Balance, err)
		}
		c.Balance = decimal.NewNullDecimal(bal)
	}
	return c, nil
}

// VerifyContinuity checks every reported balance against the previous anchor
// plus the signed amount. Movements without a balance advance the anchor.
func VerifyContinuity(opening decimal.NullDecimal, candidates []model.Candidate, tolerance decimal.Decimal) error {
	anchor := opening
	for _, c := range candidates {
		if !c.Balance.Valid {
			if anchor.Valid {
				anchor.Decimal = anchor.Decimal.Add(c.Signed())
			}
			continue
		}
		if anchor.Valid {
			expected := anchor.Decimal.Add(c.Signed())
			if expected.Sub(c.Balance.Decimal).Abs().GreaterThan(tolerance) {
				return &model.BalanceContinuityError{Row: c.Row, Expected: expected, Reported: c.Balance.Decimal}
			}
		}
		anchor = c.Balance
	}
	return nil
}

var (
	reDecimal = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	reSpaces  = regexp.MustCompile(`\s+`)
)

func cleanSpaces(s string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

// ParseAmount reads Brazilian ("1.234,56", "R$ 1.234,56", "-R$ 1.234,56",
// "1.234,56-") and dot-decimal ("-107.00") amounts. More than two decimal
// places is an error.
func ParseAmount(s string) (decimal.Decimal, error) {
	v := cleanSpaces(s)
	if v == "" {
		return decimal.Decimal{}, errEmpty
	}
	neg := false
	if strings.HasSuffix(v, "-") {
		neg = true
		v = strings.TrimSpace(strings.TrimSuffix(v, "-"))
	}
	if strings.HasPrefix(v, "-") {
		neg = !neg
		v = strings.TrimSpace(strings.TrimPrefix(v, "-"))
	} else {
		v = strings.TrimSpace(strings.TrimPrefix(v, "+"))
	}
	v = strings.TrimSpace(strings.TrimPrefix(v, "R$"))
	if strings.HasPrefix(v, "-") {
		neg = !neg
		v = strings.TrimSpace(strings.TrimPrefix(v, "-"))
	}
	v = strings.ReplaceAll(v, " ", "")

	if strings.Contains(v, ",") {
		v = strings.ReplaceAll(v, ".", "")
		v = strings.Replace(v, ",", ".", 1)
	}
	if !reDecimal.MatchString(v) {
		return decimal.Decimal{}, fmt.Errorf("not a monetary value")
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if d.Exponent() < -2 {
		return decimal.Decimal{}, fmt.Errorf("more than two decimal places")
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

var ptMonthAbbrev = map[string]time.Month{
	"JAN": time.January, "FEV": time.February, "MAR": time.March, "ABR": time.April,
	"MAI": time.May, "JUN": time.June, "JUL": time.July, "AGO": time.August,
	"SET": time.September, "OUT": time.October, "NOV": time.November, "DEZ": time.December,
}

// ParseDate reads dd/mm/yyyy, yyyy-mm-dd and "dd MON yyyy" with Portuguese
// month abbreviations.
func ParseDate(s string) (time.Time, error) {
	v := cleanSpaces(s)
	if v == "" {
		return time.Time{}, errEmpty
	}
	for _, layout := range []string{"02/01/2006", model.DateLayout} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	if f := strings.Fields(strings.ToUpper(v)); len(f) == 3 {
		m, ok := ptMonthAbbrev[f[1]]
		day, err := strconv.Atoi(f[0])
		if ok && err == nil {
			if t, err := time.Parse("02/01/2006", fmt.Sprintf("%02d/%02d/%s", day, int(m), f[2])); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date")
}
