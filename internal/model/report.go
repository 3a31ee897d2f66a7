package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Month identifies a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("parsing month %q: %w", s, err)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// Start returns the first day of the month in UTC.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first day of the following month.
func (m Month) End() time.Time {
	return m.Start().AddDate(0, 1, 0)
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// ReportRow is one reconciled movement in a monthly report.
type ReportRow struct {
	TransactionID int64               `json:"transaction_id"`
	Date          time.Time           `json:"date"`
	Bank          string              `json:"bank"`
	Company       string              `json:"company"`
	Description   string              `json:"description"`
	Category      string              `json:"category"`
	Process       string              `json:"process,omitempty"`
	Direction     Direction           `json:"direction"`
	In            decimal.Decimal     `json:"in"`
	Out           decimal.Decimal     `json:"out"`
	Balance       decimal.Decimal     `json:"balance"`
	BankBalance   decimal.NullDecimal `json:"bank_balance"`
}

// Report is the data handed to the external report renderer.
type Report struct {
	Client   string          `json:"client"`
	Company  string          `json:"company,omitempty"`
	Month    string          `json:"month"`
	Opening  decimal.Decimal `json:"opening"`
	TotalIn  decimal.Decimal `json:"total_in"`
	TotalOut decimal.Decimal `json:"total_out"`
	Closing  decimal.Decimal `json:"closing"`
	Rows     []ReportRow     `json:"rows"`
}
