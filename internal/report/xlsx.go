package report

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/conciliar-dev/conciliar/internal/model"
)

// SheetName is the worksheet WriteXLSX fills.
const SheetName = "Relatorio"

var xlsxHeader = []any{"Data", "Banco", "Empresa", "Descricao", "Categoria", "Processo", "Entrada", "Saida", "Saldo"}

// WriteXLSX renders the report as a single-sheet workbook.
func WriteXLSX(w io.Writer, r *model.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	company := r.Company
	if company == "" {
		company = "Todas"
	}
	rows := [][]any{
		{"Cliente", r.Client},
		{"Empresa", company},
		{"Mes", r.Month},
		{"Saldo inicial", money(r.Opening)},
		{},
		xlsxHeader,
	}
	for _, row := range r.Rows {
		rows = append(rows, []any{
			row.Date.Format("02/01/2006"),
			row.Bank,
			row.Company,
			row.Description,
			row.Category,
			row.Process,
			money(row.In),
			money(row.Out),
			money(row.Balance),
		})
	}
	rows = append(rows,
		[]any{},
		[]any{"Total entradas", money(r.TotalIn)},
		[]any{"Total saidas", money(r.TotalOut)},
		[]any{"Saldo final", money(r.Closing)},
	)

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// money renders amounts as numbers so spreadsheets can sum them.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
