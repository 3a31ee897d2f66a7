package document

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// SheetRows returns the cells of the first worksheet of an XLSX document as
// stored, without number formats: numeric cells keep their plain value and date
// cells come back as Excel serial numbers.
func (d *Document) SheetRows() ([][]string, error) {
	if d.Format != FormatXLSX {
		return nil, fmt.Errorf("%s is not an XLSX document", d.Name)
	}
	xl, err := excelize.OpenReader(bytes.NewReader(d.Data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", d.Name, err)
	}
	defer xl.Close()

	rows, err := xl.GetRows(xl.GetSheetName(0), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading rows of %s: %w", d.Name, err)
	}
	return rows, nil
}
