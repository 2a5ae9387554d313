package payroll

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Payroll"

// Workbook is a rendered XLSX export.
type Workbook struct {
	FileName string
	Data     []byte
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

var paymentColumns = []struct {
	header string
	width  float64
}{
	{"Employee", 28},
	{"Email", 30},
	{"Department", 20},
	{"Position", 20},
	{"Amount", 14},
	{"Status", 14},
	{"Transfer Status", 16},
	{"Transfer Reference", 52},
	{"Processed At", 22},
}

// BuildWorkbook renders a summary block followed by one row per payment.
func BuildWorkbook(p *Payroll) (*Workbook, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1F4E78"}},
	})
	if err != nil {
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, err
	}

	summary := [][]any{
		{"Payroll", p.Name},
		{"Pay Date", p.PayDate.Format("2006-01-02")},
		{"Period", p.PeriodStart.Format("2006-01-02") + " to " + p.PeriodEnd.Format("2006-01-02")},
		{"Status", string(p.Status)},
		{"Employees", p.EmployeeCount},
		{"Total Amount", p.TotalAmount.InexactFloat64()},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, err
		}
		f.SetCellStyle(sheetName, cell, cell, bold)
	}
	totalCell, _ := excelize.CoordinatesToCellName(2, len(summary))
	f.SetCellStyle(sheetName, totalCell, totalCell, money)

	headerRow := len(summary) + 2
	for i, col := range paymentColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		f.SetCellValue(sheetName, cell, col.header)
		f.SetCellStyle(sheetName, cell, cell, header)

		name, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, name, name, col.width)
	}

	for i, pay := range p.Payments {
		row := headerRow + 1 + i
		values := []any{"", "", "", "", pay.Amount.InexactFloat64(), string(pay.Status), pay.TransferStatus, pay.TransferRef, ""}
		if pay.Employee != nil {
			values[0] = pay.Employee.Name
			values[1] = pay.Employee.Email
			values[2] = pay.Employee.Department
			values[3] = pay.Employee.Position
		}
		if pay.ProcessedAt != nil {
			values[8] = pay.ProcessedAt.Format("2006-01-02 15:04:05")
		}

		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, err
		}
		amountCell, _ := excelize.CoordinatesToCellName(5, row)
		f.SetCellStyle(sheetName, amountCell, amountCell, money)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	return &Workbook{
		FileName: fmt.Sprintf("payroll-%d-%s.xlsx", p.ID, fileSlug(p.Name)),
		Data:     buf.Bytes(),
	}, nil
}

func fileSlug(name string) string {
	slug := strings.Trim(unsafeFileChars.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		return "export"
	}
	return slug
}
