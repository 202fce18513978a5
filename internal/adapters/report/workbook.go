// internal/adapters/report/workbook.go
package report

import (
	"bytes"
	"fmt"

	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/shelfstock-be/internal/core/domain"
)

// ContentType is the media type of the generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	salesHeaders = []string{
		"Sale ID", "Created At", "Status", "Payment Method", "Lines", "Total Quantity", "Total Amount",
	}
	allocationHeaders = []string{
		"Sale ID", "Created At", "Payment Method", "Product ID", "Batch Number", "Batch ID",
		"Expiry Date", "Quantity", "Unit Price", "Batch Price", "Amount",
	}
)

// BuildSalesWorkbook renders sales into an xlsx workbook with a summary sheet
// and one row per batch allocation.
func BuildSalesWorkbook(sales []domain.SaleRecord) ([]byte, error) {
	file := xlsx.NewFile()

	summary, err := file.AddSheet("Sales")
	if err != nil {
		return nil, fmt.Errorf("failed to add sales sheet: %w", err)
	}
	allocations, err := file.AddSheet("Allocations")
	if err != nil {
		return nil, fmt.Errorf("failed to add allocations sheet: %w", err)
	}

	addHeader(summary, salesHeaders)
	addHeader(allocations, allocationHeaders)

	for _, sale := range sales {
		created := sale.CreatedAt.UTC().Format("2006-01-02 15:04:05")

		row := summary.AddRow()
		row.AddCell().SetString(sale.ID.String())
		row.AddCell().SetString(created)
		row.AddCell().SetString(string(sale.Status))
		row.AddCell().SetString(sale.PaymentMethod)
		row.AddCell().SetInt(len(sale.Lines))
		row.AddCell().SetInt(sale.TotalQuantity)
		row.AddCell().SetNumeric(sale.TotalAmount.StringFixed(2))

		for _, line := range sale.Lines {
			for _, a := range line.Allocations {
				expiry := ""
				if a.ExpiryDate != nil {
					expiry = a.ExpiryDate.UTC().Format("2006-01-02")
				}

				r := allocations.AddRow()
				r.AddCell().SetString(sale.ID.String())
				r.AddCell().SetString(created)
				r.AddCell().SetString(sale.PaymentMethod)
				r.AddCell().SetString(line.ProductID.String())
				r.AddCell().SetString(a.BatchNumber)
				r.AddCell().SetString(a.BatchID.String())
				r.AddCell().SetString(expiry)
				r.AddCell().SetInt(a.Quantity)
				r.AddCell().SetNumeric(a.UnitPrice.StringFixed(2))
				r.AddCell().SetNumeric(a.BatchPrice.StringFixed(2))
				r.AddCell().SetNumeric(a.Amount.StringFixed(2))
			}
		}
	}

	var buffer bytes.Buffer
	if err := file.Write(&buffer); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buffer.Bytes(), nil
}

func addHeader(sheet *xlsx.Sheet, headers []string) {
	row := sheet.AddRow()
	for _, header := range headers {
		cell := row.AddCell()
		cell.Value = header
		cell.GetStyle().Font.Bold = true
		cell.GetStyle().Fill.PatternType = "solid"
		cell.GetStyle().Fill.FgColor = "CCCCCC"
	}
	for i := range headers {
		sheet.SetColWidth(i+1, i+1, 18)
	}
}
