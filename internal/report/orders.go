package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"quanlydonhang/backend/internal/domain"
)

const OrdersSheet = "Orders"

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var orderHeaders = []any{"Mã hóa đơn", "Thời gian", "Khách hàng", "Chi nhánh", "Trạng thái", "Sản phẩm", "Tổng tiền"}

// OrdersWorkbook renders the order list as a single-sheet XLSX file. Timestamps
// are written in loc.
func OrdersWorkbook(orders []domain.OrderSummary, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}

	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", OrdersSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := file.SetSheetRow(OrdersSheet, "A1", &orderHeaders); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	headerStyle, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	if err := file.SetCellStyle(OrdersSheet, "A1", "G1", headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for i, o := range orders {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{
			o.InvoiceName,
			o.CreatedAt.In(loc).Format("2006-01-02 15:04:05"),
			o.CustomerName,
			o.BranchID,
			o.StatusName,
			productSummary(o.Products),
			o.InvoiceAmount.InexactFloat64(),
		}
		if err := file.SetSheetRow(OrdersSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	_ = file.SetColWidth(OrdersSheet, "A", "A", 16)
	_ = file.SetColWidth(OrdersSheet, "B", "C", 22)
	_ = file.SetColWidth(OrdersSheet, "F", "F", 48)

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

func productSummary(lines []domain.OrderProductLine) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("%s x%d", l.ProductName, l.Quantity))
	}
	return strings.Join(parts, ", ")
}
