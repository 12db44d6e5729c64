package approval

import (
	"strings"

	"github.com/xuri/excelize/v2"
)

var exportColumns = []string{
	"ID", "Kind", "Employee ID", "Employee", "Department", "Requester", "Summary",
	"Mode", "Status", "Manager", "GM", "COO", "Created At", "Updated At", "Cancelled By",
}

// ExportToExcel renders requests as a single-sheet workbook
func ExportToExcel(requests []Request, filename string) ([]byte, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Requests"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, "", err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	for i, col := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, req := range requests {
		row := []any{
			req.ID.Hex(),
			req.Kind,
			req.EmployeeID,
			req.EmployeeName,
			req.Department,
			req.RequesterLoginID,
			req.Summary,
			string(req.ApprovalMode),
			string(req.Status),
			slotCell(&req, RoleManager),
			slotCell(&req, RoleGM),
			slotCell(&req, RoleCOO),
			req.CreatedAt.Format("2006-01-02 15:04:05"),
			req.UpdatedAt.Format("2006-01-02 15:04:05"),
			req.CancelledBy,
		}
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, "", err
		}
	}

	for i := range exportColumns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 18)
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}
	return buffer.Bytes(), filename, nil
}

// slotCell renders "login (STATUS)" for a participating role
func slotCell(req *Request, role Role) string {
	slot := req.Slot(role)
	if slot == nil {
		return ""
	}
	parts := []string{slot.LoginID, "(" + string(slot.Status) + ")"}
	if slot.Note != "" {
		parts = append(parts, slot.Note)
	}
	return strings.Join(parts, " ")
}
