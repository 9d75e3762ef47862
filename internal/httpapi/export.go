package httpapi

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"almacena/backend/internal/domain"
)

var stockReportHeaders = []string{"Product ID", "Product", "Warehouse", "Quantity", "Min Stock"}

func stockReportRows(levels []domain.StockLevel) [][]string {
	rows := make([][]string, 0, len(levels))
	for _, level := range levels {
		rows = append(rows, []string{
			level.ProductID,
			level.ProductName,
			level.WarehouseID,
			strconv.Itoa(level.Quantity),
			strconv.Itoa(level.MinStock),
		})
	}
	return rows
}

var movementReportHeaders = []string{"ID", "Product ID", "Warehouse", "Type", "Quantity", "Reference", "Notes", "Created By", "Created At"}

func movementReportRows(movements []domain.Movement) [][]string {
	rows := make([][]string, 0, len(movements))
	for _, movement := range movements {
		rows = append(rows, []string{
			movement.ID,
			movement.ProductID,
			movement.WarehouseID,
			movement.Type,
			strconv.Itoa(movement.Quantity),
			movement.Reference,
			movement.Notes,
			movement.CreatedBy,
			movement.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return rows
}

// exportCSV writes data to CSV format.
func exportCSV(w http.ResponseWriter, filename string, headers []string, data [][]string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(headers); err != nil {
		http.Error(w, "failed to write CSV headers", http.StatusInternalServerError)
		return
	}
	for _, row := range data {
		if err := writer.Write(row); err != nil {
			http.Error(w, "failed to write CSV row", http.StatusInternalServerError)
			return
		}
	}
}

// exportExcel writes data to a single-sheet xlsx workbook.
func exportExcel(w http.ResponseWriter, sheetName string, headers []string, data [][]string) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		http.Error(w, "failed to create Excel sheet", http.StatusInternalServerError)
		return
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		http.Error(w, "failed to create header style", http.StatusInternalServerError)
		return
	}

	for i, header := range headers {
		cell := fmt.Sprintf("%s1", string(rune('A'+i)))
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, row := range data {
		for colIdx, value := range row {
			cell := fmt.Sprintf("%s%d", string(rune('A'+colIdx)), rowIdx+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	for i := range headers {
		col := string(rune('A' + i))
		f.SetColWidth(sheetName, col, col, 15)
	}

	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", strings.ToLower(sheetName)))

	if err := f.Write(w); err != nil {
		http.Error(w, "failed to write Excel file", http.StatusInternalServerError)
		return
	}
}
