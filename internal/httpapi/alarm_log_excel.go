package httpapi

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Haru65/subtronic-backend/internal/models"
)

// AlarmLogExportHeader is the column layout of the alarm log export.
var AlarmLogExportHeader = []string{
	"Alert ID",
	"Device ID",
	"Device Name",
	"Alarm Type",
	"Severity",
	"Message",
	"Threshold",
	"Current Value",
	"Unit",
	"Gas Type",
	"Acknowledged",
	"Acknowledged By",
	"Acknowledged At",
	"Timestamp",
}

// GenerateAlarmLogExport renders the alarm log entries into an xlsx
// workbook.
func GenerateAlarmLogExport(entries []models.AlarmLogEntry) ([]byte, error) {
	f := excelize.NewFile()

	sheetName := "Alarm Log"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range AlarmLogExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for row, entry := range entries {
		values := []interface{}{
			entry.ID,
			entry.DeviceID,
			entry.DeviceName,
			entry.AlarmType,
			entry.Severity,
			entry.Message,
			floatOrEmpty(entry.Threshold),
			floatOrEmpty(entry.CurrentValue),
			entry.Unit,
			entry.GasType,
			entry.Acknowledged,
			entry.AckedBy,
			timeOrEmpty(entry.AckedAt),
			entry.Timestamp.Format(time.RFC3339),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				f.Close()
				return nil, err
			}
			f.SetCellValue(sheetName, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func floatOrEmpty(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func timeOrEmpty(t *time.Time) interface{} {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
