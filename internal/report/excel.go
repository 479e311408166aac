// Package report exports ingested calls and their candidate tasks to an
// Excel workbook for review outside the system.
package report

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/avdeenko/call-intake/internal/core/domain"
	"github.com/avdeenko/call-intake/internal/core/ports"
)

const (
	callsSheet = "Calls"
	tasksSheet = "Candidate Tasks"
)

type Exporter struct {
	directory ports.CallDirectory
}

func NewExporter(directory ports.CallDirectory) *Exporter {
	return &Exporter{directory: directory}
}

// Export writes the most recent calls and their extracted tasks to an
// xlsx workbook at path. limit <= 0 uses the directory default.
func (e *Exporter) Export(ctx context.Context, path string, limit int) error {
	calls, err := e.directory.ListRecentCalls(ctx, limit)
	if err != nil {
		return fmt.Errorf("list calls for report: %w", err)
	}

	workbook := excelize.NewFile()
	defer workbook.Close()

	workbook.SetSheetName(workbook.GetSheetName(0), callsSheet)
	if _, err := workbook.NewSheet(tasksSheet); err != nil {
		return fmt.Errorf("create tasks sheet: %w", err)
	}

	if err := writeRow(workbook, callsSheet, 1,
		"Call Date", "Caller", "Client", "Phone", "File", "Duration", "Transcribed"); err != nil {
		return err
	}
	if err := writeRow(workbook, tasksSheet, 1,
		"Call Date", "Client", "Task", "Category", "Start", "Due"); err != nil {
		return err
	}

	taskRow := 2
	for i, call := range calls {
		clientName := domain.UnidentifiedLabel
		if call.ClientName != nil {
			clientName = *call.ClientName
		}
		if err := writeRow(workbook, callsSheet, i+2,
			call.CallDate.Format("2006-01-02 15:04:05"),
			call.CallerName,
			clientName,
			call.PhoneNumber,
			call.FileName,
			call.Duration,
			call.Transcript != nil,
		); err != nil {
			return err
		}

		messages, err := e.directory.ListMessagesByCall(ctx, call.ID)
		if err != nil {
			return fmt.Errorf("list messages for call %s: %w", call.ID, err)
		}
		for _, message := range messages {
			for _, task := range message.Tasks {
				start, due := "", ""
				if task.StartDate != nil {
					start = task.StartDate.Format("2006-01-02")
				}
				if task.DueDate != nil {
					due = task.DueDate.Format("2006-01-02")
				}
				if err := writeRow(workbook, tasksSheet, taskRow,
					call.CallDate.Format("2006-01-02 15:04:05"),
					clientName,
					task.Title,
					task.Category,
					start,
					due,
				); err != nil {
					return err
				}
				taskRow++
			}
		}
	}

	if err := workbook.SaveAs(path); err != nil {
		return fmt.Errorf("save report workbook: %w", err)
	}
	return nil
}

func writeRow(workbook *excelize.File, sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("resolve cell for row %d: %w", row, err)
	}
	if err := workbook.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
