package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/alfredjeanlab/rendezvous/internal/model"
	"github.com/alfredjeanlab/rendezvous/internal/timezone"
)

// SheetName is the worksheet events are written to.
const SheetName = "Events"

// Header is the first row of the events sheet.
var Header = []string{"ID", "Title", "Description", "Participants", "Timezone", "Start", "End", "Created By", "Updates"}

// WriteXLSX writes evts as a single-sheet workbook. Start and End are
// formatted in zone; names resolves profile ids to display names.
func WriteXLSX(w io.Writer, evts []*model.Event, names map[string]string, zone string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, e := range evts {
		start, err := timezone.ToLocalDisplay(e.Start, zone, timezone.StyleDateAndTime)
		if err != nil {
			return err
		}
		end, err := timezone.ToLocalDisplay(e.End, zone, timezone.StyleDateAndTime)
		if err != nil {
			return err
		}
		row := []any{
			e.ID,
			e.Title,
			e.Description,
			strings.Join(displayNames(e.Profiles, names), ", "),
			e.Timezone,
			start,
			end,
			displayName(e.CreatedBy, names),
			len(e.UpdateLogs),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func displayNames(ids []string, names map[string]string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = displayName(id, names)
	}
	return out
}

// displayName falls back to the raw id for profiles without a name.
func displayName(id string, names map[string]string) string {
	if n := names[id]; n != "" {
		return n
	}
	return id
}
