// Package export renders a client's calendar as an Excel workbook.
package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"alcyxob/coach-scheduler/internal/domain"
	"alcyxob/coach-scheduler/internal/service"
)

// SheetCalendar is the name of the single sheet in the workbook.
const SheetCalendar = "Calendario"

// ContentType is the MIME type of the rendered workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// doneColumn is the 1-based index of the "Completado" column.
const doneColumn = 11

var calendarColumns = []struct {
	title string
	width float64
}{
	{"Fecha", 12},
	{"Periodo", 9},
	{"Semana", 9},
	{"Día", 12},
	{"Bloque", 9},
	{"Orden", 8},
	{"Ejercicio", 28},
	{"Peso", 14},
	{"Reps", 10},
	{"Series", 10},
	{"Completado", 12},
	{"Nota", 36},
}

// CalendarWorkbook writes one row per calendar entry, in the order given.
func CalendarWorkbook(entries []service.CalendarEntry) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetCalendar); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#2E75B6"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	doneStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Size: 10, Color: "#006100"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#C6EFCE"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create status style: %w", err)
	}

	for i, col := range calendarColumns {
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetCellValue(SheetCalendar, name+"1", col.title); err != nil {
			return nil, err
		}
		if err := f.SetColWidth(SheetCalendar, name, name, col.width); err != nil {
			return nil, err
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(calendarColumns))
	if err := f.SetCellStyle(SheetCalendar, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, err
	}

	for i, e := range entries {
		row := i + 2
		date := ""
		if e.ScheduledDate != nil {
			date = e.ScheduledDate.Format(domain.DateLayout)
		}
		done := "No"
		if e.Completed {
			done = "Sí"
		}
		weight, reps, count := setColumns(e)
		values := []interface{}{
			date, e.Period, e.Week, string(e.Weekday), e.BlockNumber, e.OrderInBlock,
			e.ExerciseName, weight, reps, count, done, e.ClientNote,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(SheetCalendar, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", row, err)
		}
		if e.Completed {
			doneCell, _ := excelize.CoordinatesToCellName(doneColumn, row)
			if err := f.SetCellStyle(SheetCalendar, doneCell, doneCell, doneStyle); err != nil {
				return nil, err
			}
		}
	}

	if err := f.SetPanes(SheetCalendar, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}

	return f.WriteToBuffer()
}

// setColumns splits the entry's sets into weight, reps and set-count cells, one
// value per group joined by " / ". A snapshot that does not parse goes verbatim
// into the weight cell.
func setColumns(e service.CalendarEntry) (weight, reps, count string) {
	sets := e.Sets
	if sets == nil {
		var err error
		if sets, err = domain.ParseDetailOfSets(e.DetailOfSetsSnapshot); err != nil {
			return e.DetailOfSetsSnapshot, "", ""
		}
	}
	if len(sets) == 0 {
		return "", "", ""
	}
	w := make([]string, len(sets))
	r := make([]string, len(sets))
	c := make([]string, len(sets))
	for i, set := range sets {
		w[i] = strconv.FormatFloat(set.Weight, 'f', -1, 64)
		r[i] = strconv.Itoa(set.Reps)
		c[i] = strconv.Itoa(set.SetCount)
	}
	return strings.Join(w, " / "), strings.Join(r, " / "), strings.Join(c, " / ")
}
