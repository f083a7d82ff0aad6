package projection

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	SeriesSheet = "Proyección"
	WeeklySheet = "Resumen semanal"
)

var seriesHeaders = []string{
	"Día", "Peso (g)", "Mortalidad", "Alimento (kg)", "Agua (L)",
	"Temperatura (°C)", "Electricidad (kWh)", "Conversión",
}

var weeklyHeaders = []string{"Semana", "Día", "Peso (g)", "Mortalidad", "Conversión"}

// WriteXLSX writes the projected series and its weekly summary as a workbook
func WriteXLSX(w io.Writer, p *Projection) error {
	if p == nil {
		return fmt.Errorf("projection is required")
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SeriesSheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if _, err := f.NewSheet(WeeklySheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E2EFDA"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeHeader(f, SeriesSheet, seriesHeaders, headerStyle); err != nil {
		return err
	}
	for i, pt := range p.Series {
		row := []any{
			pt.Day, pt.Weight, pt.Mortality, pt.FeedConsumption, pt.WaterConsumption,
			pt.Temperature, pt.ElectricUsage, pt.FCR,
		}
		if err := writeRow(f, SeriesSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := writeHeader(f, WeeklySheet, weeklyHeaders, headerStyle); err != nil {
		return err
	}
	for i, wk := range p.Weekly {
		row := []any{wk.Week, wk.Day, wk.Weight, wk.Mortality, wk.FCR}
		if err := writeRow(f, WeeklySheet, i+2, row); err != nil {
			return err
		}
	}

	// scenario details below the weekly table
	infoRow := len(p.Weekly) + 3
	info := [][]any{
		{"Escenario", p.Scenario.Name},
		{"Día de cambio", p.PivotDay},
		{"Peso actual (g)", p.Current.Weight},
	}
	for i, row := range info {
		if err := writeRow(f, WeeklySheet, infoRow+i, row); err != nil {
			return err
		}
	}

	for _, sheet := range []string{SeriesSheet, WeeklySheet} {
		if err := f.SetColWidth(sheet, "A", "H", 16); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
		if err := f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return fmt.Errorf("failed to freeze panes: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}
