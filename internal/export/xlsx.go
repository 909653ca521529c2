// Package export renders a period's extracted CSV files as one XLSX workbook.
package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dnmos/weba/internal/artifacts"
	"github.com/dnmos/weba/internal/logger"
	"github.com/dnmos/weba/internal/period"
	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// DefaultPath returns <base>/exports/tpo_<period>.xlsx.
func DefaultPath(layout artifacts.Layout, p period.Period) string {
	return filepath.Join(layout.Base, "exports", fmt.Sprintf("tpo_%s.xlsx", p))
}

// Workbook builds a workbook with one sheet per stage, named after the stage.
// A stage whose file is missing gets an empty sheet and a warning.
func Workbook(ctx context.Context, layout artifacts.Layout, p period.Period) (*excelize.File, error) {
	log := logger.FromContext(ctx).With().Str("period", p.String()).Logger()

	f := excelize.NewFile()
	for i, stage := range period.Stages {
		sheet := string(stage)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", sheet, err)
		}

		path := layout.StageFile(stage, p)
		table, err := artifacts.ReadTable(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Warn().Str("stage", sheet).Str("path", path).Msg("Stage file missing, leaving sheet empty")
				continue
			}
			return nil, err
		}

		if err := writeSheet(f, sheet, table); err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheet, err)
		}
	}

	idx, err := f.GetSheetIndex(string(period.StagePayments))
	if err != nil {
		return nil, fmt.Errorf("active sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, t *artifacts.Table) error {
	if len(t.Header) == 0 {
		return nil
	}
	if err := f.SetSheetRow(sheet, "A1", &t.Header); err != nil {
		return err
	}
	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	last, err := excelize.ColumnNumberToName(len(t.Header))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", last, 18); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

// WritePeriod saves the period workbook to out, creating parent directories.
// An empty out uses DefaultPath. It returns the written path.
func WritePeriod(ctx context.Context, layout artifacts.Layout, p period.Period, out string) (string, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	if out == "" {
		out = DefaultPath(layout, p)
	}

	f, err := Workbook(ctx, layout, p)
	if err != nil {
		return "", fmt.Errorf("export %s: %w", p, err)
	}
	defer f.Close()

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("export %s: create dir: %w", p, err)
	}
	if err := f.SaveAs(out); err != nil {
		return "", fmt.Errorf("export %s: xlsx write: %w", p, err)
	}

	log.Info().
		Str("period", p.String()).
		Str("path", out).
		Dur("elapsed", time.Since(start)).
		Msg("Exported period workbook")
	return out, nil
}
