// Package extract implements the three extraction stages: payments, the
// actions affecting each payment, and the per-action details.
package extract

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/dnmos/weba/internal/artifacts"
	"github.com/dnmos/weba/internal/period"
)

// Sentinel errors returned by the extractors. Callers compare with errors.Is.
var (
	// ErrInputNotFound means the stage input file does not exist.
	ErrInputNotFound = errors.New("input file not found")
	// ErrMissingColumn means the input file lacks a required column.
	ErrMissingColumn = errors.New("required column missing")
	// ErrInvalidPeriod means no YYYYMM token could be read from the input file name.
	ErrInvalidPeriod = errors.New("cannot derive period from file name")
	// ErrNoData means every remote call of the stage failed.
	ErrNoData = errors.New("no data retrieved")
	// ErrFetch means the remote call or its decoding failed.
	ErrFetch = errors.New("fetch failed")
)

// readInput loads a stage input file, checks the required columns and
// recovers the period from the file name using the inputStage template.
func readInput(path string, inputStage period.Stage, required ...string) (*artifacts.Table, period.Period, error) {
	table, err := artifacts.ReadTable(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("%s: %w", path, ErrInputNotFound)
		}
		return nil, "", err
	}

	for _, col := range required {
		if !table.HasColumns(col) {
			return nil, "", fmt.Errorf("%s: %w: %s", path, ErrMissingColumn, col)
		}
	}

	p, ok := period.FromFilename(inputStage, filepath.Base(path))
	if !ok {
		return nil, "", fmt.Errorf("%s: %w", path, ErrInvalidPeriod)
	}
	return table, p, nil
}
