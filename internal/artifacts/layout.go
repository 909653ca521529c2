// Package artifacts owns the on-disk layout of the extracted CSV snapshots
// and the helpers that read and write them.
package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/dnmos/weba/internal/period"
)

const (
	// IndexFileName maps (year_month, payment_uuid) to the payment file path.
	IndexFileName = "payments_metadata.csv"
	// LedgerFileName records which periods finished every stage.
	LedgerFileName = "processed_dates.csv"
)

// Layout resolves artifact paths under a base directory:
//
//	<base>/payments/tpo_payments_<YYYYMM>_EXTRACTED.csv
//	<base>/payment_actions/tpo_payment_actions_<YYYYMM>_EXTRACTED.csv
//	<base>/action_details/tpo_action_details_<YYYYMM>_EXTRACTED.csv
//	<base>/payments_metadata.csv
//	<base>/processed_dates.csv
type Layout struct {
	Base string
}

// NewLayout returns a Layout rooted at base.
func NewLayout(base string) Layout {
	return Layout{Base: base}
}

// StageDir returns the subfolder holding stage artifacts.
func (l Layout) StageDir(stage period.Stage) string {
	return filepath.Join(l.Base, string(stage))
}

// StageFile returns the artifact path for stage and p.
func (l Layout) StageFile(stage period.Stage, p period.Period) string {
	return filepath.Join(l.StageDir(stage), period.FileName(stage, p))
}

func (l Layout) IndexFile() string {
	return filepath.Join(l.Base, IndexFileName)
}

func (l Layout) LedgerFile() string {
	return filepath.Join(l.Base, LedgerFileName)
}

// EnsureDirs creates the base directory and every stage subfolder.
func (l Layout) EnsureDirs() error {
	for _, stage := range period.Stages {
		if err := os.MkdirAll(l.StageDir(stage), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", l.StageDir(stage), err)
		}
	}
	return nil
}

// ListStageFiles returns the sorted file names in a stage folder. A missing
// folder yields an empty list.
func (l Layout) ListStageFiles(stage period.Stage) ([]string, error) {
	entries, err := os.ReadDir(l.StageDir(stage))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", l.StageDir(stage), err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
