// Package ledger records which periods have completed every extraction
// stage. The set is persisted as a single-column CSV that is only ever
// appended to.
package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dnmos/weba/internal/logger"
	"github.com/dnmos/weba/internal/period"
)

// Column is the single column of the ledger file.
const Column = "year_month"

// ErrCorrupt is returned when the ledger file exists but cannot be
// interpreted as a year_month list.
var ErrCorrupt = errors.New("ledger file is corrupt")

// Ledger is the durable set of completed periods.
type Ledger interface {
	// IsProcessed reports whether p was marked at least once. Unreadable
	// ledgers answer false so that work is redone rather than skipped.
	IsProcessed(ctx context.Context, p period.Period) bool

	// MarkProcessed records p as complete.
	MarkProcessed(ctx context.Context, p period.Period) error
}

// Set is an in-memory view of the ledger.
type Set map[period.Period]struct{}

// Contains reports whether p is a member.
func (s Set) Contains(p period.Period) bool {
	_, ok := s[p]
	return ok
}

// Add inserts p. Adding a member twice is a no-op.
func (s Set) Add(p period.Period) {
	s[p] = struct{}{}
}

// Sorted returns the members in ascending order.
func (s Set) Sorted() []period.Period {
	out := make([]period.Period, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FileLedger is a Ledger backed by a CSV file. It is read in full on every
// check; the file is small (one row per month).
type FileLedger struct {
	path string
}

// NewFileLedger returns a ledger stored at path.
func NewFileLedger(path string) *FileLedger {
	return &FileLedger{path: path}
}

// Load reads the whole ledger. A missing or empty file is an empty set.
func (l *FileLedger) Load(ctx context.Context) (Set, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Set{}, nil
		}
		return nil, fmt.Errorf("ledger: read %s: %w", l.path, err)
	}
	return parse(data)
}

func parse(data []byte) (Set, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	set := Set{}
	if len(bytes.TrimSpace(data)) == 0 {
		return set, nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	col := -1
	for i, h := range records[0] {
		if strings.TrimSpace(h) == Column {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%w: missing %q column", ErrCorrupt, Column)
	}

	for _, rec := range records[1:] {
		if col >= len(rec) {
			continue
		}
		value := strings.TrimSpace(rec[col])
		if value == "" {
			continue
		}
		set.Add(period.Period(value))
	}
	return set, nil
}

// IsProcessed implements Ledger.
func (l *FileLedger) IsProcessed(ctx context.Context, p period.Period) bool {
	set, err := l.Load(ctx)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().
			Err(err).
			Str("period", p.String()).
			Str("ledger", l.path).
			Msg("Cannot read ledger, treating period as not processed")
		return false
	}
	return set.Contains(p)
}

// MarkProcessed implements Ledger. The file and its header are created on
// first use. A period already present is not written again.
func (l *FileLedger) MarkProcessed(ctx context.Context, p period.Period) error {
	log := logger.FromContext(ctx)

	data, err := os.ReadFile(l.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ledger: read %s: %w", l.path, err)
	}
	set, err := parse(data)
	if err != nil {
		return fmt.Errorf("ledger: %s: %w", l.path, err)
	}
	if set.Contains(p) {
		log.Debug().Str("period", p.String()).Msg("Period already in ledger")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("ledger: create dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("ledger: open %s: %w", l.path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		if len(data) > 0 {
			// Whitespace-only file: start over with a fresh header.
			if err := f.Truncate(0); err != nil {
				return fmt.Errorf("ledger: reset %s: %w", l.path, err)
			}
		}
		buf.WriteString(Column + "\n")
	case data[len(data)-1] != '\n':
		buf.WriteByte('\n')
	}
	buf.WriteString(p.String() + "\n")

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("ledger: append %s: %w", p, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("ledger: sync %s: %w", l.path, err)
	}

	log.Info().Str("period", p.String()).Str("ledger", l.path).Msg("Marked period as processed")
	return nil
}

var _ Ledger = (*FileLedger)(nil)
