package ledger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dnmos/weba/internal/logger"
	"github.com/dnmos/weba/internal/period"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(buf *bytes.Buffer) context.Context {
	return logger.WithContext(context.Background(), logger.NewWithWriter(buf))
}

func TestMissingLedgerIsEmpty(t *testing.T) {
	ctx := testContext(&bytes.Buffer{})
	l := NewFileLedger(filepath.Join(t.TempDir(), "processed_dates.csv"))

	set, err := l.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, set)
	assert.False(t, l.IsProcessed(ctx, "202001"))
}

func TestMarkThenIsProcessed(t *testing.T) {
	ctx := testContext(&bytes.Buffer{})
	path := filepath.Join(t.TempDir(), "sub", "processed_dates.csv")
	l := NewFileLedger(path)

	require.NoError(t, l.MarkProcessed(ctx, "202001"))
	require.NoError(t, l.MarkProcessed(ctx, "202003"))

	assert.True(t, l.IsProcessed(ctx, "202001"))
	assert.True(t, l.IsProcessed(ctx, "202003"))
	assert.False(t, l.IsProcessed(ctx, "202002"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "year_month\n202001\n202003\n", string(data))
}

func TestMarkIsIdempotent(t *testing.T) {
	ctx := testContext(&bytes.Buffer{})
	path := filepath.Join(t.TempDir(), "processed_dates.csv")
	l := NewFileLedger(path)

	require.NoError(t, l.MarkProcessed(ctx, "202001"))
	require.NoError(t, l.MarkProcessed(ctx, "202001"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "year_month\n202001\n", string(data))
}

func TestDuplicatesOnDiskAreTolerated(t *testing.T) {
	ctx := testContext(&bytes.Buffer{})
	path := filepath.Join(t.TempDir(), "processed_dates.csv")
	require.NoError(t, os.WriteFile(path, []byte("year_month\n201801\n201801\n201802"), 0o644))
	l := NewFileLedger(path)

	set, err := l.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []period.Period{"201801", "201802"}, set.Sorted())

	// File without a trailing newline gets one before the append.
	require.NoError(t, l.MarkProcessed(ctx, "201803"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "year_month\n201801\n201801\n201802\n201803\n", string(data))
}

func TestCorruptLedger(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := testContext(buf)
	path := filepath.Join(t.TempDir(), "processed_dates.csv")
	require.NoError(t, os.WriteFile(path, []byte("period\n202001\n"), 0o644))
	l := NewFileLedger(path)

	_, err := l.Load(ctx)
	assert.ErrorIs(t, err, ErrCorrupt)

	assert.False(t, l.IsProcessed(ctx, "202001"))
	assert.Contains(t, buf.String(), "treating period as not processed")

	err = l.MarkProcessed(ctx, "202002")
	assert.ErrorIs(t, err, ErrCorrupt)

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "period\n202001\n", string(data), "corrupt ledger must not be modified")
}

func TestMalformedCSVIsCorrupt(t *testing.T) {
	ctx := testContext(&bytes.Buffer{})
	path := filepath.Join(t.TempDir(), "processed_dates.csv")
	require.NoError(t, os.WriteFile(path, []byte("year_month\n\"2020\n"), 0o644))

	_, err := NewFileLedger(path).Load(ctx)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestWhitespaceLedgerIsRewritten(t *testing.T) {
	ctx := testContext(&bytes.Buffer{})
	path := filepath.Join(t.TempDir(), "processed_dates.csv")
	require.NoError(t, os.WriteFile(path, []byte("\n\n"), 0o644))
	l := NewFileLedger(path)

	require.NoError(t, l.MarkProcessed(ctx, "201901"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "year_month\n201901\n", string(data))
}

// Every period passed to MarkProcessed is reported processed afterwards and
// nothing else is.
func TestMembershipMatchesMarks(t *testing.T) {
	ctx := testContext(&bytes.Buffer{})
	l := NewFileLedger(filepath.Join(t.TempDir(), "processed_dates.csv"))

	marked := map[period.Period]bool{"201801": true, "201907": true, "202312": true}
	for p := range marked {
		require.NoError(t, l.MarkProcessed(ctx, p))
	}

	for _, p := range []period.Period{"201801", "201802", "201907", "202311", "202312", "202401"} {
		assert.Equal(t, marked[p], l.IsProcessed(ctx, p), p)
	}
}
