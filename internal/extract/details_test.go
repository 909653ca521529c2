package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/dnmos/weba/internal/artifacts"
	"github.com/dnmos/weba/internal/period"
	"github.com/dnmos/weba/internal/tpo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func actionsFile(t *testing.T, layout artifacts.Layout, p period.Period, content string) string {
	t.Helper()
	return writeFile(t, layout.StageFile(period.StagePaymentActions, p), content)
}

func detail(t *testing.T, obj string, history []string, metadata map[string]string) *tpo.ActionDetail {
	t.Helper()
	d := &tpo.ActionDetail{Fields: record(t, obj)}
	for _, h := range history {
		d.History = append(d.History, record(t, h))
	}
	for _, name := range []string{"hotel", "nights"} {
		if v, ok := metadata[name]; ok {
			d.Metadata = append(d.Metadata, tpo.MetadataEntry{Name: name, Value: json.RawMessage(v)})
		}
	}
	return d
}

func TestDetailExtractor_Flattens(t *testing.T) {
	layout := artifacts.NewLayout(t.TempDir())
	input := actionsFile(t, layout, "202002", "action_id,state\n11,paid\n12,paid\n13,paid\n14,paid\n")

	var currencies []string
	api := &MockAPI{
		GetActionDetailsFunc: func(ctx context.Context, id, currency string) (*tpo.ActionDetail, error) {
			currencies = append(currencies, currency)
			switch id {
			case "11":
				return detail(t,
					`{"action_id":11,"campaign_id":7,"action_state":"paid","sub_id":"s","price":"100.10","profit":"3.30","booked_at":"2020-02-01","ignored":1}`,
					[]string{
						`{"action_state":"processing","price":"90","profit":"3","profit_diff":"0.3","updated_at":"2020-02-02"}`,
						`{"action_state":"new","price":"1","profit":"1","profit_diff":"0","updated_at":"2020-02-01"}`,
					},
					map[string]string{"hotel": `"Hilton"`},
				), nil
			case "12":
				return nil, &tpo.APIError{Endpoint: tpo.ActionDetailsPath, StatusCode: http.StatusNotFound}
			case "13":
				return detail(t, `{"action_id":13,"profit":1.7}`, nil, map[string]string{"nights": `3`}), nil
			default:
				return nil, errors.New("timeout")
			}
		},
	}

	buf := &bytes.Buffer{}
	result, err := NewDetailExtractor(api, layout, "", 0).Run(testContext(buf), input)
	require.NoError(t, err)

	assert.Equal(t, []string{"usd", "usd", "usd", "usd"}, currencies)
	assert.Equal(t, 4, result.Actions)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 1, result.NotFound)
	assert.Equal(t, 2, result.Rows)
	assert.True(t, decimal.RequireFromString("5.00").Equal(result.Profit), result.Profit.String())
	assert.Contains(t, buf.String(), "action not found")

	table, err := artifacts.ReadTable(result.Path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"action_id", "campaign_id", "action_state", "sub_id", "price", "profit", "booked_at",
		"history_action_state", "history_price", "history_profit", "history_profit_diff", "history_updated_at",
		"metadata_hotel", "metadata_nights",
	}, table.Header)
	assert.Equal(t, []string{
		"11", "7", "paid", "s", "100.10", "3.30", "2020-02-01",
		"processing", "90", "3", "0.3", "2020-02-02",
		"Hilton", "",
	}, table.Rows[0])
	assert.Equal(t, []string{
		"13", "", "", "", "", "1.7", "",
		"", "", "", "", "",
		"", "3",
	}, table.Rows[1])
}

func TestDetailExtractor_AllCallsFail(t *testing.T) {
	layout := artifacts.NewLayout(t.TempDir())
	input := actionsFile(t, layout, "202002", "action_id\n1\n2\n")
	api := &MockAPI{
		GetActionDetailsFunc: func(ctx context.Context, id, currency string) (*tpo.ActionDetail, error) {
			return nil, &tpo.APIError{Endpoint: tpo.ActionDetailsPath, StatusCode: http.StatusNotFound}
		},
	}

	_, err := NewDetailExtractor(api, layout, "usd", 0).Run(testContext(&bytes.Buffer{}), input)
	assert.ErrorIs(t, err, ErrNoData)

	_, statErr := os.Stat(layout.StageFile(period.StageActionDetails, "202002"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDetailExtractor_EmptyInput(t *testing.T) {
	layout := artifacts.NewLayout(t.TempDir())
	input := actionsFile(t, layout, "202006", "action_id\n")

	result, err := NewDetailExtractor(&MockAPI{}, layout, "usd", 0).Run(testContext(&bytes.Buffer{}), input)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Rows)
	assert.True(t, result.Profit.IsZero())

	table, err := artifacts.ReadTable(result.Path)
	require.NoError(t, err)
	assert.Equal(t, "action_id", table.Header[0])
	assert.Equal(t, 0, table.Len())
}

func TestDetailExtractor_InputErrors(t *testing.T) {
	layout := artifacts.NewLayout(t.TempDir())
	ctx := testContext(&bytes.Buffer{})
	ex := NewDetailExtractor(&MockAPI{}, layout, "usd", 0)

	_, err := ex.Run(ctx, layout.StageFile(period.StagePaymentActions, "202001"))
	assert.ErrorIs(t, err, ErrInputNotFound)

	noID := actionsFile(t, layout, "202002", "state\npaid\n")
	_, err = ex.Run(ctx, noID)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestDetailExtractor_PacesCalls(t *testing.T) {
	layout := artifacts.NewLayout(t.TempDir())
	input := actionsFile(t, layout, "202002", "action_id\n1\n2\n3\n")

	var calls []time.Time
	api := &MockAPI{
		GetActionDetailsFunc: func(ctx context.Context, id, currency string) (*tpo.ActionDetail, error) {
			calls = append(calls, time.Now())
			return detail(t, `{"action_id":`+id+`}`, nil, nil), nil
		},
	}

	const delay = 20 * time.Millisecond
	_, err := NewDetailExtractor(api, layout, "usd", delay).Run(testContext(&bytes.Buffer{}), input)
	require.NoError(t, err)
	require.Len(t, calls, 3)
	assert.GreaterOrEqual(t, calls[2].Sub(calls[0]), 2*delay-5*time.Millisecond)
}

func TestDetailExtractor_CancelledContext(t *testing.T) {
	layout := artifacts.NewLayout(t.TempDir())
	input := actionsFile(t, layout, "202002", "action_id\n1\n2\n")

	ctx, cancel := context.WithCancel(testContext(&bytes.Buffer{}))
	api := &MockAPI{
		GetActionDetailsFunc: func(ctx context.Context, id, currency string) (*tpo.ActionDetail, error) {
			cancel()
			return nil, ctx.Err()
		},
	}

	_, err := NewDetailExtractor(api, layout, "usd", time.Hour).Run(ctx, input)
	assert.ErrorIs(t, err, context.Canceled)
}
