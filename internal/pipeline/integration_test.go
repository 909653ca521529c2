package pipeline_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/dnmos/weba/internal/artifacts"
	"github.com/dnmos/weba/internal/config"
	"github.com/dnmos/weba/internal/extract"
	"github.com/dnmos/weba/internal/ledger"
	"github.com/dnmos/weba/internal/logger"
	"github.com/dnmos/weba/internal/period"
	"github.com/dnmos/weba/internal/pipeline"
	"github.com/dnmos/weba/internal/tpo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves two payout months and one payment dated before the minimum.
func fakeAPI(t *testing.T, downstream *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(tpo.PaymentsPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"payment_uuid":"p-old","amount":"1.00","comment":"Выплата за декабрь 2017"},
			{"payment_uuid":"p-jan","amount":"10.00","comment":"Выплата за январь 2020"},
			{"payment_uuid":"p-feb","amount":"20.00","comment":"Выплата за февраль 2020"},
			{"payment_uuid":"p-x","amount":"5.00","comment":"Бонус"}
		]`)
	})
	mux.HandleFunc(tpo.PaymentActionsPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(downstream, 1)
		switch r.URL.Query().Get("payment_uuid") {
		case "p-jan":
			fmt.Fprint(w, `{"actions":[{"action_id":1,"state":"paid"},{"action_id":2,"state":"paid"}]}`)
		case "p-feb":
			fmt.Fprint(w, `{"actions":[{"action_id":3,"state":"paid"}]}`)
		default:
			http.Error(w, "unexpected payment", http.StatusBadRequest)
		}
	})
	mux.HandleFunc(tpo.ActionDetailsPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(downstream, 1)
		id := r.URL.Query().Get("action_id")
		if id == "2" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"action_id":%s,"campaign_id":100,"action_state":"paid","price":"50","profit":"1.5",
			"history":[{"action_state":"paid","price":"50","profit":"1.5","profit_diff":"0","updated_at":"2020-01-05"}],
			"metadata":[{"name":"country","value":"DE"}]}`, id)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestEndToEnd(t *testing.T) {
	var downstream int32
	srv := fakeAPI(t, &downstream)

	cfg := &config.Config{
		APIToken:  "token",
		MinPeriod: "201801",
		TPO:       config.TPOConfig{BaseURL: srv.URL, Currency: "usd", ActionsLimit: 300},
	}
	layout := artifacts.NewLayout(t.TempDir())
	client := tpo.NewClient(cfg.TPO, cfg.APIToken)
	led := ledger.NewFileLedger(layout.LedgerFile())

	orch := pipeline.NewOrchestrator(cfg, layout, led,
		extract.NewPaymentExtractor(client, layout),
		extract.NewActionExtractor(client, layout, cfg.TPO.ActionsLimit),
		extract.NewDetailExtractor(client, layout, cfg.TPO.Currency, cfg.TPO.DetailDelay),
		nil,
	)

	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(&bytes.Buffer{}))

	report, err := orch.Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Periods, 3)
	assert.Equal(t, pipeline.StatusSkippedMin, report.Periods[0].Status)
	assert.Equal(t, pipeline.StatusCompleted, report.Periods[1].Status)
	assert.Equal(t, pipeline.StatusCompleted, report.Periods[2].Status)

	janDetails, err := artifacts.ReadTable(layout.StageFile(period.StageActionDetails, "202001"))
	require.NoError(t, err)
	assert.Equal(t, 1, janDetails.Len(), "missing action is omitted")
	assert.Equal(t, []string{"1"}, janDetails.Values("action_id"))
	assert.Equal(t, []string{"DE"}, janDetails.Values("metadata_country"))

	ledgerData, err := os.ReadFile(layout.LedgerFile())
	require.NoError(t, err)
	assert.Equal(t, "year_month\n202001\n202002\n", string(ledgerData))

	// 2 action calls + 3 detail calls
	assert.Equal(t, int32(5), atomic.LoadInt32(&downstream))

	atomic.StoreInt32(&downstream, 0)
	_, err = orch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&downstream))

	after, err := os.ReadFile(layout.LedgerFile())
	require.NoError(t, err)
	assert.Equal(t, string(ledgerData), string(after))
}
