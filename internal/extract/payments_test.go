package extract

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dnmos/weba/internal/artifacts"
	"github.com/dnmos/weba/internal/config"
	"github.com/dnmos/weba/internal/period"
	"github.com/dnmos/weba/internal/tpo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentExtractor_PartitionsByComment(t *testing.T) {
	layout := artifacts.NewLayout(t.TempDir())
	api := &MockAPI{
		GetPaymentsFunc: func(ctx context.Context) (*tpo.PaymentList, error) {
			return &tpo.PaymentList{Records: []tpo.Record{
				record(t, `{"payment_uuid":"a","amount":10,"comment":"Выплата за январь 2020"}`),
				record(t, `{"payment_uuid":"b","amount":20,"comment":"no month here"}`),
				record(t, `{"payment_uuid":"c","amount":30,"comment":"Выплата за ФЕВРАЛЬ 2020"}`),
				record(t, `{"payment_uuid":"d","amount":40,"comment":"за январь2020","note":"x"}`),
			}}, nil
		},
	}

	result, err := NewPaymentExtractor(api, layout).Run(testContext(&bytes.Buffer{}))
	require.NoError(t, err)

	assert.Equal(t, 4, result.Fetched)
	assert.Equal(t, 3, result.Tagged)
	assert.Equal(t, 1, result.Dropped)
	assert.Equal(t, []period.Period{"202001", "202002"}, result.Periods())

	jan := readFile(t, layout.StageFile(period.StagePayments, "202001"))
	assert.Equal(t,
		"payment_uuid,amount,comment,note,year_month\n"+
			"a,10,Выплата за январь 2020,,202001\n"+
			"d,40,за январь2020,x,202001\n", jan)

	feb := readFile(t, layout.StageFile(period.StagePayments, "202002"))
	assert.Equal(t, "payment_uuid,amount,comment,year_month\nc,30,Выплата за ФЕВРАЛЬ 2020,202002\n", feb)

	index, err := artifacts.ReadTable(layout.IndexFile())
	require.NoError(t, err)
	assert.Equal(t, []string{"year_month", "payment_uuid", "filepath"}, index.Header)
	assert.Equal(t, []string{"202001", "a", layout.StageFile(period.StagePayments, "202001")}, index.Rows[0])
	assert.Equal(t, []string{"202002", "c", layout.StageFile(period.StagePayments, "202002")}, index.Rows[1])
	assert.Equal(t, []string{"202001", "d", layout.StageFile(period.StagePayments, "202001")}, index.Rows[2])
}

func TestPaymentExtractor_NoTaggedPayments(t *testing.T) {
	layout := artifacts.NewLayout(t.TempDir())
	existing := writeFile(t, layout.StageFile(period.StagePayments, "201905"), "payment_uuid,year_month\nold,201905\n")

	buf := &bytes.Buffer{}
	api := &MockAPI{
		GetPaymentsFunc: func(ctx context.Context) (*tpo.PaymentList, error) {
			return &tpo.PaymentList{Records: []tpo.Record{record(t, `{"payment_uuid":"a","comment":"bonus"}`)}}, nil
		},
	}

	result, err := NewPaymentExtractor(api, layout).Run(testContext(buf))
	require.NoError(t, err)
	assert.Empty(t, result.Files)
	assert.Empty(t, result.IndexPath)
	assert.Contains(t, buf.String(), "No payments carry a period")

	assert.Equal(t, "payment_uuid,year_month\nold,201905\n", readFile(t, existing))
	_, statErr := os.Stat(layout.IndexFile())
	assert.True(t, os.IsNotExist(statErr))
}

func TestPaymentExtractor_FetchError(t *testing.T) {
	layout := artifacts.NewLayout(t.TempDir())
	api := &MockAPI{
		GetPaymentsFunc: func(ctx context.Context) (*tpo.PaymentList, error) {
			return nil, errors.New("connection refused")
		},
	}

	_, err := NewPaymentExtractor(api, layout).Run(testContext(&bytes.Buffer{}))
	assert.ErrorIs(t, err, ErrFetch)

	_, statErr := os.Stat(filepath.Join(layout.Base, "payments"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPaymentExtractor_OverwritesPeriodFile(t *testing.T) {
	layout := artifacts.NewLayout(t.TempDir())
	path := writeFile(t, layout.StageFile(period.StagePayments, "202001"), "stale\n")

	api := &MockAPI{
		GetPaymentsFunc: func(ctx context.Context) (*tpo.PaymentList, error) {
			return &tpo.PaymentList{Records: []tpo.Record{record(t, `{"payment_uuid":"a","comment":"за январь 2020","year_month":"bogus"}`)}}, nil
		},
	}

	_, err := NewPaymentExtractor(api, layout).Run(testContext(&bytes.Buffer{}))
	require.NoError(t, err)
	assert.Equal(t, "payment_uuid,comment,year_month\na,за январь 2020,202001\n", readFile(t, path))
}

func TestPaymentExtractor_MalformedElementsAreSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"payment_uuid":"a","comment":"Выплата за март 2024"}, null, {"payment_uuid":"c","comment":"за май 2024"}]`))
	}))
	defer srv.Close()

	layout := artifacts.NewLayout(t.TempDir())
	client := tpo.NewClient(config.TPOConfig{BaseURL: srv.URL}, "token")

	result, err := NewPaymentExtractor(client, layout).Run(testContext(&bytes.Buffer{}))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 1, result.Malformed)
	assert.Equal(t, 2, result.Tagged)
	assert.Equal(t, []period.Period{"202403", "202405"}, result.Periods())
	assert.Equal(t, "payment_uuid,comment,year_month\nc,за май 2024,202405\n",
		readFile(t, layout.StageFile(period.StagePayments, "202405")))
}
