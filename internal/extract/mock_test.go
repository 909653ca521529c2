package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dnmos/weba/internal/logger"
	"github.com/dnmos/weba/internal/tpo"
	"github.com/stretchr/testify/require"
)

// MockAPI is a function-field implementation of tpo.API.
type MockAPI struct {
	GetPaymentsFunc       func(ctx context.Context) (*tpo.PaymentList, error)
	GetPaymentActionsFunc func(ctx context.Context, paymentUUID string, limit int) ([]tpo.Record, error)
	GetActionDetailsFunc  func(ctx context.Context, actionID, currency string) (*tpo.ActionDetail, error)
}

func (m *MockAPI) GetPayments(ctx context.Context) (*tpo.PaymentList, error) {
	if m.GetPaymentsFunc != nil {
		return m.GetPaymentsFunc(ctx)
	}
	return &tpo.PaymentList{}, nil
}

func (m *MockAPI) GetPaymentActions(ctx context.Context, paymentUUID string, limit int) ([]tpo.Record, error) {
	if m.GetPaymentActionsFunc != nil {
		return m.GetPaymentActionsFunc(ctx, paymentUUID, limit)
	}
	return nil, nil
}

func (m *MockAPI) GetActionDetails(ctx context.Context, actionID, currency string) (*tpo.ActionDetail, error) {
	if m.GetActionDetailsFunc != nil {
		return m.GetActionDetailsFunc(ctx, actionID, currency)
	}
	return nil, nil
}

var _ tpo.API = (*MockAPI)(nil)

func testContext(buf *bytes.Buffer) context.Context {
	return logger.WithContext(context.Background(), logger.NewWithWriter(buf))
}

// record decodes a JSON object literal into an ordered tpo.Record.
func record(t *testing.T, obj string) tpo.Record {
	t.Helper()
	var r tpo.Record
	require.NoError(t, json.Unmarshal([]byte(obj), &r))
	return r
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
