// Package tpo is a minimal client for the Travelpayouts finance API.
package tpo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dnmos/weba/internal/config"
	"github.com/dnmos/weba/internal/logger"
	"github.com/google/uuid"
)

// Endpoint paths relative to the base URL.
const (
	PaymentsPath       = "/finance/v2/get_user_payments"
	PaymentActionsPath = "/finance/v2/get_user_actions_affecting_payment"
	ActionDetailsPath  = "/finance/v2/get_action_details"
)

const (
	tokenHeader = "X-Access-Token"
	userAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// ErrMalformed marks a response body that is not the expected JSON shape.
var ErrMalformed = errors.New("malformed response")

// APIError is returned for non-2xx responses.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	const maxLen = 200
	if len(body) > maxLen {
		body = body[:maxLen]
	}
	return fmt.Sprintf("%s: non-2xx status %d: %s", e.Endpoint, e.StatusCode, body)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// API is the set of remote calls the extractors make.
type API interface {
	GetPayments(ctx context.Context) (*PaymentList, error)
	GetPaymentActions(ctx context.Context, paymentUUID string, limit int) ([]Record, error)
	GetActionDetails(ctx context.Context, actionID, currency string) (*ActionDetail, error)
}

// Client talks to the Travelpayouts API. Calls block until the transport
// returns; no timeout is set unless configured.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a Client from the TPO settings and access token.
func NewClient(cfg config.TPOConfig, token string) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = config.DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		token:   token,
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// PaymentList is the decoded get-payments response.
type PaymentList struct {
	Records []Record
	// Malformed counts array elements that were not objects and were left out.
	Malformed int
}

// GetPayments returns every payment visible to the token. A body that is not
// an array is ErrMalformed; elements that are not objects are logged and
// left out.
func (c *Client) GetPayments(ctx context.Context) (*PaymentList, error) {
	body, err := c.get(ctx, PaymentsPath, nil)
	if err != nil {
		return nil, err
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(body, &elems); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", PaymentsPath, ErrMalformed, err)
	}
	records, bad := decodeRecords(elems)
	logMalformed(ctx, PaymentsPath, bad)
	return &PaymentList{Records: records, Malformed: len(bad)}, nil
}

// GetPaymentActions returns the actions that contributed to one payment.
func (c *Client) GetPaymentActions(ctx context.Context, paymentUUID string, limit int) ([]Record, error) {
	params := url.Values{}
	params.Set("payment_uuid", paymentUUID)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, PaymentActionsPath, params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Actions *[]json.RawMessage `json:"actions"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", PaymentActionsPath, ErrMalformed, err)
	}
	if resp.Actions == nil {
		return nil, fmt.Errorf("%s: %w: missing \"actions\"", PaymentActionsPath, ErrMalformed)
	}
	records, bad := decodeRecords(*resp.Actions)
	logMalformed(ctx, PaymentActionsPath, bad)
	return records, nil
}

func logMalformed(ctx context.Context, path string, bad []MalformedRecord) {
	log := logger.FromContext(ctx)
	for _, m := range bad {
		log.Warn().Err(m.Err).Str("path", path).Int("index", m.Index).Msg("Malformed record in response, skipping")
	}
}

// GetActionDetails returns the full record of one action with amounts in
// currency.
func (c *Client) GetActionDetails(ctx context.Context, actionID, currency string) (*ActionDetail, error) {
	params := url.Values{}
	params.Set("action_id", actionID)
	params.Set("currency", currency)

	body, err := c.get(ctx, ActionDetailsPath, params)
	if err != nil {
		return nil, err
	}
	detail, err := parseActionDetail(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", ActionDetailsPath, ErrMalformed, err)
	}
	return detail, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	log := logger.FromContext(ctx)
	reqID := uuid.NewString()
	start := time.Now()

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", path, err)
	}
	req.Header.Set(tokenHeader, c.token)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: send request: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", path, err)
	}

	log.Debug().
		Str("req_id", reqID).
		Str("path", path).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("TPO API response")

	if resp.StatusCode/100 != 2 {
		return nil, &APIError{Endpoint: path, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

var _ API = (*Client)(nil)
