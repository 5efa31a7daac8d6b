// Package binancerest is a signed REST client for the futures exchange API.
// It builds and signs each request itself so that the exact query string sent
// is the one covered by the signature, and it treats the JSON shape of every
// response as the success/error signal.
package binancerest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"

	"futuresProxy/internal/domain"
	"futuresProxy/internal/metrics"
	"futuresProxy/internal/ports"
	"futuresProxy/internal/signer"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	headerAPIKey = "X-MBX-APIKEY"

	pathFundingRate = "/fapi/v1/fundingRate"
	pathIncome      = "/fapi/v1/income"
	pathAllOrders   = "/fapi/v1/allOrders"
	pathAccount     = "/fapi/v2/account"

	defaultTimeout    = 15 * time.Second
	defaultRecvWindow = 60 * time.Second // exchange maximum
	maxOrderRows      = 1000
	maxBodyBytes      = 16 << 20
	maxLoggedBody     = 512
)

// Client implements ports.ExchangeClient over plain HTTPS.
type Client struct {
	baseURL    string
	httpClient *http.Client
	recvWindow time.Duration
	logger     ports.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// Config holds configuration specific to the REST adapter.
type Config struct {
	BaseURL    string // overrides UseTestnet when set
	UseTestnet bool
	Timeout    time.Duration
	RecvWindow time.Duration
	Logger     ports.Logger
	Metrics    *metrics.Metrics // optional
	HTTPClient *http.Client     // optional, Timeout is ignored when set
}

// New creates a new REST adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for REST client")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = baseURLProduction
		if cfg.UseTestnet {
			baseURL = baseURLTestnet
		}
	}

	recvWindow := cfg.RecvWindow
	if recvWindow <= 0 || recvWindow > defaultRecvWindow {
		recvWindow = defaultRecvWindow
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	cfg.Logger.Info(context.Background(), "REST client configured", map[string]interface{}{"baseURL": baseURL, "recvWindowMs": recvWindow.Milliseconds()})

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		recvWindow: recvWindow,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		now:        time.Now,
	}, nil
}

// GetFundingRate retrieves the latest funding-rate settlement for symbol.
func (c *Client) GetFundingRate(ctx context.Context, symbol string) ([]domain.FundingRate, error) {
	op := "GetFundingRate"
	q := signer.NewQuery().
		Set("symbol", symbol).
		Set("limit", "1")

	var out []domain.FundingRate
	if err := c.getList(ctx, op, pathFundingRate, q, nil, &out, map[string]interface{}{"symbol": symbol}); err != nil {
		return nil, err
	}
	return out, nil
}

// GetIncomeHistory retrieves signed income history rows.
func (c *Client) GetIncomeHistory(ctx context.Context, creds ports.Credentials, iq ports.IncomeQuery) ([]domain.IncomeRecord, error) {
	op := "GetIncomeHistory"
	q := signer.NewQuery()
	if iq.IncomeType != "" {
		q.Set("incomeType", iq.IncomeType)
	}
	if iq.Limit > 0 {
		q.Set("limit", strconv.Itoa(iq.Limit))
	}
	if iq.StartTime > 0 {
		q.Set("startTime", strconv.FormatInt(iq.StartTime, 10))
	}

	var out []domain.IncomeRecord
	fields := map[string]interface{}{"incomeType": iq.IncomeType, "startTime": iq.StartTime}
	if err := c.getList(ctx, op, pathIncome, q, &creds, &out, fields); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOrderHistory retrieves all orders of symbol within [start, end].
func (c *Client) GetOrderHistory(ctx context.Context, creds ports.Credentials, symbol string, start, end time.Time) ([]domain.OrderRecord, error) {
	op := "GetOrderHistory"
	q := signer.NewQuery().
		Set("symbol", symbol).
		Set("startTime", strconv.FormatInt(start.UnixMilli(), 10)).
		Set("endTime", strconv.FormatInt(end.UnixMilli(), 10)).
		Set("limit", strconv.Itoa(maxOrderRows)).
		Set("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))

	var out []domain.OrderRecord
	fields := map[string]interface{}{"symbol": symbol, "startTime": start.UnixMilli(), "endTime": end.UnixMilli()}
	if err := c.getList(ctx, op, pathAllOrders, q, &creds, &out, fields); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAccountPositions retrieves the position table of the futures account.
func (c *Client) GetAccountPositions(ctx context.Context, creds ports.Credentials) ([]domain.AccountPosition, error) {
	op := "GetAccountPositions"
	fields := map[string]interface{}{}

	status, body, elapsed, err := c.get(ctx, op, pathAccount, signer.NewQuery(), &creds, fields)
	if err != nil {
		return nil, err
	}

	var out []domain.AccountPosition
	apiErr, err := decodeField(status, body, "positions", &out)
	if apiErr != nil {
		fields["rawBody"] = truncate(body, maxLoggedBody)
	}
	if err := c.finish(ctx, op, status, elapsed, apiErr, err, fields); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getList(ctx context.Context, op, path string, q *signer.Query, creds *ports.Credentials, out interface{}, fields map[string]interface{}) error {
	status, body, elapsed, err := c.get(ctx, op, path, q, creds, fields)
	if err != nil {
		return err
	}
	apiErr, err := decodeList(status, body, out)
	return c.finish(ctx, op, status, elapsed, apiErr, err, fields)
}

// finish records the call outcome and turns a decode result into the error returned to callers.
func (c *Client) finish(ctx context.Context, op string, status int, elapsed time.Duration, apiErr *common.APIError, decodeErr error, fields map[string]interface{}) error {
	switch {
	case decodeErr != nil:
		if errors.Is(decodeErr, ports.ErrUpstreamUnavailable) {
			c.metrics.ObserveUpstream(op, metrics.OutcomeUnavailable, elapsed)
		} else {
			c.metrics.ObserveUpstream(op, metrics.OutcomeShapeError, elapsed)
		}
		return c.handleDecodeError(ctx, op, decodeErr, fields)
	case apiErr != nil:
		if status >= http.StatusInternalServerError {
			c.metrics.ObserveUpstream(op, metrics.OutcomeUnavailable, elapsed)
		} else {
			c.metrics.ObserveUpstream(op, metrics.OutcomeShapeError, elapsed)
		}
		return c.handleAPIError(ctx, op, status, apiErr, fields)
	default:
		c.metrics.ObserveUpstream(op, metrics.OutcomeOK, elapsed)
		return nil
	}
}

// get performs the HTTP round trip. When creds is non-nil the request is
// signed: timestamp is appended, then signature over everything before it.
func (c *Client) get(ctx context.Context, op, path string, q *signer.Query, creds *ports.Credentials, fields map[string]interface{}) (int, []byte, time.Duration, error) {
	rawQuery := q.Encode()
	if creds != nil {
		q.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
		signed, err := signer.SignQuery(creds.APISecret, q)
		if err != nil {
			return 0, nil, 0, fmt.Errorf("%s failed: %w: %w", op, ports.ErrInvalidRequest, err)
		}
		rawQuery = signed
	}

	url := c.baseURL + path
	if rawQuery != "" {
		url += "?" + rawQuery
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("%s failed: %w: %w", op, ports.ErrInvalidRequest, err)
	}
	req.Header.Set("Accept", "application/json")
	if creds != nil {
		req.Header.Set(headerAPIKey, creds.APIKey)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(op, metrics.OutcomeUnavailable, time.Since(started))
		return 0, nil, 0, c.handleTransportError(ctx, op, err, fields)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.metrics.ObserveUpstream(op, metrics.OutcomeUnavailable, time.Since(started))
		return 0, nil, 0, c.handleTransportError(ctx, op, fmt.Errorf("reading response body: %w", err), fields)
	}

	elapsed := time.Since(started)
	c.logger.Debug(ctx, op+" response received", map[string]interface{}{"status": resp.StatusCode, "bytes": len(body), "elapsed": elapsed.String()})
	return resp.StatusCode, body, elapsed, nil
}

// handleAPIError translates an exchange error payload into standardized ports errors.
func (c *Client) handleAPIError(ctx context.Context, op string, status int, apiErr *common.APIError, fields map[string]interface{}) error {
	logFields := copyFields(fields)
	logFields["operation"] = op
	logFields["status"] = status
	logFields["apiErrorCode"] = apiErr.Code
	logFields["apiErrorMessage"] = apiErr.Message

	var mappedErr error
	switch apiErr.Code {
	case -1000, -1001, -1007: // Unknown, internal disconnect, backend timeout
		mappedErr = ports.ErrUpstreamUnavailable
	case -1003: // Too many requests
		mappedErr = ports.ErrRateLimited
	case -1021: // Timestamp for this request is outside of the recvWindow
		mappedErr = ports.ErrTimeout
	case -1022, -2014, -2015: // Bad signature, key format, key/IP/permissions
		mappedErr = ports.ErrAuthenticationFailed
	case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1121, -1125, -1127, -1128, -1130:
		mappedErr = ports.ErrInvalidRequest
	default:
		mappedErr = ports.ErrUpstreamShape
		if status >= http.StatusInternalServerError {
			mappedErr = ports.ErrUpstreamUnavailable
		}
	}

	c.logger.Error(ctx, apiErr, op+" failed with API error", logFields)
	return fmt.Errorf("%s failed: %w: %w", op, mappedErr, apiErr)
}

func (c *Client) handleDecodeError(ctx context.Context, op string, err error, fields map[string]interface{}) error {
	logFields := copyFields(fields)
	logFields["operation"] = op
	c.logger.Error(ctx, err, op+" returned an undecodable response", logFields)
	return fmt.Errorf("%s failed: %w", op, err)
}

// handleTransportError classifies network, timeout and cancellation failures.
func (c *Client) handleTransportError(ctx context.Context, op string, err error, fields map[string]interface{}) error {
	logFields := copyFields(fields)
	logFields["operation"] = op

	var finalErr error
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()):
		finalErr = fmt.Errorf("%s failed: %w: %w: %w", op, ports.ErrUpstreamUnavailable, ports.ErrTimeout, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", op, ports.ErrUpstreamUnavailable, err)
	}

	c.logger.Error(ctx, err, op+" failed", logFields)
	return finalErr
}

func copyFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+4)
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// truncate renders at most n bytes of body for logging.
func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "...(truncated)"
}
