// Package recordapi is the HTTP adapter for the remote tabular record store.
package recordapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

// maxResponseSize caps how much of a response body is read (10MB)
const maxResponseSize = 10 * 1024 * 1024

// maxErrorBody caps the body kept on a TransportError
const maxErrorBody = 512

// Client implements integration.RecordStore over the REST API
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

var _ integration.RecordStore = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new Client
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  logger.Named("recordapi"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// RecordStore
// ---------------------------------------------------------------------------

// ListRecords fetches one page of a table
func (c *Client) ListRecords(ctx context.Context, req integration.ListRecordsRequest) (*integration.RecordPage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("pageSize", strconv.Itoa(req.PageSize))
	if req.Offset != "" {
		query.Set("offset", req.Offset)
	}

	body, err := c.do(ctx, http.MethodGet, c.tableURL(req.Table)+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, invalidResponse(err)
	}
	page := &integration.RecordPage{
		Records: make([]integration.RemoteRecord, 0, len(resp.Records)),
		Offset:  resp.Offset,
	}
	for _, r := range resp.Records {
		page.Records = append(page.Records, r.toDomain())
	}
	return page, nil
}

// CreateRecord creates a record and returns it with its assigned ID
func (c *Client) CreateRecord(ctx context.Context, table string, fields map[string]any) (*integration.RemoteRecord, error) {
	if table == "" {
		return nil, integration.ErrTableNotConfigured
	}
	return c.write(ctx, http.MethodPost, c.tableURL(table), fields)
}

// UpdateRecord patches the given fields of a record
func (c *Client) UpdateRecord(ctx context.Context, table, recordID string, fields map[string]any) (*integration.RemoteRecord, error) {
	if table == "" {
		return nil, integration.ErrTableNotConfigured
	}
	if recordID == "" {
		return nil, integration.ErrInvalidRecordID
	}
	return c.write(ctx, http.MethodPatch, c.tableURL(table)+"/"+url.PathEscape(recordID), fields)
}

func (c *Client) write(ctx context.Context, method, endpoint string, fields map[string]any) (*integration.RemoteRecord, error) {
	payload, err := json.Marshal(writeRequest{Fields: fields, Typecast: true})
	if err != nil {
		return nil, fmt.Errorf("recordapi: failed to encode fields: %w", err)
	}
	body, err := c.do(ctx, method, endpoint, payload)
	if err != nil {
		return nil, err
	}
	var rec wireRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, invalidResponse(err)
	}
	if rec.ID == "" {
		return nil, invalidResponse(errors.New("record without id"))
	}
	out := rec.toDomain()
	return &out, nil
}

func (c *Client) tableURL(table string) string {
	return c.config.BaseURL + "/" + url.PathEscape(c.config.BaseID) + "/" + url.PathEscape(table)
}

// ---------------------------------------------------------------------------
// HTTP
// ---------------------------------------------------------------------------

// do sends one logical request, retrying 429 and 5xx answers with
// exponential backoff. POST is not idempotent, so a create is only retried
// after a 429. A done context is returned as ctx.Err(), never as a
// TransportError.
func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	operation := func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(contextErr(ctx, err))
		}
		body, err := c.exchange(ctx, method, endpoint, payload)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		var te *integration.TransportError
		if errors.As(err, &te) && retryable(method, te) {
			c.logger.Debug("Retrying remote request",
				zap.String("method", method),
				zap.Int("status", te.StatusCode),
			)
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 250 * time.Millisecond
	eb.MaxInterval = 5 * time.Second

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(c.config.MaxRetries)+1),
	)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return body, err
}

// retryable reports whether a failed request may be sent again. A 5xx
// answer to a POST may arrive after the record was already created.
func retryable(method string, te *integration.TransportError) bool {
	if te.StatusCode == 0 {
		return false
	}
	if method == http.MethodPost {
		return te.StatusCode == http.StatusTooManyRequests
	}
	return te.Retryable()
}

func (c *Client) exchange(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("recordapi: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &integration.TransportError{Err: integration.ErrRemoteUnavailable, Body: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &integration.TransportError{StatusCode: resp.StatusCode, Err: integration.ErrRemoteUnavailable, Body: err.Error()}
	}
	if resp.StatusCode >= 400 {
		te := &integration.TransportError{
			StatusCode: resp.StatusCode,
			Err:        classifyStatus(resp.StatusCode),
			Body:       errorText(body),
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			if secs, perr := strconv.Atoi(resp.Header.Get("Retry-After")); perr == nil && secs > 0 {
				return nil, errors.Join(te, backoff.RetryAfter(secs))
			}
		}
		return nil, te
	}
	return body, nil
}

func classifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return integration.ErrRemoteAuthFailed
	case status == http.StatusTooManyRequests:
		return integration.ErrRemoteRateLimited
	case status >= 500:
		return integration.ErrRemoteUnavailable
	default:
		return integration.ErrRemoteRequestFailed
	}
}

func errorText(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil {
		if msg := er.describe(); msg != "" {
			return msg
		}
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return string(body)
}

func invalidResponse(err error) error {
	return &integration.TransportError{
		StatusCode: http.StatusOK,
		Err:        integration.ErrRemoteInvalidResponse,
		Body:       err.Error(),
	}
}

// contextErr maps a limiter refusal to the context error it anticipates
func contextErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, ok := ctx.Deadline(); ok {
		return context.DeadlineExceeded
	}
	return err
}
