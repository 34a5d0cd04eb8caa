// Package client is an HTTP client for the budgetbook API.
//
// Reads are retried with exponential backoff on transport errors and 5xx
// responses. Writes are sent once and any failure is returned to the caller.
package client

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
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"budgetbook/internal/models"
	"budgetbook/internal/pagination"
	"budgetbook/internal/services"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultMaxTries      = 3
	defaultRetryInterval = 500 * time.Millisecond
)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.StatusCode)
}

// Session holds the tokens returned by sign-in.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"user"`
}

// ExpenseRequest is the payload for creating an expense. Date uses YYYY-MM-DD.
type ExpenseRequest struct {
	Amount      int64   `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Date        string  `json:"date,omitempty"`
	BudgetID    *string `json:"budget_id,omitempty"`
}

// Client talks to a budgetbook server.
type Client struct {
	baseURL       string
	token         string
	httpClient    *http.Client
	timeout       time.Duration
	maxTries      uint
	retryInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout bounds each individual attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRetry sets how many attempts a read gets and the initial wait between them.
func WithRetry(maxTries uint, interval time.Duration) Option {
	return func(c *Client) {
		c.maxTries = maxTries
		c.retryInterval = interval
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    http.DefaultClient,
		timeout:       defaultTimeout,
		maxTries:      defaultMaxTries,
		retryInterval: defaultRetryInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxTries == 0 {
		c.maxTries = 1
	}
	return c
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	return c.token
}

// SignIn authenticates and keeps the access token for later calls.
func (c *Client) SignIn(ctx context.Context, identifier, password string) (*Session, error) {
	body := map[string]string{"email": identifier, "password": password}
	var session Session
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/signin", body, &session); err != nil {
		return nil, err
	}
	c.token = session.AccessToken
	return &session, nil
}

// Overview fetches the dashboard summary.
func (c *Client) Overview(ctx context.Context) (*services.Overview, error) {
	var resp struct {
		Overview services.Overview `json:"overview"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/overview", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Overview, nil
}

// ListBudgets fetches one page of budgets.
func (c *Client) ListBudgets(ctx context.Context, page, pageSize int) (*pagination.PageResponse[models.Budget], error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	path := "/api/v1/budgets"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp pagination.PageResponse[models.Budget]
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateExpense records an expense.
func (c *Client) CreateExpense(ctx context.Context, req ExpenseRequest) (*models.Expense, error) {
	var resp struct {
		Expense models.Expense `json:"expense"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/expenses", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Expense, nil
}

// DeleteExpense removes an expense.
func (c *Client) DeleteExpense(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/expenses/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
	}

	if method != http.MethodGet {
		_, err := c.attempt(ctx, method, path, payload, out)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		retry, err := c.attempt(ctx, method, path, payload, out)
		if err != nil && !retry {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.maxTries))
	return err
}

// attempt performs one round trip. The bool reports whether a failure is
// worth retrying.
func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, out interface{}) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return resp.StatusCode >= 500, decodeError(resp)
	}
	if out == nil {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decoding response: %w", err)
	}
	return false, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
