package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultBaseURL          = "https://fapi.binance.com"
	defaultHTTPTimeout      = 10 * time.Second
	defaultMaxRetries       = 3
	defaultRetryBackoffBase = 200 * time.Millisecond
	defaultPageLimit        = 1000
	maxPageLimit            = 1500
)

// ErrSymbolNotFound indicates that the requested symbol is not listed.
var ErrSymbolNotFound = errors.New("binance: symbol not found")

// invalid symbol error code from the Binance API.
const codeInvalidSymbol = -1121

// Client wraps access to the Binance USD-M futures REST endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     *log.Logger
}

// Option configures a new Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the default REST base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithMaxRetries adjusts the retry budget.
func WithMaxRetries(max int) Option {
	return func(c *Client) {
		if max >= 0 {
			c.maxRetries = max
		}
	}
}

// WithLogger injects a custom logger (defaults to log.Default()).
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient constructs a Binance futures API client.
func NewClient(opts ...Option) *Client {
	httpClient := &http.Client{Timeout: defaultHTTPTimeout}
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: httpClient,
		maxRetries: defaultMaxRetries,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = httpClient
	}
	if client.logger == nil {
		client.logger = log.Default()
	}
	return client
}

// doGet issues a GET request and decodes the response into result. Transient
// failures (network errors, 429/418 rate limits, 5xx) are retried with
// exponential backoff; other API errors return immediately as *APIError.
func (c *Client) doGet(ctx context.Context, path string, query url.Values, result interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var lastErr error
	backoff := defaultRetryBackoffBase
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("binance: build request: %w", err)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("binance: read response: %w", readErr)
			case resp.StatusCode == http.StatusOK:
				if result != nil {
					if err := json.Unmarshal(body, result); err != nil {
						return fmt.Errorf("binance: decode response: %w", err)
					}
				}
				return nil
			case retryableStatus(resp.StatusCode):
				lastErr = fmt.Errorf("binance: http status %d: %s", resp.StatusCode, string(body))
			default:
				apiErr := &APIError{}
				if err := json.Unmarshal(body, apiErr); err == nil && apiErr.Code != 0 {
					if apiErr.Code == codeInvalidSymbol {
						return ErrSymbolNotFound
					}
					return apiErr
				}
				return fmt.Errorf("binance: http status %d: %s", resp.StatusCode, string(body))
			}
		}

		if attempt < c.maxRetries {
			c.logf("binance: retrying %s in %s: %v", path, backoff, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
			continue
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("binance: request failed without error detail")
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == 418 || // Binance IP ban status, lifts after the window
		status >= http.StatusInternalServerError
}

// logf prints debug output when a logger is configured.
func (c *Client) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
