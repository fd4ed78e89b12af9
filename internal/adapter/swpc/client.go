// Package swpc fetches NOAA Space Weather Prediction Center products over
// HTTP: the 3-day forecast and 27-day outlook bulletins and the OVATION
// aurora probability grid.
package swpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/auroralabs/aurora-alerts/internal/domain"
	"github.com/auroralabs/aurora-alerts/internal/observability"
)

const (
	threeDayPath = "/text/3-day-forecast.txt"
	outlookPath  = "/text/27-day-outlook.txt"
	ovationPath  = "/json/ovation_aurora_latest.json"
)

// Client fetches SWPC products with a bounded retry policy. Fetches are
// retried because the feeds are static files behind a CDN; push sends never
// go through this client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates an SWPC client. maxRetries bounds retry attempts per
// fetch; the timeout applies per attempt.
func NewClient(baseURL string, timeout time.Duration, maxRetries int, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: uint64(maxRetries),
		logger:     logger,
		metrics:    metrics,
	}
}

// FetchThreeDayForecast fetches and parses the 3-day forecast bulletin.
func (c *Client) FetchThreeDayForecast(ctx context.Context) ([]domain.KpForecastDay, error) {
	body, err := c.fetch(ctx, threeDayPath)
	if err != nil {
		c.metrics.BulletinsParsed.WithLabelValues("3-day-forecast", "error").Inc()
		return nil, err
	}
	days, err := domain.ParseThreeDayForecast(string(body))
	if err != nil {
		c.metrics.BulletinsParsed.WithLabelValues("3-day-forecast", "error").Inc()
		return nil, err
	}
	c.metrics.BulletinsParsed.WithLabelValues("3-day-forecast", "success").Inc()
	return days, nil
}

// FetchOutlook fetches and parses the 27-day outlook bulletin.
func (c *Client) FetchOutlook(ctx context.Context) ([]domain.OutlookReading, error) {
	body, err := c.fetch(ctx, outlookPath)
	if err != nil {
		c.metrics.BulletinsParsed.WithLabelValues("27-day-outlook", "error").Inc()
		return nil, err
	}
	readings, err := domain.ParseOutlook(string(body))
	if err != nil {
		c.metrics.BulletinsParsed.WithLabelValues("27-day-outlook", "error").Inc()
		return nil, err
	}
	c.metrics.BulletinsParsed.WithLabelValues("27-day-outlook", "success").Inc()
	return readings, nil
}

// FetchGrid fetches and indexes the OVATION aurora grid.
func (c *Client) FetchGrid(ctx context.Context) (*domain.Grid, error) {
	body, err := c.fetch(ctx, ovationPath)
	if err != nil {
		return nil, err
	}
	return domain.ParseGrid(body)
}

// fetch GETs a product with fibonacci backoff. 5xx and network errors are
// retryable; 4xx responses are not (the URL is wrong, retrying won't help).
func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + path

	var body []byte
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewFibonacci(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		b, err := c.doRequest(ctx, url)
		if err != nil {
			if isRetryable(err) {
				c.logger.Warn("swpc fetch failed, retrying", "url", url, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) doRequest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: "swpc fetch " + url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.TransportError{Op: "swpc fetch " + url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Op: "swpc read " + url, Err: err}
	}
	return body, nil
}

// isRetryable classifies an error for the backoff loop. Network errors and
// 5xx statuses are transient; anything else is permanent.
func isRetryable(err error) bool {
	var transportErr *domain.TransportError
	if !errors.As(err, &transportErr) {
		return false
	}
	return transportErr.StatusCode == 0 || transportErr.StatusCode >= 500
}
