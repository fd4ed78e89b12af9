package swpc

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auroralabs/aurora-alerts/internal/domain"
	"github.com/auroralabs/aurora-alerts/internal/observability"
)

const testBulletin = `:Product: 3-Day Forecast
NOAA Kp index breakdown Jan 11-Jan 13 2025

             Jan 11       Jan 12       Jan 13
00-03UT       2.67         1.33         1.67
03-06UT       0.67         1.67         1.67
06-09UT       1.00         1.33         1.67
09-12UT       1.67         1.33         1.33
12-15UT       2.33         1.33         1.33
15-18UT       2.67         1.33         1.33
18-21UT       2.67         1.67         1.33
21-00UT       2.67         1.67         1.33
`

const testOutlook = `:Product: 27-day Space Weather Outlook Table
#   UTC      Radio Flux   Planetary   Largest
#  Date       10.7 cm      A Index    Kp Index
2025 Jan 06     172          22          5
`

const testOvation = `{
	"Observation Time": "2025-01-11T15:06:00Z",
	"Forecast Time": "2025-01-11T16:06:00Z",
	"Data Format": "[Longitude, Latitude, Aurora]",
	"coordinates": [[90, 55, 4], [90, 56, 5]]
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.Handler, maxRetries int) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, maxRetries, discardLogger(), observability.NewMetricsForTesting())
}

func TestFetchThreeDayForecast(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, threeDayPath, r.URL.Path)
		io.WriteString(w, testBulletin)
	}), 0)

	days, err := client.FetchThreeDayForecast(context.Background())
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, "Jan 11", days[0].Date)
	assert.Len(t, days[0].Readings, 8)
	assert.Equal(t, 1.0,
		testutil.ToFloat64(client.metrics.BulletinsParsed.WithLabelValues("3-day-forecast", "success")))
}

func TestFetchOutlook(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, outlookPath, r.URL.Path)
		io.WriteString(w, testOutlook)
	}), 0)

	readings, err := client.FetchOutlook(context.Background())
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, "2025-01-06", readings[0].Date)
	assert.Equal(t, 172, readings[0].RadioFlux)
}

func TestFetchGrid_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, testOvation)
	}), 3)

	grid, err := client.FetchGrid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, grid.Len())
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}), 3)

	_, err := client.FetchGrid(context.Background())
	var transportErr *domain.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusNotFound, transportErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}), 2)

	_, err := client.FetchGrid(context.Background())
	var transportErr *domain.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, int32(3), calls.Load()) // initial attempt + 2 retries
}

func TestFetchThreeDayForecast_MalformedBulletin(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not a bulletin")
	}), 0)

	_, err := client.FetchThreeDayForecast(context.Background())
	var formatErr *domain.FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, 1.0,
		testutil.ToFloat64(client.metrics.BulletinsParsed.WithLabelValues("3-day-forecast", "error")))
}

type fetchCounter struct {
	grid  *domain.Grid
	calls atomic.Int32
}

func (f *fetchCounter) FetchGrid(context.Context) (*domain.Grid, error) {
	f.calls.Add(1)
	return f.grid, nil
}

func TestCachedGridFetcher(t *testing.T) {
	grid, err := domain.NewGrid(domain.OvationFeed{Coordinates: [][]float64{{90, 55, 4}}})
	require.NoError(t, err)

	inner := &fetchCounter{grid: grid}
	fakeClock := clockwork.NewFakeClock()
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedGridFetcher(inner, 5*time.Minute, fakeClock, metrics)

	ctx := context.Background()

	_, err = cached.FetchGrid(ctx)
	require.NoError(t, err)
	_, err = cached.FetchGrid(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.calls.Load(), "second fetch within TTL should hit the cache")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GridFetches.WithLabelValues("cached")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GridFetches.WithLabelValues("success")))

	fakeClock.Advance(5 * time.Minute)
	_, err = cached.FetchGrid(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load(), "expired cache refetches")

	cached.Flush()
	_, err = cached.FetchGrid(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(3), inner.calls.Load(), "flush forces a refetch")
}
