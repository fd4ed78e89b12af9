package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auroralabs/aurora-alerts/internal/observability"
)

func newTestScheduler() (*Scheduler, *clockwork.FakeClock) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(time.Second, logger, observability.NewMetricsForTesting())
	clock := clockwork.NewFakeClock()
	s.SetClock(clock)
	return s, clock
}

func waitForRun(t *testing.T, ran <-chan string) string {
	t.Helper()
	select {
	case name := <-ran:
		return name
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
		return ""
	}
}

func TestScheduler_RunsJobOnInterval(t *testing.T) {
	s, clock := newTestScheduler()
	ran := make(chan string, 10)

	require.NoError(t, s.Add(Job{
		Name:     "fanout",
		Interval: time.Minute,
		Run: func(context.Context) error {
			ran <- "fanout"
			return nil
		},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(time.Minute)
	assert.Equal(t, "fanout", waitForRun(t, ran))

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(time.Minute)
	assert.Equal(t, "fanout", waitForRun(t, ran))

	cancel()
	<-done
}

func TestScheduler_ContainsPanics(t *testing.T) {
	s, clock := newTestScheduler()
	ran := make(chan string, 10)

	require.NoError(t, s.Add(Job{
		Name:     "faulty",
		Interval: time.Minute,
		Run: func(context.Context) error {
			ran <- "faulty"
			panic("boom")
		},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// The first run panics; the loop must survive and tick again.
	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(time.Minute)
	waitForRun(t, ran)

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(time.Minute)
	waitForRun(t, ran)

	cancel()
	<-done
}

func TestScheduler_JobErrorIsNotFatal(t *testing.T) {
	s, clock := newTestScheduler()
	ran := make(chan string, 10)

	require.NoError(t, s.Add(Job{
		Name:     "flaky",
		Interval: time.Minute,
		Run: func(context.Context) error {
			ran <- "flaky"
			return errors.New("transient")
		},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(time.Minute)
	waitForRun(t, ran)

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(time.Minute)
	waitForRun(t, ran)

	cancel()
	<-done
}

func TestScheduler_RejectsZeroInterval(t *testing.T) {
	s, _ := newTestScheduler()
	err := s.Add(Job{Name: "bad", Interval: 0, Run: func(context.Context) error { return nil }})
	require.Error(t, err)
}
