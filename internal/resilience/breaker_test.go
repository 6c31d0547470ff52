package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fail(_ context.Context) (int, error) { return 0, errors.New("fail") }

func TestBreaker_ClosedPassesThrough(t *testing.T) {
	b := NewBreaker(BreakerConfig{})
	v, err := Call(context.Background(), b, func(_ context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{Threshold: 3, ResetTimeout: time.Minute})
	for range 3 {
		_, _ = Call(context.Background(), b, fail)
	}
	assert.Equal(t, Open, b.State())

	_, err := Call(context.Background(), b, func(_ context.Context) (int, error) {
		t.Error("should not be called while open")
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{Threshold: 3})
	_, _ = Call(context.Background(), b, fail)
	_, _ = Call(context.Background(), b, fail)
	assert.Equal(t, 2, b.Failures())

	_, err := Call(context.Background(), b, func(_ context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, 0, b.Failures())
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_HalfOpenTrial(t *testing.T) {
	now := time.Now()
	var transitions []string
	b := NewBreaker(BreakerConfig{
		Threshold:    1,
		ResetTimeout: time.Minute,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	b.now = func() time.Time { return now }

	_, _ = Call(context.Background(), b, fail)
	require.Equal(t, Open, b.State())

	b.now = func() time.Time { return now.Add(2 * time.Minute) }
	assert.Equal(t, HalfOpen, b.State())

	_, err := Call(context.Background(), b, func(_ context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, Closed, b.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker(BreakerConfig{Threshold: 1, ResetTimeout: time.Minute})
	b.now = func() time.Time { return now }
	_, _ = Call(context.Background(), b, fail)

	b.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, _ = Call(context.Background(), b, fail)
	assert.Equal(t, Open, b.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "half-open", HalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
