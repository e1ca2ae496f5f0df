package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/treasury/models"
)

// testRecord is a minimal Completable for exercising the policy.
type testRecord struct {
	done bool
}

func (r *testRecord) Complete() bool {
	return r != nil && r.done
}

// fastConfig keeps the backoff in the low-millisecond range so the tests
// stay fast while still going through real waits.
func fastConfig(maxAttempts int) Config {
	return Config{
		MaxAttempts: maxAttempts,
		MinWait:     time.Millisecond,
		MaxWait:     4 * time.Millisecond,
	}
}

func TestDo_FirstAttemptComplete(t *testing.T) {
	attempts := 0
	rec, err := Do(context.Background(), func(ctx context.Context) (*testRecord, error) {
		attempts++
		return &testRecord{done: true}, nil
	}, fastConfig(3))

	require.NoError(t, err)
	assert.True(t, rec.Complete())
	assert.Equal(t, 1, attempts, "a complete record must short-circuit the cycle")
}

func TestDo_ExhaustionReturnsLastErrorUnmodified(t *testing.T) {
	attempts := 0
	errs := []error{
		errors.New("attempt one"),
		errors.New("attempt two"),
		errors.New("attempt three"),
	}

	_, err := Do(context.Background(), func(ctx context.Context) (*testRecord, error) {
		attempts++
		return nil, errs[attempts-1]
	}, fastConfig(3))

	assert.Equal(t, 3, attempts)
	require.Error(t, err)
	assert.Same(t, errs[2], err, "the terminal error must be the last attempt's error, not a wrapper")
}

func TestDo_IncompleteRecordIsRetried(t *testing.T) {
	attempts := 0
	_, err := Do(context.Background(), func(ctx context.Context) (*testRecord, error) {
		attempts++
		return &testRecord{done: false}, nil
	}, fastConfig(3))

	assert.Equal(t, 3, attempts, "a successful but incomplete attempt must not be accepted")
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.ErrCodeValidation))
}

func TestDo_RecoversAfterIncompleteAttempt(t *testing.T) {
	attempts := 0
	rec, err := Do(context.Background(), func(ctx context.Context) (*testRecord, error) {
		attempts++
		if attempts == 1 {
			return &testRecord{done: false}, nil
		}
		return &testRecord{done: true}, nil
	}, fastConfig(3))

	require.NoError(t, err)
	assert.True(t, rec.Complete())
	assert.Equal(t, 2, attempts)
}

func TestDo_AuthFailureStopsImmediately(t *testing.T) {
	attempts := 0
	authErr := models.NewExtractError(models.ErrCodeLLMAuthFailure, "invalid API key", nil)
	// Stage wrappers put their own code on top of the cause.
	wrapped := models.NewExtractError(models.ErrCodeSelectorDiscovery, "selector discovery call failed", authErr)

	_, err := Do(context.Background(), func(ctx context.Context) (*testRecord, error) {
		attempts++
		return nil, wrapped
	}, fastConfig(3))

	assert.Equal(t, 1, attempts, "an auth failure cannot heal and must not burn the attempt budget")
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.ErrCodeLLMAuthFailure))
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	_, err := Do(ctx, func(ctx context.Context) (*testRecord, error) {
		attempts++
		cancel()
		return nil, errors.New("transient")
	}, Config{MaxAttempts: 5, MinWait: 10 * time.Second, MaxWait: 10 * time.Second})

	require.Error(t, err)
	assert.LessOrEqual(t, attempts, 2, "cancellation must not keep burning attempts")
}

func TestDo_DefaultsApplied(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 4*time.Second, cfg.MinWait)
	assert.Equal(t, 10*time.Second, cfg.MaxWait)
}

func TestNewBackOff_DoublesAndCaps(t *testing.T) {
	b := NewBackOff(Config{MaxAttempts: 5, MinWait: 4 * time.Second, MaxWait: 10 * time.Second})

	waits := []time.Duration{
		b.NextBackOff(),
		b.NextBackOff(),
		b.NextBackOff(),
		b.NextBackOff(),
	}

	assert.Equal(t, 4*time.Second, waits[0])
	assert.Equal(t, 8*time.Second, waits[1])
	assert.Equal(t, 10*time.Second, waits[2], "doubling past the cap must clamp to MaxWait")
	assert.Equal(t, 10*time.Second, waits[3])

	for i := 1; i < len(waits); i++ {
		assert.GreaterOrEqual(t, waits[i], waits[i-1], "waits must be non-decreasing")
	}
}

func TestDo_NotifyObservesFailedAttempts(t *testing.T) {
	var notified int
	cfg := fastConfig(3)
	cfg.Notify = func(err error, wait time.Duration) {
		notified++
	}

	_, err := Do(context.Background(), func(ctx context.Context) (*testRecord, error) {
		return nil, errors.New("always failing")
	}, cfg)

	require.Error(t, err)
	assert.Equal(t, 2, notified, "notify fires before each wait, so attempts-1 times")
}
