package broadcast

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/storefront-bot/internal/transport"
	"github.com/Proton-105/storefront-bot/internal/transport/transporttest"
)

func fastConfig() Config {
	return Config{RatePerSecond: 10000, Burst: 100, ProgressEvery: 10}
}

func recipients(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i + 1)
	}
	return out
}

func TestDispatcher_Dispatch(t *testing.T) {
	testCases := []struct {
		name          string
		total         int
		failing       []int64
		wantSucceeded int
		wantFailed    int
		wantProgress  []int
		wantRate      float64
	}{
		{
			name:         "no recipients",
			total:        0,
			wantProgress: nil,
			wantRate:     0,
		},
		{
			name:          "all delivered",
			total:         3,
			wantSucceeded: 3,
			wantProgress:  []int{3},
			wantRate:      100,
		},
		{
			name:          "two of twenty five fail",
			total:         25,
			failing:       []int64{4, 17},
			wantSucceeded: 23,
			wantFailed:    2,
			wantProgress:  []int{10, 20, 25},
			wantRate:      92,
		},
		{
			name:          "users seven and fifteen fail",
			total:         23,
			failing:       []int64{7, 15},
			wantSucceeded: 21,
			wantFailed:    2,
			wantProgress:  []int{10, 20, 23},
			wantRate:      91.3,
		},
		{
			name:          "exact multiple reports once at the end",
			total:         20,
			failing:       []int64{1},
			wantSucceeded: 19,
			wantFailed:    1,
			wantProgress:  []int{10, 20},
			wantRate:      95,
		},
		{
			name:          "one of three fails",
			total:         3,
			failing:       []int64{2},
			wantSucceeded: 2,
			wantFailed:    1,
			wantProgress:  []int{3},
			wantRate:      66.67,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := transporttest.New()
			for _, id := range tc.failing {
				rec.FailFor(id, errors.New("blocked"))
			}
			d := NewDispatcher(rec, fastConfig(), testLogger())

			var progress []int
			summary := d.Dispatch(context.Background(), transport.Text("sale"), recipients(tc.total), func(_ context.Context, s Summary) {
				assert.Equal(t, s.Processed(), s.Succeeded+s.Failed)
				assert.LessOrEqual(t, s.Processed(), s.Total)
				progress = append(progress, s.Processed())
			})

			assert.Equal(t, tc.total, summary.Total)
			assert.Equal(t, tc.wantSucceeded, summary.Succeeded)
			assert.Equal(t, tc.wantFailed, summary.Failed)
			assert.Zero(t, summary.Skipped)
			assert.Equal(t, tc.wantProgress, progress)
			assert.InDelta(t, tc.wantRate, summary.DeliveryRate(), 0.001)
			assert.Len(t, rec.Calls(), tc.wantSucceeded)
		})
	}
}

func TestDispatcher_PreservesOrder(t *testing.T) {
	rec := transporttest.New()
	d := NewDispatcher(rec, fastConfig(), testLogger())

	d.Dispatch(context.Background(), transport.Text("hi"), []int64{30, 10, 20}, nil)

	var order []int64
	for _, c := range rec.Calls() {
		order = append(order, c.Ref.ChatID)
	}
	assert.Equal(t, []int64{30, 10, 20}, order)
}

func TestDispatcher_CancelledContextSkipsRest(t *testing.T) {
	rec := transporttest.New()
	d := NewDispatcher(rec, fastConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	summary := d.Dispatch(ctx, transport.Text("hi"), recipients(15), func(_ context.Context, s Summary) {
		if s.Processed() == 10 {
			cancel()
		}
	})

	require.Equal(t, 15, summary.Total)
	assert.Equal(t, 10, summary.Succeeded)
	assert.Equal(t, 5, summary.Skipped)
	assert.Equal(t, summary.Total, summary.Succeeded+summary.Failed+summary.Skipped)
}

func TestSummary_DeliveryRate(t *testing.T) {
	assert.Equal(t, 0.0, Summary{}.DeliveryRate())
	assert.Equal(t, 33.33, Summary{Total: 3, Succeeded: 1, Failed: 2}.DeliveryRate())
	assert.Equal(t, 100.0, Summary{Total: 1, Succeeded: 1}.DeliveryRate())
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
