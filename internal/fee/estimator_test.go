package fee

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) GetRecentPrioritizationFees(ctx context.Context, accounts solana.PublicKeySlice) ([]uint64, error) {
	args := m.Called(ctx, accounts)
	fees, _ := args.Get(0).([]uint64)
	return fees, args.Error(1)
}

func TestEstimator_Percentile(t *testing.T) {
	src := &mockSource{}
	src.On("GetRecentPrioritizationFees", mock.Anything, mock.Anything).
		Return([]uint64{0, 500, 100, 0, 300, 200, 400}, nil)

	tests := []struct {
		percentile int
		want       uint64
	}{
		{percentile: 1, want: 100},
		{percentile: 50, want: 300},
		{percentile: 75, want: 400},
		{percentile: 100, want: 500},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Percentile = tt.percentile
		est := NewEstimator(cfg, zaptest.NewLogger(t))

		got, err := est.Estimate(context.Background(), src)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "p%d", tt.percentile)
	}
}

func TestEstimator_Clamp(t *testing.T) {
	src := &mockSource{}
	src.On("GetRecentPrioritizationFees", mock.Anything, mock.Anything).Return([]uint64{5_000_000}, nil).Once()
	src.On("GetRecentPrioritizationFees", mock.Anything, mock.Anything).Return([]uint64{3}, nil).Once()

	est := NewEstimator(Config{Percentile: 50, Min: 10, Max: 1000, Default: 100}, zaptest.NewLogger(t))

	high, err := est.Estimate(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), high)

	low, err := est.Estimate(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), low)
}

func TestEstimator_DefaultWithoutSamples(t *testing.T) {
	src := &mockSource{}
	src.On("GetRecentPrioritizationFees", mock.Anything, mock.Anything).Return([]uint64{0, 0}, nil)

	est := NewEstimator(DefaultConfig(), zaptest.NewLogger(t))
	got, err := est.Estimate(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, uint64(DefaultFee), got)
}

func TestEstimator_PropagatesErrors(t *testing.T) {
	boom := errors.New("429 too many requests")
	src := &mockSource{}
	src.On("GetRecentPrioritizationFees", mock.Anything, mock.Anything).Return(nil, boom)

	est := NewEstimator(DefaultConfig(), zaptest.NewLogger(t))
	_, err := est.Estimate(context.Background(), src)
	assert.ErrorIs(t, err, boom)
}

func TestEstimator_FreshPerCall(t *testing.T) {
	src := &mockSource{}
	src.On("GetRecentPrioritizationFees", mock.Anything, mock.Anything).Return([]uint64{10}, nil).Once()
	src.On("GetRecentPrioritizationFees", mock.Anything, mock.Anything).Return([]uint64{20}, nil).Once()

	est := NewEstimator(DefaultConfig(), zaptest.NewLogger(t))
	first, err := est.Estimate(context.Background(), src)
	require.NoError(t, err)
	second, err := est.Estimate(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, uint64(10), first)
	assert.Equal(t, uint64(20), second)
	src.AssertNumberOfCalls(t, "GetRecentPrioritizationFees", 2)
}

func TestEstimator_BoundedByTimeout(t *testing.T) {
	src := &mockSource{}
	src.On("GetRecentPrioritizationFees", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			deadline, ok := ctx.Deadline()
			assert.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
		}).
		Return([]uint64{1}, nil)

	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	_, err := NewEstimator(cfg, zaptest.NewLogger(t)).Estimate(context.Background(), src)
	require.NoError(t, err)
}

func TestNewEstimator_NormalizesConfig(t *testing.T) {
	est := NewEstimator(Config{Percentile: 150, Min: 10, Max: 0}, zaptest.NewLogger(t))
	assert.Equal(t, DefaultPercentile, est.config.Percentile)
	assert.Equal(t, uint64(DefaultMax), est.config.Max)
	assert.Equal(t, DefaultFetchTimeout, est.config.Timeout)
}

func TestPercentile(t *testing.T) {
	assert.Equal(t, uint64(0), Percentile(nil, 50))
	assert.Equal(t, uint64(7), Percentile([]uint64{7}, 1))
	assert.Equal(t, uint64(2), Percentile([]uint64{1, 2, 3, 4}, 50))
	assert.Equal(t, uint64(4), Percentile([]uint64{1, 2, 3, 4}, 100))
}
