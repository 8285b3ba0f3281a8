// internal/fee/estimator.go
package fee

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txsender/internal/blockchain"
)

// Значения по умолчанию в micro-lamports за compute unit.
const (
	DefaultPercentile   = 50
	DefaultMin          = 1
	DefaultMax          = 1_000_000
	DefaultFee          = 10_000
	DefaultFetchTimeout = 10 * time.Second
)

// Config controls how samples are reduced to one estimate.
type Config struct {
	// Percentile of the non-zero samples, 1..100.
	Percentile int
	Min        uint64
	Max        uint64
	// Default applies when the network returns no non-zero samples.
	Default uint64
	Timeout time.Duration
	// Accounts narrows the samples to transactions that locked these accounts.
	Accounts solana.PublicKeySlice
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Percentile: DefaultPercentile,
		Min:        DefaultMin,
		Max:        DefaultMax,
		Default:    DefaultFee,
		Timeout:    DefaultFetchTimeout,
	}
}

// Estimator computes a fresh compute-unit price per call. Nothing is cached:
// a failed lookup is returned to the caller as is.
type Estimator struct {
	config Config
	logger *zap.Logger
}

func NewEstimator(config Config, logger *zap.Logger) *Estimator {
	def := DefaultConfig()
	if config.Percentile <= 0 || config.Percentile > 100 {
		config.Percentile = def.Percentile
	}
	if config.Max == 0 {
		config.Max = def.Max
	}
	if config.Min > config.Max {
		config.Min = config.Max
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	return &Estimator{
		config: config,
		logger: logger.Named("fee-estimator"),
	}
}

// Estimate fetches recent prioritization fees from src and reduces them.
func (e *Estimator) Estimate(ctx context.Context, src blockchain.FeeSource) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	samples, err := src.GetRecentPrioritizationFees(ctx, e.config.Accounts)
	if err != nil {
		return 0, fmt.Errorf("get recent prioritization fees: %w", err)
	}

	estimate := e.reduce(samples)
	e.logger.Debug("Fee estimated",
		zap.Int("samples", len(samples)),
		zap.Uint64("micro_lamports", estimate))
	return estimate, nil
}

func (e *Estimator) reduce(samples []uint64) uint64 {
	nonZero := make([]uint64, 0, len(samples))
	for _, s := range samples {
		if s > 0 {
			nonZero = append(nonZero, s)
		}
	}
	if len(nonZero) == 0 {
		return e.clamp(e.config.Default)
	}

	sort.Slice(nonZero, func(i, j int) bool { return nonZero[i] < nonZero[j] })
	return e.clamp(Percentile(nonZero, e.config.Percentile))
}

func (e *Estimator) clamp(v uint64) uint64 {
	if v < e.config.Min {
		return e.config.Min
	}
	if v > e.config.Max {
		return e.config.Max
	}
	return v
}

// Percentile returns the nearest-rank percentile p (1..100) of sorted values.
func Percentile(sorted []uint64, p int) uint64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
