// internal/txbatch/sender.go
package txbatch

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/solana-txsender/internal/blockchain"
)

// Options are per-round inputs.
type Options struct {
	// DisableAutoFee turns off the compute-unit price instruction that is
	// otherwise prepended to every group. The zero value injects the fee.
	DisableAutoFee bool
	// LookupTables compresses account keys when set.
	LookupTables LookupTables
	Hooks        Hooks
	// OnInvalidate receives the writable accounts of the round after all
	// transactions confirm.
	OnInvalidate func(accounts []solana.PublicKey)
}

// Sender runs complete submission rounds: fee estimate, assembly, build,
// then the driver's sign/send/confirm loop. It keeps no state between rounds.
type Sender struct {
	conn    blockchain.Client
	signer  Signer
	fees    FeeEstimator
	driver  *Driver
	logger  *zap.Logger
	metrics *Metrics
}

func NewSender(conn blockchain.Client, signer Signer, fees FeeEstimator, config DriverConfig, logger *zap.Logger, metrics *Metrics) *Sender {
	return &Sender{
		conn:    conn,
		signer:  signer,
		fees:    fees,
		driver:  NewDriver(conn, signer, logger, config, metrics),
		logger:  logger.Named("txbatch-sender"),
		metrics: metrics,
	}
}

// SendTransactions submits the groups as one round and returns the signature
// of the last confirmed transaction. Errors are *FeeEstimationError,
// *BlockhashError, *BuildError, *SigningError or *SubmissionError; partial
// progress is only visible through the hooks.
func (s *Sender) SendTransactions(ctx context.Context, groups []InstructionGroup, opts Options) (sig solana.Signature, err error) {
	start := time.Now()
	logger := s.logger.With(zap.String("round_id", uuid.NewString()))
	defer func() {
		s.metrics.trackRound(start, err)
		if err != nil {
			logger.Error("Round failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		}
	}()

	payer := s.signer.PublicKey()
	if payer.IsZero() {
		return solana.Signature{}, ErrWalletNotConnected
	}

	fee, bh, err := s.prepareRound(ctx)
	if err != nil {
		return solana.Signature{}, err
	}

	autoFee := !opts.DisableAutoFee
	batches := Assemble(groups, autoFee, fee)
	if limit := MaxTransactionsPerBatch(groups); len(batches) > limit {
		logger.Warn("Round exceeds batch limit",
			zap.Int("transactions", len(batches)),
			zap.Int("limit", limit))
	}
	logger.Info("Round assembled",
		zap.Int("groups", len(groups)),
		zap.Int("transactions", len(batches)),
		zap.Bool("auto_fee", autoFee),
		zap.Uint64("fee_micro_lamports", uint64(fee)),
		zap.Uint64("last_valid_block_height", bh.LastValidBlockHeight))

	txs, err := Build(batches, payer, bh, opts.LookupTables)
	if err != nil {
		return solana.Signature{}, err
	}

	hooks := opts.Hooks
	if opts.OnInvalidate != nil {
		accounts := WritableAccounts(batches)
		hooks = hooks.Merge(Hooks{
			AfterAllTxConfirmed: func() { opts.OnInvalidate(accounts) },
		})
	}

	sig, err = s.driver.Run(ctx, txs, hooks)
	if err != nil {
		return solana.Signature{}, err
	}
	logger.Info("Round confirmed",
		zap.String("signature", sig.String()),
		zap.Duration("elapsed", time.Since(start)))
	return sig, nil
}

// prepareRound fetches the fee estimate and the shared blockhash concurrently.
// Both are taken once per round, before any transaction is built.
func (s *Sender) prepareRound(ctx context.Context) (FeeEstimate, blockchain.BlockhashContext, error) {
	var (
		fee uint64
		bh  blockchain.BlockhashContext
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fee, err = s.fees.Estimate(gCtx, s.conn)
		if err != nil {
			return &FeeEstimationError{Err: err}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		bh, err = s.conn.GetLatestBlockhash(gCtx)
		if err != nil {
			return &BlockhashError{Err: err}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, blockchain.BlockhashContext{}, err
	}
	return FeeEstimate(fee), bh, nil
}
