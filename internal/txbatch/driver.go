// internal/txbatch/driver.go
package txbatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txsender/internal/blockchain"
	"github.com/rovshanmuradov/solana-txsender/internal/wallet"
)

// DefaultConfirmTimeout bounds one confirmation attempt before the raw bytes are resent.
const DefaultConfirmTimeout = 30 * time.Second

// DriverConfig tunes the submission loop.
type DriverConfig struct {
	ConfirmTimeout time.Duration
	Commitment     rpc.CommitmentType
}

// Driver signs a round once and then submits and confirms its transactions
// strictly one at a time, in order.
type Driver struct {
	conn    blockchain.Client
	signer  Signer
	logger  *zap.Logger
	config  DriverConfig
	metrics *Metrics
}

func NewDriver(conn blockchain.Client, signer Signer, logger *zap.Logger, config DriverConfig, metrics *Metrics) *Driver {
	if config.ConfirmTimeout <= 0 {
		config.ConfirmTimeout = DefaultConfirmTimeout
	}
	if config.Commitment == "" {
		config.Commitment = rpc.CommitmentConfirmed
	}
	return &Driver{
		conn:    conn,
		signer:  signer,
		logger:  logger.Named("txbatch-driver"),
		config:  config,
		metrics: metrics,
	}
}

// Run signs all transactions in one request, then for each one: subscribes to
// its confirmation, sends it, and resends the same bytes every time the
// confirmation timeout elapses. Confirmation, or a non-timeout error, ends the
// wait; an error aborts the remaining transactions. The resend loop has no
// attempt cap: it ends when the blockhash expires and the connection reports
// it. Run returns the signature of the last transaction.
func (d *Driver) Run(ctx context.Context, txs []*PreparedTransaction, hooks Hooks) (solana.Signature, error) {
	if len(txs) == 0 {
		return solana.Signature{}, nil
	}

	if err := d.signAll(ctx, txs); err != nil {
		for _, ptx := range txs {
			ptx.state = StateFailed
		}
		return solana.Signature{}, err
	}
	hooks.afterBatchSign(len(txs))

	var last solana.Signature
	for i, ptx := range txs {
		if err := d.submit(ctx, i, ptx); err != nil {
			ptx.state = StateFailed
			return solana.Signature{}, err
		}
		d.metrics.confirmed()
		hooks.afterEveryTxConfirmation()
		last = ptx.Signature
	}

	hooks.afterAllTxConfirmed()
	return last, nil
}

func (d *Driver) signAll(ctx context.Context, txs []*PreparedTransaction) error {
	unsigned := make([]*solana.Transaction, len(txs))
	for i, ptx := range txs {
		if len(ptx.Signers) > 0 {
			if err := wallet.PartialSign(ptx.Tx, ptx.Signers...); err != nil {
				return &SigningError{Count: len(txs), Err: fmt.Errorf("transaction %d: %w", i, err)}
			}
		}
		unsigned[i] = ptx.Tx
	}

	d.logger.Debug("Requesting batch signature", zap.Int("count", len(txs)))
	signed, err := d.signer.SignAllTransactions(ctx, unsigned)
	if err != nil {
		return &SigningError{Count: len(txs), Err: err}
	}
	if len(signed) != len(txs) {
		return &SigningError{Count: len(txs), Err: fmt.Errorf("signer returned %d transactions", len(signed))}
	}

	for i, tx := range signed {
		if err := ValidateSigned(tx); err != nil {
			return &SigningError{Count: len(txs), Err: fmt.Errorf("transaction %d: %w", i, err)}
		}
		raw, err := tx.MarshalBinary()
		if err != nil {
			return &SigningError{Count: len(txs), Err: fmt.Errorf("serialize transaction %d: %w", i, err)}
		}
		sig, err := SignatureFromRaw(raw)
		if err != nil {
			return &SigningError{Count: len(txs), Err: fmt.Errorf("transaction %d: %w", i, err)}
		}

		txs[i].Tx = tx
		txs[i].Raw = raw
		txs[i].Signature = sig
		txs[i].state = StateSigned
	}
	return nil
}

func (d *Driver) submit(ctx context.Context, idx int, ptx *PreparedTransaction) error {
	logger := d.logger.With(
		zap.Int("index", idx),
		zap.String("signature", ptx.Signature.String()),
		zap.Stringer("mode", ptx.Mode),
	)

	confirmCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Debug("Subscribing to transaction confirmation")
	confirmed := make(chan error, 1)
	go func() {
		confirmed <- d.conn.ConfirmTransaction(confirmCtx, blockchain.ConfirmRequest{
			Signature:            ptx.Signature,
			Blockhash:            ptx.Blockhash.Blockhash,
			LastValidBlockHeight: ptx.Blockhash.LastValidBlockHeight,
			Commitment:           d.config.Commitment,
		})
	}()

	if err := d.send(confirmCtx, ptx, false); err != nil {
		logger.Error("Send failed", zap.Error(err))
		return &SubmissionError{Index: idx, Signature: ptx.Signature, Stage: StageSend, Err: err}
	}
	logger.Info("Transaction sent")

	started := time.Now()
	attempts := 1
	for {
		ptx.state = StateAwaitingConfirmation
		err := d.await(confirmCtx, confirmed)
		switch {
		case err == nil:
			ptx.state = StateConfirmed
			logger.Info("Transaction confirmed",
				zap.Int("attempts", attempts),
				zap.Duration("elapsed", time.Since(started)))
			return nil

		case errors.Is(err, ErrConfirmationTimeout):
			attempts++
			logger.Warn("Transaction not confirmed, resending",
				zap.Int("attempt", attempts),
				zap.Duration("elapsed", time.Since(started)))
			if err := d.send(confirmCtx, ptx, true); err != nil {
				return &SubmissionError{Index: idx, Signature: ptx.Signature, Stage: StageSend, Err: err}
			}

		default:
			logger.Error("Transaction failed", zap.Error(err))
			return &SubmissionError{Index: idx, Signature: ptx.Signature, Stage: StageConfirm, Err: err}
		}
	}
}

// send broadcasts the already signed bytes. Node-side retries stay off.
func (d *Driver) send(ctx context.Context, ptx *PreparedTransaction, resend bool) error {
	d.metrics.submitted(resend)
	_, err := d.conn.SendRawTransaction(ctx, ptx.Raw, blockchain.TransactionOptions{
		SkipPreflight:       false,
		PreflightCommitment: d.config.Commitment,
		MaxRetries:          0,
	})
	if err != nil {
		return err
	}
	if ptx.state < StateSubmitted {
		ptx.state = StateSubmitted
	}
	return nil
}

// await races the confirmation against one timeout period.
func (d *Driver) await(ctx context.Context, confirmed <-chan error) error {
	timer := time.NewTimer(d.config.ConfirmTimeout)
	defer timer.Stop()

	select {
	case err := <-confirmed:
		return err
	case <-timer.C:
		return ErrConfirmationTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
