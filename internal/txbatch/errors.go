// internal/txbatch/errors.go
package txbatch

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrConfirmationTimeout is internal to the driver: it triggers a resend
	// of the same raw bytes and never reaches the caller.
	ErrConfirmationTimeout = errors.New("transaction confirmation timeout")

	ErrWalletNotConnected  = errors.New("wallet not connected")
	ErrTransactionTooLarge = errors.New("transaction too large")
	ErrTooManyAccounts     = errors.New("too many accounts in transaction")
	ErrMissingSignature    = errors.New("missing transaction signature")
	ErrInvalidSignature    = errors.New("invalid transaction signature")
	ErrInvalidBlockhash    = errors.New("invalid blockhash")
	ErrInvalidInstruction  = errors.New("invalid instruction")
)

// FeeEstimationError means the fee lookup failed before anything was built.
type FeeEstimationError struct {
	Err error
}

func (e *FeeEstimationError) Error() string {
	return fmt.Sprintf("fee estimation failed: %v", e.Err)
}

func (e *FeeEstimationError) Unwrap() error {
	return e.Err
}

// BlockhashError means the shared blockhash of the round could not be
// fetched. Nothing was built or sent.
type BlockhashError struct {
	Err error
}

func (e *BlockhashError) Error() string {
	return fmt.Sprintf("get latest blockhash: %v", e.Err)
}

func (e *BlockhashError) Unwrap() error {
	return e.Err
}

// BuildError means a batch could not be encoded into one transaction.
// The caller has to re-chunk the group.
type BuildError struct {
	Batch int
	Size  int
	Err   error
}

func (e *BuildError) Error() string {
	if e.Size > 0 {
		return fmt.Sprintf("build transaction %d (%d bytes): %v", e.Batch, e.Size, e.Err)
	}
	return fmt.Sprintf("build transaction %d: %v", e.Batch, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// SigningError means bulk signing failed or was declined. Nothing was sent.
type SigningError struct {
	Count int
	Err   error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("signing %d transactions failed: %v", e.Count, e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// Stage tells which step of a transaction's submission failed.
type Stage string

const (
	StageSend    Stage = "send"
	StageConfirm Stage = "confirm"
)

// SubmissionError aborts the round. Transactions before Index were confirmed.
type SubmissionError struct {
	Index     int
	Signature solana.Signature
	Stage     Stage
	Err       error
}

func (e *SubmissionError) Error() string {
	if e.Stage == StageConfirm {
		return fmt.Sprintf("Transaction Failed: transaction %d (%s): %v", e.Index, e.Signature, e.Err)
	}
	return fmt.Sprintf("send transaction %d (%s): %v", e.Index, e.Signature, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// errorKind is the metrics label for a round failure.
func errorKind(err error) string {
	var (
		feeErr    *FeeEstimationError
		bhErr     *BlockhashError
		buildErr  *BuildError
		signErr   *SigningError
		submitErr *SubmissionError
	)
	switch {
	case errors.As(err, &feeErr):
		return "fee_estimation"
	case errors.As(err, &bhErr):
		return "blockhash"
	case errors.As(err, &buildErr):
		return "build"
	case errors.As(err, &signErr):
		return "signing"
	case errors.As(err, &submitErr):
		return "submission"
	default:
		return "other"
	}
}
