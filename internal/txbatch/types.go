// internal/txbatch/types.go
package txbatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-txsender/internal/blockchain"
)

// SequenceMode classifies how sibling instruction groups relate to each other.
type SequenceMode int

const (
	// Sequential groups are submitted and confirmed in order.
	Sequential SequenceMode = iota
	// Parallel groups may be submitted concurrently.
	Parallel
	// StopOnFailure aborts the remaining groups on the first failure.
	StopOnFailure
)

func (m SequenceMode) String() string {
	switch m {
	case Sequential:
		return "sequential"
	case Parallel:
		return "parallel"
	case StopOnFailure:
		return "stop_on_failure"
	default:
		return fmt.Sprintf("SequenceMode(%d)", int(m))
	}
}

// ParseSequenceMode accepts the String() form, case-insensitive. Empty means Sequential.
func ParseSequenceMode(s string) (SequenceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sequential":
		return Sequential, nil
	case "parallel":
		return Parallel, nil
	case "stop_on_failure", "stoponfailure":
		return StopOnFailure, nil
	default:
		return 0, fmt.Errorf("unknown sequence mode %q", s)
	}
}

// SignedInstruction pairs an opaque instruction with the extra keypairs that
// must sign for it besides the wallet.
type SignedInstruction struct {
	Instruction solana.Instruction
	Signers     []solana.PrivateKey
}

// InstructionGroup is an ordered instruction set that becomes one transaction.
type InstructionGroup struct {
	Instructions []SignedInstruction
	Mode         SequenceMode
}

// FeeEstimate is a compute-unit price in micro-lamports, valid for one round.
type FeeEstimate uint64

// SubmittableBatch is an InstructionGroup after fee instruction injection.
type SubmittableBatch struct {
	Instructions []SignedInstruction
	Mode         SequenceMode
	FeeInjected  bool
}

// State is the lifecycle position of a PreparedTransaction.
type State int

const (
	StateBuilt State = iota
	StateSigned
	StateSubmitted
	StateAwaitingConfirmation
	StateConfirmed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateSigned:
		return "signed"
	case StateSubmitted:
		return "submitted"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// PreparedTransaction is one versioned transaction of a round. Build fills
// Tx, Signers and Blockhash; signing fills Raw and Signature. Raw is never
// rebuilt or re-signed after that.
type PreparedTransaction struct {
	Tx        *solana.Transaction
	Signers   []solana.PrivateKey
	Mode      SequenceMode
	Blockhash blockchain.BlockhashContext

	Raw       []byte
	Signature solana.Signature

	state State
}

// State returns the current lifecycle state.
func (p *PreparedTransaction) State() State {
	return p.state
}

// Signer is a wallet able to bulk-sign transactions for its public key.
type Signer interface {
	PublicKey() solana.PublicKey
	SignAllTransactions(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error)
}

// FeeEstimator returns a fresh compute-unit price estimate from the given source.
type FeeEstimator interface {
	Estimate(ctx context.Context, src blockchain.FeeSource) (uint64, error)
}
