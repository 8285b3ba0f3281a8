// internal/blockchain/types.go
package blockchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var (
	// ErrBlockhashExpired is returned by a confirmation wait once the network's
	// block height has passed the transaction's last valid block height.
	ErrBlockhashExpired = errors.New("blockhash expired")
)

// TransactionOptions определяет опции для отправки транзакций.
type TransactionOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
	// MaxRetries is forwarded to the RPC node. Zero disables node-side
	// rebroadcasting.
	MaxRetries uint
}

// BlockhashContext is the freshness token pair shared by every transaction of a round.
type BlockhashContext struct {
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
}

// ConfirmRequest identifies a submitted transaction for confirmation.
type ConfirmRequest struct {
	Signature            solana.Signature
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
	Commitment           rpc.CommitmentType
}

// TransactionError reports a transaction that landed but failed on chain.
type TransactionError struct {
	Signature solana.Signature
	Err       interface{}
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed on chain: %v", e.Signature, e.Err)
}

// FeeSource provides recent prioritization fee samples in micro-lamports.
type FeeSource interface {
	GetRecentPrioritizationFees(ctx context.Context, accounts solana.PublicKeySlice) ([]uint64, error)
}

// Client определяет общий интерфейс для взаимодействия с блокчейном.
type Client interface {
	FeeSource
	// Получить последний blockhash вместе с last valid block height.
	GetLatestBlockhash(ctx context.Context) (BlockhashContext, error)
	// Отправить сериализованную транзакцию.
	SendRawTransaction(ctx context.Context, raw []byte, opts TransactionOptions) (solana.Signature, error)
	// Ожидать подтверждения. Возвращает nil после подтверждения,
	// ErrBlockhashExpired или *TransactionError в терминальных случаях.
	ConfirmTransaction(ctx context.Context, req ConfirmRequest) error
}
