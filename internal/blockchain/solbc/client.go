// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txsender/internal/blockchain"
	solbcrpc "github.com/rovshanmuradov/solana-txsender/internal/blockchain/solbc/rpc"
)

const DefaultPollInterval = 500 * time.Millisecond

var errNotConfirmed = errors.New("transaction not confirmed yet")

// ClientConfig описывает подключение к кластеру.
type ClientConfig struct {
	// RPCList: первый URL основной, остальные резервные (только чтение).
	RPCList        []string
	WebSocketURL   string
	PollInterval   time.Duration
	// RequestTimeout ограничивает один запрос к узлу (по умолчанию 10s).
	RequestTimeout time.Duration
}

// Client – адаптер blockchain.Client поверх solana-go.
type Client struct {
	rpc          *solbcrpc.RPCClient
	ws           *ws.Client
	logger       *zap.Logger
	pollInterval time.Duration
}

var _ blockchain.Client = (*Client)(nil)

// NewClient создаёт клиент. WebSocket необязателен: без него подтверждение
// идёт только опросом статусов.
func NewClient(ctx context.Context, cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	logger = logger.Named("solbc-client")

	rpcClient, err := solbcrpc.NewClient(cfg.RPCList, logger)
	if err != nil {
		return nil, err
	}
	rpcClient.SetRequestTimeout(cfg.RequestTimeout)

	c := &Client{
		rpc:          rpcClient,
		logger:       logger,
		pollInterval: cfg.PollInterval,
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}

	if cfg.WebSocketURL != "" {
		wsClient, err := ws.Connect(ctx, cfg.WebSocketURL)
		if err != nil {
			logger.Warn("WebSocket unavailable, falling back to polling",
				zap.String("url", solbcrpc.MaskURL(cfg.WebSocketURL)),
				zap.Error(err))
		} else {
			c.ws = wsClient
		}
	}
	return c, nil
}

// GetLatestBlockhash получает blockhash и last valid block height.
func (c *Client) GetLatestBlockhash(ctx context.Context) (blockchain.BlockhashContext, error) {
	var out blockchain.BlockhashContext
	err := c.rpc.ExecuteWithRetry(ctx, "getLatestBlockhash", func(ctx context.Context, node *rpc.Client) error {
		result, err := node.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		out = blockchain.BlockhashContext{
			Blockhash:            result.Value.Blockhash,
			LastValidBlockHeight: result.Value.LastValidBlockHeight,
		}
		return nil
	})
	if err != nil {
		c.logger.Error("GetLatestBlockhash error", zap.Error(err))
		return blockchain.BlockhashContext{}, err
	}
	return out, nil
}

// GetRecentPrioritizationFees возвращает выборку комиссий за последние слоты.
func (c *Client) GetRecentPrioritizationFees(ctx context.Context, accounts solana.PublicKeySlice) ([]uint64, error) {
	var fees []uint64
	err := c.rpc.ExecuteWithRetry(ctx, "getRecentPrioritizationFees", func(ctx context.Context, node *rpc.Client) error {
		result, err := node.GetRecentPrioritizationFees(ctx, accounts)
		if err != nil {
			return err
		}
		fees = make([]uint64, 0, len(result))
		for _, r := range result {
			fees = append(fees, r.PrioritizationFee)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fees, nil
}

// SendRawTransaction отправляет транзакцию только на основной узел.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte, opts blockchain.TransactionOptions) (solana.Signature, error) {
	node, url := c.rpc.Primary()
	maxRetries := opts.MaxRetries

	ctx, cancel := context.WithTimeout(ctx, c.rpc.RequestTimeout())
	defer cancel()

	sig, err := node.SendRawTransactionWithOpts(ctx, raw, rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: opts.PreflightCommitment,
		MaxRetries:          &maxRetries,
	})
	if err != nil {
		sendErr := &SendError{Message: ErrorMessage(err), Err: err}
		c.logger.Debug("SendRawTransaction error",
			zap.String("url", solbcrpc.MaskURL(url)),
			zap.String("message", sendErr.Message))
		return solana.Signature{}, sendErr
	}
	return sig, nil
}

// ConfirmTransaction ждёт достижения req.Commitment. Опрос статусов и
// подписка по WebSocket работают параллельно, побеждает первый результат.
func (c *Client) ConfirmTransaction(ctx context.Context, req blockchain.ConfirmRequest) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wsResult := c.subscribe(ctx, req)

	operation := func() (struct{}, error) {
		select {
		case err := <-wsResult:
			if err != nil {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, nil
		default:
		}

		if err := c.checkStatus(ctx, req); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	}

	// Без лимита по времени: ожидание заканчивают только подтверждение,
	// ошибка в сети, истечение blockhash или ctx.
	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.pollInterval)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			if !errors.Is(err, errNotConfirmed) {
				c.logger.Debug("Confirmation poll failed",
					zap.String("signature", req.Signature.String()),
					zap.Duration("next", next),
					zap.Error(err))
			}
		}))
	return err
}

// checkStatus returns nil once confirmed, a permanent error for terminal
// states and errNotConfirmed otherwise.
func (c *Client) checkStatus(ctx context.Context, req blockchain.ConfirmRequest) error {
	var status *rpc.SignatureStatusesResult
	err := c.rpc.ExecuteWithRetry(ctx, "getSignatureStatuses", func(ctx context.Context, node *rpc.Client) error {
		result, err := node.GetSignatureStatuses(ctx, false, req.Signature)
		if err != nil {
			return err
		}
		if len(result.Value) > 0 {
			status = result.Value[0]
		}
		return nil
	})
	if err != nil {
		return err
	}

	if status != nil {
		if status.Err != nil {
			return backoff.Permanent(&blockchain.TransactionError{Signature: req.Signature, Err: status.Err})
		}
		if commitmentReached(status.ConfirmationStatus, req.Commitment) {
			return nil
		}
	}

	if req.LastValidBlockHeight > 0 {
		var height uint64
		err := c.rpc.ExecuteWithRetry(ctx, "getBlockHeight", func(ctx context.Context, node *rpc.Client) error {
			var err error
			height, err = node.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
			return err
		})
		switch {
		case err != nil:
			c.logger.Debug("Block height check failed",
				zap.String("signature", req.Signature.String()),
				zap.Error(err))
		case height > req.LastValidBlockHeight:
			return backoff.Permanent(fmt.Errorf("%w: block height %d > %d",
				blockchain.ErrBlockhashExpired, height, req.LastValidBlockHeight))
		}
	}
	return errNotConfirmed
}

// subscribe starts a signature subscription when a WebSocket is connected.
// The returned channel yields at most one value.
func (c *Client) subscribe(ctx context.Context, req blockchain.ConfirmRequest) <-chan error {
	out := make(chan error, 1)
	if c.ws == nil {
		return out
	}

	sub, err := c.ws.SignatureSubscribe(req.Signature, req.Commitment)
	if err != nil {
		c.logger.Debug("SignatureSubscribe failed", zap.Error(err))
		return out
	}

	go func() {
		defer sub.Unsubscribe()
		result, err := sub.Recv(ctx)
		if err != nil {
			// Опрос продолжит работу.
			return
		}
		if result.Value.Err != nil {
			out <- &blockchain.TransactionError{Signature: req.Signature, Err: result.Value.Err}
			return
		}
		out <- nil
	}()
	return out
}

// Close закрывает соединения.
func (c *Client) Close() {
	if c.ws != nil {
		c.ws.Close()
	}
	c.rpc.Close()
}

func commitmentReached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	switch want {
	case rpc.CommitmentFinalized:
		return status == rpc.ConfirmationStatusFinalized
	case rpc.CommitmentProcessed:
		return status != ""
	default:
		return status == rpc.ConfirmationStatusConfirmed || status == rpc.ConfirmationStatusFinalized
	}
}
