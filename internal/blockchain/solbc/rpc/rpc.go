// internal/blockchain/solbc/rpc/rpc.go
package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// Основные константы
const (
	retryDelay = 500 * time.Millisecond
	reqTimeout = 10 * time.Second
)

// RPCClient holds a primary endpoint and its backup connections.
type RPCClient struct {
	nodes   []*solanarpc.Client
	urls    []string
	current int
	timeout time.Duration
	mu      sync.Mutex
	logger  *zap.Logger
}

// NewClient создает новый RPC клиент. The first URL is the primary node.
func NewClient(urls []string, logger *zap.Logger) (*RPCClient, error) {
	if len(urls) == 0 {
		return nil, ErrNoRPCNodes
	}

	nodes := make([]*solanarpc.Client, len(urls))
	for i, url := range urls {
		nodes[i] = solanarpc.New(url)
	}

	return &RPCClient{
		nodes:   nodes,
		urls:    urls,
		timeout: reqTimeout,
		logger:  logger.Named("rpc-client"),
	}, nil
}

// SetRequestTimeout bounds every single node attempt. Non-positive values
// keep the default.
func (c *RPCClient) SetRequestTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// Primary returns the first configured node. Writes go only there.
func (c *RPCClient) Primary() (*solanarpc.Client, string) {
	return c.nodes[0], c.urls[0]
}

// RequestTimeout is the bound of one node attempt.
func (c *RPCClient) RequestTimeout() time.Duration {
	return c.timeout
}

// ExecuteWithRetry runs a read operation, moving to the next node after each
// failure until every node has been tried once. Each attempt gets its own
// ctx bounded by the request timeout, so a hung node fails over too.
func (c *RPCClient) ExecuteWithRetry(ctx context.Context, method string, operation func(ctx context.Context, node *solanarpc.Client) error) error {
	var (
		lastErr error
		lastURL string
	)
	for attempt := 0; attempt < len(c.nodes); attempt++ {
		if ctx.Err() != nil {
			break
		}

		c.mu.Lock()
		node := c.nodes[c.current]
		url := c.urls[c.current]
		c.mu.Unlock()

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := operation(attemptCtx, node)
		if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w after %s: %v", ErrTimeout, c.timeout, err)
		}
		cancel()
		if err == nil {
			return nil
		}
		lastErr, lastURL = err, url

		// Переключаемся на следующий узел
		c.mu.Lock()
		c.current = (c.current + 1) % len(c.nodes)
		c.mu.Unlock()

		c.logger.Debug("RPC request failed, trying next node",
			zap.String("method", method),
			zap.String("url", MaskURL(url)),
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < len(c.nodes)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(retryDelay):
			}
		}
	}

	if lastErr == nil {
		lastErr = ErrTimeout
		if err := ctx.Err(); err != nil {
			lastErr = err
		}
	}
	return NewError(lastErr, MaskURL(lastURL), method)
}

// Close закрывает клиент
func (c *RPCClient) Close() {}
