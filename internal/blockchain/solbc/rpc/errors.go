// internal/blockchain/solbc/rpc/errors.go
package rpc

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	// ErrNoRPCNodes возникает, когда список RPC пуст
	ErrNoRPCNodes = errors.New("no RPC nodes available")

	// ErrTimeout возникает при превышении времени ожидания
	ErrTimeout = errors.New("request timeout")
)

// Error представляет ошибку RPC с дополнительным контекстом
type Error struct {
	Err     error
	NodeURL string
	Method  string
}

// Error реализует интерфейс error
func (e *Error) Error() string {
	return fmt.Sprintf("RPC error [%s] at %s: %v", e.Method, e.NodeURL, e.Err)
}

// Unwrap возвращает оригинальную ошибку
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError создает новую ошибку RPC
func NewError(err error, nodeURL, method string) error {
	return &Error{
		Err:     err,
		NodeURL: nodeURL,
		Method:  method,
	}
}

// MaskURL drops query parameters and credentials, which commonly carry API keys.
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url"
	}
	u.User = nil
	if u.RawQuery != "" {
		u.RawQuery = "masked"
	}
	return u.String()
}
