package solbc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// AnchorError represents an error from Anchor framework
type AnchorError struct {
	Code int    `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

// SendError is a failed raw submission with a human readable message
// extracted from the node's response.
type SendError struct {
	Message string
	Err     error
}

func (e *SendError) Error() string {
	return e.Message
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// ErrorMessage extracts the most useful description of an RPC failure:
// the JSON-RPC message, the decoded Anchor error or the instruction error
// from simulation data, falling back to err.Error().
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return err.Error()
	}

	msg := rpcErr.Message
	if msg == "" {
		msg = fmt.Sprintf("rpc error %d", rpcErr.Code)
	}

	dataMap, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		return msg
	}

	if logs, ok := dataMap["logs"].([]interface{}); ok {
		for _, entry := range logs {
			logStr, ok := entry.(string)
			if !ok || !strings.Contains(logStr, "AnchorError occurred") {
				continue
			}
			anchorErr := parseAnchorErrorLog(logStr)
			return fmt.Sprintf("%s: %s (%d): %s", msg, anchorErr.Name, anchorErr.Code, anchorErr.Msg)
		}
	}

	if instrErr, ok := dataMap["err"]; ok && instrErr != nil {
		if b, err := json.Marshal(instrErr); err == nil {
			return fmt.Sprintf("%s: %s", msg, b)
		}
	}
	return msg
}

// parseAnchorErrorLog parses an Anchor error log string
// Example: "Program log: AnchorError occurred. Error Code: InstructionFallbackNotFound. Error Number: 101. Error Message: Fallback functions are not supported."
func parseAnchorErrorLog(logStr string) AnchorError {
	result := AnchorError{}

	if parts := strings.SplitN(logStr, "Error Number:", 2); len(parts) == 2 {
		numPart := strings.SplitN(parts[1], ".", 2)[0]
		fmt.Sscanf(strings.TrimSpace(numPart), "%d", &result.Code)
	}

	if parts := strings.SplitN(logStr, "Error Code:", 2); len(parts) == 2 {
		result.Name = strings.TrimSpace(strings.SplitN(parts[1], ".", 2)[0])
	}

	if parts := strings.SplitN(logStr, "Error Message:", 2); len(parts) == 2 {
		result.Msg = strings.TrimSuffix(strings.TrimSpace(parts[1]), ".")
	}

	return result
}
