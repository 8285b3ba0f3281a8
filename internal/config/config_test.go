package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "rpc_list:\n  - https://api.mainnet-beta.solana.com\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://api.mainnet-beta.solana.com"}, cfg.RPCList)
	assert.Equal(t, 30*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, rpc.CommitmentConfirmed, cfg.CommitmentType())
	assert.True(t, cfg.AutoFee)
	assert.Equal(t, DefaultFeePercentile, cfg.Fee.Percentile)
	assert.Equal(t, uint64(DefaultFee), cfg.Fee.DefaultMicroLamports)
	assert.Equal(t, 10*time.Second, cfg.Fee.Timeout)
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := writeConfig(t, `
rpc_list:
  - https://primary.example.com
  - https://backup.example.com
websocket_url: wss://primary.example.com
confirm_timeout_ms: 5000
commitment: finalized
auto_fee: false
fee:
  percentile: 75
  max_micro_lamports: 50000
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Len(t, cfg.RPCList, 2)
	assert.Equal(t, 5*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, rpc.CommitmentFinalized, cfg.CommitmentType())
	assert.False(t, cfg.AutoFee)
	assert.Equal(t, 75, cfg.Fee.Percentile)
	assert.Equal(t, uint64(50000), cfg.Fee.MaxMicroLamports)
	assert.Equal(t, uint64(DefaultFeeMin), cfg.Fee.MinMicroLamports)
}

func TestLoadConfig_EnvRPCList(t *testing.T) {
	path := writeConfig(t, "rpc_list:\n  - https://file.example.com\n")
	t.Setenv("TXSENDER_RPC_LIST", "https://a.example.com, https://b.example.com")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.RPCList)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty rpc list", "debug_logging: true\n", "rpc_list"},
		{"bad rpc scheme", "rpc_list: [ftp://node.example.com]\n", "invalid RPC URL"},
		{"bad ws scheme", "rpc_list: [https://n.example.com]\nwebsocket_url: https://n.example.com\n", "websocket_url"},
		{"bad commitment", "rpc_list: [https://n.example.com]\ncommitment: max\n", "commitment"},
		{"bad percentile", "rpc_list: [https://n.example.com]\nfee:\n  percentile: 101\n", "percentile"},
		{"min above max", "rpc_list: [https://n.example.com]\nfee:\n  min_micro_lamports: 10\n  max_micro_lamports: 5\n", "min_micro_lamports"},
		{"zero timeout", "rpc_list: [https://n.example.com]\nconfirm_timeout_ms: 0\n", "confirm_timeout_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config error")
}
