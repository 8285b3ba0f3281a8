// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/viper"
)

// FeeConfig mirrors the "fee" section.
type FeeConfig struct {
	Percentile           int    `mapstructure:"percentile"`
	MinMicroLamports     uint64 `mapstructure:"min_micro_lamports"`
	MaxMicroLamports     uint64 `mapstructure:"max_micro_lamports"`
	DefaultMicroLamports uint64 `mapstructure:"default_micro_lamports"`
	TimeoutMS            int    `mapstructure:"timeout_ms"`

	Timeout time.Duration `mapstructure:"-"`
}

type Config struct {
	RPCList          []string  `mapstructure:"rpc_list"`
	WebSocketURL     string    `mapstructure:"websocket_url"`
	ConfirmTimeoutMS int       `mapstructure:"confirm_timeout_ms"`
	Commitment       string    `mapstructure:"commitment"`
	AutoFee          bool      `mapstructure:"auto_fee"`
	Fee              FeeConfig `mapstructure:"fee"`
	DebugLogging     bool      `mapstructure:"debug_logging"`
	PollIntervalMS   int       `mapstructure:"poll_interval_ms"`

	ConfirmTimeout time.Duration `mapstructure:"-"`
	PollInterval   time.Duration `mapstructure:"-"`
}

const (
	EnvPrefix = "TXSENDER"

	DefaultConfirmTimeoutMS = 30000
	DefaultCommitment       = "confirmed"
	DefaultPollIntervalMS   = 500
	DefaultFeePercentile    = 50
	DefaultFeeMin           = 1
	DefaultFeeMax           = 1_000_000
	DefaultFee              = 10_000
	DefaultFeeTimeoutMS     = 10000
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"confirm_timeout_ms":         DefaultConfirmTimeoutMS,
		"commitment":                 DefaultCommitment,
		"auto_fee":                   true,
		"debug_logging":              false,
		"poll_interval_ms":           DefaultPollIntervalMS,
		"websocket_url":              "",
		"fee.percentile":             DefaultFeePercentile,
		"fee.min_micro_lamports":     DefaultFeeMin,
		"fee.max_micro_lamports":     DefaultFeeMax,
		"fee.default_micro_lamports": DefaultFee,
		"fee.timeout_ms":             DefaultFeeTimeoutMS,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}

	// rpc_list из окружения приходит строкой через запятую
	if envRPCList, ok := os.LookupEnv(EnvPrefix + "_RPC_LIST"); ok && envRPCList != "" {
		cfg.RPCList = splitList(envRPCList)
	}

	cfg.ConfirmTimeout = time.Duration(cfg.ConfirmTimeoutMS) * time.Millisecond
	cfg.PollInterval = time.Duration(cfg.PollIntervalMS) * time.Millisecond
	cfg.Fee.Timeout = time.Duration(cfg.Fee.TimeoutMS) * time.Millisecond

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CommitmentType returns the configured commitment as an RPC value.
func (c *Config) CommitmentType() rpc.CommitmentType {
	return rpc.CommitmentType(c.Commitment)
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list must contain at least one RPC endpoint")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURL(rpcURL, "http"); err != nil {
			return fmt.Errorf("invalid RPC URL %q: %w", rpcURL, err)
		}
	}
	if cfg.WebSocketURL != "" {
		if err := validateURL(cfg.WebSocketURL, "ws"); err != nil {
			return fmt.Errorf("invalid websocket_url: %w", err)
		}
	}

	switch rpc.CommitmentType(cfg.Commitment) {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		return fmt.Errorf("invalid commitment %q", cfg.Commitment)
	}

	if cfg.ConfirmTimeout <= 0 {
		return errors.New("invalid confirm_timeout_ms")
	}
	if cfg.PollInterval <= 0 {
		return errors.New("invalid poll_interval_ms")
	}
	if cfg.Fee.Percentile < 1 || cfg.Fee.Percentile > 100 {
		return errors.New("fee.percentile must be within 1..100")
	}
	if cfg.Fee.MinMicroLamports > cfg.Fee.MaxMicroLamports {
		return errors.New("fee.min_micro_lamports exceeds fee.max_micro_lamports")
	}
	if cfg.Fee.Timeout <= 0 {
		return errors.New("invalid fee.timeout_ms")
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) || parsed.Host == "" {
		return errors.New("invalid URL protocol")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if clean := strings.TrimSpace(part); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}
