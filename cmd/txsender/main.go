// ====================================
// File: cmd/txsender/main.go
// ====================================
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txsender/internal/app"
	"github.com/rovshanmuradov/solana-txsender/internal/config"
	"github.com/rovshanmuradov/solana-txsender/internal/logger"
)

var (
	cfgFile     string
	walletsFile string
	walletName  string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "txsender",
		Short:         "Submit instruction groups to Solana as a confirmed sequence of transactions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env необязателен
			_ = godotenv.Load()
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "configs/config.yaml", "config file (json or yaml)")
	root.PersistentFlags().StringVar(&walletsFile, "wallets", "configs/wallets.yaml", "wallets file")
	root.PersistentFlags().StringVarP(&walletName, "wallet", "w", "", "wallet name to sign with")

	root.AddCommand(newSubmitCmd(), newFeeCmd())
	return root
}

func newSubmitCmd() *cobra.Command {
	var (
		groupsFile  string
		useTUI      bool
		noFee       bool
		metricsAddr string
		logFile     string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Sign, send and confirm the groups of a groups file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return reportError(err)
			}

			log := logger.New(cfg.DebugLogging)
			if useTUI {
				fileCfg := logger.DefaultFileConfig()
				if logFile != "" {
					fileCfg.LogFile = logFile
				}
				var closeLog func() error
				log, closeLog = logger.NewFile(fileCfg, cfg.DebugLogging)
				defer closeLog()
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner := app.NewRunner(cfg, log)
			defer runner.Shutdown()

			if err := runner.Initialize(ctx, app.Options{
				WalletsPath: walletsFile,
				WalletName:  walletName,
				MetricsAddr: metricsAddr,
			}); err != nil {
				log.Error("Failed to initialize", zap.Error(err))
				return reportError(err)
			}

			autoFee := cfg.AutoFee && !noFee
			submit := runner.Submit
			if useTUI {
				submit = runner.SubmitWithProgress
			}

			sig, err := submit(ctx, groupsFile, autoFee)
			if err != nil {
				return reportError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), sig.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&groupsFile, "groups", "g", "configs/groups.yaml", "instruction groups file")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "show progress view, logs go to --log-file")
	cmd.Flags().BoolVar(&noFee, "no-fee", false, "do not inject the compute-unit price instruction")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	cmd.Flags().StringVar(&logFile, "log-file", "", "log file used with --tui")
	return cmd
}

func newFeeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fee",
		Short: "Print the current compute-unit price estimate in micro-lamports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return reportError(err)
			}
			log := logger.New(cfg.DebugLogging)
			defer func() { _ = log.Sync() }()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			runner := app.NewRunner(cfg, log)
			defer runner.Shutdown()
			if err := runner.Connect(ctx); err != nil {
				return reportError(err)
			}

			estimate, err := runner.EstimateFee(ctx)
			if err != nil {
				return reportError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), estimate)
			return nil
		},
	}
}

func reportError(err error) error {
	fmt.Fprintln(os.Stderr, "error:", err)
	return err
}
