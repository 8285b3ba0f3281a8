// internal/app/runner.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txsender/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-txsender/internal/config"
	"github.com/rovshanmuradov/solana-txsender/internal/fee"
	"github.com/rovshanmuradov/solana-txsender/internal/task"
	"github.com/rovshanmuradov/solana-txsender/internal/txbatch"
	"github.com/rovshanmuradov/solana-txsender/internal/ui/progress"
	"github.com/rovshanmuradov/solana-txsender/internal/wallet"
)

// Options are the CLI inputs of one run.
type Options struct {
	WalletsPath string
	WalletName  string
	// MetricsAddr serves /metrics while the run is active when set.
	MetricsAddr string
}

// roundSender runs one submission round; *txbatch.Sender in production.
type roundSender interface {
	SendTransactions(ctx context.Context, groups []txbatch.InstructionGroup, opts txbatch.Options) (solana.Signature, error)
}

// Runner wires configuration, connection, wallet and sender together.
type Runner struct {
	logger    *zap.Logger
	config    *config.Config
	client    *solbc.Client
	estimator *fee.Estimator
	wallets   map[string]*wallet.Wallet
	wallet    *wallet.Wallet
	sender    roundSender
	tasks     *task.Manager
	shutdown  *ShutdownHandler
	// viewOpts are extra options of the progress program (input, renderer).
	viewOpts []tea.ProgramOption
}

// NewRunner принимает cfg и logger
func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		logger:   logger,
		config:   cfg,
		tasks:    task.NewManager(logger),
		shutdown: NewShutdownHandler(logger, 0),
		estimator: fee.NewEstimator(fee.Config{
			Percentile: cfg.Fee.Percentile,
			Min:        cfg.Fee.MinMicroLamports,
			Max:        cfg.Fee.MaxMicroLamports,
			Default:    cfg.Fee.DefaultMicroLamports,
			Timeout:    cfg.Fee.Timeout,
		}, logger),
	}
}

// Connect opens the RPC/WebSocket connection.
func (r *Runner) Connect(ctx context.Context) error {
	client, err := solbc.NewClient(ctx, solbc.ClientConfig{
		RPCList:      r.config.RPCList,
		WebSocketURL: r.config.WebSocketURL,
		PollInterval: r.config.PollInterval,
	}, r.logger)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	r.client = client
	r.shutdown.AddFunc("solana-client", func() error {
		client.Close()
		return nil
	})
	return nil
}

// Initialize connects and loads the signing wallet.
func (r *Runner) Initialize(ctx context.Context, opts Options) error {
	wallets, err := wallet.LoadWallets(opts.WalletsPath)
	if err != nil {
		return err
	}
	r.wallets = wallets

	w, err := selectWallet(wallets, opts.WalletName)
	if err != nil {
		return err
	}
	r.wallet = w

	if err := r.Connect(ctx); err != nil {
		return err
	}

	var reg prometheus.Registerer
	if opts.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		reg = registry
		r.serveMetrics(opts.MetricsAddr, registry)
	}

	r.sender = txbatch.NewSender(r.client, r.wallet, r.estimator, txbatch.DriverConfig{
		ConfirmTimeout: r.config.ConfirmTimeout,
		Commitment:     r.config.CommitmentType(),
	}, r.logger, txbatch.NewMetrics(reg))

	r.logger.Info("Runner initialized",
		zap.String("wallet", r.wallet.String()),
		zap.Int("rpc_nodes", len(r.config.RPCList)))
	return nil
}

func selectWallet(wallets map[string]*wallet.Wallet, name string) (*wallet.Wallet, error) {
	if name != "" {
		w, ok := wallets[name]
		if !ok {
			return nil, fmt.Errorf("wallet %q not found", name)
		}
		return w, nil
	}
	if len(wallets) != 1 {
		return nil, fmt.Errorf("%d wallets loaded, choose one with --wallet", len(wallets))
	}
	for _, w := range wallets {
		return w, nil
	}
	return nil, txbatch.ErrWalletNotConnected
}

func (r *Runner) serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	r.shutdown.AddFunc("metrics-server", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	r.logger.Info("Serving metrics", zap.String("addr", addr))
}

// Submit runs one round from a groups file.
func (r *Runner) Submit(ctx context.Context, groupsPath string, autoFee bool) (solana.Signature, error) {
	groups, err := r.tasks.LoadGroups(groupsPath, r.wallets)
	if err != nil {
		return solana.Signature{}, err
	}

	return r.sender.SendTransactions(ctx, groups, txbatch.Options{
		DisableAutoFee: !autoFee,
		OnInvalidate:   r.logInvalidated,
	})
}

// SubmitWithProgress runs the round under the progress view. The view owns
// the terminal, so logs should go to a file.
func (r *Runner) SubmitWithProgress(ctx context.Context, groupsPath string, autoFee bool) (solana.Signature, error) {
	groups, err := r.tasks.LoadGroups(groupsPath, r.wallets)
	if err != nil {
		return solana.Signature{}, err
	}
	return r.runWithProgress(ctx, groups, autoFee)
}

// runWithProgress sends groups while the view is shown. Quitting the view
// before the round ends cancels the round.
func (r *Runner) runWithProgress(ctx context.Context, groups []txbatch.InstructionGroup, autoFee bool) (solana.Signature, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgs := make(chan tea.Msg, 64)
	reporter := progress.NewReporter(progress.NewUpdateSender(msgs, r.logger))
	reporter.Start(countTransactions(groups))

	type outcome struct {
		sig solana.Signature
		err error
	}
	done := make(chan outcome, 1)
	uiCtx, uiDone := context.WithCancel(ctx)
	defer uiDone()

	go func() {
		sig, err := r.sender.SendTransactions(ctx, groups, txbatch.Options{
			DisableAutoFee: !autoFee,
			Hooks:          reporter.Hooks(),
			OnInvalidate:   r.logInvalidated,
		})
		reporter.Done(uiCtx, progress.DoneMsg{Signature: sig, Err: err})
		done <- outcome{sig: sig, err: err}
	}()

	opts := append([]tea.ProgramOption{tea.WithContext(ctx)}, r.viewOpts...)
	program := tea.NewProgram(progress.New(msgs), opts...)
	final, err := progress.RunWithRecovery(r.logger, program.Run)
	uiDone()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		r.logger.Warn("Progress view failed", zap.Error(err))
	}
	if m, ok := final.(progress.Model); ok {
		if _, finished := m.Result(); !finished {
			// Пользователь вышел до завершения раунда
			cancel()
		}
	}

	res := <-done
	// Раунд завершён, писателей больше нет: освобождаем ожидающий listen.
	close(msgs)
	return res.sig, res.err
}

// EstimateFee returns the current compute-unit price estimate.
func (r *Runner) EstimateFee(ctx context.Context) (uint64, error) {
	return r.estimator.Estimate(ctx, r.client)
}

func (r *Runner) logInvalidated(accounts []solana.PublicKey) {
	r.logger.Debug("Writable accounts changed", zap.Int("accounts", len(accounts)))
}

// Shutdown releases the connection and the metrics server.
func (r *Runner) Shutdown() {
	if err := r.shutdown.Shutdown(context.Background()); err != nil {
		r.logger.Warn("Shutdown completed with errors", zap.Error(err))
	}
}

// countTransactions mirrors Assemble: one transaction per non-empty group.
func countTransactions(groups []txbatch.InstructionGroup) int {
	n := 0
	for _, g := range groups {
		if len(g.Instructions) > 0 {
			n++
		}
	}
	return n
}
