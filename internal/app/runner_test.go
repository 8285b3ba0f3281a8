package app

import (
	"context"
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solana-txsender/internal/config"
	"github.com/rovshanmuradov/solana-txsender/internal/txbatch"
	"github.com/rovshanmuradov/solana-txsender/internal/wallet"
)

func TestSelectWallet(t *testing.T) {
	main := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
	side := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)

	w, err := selectWallet(map[string]*wallet.Wallet{"main": main}, "")
	require.NoError(t, err)
	assert.Same(t, main, w)

	both := map[string]*wallet.Wallet{"main": main, "side": side}
	w, err = selectWallet(both, "side")
	require.NoError(t, err)
	assert.Same(t, side, w)

	_, err = selectWallet(both, "")
	assert.ErrorContains(t, err, "choose one with --wallet")

	_, err = selectWallet(both, "cold")
	assert.ErrorContains(t, err, `wallet "cold" not found`)
}

func TestCountTransactions(t *testing.T) {
	ix := txbatch.SignedInstruction{}
	groups := []txbatch.InstructionGroup{
		{Instructions: []txbatch.SignedInstruction{ix, ix}},
		{},
		{Mode: txbatch.Parallel, Instructions: []txbatch.SignedInstruction{ix}},
	}
	assert.Equal(t, 2, countTransactions(groups))
	assert.Zero(t, countTransactions(nil))
}

// stubSender either confirms the round at once or waits for ctx.
type stubSender struct {
	sig     solana.Signature
	block   bool
	started chan struct{}
}

func (s *stubSender) SendTransactions(ctx context.Context, groups []txbatch.InstructionGroup, opts txbatch.Options) (solana.Signature, error) {
	close(s.started)
	if s.block {
		<-ctx.Done()
		return solana.Signature{}, ctx.Err()
	}
	opts.Hooks.AfterBatchSign(len(groups))
	for range groups {
		opts.Hooks.AfterEveryTxConfirmation()
	}
	return s.sig, nil
}

func newViewRunner(t *testing.T, sender roundSender, input io.Reader) *Runner {
	t.Helper()
	r := NewRunner(&config.Config{}, zaptest.NewLogger(t))
	r.sender = sender
	r.viewOpts = []tea.ProgramOption{
		tea.WithInput(input),
		tea.WithOutput(io.Discard),
		tea.WithoutRenderer(),
		tea.WithoutSignalHandler(),
	}
	return r
}

func testGroups() []txbatch.InstructionGroup {
	ix := txbatch.SignedInstruction{}
	return []txbatch.InstructionGroup{
		{Instructions: []txbatch.SignedInstruction{ix}},
		{Mode: txbatch.Parallel, Instructions: []txbatch.SignedInstruction{ix}},
	}
}

func TestRunWithProgress_ReturnsRoundResult(t *testing.T) {
	sender := &stubSender{sig: solana.Signature{1, 2, 3}, started: make(chan struct{})}
	r := newViewRunner(t, sender, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sig, err := r.runWithProgress(ctx, testGroups(), true)
	require.NoError(t, err)
	assert.Equal(t, sender.sig, sig)
}

func TestRunWithProgress_QuitCancelsRound(t *testing.T) {
	in, keys := io.Pipe()
	defer keys.Close()

	sender := &stubSender{block: true, started: make(chan struct{})}
	r := newViewRunner(t, sender, in)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		<-sender.started
		_, _ = keys.Write([]byte("q"))
	}()

	start := time.Now()
	_, err := r.runWithProgress(ctx, testGroups(), false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, ctx.Err(), "round must end on quit, not on the test deadline")
	assert.Less(t, time.Since(start), 5*time.Second)
}
