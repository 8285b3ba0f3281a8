package progress

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func TestModel_RoundLifecycle(t *testing.T) {
	ch := make(chan tea.Msg, 8)
	m := New(ch)

	m, cmd := step(t, m, StartMsg{Total: 3})
	assert.NotNil(t, cmd)
	m, _ = step(t, m, SignedMsg{Count: 3})
	m, _ = step(t, m, ConfirmedMsg{Confirmed: 2})
	// Out of order message does not move the counter back.
	m, _ = step(t, m, ConfirmedMsg{Confirmed: 1})

	assert.Contains(t, m.View(), "3/3")
	assert.Contains(t, m.View(), "2/3")
	_, ok := m.Result()
	assert.False(t, ok)

	sig := solana.Signature{1, 2, 3}
	m, cmd = step(t, m, DoneMsg{Signature: sig})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	result, ok := m.Result()
	assert.True(t, ok)
	assert.Equal(t, sig, result.Signature)
	assert.NoError(t, result.Err)
	assert.Contains(t, m.View(), sig.String())
	assert.Equal(t, 1.0, m.percent())
}

func TestModel_Failure(t *testing.T) {
	m := New(make(chan tea.Msg))
	m, _ = step(t, m, StartMsg{Total: 2})
	m, _ = step(t, m, DoneMsg{Err: errors.New("Transaction Failed")})

	result, ok := m.Result()
	assert.True(t, ok)
	assert.EqualError(t, result.Err, "Transaction Failed")
	assert.Contains(t, m.View(), "Transaction Failed")
	assert.Equal(t, 0.0, m.percent())
}

func TestModel_Quit(t *testing.T) {
	m := New(make(chan tea.Msg))
	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.True(t, m.aborted)
	assert.Contains(t, m.View(), "Interrupted")
}

func TestReporter_Hooks(t *testing.T) {
	ch := make(chan tea.Msg, 8)
	reporter := NewReporter(NewUpdateSender(ch, zaptest.NewLogger(t)))

	reporter.Start(2)
	hooks := reporter.Hooks()
	hooks.AfterBatchSign(2)
	hooks.AfterEveryTxConfirmation()
	hooks.AfterEveryTxConfirmation()
	reporter.Done(context.Background(), DoneMsg{})

	assert.Equal(t, StartMsg{Total: 2}, <-ch)
	assert.Equal(t, SignedMsg{Count: 2}, <-ch)
	assert.Equal(t, ConfirmedMsg{Confirmed: 1}, <-ch)
	assert.Equal(t, ConfirmedMsg{Confirmed: 2}, <-ch)
	assert.Equal(t, DoneMsg{}, <-ch)
}

func TestUpdateSender_NonBlocking(t *testing.T) {
	ch := make(chan tea.Msg, 1)
	sender := NewUpdateSender(ch, zaptest.NewLogger(t))

	sender.SendUpdate(SignedMsg{Count: 1})
	sender.SendUpdate(SignedMsg{Count: 2})

	sent, dropped := sender.GetStats()
	assert.Equal(t, uint64(1), sent)
	assert.Equal(t, uint64(1), dropped)
}

func TestUpdateSender_SendBlockingHonorsContext(t *testing.T) {
	sender := NewUpdateSender(make(chan tea.Msg), zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, sender.SendBlocking(ctx, DoneMsg{}))
	_, dropped := sender.GetStats()
	assert.Equal(t, uint64(1), dropped)
}
