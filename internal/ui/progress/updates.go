package progress

import (
	"context"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txsender/internal/txbatch"
)

// UpdateSender provides non-blocking UI update sending with statistics
type UpdateSender struct {
	msgChan        chan tea.Msg
	droppedUpdates uint64
	sentUpdates    uint64
	logger         *zap.Logger
}

// NewUpdateSender creates a new non-blocking update sender
func NewUpdateSender(msgChan chan tea.Msg, logger *zap.Logger) *UpdateSender {
	return &UpdateSender{
		msgChan: msgChan,
		logger:  logger,
	}
}

// SendUpdate sends a message to UI without blocking
func (us *UpdateSender) SendUpdate(msg tea.Msg) {
	select {
	case us.msgChan <- msg:
		atomic.AddUint64(&us.sentUpdates, 1)
	default:
		// Не блокируем отправку транзакций
		atomic.AddUint64(&us.droppedUpdates, 1)
	}
}

// SendBlocking waits for room in the channel or for ctx to end.
func (us *UpdateSender) SendBlocking(ctx context.Context, msg tea.Msg) bool {
	select {
	case us.msgChan <- msg:
		atomic.AddUint64(&us.sentUpdates, 1)
		return true
	case <-ctx.Done():
		atomic.AddUint64(&us.droppedUpdates, 1)
		return false
	}
}

// GetStats returns current statistics
func (us *UpdateSender) GetStats() (sent, dropped uint64) {
	sent = atomic.LoadUint64(&us.sentUpdates)
	dropped = atomic.LoadUint64(&us.droppedUpdates)
	return sent, dropped
}

// Reporter turns round milestones into UI messages.
type Reporter struct {
	sender    *UpdateSender
	confirmed atomic.Int64
}

func NewReporter(sender *UpdateSender) *Reporter {
	return &Reporter{sender: sender}
}

// Start announces the expected number of transactions.
func (r *Reporter) Start(total int) {
	r.sender.SendUpdate(StartMsg{Total: total})
}

// Hooks returns the round hooks feeding the progress view.
func (r *Reporter) Hooks() txbatch.Hooks {
	return txbatch.Hooks{
		AfterBatchSign: func(signed int) {
			r.sender.SendUpdate(SignedMsg{Count: signed})
		},
		AfterEveryTxConfirmation: func() {
			n := r.confirmed.Add(1)
			r.sender.SendUpdate(ConfirmedMsg{Confirmed: int(n)})
		},
	}
}

// Done reports the round result. It blocks until the view has room or ctx
// ends, which happens when the view has already quit.
func (r *Reporter) Done(ctx context.Context, result DoneMsg) {
	sent, dropped := r.sender.GetStats()
	if dropped > 0 {
		r.sender.logger.Warn("UI update statistics",
			zap.Uint64("sent", sent),
			zap.Uint64("dropped", dropped))
	}
	r.sender.SendBlocking(ctx, result)
}
