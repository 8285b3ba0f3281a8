package progress

import (
	"fmt"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// RunWithRecovery runs the view and turns a panic into an error so the
// round keeps running and its outcome is still returned to the caller.
func RunWithRecovery(logger *zap.Logger, run func() (tea.Model, error)) (final tea.Model, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("UI panic: %v", r)
			logger.Error("UI panic recovered",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
		}
	}()

	final, err = run()
	if err != nil {
		return final, fmt.Errorf("UI error: %w", err)
	}
	return final, nil
}
