// internal/txbatch/hooks.go
package txbatch

// Hooks are optional milestone callbacks. They run synchronously on the
// round's goroutine and must not panic.
type Hooks struct {
	// AfterBatchSign receives the number of transactions signed.
	AfterBatchSign func(signed int)
	// AfterEveryTxConfirmation fires once per confirmed transaction.
	AfterEveryTxConfirmation func()
	// AfterAllTxConfirmed fires once after the last confirmation.
	AfterAllTxConfirmed func()
}

// Merge returns hooks that call h first and then each of others.
func (h Hooks) Merge(others ...Hooks) Hooks {
	all := append([]Hooks{h}, others...)
	return Hooks{
		AfterBatchSign: func(signed int) {
			for _, x := range all {
				x.afterBatchSign(signed)
			}
		},
		AfterEveryTxConfirmation: func() {
			for _, x := range all {
				x.afterEveryTxConfirmation()
			}
		},
		AfterAllTxConfirmed: func() {
			for _, x := range all {
				x.afterAllTxConfirmed()
			}
		},
	}
}

func (h Hooks) afterBatchSign(signed int) {
	if h.AfterBatchSign != nil {
		h.AfterBatchSign(signed)
	}
}

func (h Hooks) afterEveryTxConfirmation() {
	if h.AfterEveryTxConfirmation != nil {
		h.AfterEveryTxConfirmation()
	}
}

func (h Hooks) afterAllTxConfirmed() {
	if h.AfterAllTxConfirmed != nil {
		h.AfterAllTxConfirmed()
	}
}
