package progress

import "github.com/gagliardetto/solana-go"

// Tea message types produced by the round hooks.

// StartMsg announces the number of transactions in the round.
type StartMsg struct {
	Total int
}

// SignedMsg is sent once the wallet has signed the batch.
type SignedMsg struct {
	Count int
}

// ConfirmedMsg carries the cumulative number of confirmed transactions, so a
// dropped message is corrected by the next one.
type ConfirmedMsg struct {
	Confirmed int
}

// DoneMsg ends the round.
type DoneMsg struct {
	Signature solana.Signature
	Err       error
}
