package txbatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solana-txsender/internal/blockchain"
	"github.com/rovshanmuradov/solana-txsender/internal/wallet"
)

type hookRecorder struct {
	conn      *fakeConn
	signed    []int
	confirmed int
	all       int
}

func (h *hookRecorder) hooks() Hooks {
	return Hooks{
		AfterBatchSign: func(n int) { h.signed = append(h.signed, n) },
		AfterEveryTxConfirmation: func() {
			h.confirmed++
			h.conn.record(fmt.Sprintf("confirmed:%d", h.confirmed))
		},
		AfterAllTxConfirmed: func() { h.all++ },
	}
}

func newTestDriver(t *testing.T, conn blockchain.Client, signer Signer, timeout time.Duration) *Driver {
	return NewDriver(conn, signer, zaptest.NewLogger(t), DriverConfig{ConfirmTimeout: timeout}, NewMetrics(nil))
}

func TestDriver_ConfirmsOnFirstAttempt(t *testing.T) {
	conn := newFakeConn()
	w := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
	txs := buildRound(t, w.PublicKey(), group(Sequential, "a"))
	rec := &hookRecorder{conn: conn}

	sig, err := newTestDriver(t, conn, w, time.Second).Run(context.Background(), txs, rec.hooks())
	require.NoError(t, err)

	sends, _ := conn.snapshot()
	assert.Len(t, sends, 1)
	assert.Equal(t, txs[0].Signature, sig)
	assert.Equal(t, []int{1}, rec.signed)
	assert.Equal(t, 1, rec.confirmed)
	assert.Equal(t, 1, rec.all)
	assert.Equal(t, StateConfirmed, txs[0].State())
}

func TestDriver_ResendsSameBytesAfterTimeout(t *testing.T) {
	conn := newFakeConn()
	conn.confirmAfter = 2
	w := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
	txs := buildRound(t, w.PublicKey(), group(Sequential, "a"))
	rec := &hookRecorder{conn: conn}

	sig, err := newTestDriver(t, conn, w, 20*time.Millisecond).Run(context.Background(), txs, rec.hooks())
	require.NoError(t, err)

	sends, _ := conn.snapshot()
	require.Len(t, sends, 2)
	assert.Equal(t, sends[0], sends[1])
	assert.Equal(t, txs[0].Signature, sig)
	assert.Equal(t, 1, rec.confirmed)

	resentSig, err := SignatureFromRaw(sends[1])
	require.NoError(t, err)
	assert.Equal(t, sig, resentSig)
}

func TestDriver_SigningRejected(t *testing.T) {
	conn := newFakeConn()
	payer := solana.NewWallet().PublicKey()
	signer := &mockSigner{pub: payer}
	signer.On("SignAllTransactions", mock.Anything, mock.Anything).Return(nil, errors.New("user rejected the request"))

	txs := buildRound(t, payer, group(Sequential, "a"), group(Sequential, "b"))
	rec := &hookRecorder{conn: conn}

	_, err := newTestDriver(t, conn, signer, time.Second).Run(context.Background(), txs, rec.hooks())

	var signErr *SigningError
	require.True(t, errors.As(err, &signErr))
	assert.Equal(t, 2, signErr.Count)
	sends, _ := conn.snapshot()
	assert.Empty(t, sends)
	assert.Empty(t, rec.signed)
	for _, ptx := range txs {
		assert.Equal(t, StateFailed, ptx.State())
	}
	signer.AssertExpectations(t)
}

func TestDriver_SignerReturnsUnsigned(t *testing.T) {
	conn := newFakeConn()
	payer := solana.NewWallet().PublicKey()
	txs := buildRound(t, payer, group(Sequential, "a"))

	signer := &mockSigner{pub: payer}
	signer.On("SignAllTransactions", mock.Anything, mock.Anything).Return([]*solana.Transaction{txs[0].Tx}, nil)

	_, err := newTestDriver(t, conn, signer, time.Second).Run(context.Background(), txs, Hooks{})

	var signErr *SigningError
	require.True(t, errors.As(err, &signErr))
	assert.ErrorIs(t, err, ErrMissingSignature)
}

func TestDriver_SendErrorAbortsRound(t *testing.T) {
	conn := newFakeConn()
	boom := errors.New("node rejected transaction")
	conn.sendErr = func(n int) error {
		if n == 2 {
			return boom
		}
		return nil
	}
	w := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
	txs := buildRound(t, w.PublicKey(), group(Sequential, "a"), group(Sequential, "b"), group(Sequential, "c"))
	rec := &hookRecorder{conn: conn}

	_, err := newTestDriver(t, conn, w, time.Second).Run(context.Background(), txs, rec.hooks())

	var subErr *SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, 1, subErr.Index)
	assert.Equal(t, StageSend, subErr.Stage)
	assert.Equal(t, txs[1].Signature, subErr.Signature)
	assert.ErrorIs(t, err, boom)

	sends, events := conn.snapshot()
	assert.Len(t, sends, 2)
	assert.Equal(t, []string{"send:" + txs[0].Signature.String(), "confirmed:1", "send-failed"}, events)
	assert.Equal(t, 1, rec.confirmed)
	assert.Zero(t, rec.all)

	assert.Equal(t, StateConfirmed, txs[0].State())
	assert.Equal(t, StateFailed, txs[1].State())
	assert.Equal(t, StateSigned, txs[2].State())
}

func TestDriver_PreservesOrder(t *testing.T) {
	conn := newFakeConn()
	w := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
	txs := buildRound(t, w.PublicKey(), group(Sequential, "a"), group(Parallel, "b"), group(StopOnFailure, "c"))
	rec := &hookRecorder{conn: conn}

	sig, err := newTestDriver(t, conn, w, time.Second).Run(context.Background(), txs, rec.hooks())
	require.NoError(t, err)
	assert.Equal(t, txs[2].Signature, sig)

	_, events := conn.snapshot()
	assert.Equal(t, []string{
		"send:" + txs[0].Signature.String(), "confirmed:1",
		"send:" + txs[1].Signature.String(), "confirmed:2",
		"send:" + txs[2].Signature.String(), "confirmed:3",
	}, events)
	assert.Equal(t, 1, rec.all)
}

func TestDriver_ConfirmationErrorIsTransactionFailed(t *testing.T) {
	conn := newFakeConn()
	conn.confirmErr = func(sig solana.Signature) error {
		return &blockchain.TransactionError{Signature: sig, Err: "InstructionError"}
	}
	w := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
	txs := buildRound(t, w.PublicKey(), group(Sequential, "a"), group(Sequential, "b"))

	_, err := newTestDriver(t, conn, w, time.Second).Run(context.Background(), txs, Hooks{})

	var subErr *SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, StageConfirm, subErr.Stage)
	assert.Equal(t, 0, subErr.Index)
	assert.Contains(t, err.Error(), "Transaction Failed")

	var txErr *blockchain.TransactionError
	assert.True(t, errors.As(err, &txErr))

	sends, _ := conn.snapshot()
	assert.Len(t, sends, 1)
}

func TestDriver_BlockhashExpiryEndsResendLoop(t *testing.T) {
	conn := newFakeConn()
	conn.confirmAfter = 1 << 30
	conn.confirmErr = func(sig solana.Signature) error {
		return fmt.Errorf("%w: block height 1001 > 1000", blockchain.ErrBlockhashExpired)
	}
	w := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
	txs := buildRound(t, w.PublicKey(), group(Sequential, "a"))

	_, err := newTestDriver(t, conn, w, time.Second).Run(context.Background(), txs, Hooks{})

	assert.ErrorIs(t, err, blockchain.ErrBlockhashExpired)
	assert.Contains(t, err.Error(), "Transaction Failed")
}

func TestDriver_EmptyRound(t *testing.T) {
	conn := newFakeConn()
	signer := &mockSigner{pub: solana.NewWallet().PublicKey()}
	rec := &hookRecorder{conn: conn}

	sig, err := newTestDriver(t, conn, signer, time.Second).Run(context.Background(), nil, rec.hooks())
	require.NoError(t, err)
	assert.Equal(t, solana.Signature{}, sig)
	assert.Empty(t, rec.signed)
	assert.Zero(t, rec.all)
	signer.AssertNotCalled(t, "SignAllTransactions", mock.Anything, mock.Anything)
}

func TestDriver_ExtraSignersArePartiallySigned(t *testing.T) {
	conn := newFakeConn()
	w := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
	cosigner := solana.NewWallet().PrivateKey

	ix := solana.NewInstruction(testProgram, solana.AccountMetaSlice{
		solana.Meta(cosigner.PublicKey()).SIGNER(),
	}, []byte("co"))
	txs := buildRound(t, w.PublicKey(), InstructionGroup{Instructions: []SignedInstruction{
		{Instruction: ix, Signers: []solana.PrivateKey{cosigner}},
	}})

	_, err := newTestDriver(t, conn, w, time.Second).Run(context.Background(), txs, Hooks{})
	require.NoError(t, err)

	sends, _ := conn.snapshot()
	require.Len(t, sends, 1)
	decoded, err := DecodeTransaction(sends[0])
	require.NoError(t, err)
	require.Len(t, decoded.Signatures, 2)
	require.NoError(t, ValidateSigned(decoded))
}

func TestDriver_ContextCancelStopsWaiting(t *testing.T) {
	conn := newFakeConn()
	conn.confirmAfter = 1 << 30
	w := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
	txs := buildRound(t, w.PublicKey(), group(Sequential, "a"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestDriver(t, conn, w, 10*time.Millisecond).Run(ctx, txs, Hooks{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	sends, _ := conn.snapshot()
	assert.GreaterOrEqual(t, len(sends), 2)
}
