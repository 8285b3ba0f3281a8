// internal/txbatch/builder.go
package txbatch

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-txsender/internal/blockchain"
)

const (
	// MaxTransactionSize is the largest serialized transaction the network accepts.
	MaxTransactionSize = 1232
	// MaxAccountsPerTransaction bounds static plus lookup-table accounts (u8 index space).
	MaxAccountsPerTransaction = 256

	signatureSize = 64
)

// LookupTables maps an address lookup table account to its addresses.
type LookupTables map[solana.PublicKey]solana.PublicKeySlice

// Build turns each batch into one v0 transaction bound to the same payer and
// blockhash. Instructions keep their order. A batch that does not fit one
// transaction fails the whole call with *BuildError.
func Build(batches []SubmittableBatch, payer solana.PublicKey, bh blockchain.BlockhashContext, tables LookupTables) ([]*PreparedTransaction, error) {
	if payer.IsZero() {
		return nil, ErrWalletNotConnected
	}

	opts := []solana.TransactionOption{solana.TransactionPayer(payer)}
	if len(tables) > 0 {
		opts = append(opts, solana.TransactionAddressTables(tables))
	}

	txs := make([]*PreparedTransaction, 0, len(batches))
	for i, b := range batches {
		instructions := make([]solana.Instruction, len(b.Instructions))
		for j, si := range b.Instructions {
			instructions[j] = si.Instruction
		}

		tx, err := solana.NewTransaction(instructions, bh.Blockhash, opts...)
		if err != nil {
			return nil, &BuildError{Batch: i, Err: err}
		}
		tx.Message.SetVersion(solana.MessageVersionV0)

		size, err := EncodedSize(tx)
		if err != nil {
			return nil, &BuildError{Batch: i, Err: err}
		}
		if size > MaxTransactionSize {
			return nil, &BuildError{Batch: i, Size: size, Err: ErrTransactionTooLarge}
		}
		if n := accountCount(&tx.Message); n > MaxAccountsPerTransaction {
			return nil, &BuildError{Batch: i, Size: size, Err: fmt.Errorf("%w: %d", ErrTooManyAccounts, n)}
		}

		txs = append(txs, &PreparedTransaction{
			Tx:        tx,
			Signers:   batchSigners(b, payer),
			Mode:      b.Mode,
			Blockhash: bh,
			state:     StateBuilt,
		})
	}
	return txs, nil
}

// EncodedSize is the wire size of tx once every required signature is present.
func EncodedSize(tx *solana.Transaction) (int, error) {
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("marshal message: %w", err)
	}
	n := int(tx.Message.Header.NumRequiredSignatures)
	return compactU16Len(n) + n*signatureSize + len(msg), nil
}

// DecodeTransaction parses raw wire bytes back into a transaction.
func DecodeTransaction(raw []byte) (*solana.Transaction, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return tx, nil
}

// batchSigners collects the distinct extra signers of a batch. The payer is
// excluded: the wallet signs for it.
func batchSigners(b SubmittableBatch, payer solana.PublicKey) []solana.PrivateKey {
	seen := map[solana.PublicKey]struct{}{payer: {}}
	var out []solana.PrivateKey
	for _, si := range b.Instructions {
		for _, key := range si.Signers {
			pub := key.PublicKey()
			if _, ok := seen[pub]; ok {
				continue
			}
			seen[pub] = struct{}{}
			out = append(out, key)
		}
	}
	return out
}

func accountCount(msg *solana.Message) int {
	n := len(msg.AccountKeys)
	for _, l := range msg.AddressTableLookups {
		n += len(l.WritableIndexes) + len(l.ReadonlyIndexes)
	}
	return n
}

func compactU16Len(n int) int {
	switch {
	case n < 0x80:
		return 1
	case n < 0x4000:
		return 2
	default:
		return 3
	}
}
