// internal/txbatch/validator.go
package txbatch

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// SignatureFromRaw derives the transaction id (first signature) from signed
// wire bytes without a network round trip.
func SignatureFromRaw(raw []byte) (solana.Signature, error) {
	dec := bin.NewBinDecoder(raw)
	n, err := dec.ReadCompactU16()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("read signature count: %w", err)
	}
	if n == 0 {
		return solana.Signature{}, ErrMissingSignature
	}
	b, err := dec.ReadNBytes(signatureSize)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("read signature: %w", err)
	}
	return solana.SignatureFromBytes(b), nil
}

// ValidateSigned checks that a wallet-signed transaction is ready to send.
func ValidateSigned(tx *solana.Transaction) error {
	if tx == nil {
		return ErrInvalidInstruction
	}
	if tx.Message.RecentBlockhash == (solana.Hash{}) {
		return ErrInvalidBlockhash
	}
	if len(tx.Message.Instructions) == 0 {
		return ErrInvalidInstruction
	}
	return validateSignatures(tx)
}

func validateSignatures(tx *solana.Transaction) error {
	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) != required || required > len(tx.Message.AccountKeys) {
		return fmt.Errorf("%w: have %d, need %d", ErrMissingSignature, len(tx.Signatures), required)
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	for i, sig := range tx.Signatures {
		signer := tx.Message.AccountKeys[i]
		if sig == (solana.Signature{}) {
			return fmt.Errorf("%w: %s", ErrMissingSignature, signer)
		}
		if !sig.Verify(signer, msg) {
			return fmt.Errorf("%w: %s", ErrInvalidSignature, signer)
		}
	}
	return nil
}
