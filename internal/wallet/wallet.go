// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"
)

// ErrSignerNotRequired is returned when a key is asked to sign a transaction
// that does not list it among its required signers.
var ErrSignerNotRequired = errors.New("signer is not required by transaction")

// Wallet представляет кошелёк Solana.
type Wallet struct {
	PrivateKey solana.PrivateKey
	pubKey     solana.PublicKey
}

// NewWallet создаёт новый кошелёк из base58-encoded приватного ключа.
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	privateKey := solana.PrivateKey(privateKeyBytes)
	return &Wallet{
		PrivateKey: privateKey,
		pubKey:     privateKey.PublicKey(),
	}, nil
}

// FromPrivateKey wraps an in-memory keypair.
func FromPrivateKey(key solana.PrivateKey) *Wallet {
	return &Wallet{PrivateKey: key, pubKey: key.PublicKey()}
}

type walletEntry struct {
	Name       string `yaml:"name"`
	PrivateKey string `yaml:"private_key"`
}

type walletFile struct {
	Wallets []walletEntry `yaml:"wallets"`
}

// LoadWallets загружает кошельки из YAML-файла вида:
//
//	wallets:
//	  - name: main
//	    private_key: <base58>
func LoadWallets(path string) (map[string]*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallets file: %w", err)
	}

	var file walletFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse wallets file: %w", err)
	}
	if len(file.Wallets) == 0 {
		return nil, fmt.Errorf("wallets file %s has no wallets", path)
	}

	wallets := make(map[string]*Wallet, len(file.Wallets))
	for _, entry := range file.Wallets {
		if entry.Name == "" {
			return nil, fmt.Errorf("wallet without name in %s", path)
		}
		w, err := NewWallet(entry.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("wallet %q: %w", entry.Name, err)
		}
		wallets[entry.Name] = w
	}
	return wallets, nil
}

// PublicKey возвращает публичный ключ кошелька.
func (w *Wallet) PublicKey() solana.PublicKey {
	return w.pubKey
}

// SignTransaction подписывает транзакцию приватным ключом кошелька,
// сохраняя уже имеющиеся подписи других подписантов.
func (w *Wallet) SignTransaction(tx *solana.Transaction) error {
	return PartialSign(tx, w.PrivateKey)
}

// SignAllTransactions signs every transaction in place and returns them.
func (w *Wallet) SignAllTransactions(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, tx := range txs {
		if err := w.SignTransaction(tx); err != nil {
			return nil, fmt.Errorf("sign transaction %d: %w", i, err)
		}
	}
	return txs, nil
}

// String возвращает строковое представление кошелька (его публичный ключ).
func (w *Wallet) String() string {
	return w.pubKey.String()
}

// PartialSign fills the signature slots of the given keys and leaves the
// other slots untouched.
func PartialSign(tx *solana.Transaction, keys ...solana.PrivateKey) error {
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	required := int(tx.Message.Header.NumRequiredSignatures)
	if required > len(tx.Message.AccountKeys) {
		return fmt.Errorf("message requires %d signatures but has %d account keys", required, len(tx.Message.AccountKeys))
	}
	if len(tx.Signatures) != required {
		signatures := make([]solana.Signature, required)
		copy(signatures, tx.Signatures)
		tx.Signatures = signatures
	}

	for _, key := range keys {
		pub := key.PublicKey()
		idx := -1
		for i := 0; i < required; i++ {
			if tx.Message.AccountKeys[i].Equals(pub) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrSignerNotRequired, pub)
		}

		sig, err := key.Sign(msg)
		if err != nil {
			return fmt.Errorf("sign with %s: %w", pub, err)
		}
		tx.Signatures[idx] = sig
	}
	return nil
}
