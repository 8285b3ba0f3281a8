// =============================================
// File: internal/task/task.go
// =============================================
package task

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Encoding of instruction data in the groups file.
type Encoding string

const (
	EncodingBase64 Encoding = "base64"
	EncodingHex    Encoding = "hex"
	EncodingBase58 Encoding = "base58"
)

// AccountEntry describes one account meta of an instruction.
type AccountEntry struct {
	PubKey   string `yaml:"pubkey"`
	Signer   bool   `yaml:"signer"`
	Writable bool   `yaml:"writable"`
}

// InstructionEntry is an opaque pre-encoded instruction.
type InstructionEntry struct {
	ProgramID string         `yaml:"program_id"`
	Accounts  []AccountEntry `yaml:"accounts"`
	Data      string         `yaml:"data"`
	Encoding  Encoding       `yaml:"encoding"`
	// Signers are wallet names whose keys must co-sign this instruction.
	Signers []string `yaml:"signers"`
}

// GroupEntry becomes one transaction.
type GroupEntry struct {
	Name         string             `yaml:"name"`
	Mode         string             `yaml:"mode"`
	Instructions []InstructionEntry `yaml:"instructions"`
}

// GroupsFile is the root of the YAML document.
type GroupsFile struct {
	Groups []GroupEntry `yaml:"groups"`
}

// decodeData decodes instruction data; base64 is the default encoding.
func decodeData(data string, enc Encoding) ([]byte, error) {
	data = strings.TrimSpace(data)
	switch Encoding(strings.ToLower(string(enc))) {
	case "", EncodingBase64:
		return base64.StdEncoding.DecodeString(data)
	case EncodingHex:
		return hex.DecodeString(strings.TrimPrefix(data, "0x"))
	case EncodingBase58:
		return base58.Decode(data)
	default:
		return nil, fmt.Errorf("unsupported data encoding %q", enc)
	}
}

// build converts the entry into a solana instruction.
func (s InstructionEntry) build() (solana.Instruction, error) {
	programID, err := solana.PublicKeyFromBase58(s.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("invalid program_id %q: %w", s.ProgramID, err)
	}

	metas := make(solana.AccountMetaSlice, 0, len(s.Accounts))
	for i, acc := range s.Accounts {
		pk, err := solana.PublicKeyFromBase58(acc.PubKey)
		if err != nil {
			return nil, fmt.Errorf("account %d: invalid pubkey %q: %w", i, acc.PubKey, err)
		}
		metas = append(metas, solana.NewAccountMeta(pk, acc.Writable, acc.Signer))
	}

	data, err := decodeData(s.Data, s.Encoding)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}

	return solana.NewInstruction(programID, metas, data), nil
}
