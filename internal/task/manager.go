package task

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rovshanmuradov/solana-txsender/internal/txbatch"
	"github.com/rovshanmuradov/solana-txsender/internal/wallet"
)

// Manager loads instruction groups from YAML files.
type Manager struct {
	logger *zap.Logger
}

// NewManager constructs a Manager with the given logger.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger.Named("task-manager")}
}

// LoadGroups reads a groups file. Extra signers are resolved by name
// against wallets. Unlike trading tasks, an invalid group is never skipped:
// dropping one would change what the round does.
func (m *Manager) LoadGroups(path string, wallets map[string]*wallet.Wallet) ([]txbatch.InstructionGroup, error) {
	if filepath.IsAbs(path) {
		m.logger.Debug("Using absolute path for groups file", zap.String("path", path))
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return m.ParseGroups(data, wallets)
}

// ParseGroups decodes a groups document.
func (m *Manager) ParseGroups(data []byte, wallets map[string]*wallet.Wallet) ([]txbatch.InstructionGroup, error) {
	var file GroupsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(file.Groups) == 0 {
		return nil, fmt.Errorf("no groups found in configuration")
	}

	groups := make([]txbatch.InstructionGroup, 0, len(file.Groups))
	total := 0
	for gi, entry := range file.Groups {
		name := entry.Name
		if name == "" {
			name = fmt.Sprintf("#%d", gi)
		}

		mode, err := txbatch.ParseSequenceMode(entry.Mode)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", name, err)
		}

		group := txbatch.InstructionGroup{Mode: mode}
		for ii, ixEntry := range entry.Instructions {
			ix, err := ixEntry.build()
			if err != nil {
				return nil, fmt.Errorf("group %s instruction %d: %w", name, ii, err)
			}

			signers, err := resolveSigners(ixEntry.Signers, wallets)
			if err != nil {
				return nil, fmt.Errorf("group %s instruction %d: %w", name, ii, err)
			}

			group.Instructions = append(group.Instructions, txbatch.SignedInstruction{
				Instruction: ix,
				Signers:     signers,
			})
		}
		if len(group.Instructions) == 0 {
			m.logger.Warn("Group has no instructions", zap.String("group", name))
		}
		total += len(group.Instructions)
		groups = append(groups, group)
	}

	m.logger.Info("Loaded groups",
		zap.Int("count", len(groups)),
		zap.Int("instructions", total))
	return groups, nil
}

func resolveSigners(names []string, wallets map[string]*wallet.Wallet) ([]solana.PrivateKey, error) {
	if len(names) == 0 {
		return nil, nil
	}
	keys := make([]solana.PrivateKey, 0, len(names))
	for _, name := range names {
		w, ok := wallets[name]
		if !ok {
			return nil, fmt.Errorf("unknown signer wallet %q", name)
		}
		keys = append(keys, w.PrivateKey)
	}
	return keys, nil
}
