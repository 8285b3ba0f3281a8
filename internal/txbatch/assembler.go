// internal/txbatch/assembler.go
package txbatch

import (
	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
)

const (
	maxSequentialTxesInBatch = 20
	maxTxesInBatch           = 30
)

// FeeInstruction builds the compute-unit price instruction injected at the head of a batch.
func FeeInstruction(fee FeeEstimate) solana.Instruction {
	return computebudget.NewSetComputeUnitPriceInstruction(uint64(fee)).Build()
}

// Assemble drops empty groups and, when autoFee is set, prepends a fee
// instruction without extra signers to every remaining group. Group order
// and modes are preserved. Input groups are not modified.
func Assemble(groups []InstructionGroup, autoFee bool, fee FeeEstimate) []SubmittableBatch {
	batches := make([]SubmittableBatch, 0, len(groups))
	for _, g := range groups {
		if len(g.Instructions) == 0 {
			continue
		}

		instructions := make([]SignedInstruction, 0, len(g.Instructions)+1)
		if autoFee {
			instructions = append(instructions, SignedInstruction{Instruction: FeeInstruction(fee)})
		}
		instructions = append(instructions, g.Instructions...)

		batches = append(batches, SubmittableBatch{
			Instructions: instructions,
			Mode:         g.Mode,
			FeeInjected:  autoFee,
		})
	}
	return batches
}

// MaxTransactionsPerBatch is 20 when any non-empty group is Sequential,
// otherwise 30. Empty groups produce no transaction and do not count.
func MaxTransactionsPerBatch(groups []InstructionGroup) int {
	for _, g := range groups {
		if len(g.Instructions) > 0 && g.Mode == Sequential {
			return maxSequentialTxesInBatch
		}
	}
	return maxTxesInBatch
}

// PairSigners attaches signerBatches[batchIdx][i] to instruction i when present.
// A negative batchIdx attaches no signers.
func PairSigners(instructions []solana.Instruction, signerBatches [][]solana.PrivateKey, batchIdx int) []SignedInstruction {
	out := make([]SignedInstruction, len(instructions))
	for i, ix := range instructions {
		out[i] = SignedInstruction{Instruction: ix}
		if batchIdx < 0 || batchIdx >= len(signerBatches) {
			continue
		}
		if signers := signerBatches[batchIdx]; i < len(signers) && len(signers[i]) > 0 {
			out[i].Signers = []solana.PrivateKey{signers[i]}
		}
	}
	return out
}

// WritableAccounts returns the distinct writable accounts touched by the
// batches, in first-seen order. Cached on-chain state for these keys is stale
// once the round confirms.
func WritableAccounts(batches []SubmittableBatch) []solana.PublicKey {
	seen := make(map[solana.PublicKey]struct{})
	var out []solana.PublicKey
	for _, b := range batches {
		for _, si := range b.Instructions {
			for _, meta := range si.Instruction.Accounts() {
				if meta == nil || !meta.IsWritable {
					continue
				}
				if _, ok := seen[meta.PublicKey]; ok {
					continue
				}
				seen[meta.PublicKey] = struct{}{}
				out = append(out, meta.PublicKey)
			}
		}
	}
	return out
}
