package core

import (
	"math/rand"
	"sort"
	"sync"
	"time"
)

// SystemAddress is the sentinel miner used when no validator can be selected.
const SystemAddress = "system"

// ProofOfStake selects block proposers by stake-weighted random sampling and
// assembles blocks from submitted transactions. It holds no validator state of
// its own: callers pass a snapshot of the registry to every operation, so the
// registry has a single owner.
type ProofOfStake struct {
	baseReward float64

	mu           sync.Mutex
	lastSelected string
}

// NewProofOfStake creates an engine paying baseReward per block before
// per-transaction bonuses.
func NewProofOfStake(baseReward float64) *ProofOfStake {
	return &ProofOfStake{baseReward: baseReward}
}

// SelectValidator draws one validator from the snapshot with probability
// proportional to stake. It returns nil when the snapshot is empty or carries
// no stake. Each call reseeds from the clock so repeated draws are
// independent.
func (p *ProofOfStake) SelectValidator(validators []Validator) *Validator {
	if len(validators) == 0 {
		return nil
	}

	totalStake := 0.0
	for _, v := range validators {
		totalStake += v.Stake
	}
	if totalStake <= 0 {
		return nil
	}

	// Sort for a stable iteration order so equal seeds give equal draws.
	sorted := make([]Validator, len(validators))
	copy(sorted, validators)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Address < sorted[j].Address
	})

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	r := rng.Float64() * totalStake

	cumulative := 0.0
	for i := range sorted {
		cumulative += sorted[i].Stake
		if r < cumulative {
			return &sorted[i]
		}
	}

	// Floating-point rounding can exhaust the loop; fall back to the last
	// validator rather than failing a non-empty draw.
	return &sorted[len(sorted)-1]
}

// CreateBlock selects a proposer from the snapshot and assembles a block over
// the given transactions. When no proposer can be selected the block is
// attributed to the system sentinel. Height and previous hash are left for
// the chain layer to thread.
func (p *ProofOfStake) CreateBlock(validators []Validator, transactions []Transaction) *Block {
	now := time.Now().Unix()

	miner := SystemAddress
	if v := p.SelectValidator(validators); v != nil {
		miner = v.Address
	}

	block := &Block{
		Timestamp:    now,
		Nonce:        0,
		Transactions: transactions,
		Miner:        miner,
		Difficulty:   1,
		Height:       0,
	}
	block.Hash = block.CalculateHash()

	p.mu.Lock()
	p.lastSelected = miner
	p.mu.Unlock()

	return block
}

// ValidateBlock recomputes the content digest and checks that the miner is
// either the system sentinel or present in the snapshot.
func (p *ProofOfStake) ValidateBlock(validators []Validator, block *Block) bool {
	if block.CalculateHash() != block.Hash {
		return false
	}
	if block.Miner == SystemAddress {
		return true
	}
	for _, v := range validators {
		if v.Address == block.Miner {
			return true
		}
	}
	return false
}

// CalculateReward returns the base block reward plus a flat 0.01 bonus per
// included transaction.
func (p *ProofOfStake) CalculateReward(block *Block) float64 {
	return p.baseReward + float64(len(block.Transactions))*0.01
}

// LastSelected returns the most recently chosen proposer address, or an empty
// string before the first block.
func (p *ProofOfStake) LastSelected() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSelected
}
