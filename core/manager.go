package core

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ConsensusType names the configured algorithm family. Only proof-of-stake
// has a concrete implementation; the delegated and authority variants run the
// same engine until they grow semantics of their own.
type ConsensusType string

const (
	ProofOfStakeType          ConsensusType = "ProofOfStake"
	DelegatedProofOfStakeType ConsensusType = "DelegatedProofOfStake"
	ProofOfAuthorityType      ConsensusType = "ProofOfAuthority"
)

// ConsensusConfig is an immutable configuration snapshot taken at
// construction.
type ConsensusConfig struct {
	ConsensusType            ConsensusType `json:"consensusType"`
	BlockTime                uint64        `json:"blockTime"` // seconds
	MinStake                 float64       `json:"minStake"`
	MaxValidators            int           `json:"maxValidators"`
	BaseReward               float64       `json:"baseReward"`
	ResourceEfficiencyFactor float64       `json:"resourceEfficiencyFactor"`
	NodeScalingFactor        float64       `json:"nodeScalingFactor"`
}

// DefaultConsensusConfig returns the standard parameter set.
func DefaultConsensusConfig() ConsensusConfig {
	return ConsensusConfig{
		ConsensusType:            ProofOfStakeType,
		BlockTime:                5,
		MinStake:                 100.0,
		MaxValidators:            100,
		BaseReward:               5.0,
		ResourceEfficiencyFactor: 0.8,
		NodeScalingFactor:        0.95,
	}
}

// ConsensusStatus is a serializable snapshot recomputed on every mutating
// operation.
type ConsensusStatus struct {
	ValidatorCount     int     `json:"validatorCount"`
	TotalStake         float64 `json:"totalStake"`
	CurrentProposer    string  `json:"currentProposer,omitempty"`
	NextBlockTime      string  `json:"nextBlockTime,omitempty"`
	LastBlockTimeMs    uint64  `json:"lastBlockTimeMs"`
	ParticipationRate  float64 `json:"participationRate"`
	ResourceEfficiency float64 `json:"resourceEfficiency"`
	CurrentRewardRate  float64 `json:"currentRewardRate"`
}

// ConsensusManager owns the canonical validator registry and orchestrates
// selection, block assembly and reward distribution. The selection engine
// receives read-only snapshots of the registry, never a second copy of it.
type ConsensusManager struct {
	config       ConsensusConfig
	engine       *ProofOfStake
	rewardSystem *DynamicRewardSystem
	monitor      *ResourceMonitor

	mu         sync.Mutex // guards validators
	validators map[string]Validator

	statusMu    sync.Mutex // guards status and lastBlockAt; acquired after mu
	status      ConsensusStatus
	lastBlockAt time.Time
}

// NewConsensusManager creates a manager from the config. The reward system's
// optimal node count is the configured validator capacity.
func NewConsensusManager(config ConsensusConfig) *ConsensusManager {
	return &ConsensusManager{
		config:       config,
		engine:       NewProofOfStake(config.BaseReward),
		rewardSystem: NewDynamicRewardSystem(config.BaseReward, config.NodeScalingFactor, config.MaxValidators),
		monitor:      NewResourceMonitor(),
		validators:   make(map[string]Validator),
		status: ConsensusStatus{
			CurrentRewardRate: config.BaseReward,
		},
		lastBlockAt: time.Now(),
	}
}

// Config returns the immutable configuration snapshot.
func (cm *ConsensusManager) Config() ConsensusConfig {
	return cm.config
}

// Monitor exposes the resource monitor for observability endpoints.
func (cm *ConsensusManager) Monitor() *ResourceMonitor {
	return cm.monitor
}

// RewardSystem exposes the dynamic reward system.
func (cm *ConsensusManager) RewardSystem() *DynamicRewardSystem {
	return cm.rewardSystem
}

// RegisterValidator upserts a validator. Registration fails when the stake is
// below the configured minimum, or when the registry is full and the address
// is new; re-registering a present address always succeeds.
func (cm *ConsensusManager) RegisterValidator(v Validator) error {
	if v.Stake < cm.config.MinStake {
		return fmt.Errorf("%w: stake %.2f, minimum %.2f", ErrStakeTooLow, v.Stake, cm.config.MinStake)
	}

	cm.mu.Lock()
	if _, present := cm.validators[v.Address]; !present && len(cm.validators) >= cm.config.MaxValidators {
		cm.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrCapacityReached, cm.config.MaxValidators)
	}
	cm.validators[v.Address] = v
	count, total := cm.registryTotalsLocked()
	cm.mu.Unlock()

	cm.publishRegistryTotals(count, total)
	slog.Info("validator registered", "address", v.Address, "stake", v.Stake, "validators", count)
	return nil
}

// UnregisterValidator removes a validator by address.
func (cm *ConsensusManager) UnregisterValidator(address string) error {
	cm.mu.Lock()
	if _, present := cm.validators[address]; !present {
		cm.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrValidatorNotFound, address)
	}
	delete(cm.validators, address)
	count, total := cm.registryTotalsLocked()
	cm.mu.Unlock()

	cm.publishRegistryTotals(count, total)
	slog.Info("validator unregistered", "address", address, "validators", count)
	return nil
}

// registryTotalsLocked recomputes validator count and total stake. Caller
// holds mu.
func (cm *ConsensusManager) registryTotalsLocked() (int, float64) {
	total := 0.0
	for _, v := range cm.validators {
		total += v.Stake
	}
	return len(cm.validators), total
}

// publishRegistryTotals writes registry-derived fields into the status
// snapshot in one critical section.
func (cm *ConsensusManager) publishRegistryTotals(count int, totalStake float64) {
	rate := cm.rewardSystem.CalculateRewardRate(count)

	cm.statusMu.Lock()
	cm.status.ValidatorCount = count
	cm.status.TotalStake = totalStake
	cm.status.CurrentRewardRate = rate
	cm.statusMu.Unlock()
}

// snapshot returns a copy of the registry for the selection engine.
func (cm *ConsensusManager) snapshot() []Validator {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	out := make([]Validator, 0, len(cm.validators))
	for _, v := range cm.validators {
		out = append(out, v)
	}
	return out
}

// CreateBlock selects a proposer, assembles a block over the transactions and
// refreshes the timing and efficiency fields of the status snapshot. The
// resource monitor is read, not resampled; call UpdateResourceEfficiency for
// a fresh sample.
func (cm *ConsensusManager) CreateBlock(transactions []Transaction) *Block {
	validators := cm.snapshot()
	block := cm.engine.CreateBlock(validators, transactions)

	now := time.Now()
	next := now.Add(time.Duration(cm.config.BlockTime) * time.Second)

	cm.statusMu.Lock()
	if block.Miner != SystemAddress {
		cm.status.CurrentProposer = block.Miner
	}
	cm.status.LastBlockTimeMs = uint64(now.Sub(cm.lastBlockAt).Milliseconds())
	cm.lastBlockAt = now
	cm.status.NextBlockTime = next.Format(time.RFC3339)
	cm.status.ResourceEfficiency = cm.monitor.Efficiency()
	cm.statusMu.Unlock()

	slog.Debug("block created", "hash", block.Hash, "miner", block.Miner, "transactions", len(block.Transactions))
	return block
}

// ValidateBlock checks the block digest and miner membership against the
// current registry.
func (cm *ConsensusManager) ValidateBlock(block *Block) bool {
	return cm.engine.ValidateBlock(cm.snapshot(), block)
}

// DistributeRewards computes the per-address payout for a block. The base
// reward is scaled by the dynamic reward rate, the configured efficiency
// factor and the last measured resource efficiency. The proposer takes a
// flat 80% cut; the remaining 20% is split among the other validators.
//
// The remainder split divides by the total stake of the whole registry,
// proposer included, so a slice of the 20% pool proportional to the
// proposer's stake is never paid out. This mirrors the historical payout
// behavior and is kept intentionally.
//
// An unknown miner (including the system sentinel) yields an empty map.
func (cm *ConsensusManager) DistributeRewards(block *Block) map[string]float64 {
	base := cm.engine.CalculateReward(block)

	cm.mu.Lock()
	validators := make(map[string]Validator, len(cm.validators))
	for addr, v := range cm.validators {
		validators[addr] = v
	}
	cm.mu.Unlock()

	rate := cm.rewardSystem.CalculateRewardRate(len(validators))
	efficiency := cm.monitor.Efficiency()
	adjusted := base * rate * cm.config.ResourceEfficiencyFactor * efficiency

	rewards := make(map[string]float64)
	if proposer, ok := validators[block.Miner]; ok {
		rewards[proposer.Address] = adjusted * 0.8

		remaining := adjusted * 0.2
		totalStake := 0.0
		for _, v := range validators {
			totalStake += v.Stake
		}
		for addr, v := range validators {
			if addr == block.Miner {
				continue
			}
			rewards[addr] = remaining * (v.Stake / totalStake)
		}
	}

	cm.statusMu.Lock()
	cm.status.CurrentRewardRate = rate
	cm.statusMu.Unlock()

	return rewards
}

// Status returns a copy of the status snapshot.
func (cm *ConsensusManager) Status() ConsensusStatus {
	cm.statusMu.Lock()
	defer cm.statusMu.Unlock()
	return cm.status
}

// Validators returns a copy of the registry.
func (cm *ConsensusManager) Validators() []Validator {
	return cm.snapshot()
}

// UpdateResourceEfficiency takes a fresh resource sample and publishes the
// new score to the status snapshot.
func (cm *ConsensusManager) UpdateResourceEfficiency() {
	cm.monitor.Update()
	efficiency := cm.monitor.Efficiency()

	cm.statusMu.Lock()
	cm.status.ResourceEfficiency = efficiency
	cm.statusMu.Unlock()
}
