package core

import (
	"math"
	"sync"
	"time"
)

const rewardHistoryCap = 1000

// RewardHistoryEntry records one reward-rate computation.
type RewardHistoryEntry struct {
	Timestamp  int64   `json:"timestamp"`
	NodeCount  int     `json:"nodeCount"`
	RewardRate float64 `json:"rewardRate"`
}

// DynamicRewardSystem maps validator-set size to a multiplicative reward-rate
// factor. At or below the optimal node count the rate is exactly 1.0; above
// it the rate decays exponentially, discouraging over-participation.
type DynamicRewardSystem struct {
	mu                sync.Mutex
	baseReward        float64
	nodeScalingFactor float64
	optimalNodeCount  int
	history           []RewardHistoryEntry
}

// NewDynamicRewardSystem creates a reward system. nodeScalingFactor is the
// per-excess-node decay base; optimalNodeCount is the set size above which
// decay starts.
func NewDynamicRewardSystem(baseReward, nodeScalingFactor float64, optimalNodeCount int) *DynamicRewardSystem {
	return &DynamicRewardSystem{
		baseReward:        baseReward,
		nodeScalingFactor: nodeScalingFactor,
		optimalNodeCount:  optimalNodeCount,
	}
}

// CalculateRewardRate returns the rate for the given validator count. Calls
// above the optimal count are logged to the bounded history; calls at or
// below it short-circuit without a history entry.
func (d *DynamicRewardSystem) CalculateRewardRate(nodeCount int) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if nodeCount <= d.optimalNodeCount {
		return 1.0
	}

	excess := nodeCount - d.optimalNodeCount
	rate := math.Pow(d.nodeScalingFactor, float64(excess))

	d.history = append(d.history, RewardHistoryEntry{
		Timestamp:  time.Now().Unix(),
		NodeCount:  nodeCount,
		RewardRate: rate,
	})
	if len(d.history) > rewardHistoryCap {
		d.history = d.history[1:]
	}

	return rate
}

// CalculateReward scales a base amount by the rate for the given count.
func (d *DynamicRewardSystem) CalculateReward(baseAmount float64, nodeCount int) float64 {
	return baseAmount * d.CalculateRewardRate(nodeCount)
}

// History returns a copy of the bounded reward history, oldest first.
func (d *DynamicRewardSystem) History() []RewardHistoryEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]RewardHistoryEntry, len(d.history))
	copy(out, d.history)
	return out
}

// SetBaseReward replaces the base reward for subsequent calls.
func (d *DynamicRewardSystem) SetBaseReward(baseReward float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.baseReward = baseReward
}

// SetNodeScalingFactor replaces the decay base, silently clamped to [0, 1].
func (d *DynamicRewardSystem) SetNodeScalingFactor(factor float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodeScalingFactor = math.Min(1.0, math.Max(0.0, factor))
}

// SetOptimalNodeCount replaces the optimal set size for subsequent calls.
// History is never recomputed.
func (d *DynamicRewardSystem) SetOptimalNodeCount(count int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.optimalNodeCount = count
}

// BaseReward returns the configured base reward.
func (d *DynamicRewardSystem) BaseReward() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.baseReward
}

// NodeScalingFactor returns the configured decay base.
func (d *DynamicRewardSystem) NodeScalingFactor() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nodeScalingFactor
}

// OptimalNodeCount returns the configured optimal set size.
func (d *DynamicRewardSystem) OptimalNodeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.optimalNodeCount
}
