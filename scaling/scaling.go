// Package scaling tracks network load and adjusts the shard count between
// configured bounds. Cross-shard messaging is out of scope; shards here are
// capacity bookkeeping that the reward core's node-count feedback builds on.
package scaling

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrShardCountOutOfRange is returned when a requested shard count falls
// outside the configured bounds.
var ErrShardCountOutOfRange = errors.New("shard count out of range")

// Mode selects how scaling decisions are made.
type Mode string

const (
	Automatic Mode = "Automatic"
	Manual    Mode = "Manual"
	Hybrid    Mode = "Hybrid"
)

// Config bounds and paces the scaling loop.
type Config struct {
	Mode               Mode    `json:"mode"`
	MinShards          int     `json:"minShards"`
	MaxShards          int     `json:"maxShards"`
	OptimalTxPerNode   int     `json:"optimalTxPerNode"`
	ScaleUpThreshold   float64 `json:"scaleUpThreshold"`
	ScaleDownThreshold float64 `json:"scaleDownThreshold"`
	ScalingInterval    uint64  `json:"scalingInterval"` // seconds
}

// DefaultConfig returns the standard scaling parameters.
func DefaultConfig() Config {
	return Config{
		Mode:               Automatic,
		MinShards:          1,
		MaxShards:          16,
		OptimalTxPerNode:   1000,
		ScaleUpThreshold:   0.8,
		ScaleDownThreshold: 0.3,
		ScalingInterval:    300,
	}
}

// Shard is one capacity unit.
type Shard struct {
	ID                 int    `json:"id"`
	Name               string `json:"name"`
	NodeCount          int    `json:"nodeCount"`
	ActiveTransactions int    `json:"activeTransactions"`
	TotalTransactions  int    `json:"totalTransactions"`
	Active             bool   `json:"active"`
}

// ShardManager keeps the current shard set.
type ShardManager struct {
	mu     sync.Mutex
	shards []Shard
}

// NewShardManager creates a manager with the given number of initial shards.
func NewShardManager(initial int) *ShardManager {
	m := &ShardManager{}
	m.grow(initial)
	return m
}

func (m *ShardManager) grow(target int) {
	for i := len(m.shards); i < target; i++ {
		m.shards = append(m.shards, Shard{
			ID:     i,
			Name:   fmt.Sprintf("shard-%d", i),
			Active: true,
		})
	}
}

// SetShardCount grows or truncates the shard set to count.
func (m *ShardManager) SetShardCount(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if count > len(m.shards) {
		m.grow(count)
		return
	}
	m.shards = m.shards[:count]
}

// Shards returns a copy of the shard set.
func (m *ShardManager) Shards() []Shard {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Shard, len(m.shards))
	copy(out, m.shards)
	return out
}

// ShardCount returns the current shard count.
func (m *ShardManager) ShardCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.shards)
}

// Status is a serializable snapshot of the scaling state.
type Status struct {
	CurrentShards  int     `json:"currentShards"`
	CurrentNodes   int     `json:"currentNodes"`
	CPUUsage       float64 `json:"cpuUsage"`
	MemoryUsage    float64 `json:"memoryUsage"`
	TPS            float64 `json:"tps"`
	Mode           Mode    `json:"mode"`
	LastScaling    string  `json:"lastScaling"`
	NextScaling    string  `json:"nextScaling"`
	Recommendation string  `json:"recommendation"`
}

// Manager drives shard-count decisions from reported load metrics.
type Manager struct {
	config Config
	shards *ShardManager

	mu     sync.Mutex
	tps    float64
	nodes  int
	status Status
}

// NewManager creates a scaling manager starting at the minimum shard count.
func NewManager(config Config) *Manager {
	now := time.Now()
	next := now.Add(time.Duration(config.ScalingInterval) * time.Second)
	return &Manager{
		config: config,
		shards: NewShardManager(config.MinShards),
		status: Status{
			CurrentShards:  config.MinShards,
			Mode:           config.Mode,
			LastScaling:    now.Format(time.RFC3339),
			NextScaling:    next.Format(time.RFC3339),
			Recommendation: "No action needed",
		},
	}
}

// SetShardCount forces a shard count inside the configured bounds.
func (m *Manager) SetShardCount(count int) error {
	if count < m.config.MinShards || count > m.config.MaxShards {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrShardCountOutOfRange,
			count, m.config.MinShards, m.config.MaxShards)
	}
	m.shards.SetShardCount(count)

	m.mu.Lock()
	m.status.CurrentShards = count
	m.mu.Unlock()
	return nil
}

// UpdateMetrics records the latest throughput and node count and derives the
// load figures the next Scale call decides on.
func (m *Manager) UpdateMetrics(tps float64, nodeCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tps = tps
	m.nodes = nodeCount
	m.status.TPS = tps
	m.status.CurrentNodes = nodeCount
	m.status.CPUUsage = 0.3 + min(tps/10000.0, 0.6)
	m.status.MemoryUsage = 0.2 + min(float64(nodeCount)/100.0, 0.7)
}

// Scale applies one scaling decision based on the last reported load. Manual
// mode never scales.
func (m *Manager) Scale() error {
	if m.config.Mode == Manual {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.shards.ShardCount()
	target := current
	recommendation := "No action needed"

	switch {
	case m.status.CPUUsage > m.config.ScaleUpThreshold && current < m.config.MaxShards:
		target = current + 1
		recommendation = fmt.Sprintf("Scale up from %d to %d shards due to high CPU usage (%.2f)",
			current, target, m.status.CPUUsage)
	case m.status.CPUUsage < m.config.ScaleDownThreshold && current > m.config.MinShards:
		target = current - 1
		recommendation = fmt.Sprintf("Scale down from %d to %d shards due to low CPU usage (%.2f)",
			current, target, m.status.CPUUsage)
	}

	if target != current {
		m.shards.SetShardCount(target)
		m.status.CurrentShards = target
		slog.Info("shard count changed", "from", current, "to", target, "cpu", m.status.CPUUsage)
	}

	now := time.Now()
	m.status.LastScaling = now.Format(time.RFC3339)
	m.status.NextScaling = now.Add(time.Duration(m.config.ScalingInterval) * time.Second).Format(time.RFC3339)
	m.status.Recommendation = recommendation
	return nil
}

// Status returns a copy of the scaling snapshot.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Shards returns a copy of the current shard set.
func (m *Manager) Shards() []Shard {
	return m.shards.Shards()
}
