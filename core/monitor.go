package core

import (
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

const resourceHistoryCap = 100

// Efficiency weights per resource dimension. CPU dominates because it is the
// main cost driver for a consensus node.
const (
	cpuWeight     = 0.4
	memoryWeight  = 0.3
	diskWeight    = 0.2
	networkWeight = 0.1
)

// ResourceSample is one utilization reading in [0, 1].
type ResourceSample struct {
	Timestamp int64   `json:"timestamp"`
	Usage     float64 `json:"usage"`
}

// ResourceUsage is the latest reading for every dimension plus the current
// efficiency score.
type ResourceUsage struct {
	CPU        float64 `json:"cpu"`
	Memory     float64 `json:"memory"`
	Disk       float64 `json:"disk"`
	Network    float64 `json:"network"`
	Efficiency float64 `json:"efficiency"`
	Timestamp  int64   `json:"timestamp"`
}

// Sampler supplies one utilization reading per dimension, each in [0, 1].
// Implementations must not block for long; Update is called from the block
// production path.
type Sampler interface {
	Sample() (cpu, memory, disk, network float64)
}

// SimulatedSampler draws pseudo-random readings bounded per dimension. It
// stands in for OS-level sampling and keeps the monitor self-contained.
type SimulatedSampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedSampler seeds a simulated sampler from the clock.
func NewSimulatedSampler() *SimulatedSampler {
	return &SimulatedSampler{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Sample returns one bounded reading per dimension.
func (s *SimulatedSampler) Sample() (cpu, memory, disk, network float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() * 0.5, s.rng.Float64() * 0.7, s.rng.Float64() * 0.6, s.rng.Float64() * 0.4
}

// usageHistory is a bounded FIFO sequence of samples with its own lock.
type usageHistory struct {
	mu      sync.Mutex
	samples []ResourceSample
}

func (h *usageHistory) append(s ResourceSample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = append(h.samples, s)
	if len(h.samples) > resourceHistoryCap {
		h.samples = h.samples[1:]
	}
}

// mean returns the average usage, or 0 for an empty history.
func (h *usageHistory) mean() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.samples) == 0 {
		return 0
	}
	usages := make([]float64, len(h.samples))
	for i, s := range h.samples {
		usages[i] = s.Usage
	}
	return stat.Mean(usages, nil)
}

func (h *usageHistory) last() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.samples) == 0 {
		return 0
	}
	return h.samples[len(h.samples)-1].Usage
}

func (h *usageHistory) copy() []ResourceSample {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ResourceSample, len(h.samples))
	copy(out, h.samples)
	return out
}

// ResourceMonitor keeps rolling utilization histories for CPU, memory, disk
// and network and derives a single efficiency score in [0, 1]. Lower
// utilization means higher efficiency and therefore a higher effective
// reward.
type ResourceMonitor struct {
	sampler Sampler

	cpu     usageHistory
	memory  usageHistory
	disk    usageHistory
	network usageHistory

	mu         sync.Mutex
	efficiency float64
	lastUpdate time.Time
}

// NewResourceMonitor creates a monitor with the simulated sampler.
func NewResourceMonitor() *ResourceMonitor {
	return NewResourceMonitorWithSampler(NewSimulatedSampler())
}

// NewResourceMonitorWithSampler creates a monitor with a caller-supplied
// sampling strategy. The efficiency score starts at 1.0 until the first
// update.
func NewResourceMonitorWithSampler(sampler Sampler) *ResourceMonitor {
	return &ResourceMonitor{
		sampler:    sampler,
		efficiency: 1.0,
		lastUpdate: time.Now(),
	}
}

// Update takes one sample per dimension, appends it to the bounded histories
// and recomputes the efficiency score as the weighted average of each
// history's inverted mean utilization.
func (m *ResourceMonitor) Update() {
	cpu, memory, disk, network := m.sampler.Sample()
	now := time.Now().Unix()

	m.cpu.append(ResourceSample{Timestamp: now, Usage: cpu})
	m.memory.append(ResourceSample{Timestamp: now, Usage: memory})
	m.disk.append(ResourceSample{Timestamp: now, Usage: disk})
	m.network.append(ResourceSample{Timestamp: now, Usage: network})

	efficiency := cpuWeight*(1-m.cpu.mean()) +
		memoryWeight*(1-m.memory.mean()) +
		diskWeight*(1-m.disk.mean()) +
		networkWeight*(1-m.network.mean())

	m.mu.Lock()
	m.efficiency = efficiency
	m.lastUpdate = time.Now()
	m.mu.Unlock()
}

// Efficiency returns the last computed score, 1.0 before the first update.
func (m *ResourceMonitor) Efficiency() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.efficiency
}

// CurrentUsage returns the most recent sample of each dimension together
// with the current efficiency score.
func (m *ResourceMonitor) CurrentUsage() ResourceUsage {
	return ResourceUsage{
		CPU:        m.cpu.last(),
		Memory:     m.memory.last(),
		Disk:       m.disk.last(),
		Network:    m.network.last(),
		Efficiency: m.Efficiency(),
		Timestamp:  time.Now().Unix(),
	}
}

// TimeSinceUpdate returns the elapsed time since the last Update call.
func (m *ResourceMonitor) TimeSinceUpdate() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.lastUpdate)
}

// CPUHistory returns a copy of the CPU utilization history.
func (m *ResourceMonitor) CPUHistory() []ResourceSample { return m.cpu.copy() }

// MemoryHistory returns a copy of the memory utilization history.
func (m *ResourceMonitor) MemoryHistory() []ResourceSample { return m.memory.copy() }

// DiskHistory returns a copy of the disk utilization history.
func (m *ResourceMonitor) DiskHistory() []ResourceSample { return m.disk.copy() }

// NetworkHistory returns a copy of the network utilization history.
func (m *ResourceMonitor) NetworkHistory() []ResourceSample { return m.network.copy() }
