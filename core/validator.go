package core

import (
	"time"
)

// Validator is a registered staking participant eligible for block proposal.
type Validator struct {
	Address     string  `json:"address"`
	Stake       float64 `json:"stake"`
	PublicKey   []byte  `json:"publicKey"`
	LastActive  int64   `json:"lastActive"`
	Performance float64 `json:"performance"`
}

// NewValidator creates a validator with full performance and a fresh
// last-active timestamp.
func NewValidator(address string, stake float64, publicKey []byte) Validator {
	return Validator{
		Address:     address,
		Stake:       stake,
		PublicKey:   publicKey,
		LastActive:  time.Now().Unix(),
		Performance: 1.0,
	}
}

// UpdateStake replaces the validator's stake amount.
func (v *Validator) UpdateStake(stake float64) {
	v.Stake = stake
}

// Touch refreshes the last-active timestamp.
func (v *Validator) Touch() {
	v.LastActive = time.Now().Unix()
}

// UpdatePerformance folds a block-production outcome into the performance
// score using an exponential moving average.
func (v *Validator) UpdatePerformance(success bool) {
	const alpha = 0.1
	outcome := 0.0
	if success {
		outcome = 1.0
	}
	v.Performance = alpha*outcome + (1-alpha)*v.Performance
}

// IsActive reports whether the validator was seen within the timeout.
func (v *Validator) IsActive(timeout time.Duration) bool {
	return time.Now().Unix()-v.LastActive < int64(timeout.Seconds())
}

// EffectiveStake is the stake discounted by the performance score.
func (v *Validator) EffectiveStake() float64 {
	return v.Stake * v.Performance
}

// ValidatorStats is a serializable per-validator summary for API consumers.
type ValidatorStats struct {
	Address         string  `json:"address"`
	Stake           float64 `json:"stake"`
	EffectiveStake  float64 `json:"effectiveStake"`
	Performance     float64 `json:"performance"`
	BlocksProduced  uint64  `json:"blocksProduced"`
	BlocksValidated uint64  `json:"blocksValidated"`
	TotalRewards    float64 `json:"totalRewards"`
	IsActive        bool    `json:"isActive"`
	LastActive      int64   `json:"lastActive"`
}
