package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewValidatorDefaults(t *testing.T) {
	v := NewValidator("v1", 100, []byte("pk"))
	assert.Equal(t, "v1", v.Address)
	assert.Equal(t, 100.0, v.Stake)
	assert.Equal(t, 1.0, v.Performance)
	assert.True(t, v.IsActive(time.Minute))
}

func TestUpdateStake(t *testing.T) {
	v := NewValidator("v1", 100, nil)
	v.UpdateStake(250)
	assert.Equal(t, 250.0, v.Stake)
}

func TestUpdatePerformanceEMA(t *testing.T) {
	v := NewValidator("v1", 100, nil)

	v.UpdatePerformance(false)
	assert.InDelta(t, 0.9, v.Performance, 1e-9)

	v.UpdatePerformance(true)
	assert.InDelta(t, 0.1+0.9*0.9, v.Performance, 1e-9)

	// Repeated failures decay toward zero but never reach it.
	for i := 0; i < 100; i++ {
		v.UpdatePerformance(false)
	}
	assert.Greater(t, v.Performance, 0.0)
	assert.Less(t, v.Performance, 0.01)
}

func TestEffectiveStake(t *testing.T) {
	v := NewValidator("v1", 200, nil)
	v.UpdatePerformance(false)
	assert.InDelta(t, 180.0, v.EffectiveStake(), 1e-9)
}

func TestIsActiveTimeout(t *testing.T) {
	v := NewValidator("v1", 100, nil)
	v.LastActive = time.Now().Add(-2 * time.Minute).Unix()
	assert.False(t, v.IsActive(time.Minute))

	v.Touch()
	assert.True(t, v.IsActive(time.Minute))
}
