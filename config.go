package main

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/enablerdao/rustorium-sub000/core"
	"github.com/enablerdao/rustorium-sub000/scaling"
)

// Config collects everything the node reads from the environment.
type Config struct {
	ListenAddr string
	DBPath     string
	Consensus  core.ConsensusConfig
	Scaling    scaling.Config
}

// LoadConfig reads .env (when present) and the environment, falling back to
// defaults for anything unset.
func LoadConfig() Config {
	godotenv.Load()

	consensus := core.DefaultConsensusConfig()
	consensus.BlockTime = envUint("CONSENSUS_BLOCK_TIME", consensus.BlockTime)
	consensus.MinStake = envFloat("CONSENSUS_MIN_STAKE", consensus.MinStake)
	consensus.MaxValidators = envInt("CONSENSUS_MAX_VALIDATORS", consensus.MaxValidators)
	consensus.BaseReward = envFloat("CONSENSUS_BASE_REWARD", consensus.BaseReward)
	consensus.ResourceEfficiencyFactor = envFloat("CONSENSUS_EFFICIENCY_FACTOR", consensus.ResourceEfficiencyFactor)
	consensus.NodeScalingFactor = envFloat("CONSENSUS_NODE_SCALING_FACTOR", consensus.NodeScalingFactor)
	if v := os.Getenv("CONSENSUS_TYPE"); v != "" {
		consensus.ConsensusType = core.ConsensusType(v)
	}

	scalingCfg := scaling.DefaultConfig()
	scalingCfg.MinShards = envInt("SCALING_MIN_SHARDS", scalingCfg.MinShards)
	scalingCfg.MaxShards = envInt("SCALING_MAX_SHARDS", scalingCfg.MaxShards)
	scalingCfg.ScalingInterval = envUint("SCALING_INTERVAL", scalingCfg.ScalingInterval)
	if v := os.Getenv("SCALING_MODE"); v != "" {
		scalingCfg.Mode = scaling.Mode(v)
	}

	return Config{
		ListenAddr: envString("LISTEN_ADDR", ":8081"),
		DBPath:     envString("DB_PATH", "consensus.db"),
		Consensus:  consensus,
		Scaling:    scalingCfg,
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envUint(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
