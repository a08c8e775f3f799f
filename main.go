package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/enablerdao/rustorium-sub000/api"
	"github.com/enablerdao/rustorium-sub000/core"
	"github.com/enablerdao/rustorium-sub000/scaling"
)

func init() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(log.Writer(), &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func main() {
	cfg := LoadConfig()

	manager := core.NewConsensusManager(cfg.Consensus)
	pool := core.NewPool()
	scaler := scaling.NewManager(cfg.Scaling)

	store, err := core.OpenStore(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Restore the registry from the last run.
	persisted, err := store.Validators()
	if err != nil {
		slog.Error("failed to load validators", "error", err)
	}
	for _, v := range persisted {
		if err := manager.RegisterValidator(v); err != nil {
			slog.Warn("skipping persisted validator", "address", v.Address, "error", err)
		}
	}
	slog.Info("node starting", "validators", len(persisted), "blockTime", cfg.Consensus.BlockTime)

	server := api.NewServer(manager, pool, store, scaler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go server.Hub().Run(ctx)
	go produceBlocks(ctx, manager, pool, store, scaler, cfg.Consensus.BlockTime)

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: server.Router()}
	go func() {
		slog.Info("api listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpServer.Shutdown(shutdownCtx)
}

// produceBlocks runs the block-production loop: one block every blockTime
// seconds from whatever the pool holds, with a fresh resource sample and a
// reward distribution per block.
func produceBlocks(ctx context.Context, manager *core.ConsensusManager, pool *core.Pool,
	store *core.Store, scaler *scaling.Manager, blockTime uint64) {

	ticker := time.NewTicker(time.Duration(blockTime) * time.Second)
	defer ticker.Stop()

	blocks := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			manager.UpdateResourceEfficiency()

			transactions := pool.Drain(1000)
			block := manager.CreateBlock(transactions)
			rewards := manager.DistributeRewards(block)

			if err := store.PutBlock(block); err != nil {
				slog.Error("failed to persist block", "hash", block.Hash, "error", err)
			}
			if len(rewards) > 0 {
				if err := store.PutRewards(block.Hash, rewards); err != nil {
					slog.Error("failed to persist rewards", "hash", block.Hash, "error", err)
				}
			}

			status := manager.Status()
			blocks++
			tps := float64(len(transactions)) / float64(blockTime)
			scaler.UpdateMetrics(tps, status.ValidatorCount)
			if blocks%10 == 0 {
				if err := scaler.Scale(); err != nil {
					slog.Error("scaling failed", "error", err)
				}
			}

			slog.Info("block produced",
				"hash", block.Hash,
				"miner", block.Miner,
				"transactions", len(transactions),
				"rewardRate", status.CurrentRewardRate,
				"efficiency", status.ResourceEfficiency)
		}
	}
}
