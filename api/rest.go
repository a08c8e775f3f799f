// Package api exposes the consensus core over HTTP and websocket. It is a
// thin translation layer: every handler delegates to the manager and maps
// errors to status codes.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/enablerdao/rustorium-sub000/core"
	"github.com/enablerdao/rustorium-sub000/scaling"
)

// Server wires the consensus manager, transaction pool, optional store and
// scaling manager behind a mux router.
type Server struct {
	manager *core.ConsensusManager
	pool    *core.Pool
	store   *core.Store // may be nil
	scaler  *scaling.Manager
	hub     *Hub
	limiter *rate.Limiter
}

// NewServer creates the API server. store may be nil to run without
// persistence.
func NewServer(manager *core.ConsensusManager, pool *core.Pool, store *core.Store, scaler *scaling.Manager) *Server {
	return &Server{
		manager: manager,
		pool:    pool,
		store:   store,
		scaler:  scaler,
		hub:     NewHub(manager),
		limiter: rate.NewLimiter(rate.Every(time.Minute/600), 100),
	}
}

// Hub returns the websocket hub for the status stream.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.rateLimit)

	r.HandleFunc("/validators", s.handleRegisterValidator).Methods(http.MethodPost)
	r.HandleFunc("/validators", s.handleListValidators).Methods(http.MethodGet)
	r.HandleFunc("/validators/{address}", s.handleUnregisterValidator).Methods(http.MethodDelete)

	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/resources", s.handleResources).Methods(http.MethodGet)
	r.HandleFunc("/rewards/history", s.handleRewardHistory).Methods(http.MethodGet)

	r.HandleFunc("/transactions", s.handleSubmitTransaction).Methods(http.MethodPost)
	r.HandleFunc("/blocks", s.handleProduceBlock).Methods(http.MethodPost)
	r.HandleFunc("/blocks/validate", s.handleValidateBlock).Methods(http.MethodPost)
	r.HandleFunc("/blocks/{hash}", s.handleGetBlock).Methods(http.MethodGet)

	r.HandleFunc("/scaling/status", s.handleScalingStatus).Methods(http.MethodGet)
	r.HandleFunc("/scaling/shards", s.handleSetShardCount).Methods(http.MethodPut)

	r.HandleFunc("/ws", s.hub.HandleWebSocket)
	return r
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type registerRequest struct {
	Address   string  `json:"address"`
	Stake     float64 `json:"stake"`
	PublicKey []byte  `json:"publicKey"`
}

func (s *Server) handleRegisterValidator(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Address == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "address required"})
		return
	}

	v := core.NewValidator(req.Address, req.Stake, req.PublicKey)
	if err := s.manager.RegisterValidator(v); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, core.ErrCapacityReached) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}

	if s.store != nil {
		if err := s.store.PutValidator(v); err != nil {
			slog.Error("failed to persist validator", "address", v.Address, "error", err)
		}
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleUnregisterValidator(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	if err := s.manager.UnregisterValidator(address); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if s.store != nil {
		if err := s.store.DeleteValidator(address); err != nil {
			slog.Error("failed to delete validator", "address", address, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListValidators(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Validators())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Status())
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Monitor().CurrentUsage())
}

func (s *Server) handleRewardHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.RewardSystem().History())
}

type transactionRequest struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tx := core.Transaction{
		ID:        uuid.NewString(),
		From:      req.From,
		To:        req.To,
		Amount:    req.Amount,
		Timestamp: time.Now().Unix(),
	}
	s.pool.Submit(tx)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": tx.ID})
}

type produceBlockResponse struct {
	Block   *core.Block        `json:"block"`
	Rewards map[string]float64 `json:"rewards"`
}

func (s *Server) handleProduceBlock(w http.ResponseWriter, r *http.Request) {
	transactions := s.pool.Drain(0)
	block := s.manager.CreateBlock(transactions)
	rewards := s.manager.DistributeRewards(block)

	if s.store != nil {
		if err := s.store.PutBlock(block); err != nil {
			slog.Error("failed to persist block", "hash", block.Hash, "error", err)
		}
		if err := s.store.PutRewards(block.Hash, rewards); err != nil {
			slog.Error("failed to persist rewards", "hash", block.Hash, "error", err)
		}
	}
	writeJSON(w, http.StatusCreated, produceBlockResponse{Block: block, Rewards: rewards})
}

func (s *Server) handleValidateBlock(w http.ResponseWriter, r *http.Request) {
	var block core.Block
	if err := json.NewDecoder(r.Body).Decode(&block); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": s.manager.ValidateBlock(&block)})
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "persistence disabled"})
		return
	}
	block, err := s.store.Block(mux.Vars(r)["hash"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, block)
}

func (s *Server) handleScalingStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scaler.Status())
}

type shardCountRequest struct {
	Count int `json:"count"`
}

func (s *Server) handleSetShardCount(w http.ResponseWriter, r *http.Request) {
	var req shardCountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.scaler.SetShardCount(req.Count); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, s.scaler.Status())
}
