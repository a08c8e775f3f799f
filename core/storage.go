package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	validatorKeyPrefix = "validator:"
	blockKeyPrefix     = "block:"
	rewardKeyPrefix    = "reward:"
)

// Store persists validators, produced blocks and reward payouts in LevelDB.
// Values are JSON; keys carry a type prefix so each record family can be
// iterated independently.
type Store struct {
	db *leveldb.DB
}

// OpenStore opens (or creates) the database at path.
func OpenStore(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutValidator persists a validator record keyed by address.
func (s *Store) PutValidator(v Validator) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal validator: %w", err)
	}
	if err := s.db.Put([]byte(validatorKeyPrefix+v.Address), data, nil); err != nil {
		return fmt.Errorf("failed to store validator: %w", err)
	}
	return nil
}

// DeleteValidator removes a validator record.
func (s *Store) DeleteValidator(address string) error {
	if err := s.db.Delete([]byte(validatorKeyPrefix+address), nil); err != nil {
		return fmt.Errorf("failed to delete validator: %w", err)
	}
	return nil
}

// Validators loads every persisted validator record.
func (s *Store) Validators() ([]Validator, error) {
	var out []Validator
	iter := s.db.NewIterator(util.BytesPrefix([]byte(validatorKeyPrefix)), nil)
	defer iter.Release()

	for iter.Next() {
		var v Validator
		if err := json.Unmarshal(iter.Value(), &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterator error: %w", err)
	}
	return out, nil
}

// PutBlock persists a produced block keyed by its hash.
func (s *Store) PutBlock(block *Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("failed to marshal block: %w", err)
	}
	if err := s.db.Put([]byte(blockKeyPrefix+block.Hash), data, nil); err != nil {
		return fmt.Errorf("failed to store block: %w", err)
	}
	return nil
}

// Block loads a block by hash.
func (s *Store) Block(hash string) (*Block, error) {
	data, err := s.db.Get([]byte(blockKeyPrefix+hash), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get block: %w", err)
	}
	var block Block
	if err := json.Unmarshal(data, &block); err != nil {
		return nil, fmt.Errorf("failed to unmarshal block: %w", err)
	}
	return &block, nil
}

// PutRewards persists the payout map for a block.
func (s *Store) PutRewards(blockHash string, rewards map[string]float64) error {
	data, err := json.Marshal(rewards)
	if err != nil {
		return fmt.Errorf("failed to marshal rewards: %w", err)
	}
	if err := s.db.Put([]byte(rewardKeyPrefix+blockHash), data, nil); err != nil {
		return fmt.Errorf("failed to store rewards: %w", err)
	}
	return nil
}

// Rewards loads the payout map for a block.
func (s *Store) Rewards(blockHash string) (map[string]float64, error) {
	data, err := s.db.Get([]byte(rewardKeyPrefix+blockHash), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get rewards: %w", err)
	}
	rewards := make(map[string]float64)
	if err := json.Unmarshal(data, &rewards); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rewards: %w", err)
	}
	return rewards, nil
}

// RewardsByValidator sums all persisted payouts for one address.
func (s *Store) RewardsByValidator(address string) (float64, error) {
	total := 0.0
	iter := s.db.NewIterator(util.BytesPrefix([]byte(rewardKeyPrefix)), nil)
	defer iter.Release()

	for iter.Next() {
		if !strings.HasPrefix(string(iter.Key()), rewardKeyPrefix) {
			continue
		}
		rewards := make(map[string]float64)
		if err := json.Unmarshal(iter.Value(), &rewards); err != nil {
			continue
		}
		total += rewards[address]
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("iterator error: %w", err)
	}
	return total, nil
}
