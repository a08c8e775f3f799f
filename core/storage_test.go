package core

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "consensus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreValidatorRoundTrip(t *testing.T) {
	store := openTestStore(t)

	v1 := NewValidator("v1", 100, []byte("pk1"))
	v2 := NewValidator("v2", 200, nil)
	require.NoError(t, store.PutValidator(v1))
	require.NoError(t, store.PutValidator(v2))

	loaded, err := store.Validators()
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	byAddr := make(map[string]Validator, len(loaded))
	for _, v := range loaded {
		byAddr[v.Address] = v
	}
	assert.Equal(t, 100.0, byAddr["v1"].Stake)
	assert.Equal(t, []byte("pk1"), byAddr["v1"].PublicKey)
	assert.Equal(t, 200.0, byAddr["v2"].Stake)
}

func TestStoreDeleteValidator(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.PutValidator(NewValidator("v1", 100, nil)))
	require.NoError(t, store.DeleteValidator("v1"))

	loaded, err := store.Validators()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestStoreBlockRoundTrip(t *testing.T) {
	store := openTestStore(t)

	pos := NewProofOfStake(5.0)
	block := pos.CreateBlock([]Validator{NewValidator("v1", 100, nil)}, []Transaction{
		{ID: "tx1", From: "a", To: "b", Amount: 10},
	})
	require.NoError(t, store.PutBlock(block))

	loaded, err := store.Block(block.Hash)
	require.NoError(t, err)
	assert.Equal(t, block.Hash, loaded.Hash)
	assert.Equal(t, block.Miner, loaded.Miner)
	require.Len(t, loaded.Transactions, 1)
	assert.Equal(t, "tx1", loaded.Transactions[0].ID)
}

func TestStoreBlockNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Block("missing")
	assert.Error(t, err)
}

func TestStoreRewardsRoundTrip(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.PutRewards("h1", map[string]float64{"v1": 4.0, "v2": 1.0}))
	require.NoError(t, store.PutRewards("h2", map[string]float64{"v1": 2.5}))

	rewards, err := store.Rewards("h1")
	require.NoError(t, err)
	assert.Equal(t, 4.0, rewards["v1"])
	assert.Equal(t, 1.0, rewards["v2"])

	total, err := store.RewardsByValidator("v1")
	require.NoError(t, err)
	assert.InDelta(t, 6.5, total, 1e-9)

	total, err = store.RewardsByValidator("v3")
	require.NoError(t, err)
	assert.Zero(t, total)
}
