package core

import (
	"crypto/sha256"
	"fmt"
)

// Transaction is opaque to the consensus core; only the ID participates in
// the block digest.
type Transaction struct {
	ID        string  `json:"id"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Amount    float64 `json:"amount"`
	Timestamp int64   `json:"timestamp"`
}

// Block is a unit of the chain as produced by the consensus core. Height and
// PreviousHash are supplied by the integrating chain layer; the core leaves
// them zero-valued.
type Block struct {
	Hash         string        `json:"hash"`
	PreviousHash string        `json:"previousHash"`
	Timestamp    int64         `json:"timestamp"`
	Nonce        uint64        `json:"nonce"`
	Transactions []Transaction `json:"transactions"`
	Miner        string        `json:"miner"`
	Difficulty   uint32        `json:"difficulty"`
	Height       uint64        `json:"height"`
}

// CalculateHash computes the block content digest: SHA-256 over the previous
// hash, timestamp, miner and transaction count, followed by each transaction
// ID in order.
func (b *Block) CalculateHash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s%d%s%d", b.PreviousHash, b.Timestamp, b.Miner, len(b.Transactions))
	for _, tx := range b.Transactions {
		h.Write([]byte(tx.ID))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
