package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/luca-patrignani/intuition/domain/quiz"
)

type roundKey struct {
	round uint64
	asker quiz.PeerID
}

type Blockchain struct {
	mu     sync.RWMutex
	blocks []Block
	seen   map[roundKey]struct{}
}

// NewBlockchain creates a new blockchain with an initialized genesis block.
// The genesis block has index 0, previous hash "0" and an empty result.
func NewBlockchain() *Blockchain {
	bc := &Blockchain{
		blocks: make([]Block, 0),
		seen:   map[roundKey]struct{}{},
	}

	genesis := Block{
		Index:     0,
		ID:        uuid.New(),
		Timestamp: time.Now().Unix(),
		PrevHash:  "0",
	}
	genesis.Hash = calculateHash(genesis)
	bc.blocks = append(bc.blocks, genesis)

	return bc
}

// Append adds the result of a completed round. A round already in the chain is
// ignored.
func (bc *Blockchain) Append(result quiz.RoundResult, scoreboard []quiz.Score) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	key := roundKey{round: result.Round, asker: result.Asker}
	if _, ok := bc.seen[key]; ok {
		return nil
	}
	latest := bc.blocks[len(bc.blocks)-1]

	newBlock := Block{
		Index:      latest.Index + 1,
		ID:         uuid.New(),
		Timestamp:  time.Now().Unix(),
		PrevHash:   latest.Hash,
		Result:     result,
		Scoreboard: append([]quiz.Score(nil), scoreboard...),
	}
	newBlock.Hash = calculateHash(newBlock)

	if err := validateBlock(newBlock, latest); err != nil {
		return fmt.Errorf("invalid block: %w", err)
	}

	bc.blocks = append(bc.blocks, newBlock)
	bc.seen[key] = struct{}{}
	return nil
}

// GetLatest returns the most recently added block in the blockchain.
func (bc *Blockchain) GetLatest() Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.blocks[len(bc.blocks)-1]
}

// GetByIndex retrieves a block by its index in the chain. Returns an error if the index
// is out of range.
func (bc *Blockchain) GetByIndex(index int) (Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	if index < 0 || index >= len(bc.blocks) {
		return Block{}, fmt.Errorf("index %d out of range", index)
	}
	return bc.blocks[index], nil
}

// Len returns the number of recorded rounds, genesis excluded.
func (bc *Blockchain) Len() int {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return len(bc.blocks) - 1
}

// Results returns the recorded rounds in the order they were appended.
func (bc *Blockchain) Results() []quiz.RoundResult {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	results := make([]quiz.RoundResult, 0, len(bc.blocks)-1)
	for _, b := range bc.blocks[1:] {
		results = append(results, b.Result)
	}
	return results
}

// Verify validates the integrity of the entire blockchain by checking the genesis block
// and verifying each subsequent block's hash, index continuity, and previous hash linkage.
func (bc *Blockchain) Verify() error {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	if bc.blocks[0].PrevHash != "0" {
		return fmt.Errorf("invalid genesis block")
	}
	if bc.blocks[0].Hash != calculateHash(bc.blocks[0]) {
		return fmt.Errorf("invalid genesis hash")
	}

	for i := 1; i < len(bc.blocks); i++ {
		if err := validateBlock(bc.blocks[i], bc.blocks[i-1]); err != nil {
			return fmt.Errorf("block %d invalid: %w", i, err)
		}
	}
	return nil
}

// validateBlock verifies that a block is valid relative to the previous block. It checks
// index continuity, previous hash linkage and current hash validity.
func validateBlock(current, previous Block) error {
	if current.Index != previous.Index+1 {
		return fmt.Errorf("invalid index: expected %d, got %d", previous.Index+1, current.Index)
	}
	if current.PrevHash != previous.Hash {
		return fmt.Errorf("invalid prev hash: expected %s, got %s", previous.Hash, current.PrevHash)
	}
	expectedHash := calculateHash(current)
	if current.Hash != expectedHash {
		return fmt.Errorf("invalid hash: expected %s, got %s", expectedHash, current.Hash)
	}
	return nil
}

// calculateHash computes the SHA256 hash of a block from its index, id,
// timestamp, previous hash, result and scoreboard.
func calculateHash(block Block) string {
	resultBytes, _ := json.Marshal(block.Result)
	scoreboardBytes, _ := json.Marshal(block.Scoreboard)

	data := fmt.Sprintf("%d%s%d%s%s%s",
		block.Index,
		block.ID,
		block.Timestamp,
		block.PrevHash,
		string(resultBytes),
		string(scoreboardBytes),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
