package ledger

import (
	"github.com/google/uuid"
	"github.com/luca-patrignani/intuition/domain/quiz"
)

// Block records one completed round.
type Block struct {
	Index      int              `json:"index"`
	ID         uuid.UUID        `json:"id"`
	Timestamp  int64            `json:"timestamp"`
	PrevHash   string           `json:"prev_hash"`
	Hash       string           `json:"hash"`
	Result     quiz.RoundResult `json:"result"`
	Scoreboard []quiz.Score     `json:"scoreboard"`
}
