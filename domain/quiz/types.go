package quiz

import (
	"sort"
)

// PeerID is the name a peer chose for itself when joining the quiz.
type PeerID string

// Roster maps every known peer to the address its remote calls are served on.
type Roster map[PeerID]string

// Sorted returns the ids of the roster in lexicographic order.
func (r Roster) Sorted() []PeerID {
	ids := make([]PeerID, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Address returns the address of id, if known.
func (r Roster) Address(id PeerID) (string, bool) {
	addr, ok := r[id]
	return addr, ok
}

func (r Roster) Clone() Roster {
	if r == nil {
		return nil
	}
	copied := make(Roster, len(r))
	for k, v := range r {
		copied[k] = v
	}
	return copied
}

type Phase string

const (
	AwaitingQuestion Phase = "awaiting_question"
	AwaitingAnswers  Phase = "awaiting_answers"
)

// Transition tells the receiver of a broadcast why the state changed.
// It is consumed once on receipt and never kept in a local copy.
type Transition string

const (
	NoTransition   Transition = ""
	AskingQuestion Transition = "asking_question"
	SendingResults Transition = "sending_results"
	NewActiveUser  Transition = "new_active_user"
)

// Known reports whether t is one of the tags a broadcast may carry.
func (t Transition) Known() bool {
	switch t {
	case AskingQuestion, SendingResults, NewActiveUser:
		return true
	}
	return false
}

// Score is the absolute error of one peer's answer.
type Score struct {
	Peer  PeerID `json:"peer"`
	Error uint64 `json:"error"`
}

// Answer is what a passive peer reported when polled. A nil Value means the
// peer did not answer in time or could not be reached.
type Answer struct {
	Peer  PeerID
	Value *int64
}

// RoundResult records a completed round.
type RoundResult struct {
	Round         uint64 `json:"round"`
	Asker         PeerID `json:"asker"`
	Question      string `json:"question"`
	CorrectAnswer int64  `json:"correct_answer"`
	Winner        PeerID `json:"winner,omitempty"`
}

// RoundState is the replicated record describing the current round.
type RoundState struct {
	ActivePeer    PeerID          `json:"active_peer"`
	Phase         Phase           `json:"phase"`
	Round         uint64          `json:"round"`
	Question      string          `json:"question,omitempty"`
	CorrectAnswer *int64          `json:"correct_answer,omitempty"`
	Scoreboard    []Score         `json:"scoreboard,omitempty"`
	Leaderboard   map[PeerID]uint `json:"leaderboard"`
	Transition    Transition      `json:"transition,omitempty"`
	Roster        Roster          `json:"peer_roster"`
	// Version is bumped by every broadcast and orders competing states.
	Version uint64       `json:"version"`
	Result  *RoundResult `json:"result,omitempty"`
}
