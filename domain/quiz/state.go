package quiz

import "fmt"

// NewRoundState creates the state seeded by the first peer of a quiz, which
// finds nobody else to pull it from and becomes the active peer.
func NewRoundState(self PeerID, roster Roster) RoundState {
	return RoundState{
		ActivePeer:  self,
		Phase:       AwaitingQuestion,
		Round:       0,
		Leaderboard: map[PeerID]uint{},
		Roster:      roster.Clone(),
	}
}

// Clone returns a deep copy of the state.
func (s RoundState) Clone() RoundState {
	c := s
	if s.CorrectAnswer != nil {
		v := *s.CorrectAnswer
		c.CorrectAnswer = &v
	}
	if s.Scoreboard != nil {
		c.Scoreboard = append([]Score(nil), s.Scoreboard...)
	}
	if s.Leaderboard != nil {
		c.Leaderboard = make(map[PeerID]uint, len(s.Leaderboard))
		for k, v := range s.Leaderboard {
			c.Leaderboard[k] = v
		}
	}
	c.Roster = s.Roster.Clone()
	if s.Result != nil {
		r := *s.Result
		c.Result = &r
	}
	return c
}

// IsActive reports whether id holds the active role in this state.
func (s RoundState) IsActive(id PeerID) bool {
	return s.ActivePeer == id
}

// Validate checks the invariants a received state must satisfy.
// The active peer may be missing from the roster, which happens while a
// failover has not completed yet.
func (s RoundState) Validate() error {
	if s.ActivePeer == "" {
		return fmt.Errorf("state has no active peer")
	}
	switch s.Phase {
	case AwaitingQuestion:
		if s.Question != "" {
			return fmt.Errorf("question %q set while %s", s.Question, s.Phase)
		}
	case AwaitingAnswers:
		if s.Question == "" {
			return fmt.Errorf("empty question while %s", s.Phase)
		}
	default:
		return fmt.Errorf("unknown phase %q", s.Phase)
	}
	return nil
}

// BeginRound starts a new cycle of the active peer.
func (s *RoundState) BeginRound() {
	s.Round++
	s.Result = nil
	s.Scoreboard = nil
}

// PoseQuestion moves the round to AwaitingAnswers.
func (s *RoundState) PoseQuestion(question string, correct int64, roster Roster) {
	s.Phase = AwaitingAnswers
	s.Question = question
	s.CorrectAnswer = &correct
	s.Roster = roster.Clone()
}

// Conclude records the scored round, credits the winner and hands the active
// role to next.
func (s *RoundState) Conclude(scoreboard []Score, next PeerID, roster Roster) {
	result := &RoundResult{
		Round:    s.Round,
		Asker:    s.ActivePeer,
		Question: s.Question,
	}
	if s.CorrectAnswer != nil {
		result.CorrectAnswer = *s.CorrectAnswer
	}
	if winner, ok := Winner(scoreboard); ok {
		if s.Leaderboard == nil {
			s.Leaderboard = map[PeerID]uint{}
		}
		s.Leaderboard[winner]++
		result.Winner = winner
	}
	s.Scoreboard = append([]Score(nil), scoreboard...)
	s.Result = result
	s.handOver(next, roster)
}

// Skip hands the active role to next without scoring, used when the active
// peer did not come up with a question in time.
func (s *RoundState) Skip(next PeerID, roster Roster) {
	s.Scoreboard = nil
	s.Result = nil
	s.handOver(next, roster)
}

// Promote makes self the active peer after the previous one was found
// unreachable. Nothing of the interrupted round is carried over.
func (s *RoundState) Promote(self PeerID) {
	s.ActivePeer = self
	s.Phase = AwaitingQuestion
	s.Question = ""
	s.CorrectAnswer = nil
	s.Scoreboard = nil
	s.Result = nil
	s.Round++
}

func (s *RoundState) handOver(next PeerID, roster Roster) {
	s.ActivePeer = next
	s.Phase = AwaitingQuestion
	s.Question = ""
	s.CorrectAnswer = nil
	s.Roster = roster.Clone()
}
