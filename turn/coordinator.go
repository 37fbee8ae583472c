package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/luca-patrignani/intuition/domain/quiz"
)

var errNotActive = errors.New("peer is no longer active")

// Run is the dispatch loop of the node. After every accepted change it decides
// what the peer does: the active peer runs a round, a passive peer answers an
// open question, then waits for the next change. Run returns when ctx is done.
func (n *Node) Run(ctx context.Context) error {
	n.mu.Lock()
	n.runCtx = ctx
	n.mu.Unlock()
	defer n.shutdown()

	for ctx.Err() == nil {
		passCtx, st := n.beginPass(ctx)
		active := st.IsActive(n.id)

		var err error
		switch {
		case active && st.Phase == quiz.AwaitingQuestion:
			err = n.runCycle(passCtx)
			if err == nil || passCtx.Err() != nil {
				continue
			}
		case active && st.Phase == quiz.AwaitingAnswers:
			n.resetOrphanedQuestion(st.Version)
			continue
		case !active && st.Phase == quiz.AwaitingAnswers:
			n.collectAnswer(passCtx, st)
		}

		if ctx.Err() != nil {
			return nil
		}
		var retry <-chan time.Time
		if err != nil {
			n.log.Error("round aborted", "err", err)
			n.console.Notify(fmt.Sprintf("round aborted: %v", err))
			retry = time.After(n.cfg.RetryInterval)
		}
		if !active {
			n.monitor.Schedule()
		}
		select {
		case <-n.wake:
		case <-retry:
		case <-ctx.Done():
		}
	}
	return nil
}

// beginPass cancels the previous pass and the liveness timer, and returns the
// context of the new pass with a snapshot of the state it acts on.
func (n *Node) beginPass(ctx context.Context) (context.Context, quiz.RoundState) {
	n.monitor.Stop()
	n.mu.Lock()
	defer n.mu.Unlock()
	select {
	case <-n.wake:
	default:
	}
	if n.cancelPass != nil {
		n.cancelPass()
	}
	passCtx, cancel := context.WithCancel(ctx)
	n.cancelPass = cancel
	return passCtx, n.state.Clone()
}

func (n *Node) shutdown() {
	n.monitor.Stop()
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancelPass != nil {
		n.cancelPass()
		n.cancelPass = nil
	}
}

// resetOrphanedQuestion drops a question this peer asked in a previous life:
// nobody is collecting its answers anymore.
func (n *Node) resetOrphanedQuestion(version uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state.Version != version || !n.state.IsActive(n.id) {
		return
	}
	n.log.Warn("dropping question left open", "question", n.state.Question)
	n.state.Phase = quiz.AwaitingQuestion
	n.state.Question = ""
	n.state.CorrectAnswer = nil
}

// commit applies mutate to the local state, bumps the version and returns the
// snapshot to broadcast, tagged with transition. It fails if the pass was
// cancelled, which happens when a newer state has been accepted meanwhile.
func (n *Node) commit(ctx context.Context, transition quiz.Transition, mutate func(*quiz.RoundState)) (quiz.RoundState, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return quiz.RoundState{}, err
	}
	if !n.state.IsActive(n.id) {
		return quiz.RoundState{}, errNotActive
	}
	mutate(&n.state)
	n.state.Version++
	snapshot := n.state.Clone()
	snapshot.Transition = transition
	return snapshot, nil
}

// runCycle is a full round of the active peer.
func (n *Node) runCycle(ctx context.Context) error {
	question, correct, err := n.acquireQuestion(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return n.skipTurn(ctx)
		}
		return err
	}

	roster, err := n.refreshRoster(ctx)
	if err != nil {
		return err
	}
	asked, err := n.commit(ctx, quiz.AskingQuestion, func(s *quiz.RoundState) {
		s.BeginRound()
		s.PoseQuestion(question, correct, roster)
	})
	if err != nil {
		return err
	}
	n.broadcast(roster, asked)
	n.log.Info("question asked", "round", asked.Round, "question", question)
	n.console.Notify(fmt.Sprintf("question sent to %d peers, collecting answers", len(roster)-1))

	select {
	case <-time.After(n.cfg.CollectionWindow):
	case <-ctx.Done():
		return ctx.Err()
	}

	answers := n.pollAnswers(ctx, roster)
	scoreboard := quiz.RankAnswers(correct, answers)

	roster, err = n.refreshRoster(ctx)
	if err != nil {
		return err
	}
	next, err := quiz.NextActive(roster, n.id)
	if err != nil {
		return err
	}
	results, err := n.commit(ctx, quiz.SendingResults, func(s *quiz.RoundState) {
		s.Conclude(scoreboard, next, roster)
	})
	if err != nil {
		return err
	}
	n.broadcast(roster, results)
	n.log.Info("round completed", "round", results.Round, "winner", string(results.Result.Winner), "next", string(next))
	n.record(results)
	n.console.Render(results)
	return nil
}

// acquireQuestion prompts the operator until a non-empty question and an
// integer answer are entered.
func (n *Node) acquireQuestion(ctx context.Context) (string, int64, error) {
	if n.cfg.QuestionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.cfg.QuestionTimeout)
		defer cancel()
	}
	n.console.Notify("it is your turn to ask")
	var question string
	for question == "" {
		text, err := n.console.Prompt(ctx, "Question")
		if err != nil {
			return "", 0, err
		}
		question = strings.TrimSpace(text)
		if question == "" {
			n.console.Notify("the question cannot be empty")
		}
	}
	for {
		text, err := n.console.Prompt(ctx, "Correct answer")
		if err != nil {
			return "", 0, err
		}
		correct, err := quiz.ParseAnswer(text)
		if err != nil {
			n.console.Notify(fmt.Sprintf("%v, try again", err))
			continue
		}
		return question, correct, nil
	}
}

// skipTurn passes the active role on without a round.
func (n *Node) skipTurn(ctx context.Context) error {
	roster, err := n.refreshRoster(ctx)
	if err != nil {
		return err
	}
	next, err := quiz.NextActive(roster, n.id)
	if err != nil {
		return err
	}
	skipped, err := n.commit(ctx, quiz.SendingResults, func(s *quiz.RoundState) {
		s.BeginRound()
		s.Skip(next, roster)
	})
	if err != nil {
		return err
	}
	n.broadcast(roster, skipped)
	n.log.Info("turn skipped", "next", string(next))
	n.console.Notify(fmt.Sprintf("no question entered in time, %s asks next", next))
	return nil
}

// pollAnswers asks every other peer of roster for its answer, in id order.
// Unreachable peers count as not answering. Polling stops as soon as the pass
// is cancelled: the round is abandoned and the remaining peers are left alone.
func (n *Node) pollAnswers(ctx context.Context, roster quiz.Roster) []quiz.Answer {
	answers := make([]quiz.Answer, 0, len(roster))
	for _, id := range roster.Sorted() {
		if ctx.Err() != nil {
			return answers
		}
		if id == n.id {
			continue
		}
		addr := roster[id]
		value, err := n.net.GetAnswer(ctx, addr)
		if err != nil {
			n.log.Debug("could not poll answer", "from", string(id), "err", err)
			value = nil
		}
		if value != nil {
			n.net.Notify(addr, "your answer was received")
		} else {
			n.net.Notify(addr, "no answer received in time")
		}
		n.net.ResetAnswer(addr)
		answers = append(answers, quiz.Answer{Peer: id, Value: value})
	}
	return answers
}

// collectAnswer reads the operator's answer to the open question of st. Input
// that is not an integer is asked again until the deadline.
func (n *Node) collectAnswer(ctx context.Context, st quiz.RoundState) {
	n.mu.Lock()
	if n.answeredVersion == st.Version {
		n.mu.Unlock()
		return
	}
	n.answeredVersion = st.Version
	n.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, n.cfg.AnswerTimeout)
	defer cancel()
	for {
		text, err := n.console.Prompt(ctx, fmt.Sprintf("%s (%s)", st.Question, n.cfg.AnswerTimeout))
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				n.console.Notify("time is up")
			}
			return
		}
		value, err := quiz.ParseAnswer(text)
		if err != nil {
			n.console.Notify(fmt.Sprintf("%v, try again", err))
			continue
		}
		n.mu.Lock()
		if n.state.Version == st.Version {
			n.answer = &value
		}
		n.mu.Unlock()
		n.log.Debug("answer stored", "round", st.Round)
		return
	}
}
