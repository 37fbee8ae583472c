package turn

import (
	"context"

	"github.com/luca-patrignani/intuition/domain/quiz"
)

// Directory lists the names registered under prefix, with their addresses.
type Directory interface {
	List(ctx context.Context, prefix string) (map[string]string, error)
}

// Transport carries the remote calls between peers. SetRoundState, ResetAnswer
// and Notify are fire-and-forget: they return at once and failures are dropped.
type Transport interface {
	GetRoundState(ctx context.Context, addr string) (quiz.RoundState, error)
	SetRoundState(addr string, st quiz.RoundState)
	GetAnswer(ctx context.Context, addr string) (*int64, error)
	ResetAnswer(addr string)
	Notify(addr string, message string)
	// Probe returns the id of the peer serving addr.
	Probe(ctx context.Context, addr string) (quiz.PeerID, error)
}

// Console is the operator terminal. Prompt blocks until a line is entered or
// ctx is done, in which case it returns an error wrapping ctx.Err().
type Console interface {
	Prompt(ctx context.Context, label string) (string, error)
	Notify(message string)
	Render(st quiz.RoundState)
}

// History records completed rounds.
type History interface {
	Append(result quiz.RoundResult, scoreboard []quiz.Score) error
}
