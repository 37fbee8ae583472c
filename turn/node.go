package turn

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/luca-patrignani/intuition/domain/quiz"
)

// Node is the state of one quiz peer.
type Node struct {
	id      quiz.PeerID
	cfg     Config
	dir     Directory
	net     Transport
	console Console
	history History
	log     *slog.Logger

	mu    sync.Mutex
	state quiz.RoundState
	// answer is the last answer typed by the operator, until polled.
	answer *int64
	// answeredVersion is the version of the question the collector last ran for.
	answeredVersion uint64
	runCtx          context.Context
	cancelPass      context.CancelFunc
	wake            chan struct{}

	monitor *Monitor
}

type NodeOption func(*Node)

// WithHistory makes the node record every completed round it learns about.
func WithHistory(h History) NodeOption {
	return func(n *Node) {
		n.history = h
	}
}

func WithLogger(log *slog.Logger) NodeOption {
	return func(n *Node) {
		if log != nil {
			n.log = log
		}
	}
}

func NewNode(id quiz.PeerID, cfg Config, dir Directory, transport Transport, console Console, opts ...NodeOption) *Node {
	n := &Node{
		id:      id,
		cfg:     cfg,
		dir:     dir,
		net:     transport,
		console: console,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.log = n.log.With("peer", string(id))
	n.monitor = NewMonitor(cfg.LivenessPeriod, n.checkActive)
	return n
}

// ID returns the id of the peer. Remote peers call it to probe liveness.
func (n *Node) ID() quiz.PeerID {
	return n.id
}

// RoundState returns a copy of the local round state.
func (n *Node) RoundState() quiz.RoundState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.Clone()
}

// SetRoundState applies a state broadcast by another peer. States that are not
// newer than the local copy are ignored. An accepted state interrupts whatever
// the peer was doing and its transition tag is consumed.
func (n *Node) SetRoundState(incoming quiz.RoundState) error {
	if !incoming.Transition.Known() {
		return fmt.Errorf("%w: %q", quiz.ErrUnknownTransition, incoming.Transition)
	}
	if err := incoming.Validate(); err != nil {
		return fmt.Errorf("invalid round state: %w", err)
	}

	n.mu.Lock()
	if order := quiz.Compare(incoming, n.state); order != quiz.Newer {
		n.mu.Unlock()
		n.log.Debug("round state ignored", "order", order, "version", incoming.Version, "active", string(incoming.ActivePeer))
		return nil
	}
	transition := incoming.Transition
	st := incoming.Clone()
	st.Transition = quiz.NoTransition
	n.state = st
	if transition == quiz.AskingQuestion {
		n.answer = nil
	}
	n.interruptLocked()
	n.mu.Unlock()

	n.log.Debug("round state accepted", "transition", transition, "version", st.Version, "round", st.Round)
	n.consume(transition, st)
	return nil
}

// Answer returns the operator's answer to the open question and forgets it.
func (n *Node) Answer() *int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	a := n.answer
	n.answer = nil
	return a
}

func (n *Node) ResetAnswer() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.answer = nil
}

// Notify shows a message sent by another peer.
func (n *Node) Notify(message string) {
	n.console.Notify(message)
}

// Bootstrap builds the roster and pulls the round state from the first other
// peer that answers, in id order. If nobody does, the node starts a fresh quiz
// where it is the active peer.
func (n *Node) Bootstrap(ctx context.Context) error {
	roster, err := n.refreshRoster(ctx)
	if err != nil {
		return err
	}
	for _, id := range roster.Sorted() {
		if id == n.id {
			continue
		}
		st, err := n.net.GetRoundState(ctx, roster[id])
		if err != nil {
			n.log.Debug("could not pull round state", "from", string(id), "err", err)
			continue
		}
		if err := st.Validate(); err != nil {
			n.log.Debug("peer has no usable round state", "from", string(id), "err", err)
			continue
		}
		st.Transition = quiz.NoTransition
		n.mu.Lock()
		n.state = st
		n.mu.Unlock()
		n.log.Info("joined quiz", "from", string(id), "active", string(st.ActivePeer), "round", st.Round)
		n.console.Render(st)
		return nil
	}
	n.mu.Lock()
	n.state = quiz.NewRoundState(n.id, roster)
	n.mu.Unlock()
	n.log.Info("started a new quiz")
	return nil
}

// refreshRoster lists the peers of the directory. When the directory cannot be
// reached the roster of the local state is kept.
func (n *Node) refreshRoster(ctx context.Context) (quiz.Roster, error) {
	entries, err := n.dir.List(ctx, n.cfg.Namespace)
	if err != nil {
		n.mu.Lock()
		roster := n.state.Roster.Clone()
		n.mu.Unlock()
		if len(roster) == 0 {
			return nil, fmt.Errorf("%w: %w", quiz.ErrEmptyRoster, err)
		}
		n.log.Warn("peer directory unreachable, keeping last roster", "err", err)
		return roster, nil
	}
	roster := quiz.Roster{}
	for name, addr := range entries {
		id, ok := strings.CutPrefix(name, n.cfg.Namespace)
		if !ok || id == "" {
			continue
		}
		roster[quiz.PeerID(id)] = addr
	}
	if len(roster) == 0 {
		return nil, quiz.ErrEmptyRoster
	}
	return roster, nil
}

// broadcast sends st to every peer of roster but this one.
func (n *Node) broadcast(roster quiz.Roster, st quiz.RoundState) {
	for _, id := range roster.Sorted() {
		if id == n.id {
			continue
		}
		n.net.SetRoundState(roster[id], st.Clone())
	}
	n.log.Debug("round state broadcast", "transition", st.Transition, "version", st.Version, "peers", len(roster)-1)
}

// consume acts on the transition tag of an accepted state.
func (n *Node) consume(transition quiz.Transition, st quiz.RoundState) {
	switch transition {
	case quiz.AskingQuestion:
		n.console.Render(st)
	case quiz.SendingResults:
		n.record(st)
		n.console.Render(st)
	case quiz.NewActiveUser:
		n.console.Notify(fmt.Sprintf("%s took over as the active peer", st.ActivePeer))
		n.console.Render(st)
	}
}

func (n *Node) record(st quiz.RoundState) {
	if n.history == nil || st.Result == nil {
		return
	}
	if err := n.history.Append(*st.Result, st.Scoreboard); err != nil {
		n.log.Warn("could not record round", "round", st.Result.Round, "err", err)
	}
}

// interruptLocked cancels the running pass and wakes the dispatch loop.
func (n *Node) interruptLocked() {
	if n.cancelPass != nil {
		n.cancelPass()
	}
	select {
	case n.wake <- struct{}{}:
	default:
	}
}
