package turn

import (
	"context"

	"github.com/luca-patrignani/intuition/domain/quiz"
)

// checkActive runs when the liveness timer of a passive peer expires. If the
// active peer does not answer, the successor is elected along the roster of
// the round state, skipping peers that are down too. The timer is armed again
// unless this peer promoted itself.
func (n *Node) checkActive() {
	n.mu.Lock()
	ctx := n.runCtx
	st := n.state.Clone()
	n.mu.Unlock()
	if ctx == nil || ctx.Err() != nil || st.IsActive(n.id) {
		return
	}

	successor := n.electSuccessor(ctx, st)
	if successor == n.id && n.promote(ctx, st) {
		return
	}
	if successor != st.ActivePeer {
		n.log.Info("active peer is down, waiting for its successor", "active", string(st.ActivePeer), "successor", string(successor))
	}
	if ctx.Err() == nil {
		n.monitor.Schedule()
	}
}

// electSuccessor returns the active peer of st if it is alive, otherwise the
// first live peer following it in the roster. This peer counts as alive.
func (n *Node) electSuccessor(ctx context.Context, st quiz.RoundState) quiz.PeerID {
	if n.alive(ctx, st.Roster, st.ActivePeer) {
		return st.ActivePeer
	}
	current := st.ActivePeer
	for range st.Roster {
		next, err := quiz.NextActive(st.Roster, current)
		if err != nil {
			break
		}
		if next == n.id || n.alive(ctx, st.Roster, next) {
			return next
		}
		current = next
	}
	// Everybody the roster knows is down.
	return n.id
}

func (n *Node) alive(ctx context.Context, roster quiz.Roster, id quiz.PeerID) bool {
	if id == n.id {
		return true
	}
	addr, ok := roster.Address(id)
	if !ok {
		return false
	}
	got, err := n.net.Probe(ctx, addr)
	if err != nil {
		n.log.Debug("probe failed", "target", string(id), "err", err)
		return false
	}
	return got == id
}

// promote makes this peer the active one, unless the local state changed since
// seen was taken.
func (n *Node) promote(ctx context.Context, seen quiz.RoundState) bool {
	n.mu.Lock()
	if n.state.Version != seen.Version || n.state.ActivePeer != seen.ActivePeer {
		n.mu.Unlock()
		return false
	}
	n.state.Promote(n.id)
	n.state.Version++
	promoted := n.state.Clone()
	promoted.Transition = quiz.NewActiveUser
	n.answer = nil
	n.interruptLocked()
	n.mu.Unlock()

	n.log.Info("promoted to active peer", "previous", string(seen.ActivePeer), "round", promoted.Round)
	n.console.Notify("the active peer is down, you are the new active peer")
	roster, err := n.refreshRoster(ctx)
	if err != nil {
		roster = quiz.Roster{}
	}
	for id, addr := range promoted.Roster {
		if _, ok := roster[id]; !ok {
			roster[id] = addr
		}
	}
	n.broadcast(roster, promoted)
	return true
}
