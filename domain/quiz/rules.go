package quiz

import "sort"

// NextActive returns the peer following current in the sorted roster, wrapping
// around to the smallest id. If current is not in the roster the smallest id is
// returned. The result only depends on the roster ids and current, so every
// peer computing it on the same roster agrees.
func NextActive(roster Roster, current PeerID) (PeerID, error) {
	ids := roster.Sorted()
	if len(ids) == 0 {
		return "", ErrEmptyRoster
	}
	for i, id := range ids {
		if id == current {
			return ids[(i+1)%len(ids)], nil
		}
	}
	return ids[0], nil
}

// RankAnswers scores the answers against correct. Peers that did not answer are
// left out. The result is sorted by ascending absolute error; ties keep the
// order of answers, which callers build in roster order.
func RankAnswers(correct int64, answers []Answer) []Score {
	scoreboard := make([]Score, 0, len(answers))
	for _, a := range answers {
		if a.Value == nil {
			continue
		}
		scoreboard = append(scoreboard, Score{Peer: a.Peer, Error: absDiff(correct, *a.Value)})
	}
	sort.SliceStable(scoreboard, func(i, j int) bool {
		return scoreboard[i].Error < scoreboard[j].Error
	})
	return scoreboard
}

// Winner returns the first peer of a ranked scoreboard.
func Winner(scoreboard []Score) (PeerID, bool) {
	if len(scoreboard) == 0 {
		return "", false
	}
	return scoreboard[0].Peer, true
}

// absDiff is |a-b|. It is computed on uint64 so that it never overflows.
func absDiff(a, b int64) uint64 {
	if a > b {
		return uint64(a) - uint64(b)
	}
	return uint64(b) - uint64(a)
}

// Order is the outcome of comparing an incoming state with the local copy.
type Order int

const (
	Stale Order = iota
	Duplicate
	Newer
)

func (o Order) String() string {
	switch o {
	case Stale:
		return "stale"
	case Duplicate:
		return "duplicate"
	case Newer:
		return "newer"
	}
	return "unknown"
}

// Compare decides whether incoming replaces local. The higher version wins.
// Two states with the same version and different active peers come from peers
// that promoted themselves concurrently: the smaller active id wins, so all
// receivers settle on the same one. Same version and same active peer is a
// repeated delivery.
func Compare(incoming, local RoundState) Order {
	switch {
	case local.ActivePeer == "":
		return Newer
	case incoming.Version > local.Version:
		return Newer
	case incoming.Version < local.Version:
		return Stale
	case incoming.ActivePeer == local.ActivePeer:
		return Duplicate
	case incoming.ActivePeer < local.ActivePeer:
		return Newer
	default:
		return Stale
	}
}
