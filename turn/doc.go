// Package turn runs the turn-coordination protocol of a quiz peer.
//
// Every peer owns one Node. Exactly one peer at a time holds the active role:
// it asks a question, collects the answers and scores the round, then hands the
// role to the next peer in the sorted roster. The other peers are passive: they
// answer and wait.
//
// # Core Components
//
// Node: the per-peer state and the dispatch loop. It serves the operations
// remote peers invoke (RoundState, SetRoundState, Answer, ResetAnswer, Notify,
// ID) and decides after every accepted change what the peer does next.
//
// Round Coordinator: the cycle run by the active peer, from asking the question
// to broadcasting the results.
//
// Answer Collector: a bounded console read run by passive peers while a
// question is open.
//
// Monitor: a single one-shot timer that makes passive peers probe the active
// one, and elect a successor when it stops responding.
//
// # Collaborators
//
// Directory lists the registered peers, Transport carries the remote calls,
// Console is the operator terminal and History, when set, records completed
// rounds.
//
// # Ordering
//
// Every broadcast carries a version that the sender bumps. A receiver keeps the
// incoming state only when it is newer than its own (see quiz.Compare), so a
// repeated delivery is a no-op and two peers that promoted themselves at the
// same time settle on the same winner.
package turn
