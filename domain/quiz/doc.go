// Package quiz implements the domain model of the peer-to-peer quiz: the
// replicated round state, the rules every peer evaluates locally and the
// error taxonomy shared by the coordination and transport layers.
//
// # Core Types
//
// RoundState: The replicated record describing the current round. It is
// mutated only by the active peer and propagated in full on every transition.
//
// Roster: The last-known mapping from peer id to network address.
//
// Score: A (peer, absolute error) pair of a completed round.
//
// # Rules
//
// NextActive chooses the next active peer by sorted-order rotation. Every peer
// evaluates it independently on the same roster, which is what lets a failover
// converge without any coordination.
//
// RankAnswers and Winner score a round: the smallest absolute error wins and
// ties go to the first peer in roster order.
//
// Compare orders two competing round states, so that concurrent promotions
// after a crash converge on a single active peer.
package quiz
