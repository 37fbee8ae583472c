// Package ledger keeps the history of the rounds a peer has seen completed.
//
// # Core Components
//
// Blockchain: an append-only log of rounds with hash chaining for tamper
// detection.
//
// Block: a single completed round with its scoreboard, linked to the previous
// block by hash.
//
// # Usage
//
// Every peer appends the results it learns about, either by scoring its own
// round or by receiving the results of another peer. A round is identified by
// its number and asker, so a result delivered twice is stored once. Verify
// checks the whole chain at any time.
package ledger
