// Package network carries the remote calls between quiz peers over HTTP.
//
// # Core Components
//
// Peer: serves the local Service to the other peers and implements the client
// side of every call.
//
// # Calls
//
// Synchronous calls (GetRoundState, GetAnswer, Probe) return the decoded reply
// or an error wrapping ErrCommunication. Fire-and-forget calls (SetRoundState,
// ResetAnswer, Notify) return at once: the request is sent by its own goroutine,
// failures are logged at debug level and nothing is retried.
//
// Every call is bounded by the client timeout set with WithTimeout.
//
// # TLS
//
// WithCertificate switches the peer to https, and WithLimitedCAs restricts the
// trusted peers to the ones whose certificate is in the given pool, in both
// directions. GenerateSelfSignedCert creates the certificates.
package network
