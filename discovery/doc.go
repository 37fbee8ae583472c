// Package discovery implements the directories quiz peers find each other with.
//
// A directory maps names to the address a peer serves its remote calls on.
// Peers register as a namespace followed by their id and list the whole
// namespace to build their roster.
//
// Two directories are provided:
//
// Registry and Client: a small HTTP name server backed by a bolt database, and
// its client. Every Client carries a random instance id, so a name can only be
// removed by the process that registered it.
//
//	store, err := discovery.NewStore("registry.db")
//	...
//	discovery.NewRegistry(ctx, log, discovery.RegistryConfig{Listener: l, Store: store})
//
//	c := discovery.NewClient("192.168.1.42:53550", 2*time.Second)
//	err = c.Register(ctx, "intuition.alice", "192.168.1.7:41000")
//	peers, err := c.List(ctx, "intuition.")
//
// Multicast: a directory without a server for peers on the same network.
// Every process announces its own name to 239.0.0.1 and remembers the
// announcements it receives for a limited time. A random key prefixes every
// packet, so a process ignores its own announcements.
package discovery
