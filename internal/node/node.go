// Package node implements a single Chord participant: its finger
// table, successor/predecessor links, local store, and the routing
// operations the overlay drives it through.
package node

import (
	"chorddht/internal/codec"
	"chorddht/internal/domain"
	"chorddht/internal/logger"
	"chorddht/internal/routingtable"
	"chorddht/internal/storage"
	"errors"
	"sync"
)

// ErrPeerNotFound is returned when a node resolves an id through its
// Directory and finds no live node registered under it. Overlay-level
// callers wrap it with the failing operation's name and return it.
var ErrPeerNotFound = errors.New("node: peer not found")

// Directory resolves an id to the live Node that owns it. The overlay
// implements Directory over its node table; nodes never hold direct
// references to one another, only ids, so removal is a single table
// deletion with no dangling pointers to clean up.
type Directory interface {
	Resolve(id domain.ID) (*Node, bool)
}

// Counters accumulates the per-node statistics named in the
// specification: lookup count, lookup hop total, bytes stored.
type Counters struct {
	mu          sync.Mutex
	Lookups     uint64
	LookupHops  uint64
	BytesStored uint64
}

func (c *Counters) recordLookup(hops int) {
	c.mu.Lock()
	c.Lookups++
	c.LookupHops += uint64(hops)
	c.mu.Unlock()
}

func (c *Counters) setBytesStored(n uint64) {
	c.mu.Lock()
	c.BytesStored = n
	c.mu.Unlock()
}

// Snapshot returns a copy of the current counter values.
func (c *Counters) Snapshot() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Counters{Lookups: c.Lookups, LookupHops: c.LookupHops, BytesStored: c.BytesStored}
}

// Node is a single participant on the ring.
type Node struct {
	rt    *routingtable.RoutingTable
	store storage.Storage
	dir   Directory
	codec codec.Codec
	lgr   logger.Logger

	counters Counters
}

// New creates a Node backed by the given routing table, local store,
// and directory. By default it uses a no-op logger and a no-op codec;
// override either with the functional options.
func New(rt *routingtable.RoutingTable, store storage.Storage, dir Directory, opts ...Option) *Node {
	n := &Node{
		rt:    rt,
		store: store,
		dir:   dir,
		codec: codec.Nop{},
		lgr:   &logger.NopLogger{},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// ID returns the node's identifier.
func (n *Node) ID() domain.ID {
	return n.rt.Self()
}

// Space returns the identifier space this node was built against.
func (n *Node) Space() domain.Space {
	return n.rt.Space()
}

// RoutingTable exposes the underlying routing table, for callers (the
// overlay, health checks, graph export) that need direct read access
// to successor/predecessor/finger entries.
func (n *Node) RoutingTable() *routingtable.RoutingTable {
	return n.rt
}

// Store exposes the underlying local store, for callers that need
// direct read access (health checks, graph export, snapshot).
func (n *Node) Store() storage.Storage {
	return n.store
}

// Counters returns a copy of this node's current statistics.
func (n *Node) Counters() Counters {
	return n.counters.Snapshot()
}

func (n *Node) resolve(id domain.ID) (*Node, error) {
	peer, ok := n.dir.Resolve(id)
	if !ok {
		return nil, ErrPeerNotFound
	}
	return peer, nil
}
