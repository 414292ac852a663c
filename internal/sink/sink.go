// Package sink defines the passive event/counter observer the overlay
// reports operations to. A sink must never block the overlay or fail
// observably; implementations that aggregate or forward events are
// responsible for doing so without propagating errors back.
package sink

import (
	"sync"
	"time"
)

// Kind names the operation an Event describes. Values are logical
// labels, not a closed enumeration any consumer must switch on.
type Kind string

const (
	KindCreate     Kind = "create"
	KindInsertNode Kind = "insert_node"
	KindRemoveNode Kind = "remove_node"
	KindLookup     Kind = "lookup"
	KindPut        Kind = "put"
	KindGet        Kind = "get"
	KindDelete     Kind = "delete"
	KindStabilize  Kind = "stabilize_all"
	KindRebalance  Kind = "rebalance"
)

// Event is a single observation reported by the overlay.
type Event struct {
	Kind    Kind
	NodeID  string // the node primarily involved, hex-encoded
	Hops    int    // hop count, meaningful for lookup/put/get/delete
	Elapsed time.Duration
	Err     string // logical error tag, empty on success
}

// Sink receives Events. Observe must not block and must not panic;
// implementations that can fail should swallow the failure internally.
type Sink interface {
	Observe(e Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Observe(Event) {}

// Counters is a Sink that aggregates events into the logical counter
// set named in the specification's external-interfaces section:
// total_nodes, total_keys, operations_total{kind}, lookup_hops,
// node_load{id}.
type Counters struct {
	mu         sync.Mutex
	totalNodes int
	totalKeys  int
	opsTotal   map[Kind]uint64
	lookupHops uint64
	nodeLoad   map[string]uint64
}

// NewCounters returns an empty Counters sink.
func NewCounters() *Counters {
	return &Counters{
		opsTotal: make(map[Kind]uint64),
		nodeLoad: make(map[string]uint64),
	}
}

// Observe records e into the running aggregates.
func (c *Counters) Observe(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opsTotal[e.Kind]++
	if e.Kind == KindLookup {
		c.lookupHops += uint64(e.Hops)
	}
	if e.NodeID != "" {
		c.nodeLoad[e.NodeID]++
	}
}

// SetTotals updates the point-in-time node and key counts. The overlay
// calls this after every topology or data change rather than the
// Counters sink tracking it independently, since the overlay already
// knows the authoritative counts.
func (c *Counters) SetTotals(nodes, keys int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalNodes = nodes
	c.totalKeys = keys
}

// Snapshot is a point-in-time, read-only copy of the aggregated counters.
type Snapshot struct {
	TotalNodes int
	TotalKeys  int
	OpsTotal   map[Kind]uint64
	LookupHops uint64
	NodeLoad   map[string]uint64
}

// Snapshot returns a copy of the current counter values.
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	ops := make(map[Kind]uint64, len(c.opsTotal))
	for k, v := range c.opsTotal {
		ops[k] = v
	}
	load := make(map[string]uint64, len(c.nodeLoad))
	for k, v := range c.nodeLoad {
		load[k] = v
	}
	return Snapshot{
		TotalNodes: c.totalNodes,
		TotalKeys:  c.totalKeys,
		OpsTotal:   ops,
		LookupHops: c.lookupHops,
		NodeLoad:   load,
	}
}
