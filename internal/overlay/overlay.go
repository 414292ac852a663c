// Package overlay owns the collection of live nodes that make up a
// Chord ring: it drives the join/leave protocol, the stabilization
// sweep, data placement, and state snapshot/restore. It is the only
// package that ever holds a live *node.Node reference; every node
// resolves its peers back through the overlay's Directory
// implementation, by id.
package overlay

import (
	"chorddht/internal/codec"
	"chorddht/internal/domain"
	"chorddht/internal/logger"
	"chorddht/internal/node"
	"chorddht/internal/routingtable"
	"chorddht/internal/sink"
	"chorddht/internal/storage"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Config configures a new Overlay at construction time.
type Config struct {
	// Bits is the ring exponent m; R = 2^Bits.
	Bits int

	// InitialIDs optionally seeds the ring with nodes at these ids,
	// linked into a sorted ring with fully-initialized finger tables.
	// Leave nil/empty to start in the Empty state.
	InitialIDs []uint64

	// StabilizationPassesCap bounds Rebalance's sweep count. Zero
	// selects the default, ceil(log2(R)) + 2.
	StabilizationPassesCap int

	Codec  codec.Codec
	Sink   sink.Sink
	Logger logger.Logger
}

// Overlay is the collection of live nodes forming one Chord ring.
type Overlay struct {
	mu sync.RWMutex // serializes topology changes; lookups take the read lock

	space   domain.Space
	nodes   map[string]*node.Node // keyed by ID.String()
	seq     uint64                // monotonic operation counter, atomic
	stabCap int

	codec codec.Codec
	sink  sink.Sink
	lgr   logger.Logger
}

// Create validates cfg and builds an Overlay. If InitialIDs is
// non-empty, the nodes are linked into a single sorted ring and every
// finger table is initialized via find_successor before Create
// returns, so invariants I1-I5 already hold. An empty InitialIDs
// starts the overlay in the Empty state; the first InsertNode call
// transitions it to Active.
func Create(cfg Config) (*Overlay, error) {
	space, err := domain.NewSpace(cfg.Bits)
	if err != nil {
		return nil, fmt.Errorf("overlay create: %w", err)
	}

	seen := make(map[uint64]bool, len(cfg.InitialIDs))
	ids := make([]uint64, 0, len(cfg.InitialIDs))
	for _, raw := range cfg.InitialIDs {
		if raw >= space.Size() {
			return nil, fmt.Errorf("overlay create: id %d: %w", raw, ErrIdOutOfRange)
		}
		if seen[raw] {
			return nil, fmt.Errorf("overlay create: id %d: %w", raw, ErrIdConflict)
		}
		seen[raw] = true
		ids = append(ids, raw)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	stabCap := cfg.StabilizationPassesCap
	if stabCap <= 0 {
		stabCap = defaultStabilizationCap(space)
	}

	lgr := cfg.Logger
	if lgr == nil {
		lgr = &logger.NopLogger{}
	}
	snk := cfg.Sink
	if snk == nil {
		snk = sink.Nop{}
	}
	cdc := cfg.Codec
	if cdc == nil {
		cdc = codec.Nop{}
	}

	o := &Overlay{
		space:   space,
		nodes:   make(map[string]*node.Node, len(ids)),
		stabCap: stabCap,
		codec:   cdc,
		sink:    snk,
		lgr:     lgr,
	}

	for _, raw := range ids {
		o.addNode(space.FromUint64(raw))
	}

	if len(ids) > 0 {
		o.linkRing(ids)
		for _, n := range o.orderedNodes() {
			for i := 0; i < space.Bits; i++ {
				if err := n.FixFinger(i); err != nil {
					return nil, fmt.Errorf("overlay create: fix_finger: %w", err)
				}
			}
		}
	}

	o.reportTotals()
	o.observe(sink.KindCreate, "", 0, "")
	return o, nil
}

// defaultStabilizationCap returns ceil(log2(R)) + 2.
func defaultStabilizationCap(space domain.Space) int {
	r := space.Size()
	bits := 0
	for v := r - 1; v > 0; v >>= 1 {
		bits++
	}
	return bits + 2
}

// addNode constructs and registers a node.Node at id, wired with its
// own routing table and local store, without linking it into the ring.
func (o *Overlay) addNode(id domain.ID) *node.Node {
	rt := routingtable.New(id, o.space, routingtable.WithLogger(o.lgr))
	store := storage.NewMemoryStorage(o.lgr)
	n := node.New(rt, store, o, node.WithLogger(o.lgr), node.WithCodec(o.codec))
	o.nodes[id.String()] = n
	return n
}

// linkRing connects the already-registered nodes at sorted ids into a
// single ring: successor/predecessor links only, no fingers.
func (o *Overlay) linkRing(sortedIDs []uint64) {
	n := len(sortedIDs)
	for i, raw := range sortedIDs {
		cur := o.nodes[o.space.FromUint64(raw).String()]
		succ := o.nodes[o.space.FromUint64(sortedIDs[(i+1)%n]).String()]
		pred := o.nodes[o.space.FromUint64(sortedIDs[(i-1+n)%n]).String()]
		cur.RoutingTable().SetSuccessor(succ.ID())
		cur.RoutingTable().SetPredecessor(pred.ID())
	}
}

// Resolve implements node.Directory: it is the table every Node
// consults to turn an id back into a live peer. Resolve takes no lock
// of its own: it runs from inside node operations that the overlay
// invokes while already holding mu (read or write).
func (o *Overlay) Resolve(id domain.ID) (*node.Node, bool) {
	n, ok := o.nodes[id.String()]
	return n, ok
}

// orderedNodes returns every live node sorted by id, for deterministic
// iteration (stabilize_all sweeps, health checks, graph export).
func (o *Overlay) orderedNodes() []*node.Node {
	out := make([]*node.Node, 0, len(o.nodes))
	for _, n := range o.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID().Cmp(out[j].ID()) < 0 })
	return out
}

// entryPoint picks a deterministic live node to start a lookup or
// introduce a join from: the smallest id currently present. Any live
// node is a valid entry point per the specification; picking the
// smallest makes behavior reproducible across runs and in tests.
func (o *Overlay) entryPoint() (*node.Node, bool) {
	nodes := o.orderedNodes()
	if len(nodes) == 0 {
		return nil, false
	}
	return nodes[0], true
}

func (o *Overlay) reportTotals() {
	keys := 0
	for _, n := range o.nodes {
		keys += len(n.Store().All())
	}
	if c, ok := o.sink.(*sink.Counters); ok {
		c.SetTotals(len(o.nodes), keys)
	}
}

func (o *Overlay) observe(kind sink.Kind, nodeID string, hops int, errTag string) {
	o.sink.Observe(sink.Event{Kind: kind, NodeID: nodeID, Hops: hops, Err: errTag})
}

// nextSeq advances and returns the overlay's monotonic operation
// sequence number. Safe to call under either o.mu.Lock or o.mu.RLock,
// since Put/Delete only ever hold the read lock.
func (o *Overlay) nextSeq() uint64 {
	return atomic.AddUint64(&o.seq, 1)
}

// SeqNum returns the number of topology- or data-mutating operations
// this overlay has completed since creation.
func (o *Overlay) SeqNum() uint64 {
	return atomic.LoadUint64(&o.seq)
}

// Space returns the identifier space this overlay was created with.
func (o *Overlay) Space() domain.Space {
	return o.space
}

// NodeCount returns the number of live nodes.
func (o *Overlay) NodeCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.nodes)
}
