package routingtable

import (
	"chorddht/internal/domain"
	"chorddht/internal/logger"
	"fmt"
	"sync"
)

// routingEntry holds a single identifier behind a read/write mutex,
// allowing safe concurrent reads and writes of a routing-table slot.
// A nil id means the slot is unset.
type routingEntry struct {
	id domain.ID
	mu sync.RWMutex
}

// RoutingTable represents the routing state of a node on the ring: its
// successor and predecessor links plus a finger table of size
// space.Bits. Entries hold identifiers only, never node references —
// resolving an id to a live node is the caller's responsibility, via
// the overlay's node table. This avoids ownership cycles between
// nodes and makes removal a single table deletion.
type RoutingTable struct {
	logger      logger.Logger   // logger for routing table operations
	space       domain.Space    // identifier space configuration
	self        domain.ID       // the id of the node owning this routing table
	successor   *routingEntry   // id of the immediate successor on the ring
	predecessor *routingEntry   // id of the immediate predecessor on the ring
	finger      []*routingEntry // finger[i] = id of the successor of (id + 2^i) mod R
}

// New creates and initializes a new RoutingTable for the node self.
//
// The routing table starts with unset successor, predecessor, and
// finger entries. By default, logging is disabled (NopLogger) unless
// overridden with options.
func New(self domain.ID, space domain.Space, opts ...Option) *RoutingTable {
	rt := &RoutingTable{
		self:        self,
		space:       space,
		successor:   &routingEntry{},
		predecessor: &routingEntry{},
		finger:      make([]*routingEntry, space.Bits),
		logger:      &logger.NopLogger{},
	}
	for i := range rt.finger {
		rt.finger[i] = &routingEntry{}
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.logger.Debug("routing table initialized")
	return rt
}

// InitSingleNode configures the routing table to represent a
// singleton ring: successor, predecessor, and every finger entry point
// to the owning node itself.
func (rt *RoutingTable) InitSingleNode() {
	rt.successor = &routingEntry{id: rt.self}
	rt.predecessor = &routingEntry{id: rt.self}
	for i := range rt.finger {
		rt.finger[i] = &routingEntry{id: rt.self}
	}
	rt.logger.Debug("routing table set to singleton ring")
}

// Space returns the identifier space configuration of the ring.
func (rt *RoutingTable) Space() domain.Space {
	return rt.space
}

// Self returns the id of the node owning this routing table.
func (rt *RoutingTable) Self() domain.ID {
	return rt.self
}

// GetSuccessor returns the id of the current successor, or nil if unset.
func (rt *RoutingTable) GetSuccessor() domain.ID {
	rt.successor.mu.RLock()
	id := rt.successor.id
	rt.successor.mu.RUnlock()
	rt.logger.Debug("GetSuccessor: successor retrieved", logger.F("successor", idString(id)))
	return id
}

// SetSuccessor updates the successor pointer to the given id.
func (rt *RoutingTable) SetSuccessor(id domain.ID) {
	rt.successor.mu.Lock()
	rt.successor.id = id
	rt.successor.mu.Unlock()
	rt.logger.Debug("SetSuccessor: successor updated", logger.F("successor", idString(id)))
}

// GetPredecessor returns the id of the current predecessor, or nil if unset.
func (rt *RoutingTable) GetPredecessor() domain.ID {
	rt.predecessor.mu.RLock()
	id := rt.predecessor.id
	rt.predecessor.mu.RUnlock()
	rt.logger.Debug("GetPredecessor: predecessor retrieved", logger.F("predecessor", idString(id)))
	return id
}

// SetPredecessor updates the predecessor pointer to the given id.
// Passing nil clears it (used while a join is in flight).
func (rt *RoutingTable) SetPredecessor(id domain.ID) {
	rt.predecessor.mu.Lock()
	rt.predecessor.id = id
	rt.predecessor.mu.Unlock()
	rt.logger.Debug("SetPredecessor: predecessor updated", logger.F("predecessor", idString(id)))
}

// GetFinger returns the id stored at finger table index i.
// If i is out of range, it returns nil and logs a warning.
func (rt *RoutingTable) GetFinger(i int) domain.ID {
	if i < 0 || i >= len(rt.finger) {
		rt.logger.Warn(
			"GetFinger: index out of range",
			logger.F("requested", i),
			logger.F("valid_range", fmt.Sprintf("[0..%d]", len(rt.finger)-1)),
		)
		return nil
	}
	entry := rt.finger[i]
	entry.mu.RLock()
	id := entry.id
	entry.mu.RUnlock()
	rt.logger.Debug("GetFinger: entry retrieved", logger.F("index", i), logger.F("id", idString(id)))
	return id
}

// SetFinger updates finger table index i with the given id.
// If i is out of range, it logs a warning and does nothing.
func (rt *RoutingTable) SetFinger(i int, id domain.ID) {
	if i < 0 || i >= len(rt.finger) {
		rt.logger.Warn(
			"SetFinger: index out of range",
			logger.F("requested", i),
			logger.F("valid_range", fmt.Sprintf("[0..%d]", len(rt.finger)-1)),
		)
		return
	}
	entry := rt.finger[i]
	entry.mu.Lock()
	entry.id = id
	entry.mu.Unlock()
	rt.logger.Debug("SetFinger: entry updated", logger.F("index", i), logger.F("id", idString(id)))
}

// FingerList returns a shallow copy of the finger table, including nil
// entries for fingers that have not yet been fixed, indexed 0..m-1.
func (rt *RoutingTable) FingerList() []domain.ID {
	out := make([]domain.ID, len(rt.finger))
	for i, entry := range rt.finger {
		entry.mu.RLock()
		out[i] = entry.id
		entry.mu.RUnlock()
	}
	rt.logger.Debug("FingerList snapshot", logger.F("size", len(out)))
	return out
}

// SetFingerList replaces the entire finger table. The provided slice
// must have the same length as the table's bit-width.
func (rt *RoutingTable) SetFingerList(ids []domain.ID) {
	if len(ids) != len(rt.finger) {
		rt.logger.Warn(
			"SetFingerList: length mismatch",
			logger.F("expected", len(rt.finger)),
			logger.F("got", len(ids)),
		)
		return
	}
	for i, id := range ids {
		rt.SetFinger(i, id)
	}
}

// DebugLog emits a single structured DEBUG log entry summarizing the
// entire routing table: self, predecessor, successor and finger table.
// It reads entries directly under their locks to avoid triggering the
// per-entry debug logs that the public getters produce.
func (rt *RoutingTable) DebugLog() {
	rt.predecessor.mu.RLock()
	pred := rt.predecessor.id
	rt.predecessor.mu.RUnlock()

	rt.successor.mu.RLock()
	succ := rt.successor.id
	rt.successor.mu.RUnlock()

	fingers := make([]map[string]any, 0, len(rt.finger))
	for i, entry := range rt.finger {
		entry.mu.RLock()
		id := entry.id
		entry.mu.RUnlock()
		fingers = append(fingers, map[string]any{"index": i, "id": idString(id)})
	}

	rt.logger.Debug("RoutingTable snapshot",
		logger.F("self", idString(rt.self)),
		logger.F("predecessor", idString(pred)),
		logger.F("successor", idString(succ)),
		logger.F("fingers", fingers),
	)
}

func idString(id domain.ID) string {
	if id == nil {
		return "<nil>"
	}
	return id.String()
}
