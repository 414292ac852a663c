package overlay

import (
	"chorddht/internal/domain"
	"chorddht/internal/logger"
	"chorddht/internal/sink"
	"fmt"
)

// InsertNode brings up a new node at id, joins it to the ring through
// an arbitrary live introducer, runs one full stabilization sweep, and
// migrates the keys it is now responsible for away from its new
// successor. If Join fails, the new node is unregistered and the
// overlay is left unchanged. A failure during the key migration is
// returned as is: the stabilization sweep and the new node's
// registration are not undone.
func (o *Overlay) InsertNode(id uint64) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if id >= o.space.Size() {
		return fmt.Errorf("insert_node(%d): %w", id, ErrIdOutOfRange)
	}
	nid := o.space.FromUint64(id)
	if _, exists := o.nodes[nid.String()]; exists {
		return fmt.Errorf("insert_node(%d): %w", id, ErrIdConflict)
	}

	introducer, ok := o.entryPoint()
	n := o.addNode(nid)
	var priorPred domain.ID
	if ok {
		if err := n.Join(introducer); err != nil {
			delete(o.nodes, nid.String())
			return fmt.Errorf("insert_node(%d): %w", id, err)
		}
		// The successor's current predecessor is the node that will
		// precede n once the ring has converged.
		if holder, found := o.Resolve(n.RoutingTable().GetSuccessor()); found {
			priorPred = holder.RoutingTable().GetPredecessor()
		}
	} else {
		if err := n.Join(nil); err != nil {
			delete(o.nodes, nid.String())
			return fmt.Errorf("insert_node(%d): %w", id, err)
		}
	}

	o.stabilizeSweep()

	// One sweep does not always reach n's predecessor before n notifies
	// its successor; fill it in so the migration window below is
	// (n.predecessor, n.id] rather than the whole ring.
	if n.RoutingTable().GetPredecessor() == nil && priorPred != nil {
		n.RoutingTable().SetPredecessor(priorPred)
	}

	// Whatever node now holds n's successor role is the one that
	// previously owned the subrange n just took over; migrate
	// whatever in that node falls in (n.predecessor, n.id] to n.
	if succID := n.RoutingTable().GetSuccessor(); succID != nil && !succID.Equal(n.ID()) {
		if holder, ok := o.Resolve(succID); ok {
			if err := holder.TransferKeysTo(n); err != nil {
				return fmt.Errorf("insert_node(%d): transfer_keys_to: %w", id, err)
			}
		}
	}

	o.reportTotals()
	o.nextSeq()
	o.observe(sink.KindInsertNode, nid.String(), 0, "")
	o.lgr.Info("insert_node: node joined", logger.F("id", nid.String()))
	return nil
}

// RemoveNode tears down the node at id: its keys are migrated to its
// successor, its neighbors are relinked, and any finger table entry
// pointing at it is repaired via find_successor. The last remaining
// node cannot be removed.
func (o *Overlay) RemoveNode(id uint64) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if id >= o.space.Size() {
		return fmt.Errorf("remove_node(%d): %w", id, ErrIdOutOfRange)
	}
	nid := o.space.FromUint64(id)
	leaving, exists := o.nodes[nid.String()]
	if !exists {
		return fmt.Errorf("remove_node(%d): %w", id, ErrNodeNotFound)
	}
	if len(o.nodes) == 1 {
		return fmt.Errorf("remove_node(%d): %w", id, ErrLastNodeRemoval)
	}

	succID := leaving.RoutingTable().GetSuccessor()
	predID := leaving.RoutingTable().GetPredecessor()

	if succID != nil && !succID.Equal(nid) {
		if succ, ok := o.Resolve(succID); ok {
			// Relink the predecessor before transferring: TransferKeysTo
			// filters the leaving node's store down to (target's
			// predecessor, target.id], so succ's predecessor must already
			// reflect the post-removal ring (leaving's own predecessor)
			// or the filter window would still exclude everything
			// leaving held in its own (now-stale) predecessor..id range.
			if predID != nil {
				succ.RoutingTable().SetPredecessor(predID)
			}
			if err := leaving.TransferKeysTo(succ); err != nil {
				return fmt.Errorf("remove_node(%d): transfer_keys_to: %w", id, err)
			}
		}
	}
	if predID != nil && !predID.Equal(nid) {
		if pred, ok := o.Resolve(predID); ok && succID != nil {
			pred.RoutingTable().SetSuccessor(succID)
		}
	}

	delete(o.nodes, nid.String())

	o.repairDanglingFingers(nid)
	o.stabilizeSweep()

	o.reportTotals()
	o.nextSeq()
	o.observe(sink.KindRemoveNode, nid.String(), 0, "")
	o.lgr.Info("remove_node: node removed", logger.F("id", nid.String()))
	return nil
}

// repairDanglingFingers recomputes every finger entry that still
// points at the id that just left the ring.
func (o *Overlay) repairDanglingFingers(gone domain.ID) {
	for _, n := range o.orderedNodes() {
		fingers := n.RoutingTable().FingerList()
		for i, f := range fingers {
			if f != nil && f.Equal(gone) {
				if err := n.FixFinger(i); err != nil {
					o.lgr.Warn("repair_dangling_fingers: fix_finger failed",
						logger.F("node", n.ID().String()), logger.F("index", i))
				}
			}
		}
	}
}

// StabilizeAll runs one full sweep: stabilize on every node, then
// fix_finger(i) for every (node, i) pair.
func (o *Overlay) StabilizeAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stabilizeSweep()
	o.observe(sink.KindStabilize, "", 0, "")
}

func (o *Overlay) stabilizeSweep() {
	for _, n := range o.orderedNodes() {
		if err := n.Stabilize(); err != nil {
			o.lgr.Warn("stabilize_all: stabilize failed", logger.F("node", n.ID().String()), logger.F("err", err.Error()))
		}
	}
	for _, n := range o.orderedNodes() {
		for i := 0; i < o.space.Bits; i++ {
			if err := n.FixFinger(i); err != nil {
				o.lgr.Warn("stabilize_all: fix_finger failed", logger.F("node", n.ID().String()), logger.F("index", i))
			}
		}
	}
}

// Rebalance repeatedly sweeps stabilize_all until a pass produces no
// change, bounded by the configured stabilization-passes cap. If the
// ring is still unstable when the cap is reached, it reports
// ErrRebalanceDivergence.
func (o *Overlay) Rebalance() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for pass := 0; pass < o.stabCap; pass++ {
		before := o.fingerprint()
		o.stabilizeSweep()
		after := o.fingerprint()
		if before == after {
			o.observe(sink.KindRebalance, "", pass, "")
			return nil
		}
	}
	o.observe(sink.KindRebalance, "", o.stabCap, "divergence")
	return ErrRebalanceDivergence
}

// fingerprint produces a cheap, order-independent string summarizing
// every node's successor/predecessor/finger links, used by Rebalance
// to detect a quiescent pass without comparing full routing tables.
func (o *Overlay) fingerprint() string {
	out := ""
	for _, n := range o.orderedNodes() {
		out += n.ID().String() + ":"
		if succ := n.RoutingTable().GetSuccessor(); succ != nil {
			out += succ.String()
		}
		out += ">"
		if pred := n.RoutingTable().GetPredecessor(); pred != nil {
			out += pred.String()
		}
		out += "|"
		for _, f := range n.RoutingTable().FingerList() {
			if f != nil {
				out += f.String()
			}
			out += ","
		}
		out += ";"
	}
	return out
}
