package overlay

import (
	"chorddht/internal/domain"
	"chorddht/internal/snapshot"
	"fmt"
	"time"
)

// Snapshot captures the full state of the overlay — every node's
// links, finger table, and store — as a snapshot.Document.
func (o *Overlay) Snapshot(createdAt time.Time) (snapshot.Document, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	doc := snapshot.NewDocument(o.space.Bits, createdAt)
	for _, n := range o.orderedNodes() {
		rt := n.RoutingTable()

		var predPtr *uint64
		if pred := rt.GetPredecessor(); pred != nil {
			v := idToUint64(pred)
			predPtr = &v
		}

		fingers := rt.FingerList()
		fingerIDs := make([]uint64, len(fingers))
		for i, f := range fingers {
			if f != nil {
				fingerIDs[i] = idToUint64(f)
			}
		}

		var succ uint64
		if s := rt.GetSuccessor(); s != nil {
			succ = idToUint64(s)
		}

		resources := n.Store().All()
		store := make([]snapshot.Resource, len(resources))
		for i, res := range resources {
			store[i] = snapshot.Resource{Key: idToUint64(res.Key), Name: res.Name, Value: res.Value}
		}

		doc.Nodes = append(doc.Nodes, snapshot.Node{
			ID:            idToUint64(n.ID()),
			SuccessorID:   succ,
			PredecessorID: predPtr,
			FingerIDs:     fingerIDs,
			Store:         store,
		})
	}
	return doc, nil
}

// Restore rebuilds an overlay's nodes, links, fingers, and stores from
// doc. If the live overlay already has nodes, doc.Bits must match its
// space; restoring into an Empty overlay adopts doc.Bits instead. After
// rebuilding, HealthCheck must report zero violations or Restore fails
// with ErrSnapshotInconsistent and the overlay's prior state (if any)
// is left untouched.
func (o *Overlay) Restore(doc snapshot.Document) error {
	if doc.Version != snapshot.Version {
		return fmt.Errorf("restore: %w: got %d, want %d", ErrSnapshotVersionMismatch, doc.Version, snapshot.Version)
	}

	o.mu.Lock()
	if len(o.nodes) > 0 && doc.Bits != o.space.Bits {
		o.mu.Unlock()
		return fmt.Errorf("restore: %w: document m=%d, overlay m=%d", ErrSnapshotInconsistent, doc.Bits, o.space.Bits)
	}
	o.mu.Unlock()

	restored, err := Create(Config{
		Bits:                   doc.Bits,
		StabilizationPassesCap: o.stabCap,
		Codec:                  o.codec,
		Sink:                   o.sink,
		Logger:                 o.lgr,
	})
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	restored.mu.Lock()
	space := restored.space
	for _, dn := range doc.Nodes {
		restored.addNode(space.FromUint64(dn.ID))
	}
	for _, dn := range doc.Nodes {
		n := restored.nodes[space.FromUint64(dn.ID).String()]
		n.RoutingTable().SetSuccessor(space.FromUint64(dn.SuccessorID))
		if dn.PredecessorID != nil {
			n.RoutingTable().SetPredecessor(space.FromUint64(*dn.PredecessorID))
		}
		for i, fid := range dn.FingerIDs {
			n.RoutingTable().SetFinger(i, space.FromUint64(fid))
		}
		for _, res := range dn.Store {
			// res.Value is already codec-wrapped, captured verbatim by
			// Snapshot from n.Store().All(); write it straight back into
			// the store instead of through StoreLocal, which would wrap
			// it through the codec a second time.
			n.Store().Put(domain.Resource{Key: space.FromUint64(res.Key), Name: res.Name, Value: res.Value})
		}
		n.RefreshCounters()
	}
	restored.reportTotals()
	restored.mu.Unlock()

	rep := restored.HealthCheck()
	if !rep.Clean() {
		return fmt.Errorf("restore: %w", ErrSnapshotInconsistent)
	}

	o.mu.Lock()
	o.space = restored.space
	o.nodes = restored.nodes
	o.mu.Unlock()
	return nil
}

func idToUint64(id domain.ID) uint64 {
	return id.ToBigInt().Uint64()
}
