package node

import (
	"chorddht/internal/domain"
	"chorddht/internal/logger"
	"fmt"
)

// FindSuccessor returns the node responsible for key, along with the
// number of recursive hops taken to find it.
//
// Algorithm: if key lies in (self.id, successor.id], the successor is
// responsible. Otherwise the closest preceding finger is asked to
// continue the search; if no finger qualifies, the successor is
// returned as a last resort (this also guarantees termination on a
// one-node ring, since closest_preceding_finger then always reports
// self).
func (n *Node) FindSuccessor(key domain.ID) (*Node, int, error) {
	cur := n
	hops := 0
	for {
		succID := cur.rt.GetSuccessor()
		if succID == nil {
			return nil, hops, fmt.Errorf("node %s: successor unset", cur.ID())
		}
		if key.Between(cur.rt.Self(), succID) {
			succ, err := cur.resolve(succID)
			if err != nil {
				return nil, hops, err
			}
			n.counters.recordLookup(hops)
			return succ, hops, nil
		}

		cpf := cur.closestPrecedingFingerID(key)
		if cpf.Equal(cur.rt.Self()) {
			succ, err := cur.resolve(succID)
			if err != nil {
				return nil, hops, err
			}
			n.counters.recordLookup(hops)
			return succ, hops, nil
		}

		next, err := cur.resolve(cpf)
		if err != nil {
			return nil, hops, err
		}
		hops++
		cur = next
	}
}

// closestPrecedingFingerID scans finger[m-1] down to finger[0] and
// returns the first id strictly between self and key. If none
// qualifies, it returns self.
func (n *Node) closestPrecedingFingerID(key domain.ID) domain.ID {
	self := n.rt.Self()
	fingers := n.rt.FingerList()
	for i := len(fingers) - 1; i >= 0; i-- {
		f := fingers[i]
		if f != nil && f.InOpen(self, key) {
			return f
		}
	}
	return self
}

// ClosestPrecedingFinger is the exported form of the routing primitive
// used to advance find_successor, resolving the winning finger entry
// (or self) to a live Node.
func (n *Node) ClosestPrecedingFinger(key domain.ID) (*Node, error) {
	id := n.closestPrecedingFingerID(key)
	if id.Equal(n.rt.Self()) {
		return n, nil
	}
	return n.resolve(id)
}

// Join attaches this node to the ring. If introducer is nil, the node
// forms a singleton ring by itself. Otherwise it asks the introducer
// to find its own successor and leaves the predecessor unset until the
// stabilization protocol fills it in; fingers are left pointing at the
// successor until fix_finger corrects them.
func (n *Node) Join(introducer *Node) error {
	if introducer == nil {
		n.rt.InitSingleNode()
		n.lgr.Info("join: formed singleton ring")
		return nil
	}

	succ, _, err := introducer.FindSuccessor(n.ID())
	if err != nil {
		return fmt.Errorf("join: resolving initial successor: %w", err)
	}

	n.rt.SetSuccessor(succ.ID())
	n.rt.SetPredecessor(nil)

	fingers := n.rt.FingerList()
	for i := range fingers {
		n.rt.SetFinger(i, succ.ID())
	}

	n.lgr.Info("join: attached to ring", logger.F("successor", succ.ID().String()))
	return nil
}

// Stabilize asks the successor for its predecessor; if that predecessor
// lies strictly between self and the current successor, it becomes the
// new successor (the ring has grown a node self didn't know about yet).
// Either way, the (possibly updated) successor is notified of self as a
// predecessor candidate.
func (n *Node) Stabilize() error {
	succID := n.rt.GetSuccessor()
	if succID == nil {
		return fmt.Errorf("stabilize: successor unset")
	}
	succ, err := n.resolve(succID)
	if err != nil {
		return fmt.Errorf("stabilize: resolving successor: %w", err)
	}

	if x := succ.rt.GetPredecessor(); x != nil && x.InOpen(n.ID(), succID) {
		n.rt.SetSuccessor(x)
		succID = x
		succ, err = n.resolve(succID)
		if err != nil {
			return fmt.Errorf("stabilize: resolving updated successor: %w", err)
		}
	}

	succ.Notify(n)
	return nil
}

// Notify is called by a node that believes it might be self's
// predecessor. It is accepted if self currently has no predecessor, or
// if the candidate is closer than the current one.
func (n *Node) Notify(candidate *Node) {
	pred := n.rt.GetPredecessor()
	if pred == nil || candidate.ID().InOpen(pred, n.ID()) {
		n.rt.SetPredecessor(candidate.ID())
		n.lgr.Debug("notify: predecessor updated", logger.F("predecessor", candidate.ID().String()))
	}
}

// FixFinger recomputes finger table entry i.
func (n *Node) FixFinger(i int) error {
	start, err := n.Space().FingerStart(n.ID(), i)
	if err != nil {
		return fmt.Errorf("fix_finger(%d): %w", i, err)
	}
	succ, _, err := n.FindSuccessor(start)
	if err != nil {
		return fmt.Errorf("fix_finger(%d): %w", i, err)
	}
	n.rt.SetFinger(i, succ.ID())
	return nil
}
