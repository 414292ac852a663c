package overlay

import (
	"chorddht/internal/node"
	"fmt"
	"math/rand"
)

// InvariantViolation is a structured report of invariant breaches found
// by HealthCheck, surfaced only there — never returned by ordinary
// operations, which repair themselves on the next stabilization sweep
// instead of failing.
type InvariantViolation struct {
	I1 []string // successor/predecessor symmetry breaks, by node id
	I3 []string // finger entries inconsistent with find_successor, by node id
	I4 []string // stored keys not residing on their rightful owner, by name
	I5 []string // nodes unreachable via the successor cycle, or an extra/short cycle
}

// Report summarizes the outcome of a HealthCheck run.
type Report struct {
	NodeCount  int
	KeyCount   int
	Violations InvariantViolation
}

// Clean reports whether the check found zero violations of any kind.
func (r Report) Clean() bool {
	return len(r.Violations.I1) == 0 && len(r.Violations.I3) == 0 &&
		len(r.Violations.I4) == 0 && len(r.Violations.I5) == 0
}

// HealthCheck walks the live ring and verifies I1 (successor/predecessor
// symmetry), I5 (single cycle covering every node), I3 on a random
// finger sample per node, and I4 (every stored name resides on its
// rightful owner by re-hashing it).
func (o *Overlay) HealthCheck() Report {
	o.mu.RLock()
	defer o.mu.RUnlock()

	rep := Report{NodeCount: len(o.nodes)}
	nodes := o.orderedNodes()

	for _, n := range nodes {
		if succID := n.RoutingTable().GetSuccessor(); succID != nil {
			if succ, ok := o.Resolve(succID); ok {
				predOfSucc := succ.RoutingTable().GetPredecessor()
				if predOfSucc == nil || !predOfSucc.Equal(n.ID()) {
					rep.Violations.I1 = append(rep.Violations.I1, n.ID().String())
				}
			} else {
				rep.Violations.I5 = append(rep.Violations.I5, n.ID().String())
			}
		}
	}

	rep.Violations.I5 = append(rep.Violations.I5, o.checkCycle(nodes)...)

	for _, n := range nodes {
		rep.Violations.I3 = append(rep.Violations.I3, o.checkFingerSample(n)...)
	}

	keyCount := 0
	for _, n := range nodes {
		for _, res := range n.Store().All() {
			keyCount++
			owner, _, err := n.FindSuccessor(o.space.HashName(res.Name))
			if err != nil || !owner.ID().Equal(n.ID()) {
				rep.Violations.I4 = append(rep.Violations.I4, res.Name)
			}
		}
	}
	rep.KeyCount = keyCount

	return rep
}

// checkCycle walks successors starting from an arbitrary node and
// verifies it visits exactly len(nodes) distinct ids before returning
// to start.
func (o *Overlay) checkCycle(nodes []*node.Node) []string {
	if len(nodes) == 0 {
		return nil
	}
	start := nodes[0]
	visited := map[string]bool{start.ID().String(): true}
	cur := start
	for i := 0; i < len(nodes)+1; i++ {
		succID := cur.RoutingTable().GetSuccessor()
		if succID == nil {
			return []string{fmt.Sprintf("successor chain broken at %s", cur.ID())}
		}
		if succID.Equal(start.ID()) {
			if len(visited) != len(nodes) {
				return []string{fmt.Sprintf("successor cycle covers %d nodes, want %d", len(visited), len(nodes))}
			}
			return nil
		}
		next, ok := o.Resolve(succID)
		if !ok {
			return []string{fmt.Sprintf("successor chain references missing node %s", succID)}
		}
		visited[next.ID().String()] = true
		cur = next
	}
	return []string{"successor chain did not return to start within N+1 steps"}
}

// checkFingerSample verifies a random subset of n's finger entries
// against a fresh find_successor computation.
func (o *Overlay) checkFingerSample(n *node.Node) []string {
	var violations []string
	m := o.space.Bits
	sample := m
	if sample > 4 {
		sample = 4
	}
	for k := 0; k < sample; k++ {
		i := rand.Intn(m)
		start, err := o.space.FingerStart(n.ID(), i)
		if err != nil {
			continue
		}
		want, _, err := n.FindSuccessor(start)
		if err != nil {
			continue
		}
		got := n.RoutingTable().GetFinger(i)
		if got == nil || !got.Equal(want.ID()) {
			violations = append(violations, fmt.Sprintf("%s finger[%d]", n.ID(), i))
		}
	}
	return violations
}
