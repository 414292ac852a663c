package overlay

import "chorddht/internal/graph"

// graphSource adapts an Overlay to graph.Source without exposing
// *node.Node or the overlay's internal locking to the graph package.
type graphSource struct{ o *Overlay }

func (g graphSource) Nodes() []graph.NodeView {
	views := make([]graph.NodeView, 0, len(g.o.nodes))
	for _, n := range g.o.orderedNodes() {
		rt := n.RoutingTable()

		var succID string
		if s := rt.GetSuccessor(); s != nil {
			succID = s.String()
		}
		var predID string
		if p := rt.GetPredecessor(); p != nil {
			predID = p.String()
		}

		fingers := rt.FingerList()
		fingerIDs := make([]string, len(fingers))
		for i, f := range fingers {
			if f != nil {
				fingerIDs[i] = f.String()
			}
		}

		resources := n.Store().All()
		stored := make([]graph.StoredKey, len(resources))
		for i, res := range resources {
			stored[i] = graph.StoredKey{Key: res.Key.String(), Name: res.Name}
		}

		views = append(views, graph.NodeView{
			ID:            n.ID().String(),
			SuccessorID:   succID,
			PredecessorID: predID,
			FingerIDs:     fingerIDs,
			StoredKeys:    stored,
		})
	}
	return views
}

// ExportGraph delegates to internal/graph for the (node, role, target)
// edge projection consumed by renderers.
func (o *Overlay) ExportGraph() []graph.Edge {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return graph.Export(graphSource{o: o})
}
