package node

import (
	"chorddht/internal/domain"
	"chorddht/internal/logger"
)

// isResponsibleFor reports whether this node is currently responsible
// for key, i.e. key lies in (predecessor.id, self.id]. If no
// predecessor is known yet, the node treats itself as responsible for
// everything (the same degenerate-ring rule used by the ring-arithmetic
// half-open interval when a == b).
func (n *Node) isResponsibleFor(key domain.ID) bool {
	pred := n.rt.GetPredecessor()
	if pred == nil {
		return true
	}
	return key.InHalfOpen(pred, n.ID())
}

// Put stores (name, value) at the node responsible for H(name). If
// this node is not responsible, it delegates to the correct owner by
// resolving find_successor and calling Put directly on it — an
// in-process method call standing in for what would be an RPC in a
// networked deployment.
func (n *Node) Put(name string, value []byte) error {
	key := n.Space().HashName(name)
	if n.isResponsibleFor(key) {
		return n.StoreLocal(key, name, value)
	}
	target, _, err := n.FindSuccessor(key)
	if err != nil {
		return err
	}
	return target.Put(name, value)
}

// Get retrieves the value stored under name, delegating to the
// responsible node when this one is not it.
func (n *Node) Get(name string) ([]byte, error) {
	key := n.Space().HashName(name)
	if n.isResponsibleFor(key) {
		return n.RetrieveLocal(key)
	}
	target, _, err := n.FindSuccessor(key)
	if err != nil {
		return nil, err
	}
	return target.Get(name)
}

// Delete removes the value stored under name, delegating to the
// responsible node when this one is not it.
func (n *Node) Delete(name string) error {
	key := n.Space().HashName(name)
	if n.isResponsibleFor(key) {
		return n.RemoveLocal(key)
	}
	target, _, err := n.FindSuccessor(key)
	if err != nil {
		return err
	}
	return target.Delete(name)
}

// StoreLocal wraps value through the configured codec and writes it to
// this node's local store under key/name, bypassing any routing.
func (n *Node) StoreLocal(key domain.ID, name string, value []byte) error {
	wrapped, err := n.codec.Wrap(value)
	if err != nil {
		return err
	}
	n.store.Put(domain.Resource{Key: key, Name: name, Value: wrapped})
	n.recomputeBytesStored()
	n.lgr.Debug("put: stored locally", logger.F("name", name), logger.F("key", key.String()))
	return nil
}

// RetrieveLocal reads and unwraps the resource stored under key from
// this node's local store, bypassing any routing.
func (n *Node) RetrieveLocal(key domain.ID) ([]byte, error) {
	res, err := n.store.Get(key)
	if err != nil {
		return nil, err
	}
	return n.codec.Unwrap(res.Value)
}

// RemoveLocal deletes the resource stored under key from this node's
// local store, bypassing any routing.
func (n *Node) RemoveLocal(key domain.ID) error {
	if err := n.store.Delete(key); err != nil {
		return err
	}
	n.recomputeBytesStored()
	return nil
}

// TransferKeysTo moves every resource this node holds that falls in
// (target.predecessor, target.id] into target's local store, removing
// it from this node's. Used when target becomes responsible for a
// subrange previously owned by self, during insert_node and
// remove_node.
func (n *Node) TransferKeysTo(target *Node) error {
	predID := target.rt.GetPredecessor()
	if predID == nil {
		predID = target.ID()
	}
	resources, err := n.store.Between(predID, target.ID())
	if err != nil {
		return err
	}
	for _, res := range resources {
		target.store.Put(res)
		if err := n.store.Delete(res.Key); err != nil {
			return err
		}
	}
	n.recomputeBytesStored()
	target.recomputeBytesStored()
	n.lgr.Debug("transfer_keys_to: migrated resources",
		logger.F("target", target.ID().String()),
		logger.F("count", len(resources)),
	)
	return nil
}

// RefreshCounters recomputes the bytes-stored counter from the current
// contents of the local store. Used after a caller (e.g. snapshot
// restore) has written directly to Store() and bypassed StoreLocal.
func (n *Node) RefreshCounters() {
	n.recomputeBytesStored()
}

func (n *Node) recomputeBytesStored() {
	var total uint64
	for _, res := range n.store.All() {
		total += uint64(len(res.Value))
	}
	n.counters.setBytesStored(total)
}
