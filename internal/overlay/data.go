package overlay

import (
	"chorddht/internal/domain"
	"chorddht/internal/sink"
	"errors"
	"fmt"
)

// Lookup resolves name to its stored value. It starts from an
// arbitrary live entry point, runs find_successor(H(name)), then get
// on the result, and reports the hop count to the sink.
func (o *Overlay) Lookup(name string) ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	entry, ok := o.entryPoint()
	if !ok {
		return nil, fmt.Errorf("lookup(%q): %w", name, ErrNodeNotFound)
	}

	key := o.space.HashName(name)
	owner, hops, err := entry.FindSuccessor(key)
	if err != nil {
		o.observe(sink.KindLookup, "", hops, "error")
		return nil, fmt.Errorf("lookup(%q): %w", name, err)
	}

	value, err := owner.Get(name)
	if err != nil {
		if errors.Is(err, domain.ErrResourceNotFound) {
			o.observe(sink.KindLookup, owner.ID().String(), hops, "not_found")
			return nil, fmt.Errorf("lookup(%q): %w", name, ErrNotFound)
		}
		o.observe(sink.KindLookup, owner.ID().String(), hops, "error")
		return nil, fmt.Errorf("lookup(%q): %w", name, err)
	}
	o.observe(sink.KindLookup, owner.ID().String(), hops, "")
	return value, nil
}

// Put stores (name, value) at the node responsible for H(name),
// overwriting any prior value under the same name, and returns the id
// of the node it was placed on.
func (o *Overlay) Put(name string, value []byte) (domain.ID, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	entry, ok := o.entryPoint()
	if !ok {
		return nil, fmt.Errorf("put(%q): %w", name, ErrNodeNotFound)
	}

	key := o.space.HashName(name)
	owner, hops, err := entry.FindSuccessor(key)
	if err != nil {
		o.observe(sink.KindPut, "", hops, "error")
		return nil, fmt.Errorf("put(%q): %w", name, err)
	}
	if err := owner.Put(name, value); err != nil {
		o.observe(sink.KindPut, owner.ID().String(), hops, "error")
		return nil, fmt.Errorf("put(%q): %w", name, err)
	}
	o.observe(sink.KindPut, owner.ID().String(), hops, "")
	o.reportTotals()
	o.nextSeq()
	return owner.ID(), nil
}

// Delete removes the value stored under name, returning ErrNotFound if
// no such name is currently stored.
func (o *Overlay) Delete(name string) error {
	o.mu.RLock()
	defer o.mu.RUnlock()

	entry, ok := o.entryPoint()
	if !ok {
		return fmt.Errorf("delete(%q): %w", name, ErrNodeNotFound)
	}

	key := o.space.HashName(name)
	owner, hops, err := entry.FindSuccessor(key)
	if err != nil {
		o.observe(sink.KindDelete, "", hops, "error")
		return fmt.Errorf("delete(%q): %w", name, err)
	}
	if err := owner.Delete(name); err != nil {
		if errors.Is(err, domain.ErrResourceNotFound) {
			o.observe(sink.KindDelete, owner.ID().String(), hops, "not_found")
			return fmt.Errorf("delete(%q): %w", name, ErrNotFound)
		}
		o.observe(sink.KindDelete, owner.ID().String(), hops, "error")
		return fmt.Errorf("delete(%q): %w", name, err)
	}
	o.observe(sink.KindDelete, owner.ID().String(), hops, "")
	o.reportTotals()
	o.nextSeq()
	return nil
}
