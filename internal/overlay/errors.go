package overlay

import "errors"

// Sentinel errors for the public operations. Each is returned bare or
// wrapped with fmt.Errorf("%w: ...") to attach the offending id or
// detail, mirroring the domain package's ErrResourceNotFound style
// rather than introducing a parallel custom-error-type hierarchy.
var (
	ErrIdOutOfRange            = errors.New("overlay: id out of range")
	ErrIdConflict              = errors.New("overlay: id already present")
	ErrNodeNotFound            = errors.New("overlay: node not found")
	ErrLastNodeRemoval         = errors.New("overlay: cannot remove the only node")
	ErrSnapshotVersionMismatch = errors.New("overlay: snapshot version mismatch")
	ErrSnapshotInconsistent    = errors.New("overlay: snapshot inconsistent")
	ErrRebalanceDivergence     = errors.New("overlay: rebalance did not converge")
	ErrNotFound                = errors.New("overlay: name not found")
)
