package routingtable

import "chorddht/internal/logger"

// Option configures a RoutingTable at construction time.
type Option func(*RoutingTable)

// WithLogger sets the logger used by the routing table.
func WithLogger(l logger.Logger) Option {
	return func(rt *RoutingTable) {
		rt.logger = l
	}
}
