package node

import (
	"chorddht/internal/codec"
	"chorddht/internal/logger"
)

// Option configures a Node at construction time.
type Option func(*Node)

// WithLogger sets the logger used by the node.
func WithLogger(l logger.Logger) Option {
	return func(n *Node) {
		n.lgr = l
	}
}

// WithCodec sets the value codec used to wrap/unwrap stored values.
func WithCodec(c codec.Codec) Option {
	return func(n *Node) {
		n.codec = c
	}
}
