// Package codec defines the pluggable value-wrapping collaborator the
// overlay passes stored values through, keeping the core itself opaque
// to any encryption or compression scheme an operator may want.
package codec

// Codec wraps values on the way into storage and unwraps them on the
// way out. Implementations are free to encrypt, compress, or otherwise
// transform the payload; the core neither inspects nor enforces any
// property of the result.
type Codec interface {
	Wrap(value []byte) ([]byte, error)
	Unwrap(value []byte) ([]byte, error)
}

// Nop is the zero-behavior Codec: it returns the value unchanged. It is
// the default used when no codec is configured.
type Nop struct{}

func (Nop) Wrap(value []byte) ([]byte, error) { return value, nil }

func (Nop) Unwrap(value []byte) ([]byte, error) { return value, nil }
