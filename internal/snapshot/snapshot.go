// Package snapshot defines the on-disk/in-memory representation of a
// whole overlay's state, and its YAML encoding. It has no dependency on
// internal/overlay so the overlay package can depend on it instead of
// the reverse.
package snapshot

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Version is the only snapshot schema version this package produces or
// accepts.
const Version = 1

// Resource is one stored (key, name, value) triple belonging to a node.
// Value is a plain []byte field, which yaml.v3 encodes as a YAML
// sequence of byte values, not as a base64 string.
type Resource struct {
	Key   uint64 `yaml:"key"`
	Name  string `yaml:"name"`
	Value []byte `yaml:"value"`
}

// Node is the persisted state of a single ring participant.
type Node struct {
	ID            uint64     `yaml:"id"`
	SuccessorID   uint64     `yaml:"successor_id"`
	PredecessorID *uint64    `yaml:"predecessor_id"`
	FingerIDs     []uint64   `yaml:"finger_ids"`
	Store         []Resource `yaml:"store"`
}

// Document is the full state of one overlay at a point in time.
type Document struct {
	Version   int    `yaml:"version"`
	Bits      int    `yaml:"m"`
	CreatedAt int64  `yaml:"created_at"`
	Nodes     []Node `yaml:"nodes"`
}

// NewDocument builds an empty Document stamped with the given creation
// time (the caller supplies it; this package never calls time.Now so
// that snapshot output stays reproducible in tests).
func NewDocument(bits int, createdAt time.Time) Document {
	return Document{Version: Version, Bits: bits, CreatedAt: createdAt.Unix()}
}

// Encode serializes the document as YAML.
func Encode(doc Document) ([]byte, error) {
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("snapshot encode: %w", err)
	}
	return out, nil
}

// Decode parses a YAML-encoded document.
func Decode(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("snapshot decode: %w", err)
	}
	return doc, nil
}
