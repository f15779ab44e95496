package topic

import (
	"fmt"
	"strings"
)

// Builder constructs MQTT topic strings following the pattern {root}/{segment}/{identifier}.
// Segment constants live with the protocol that owns them; Builder only knows the layout.
type Builder struct {
	// root is the base namespace for all topics (e.g., "rover/v1").
	root string
}

// NewBuilder creates a new Builder with the specified root namespace.
// Leading and trailing slashes are trimmed.
func NewBuilder(root string) *Builder {
	return &Builder{root: strings.Trim(root, "/")}
}

// Root returns the namespace every built topic starts with.
func (b *Builder) Root() string {
	return b.root
}

// Build returns {root}/{segment}/{id}.
func (b *Builder) Build(segment, id string) string {
	return fmt.Sprintf("%s/%s/%s", b.root, strings.Trim(segment, "/"), id)
}

// Wildcard returns the filter matching the segment for every identifier: {root}/{segment}/+.
func (b *Builder) Wildcard(segment string) string {
	return b.Build(segment, Wildcard)
}

// ID extracts the trailing identifier of a topic built for segment.
// It reports false when topic does not belong to segment under this root.
func (b *Builder) ID(segment, topic string) (string, bool) {
	prefix := fmt.Sprintf("%s/%s/", b.root, strings.Trim(segment, "/"))
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(topic, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
