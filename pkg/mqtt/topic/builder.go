package topic

import (
	"strings"
)

// Builder constructs MQTT topic strings of the form {root}/{segment}/{robotID}.
type Builder struct {
	// root is the namespace shared by every topic (e.g. "robot/v1").
	root string
}

// NewBuilder creates a Builder for the given root namespace.
// Leading and trailing slashes are trimmed.
func NewBuilder(root string) *Builder {
	return &Builder{root: strings.Trim(root, "/")}
}

// Root returns the namespace the builder was created with.
func (b *Builder) Root() string {
	return b.root
}

// Build returns {root}/{segment}/{id}.
func (b *Builder) Build(segment, id string) string {
	if b.root == "" {
		return segment + "/" + id
	}
	return b.root + "/" + segment + "/" + id
}
