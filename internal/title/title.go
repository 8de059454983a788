// Package title builds canonical MediaWiki titles from name segments.
package title

import "strings"

// Namespaces used by the migration.
const (
	Main     = ""
	Category = "Category"
	File     = "File"
)

// Separator joins hierarchical segments.
const Separator = "/"

// Builder accumulates segments for one title. Segment text is used
// verbatim; a "/" inside a segment produces an extra sub-page level.
type Builder struct {
	namespace string
	segments  []string
}

// New creates a Builder for the given namespace.
func New(namespace string) *Builder {
	return &Builder{namespace: namespace}
}

// Append adds one path segment.
func (b *Builder) Append(segment string) *Builder {
	b.segments = append(b.segments, segment)
	return b
}

// Invert reverses the accumulated segment order. Category chains are
// collected leaf-to-root and displayed root-to-leaf.
func (b *Builder) Invert() *Builder {
	for i, j := 0, len(b.segments)-1; i < j; i, j = i+1, j-1 {
		b.segments[i], b.segments[j] = b.segments[j], b.segments[i]
	}
	return b
}

// Segments returns a copy of the current segment list.
func (b *Builder) Segments() []string {
	out := make([]string, len(b.segments))
	copy(out, b.segments)
	return out
}

// Build returns the namespace-qualified title.
func (b *Builder) Build() string {
	joined := strings.Join(b.segments, Separator)
	return Qualify(b.namespace, joined)
}

// Qualify prefixes name with namespace, unless it already carries it.
func Qualify(namespace, name string) string {
	if namespace == "" || strings.HasPrefix(name, namespace+":") {
		return name
	}
	return namespace + ":" + name
}

// Strip removes the namespace prefix from a qualified title.
func Strip(namespace, qualified string) string {
	return strings.TrimPrefix(qualified, namespace+":")
}
