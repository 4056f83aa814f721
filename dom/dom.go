// Package dom defines the capabilities webaoi needs from a live document
// tree. The tree itself belongs to the host (a browser page, a parsed HTML
// file); webaoi only borrows node handles for the duration of one operation
// and never stores them.
package dom

import "strings"

// IgnoreClass marks the tool's own chrome. Nodes carrying it can never be
// hovered or captured.
const IgnoreClass = "web_aoi_ignore_hovers"

// Node is an opaque handle into a document tree. Handles must be comparable:
// two handles for the same node compare equal.
type Node any

// Tree navigates a document. All methods operate on element nodes only.
type Tree interface {
	// Root returns the addressing root (the body element).
	Root() (Node, error)
	// IsRoot reports whether n is the addressing root.
	IsRoot(n Node) bool
	// Parent returns the parent element of n, or nil when n has none.
	Parent(n Node) (Node, error)
	// Children returns the element children of n in document order.
	Children(n Node) ([]Node, error)
	// Tag returns the lower-case tag name of n.
	Tag(n Node) (string, error)
	// Attr returns the value of attribute name on n, "" when absent.
	Attr(n Node, name string) (string, error)
}

// PathQuerier is implemented by trees that can evaluate a structural path
// expression natively (e.g. document.evaluate in a browser). It returns a
// nil node without error when nothing matches.
type PathQuerier interface {
	QueryPath(path string) (Node, error)
}

// ID returns the id attribute of n.
func ID(t Tree, n Node) (string, error) {
	return t.Attr(n, "id")
}

// HasClass reports whether n carries class in its class attribute.
func HasClass(t Tree, n Node, class string) (bool, error) {
	v, err := t.Attr(n, "class")
	if err != nil {
		return false, err
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true, nil
		}
	}
	return false, nil
}

// Ignored reports whether n belongs to the tool's own chrome.
func Ignored(t Tree, n Node) (bool, error) {
	return HasClass(t, n, IgnoreClass)
}
