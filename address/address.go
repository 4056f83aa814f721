// Package address computes and resolves canonical addresses for nodes of a
// document tree.
//
// An address is an XPath expression using the smallest amount of per-level
// information needed to re-find a node:
//
//	id("site-logo")              node with an id
//	//body                       the addressing root
//	//body/div[2]/span[1]        1-based ordinal among same-tag siblings
//	id("main")/ul[1]/li[3]       path below the nearest ancestor with an id
//
// Addresses built from ids are not anchored to tree position: if the id is
// removed or duplicated later, resolution may fail or pick another node.
package address

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/hazyhaar/webaoi/dom"
)

// Address identifies a node position in a tree at capture time.
type Address string

// Root is the fixed address of the addressing root.
const Root Address = "//body"

// SelectorPrefix is prepended to addresses in exported locators.
const SelectorPrefix = "xpath="

var (
	// ErrNotFound is wrapped by ResolutionError when no node matches.
	ErrNotFound = errors.New("no matching node")
	// ErrSyntax is wrapped by ResolutionError for malformed addresses.
	ErrSyntax = errors.New("malformed address")
	// ErrDetached is returned by Encode for nodes outside the root subtree.
	ErrDetached = errors.New("node is not attached below the root")
	// ErrNilNode is returned by Encode for a nil node.
	ErrNilNode = errors.New("nil node")
)

// ResolutionError reports an address that cannot be resolved against the
// current tree, typically because the page structure changed since capture.
type ResolutionError struct {
	Address Address
	Err     error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("address: resolve %s: %v", e.Address, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Encode returns the canonical address of n.
func Encode(t dom.Tree, n dom.Node) (Address, error) {
	if n == nil {
		return "", fmt.Errorf("address: encode: %w", ErrNilNode)
	}

	id, err := dom.ID(t, n)
	if err != nil {
		return "", fmt.Errorf("address: encode: %w", err)
	}
	if id != "" {
		if q, ok := quoteID(id); ok {
			return Address("id(" + q + ")"), nil
		}
	}

	if t.IsRoot(n) {
		return Root, nil
	}

	parent, err := t.Parent(n)
	if err != nil {
		return "", fmt.Errorf("address: encode: %w", err)
	}
	if parent == nil {
		return "", fmt.Errorf("address: encode: %w", ErrDetached)
	}

	tag, err := t.Tag(n)
	if err != nil {
		return "", fmt.Errorf("address: encode: %w", err)
	}
	tag = strings.ToLower(tag)

	ord, err := ordinal(t, parent, n, tag)
	if err != nil {
		return "", err
	}

	base, err := Encode(t, parent)
	if err != nil {
		return "", err
	}
	return base + Address("/"+tag+"["+strconv.Itoa(ord)+"]"), nil
}

// ordinal returns the 1-based position of n among the children of parent
// sharing its tag.
func ordinal(t dom.Tree, parent, n dom.Node, tag string) (int, error) {
	kids, err := t.Children(parent)
	if err != nil {
		return 0, fmt.Errorf("address: encode: %w", err)
	}
	idx := 0
	for _, k := range kids {
		kt, err := t.Tag(k)
		if err != nil {
			return 0, fmt.Errorf("address: encode: %w", err)
		}
		if strings.ToLower(kt) == tag {
			idx++
		}
		if k == n {
			return idx, nil
		}
	}
	return 0, fmt.Errorf("address: encode: %w", ErrDetached)
}

// Decode resolves a against the current tree. Trees implementing
// dom.PathQuerier evaluate the address natively; others are walked step by
// step. Failures are always *ResolutionError.
func Decode(t dom.Tree, a Address) (dom.Node, error) {
	p, err := Parse(a)
	if err != nil {
		return nil, &ResolutionError{Address: a, Err: err}
	}

	if q, ok := t.(dom.PathQuerier); ok {
		n, err := q.QueryPath(string(a))
		if err != nil {
			return nil, &ResolutionError{Address: a, Err: err}
		}
		if n == nil {
			return nil, &ResolutionError{Address: a, Err: ErrNotFound}
		}
		return n, nil
	}

	n, err := walk(t, p)
	if err != nil {
		return nil, &ResolutionError{Address: a, Err: err}
	}
	return n, nil
}

func walk(t dom.Tree, p Path) (dom.Node, error) {
	root, err := t.Root()
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, ErrNotFound
	}

	cur := root
	if p.ID != "" {
		cur, err = findByID(t, root, p.ID)
		if err != nil {
			return nil, err
		}
		if cur == nil {
			return nil, ErrNotFound
		}
	}

	for _, s := range p.Steps {
		kids, err := t.Children(cur)
		if err != nil {
			return nil, err
		}
		var next dom.Node
		seen := 0
		for _, k := range kids {
			kt, err := t.Tag(k)
			if err != nil {
				return nil, err
			}
			if strings.ToLower(kt) != s.Tag {
				continue
			}
			seen++
			if seen == s.Index {
				next = k
				break
			}
		}
		if next == nil {
			return nil, ErrNotFound
		}
		cur = next
	}
	return cur, nil
}

// findByID returns the first node in document order below (and including)
// from whose id equals id.
func findByID(t dom.Tree, from dom.Node, id string) (dom.Node, error) {
	v, err := dom.ID(t, from)
	if err != nil {
		return nil, err
	}
	if v == id {
		return from, nil
	}
	kids, err := t.Children(from)
	if err != nil {
		return nil, err
	}
	for _, k := range kids {
		n, err := findByID(t, k, id)
		if err != nil || n != nil {
			return n, err
		}
	}
	return nil, nil
}

// quoteID returns id as an XPath string literal. Ids containing both quote
// characters have no literal form. Ids containing whitespace are refused
// too: id() splits its argument into a list of ids on whitespace.
func quoteID(id string) (string, bool) {
	switch {
	case strings.ContainsFunc(id, unicode.IsSpace):
		return "", false
	case !strings.Contains(id, `"`):
		return `"` + id + `"`, true
	case !strings.Contains(id, `'`):
		return `'` + id + `'`, true
	default:
		return "", false
	}
}

// Selector returns the exported locator selector for a.
func Selector(a Address) string {
	return SelectorPrefix + string(a)
}

// FromSelector extracts the address from an "xpath=" selector.
func FromSelector(sel string) (Address, error) {
	rest, ok := strings.CutPrefix(sel, SelectorPrefix)
	if !ok {
		return "", fmt.Errorf("address: selector %q: %w", sel, ErrSyntax)
	}
	a := Address(rest)
	if _, err := Parse(a); err != nil {
		return "", err
	}
	return a, nil
}
