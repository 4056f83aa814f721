// Package htmltree adapts parsed HTML documents (golang.org/x/net/html) to the
// dom capabilities. It backs offline address resolution (the resolve command
// and the webaoi_resolve_html tool) and the core package tests.
package htmltree

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/hazyhaar/webaoi/dom"
)

// ErrForeignNode is returned when a handle was not produced by this package.
var ErrForeignNode = errors.New("htmltree: foreign node handle")

// Doc is a parsed HTML document. Its node handles are *html.Node values.
type Doc struct {
	doc  *html.Node
	body *html.Node
}

// Parse reads an HTML document. The parser always synthesizes a body.
func Parse(r io.Reader) (*Doc, error) {
	n, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmltree: parse: %w", err)
	}
	return New(n)
}

// ParseString is Parse over a string.
func ParseString(s string) (*Doc, error) {
	return Parse(strings.NewReader(s))
}

// New wraps an already parsed document node.
func New(doc *html.Node) (*Doc, error) {
	body := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "body"
	})
	if body == nil {
		return nil, errors.New("htmltree: document has no body")
	}
	return &Doc{doc: doc, body: body}, nil
}

// Document returns the underlying document node.
func (d *Doc) Document() *html.Node { return d.doc }

// Body returns the addressing root.
func (d *Doc) Body() *html.Node { return d.body }

func (d *Doc) Root() (dom.Node, error) { return d.body, nil }

func (d *Doc) IsRoot(n dom.Node) bool {
	h, ok := n.(*html.Node)
	return ok && h == d.body
}

func (d *Doc) Parent(n dom.Node) (dom.Node, error) {
	h, err := node(n)
	if err != nil {
		return nil, err
	}
	p := h.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil, nil
	}
	return p, nil
}

func (d *Doc) Children(n dom.Node) ([]dom.Node, error) {
	h, err := node(n)
	if err != nil {
		return nil, err
	}
	var out []dom.Node
	for c := h.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out, nil
}

func (d *Doc) Tag(n dom.Node) (string, error) {
	h, err := node(n)
	if err != nil {
		return "", err
	}
	return strings.ToLower(h.Data), nil
}

func (d *Doc) Attr(n dom.Node, name string) (string, error) {
	h, err := node(n)
	if err != nil {
		return "", err
	}
	v, _ := attr(h, name)
	return v, nil
}

// QueryPath evaluates an XPath subset and returns the first match in
// document order, or nil.
func (d *Doc) QueryPath(path string) (dom.Node, error) {
	matches, err := d.Query(path)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

// Find returns the first element matched by pred in document order.
func (d *Doc) Find(pred func(*html.Node) bool) *html.Node {
	return findFirst(d.doc, pred)
}

// ByID returns the first element whose id is id.
func (d *Doc) ByID(id string) *html.Node {
	return findFirst(d.doc, func(n *html.Node) bool {
		v, ok := attr(n, "id")
		return ok && v == id
	})
}

// --- locator engine over goquery ---

// DocumentElement returns the top scope for locator resolution.
func (d *Doc) DocumentElement() (*html.Node, error) {
	if top := findFirst(d.doc, func(n *html.Node) bool { return n.Type == html.ElementNode }); top != nil {
		return top, nil
	}
	return nil, errors.New("htmltree: empty document")
}

// CSS returns the descendants of scope matching sel.
func (d *Doc) CSS(scope *html.Node, sel string) ([]*html.Node, error) {
	m, err := cascadia.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("htmltree: css %q: %w", sel, err)
	}
	return goquery.NewDocumentFromNode(scope).FindMatcher(m).Nodes, nil
}

// XPath evaluates expr. Absolute expressions ignore scope; expressions
// starting with "." are evaluated below scope.
func (d *Doc) XPath(scope *html.Node, expr string) ([]*html.Node, error) {
	if rel, ok := strings.CutPrefix(expr, "."); ok {
		return evaluate(scope, rel)
	}
	return d.Query(expr)
}

// Text returns the text content of n.
func (d *Doc) Text(n *html.Node) (string, error) {
	return goquery.NewDocumentFromNode(n).Text(), nil
}

// Attribute returns the value of name on n and whether it is present.
func (d *Doc) Attribute(n *html.Node, name string) (string, bool, error) {
	v, ok := goquery.NewDocumentFromNode(n).Attr(name)
	return v, ok, nil
}

// ElementChildren returns the element children of n.
func (d *Doc) ElementChildren(n *html.Node) ([]*html.Node, error) {
	return goquery.NewDocumentFromNode(n).Children().Nodes, nil
}

func node(n dom.Node) (*html.Node, error) {
	h, ok := n.(*html.Node)
	if !ok || h == nil {
		return nil, ErrForeignNode
	}
	return h, nil
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func findFirst(n *html.Node, pred func(*html.Node) bool) *html.Node {
	if pred(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m := findFirst(c, pred); m != nil {
			return m
		}
	}
	return nil
}
