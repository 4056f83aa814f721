package host

import (
	"errors"
	"fmt"

	"github.com/hazyhaar/webaoi/dom"
	"github.com/hazyhaar/webaoi/geometry"
)

// ErrForeignNode is returned for nodes that are not host handles.
var ErrForeignNode = errors.New("host: node is not a page handle")

func handle(n dom.Node) (Handle, error) {
	switch h := n.(type) {
	case Handle:
		return h, nil
	case *Handle:
		if h != nil {
			return *h, nil
		}
	}
	return Handle{}, fmt.Errorf("%w: %T", ErrForeignNode, n)
}

// node converts a possibly-null client handle to a dom.Node, keeping the
// interface nil when the client returned null.
func node(h *Handle) dom.Node {
	if h == nil {
		return nil
	}
	return *h
}

func (p *Page) Root() (dom.Node, error) {
	var h *Handle
	if err := p.call(p.ctx, &h, "root"); err != nil {
		return nil, err
	}
	return node(h), nil
}

func (p *Page) IsRoot(n dom.Node) bool {
	h, err := handle(n)
	if err != nil {
		return false
	}
	var root bool
	if err := p.call(p.ctx, &root, "isRoot", h); err != nil {
		p.logger.Debug("host: isRoot", "node", h, "error", err)
		return false
	}
	return root
}

func (p *Page) Parent(n dom.Node) (dom.Node, error) {
	h, err := handle(n)
	if err != nil {
		return nil, err
	}
	var parent *Handle
	if err := p.call(p.ctx, &parent, "parent", h); err != nil {
		return nil, err
	}
	return node(parent), nil
}

func (p *Page) Children(n dom.Node) ([]dom.Node, error) {
	h, err := handle(n)
	if err != nil {
		return nil, err
	}
	var kids []Handle
	if err := p.call(p.ctx, &kids, "children", h); err != nil {
		return nil, err
	}
	out := make([]dom.Node, len(kids))
	for i, k := range kids {
		out[i] = k
	}
	return out, nil
}

func (p *Page) Tag(n dom.Node) (string, error) {
	h, err := handle(n)
	if err != nil {
		return "", err
	}
	var tag string
	err = p.call(p.ctx, &tag, "tag", h)
	return tag, err
}

func (p *Page) Attr(n dom.Node, name string) (string, error) {
	h, err := handle(n)
	if err != nil {
		return "", err
	}
	var v string
	err = p.call(p.ctx, &v, "attr", h, name)
	return v, err
}

// QueryPath evaluates path with document.evaluate.
func (p *Page) QueryPath(path string) (dom.Node, error) {
	var h *Handle
	if err := p.call(p.ctx, &h, "query", path); err != nil {
		return nil, err
	}
	return node(h), nil
}

// Box returns the viewport-relative bounding client rect of n.
func (p *Page) Box(n dom.Node) (geometry.BoundingBox, error) {
	h, err := handle(n)
	if err != nil {
		return geometry.BoundingBox{}, err
	}
	var r [4]float64
	if err := p.call(p.ctx, &r, "box", h); err != nil {
		return geometry.BoundingBox{}, err
	}
	return geometry.BoundingBox{X: r[0], Y: r[1], Width: r[2], Height: r[3]}, nil
}
