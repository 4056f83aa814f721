// Package geometry compares rendered element boxes and drives the ancestor
// climb used to select containers that add visible area over their child.
package geometry

import (
	"fmt"
	"strconv"

	"github.com/hazyhaar/webaoi/dom"
)

// BoundingBox is an element's rendered rectangle in viewport coordinates.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Equal reports whether all four fields are exactly equal. There is no
// tolerance: sub-pixel differences make boxes distinct.
func (b BoundingBox) Equal(o BoundingBox) bool {
	return b.X == o.X && b.Y == o.Y && b.Width == o.Width && b.Height == o.Height
}

// Equal is the function form of BoundingBox.Equal.
func Equal(a, b BoundingBox) bool { return a.Equal(b) }

// Inset shrinks b by d on every side.
func Inset(b BoundingBox, d float64) BoundingBox {
	return BoundingBox{X: b.X + d, Y: b.Y + d, Width: b.Width - 2*d, Height: b.Height - 2*d}
}

// Offset translates b by (dx, dy), e.g. viewport to document coordinates.
func (b BoundingBox) Offset(dx, dy float64) BoundingBox {
	return BoundingBox{X: b.X + dx, Y: b.Y + dy, Width: b.Width, Height: b.Height}
}

// String renders "x,y,w,h" with the shortest exact float form.
func (b BoundingBox) String() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return f(b.X) + "," + f(b.Y) + "," + f(b.Width) + "," + f(b.Height)
}

// Provider returns the rendered box of a node.
type Provider interface {
	Box(n dom.Node) (BoundingBox, error)
}

// Climb walks up from n and returns the first ancestor whose box differs
// from its child's. It always moves at least one level, and stops at the
// root without error when every ancestor shares the box. Climbing from the
// root returns the root.
func Climb(t dom.Tree, g Provider, n dom.Node) (dom.Node, error) {
	if t.IsRoot(n) {
		return n, nil
	}

	childBox, err := g.Box(n)
	if err != nil {
		return nil, fmt.Errorf("geometry: climb: %w", err)
	}

	cur := n
	for {
		parent, err := t.Parent(cur)
		if err != nil {
			return nil, fmt.Errorf("geometry: climb: %w", err)
		}
		if parent == nil {
			// Detached subtree: the topmost element is the fixed point.
			return cur, nil
		}
		if t.IsRoot(parent) {
			return parent, nil
		}
		box, err := g.Box(parent)
		if err != nil {
			return nil, fmt.Errorf("geometry: climb: %w", err)
		}
		if !box.Equal(childBox) {
			return parent, nil
		}
		cur, childBox = parent, box
	}
}
