package host

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/webaoi/geometry"
	"github.com/hazyhaar/webaoi/locator"
)

// engine adapts a Page to locator.Engine for one context.
type engine struct {
	p   *Page
	ctx context.Context
}

func (e engine) DocumentElement() (Handle, error) {
	var h *Handle
	if err := e.p.call(e.ctx, &h, "docElement"); err != nil {
		return Handle{}, err
	}
	if h == nil {
		return Handle{}, fmt.Errorf("host: no document element")
	}
	return *h, nil
}

func (e engine) CSS(scope Handle, sel string) ([]Handle, error) {
	var out []Handle
	err := e.p.call(e.ctx, &out, "css", scope, sel)
	return out, err
}

func (e engine) XPath(scope Handle, expr string) ([]Handle, error) {
	var out []Handle
	err := e.p.call(e.ctx, &out, "xpath", scope, expr)
	return out, err
}

func (e engine) Text(h Handle) (string, error) {
	var s string
	err := e.p.call(e.ctx, &s, "text", h)
	return s, err
}

func (e engine) Attribute(h Handle, name string) (string, bool, error) {
	var pair [2]any
	if err := e.p.call(e.ctx, &pair, "attribute", h, name); err != nil {
		return "", false, err
	}
	v, _ := pair[0].(string)
	has, _ := pair[1].(bool)
	return v, has, nil
}

func (e engine) ElementChildren(h Handle) ([]Handle, error) {
	var out []Handle
	err := e.p.call(e.ctx, &out, "children", h)
	return out, err
}

// Locate resolves a locator chain in the current document.
func (p *Page) Locate(ctx context.Context, chain []locator.Locator) ([]Handle, error) {
	return locator.ResolveChain[Handle](engine{p: p, ctx: ctx}, chain)
}

// ResolveBox returns the box of the first element matched by chain.
func (p *Page) ResolveBox(ctx context.Context, chain []locator.Locator) (geometry.BoundingBox, bool, error) {
	found, err := p.Locate(ctx, chain)
	if err != nil {
		return geometry.BoundingBox{}, false, err
	}
	if len(found) == 0 {
		return geometry.BoundingBox{}, false, nil
	}
	var r [4]float64
	if err := p.call(ctx, &r, "box", found[0]); err != nil {
		return geometry.BoundingBox{}, false, err
	}
	return geometry.BoundingBox{X: r[0], Y: r[1], Width: r[2], Height: r[3]}, true, nil
}

// Element returns the Rod element behind h.
func (p *Page) Element(ctx context.Context, h Handle) (*rod.Element, error) {
	el, err := p.page.Context(ctx).ElementByJS(rod.Eval(`(h) => window.__webaoi.element(h)`, h))
	if err != nil {
		return nil, fmt.Errorf("host: element %s: %w", h, err)
	}
	return el, nil
}

// Screenshot captures the page as PNG; full includes content beyond the
// viewport.
func (p *Page) Screenshot(ctx context.Context, full bool) ([]byte, error) {
	img, err := p.page.Context(ctx).Screenshot(full, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("host: screenshot: %w", err)
	}
	return img, nil
}

// ScreenshotElement captures one element as PNG after scrolling it into
// view.
func (p *Page) ScreenshotElement(ctx context.Context, h Handle) ([]byte, error) {
	el, err := p.Element(ctx, h)
	if err != nil {
		return nil, err
	}
	img, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, fmt.Errorf("host: screenshot element: %w", err)
	}
	return img, nil
}
