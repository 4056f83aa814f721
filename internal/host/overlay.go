package host

import (
	"context"

	"github.com/hazyhaar/webaoi/dom"
	"github.com/hazyhaar/webaoi/geometry"
	"github.com/hazyhaar/webaoi/registry"
)

func (p *Page) Show(box geometry.BoundingBox) error {
	return p.call(p.ctx, nil, "show", []float64{box.X, box.Y, box.Width, box.Height})
}

func (p *Page) Hide() error {
	return p.call(p.ctx, nil, "hide")
}

func (p *Page) Append(pageKey string, index int, aoi registry.AOI) error {
	return p.call(p.ctx, nil, "append", pageKey, index, aoi.Label)
}

func (p *Page) List(pageKey string, aois []registry.AOI) error {
	labels := make([]string, len(aois))
	for i, a := range aois {
		labels[i] = a.Label
	}
	return p.call(p.ctx, nil, "list", pageKey, labels)
}

func (p *Page) Reveal(n dom.Node) error {
	h, err := handle(n)
	if err != nil {
		return err
	}
	return p.call(p.ctx, nil, "reveal", h)
}

// PromptLabel shows the browser's native prompt and blocks until the
// operator answers. A dismissed prompt reports ok=false.
func (p *Page) PromptLabel(ctx context.Context, def string) (string, bool, error) {
	var label *string
	if err := p.call(ctx, &label, "prompt", def); err != nil {
		return "", false, err
	}
	if label == nil {
		return "", false, nil
	}
	return *label, true, nil
}
