package annotator

import (
	"fmt"
	"io"

	"golang.org/x/net/html"

	"github.com/hazyhaar/webaoi/address"
	"github.com/hazyhaar/webaoi/dom/htmltree"
	"github.com/hazyhaar/webaoi/locator"
)

// Resolution is the outcome of resolving one AOI against saved HTML.
type Resolution struct {
	Name    string `json:"name"`
	Found   bool   `json:"found"`
	Matches int    `json:"matches"`
	// Address is the canonical address of the first match.
	Address string `json:"address,omitempty"`
	Error   string `json:"error,omitempty"`
	// Content is the first match rendered as Markdown, with WithContent.
	Content string `json:"content,omitempty"`
}

type resolveOptions struct {
	content bool
}

// ResolveOption tunes ResolveHTML.
type ResolveOption func(*resolveOptions)

// WithContent fills Resolution.Content.
func WithContent() ResolveOption {
	return func(o *resolveOptions) { o.content = true }
}

// ResolveHTML parses an HTML document and resolves every AOI defined for
// pageURL in doc, in definition order. Per-AOI failures are reported in the
// Resolution, not returned.
func ResolveHTML(r io.Reader, doc *locator.Document, pageURL string, opts ...ResolveOption) ([]Resolution, error) {
	var o resolveOptions
	for _, opt := range opts {
		opt(&o)
	}
	page, ok := doc.Page(pageURL)
	if !ok {
		return nil, fmt.Errorf("annotator: resolve: no definitions for %s", pageURL)
	}
	tree, err := htmltree.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("annotator: resolve: %w", err)
	}

	out := make([]Resolution, 0, len(page.AOIs))
	for _, def := range page.AOIs {
		res := Resolution{Name: def.Name}
		found, err := locator.ResolveChain[*html.Node](tree, def.Chain)
		if err != nil {
			res.Error = err.Error()
			out = append(out, res)
			continue
		}
		res.Matches = len(found)
		res.Found = len(found) > 0
		if res.Found {
			if a, err := address.Encode(tree, found[0]); err == nil {
				res.Address = string(a)
			}
			if o.content {
				if md, err := tree.Markdown(found[0], pageURL); err == nil {
					res.Content = md
				} else {
					res.Error = err.Error()
				}
			}
		}
		out = append(out, res)
	}
	return out, nil
}
