// Package registry holds the AOIs captured during a session, grouped by the
// page they were captured on, and exports them as a locator document.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hazyhaar/webaoi/address"
	"github.com/hazyhaar/webaoi/locator"
)

// AOI is one captured area of interest.
type AOI struct {
	Label   string          `json:"label"`
	Address address.Address `json:"address"`
}

// PageEntry holds the AOIs captured on one page, in capture order.
type PageEntry struct {
	PageKey string `json:"page_key"`
	AOIs    []AOI  `json:"aois"`
}

// Registry is an ordered, grow-only collection of page entries. It is safe
// for concurrent use.
type Registry struct {
	mu    sync.Mutex
	pages []PageEntry
	index map[string]int
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Capture appends (label, a) to the entry for pageKey, creating it on first
// use, and returns its index within the page. An empty label is a cancelled
// capture and leaves the registry unchanged; ok is then false. Duplicate
// labels are kept.
func (r *Registry) Capture(pageKey, label string, a address.Address) (index int, ok bool) {
	if label == "" {
		return -1, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	i, seen := r.index[pageKey]
	if !seen {
		r.pages = append(r.pages, PageEntry{PageKey: pageKey})
		i = len(r.pages) - 1
		r.index[pageKey] = i
	}
	r.pages[i].AOIs = append(r.pages[i].AOIs, AOI{Label: label, Address: a})
	return len(r.pages[i].AOIs) - 1, true
}

// Pages returns a copy of all entries in first-seen order.
func (r *Registry) Pages() []PageEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]PageEntry, len(r.pages))
	for i, p := range r.pages {
		out[i] = PageEntry{PageKey: p.PageKey, AOIs: append([]AOI(nil), p.AOIs...)}
	}
	return out
}

// Page returns a copy of the AOIs captured on pageKey.
func (r *Registry) Page(pageKey string) []AOI {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[pageKey]
	if !ok {
		return nil
	}
	return append([]AOI(nil), r.pages[i].AOIs...)
}

// Lookup returns the index-th AOI of pageKey.
func (r *Registry) Lookup(pageKey string, index int) (AOI, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[pageKey]
	if !ok || index < 0 || index >= len(r.pages[i].AOIs) {
		return AOI{}, false
	}
	return r.pages[i].AOIs[index], true
}

// Len returns the total number of captured AOIs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, p := range r.pages {
		n += len(p.AOIs)
	}
	return n
}

// Export builds the locator document. Labels repeated on a page keep their
// first position and take the last address. AOIs whose address does not
// parse are left out and reported in the returned error; the document is
// still returned. Export never mutates the registry.
func (r *Registry) Export() (*locator.Document, error) {
	pages := r.Pages()

	doc := &locator.Document{}
	var errs []error
	for _, p := range pages {
		if _, ok := doc.Page(p.PageKey); !ok {
			doc.Pages = append(doc.Pages, locator.Page{URL: p.PageKey})
		}
		for _, a := range p.AOIs {
			if _, err := address.Parse(a.Address); err != nil {
				errs = append(errs, fmt.Errorf("registry: export %q on %s: %w", a.Label, p.PageKey, err))
				continue
			}
			doc.Set(p.PageKey, a.Label, Chain(a.Address))
		}
	}
	return doc, errors.Join(errs...)
}

// Chain is the single-link locator chain for a captured address.
func Chain(a address.Address) []locator.Locator {
	return []locator.Locator{{
		Type: "locator",
		Args: locator.Args{"selector": address.Selector(a)},
	}}
}

// Restore appends every definition of doc whose chain is a single xpath
// selector, e.g. to continue a session from a saved file. It returns the
// number of AOIs restored.
func (r *Registry) Restore(doc *locator.Document) int {
	n := 0
	for _, p := range doc.Pages {
		for _, d := range p.AOIs {
			if len(d.Chain) != 1 || d.Chain[0].Type != "locator" || d.Chain[0].Next != nil {
				continue
			}
			sel, _ := d.Chain[0].Args["selector"].(string)
			a, err := address.FromSelector(sel)
			if err != nil {
				continue
			}
			if _, ok := r.Capture(p.URL, d.Name, a); ok {
				n++
			}
		}
	}
	return n
}
