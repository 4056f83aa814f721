// Package locator is the portable wire contract for AOI definitions: an
// ordered document mapping page URLs to named locator chains, plus the
// compilation of chains into host-neutral query steps.
//
// JSON shape:
//
//	{
//	    "https://example.com/": {
//	        "logo": [{"type": "locator", "args": {"selector": "xpath=id(\"site-logo\")"}}]
//	    }
//	}
//
// Object key order is significant on both encode and decode.
package locator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Args holds locator arguments. Keys ending in "(re)" carry regular
// expressions instead of literal strings.
type Args map[string]any

// Locator is one link of a chain. Next, when set, is applied to the result
// of this link before the following chain element.
type Locator struct {
	Type string   `json:"type"`
	Args Args     `json:"args,omitempty"`
	Next *Locator `json:"next,omitempty"`
}

// Definition is one named AOI on a page.
type Definition struct {
	Name  string
	Chain []Locator
}

// Page groups the definitions captured on one URL.
type Page struct {
	URL  string
	AOIs []Definition
}

// Document is the ordered export format.
type Document struct {
	Pages []Page
}

// Page returns the page for url.
func (d *Document) Page(url string) (*Page, bool) {
	for i := range d.Pages {
		if d.Pages[i].URL == url {
			return &d.Pages[i], true
		}
	}
	return nil, false
}

// Set stores chain under (url, name). A repeated name replaces the earlier
// chain but keeps its position.
func (d *Document) Set(url, name string, chain []Locator) {
	p, ok := d.Page(url)
	if !ok {
		d.Pages = append(d.Pages, Page{URL: url})
		p = &d.Pages[len(d.Pages)-1]
	}
	for i := range p.AOIs {
		if p.AOIs[i].Name == name {
			p.AOIs[i].Chain = chain
			return
		}
	}
	p.AOIs = append(p.AOIs, Definition{Name: name, Chain: chain})
}

// Lookup returns the chain stored under (url, name).
func (d *Document) Lookup(url, name string) ([]Locator, bool) {
	p, ok := d.Page(url)
	if !ok {
		return nil, false
	}
	for _, a := range p.AOIs {
		if a.Name == name {
			return a.Chain, true
		}
	}
	return nil, false
}

// Len returns the total number of definitions.
func (d *Document) Len() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.AOIs)
	}
	return n
}

// Encode writes d as JSON to w. An empty indent writes compact JSON.
// HTML characters in URLs and selectors are not escaped.
func (d *Document) Encode(w io.Writer, indent string) error {
	raw, err := d.MarshalJSON()
	if err != nil {
		return err
	}
	if indent != "" {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", indent); err != nil {
			return fmt.Errorf("locator: indent: %w", err)
		}
		raw = buf.Bytes()
	}
	raw = append(raw, '\n')
	_, err = w.Write(raw)
	return err
}

// MarshalJSON writes pages and definitions in insertion order.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range d.Pages {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, p.URL); err != nil {
			return nil, err
		}
		buf.WriteString(":{")
		for j, a := range p.AOIs {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(&buf, a.Name); err != nil {
				return nil, err
			}
			buf.WriteByte(':')
			chain := a.Chain
			if chain == nil {
				chain = []Locator{}
			}
			if err := writeJSON(&buf, chain); err != nil {
				return nil, err
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("locator: marshal: %w", err)
	}
	// Encoder terminates each value with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// UnmarshalJSON reads a document preserving key order. Repeated keys
// follow Set semantics.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	var out Document

	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		url, err := stringToken(dec)
		if err != nil {
			return err
		}
		if err := expectDelim(dec, '{'); err != nil {
			return err
		}
		if _, ok := out.Page(url); !ok {
			out.Pages = append(out.Pages, Page{URL: url})
		}
		for dec.More() {
			name, err := stringToken(dec)
			if err != nil {
				return err
			}
			var chain []Locator
			if err := dec.Decode(&chain); err != nil {
				return fmt.Errorf("locator: unmarshal %q/%q: %w", url, name, err)
			}
			out.Set(url, name, chain)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return err
	}
	*d = out
	return nil
}

// Decode reads a document from r.
func Decode(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("locator: read: %w", err)
	}
	var d Document
	if err := d.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return &d, nil
}

var errShape = errors.New("locator: document must be an object of objects")

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("locator: unmarshal: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: got %v, want %v", errShape, tok, want)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("locator: unmarshal: %w", err)
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: got key %v", errShape, tok)
	}
	return s, nil
}
