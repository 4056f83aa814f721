package htmltree

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Query evaluates a practical XPath subset against the document:
//   - id("main") / id('main')  element by id, optionally followed by /steps
//   - //body/div[2]            descendant anywhere, then child steps
//   - /html/body/main          absolute path
//   - div[@class='x'], div[2]  attribute and positional predicates
//
// Results are in document order without duplicates.
func (d *Doc) Query(path string) ([]*html.Node, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("htmltree: xpath: empty expression")
	}

	if strings.HasPrefix(path, "id(") {
		id, rest, err := splitIDCall(path)
		if err != nil {
			return nil, err
		}
		base := d.ByID(id)
		if base == nil {
			return nil, nil
		}
		if rest == "" {
			return []*html.Node{base}, nil
		}
		if !strings.HasPrefix(rest, "/") || strings.HasPrefix(rest, "//") {
			return nil, fmt.Errorf("htmltree: xpath %q: expected child steps after id()", path)
		}
		return evaluate(base, rest)
	}
	return evaluate(d.doc, path)
}

// evaluate runs path relative to ctx. A leading "//" searches descendants,
// a leading "/" (or none) follows children.
func evaluate(ctx *html.Node, path string) ([]*html.Node, error) {
	if rest, ok := strings.CutPrefix(path, "//"); ok {
		first, tail, _ := strings.Cut(rest, "/")
		tag, pred, err := parseStep(first)
		if err != nil {
			return nil, err
		}
		var matches []*html.Node
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if matchesStep(n, tag, pred) {
				matches = append(matches, n)
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(ctx)
		if tail == "" {
			return matches, nil
		}
		return followChildren(matches, tail)
	}
	return followChildren([]*html.Node{ctx}, strings.TrimPrefix(path, "/"))
}

func followChildren(current []*html.Node, path string) ([]*html.Node, error) {
	for _, step := range strings.Split(path, "/") {
		if step == "" {
			return nil, fmt.Errorf("htmltree: xpath: empty step in %q", path)
		}
		tag, pred, err := parseStep(step)
		if err != nil {
			return nil, err
		}
		var next []*html.Node
		seen := make(map[*html.Node]bool)
		for _, parent := range current {
			for c := parent.FirstChild; c != nil; c = c.NextSibling {
				if !seen[c] && matchesStep(c, tag, pred) {
					seen[c] = true
					next = append(next, c)
				}
			}
		}
		current = next
	}
	return current, nil
}

type predicate struct {
	attrName  string
	attrValue string
	hasValue  bool
	position  int // 1-based
}

// parseStep parses "div", "div[@class='x']", "div[@data-x]", "div[2]".
func parseStep(step string) (string, *predicate, error) {
	idx := strings.IndexByte(step, '[')
	if idx < 0 {
		return strings.ToLower(step), nil, nil
	}
	if !strings.HasSuffix(step, "]") || idx == 0 {
		return "", nil, fmt.Errorf("htmltree: xpath: bad step %q", step)
	}

	tag := strings.ToLower(step[:idx])
	body := step[idx+1 : len(step)-1]

	if n, err := strconv.Atoi(body); err == nil {
		if n < 1 {
			return "", nil, fmt.Errorf("htmltree: xpath: position must be >= 1 in %q", step)
		}
		return tag, &predicate{position: n}, nil
	}

	if expr, ok := strings.CutPrefix(body, "@"); ok {
		p := &predicate{}
		if name, val, found := strings.Cut(expr, "="); found {
			p.attrName = name
			p.attrValue = strings.Trim(val, `'"`)
			p.hasValue = true
		} else {
			p.attrName = expr
		}
		return tag, p, nil
	}

	return "", nil, fmt.Errorf("htmltree: xpath: unsupported predicate in %q", step)
}

func matchesStep(n *html.Node, tag string, pred *predicate) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if tag != "*" && n.Data != tag {
		return false
	}
	if pred == nil {
		return true
	}

	if pred.attrName != "" {
		val, ok := attr(n, pred.attrName)
		if pred.hasValue {
			return ok && val == pred.attrValue
		}
		return ok
	}

	// Position counts element siblings sharing the tag.
	pos := 0
	for s := n.Parent.FirstChild; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode && s.Data == n.Data {
			pos++
			if s == n {
				return pos == pred.position
			}
		}
	}
	return false
}

// splitIDCall splits `id("x")/rest` into x and /rest.
func splitIDCall(path string) (string, string, error) {
	if len(path) < 6 {
		return "", "", fmt.Errorf("htmltree: xpath %q: truncated id()", path)
	}
	q := path[3]
	if q != '"' && q != '\'' {
		return "", "", fmt.Errorf("htmltree: xpath %q: id() needs a string literal", path)
	}
	end := strings.IndexByte(path[4:], q)
	if end < 0 || !strings.HasPrefix(path[4+end+1:], ")") {
		return "", "", fmt.Errorf("htmltree: xpath %q: unterminated id()", path)
	}
	return path[4 : 4+end], path[4+end+2:], nil
}
