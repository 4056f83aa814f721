package locator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrUnknownType is returned for locator types outside the supported set.
	ErrUnknownType = errors.New("locator: unknown type")
	// ErrBadArgs is returned when a locator lacks a required argument or an
	// argument has the wrong shape.
	ErrBadArgs = errors.New("locator: bad arguments")
)

// Op is the kind of a compiled step.
type Op int

const (
	// OpFind searches descendants of every element in the current set.
	OpFind Op = iota
	// OpFilter keeps the elements of the current set that satisfy Match.
	OpFilter
	// OpNth keeps the Index-th element (negative counts from the end).
	OpNth
)

// Source selects which value of an element a Match tests.
type Source int

const (
	SourceText Source = iota // text content
	SourceAttr               // attribute Attr
	SourceName               // aria-label, falling back to text content
)

// Match tests one element value against a literal or a pattern.
type Match struct {
	Source  Source
	Attr    string
	Text    string
	Pattern *regexp.Regexp
	Exact   bool
	Negate  bool
}

// Test reports whether v satisfies m. Whitespace is normalized first;
// literal non-exact matching is a case-insensitive substring test.
func (m *Match) Test(v string) bool {
	v = strings.Join(strings.Fields(v), " ")
	var ok bool
	switch {
	case m.Pattern != nil:
		ok = m.Pattern.MatchString(v)
	case m.Exact:
		ok = v == strings.Join(strings.Fields(m.Text), " ")
	default:
		ok = strings.Contains(strings.ToLower(v), strings.ToLower(strings.Join(strings.Fields(m.Text), " ")))
	}
	return ok != m.Negate
}

// Step is one host-neutral query operation.
type Step struct {
	Op    Op
	CSS   string // OpFind
	XPath string // OpFind, when CSS is empty
	Match *Match // optional for OpFind, required for OpFilter
	// Innermost drops matches that have an element child matching too.
	Innermost bool
	Index     int // OpNth
}

// Compile flattens a chain (following Next links) into steps.
func Compile(chain []Locator) ([]Step, error) {
	var steps []Step
	for i := range chain {
		for l := &chain[i]; l != nil; l = l.Next {
			s, err := compileOne(l)
			if err != nil {
				return nil, err
			}
			steps = append(steps, s...)
		}
	}
	return steps, nil
}

func compileOne(l *Locator) ([]Step, error) {
	switch l.Type {
	case "locator":
		sel, err := l.Args.str("selector")
		if err != nil {
			return nil, err
		}
		var s Step
		switch {
		case strings.HasPrefix(sel, "xpath="):
			s = Step{Op: OpFind, XPath: strings.TrimPrefix(sel, "xpath=")}
		case strings.HasPrefix(sel, "//") || strings.HasPrefix(sel, "id("):
			s = Step{Op: OpFind, XPath: sel}
		default:
			s = Step{Op: OpFind, CSS: strings.TrimPrefix(sel, "css=")}
		}
		steps := []Step{s}
		for _, key := range []string{"has_text", "has_not_text"} {
			m, ok, err := l.Args.match(key, SourceText, "")
			if err != nil {
				return nil, err
			}
			if ok {
				m.Negate = key == "has_not_text"
				steps = append(steps, Step{Op: OpFilter, Match: m})
			}
		}
		return steps, nil

	case "filter":
		var steps []Step
		for _, key := range []string{"has_text", "has_not_text"} {
			m, ok, err := l.Args.match(key, SourceText, "")
			if err != nil {
				return nil, err
			}
			if ok {
				m.Negate = key == "has_not_text"
				steps = append(steps, Step{Op: OpFilter, Match: m})
			}
		}
		if len(steps) == 0 {
			return nil, fmt.Errorf("%w: filter needs has_text or has_not_text", ErrBadArgs)
		}
		return steps, nil

	case "nth":
		idx, err := l.Args.integer("index")
		if err != nil {
			return nil, err
		}
		return []Step{{Op: OpNth, Index: idx}}, nil
	case "first":
		return []Step{{Op: OpNth, Index: 0}}, nil
	case "last":
		return []Step{{Op: OpNth, Index: -1}}, nil

	case "text":
		m, err := l.Args.requireMatch("text", SourceText, "")
		if err != nil {
			return nil, err
		}
		return []Step{{Op: OpFind, CSS: "*", Match: m, Innermost: true}}, nil
	case "test_id":
		m, err := l.Args.requireMatch("test_id", SourceAttr, "data-testid")
		if err != nil {
			return nil, err
		}
		if m.Pattern == nil {
			m.Exact = true
		}
		return []Step{{Op: OpFind, CSS: "[data-testid]", Match: m}}, nil
	case "title":
		return attrFind(l, "title")
	case "alt_text":
		return attrFind(l, "alt")
	case "placeholder":
		return attrFind(l, "placeholder")
	case "label":
		return attrFind(l, "aria-label")

	case "role":
		role, err := l.Args.str("role")
		if err != nil {
			return nil, err
		}
		s := Step{Op: OpFind, CSS: roleSelector(role)}
		m, ok, err := l.Args.match("name", SourceName, "")
		if err != nil {
			return nil, err
		}
		if ok {
			s.Match = m
		}
		return []Step{s}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, l.Type)
}

// attrFind compiles the get-by-attribute family; the literal argument key is
// always "text".
func attrFind(l *Locator, attr string) ([]Step, error) {
	m, err := l.Args.requireMatch("text", SourceAttr, attr)
	if err != nil {
		return nil, err
	}
	return []Step{{Op: OpFind, CSS: "[" + attr + "]", Match: m}}, nil
}

var implicitRoles = map[string]string{
	"button":      `button, input[type="button"], input[type="submit"], input[type="reset"]`,
	"link":        `a[href], area[href]`,
	"heading":     `h1, h2, h3, h4, h5, h6`,
	"img":         `img`,
	"textbox":     `input:not([type]), input[type="text"], input[type="email"], input[type="search"], input[type="tel"], input[type="url"], textarea`,
	"checkbox":    `input[type="checkbox"]`,
	"radio":       `input[type="radio"]`,
	"combobox":    `select`,
	"list":        `ul, ol`,
	"listitem":    `li`,
	"navigation":  `nav`,
	"main":        `main`,
	"banner":      `header`,
	"contentinfo": `footer`,
	"form":        `form`,
	"table":       `table`,
	"row":         `tr`,
	"cell":        `td`,
}

func roleSelector(role string) string {
	explicit := `[role="` + role + `"]`
	if implicit, ok := implicitRoles[role]; ok {
		return implicit + ", " + explicit
	}
	return explicit
}

// --- argument access ---

func (a Args) str(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrBadArgs, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string", ErrBadArgs, key)
	}
	return s, nil
}

func (a Args) integer(key string) (int, error) {
	switch v := a[key].(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%w: %q must be an integer", ErrBadArgs, key)
		}
		return int(v), nil
	case int:
		return v, nil
	case nil:
		return 0, fmt.Errorf("%w: missing %q", ErrBadArgs, key)
	default:
		return 0, fmt.Errorf("%w: %q must be an integer", ErrBadArgs, key)
	}
}

// match reads key or "key(re)". The exact flag applies to literals only.
func (a Args) match(key string, src Source, attr string) (*Match, bool, error) {
	m := &Match{Source: src, Attr: attr}
	if exact, ok := a["exact"].(bool); ok {
		m.Exact = exact
	}

	if _, ok := a[key+"(re)"]; ok {
		expr, err := a.str(key + "(re)")
		if err != nil {
			return nil, false, err
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %q: %v", ErrBadArgs, key+"(re)", err)
		}
		m.Pattern = re
		return m, true, nil
	}
	if _, ok := a[key]; ok {
		s, err := a.str(key)
		if err != nil {
			return nil, false, err
		}
		m.Text = s
		return m, true, nil
	}
	return nil, false, nil
}

func (a Args) requireMatch(key string, src Source, attr string) (*Match, error) {
	m, ok, err := a.match(key, src, attr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrBadArgs, key)
	}
	return m, nil
}
