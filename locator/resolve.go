package locator

import "fmt"

// Engine is the element query surface a host exposes to Resolve. E is the
// host's element handle.
type Engine[E comparable] interface {
	DocumentElement() (E, error)
	CSS(scope E, sel string) ([]E, error)
	XPath(scope E, expr string) ([]E, error)
	Text(e E) (string, error)
	Attribute(e E, name string) (string, bool, error)
	ElementChildren(e E) ([]E, error)
}

// Resolve evaluates steps from the document element and returns the
// matching elements. An empty result is not an error.
func Resolve[E comparable](eng Engine[E], steps []Step) ([]E, error) {
	top, err := eng.DocumentElement()
	if err != nil {
		return nil, fmt.Errorf("locator: resolve: %w", err)
	}
	current := []E{top}

	for _, s := range steps {
		switch s.Op {
		case OpFind:
			var next []E
			seen := make(map[E]bool)
			for _, scope := range current {
				found, err := find(eng, scope, s)
				if err != nil {
					return nil, err
				}
				for _, e := range found {
					if !seen[e] {
						seen[e] = true
						next = append(next, e)
					}
				}
			}
			current = next

		case OpFilter:
			var next []E
			for _, e := range current {
				ok, err := test(eng, e, s.Match)
				if err != nil {
					return nil, err
				}
				if ok {
					next = append(next, e)
				}
			}
			current = next

		case OpNth:
			i := s.Index
			if i < 0 {
				i += len(current)
			}
			if i < 0 || i >= len(current) {
				return nil, nil
			}
			current = []E{current[i]}
		}
		if len(current) == 0 {
			return nil, nil
		}
	}
	return current, nil
}

// ResolveChain compiles chain and resolves it.
func ResolveChain[E comparable](eng Engine[E], chain []Locator) ([]E, error) {
	steps, err := Compile(chain)
	if err != nil {
		return nil, err
	}
	return Resolve(eng, steps)
}

func find[E comparable](eng Engine[E], scope E, s Step) ([]E, error) {
	var found []E
	var err error
	if s.CSS != "" {
		found, err = eng.CSS(scope, s.CSS)
	} else {
		found, err = eng.XPath(scope, s.XPath)
	}
	if err != nil {
		return nil, fmt.Errorf("locator: resolve: %w", err)
	}
	if s.Match == nil {
		return found, nil
	}

	var out []E
	for _, e := range found {
		ok, err := test(eng, e, s.Match)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if s.Innermost {
			inner, err := childMatches(eng, e, s.Match)
			if err != nil {
				return nil, err
			}
			if inner {
				continue
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func childMatches[E comparable](eng Engine[E], e E, m *Match) (bool, error) {
	kids, err := eng.ElementChildren(e)
	if err != nil {
		return false, fmt.Errorf("locator: resolve: %w", err)
	}
	for _, k := range kids {
		ok, err := test(eng, k, m)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func test[E comparable](eng Engine[E], e E, m *Match) (bool, error) {
	var v string
	switch m.Source {
	case SourceAttr:
		val, ok, err := eng.Attribute(e, m.Attr)
		if err != nil {
			return false, fmt.Errorf("locator: resolve: %w", err)
		}
		if !ok {
			return m.Negate, nil
		}
		v = val
	case SourceName:
		val, ok, err := eng.Attribute(e, "aria-label")
		if err != nil {
			return false, fmt.Errorf("locator: resolve: %w", err)
		}
		if ok && val != "" {
			v = val
			break
		}
		fallthrough
	default:
		txt, err := eng.Text(e)
		if err != nil {
			return false, fmt.Errorf("locator: resolve: %w", err)
		}
		v = txt
	}
	return m.Test(v), nil
}
