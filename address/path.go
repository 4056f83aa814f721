package address

import (
	"fmt"
	"strconv"
	"strings"
)

// Step is one positional level of an address: the n-th child element with
// the given tag.
type Step struct {
	Tag   string
	Index int // 1-based
}

// Path is the parsed form of an Address. ID is the id(...) base when set;
// otherwise the path starts at Root.
type Path struct {
	ID    string
	Steps []Step
}

// String renders p back to its canonical address text.
func (p Path) String() string {
	var b strings.Builder
	if p.ID != "" {
		q, ok := quoteID(p.ID)
		if !ok {
			q = `"` + p.ID + `"`
		}
		b.WriteString("id(" + q + ")")
	} else {
		b.WriteString(string(Root))
	}
	for _, s := range p.Steps {
		b.WriteString("/" + s.Tag + "[" + strconv.Itoa(s.Index) + "]")
	}
	return b.String()
}

// Address returns p as an Address.
func (p Path) Address() Address { return Address(p.String()) }

// Parse splits a into its base and positional steps. Only the forms produced
// by Encode are accepted.
func Parse(a Address) (Path, error) {
	s := string(a)
	var p Path

	switch {
	case strings.HasPrefix(s, "id("):
		if len(s) < 6 {
			return Path{}, syntaxErr(a, "truncated id()")
		}
		quote := s[3]
		if quote != '"' && quote != '\'' {
			return Path{}, syntaxErr(a, "id() argument must be quoted")
		}
		end := strings.IndexByte(s[4:], quote)
		if end < 0 {
			return Path{}, syntaxErr(a, "unterminated id() literal")
		}
		p.ID = s[4 : 4+end]
		if p.ID == "" {
			return Path{}, syntaxErr(a, "empty id")
		}
		rest := s[4+end+1:]
		if !strings.HasPrefix(rest, ")") {
			return Path{}, syntaxErr(a, "missing ) after id literal")
		}
		s = rest[1:]
	case strings.HasPrefix(s, string(Root)):
		s = s[len(Root):]
	default:
		return Path{}, syntaxErr(a, "must start with id() or "+string(Root))
	}

	if s == "" {
		return p, nil
	}
	if s[0] != '/' {
		return Path{}, syntaxErr(a, "expected / before step")
	}

	for _, raw := range strings.Split(s[1:], "/") {
		st, err := parseStep(raw)
		if err != nil {
			return Path{}, syntaxErr(a, err.Error())
		}
		p.Steps = append(p.Steps, st)
	}
	return p, nil
}

// parseStep parses "div[2]".
func parseStep(raw string) (Step, error) {
	open := strings.IndexByte(raw, '[')
	if open <= 0 || !strings.HasSuffix(raw, "]") {
		return Step{}, fmt.Errorf("step %q: want tag[n]", raw)
	}
	tag := raw[:open]
	for _, r := range tag {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == ':' || r == '.') {
			return Step{}, fmt.Errorf("step %q: bad tag", raw)
		}
	}
	n, err := strconv.Atoi(raw[open+1 : len(raw)-1])
	if err != nil || n < 1 {
		return Step{}, fmt.Errorf("step %q: ordinal must be a positive integer", raw)
	}
	return Step{Tag: strings.ToLower(tag), Index: n}, nil
}

func syntaxErr(a Address, why string) error {
	return fmt.Errorf("address: parse %q: %s: %w", string(a), why, ErrSyntax)
}
