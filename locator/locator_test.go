package locator_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/webaoi/dom/htmltree"
	"github.com/hazyhaar/webaoi/locator"
)

func sel(s string) []locator.Locator {
	return []locator.Locator{{Type: "locator", Args: locator.Args{"selector": s}}}
}

func TestDocumentOrderPreserved(t *testing.T) {
	var d locator.Document
	d.Set("https://z.example/", "zeta", sel("xpath=//body"))
	d.Set("https://a.example/", "beta", sel(`xpath=id("b")`))
	d.Set("https://a.example/", "alpha", sel(`xpath=id("a")`))
	d.Set("https://z.example/", "eta", sel("xpath=//body/div[1]"))

	raw, err := d.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	got := string(raw)
	order := []string{`"https://z.example/"`, `"zeta"`, `"eta"`, `"https://a.example/"`, `"beta"`, `"alpha"`}
	last := -1
	for _, k := range order {
		i := strings.Index(got, k)
		if i <= last {
			t.Fatalf("key %s out of order in %s", k, got)
		}
		last = i
	}

	var back locator.Document
	if err := back.UnmarshalJSON(raw); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if len(back.Pages) != 2 || back.Pages[0].URL != "https://z.example/" {
		t.Fatalf("pages: got %+v", back.Pages)
	}
	if back.Pages[1].AOIs[0].Name != "beta" || back.Pages[1].AOIs[1].Name != "alpha" {
		t.Fatalf("aois: got %+v", back.Pages[1].AOIs)
	}
}

func TestDuplicateNameKeepsFirstPosition(t *testing.T) {
	var d locator.Document
	d.Set("u", "a", sel("xpath=//body/p[1]"))
	d.Set("u", "b", sel("xpath=//body/p[2]"))
	d.Set("u", "a", sel("xpath=//body/p[3]"))

	p, _ := d.Page("u")
	if len(p.AOIs) != 2 || p.AOIs[0].Name != "a" {
		t.Fatalf("got %+v", p.AOIs)
	}
	chain, _ := d.Lookup("u", "a")
	if chain[0].Args["selector"] != "xpath=//body/p[3]" {
		t.Fatalf("last write should win, got %v", chain[0].Args)
	}

	var back locator.Document
	err := back.UnmarshalJSON([]byte(`{"u":{"a":[],"b":[],"a":[{"type":"first"}]}}`))
	if err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	p, _ = back.Page("u")
	if len(p.AOIs) != 2 || p.AOIs[0].Name != "a" || len(p.AOIs[0].Chain) != 1 {
		t.Fatalf("decoded duplicates: got %+v", p.AOIs)
	}
}

func TestEncodeIndentNoHTMLEscape(t *testing.T) {
	var d locator.Document
	d.Set("https://example.com/?a=1&b=2", "logo", sel(`xpath=id("site-logo")`))

	var buf bytes.Buffer
	if err := d.Encode(&buf, "    "); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := `{
    "https://example.com/?a=1&b=2": {
        "logo": [
            {
                "type": "locator",
                "args": {
                    "selector": "xpath=id(\"site-logo\")"
                }
            }
        ]
    }
}
`
	if buf.String() != want {
		t.Fatalf("Encode:\ngot:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestUnmarshalRejectsShape(t *testing.T) {
	for _, in := range []string{`[]`, `{"u":[]}`, `{"u":{"a":{}}}`, `{"u":{}`} {
		var d locator.Document
		if err := d.UnmarshalJSON([]byte(in)); err == nil {
			t.Errorf("UnmarshalJSON(%s): expected error", in)
		}
	}
}

func TestCompile(t *testing.T) {
	chain := []locator.Locator{
		{Type: "role", Args: locator.Args{"role": "button", "name(re)": "^Buy"},
			Next: &locator.Locator{Type: "first"}},
		{Type: "nth", Args: locator.Args{"index": float64(2)}},
	}
	steps, err := locator.Compile(chain)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("steps: got %d, want 3", len(steps))
	}
	if steps[0].Match == nil || steps[0].Match.Pattern == nil || steps[0].Match.Source != locator.SourceName {
		t.Fatalf("role step: got %+v", steps[0])
	}
	if steps[1].Op != locator.OpNth || steps[1].Index != 0 || steps[2].Index != 2 {
		t.Fatalf("nth steps: got %+v %+v", steps[1], steps[2])
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		l    locator.Locator
		want error
	}{
		{locator.Locator{Type: "bogus"}, locator.ErrUnknownType},
		{locator.Locator{Type: "locator"}, locator.ErrBadArgs},
		{locator.Locator{Type: "nth", Args: locator.Args{"index": "2"}}, locator.ErrBadArgs},
		{locator.Locator{Type: "text", Args: locator.Args{"text(re)": "("}}, locator.ErrBadArgs},
		{locator.Locator{Type: "filter"}, locator.ErrBadArgs},
		{locator.Locator{Type: "first", Next: &locator.Locator{Type: "nope"}}, locator.ErrUnknownType},
	}
	for _, tt := range tests {
		if _, err := locator.Compile([]locator.Locator{tt.l}); !errors.Is(err, tt.want) {
			t.Errorf("Compile(%s): got %v, want %v", tt.l.Type, err, tt.want)
		}
	}
}

func TestMatch(t *testing.T) {
	m := &locator.Match{Text: "buy  NOW"}
	if !m.Test("  Please buy now!  ") {
		t.Fatal("substring match should ignore case and whitespace runs")
	}
	m.Exact = true
	if m.Test("Please buy now") {
		t.Fatal("exact match accepted a substring")
	}
	neg := &locator.Match{Text: "x", Negate: true}
	if neg.Test("xyz") {
		t.Fatal("negated match accepted")
	}
}

const shop = `<html><body>
<nav aria-label="Primary"><a href="/">Home</a><a href="/shop">Shop</a></nav>
<main>
  <div class="card"><h2>Tea</h2><button>Buy tea</button></div>
  <div class="card"><h2>Coffee</h2><button aria-label="Buy coffee now">Buy</button></div>
  <input placeholder="Search products">
  <img alt="Company logo" src="l.png">
  <span data-testid="cart-count">3</span>
  <p title="Shipping info">Free <b>shipping</b> over 50</p>
</main>
</body></html>`

func resolveText(t *testing.T, d *htmltree.Doc, chain []locator.Locator) []string {
	t.Helper()
	nodes, err := locator.ResolveChain[*html.Node](d, chain)
	if err != nil {
		t.Fatalf("ResolveChain: %v", err)
	}
	var out []string
	for _, n := range nodes {
		s, _ := d.Text(n)
		if s == "" {
			s = "<" + n.Data + ">"
		}
		out = append(out, strings.Join(strings.Fields(s), " "))
	}
	return out
}

func TestResolveOverHTML(t *testing.T) {
	d, err := htmltree.ParseString(shop)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		chain []locator.Locator
		want  []string
	}{
		{"xpath", sel("xpath=//body/main[1]/div[2]/h2[1]"), []string{"Coffee"}},
		{"css then nth", append(sel("div.card h2"), locator.Locator{Type: "last"}), []string{"Coffee"}},
		{"role by aria name", []locator.Locator{{Type: "role", Args: locator.Args{"role": "button", "name": "coffee"}}}, []string{"Buy"}},
		{"role by text name", []locator.Locator{{Type: "role", Args: locator.Args{"role": "button", "name(re)": "^Buy tea$"}}}, []string{"Buy tea"}},
		{"link role", []locator.Locator{{Type: "role", Args: locator.Args{"role": "link"}}}, []string{"Home", "Shop"}},
		{"text innermost", []locator.Locator{{Type: "text", Args: locator.Args{"text": "Coffee"}}}, []string{"Coffee"}},
		{"text exact", []locator.Locator{{Type: "text", Args: locator.Args{"text": "Buy", "exact": true}}}, []string{"Buy"}},
		{"placeholder", []locator.Locator{{Type: "placeholder", Args: locator.Args{"text": "search"}}}, []string{"<input>"}},
		{"alt", []locator.Locator{{Type: "alt_text", Args: locator.Args{"text": "logo"}}}, []string{"<img>"}},
		{"test id", []locator.Locator{{Type: "test_id", Args: locator.Args{"test_id": "cart-count"}}}, []string{"3"}},
		{"title", []locator.Locator{{Type: "title", Args: locator.Args{"text": "Shipping"}}}, []string{"Free shipping over 50"}},
		{"label", []locator.Locator{{Type: "label", Args: locator.Args{"text": "primary"}}}, []string{"HomeShop"}},
		{"filter", append(sel("div.card"), locator.Locator{Type: "filter", Args: locator.Args{"has_not_text": "Tea"}}), []string{"CoffeeBuy"}},
		{"next chain", []locator.Locator{{Type: "locator", Args: locator.Args{"selector": "div.card"},
			Next: &locator.Locator{Type: "locator", Args: locator.Args{"selector": "button"}}}}, []string{"Buy tea", "Buy"}},
		{"nth out of range", append(sel("h2"), locator.Locator{Type: "nth", Args: locator.Args{"index": float64(5)}}), nil},
		{"no match", sel("table"), nil},
	}
	for _, tt := range tests {
		got := resolveText(t, d, tt.chain)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}
