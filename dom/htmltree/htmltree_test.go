package htmltree

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

const page = `<!doctype html>
<html><head><title>t</title></head>
<body>
  <div id="main">
    <ul><li>one</li><li class="x">two</li><li>three</li></ul>
  </div>
  <div><p>para</p><span data-testid="cta">Buy now</span></div>
  <img alt="logo" src="l.png">
</body></html>`

func testDoc(t *testing.T) *Doc {
	t.Helper()
	d, err := ParseString(page)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	return d
}

func TestTreeNavigation(t *testing.T) {
	d := testDoc(t)

	root, err := d.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	if !d.IsRoot(root) {
		t.Fatal("IsRoot(Root()) = false")
	}

	kids, err := d.Children(root)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if len(kids) != 3 {
		t.Fatalf("body children: got %d, want 3", len(kids))
	}

	tag, _ := d.Tag(kids[2])
	if tag != "img" {
		t.Fatalf("third child tag: got %q, want img", tag)
	}
	alt, _ := d.Attr(kids[2], "alt")
	if alt != "logo" {
		t.Fatalf("alt: got %q, want logo", alt)
	}

	p, err := d.Parent(kids[0])
	if err != nil || p != root {
		t.Fatalf("Parent(div): got %v, %v", p, err)
	}

	htmlEl, _ := d.Parent(root)
	top, err := d.Parent(htmlEl)
	if err != nil || top != nil {
		t.Fatalf("Parent(html): got %v, want nil", top)
	}
}

func TestForeignNode(t *testing.T) {
	d := testDoc(t)
	if _, err := d.Tag("nope"); err != ErrForeignNode {
		t.Fatalf("Tag(string): got %v, want ErrForeignNode", err)
	}
	if _, err := d.Children((*html.Node)(nil)); err != ErrForeignNode {
		t.Fatalf("Children(nil): got %v, want ErrForeignNode", err)
	}
}

func TestQuery(t *testing.T) {
	d := testDoc(t)

	tests := []struct {
		path string
		want string // text of first match, "" for no match
	}{
		{`//body/div[2]/p[1]`, "para"},
		{`id("main")/ul[1]/li[3]`, "three"},
		{`id('main')/ul[1]/li[2]`, "two"},
		{`//li[@class='x']`, "two"},
		{`/html/body/div[2]/span[1]`, "Buy now"},
		{`//body/div[3]`, ""},
		{`id("missing")`, ""},
	}
	for _, tt := range tests {
		n, err := d.QueryPath(tt.path)
		if err != nil {
			t.Fatalf("QueryPath(%s): %v", tt.path, err)
		}
		if tt.want == "" {
			if n != nil {
				t.Errorf("QueryPath(%s): got match, want none", tt.path)
			}
			continue
		}
		if n == nil {
			t.Errorf("QueryPath(%s): no match, want %q", tt.path, tt.want)
			continue
		}
		got, _ := d.Text(n.(*html.Node))
		if got != tt.want {
			t.Errorf("QueryPath(%s): got %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestQueryErrors(t *testing.T) {
	d := testDoc(t)
	for _, p := range []string{"", `id(main)`, `//div[0]`, `//div[last()]`, `id("main")//li`} {
		if _, err := d.Query(p); err == nil {
			t.Errorf("Query(%q): expected error", p)
		}
	}
}

func TestCSSAndAttribute(t *testing.T) {
	d := testDoc(t)
	top, err := d.DocumentElement()
	if err != nil {
		t.Fatalf("DocumentElement: %v", err)
	}

	nodes, err := d.CSS(top, `[data-testid="cta"]`)
	if err != nil {
		t.Fatalf("CSS: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("CSS matches: got %d, want 1", len(nodes))
	}
	v, ok, _ := d.Attribute(nodes[0], "data-testid")
	if !ok || v != "cta" {
		t.Fatalf("Attribute: got %q %v", v, ok)
	}

	if _, err := d.CSS(top, "div[["); err == nil {
		t.Fatal("CSS with invalid selector: expected error")
	}

	kids, _ := d.ElementChildren(d.Body())
	if len(kids) != 3 {
		t.Fatalf("ElementChildren: got %d, want 3", len(kids))
	}
}

func TestMarkdown(t *testing.T) {
	d, err := ParseString(`<html><body><article id="a">
<h1>Title</h1><p>Hello <b>world</b><script>alert(1)</script></p>
<ul><li>one</li><li>two</li></ul>
<img alt="logo" src="/l.png">
</article><span id="s">  spaced
 text </span></body></html>`)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}

	md, err := d.Markdown(d.ByID("a"), "https://shop.example/")
	if err != nil {
		t.Fatalf("Markdown: %v", err)
	}
	for _, want := range []string{"# Title", "Hello **world**", "- one", "- two", "l.png"} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown: missing %q in %q", want, md)
		}
	}
	if strings.Contains(md, "alert") {
		t.Errorf("Markdown: script survived: %q", md)
	}

	md, err = d.Markdown(d.ByID("s"), "")
	if err != nil {
		t.Fatalf("Markdown: %v", err)
	}
	if md != "spaced text" {
		t.Fatalf("Markdown text: got %q, want %q", md, "spaced text")
	}

	out, _ := d.OuterHTML(d.ByID("s"))
	if !strings.HasPrefix(out, `<span id="s">`) {
		t.Fatalf("OuterHTML: got %q", out)
	}
}
