package interaction

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/webaoi/address"
	"github.com/hazyhaar/webaoi/dom"
	"github.com/hazyhaar/webaoi/dom/htmltree"
	"github.com/hazyhaar/webaoi/geometry"
	"github.com/hazyhaar/webaoi/registry"
)

const page = `<html><body data-box="0,0,800,600">
<div id="hero" data-box="0,0,800,300">
  <a data-box="10,10,200,80"><img id="site-logo" alt="Logo" data-box="10,10,200,80"></a>
  <p data-box="10,100,300,20"><span alt="tagline" data-box="10,100,50,20">hi</span></p>
</div>
<div class="web_aoi_ignore_hovers" data-box="700,0,100,600">panel</div>
</body></html>`

type htmlNode = html.Node

func hasIgnoreClass(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key == "class" && strings.Contains(a.Val, dom.IgnoreClass) {
			return true
		}
	}
	return false
}

func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

type boxes struct{ t dom.Tree }

func (b boxes) Box(n dom.Node) (geometry.BoundingBox, error) {
	v, err := b.t.Attr(n, "data-box")
	if err != nil {
		return geometry.BoundingBox{}, err
	}
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return geometry.BoundingBox{}, fmt.Errorf("no box")
	}
	var f [4]float64
	for i, p := range parts {
		f[i], _ = strconv.ParseFloat(p, 64)
	}
	return geometry.BoundingBox{X: f[0], Y: f[1], Width: f[2], Height: f[3]}, nil
}

type fakeOverlay struct {
	shown    *geometry.BoundingBox
	appended []registry.AOI
	indices  []int
	listed   []registry.AOI
	revealed dom.Node
}

func (o *fakeOverlay) Show(b geometry.BoundingBox) error { o.shown = &b; return nil }
func (o *fakeOverlay) Hide() error { o.shown = nil; return nil }
func (o *fakeOverlay) Append(_ string, index int, a registry.AOI) error {
	o.appended = append(o.appended, a)
	o.indices = append(o.indices, index)
	return nil
}
func (o *fakeOverlay) List(_ string, aois []registry.AOI) error { o.listed = aois; return nil }
func (o *fakeOverlay) Reveal(n dom.Node) error { o.revealed = n; return nil }

type fakePrompter struct {
	answer string
	ok     bool
	gotDef string
	calls  int

	// m is observed while the prompt is open.
	m      *Machine
	during State
}

func (p *fakePrompter) PromptLabel(_ context.Context, def string) (string, bool, error) {
	p.calls++
	p.gotDef = def
	if p.m != nil {
		p.during = p.m.State()
	}
	return p.answer, p.ok, nil
}

type fixedPage string

func (f fixedPage) PageKey() (string, error) { return string(f), nil }

type harness struct {
	doc *htmltree.Doc
	m   *Machine
	ov  *fakeOverlay
	pr  *fakePrompter
	reg *registry.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessOn(t, registry.New())
}

// newHarnessOn builds a harness whose machine writes to reg.
func newHarnessOn(t *testing.T, reg *registry.Registry) *harness {
	t.Helper()
	doc, err := htmltree.ParseString(page)
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{doc: doc, ov: &fakeOverlay{}, pr: &fakePrompter{}, reg: reg}
	h.m = New(Config{
		Tree:     doc,
		Geometry: boxes{doc},
		Overlay:  h.ov,
		Prompter: h.pr,
		Pages:    fixedPage("https://example.com/"),
		Registry: h.reg,
	})
	h.pr.m = h.m
	return h
}

func TestHoverShowsInsetAffordance(t *testing.T) {
	h := newHarness(t)
	if err := h.m.PointerEnter(h.doc.ByID("hero")); err != nil {
		t.Fatalf("PointerEnter: %v", err)
	}
	if h.m.State() != Hovering {
		t.Fatalf("state: got %v, want hovering", h.m.State())
	}
	want := geometry.BoundingBox{X: 2, Y: 2, Width: 796, Height: 296}
	if h.ov.shown == nil || *h.ov.shown != want {
		t.Fatalf("affordance: got %+v, want %+v", h.ov.shown, want)
	}
}

func TestIgnoredChromeIsSkipped(t *testing.T) {
	h := newHarness(t)
	panel := h.doc.Find(func(n *htmlNode) bool { return hasIgnoreClass(n) })
	if err := h.m.PointerEnter(panel); err != nil {
		t.Fatal(err)
	}
	if h.m.State() != Idle || h.m.Hovered() != nil {
		t.Fatalf("ignored node was hovered: state %v", h.m.State())
	}
}

func TestLeave(t *testing.T) {
	h := newHarness(t)
	h.m.PointerEnter(h.doc.ByID("hero"))

	h.m.PointerLeave(true)
	if h.m.State() != Hovering || h.ov.shown == nil {
		t.Fatal("leaving onto the affordance must keep the hover")
	}

	h.m.PointerLeave(false)
	if h.m.State() != Idle || h.m.Hovered() != nil || h.ov.shown != nil {
		t.Fatalf("leave: state %v hovered %v shown %v", h.m.State(), h.m.Hovered(), h.ov.shown)
	}
}

func TestCaptureStoresAOI(t *testing.T) {
	h := newHarness(t)
	h.pr.answer, h.pr.ok = "logo", true
	h.m.PointerEnter(h.doc.ByID("site-logo"))

	aoi, ok, err := h.m.Capture(context.Background())
	if err != nil || !ok {
		t.Fatalf("Capture: %v %v", ok, err)
	}
	if h.pr.gotDef != "site-logo" {
		t.Fatalf("default label: got %q, want site-logo", h.pr.gotDef)
	}
	if h.pr.during != CapturePrompt {
		t.Fatalf("state while prompting: got %v, want %v", h.pr.during, CapturePrompt)
	}
	if aoi.Address != `id("site-logo")` {
		t.Fatalf("address: got %s", aoi.Address)
	}
	stored, ok := h.reg.Lookup("https://example.com/", 0)
	if !ok || stored != aoi {
		t.Fatalf("registry: got %+v %v", stored, ok)
	}
	if len(h.ov.appended) != 1 {
		t.Fatalf("list panel: got %d items", len(h.ov.appended))
	}
	if h.m.State() != Hovering || h.m.Hovered() == nil {
		t.Fatalf("after capture: state %v", h.m.State())
	}
}

func TestCaptureIndexWithSharedRegistry(t *testing.T) {
	reg := registry.New()
	a, b := newHarnessOn(t, reg), newHarnessOn(t, reg)
	a.pr.answer, a.pr.ok = "a", true
	b.pr.answer, b.pr.ok = "b", true
	a.m.PointerEnter(a.doc.ByID("hero"))
	b.m.PointerEnter(b.doc.ByID("site-logo"))

	var wg sync.WaitGroup
	for _, h := range []*harness{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				if _, _, err := h.m.Capture(context.Background()); err != nil {
					t.Errorf("Capture: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	seen := make(map[int]bool)
	for _, h := range []*harness{a, b} {
		for _, idx := range h.ov.indices {
			got, ok := reg.Lookup("https://example.com/", idx)
			if !ok || got.Label != h.pr.answer {
				t.Fatalf("list index %d: got %q, want %q", idx, got.Label, h.pr.answer)
			}
			seen[idx] = true
		}
	}
	if len(seen) != 100 {
		t.Fatalf("distinct list indices: got %d, want 100", len(seen))
	}
}

func TestCaptureDefaultsToAlt(t *testing.T) {
	h := newHarness(t)
	span := h.doc.Find(func(n *htmlNode) bool { return n.Data == "span" })
	h.m.PointerEnter(span)
	h.m.Capture(context.Background())
	if h.pr.gotDef != "tagline" {
		t.Fatalf("default label: got %q, want tagline", h.pr.gotDef)
	}
}

func TestCaptureCancelAndEmpty(t *testing.T) {
	for _, tt := range []struct {
		name   string
		answer string
		ok     bool
	}{{"cancel", "ignored", false}, {"empty", "", true}} {
		h := newHarness(t)
		h.pr.answer, h.pr.ok = tt.answer, tt.ok
		h.m.PointerEnter(h.doc.ByID("hero"))

		_, ok, err := h.m.Capture(context.Background())
		if err != nil || ok {
			t.Fatalf("%s: Capture: %v %v", tt.name, ok, err)
		}
		if h.pr.during != CapturePrompt {
			t.Fatalf("%s: state while prompting: got %v, want %v", tt.name, h.pr.during, CapturePrompt)
		}
		if h.reg.Len() != 0 || len(h.ov.appended) != 0 {
			t.Fatalf("%s: registry mutated", tt.name)
		}
		if h.m.State() != Hovering {
			t.Fatalf("%s: state: got %v, want hovering", tt.name, h.m.State())
		}
	}
}

func TestCaptureWithoutHover(t *testing.T) {
	h := newHarness(t)
	if _, _, err := h.m.Capture(context.Background()); !errors.Is(err, ErrNotHovering) {
		t.Fatalf("got %v, want ErrNotHovering", err)
	}
	if h.pr.calls != 0 {
		t.Fatal("prompt shown without a hovered element")
	}
}

func TestClimbKey(t *testing.T) {
	h := newHarness(t)
	h.m.PointerEnter(h.doc.ByID("site-logo"))

	// Lower-case and upper-case both climb; the <a> shares the img's box.
	if err := h.m.Key("P"); err != nil {
		t.Fatal(err)
	}
	if h.m.Hovered() != dom.Node(h.doc.ByID("hero")) {
		t.Fatalf("climb: hovered %v", h.m.Hovered())
	}
	if err := h.m.Key("p"); err != nil {
		t.Fatal(err)
	}
	if !h.doc.IsRoot(h.m.Hovered()) {
		t.Fatal("second climb should reach body")
	}
	h.m.Key("p")
	if !h.doc.IsRoot(h.m.Hovered()) || h.m.State() != Hovering {
		t.Fatal("climb at root must be a fixed point")
	}

	before := h.m.Hovered()
	h.m.Key("x")
	if h.m.Hovered() != before {
		t.Fatal("non-climb key moved the hover")
	}
}

func TestClimbWithoutHoverIsNoop(t *testing.T) {
	h := newHarness(t)
	if err := h.m.Key("p"); err != nil || h.m.State() != Idle {
		t.Fatalf("climb without hover: %v %v", err, h.m.State())
	}
}

func TestReveal(t *testing.T) {
	h := newHarness(t)
	h.reg.Capture("https://example.com/", "tag", "//body/div[1]/p[1]/span[1]")
	h.reg.Capture("https://example.com/", "gone", "//body/div[9]")

	if err := h.m.Reveal("https://example.com/", 0); err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if tag, _ := h.doc.Tag(h.ov.revealed); tag != "span" {
		t.Fatalf("revealed %v", h.ov.revealed)
	}
	if h.m.State() != Idle {
		t.Fatal("reveal changed the interaction state")
	}

	var re *address.ResolutionError
	if err := h.m.Reveal("https://example.com/", 1); !errors.As(err, &re) {
		t.Fatalf("Reveal(gone): got %v, want ResolutionError", err)
	}
	if err := h.m.Reveal("https://example.com/", 5); !errors.Is(err, ErrNoSuchAOI) {
		t.Fatalf("Reveal(5): got %v", err)
	}
}

func TestRefreshDropsLostNode(t *testing.T) {
	h := newHarness(t)
	span := h.doc.Find(func(n *htmlNode) bool { return n.Data == "span" })
	h.m.PointerEnter(span)

	removeAttr(span, "data-box")
	if err := h.m.Refresh(); err != nil {
		t.Fatal(err)
	}
	if h.m.State() != Idle || h.ov.shown != nil {
		t.Fatalf("refresh kept a node without a box: %v", h.m.State())
	}
}

func TestSyncList(t *testing.T) {
	h := newHarness(t)
	h.reg.Capture("https://example.com/", "a", "//body")
	h.reg.Capture("https://other/", "b", "//body")
	if err := h.m.SyncList(); err != nil {
		t.Fatal(err)
	}
	if len(h.ov.listed) != 1 || h.ov.listed[0].Label != "a" {
		t.Fatalf("listed: %+v", h.ov.listed)
	}
}
