package annotator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/webaoi/dom"
	"github.com/hazyhaar/webaoi/geometry"
	"github.com/hazyhaar/webaoi/internal/host"
	"github.com/hazyhaar/webaoi/internal/store"
	"github.com/hazyhaar/webaoi/locator"
	"github.com/hazyhaar/webaoi/registry"
	"github.com/hazyhaar/webaoi/relay"
)

type fakeNode struct {
	tag      string
	attrs    map[string]string
	parent   int
	children []int
	box      geometry.BoundingBox
}

// fakeHost is a page with a fixed tree:
//
//	body(1) > main(2) > ul(3) > li(4), li(5)
//	body(1) > img#logo(6)
type fakeHost struct {
	nodes  map[int]*fakeNode
	events chan host.Event

	history []string
	pos     int
	w, h    int
	scrollN int

	labels   []string
	shown    []geometry.BoundingBox
	hidden   int
	appended []string
	listed   map[string][]registry.AOI
	revealed []dom.Node
}

func newFakeHost(url string) *fakeHost {
	box := func(x, y, w, h float64) geometry.BoundingBox {
		return geometry.BoundingBox{X: x, Y: y, Width: w, Height: h}
	}
	return &fakeHost{
		nodes: map[int]*fakeNode{
			1: {tag: "body", children: []int{2, 6}, box: box(0, 0, 800, 600)},
			2: {tag: "main", parent: 1, children: []int{3}, box: box(0, 0, 800, 600)},
			3: {tag: "ul", parent: 2, children: []int{4, 5}, box: box(10, 10, 200, 100)},
			4: {tag: "li", parent: 3, box: box(10, 10, 200, 50)},
			5: {tag: "li", parent: 3, box: box(10, 60, 200, 50)},
			6: {tag: "img", parent: 1, attrs: map[string]string{"id": "logo"}, box: box(300, 10, 50, 50)},
		},
		events:  make(chan host.Event, 64),
		history: []string{url},
		w:       800,
		h:       600,
		listed:  map[string][]registry.AOI{},
	}
}

func h(id int) host.Handle { return host.Handle{Doc: 1, ID: id} }

func (f *fakeHost) node(n dom.Node) (*fakeNode, error) {
	hd, ok := n.(host.Handle)
	if !ok {
		return nil, fmt.Errorf("foreign node %T", n)
	}
	fn, ok := f.nodes[hd.ID]
	if !ok {
		return nil, fmt.Errorf("stale node %v", hd)
	}
	return fn, nil
}

func (f *fakeHost) Root() (dom.Node, error) { return h(1), nil }
func (f *fakeHost) IsRoot(n dom.Node) bool  { return n == dom.Node(h(1)) }

func (f *fakeHost) Parent(n dom.Node) (dom.Node, error) {
	fn, err := f.node(n)
	if err != nil || fn.parent == 0 {
		return nil, err
	}
	return h(fn.parent), nil
}

func (f *fakeHost) Children(n dom.Node) ([]dom.Node, error) {
	fn, err := f.node(n)
	if err != nil {
		return nil, err
	}
	var out []dom.Node
	for _, c := range fn.children {
		out = append(out, h(c))
	}
	return out, nil
}

func (f *fakeHost) Tag(n dom.Node) (string, error) {
	fn, err := f.node(n)
	if err != nil {
		return "", err
	}
	return fn.tag, nil
}

func (f *fakeHost) Attr(n dom.Node, name string) (string, error) {
	fn, err := f.node(n)
	if err != nil {
		return "", err
	}
	return fn.attrs[name], nil
}

func (f *fakeHost) Box(n dom.Node) (geometry.BoundingBox, error) {
	fn, err := f.node(n)
	if err != nil {
		return geometry.BoundingBox{}, err
	}
	return fn.box, nil
}

func (f *fakeHost) Show(b geometry.BoundingBox) error { f.shown = append(f.shown, b); return nil }
func (f *fakeHost) Hide() error                       { f.hidden++; return nil }

func (f *fakeHost) Append(pageKey string, index int, a registry.AOI) error {
	f.appended = append(f.appended, fmt.Sprintf("%s#%d %s", pageKey, index, a.Label))
	return nil
}

func (f *fakeHost) List(pageKey string, aois []registry.AOI) error {
	f.listed[pageKey] = aois
	return nil
}

func (f *fakeHost) Reveal(n dom.Node) error { f.revealed = append(f.revealed, n); return nil }

func (f *fakeHost) PromptLabel(_ context.Context, def string) (string, bool, error) {
	if len(f.labels) == 0 {
		return "", false, nil
	}
	l := f.labels[0]
	f.labels = f.labels[1:]
	if l == "=" {
		return def, true, nil
	}
	return l, true, nil
}

func (f *fakeHost) PageKey() (string, error)  { return f.Location() }
func (f *fakeHost) Location() (string, error) { return f.history[f.pos], nil }

func (f *fakeHost) PushState(url string) error {
	f.history = append(f.history[:f.pos+1], url)
	f.pos++
	return nil
}

func (f *fakeHost) ReplaceState(url string) error { f.history[f.pos] = url; return nil }

func (f *fakeHost) Back() error {
	if f.pos > 0 {
		f.pos--
	}
	return nil
}

func (f *fakeHost) Forward() error {
	if f.pos < len(f.history)-1 {
		f.pos++
	}
	return nil
}

func (f *fakeHost) Size() (int, int, error) { return f.w, f.h, nil }

func (f *fakeHost) Scroll() (float64, float64, error) {
	f.scrollN++
	return 0, float64(10 * f.scrollN), nil
}

func (f *fakeHost) FocusActive() error { return nil }

func (f *fakeHost) Events() <-chan host.Event { return f.events }

// play queues evs, closes the event channel and runs the session to the end.
func play(t *testing.T, s *Session, f *fakeHost, evs ...host.Event) {
	t.Helper()
	for _, ev := range evs {
		f.events <- ev
	}
	close(f.events)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func enter(id int) host.Event {
	hd := h(id)
	return host.Event{Kind: host.KindPointerEnter, Node: &hd}
}

func TestDefineCaptureAndSave(t *testing.T) {
	f := newFakeHost("https://shop/")
	f.labels = []string{"second", "="}
	reg := registry.New()

	var saved *locator.Document
	s := NewSession(SessionConfig{
		Host:     f,
		Define:   true,
		Registry: reg,
		OnSave: func(context.Context) error {
			doc, err := reg.Export()
			saved = doc
			return err
		},
	})

	play(t, s, f,
		host.Event{Kind: host.KindReady},
		enter(5),
		host.Event{Kind: host.KindCapture},
		enter(6),
		host.Event{Kind: host.KindCapture},
		host.Event{Kind: host.KindSave},
	)

	if got := f.appended; !reflect.DeepEqual(got, []string{"https://shop/#0 second", "https://shop/#1 logo"}) {
		t.Fatalf("appended: got %q", got)
	}
	if saved == nil || saved.Len() != 2 {
		t.Fatalf("saved: got %+v", saved)
	}
	var buf strings.Builder
	if err := saved.Encode(&buf, ""); err != nil {
		t.Fatal(err)
	}
	want := `{"https://shop/":{"second":[{"type":"locator","args":{"selector":"xpath=//body/main[1]/ul[1]/li[2]"}}],` +
		`"logo":[{"type":"locator","args":{"selector":"xpath=id(\"logo\")"}}]}}`
	if got := strings.TrimSpace(buf.String()); got != want {
		t.Fatalf("export:\ngot  %s\nwant %s", got, want)
	}
	if _, ok := f.listed["https://shop/"]; !ok {
		t.Fatal("ready did not sync the list panel")
	}
}

func TestDefineCaptureWithoutHoverIsQuiet(t *testing.T) {
	f := newFakeHost("https://shop/")
	f.labels = []string{"never"}
	s := NewSession(SessionConfig{Host: f, Define: true})

	play(t, s, f, host.Event{Kind: host.KindCapture})
	if len(f.labels) != 1 {
		t.Fatal("prompt shown without a hovered element")
	}
	if s.Machine().State().String() != "idle" {
		t.Fatalf("state: got %s, want idle", s.Machine().State())
	}
}

func TestDefineClimbKey(t *testing.T) {
	f := newFakeHost("https://shop/")
	s := NewSession(SessionConfig{Host: f, Define: true})

	play(t, s, f,
		enter(4),
		host.Event{Kind: host.KindKey, Key: "p"},
		host.Event{Kind: host.KindKey, Key: "x"},
	)
	if got := s.Machine().Hovered(); got != dom.Node(h(3)) {
		t.Fatalf("hovered after climb: got %v, want %v", got, h(3))
	}
	last := f.shown[len(f.shown)-1]
	if want := geometry.Inset(f.nodes[3].box, 2); !last.Equal(want) {
		t.Fatalf("affordance: got %v, want %v", last, want)
	}
}

func TestDefineLeaveOntoAffordanceKeepsHover(t *testing.T) {
	f := newFakeHost("https://shop/")
	s := NewSession(SessionConfig{Host: f, Define: true})

	play(t, s, f,
		enter(4),
		host.Event{Kind: host.KindPointerLeave, OnAffordance: true},
	)
	if s.Machine().Hovered() == nil {
		t.Fatal("hover dropped when the pointer moved onto the affordance")
	}
	if f.hidden != 0 {
		t.Fatalf("hidden: got %d, want 0", f.hidden)
	}
}

func TestDefineReveal(t *testing.T) {
	f := newFakeHost("https://shop/")
	f.labels = []string{"item"}
	s := NewSession(SessionConfig{Host: f, Define: true})

	play(t, s, f,
		enter(4),
		host.Event{Kind: host.KindCapture},
		host.Event{Kind: host.KindReveal, Page: "https://shop/", Index: 0},
		host.Event{Kind: host.KindReveal, Page: "https://shop/", Index: 7},
	)
	if len(f.revealed) != 1 || f.revealed[0] != dom.Node(h(4)) {
		t.Fatalf("revealed: got %v", f.revealed)
	}
}

func TestScrollBurstIsCompressed(t *testing.T) {
	f := newFakeHost("https://shop/")
	s := NewSession(SessionConfig{Host: f, Define: true})

	evs := []host.Event{{Kind: host.KindReady}}
	for range 5 {
		evs = append(evs, host.Event{Kind: host.KindScroll})
	}
	play(t, s, f, evs...)
	if f.scrollN != 1 {
		t.Fatalf("scroll reads: got %d, want 1", f.scrollN)
	}
}

type boxResolver map[string]geometry.BoundingBox

func (b boxResolver) ResolveBox(_ context.Context, chain []locator.Locator) (geometry.BoundingBox, bool, error) {
	sel, _ := chain[0].Args["selector"].(string)
	box, ok := b[sel]
	return box, ok, nil
}

type eventLog struct{ got []string }

func (l *eventLog) SendEvent(_ context.Context, ev relay.Event) error {
	l.got = append(l.got, ev.String())
	return nil
}

func TestRecordSession(t *testing.T) {
	var defs locator.Document
	defs.Set("https://shop/", "logo", []locator.Locator{{Type: "locator", Args: locator.Args{"selector": "#logo"}}})
	defs.Set("https://shop/cart", "total", []locator.Locator{{Type: "locator", Args: locator.Args{"selector": "#total"}}})

	log := &eventLog{}
	r := relay.New(relay.Config{Definitions: &defs, Publisher: log})
	tab := r.OpenTab(context.Background(), boxResolver{
		"#logo":  {X: 300, Y: 10, Width: 50, Height: 50},
		"#total": {X: 1, Y: 2, Width: 3, Height: 4},
	})

	f := newFakeHost("https://shop/")
	s := NewSession(SessionConfig{Host: f, Listener: tab})
	if s.Machine() != nil {
		t.Fatal("record session built an interaction machine")
	}

	for _, ev := range []host.Event{{Kind: host.KindReady}, enter(4), {Kind: host.KindCapture}} {
		f.events <- ev
	}
	f.PushState("https://shop/cart")
	play(t, s, f,
		host.Event{Kind: host.KindHistory},
		host.Event{Kind: host.KindScroll},
		host.Event{Kind: host.KindVisible, Visible: false},
	)

	want := []string{
		"browser_url[0,0]=https://shop/cart",
		"browser_size=800,600",
		"aoi[0,0,total]=1,2,3,4",
		"browser_scroll[0,0]=0,10",
	}
	if !reflect.DeepEqual(log.got, want) {
		t.Fatalf("events:\ngot  %q\nwant %q", log.got, want)
	}
}

func TestRecordRelaysEveryScroll(t *testing.T) {
	log := &eventLog{}
	r := relay.New(relay.Config{Publisher: log})
	f := newFakeHost("https://shop/")
	s := NewSession(SessionConfig{Host: f, Listener: r.OpenTab(context.Background(), nil)})

	play(t, s, f,
		host.Event{Kind: host.KindReady},
		host.Event{Kind: host.KindScroll},
		host.Event{Kind: host.KindScroll},
		host.Event{Kind: host.KindScroll},
	)
	want := []string{
		"browser_url[0,0]=https://shop/",
		"browser_size=800,600",
		"browser_scroll[0,0]=0,10",
		"browser_scroll[0,0]=0,20",
		"browser_scroll[0,0]=0,30",
	}
	if !reflect.DeepEqual(log.got, want) {
		t.Fatalf("events:\ngot  %q\nwant %q", log.got, want)
	}
}

// slowLog takes a while to accept each event.
type slowLog struct {
	delay time.Duration
	got   []relay.Event
}

func (l *slowLog) SendEvent(_ context.Context, ev relay.Event) error {
	time.Sleep(l.delay)
	l.got = append(l.got, ev)
	return nil
}

func TestRecordTimestampsFromReceipt(t *testing.T) {
	log := &slowLog{delay: 15 * time.Millisecond}
	r := relay.New(relay.Config{Publisher: log})
	f := newFakeHost("https://shop/")
	s := NewSession(SessionConfig{Host: f, Listener: r.OpenTab(context.Background(), nil)})

	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Millisecond)
	t2 := t0.Add(2 * time.Millisecond)
	play(t, s, f,
		host.Event{Kind: host.KindReady, At: t0},
		host.Event{Kind: host.KindScroll, At: t1},
		host.Event{Kind: host.KindScroll, At: t2},
	)

	want := []time.Time{t0, t0, t1, t2}
	if len(log.got) != len(want) {
		t.Fatalf("events: got %d, want %d", len(log.got), len(want))
	}
	for i, ev := range log.got {
		if !ev.Timestamp.Equal(want[i]) {
			t.Fatalf("%s: got %v, want %v", ev, ev.Timestamp, want[i])
		}
	}
}

func TestRunStopsOnContext(t *testing.T) {
	f := newFakeHost("https://shop/")
	s := NewSession(SessionConfig{Host: f})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run: got %v, want deadline exceeded", err)
	}
}

func TestAnnotatorSave(t *testing.T) {
	var got *locator.Document
	cb := NewCallbackSink(func(_ context.Context, doc *locator.Document) error {
		got = doc
		return nil
	}, nil)

	a := New(DefaultConfig(), nil, cb)
	defer a.Stop()
	a.Registry().Capture("https://a/", "logo", `id("logo")`)
	a.Registry().Capture("https://a/", "broken", "not an address")

	if err := a.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got == nil || got.Len() != 1 {
		t.Fatalf("saved: got %+v", got)
	}
	if _, ok := got.Lookup("https://a/", "logo"); !ok {
		t.Fatal("logo missing from export")
	}
}

func TestAnnotatorRestore(t *testing.T) {
	var doc locator.Document
	doc.Set("https://a/", "logo", registry.Chain(`id("logo")`))
	doc.Set("https://a/", "css", []locator.Locator{{Type: "locator", Args: locator.Args{"selector": "#x"}}})

	a := New(DefaultConfig(), nil)
	defer a.Stop()
	if n := a.Restore(&doc); n != 1 {
		t.Fatalf("Restore: got %d, want 1", n)
	}
}

func TestRecorderStartURL(t *testing.T) {
	var defs locator.Document
	defs.Set("https://first/", "a", registry.Chain("//body/div[1]"))
	defs.Set("https://second/", "b", registry.Chain("//body/div[2]"))

	cfg := DefaultConfig()
	r := NewRecorder(cfg, &defs, nil)
	if got := r.StartURL(); got != "https://first/" {
		t.Fatalf("StartURL: got %q, want first defined page", got)
	}
	cfg.StartURL = "https://override/"
	if got := r.StartURL(); got != "https://override/" {
		t.Fatalf("StartURL: got %q, want override", got)
	}

	empty := NewRecorder(DefaultConfig(), nil, nil)
	if err := empty.Run(context.Background()); err == nil {
		t.Fatal("Run without pages: expected error")
	}
}

func TestAOIFile(t *testing.T) {
	tests := []struct{ in, want string }{
		{"logo", "aoi-logo.png"},
		{"a/b", "aoi-a_b.png"},
		{`x:y?`, "aoi-x_y_.png"},
		{"", "aoi-_.png"},
	}
	for _, tt := range tests {
		if got := AOIFile(tt.in); got != tt.want {
			t.Errorf("AOIFile(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildSinks(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.StartURL = "https://a/"
	cfg.Sinks = []SinkConfig{
		{Type: "file", Path: filepath.Join(dir, "out.json"), Events: filepath.Join(dir, "events.log")},
		{Type: "stdout"},
		{Type: "sqlite", Path: filepath.Join(dir, "webaoi.db")},
	}

	sinks, err := BuildSinks(context.Background(), cfg, store.ModeRecord, nil)
	if err != nil {
		t.Fatalf("BuildSinks: %v", err)
	}
	if len(sinks) != 3 {
		t.Fatalf("sinks: got %d, want 3", len(sinks))
	}
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}

	st, err := store.Open(filepath.Join(dir, "webaoi.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	sessions, err := st.ListSessions(context.Background(), store.ModeRecord, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].StartURL != "https://a/" || sessions[0].EndedAt == 0 {
		t.Fatalf("sessions: got %+v", sessions)
	}

	cfg.Sinks = []SinkConfig{{Type: "file", Path: filepath.Join(dir, "missing", "x.json"), Events: filepath.Join(dir, "missing", "ev.log")}}
	if _, err := BuildSinks(context.Background(), cfg, store.ModeDefine, nil); err == nil {
		t.Fatal("expected error for unwritable events path")
	}
	if _, err := os.Stat(filepath.Join(dir, "out.json")); !os.IsNotExist(err) {
		t.Fatalf("file sink wrote before any save: %v", err)
	}
}
