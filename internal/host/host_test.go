package host

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/hazyhaar/webaoi/dom"
	"github.com/hazyhaar/webaoi/geometry"
	"github.com/hazyhaar/webaoi/interaction"
	"github.com/hazyhaar/webaoi/navsync"
	"github.com/hazyhaar/webaoi/relay"
)

// Compile-time capability checks.
var (
	_ dom.Tree                   = (*Page)(nil)
	_ dom.PathQuerier            = (*Page)(nil)
	_ geometry.Provider          = (*Page)(nil)
	_ interaction.Overlay        = (*Page)(nil)
	_ interaction.Prompter       = (*Page)(nil)
	_ interaction.PageSource     = (*Page)(nil)
	_ navsync.NavigationProvider = (*Page)(nil)
	_ navsync.Viewport           = (*Page)(nil)
	_ relay.Resolver             = (*Page)(nil)
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		payload string
		want    Event
	}{
		{`{"kind":"pointer_enter","node":[7,3]}`, Event{Kind: KindPointerEnter, Node: &Handle{Doc: 7, ID: 3}}},
		{`{"kind":"pointer_leave","on_affordance":true}`, Event{Kind: KindPointerLeave, OnAffordance: true}},
		{`{"kind":"key","key":"P"}`, Event{Kind: KindKey, Key: "P"}},
		{`{"kind":"reveal","page":"https://a/","index":2}`, Event{Kind: KindReveal, Page: "https://a/", Index: 2}},
		{`{"kind":"visible","visible":true}`, Event{Kind: KindVisible, Visible: true}},
		{`{"kind":"ready","url":"https://a/"}`, Event{Kind: KindReady, URL: "https://a/"}},
		{`{"kind":"pointer_enter","node":null}`, Event{Kind: KindPointerEnter}},
	}
	for _, tt := range tests {
		got, err := ParseEvent(tt.payload)
		if err != nil {
			t.Fatalf("ParseEvent(%s): %v", tt.payload, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseEvent(%s): got %+v, want %+v", tt.payload, got, tt.want)
		}
	}
}

func TestParseEventRejects(t *testing.T) {
	for _, bad := range []string{`{"kind":"explode"}`, `not json`, `{}`, `{"kind":"pointer_enter","node":"x"}`} {
		if _, err := ParseEvent(bad); err == nil {
			t.Errorf("ParseEvent(%s): expected error", bad)
		}
	}
}

func TestCompress(t *testing.T) {
	evs := []Event{
		{Kind: KindScroll},
		{Kind: KindScroll},
		{Kind: KindScroll},
		{Kind: KindPointerEnter, Node: &Handle{1, 1}},
		{Kind: KindResize},
		{Kind: KindResize},
		{Kind: KindScroll},
		{Kind: KindKey, Key: "p"},
		{Kind: KindKey, Key: "p"},
	}
	var kinds []Kind
	for _, e := range Compress(evs) {
		kinds = append(kinds, e.Kind)
	}
	want := []Kind{KindScroll, KindPointerEnter, KindResize, KindScroll, KindKey, KindKey}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("Compress: got %v, want %v", kinds, want)
	}
	if got := Compress(nil); len(got) != 0 {
		t.Fatalf("Compress(nil): got %v", got)
	}
}

func TestHandleJSON(t *testing.T) {
	b, err := json.Marshal(Handle{Doc: 12, ID: 5})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "[12,5]" {
		t.Fatalf("marshal: got %s, want [12,5]", b)
	}
	var h Handle
	if err := json.Unmarshal([]byte("[3,4]"), &h); err != nil {
		t.Fatal(err)
	}
	if h != (Handle{Doc: 3, ID: 4}) {
		t.Fatalf("unmarshal: got %+v", h)
	}
	if h.String() != "3:4" {
		t.Fatalf("String: got %q", h.String())
	}

	var hs []Handle
	if err := json.Unmarshal([]byte("[[1,2],[1,3]]"), &hs); err != nil || len(hs) != 2 || hs[1].ID != 3 {
		t.Fatalf("slice: got %+v, %v", hs, err)
	}
}

func TestForeignNode(t *testing.T) {
	if _, err := handle("div"); !errors.Is(err, ErrForeignNode) {
		t.Fatalf("handle(string): got %v, want ErrForeignNode", err)
	}
	var nilHandle *Handle
	if _, err := handle(nilHandle); !errors.Is(err, ErrForeignNode) {
		t.Fatalf("handle(nil *Handle): got %v", err)
	}
	if h, err := handle(&Handle{1, 2}); err != nil || h.ID != 2 {
		t.Fatalf("handle(*Handle): got %v, %v", h, err)
	}
	if node(nil) != nil {
		t.Fatal("node(nil): got non-nil interface")
	}
}

func TestScriptPrefix(t *testing.T) {
	p := New(Config{Mode: Define})
	s := p.script()
	if !strings.HasPrefix(s, `window.__webaoi_mode = "define";`) {
		t.Fatalf("script prefix: got %q", s[:40])
	}
	if !strings.Contains(s, bindingName) || !strings.Contains(s, dom.IgnoreClass) {
		t.Fatal("client script lacks binding or ignore class")
	}
	if New(Config{}).Mode() != Record {
		t.Fatal("default mode: want record")
	}
}
