// Package relay converts navigation notifications from every open tab into
// the recording event stream consumed by gaze-mapping pipelines, and resolves
// the AOIs defined for the current page into viewport boxes.
//
// Emitted events:
//
//	browser_url[tab,load]=url          location changed; load counts from 0
//	browser_scroll[tab,load]=x,y       scroll offset
//	browser_size=w,h                   viewport size, only when it changed
//	browser_tab=tab                    tab regained focus (then a scroll event)
//	aoi[tab,load,name]=x,y,w,h         resolved AOI box after page changes
package relay

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/hazyhaar/webaoi/geometry"
	"github.com/hazyhaar/webaoi/locator"
)

// Publisher receives events. internal/sink implementations satisfy it.
type Publisher interface {
	SendEvent(ctx context.Context, ev Event) error
}

// Resolver finds the first element matched by a locator chain in one tab and
// returns its viewport box. ok is false when nothing matches.
type Resolver interface {
	ResolveBox(ctx context.Context, chain []locator.Locator) (box geometry.BoundingBox, ok bool, err error)
}

// Config for creating a Relay.
type Config struct {
	Definitions *locator.Document
	Publisher   Publisher
	Now         func() time.Time
	Logger      *slog.Logger
}

// Relay is shared by all tabs of a recording.
type Relay struct {
	defs   *locator.Document
	pub    Publisher
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	tabs     int
	lastW    int
	lastH    int
	haveSize bool
}

// New creates a Relay.
func New(cfg Config) *Relay {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Definitions == nil {
		cfg.Definitions = &locator.Document{}
	}
	return &Relay{
		defs:   cfg.Definitions,
		pub:    cfg.Publisher,
		now:    cfg.Now,
		logger: cfg.Logger,
	}
}

// OpenTab registers a new tab. Tab ids follow creation order.
func (r *Relay) OpenTab(ctx context.Context, res Resolver) *Tab {
	r.mu.Lock()
	id := r.tabs
	r.tabs++
	r.mu.Unlock()

	return &Tab{relay: r, ctx: ctx, res: res, id: id, load: -1}
}

// sizeChanged records (w, h) and reports whether it differs from the last
// size seen on any tab.
func (r *Relay) sizeChanged(w, h int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.haveSize && r.lastW == w && r.lastH == h {
		return false
	}
	r.lastW, r.lastH, r.haveSize = w, h, true
	return true
}

// emit publishes ev stamped with at, or with the relay clock when at is zero.
func (r *Relay) emit(ctx context.Context, at time.Time, ev Event) {
	if at.IsZero() {
		at = r.now()
	}
	ev.Timestamp = at
	if r.pub == nil {
		return
	}
	if err := r.pub.SendEvent(ctx, ev); err != nil {
		r.logger.Warn("relay: send event", "event", ev.String(), "error", err)
	}
}

// Tab is the navsync.Listener for one tab. Like the shim that drives it, a
// Tab is single-owner.
type Tab struct {
	relay *Relay
	ctx   context.Context
	res   Resolver
	id    int
	load  int
	url   string
	at    time.Time
}

// ID returns the tab id.
func (t *Tab) ID() int { return t.id }

// Load returns the load count, -1 before the first location.
func (t *Tab) Load() int { return t.load }

// Stamp sets the time attached to the events emitted until the next Stamp.
// Callers pass the time the page reported the change, not the time it is
// published.
func (t *Tab) Stamp(at time.Time) { t.at = at }

func (t *Tab) emit(ev Event) { t.relay.emit(t.ctx, t.at, ev) }

func (t *Tab) tabLoad() []string {
	return []string{strconv.Itoa(t.id), strconv.Itoa(t.load)}
}

func (t *Tab) LocationChanged(url string) {
	t.load++
	t.url = url
	t.emit(Event{Name: "browser_url", Args: t.tabLoad(), Value: url})
}

func (t *Tab) Scrolled(x, y float64) {
	t.emit(Event{Name: "browser_scroll", Args: t.tabLoad(), Value: num(x) + "," + num(y)})
}

func (t *Tab) Resized(w, h int) {
	if !t.relay.sizeChanged(w, h) {
		return
	}
	t.emit(Event{Name: "browser_size", Value: strconv.Itoa(w) + "," + strconv.Itoa(h)})
}

func (t *Tab) FocusRegained(x, y float64) {
	t.emit(Event{Name: "browser_tab", Value: strconv.Itoa(t.id)})
	t.Scrolled(x, y)
}

// PageElementsChanged resolves every AOI defined for the current URL.
func (t *Tab) PageElementsChanged() {
	page, ok := t.relay.defs.Page(t.url)
	if !ok || t.res == nil {
		return
	}
	for _, def := range page.AOIs {
		box, found, err := t.res.ResolveBox(t.ctx, def.Chain)
		if err != nil {
			t.relay.logger.Warn("relay: resolve aoi", "tab", t.id, "aoi", def.Name, "error", err)
			continue
		}
		if !found {
			t.relay.logger.Debug("relay: aoi not on page", "tab", t.id, "aoi", def.Name)
			continue
		}
		args := append(t.tabLoad(), def.Name)
		t.emit(Event{Name: "aoi", Args: args, Value: box.String()})
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
