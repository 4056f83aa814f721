// Package host binds webaoi's core capabilities to a live Chrome page via
// Rod. An embedded client script keeps a per-document handle table, draws
// the define-mode chrome and reports input, history and viewport events
// through a Runtime binding.
package host

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

//go:embed client.js
var clientJS string

const bindingName = "__webaoi_emit"

// Mode selects which parts of the client run.
type Mode string

const (
	// Define draws the overlay and reports pointer and key input.
	Define Mode = "define"
	// Record only reports history and viewport events.
	Record Mode = "record"
)

// Config for attaching to a page.
type Config struct {
	Page *rod.Page
	Mode Mode
	// Buffer is the event channel capacity. Default: 256.
	Buffer int
	Logger *slog.Logger
}

// Page is a live page. Its capability methods (dom.Tree, geometry.Provider,
// interaction.Overlay, navsync.NavigationProvider ...) evaluate in the page
// and are safe for one goroutine at a time.
type Page struct {
	page   *rod.Page
	mode   Mode
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	events chan Event
	remove func() error
}

// New creates a Page. Call Attach to install the client.
func New(cfg Config) *Page {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Mode == "" {
		cfg.Mode = Record
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Page{
		page:   cfg.Page,
		ctx:    ctx,
		cancel: cancel,
		mode:   cfg.Mode,
		logger: cfg.Logger,
		events: make(chan Event, cfg.Buffer),
	}
}

// Rod returns the underlying page.
func (p *Page) Rod() *rod.Page { return p.page }

// Mode returns the client mode.
func (p *Page) Mode() Mode { return p.mode }

// Events delivers client events in order. It is closed when the page closes
// or the Attach context is done.
func (p *Page) Events() <-chan Event { return p.events }

// Done is closed when the page is gone or detached.
func (p *Page) Done() <-chan struct{} { return p.ctx.Done() }

func (p *Page) script() string {
	mode, _ := json.Marshal(string(p.mode))
	return "window.__webaoi_mode = " + string(mode) + ";\n" + clientJS
}

// Attach adds the binding, installs the client on every future document and
// on the current one, and starts listening.
func (p *Page) Attach(ctx context.Context) error {
	p.cancel()
	p.ctx, p.cancel = context.WithCancel(ctx)

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(p.page); err != nil {
		p.logger.Warn("host: addBinding failed (may already exist)", "error", err)
	}

	remove, err := p.page.EvalOnNewDocument(p.script())
	if err != nil {
		p.cancel()
		return fmt.Errorf("host: install client: %w", err)
	}
	p.remove = remove

	go p.listenBinding()
	go p.watchClose()

	if _, err := p.page.Context(p.ctx).Eval(p.script()); err != nil {
		// about:blank and pages still loading pick the client up on their
		// next document.
		p.logger.Debug("host: inject into current document", "error", err)
	}
	p.logger.Debug("host: attached", "mode", p.mode, "target", p.page.TargetID)
	return nil
}

// Detach stops listening. The page stays open.
func (p *Page) Detach() {
	p.cancel()
	if p.remove != nil {
		p.remove()
	}
}

func (p *Page) listenBinding() {
	defer close(p.events)
	p.page.Context(p.ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		ev, err := ParseEvent(e.Payload)
		if err != nil {
			p.logger.Warn("host: parse binding payload", "error", err)
			return
		}
		ev.At = time.Now()
		select {
		case p.events <- ev:
		case <-p.ctx.Done():
		}
	})()
}

func (p *Page) watchClose() {
	b := p.page.Browser()
	b.Context(p.ctx).EachEvent(func(e *proto.TargetTargetDestroyed) bool {
		if e.TargetID != p.page.TargetID {
			return false
		}
		p.logger.Info("host: page closed", "target", e.TargetID)
		p.cancel()
		return true
	})()
}

const callJS = `(fn, ...args) => window.__webaoi[fn](...args)`

// call invokes window.__webaoi[fn] and decodes the result into out (which
// may be nil).
func (p *Page) call(ctx context.Context, out any, fn string, args ...any) error {
	res, err := p.page.Context(ctx).Eval(callJS, append([]any{fn}, args...)...)
	if err != nil {
		return fmt.Errorf("host: %s: %w", fn, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(res.Value.JSON("", "")), out); err != nil {
		return fmt.Errorf("host: %s: decode: %w", fn, err)
	}
	return nil
}

// Doc returns the client's current document id.
func (p *Page) Doc() (int, error) {
	var doc int
	err := p.call(p.ctx, &doc, "doc")
	return doc, err
}
