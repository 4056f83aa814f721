package annotator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/webaoi/dom"
	"github.com/hazyhaar/webaoi/geometry"
	"github.com/hazyhaar/webaoi/interaction"
	"github.com/hazyhaar/webaoi/internal/host"
	"github.com/hazyhaar/webaoi/navsync"
	"github.com/hazyhaar/webaoi/registry"
)

// Host is everything a session needs from one live page. *host.Page
// implements it.
type Host interface {
	dom.Tree
	geometry.Provider
	interaction.Overlay
	interaction.Prompter
	interaction.PageSource
	navsync.NavigationProvider
	navsync.Viewport
	Events() <-chan host.Event
}

var _ Host = (*host.Page)(nil)

// SessionConfig wires a Session.
type SessionConfig struct {
	Host Host
	// Define runs the interaction machine. Without it the session only
	// drives the navigation shim.
	Define   bool
	Registry *registry.Registry
	// Listener receives shim notifications in addition to the session's
	// own. The recorder passes its relay tab here.
	Listener navsync.Listener
	// OnSave is called when the operator presses Save.
	OnSave   func(ctx context.Context) error
	ClimbKey string
	Logger   *slog.Logger
}

// Session is the event loop of one page. All Machine and Shim state is
// owned by the goroutine running Run.
type Session struct {
	host    Host
	machine *interaction.Machine
	shim    *navsync.Shim
	stamp   stamper
	onSave  func(ctx context.Context) error
	logger  *slog.Logger
}

// stamper is implemented by listeners that timestamp what they emit
// (*relay.Tab).
type stamper interface {
	Stamp(at time.Time)
}

// NewSession creates a Session.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Session{host: cfg.Host, onSave: cfg.OnSave, logger: cfg.Logger}

	var listeners navsync.Listeners
	if cfg.Define {
		if cfg.Registry == nil {
			cfg.Registry = registry.New()
		}
		s.machine = interaction.New(interaction.Config{
			Tree:     cfg.Host,
			Geometry: cfg.Host,
			Overlay:  cfg.Host,
			Prompter: cfg.Host,
			Pages:    cfg.Host,
			Registry: cfg.Registry,
			ClimbKey: cfg.ClimbKey,
			Logger:   cfg.Logger,
		})
		listeners = append(listeners, navsync.ListenerFuncs{
			OnScrolled:            func(float64, float64) { s.refresh() },
			OnResized:             func(int, int) { s.refresh() },
			OnPageElementsChanged: s.syncList,
		})
	}
	if cfg.Listener != nil {
		listeners = append(listeners, cfg.Listener)
		s.stamp, _ = cfg.Listener.(stamper)
	}
	s.shim = navsync.New(navsync.Config{
		Navigation: cfg.Host,
		Viewport:   cfg.Host,
		Listener:   listeners,
		Logger:     cfg.Logger,
	})
	return s
}

// Machine returns the interaction machine, or nil outside define mode.
func (s *Session) Machine() *interaction.Machine { return s.machine }

// Shim returns the navigation shim.
func (s *Session) Shim() *navsync.Shim { return s.shim }

// Run handles page events until the event channel closes (the page is
// gone) or ctx is done. In define mode queued events are compressed before
// dispatch so a burst of scrolls costs one refresh. Without the machine
// every sample is dispatched, since each one is a recorded event.
func (s *Session) Run(ctx context.Context) error {
	events := s.host.Events()
	var batch []host.Event
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			batch = append(batch[:0], ev)
			batch, ok = drain(events, batch)
			if s.machine != nil {
				batch = host.Compress(batch)
			}
			for _, e := range batch {
				s.handle(ctx, e)
			}
			if !ok {
				return nil
			}
		}
	}
}

// drain appends every event already queued. ok is false when the channel
// was closed.
func drain(events <-chan host.Event, batch []host.Event) ([]host.Event, bool) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return batch, false
			}
			batch = append(batch, ev)
		default:
			return batch, true
		}
	}
}

func (s *Session) handle(ctx context.Context, ev host.Event) {
	if s.stamp != nil {
		s.stamp.Stamp(ev.At)
	}
	var err error
	switch ev.Kind {
	case host.KindReady:
		if s.machine != nil {
			// Handles from the previous document are stale.
			err = s.machine.PointerLeave(false)
		}
		if serr := s.shim.Start(); serr != nil {
			err = errors.Join(err, serr)
		}
	case host.KindHistory:
		err = s.shim.HistoryChanged()
	case host.KindPopState:
		err = s.shim.PopState()
	case host.KindResize:
		err = s.shim.Resized()
	case host.KindScroll:
		err = s.shim.Scrolled()
	case host.KindFocus:
		err = s.shim.FocusRegained()
	case host.KindVisible:
		err = s.shim.VisibilityChanged(ev.Visible)
	default:
		if s.machine == nil {
			s.logger.Debug("annotator: ignoring define event", "kind", ev.Kind)
			return
		}
		err = s.handleDefine(ctx, ev)
	}
	if err != nil {
		s.logger.Warn("annotator: handle event", "kind", ev.Kind, "error", err)
	}
}

func (s *Session) handleDefine(ctx context.Context, ev host.Event) error {
	switch ev.Kind {
	case host.KindPointerEnter:
		if ev.Node == nil {
			return nil
		}
		return s.machine.PointerEnter(*ev.Node)
	case host.KindPointerLeave:
		return s.machine.PointerLeave(ev.OnAffordance)
	case host.KindCapture:
		_, _, err := s.machine.Capture(ctx)
		if errors.Is(err, interaction.ErrNotHovering) {
			s.logger.Debug("annotator: capture without hover")
			return nil
		}
		return err
	case host.KindKey:
		return s.machine.Key(ev.Key)
	case host.KindReveal:
		return s.machine.Reveal(ev.Page, ev.Index)
	case host.KindSave:
		if s.onSave == nil {
			return nil
		}
		return s.onSave(ctx)
	}
	return nil
}

func (s *Session) refresh() {
	if err := s.machine.Refresh(); err != nil {
		s.logger.Warn("annotator: refresh", "error", err)
	}
}

func (s *Session) syncList() {
	if err := s.machine.SyncList(); err != nil {
		s.logger.Warn("annotator: sync list", "error", err)
	}
	s.refresh()
}
