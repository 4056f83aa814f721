// Package navsync turns in-page navigation and viewport changes into a
// deduplicated notification stream.
//
// History mutations that do not reload the document (pushState,
// replaceState, back/forward) are invisible to a host that only watches
// page loads. The Shim sits between the page and its history so every such
// mutation yields exactly one LocationChanged when, and only when, the
// location actually differs from the last one notified.
package navsync

import (
	"fmt"
	"log/slog"
)

// NavigationProvider is the host's history and location.
type NavigationProvider interface {
	Location() (string, error)
	PushState(url string) error
	ReplaceState(url string) error
	Back() error
	Forward() error
}

// Viewport is the host's window.
type Viewport interface {
	Size() (w, h int, err error)
	Scroll() (x, y float64, err error)
	// FocusActive focuses the active element, or the first element child of
	// the document when nothing is active.
	FocusActive() error
}

// Listener receives shim notifications. Implementations must not block.
type Listener interface {
	Scrolled(x, y float64)
	Resized(w, h int)
	FocusRegained(x, y float64)
	LocationChanged(url string)
	// PageElementsChanged asks listeners to re-enumerate page elements.
	PageElementsChanged()
}

// Config for creating a Shim.
type Config struct {
	Navigation NavigationProvider
	Viewport   Viewport
	Listener   Listener
	Logger     *slog.Logger
}

// Shim decorates a NavigationProvider. It is single-owner: all methods must
// be called from the session goroutine.
type Shim struct {
	nav      NavigationProvider
	vp       Viewport
	listener Listener
	logger   *slog.Logger

	lastURL string
}

// New creates a Shim. A nil listener discards notifications.
func New(cfg Config) *Shim {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Listener == nil {
		cfg.Listener = ListenerFuncs{}
	}
	return &Shim{
		nav:      cfg.Navigation,
		vp:       cfg.Viewport,
		listener: cfg.Listener,
		logger:   cfg.Logger,
	}
}

// Start records the current location as notified, then emits one location,
// one resize and one page-elements notification, and finally focuses the
// active element so focus events start flowing. It is called again after
// every full document load.
func (s *Shim) Start() error {
	url, err := s.nav.Location()
	if err != nil {
		return fmt.Errorf("navsync: start: %w", err)
	}
	s.lastURL = url
	s.listener.LocationChanged(url)

	w, h, err := s.vp.Size()
	if err != nil {
		return fmt.Errorf("navsync: start: %w", err)
	}
	s.listener.Resized(w, h)
	s.listener.PageElementsChanged()

	if err := s.vp.FocusActive(); err != nil {
		// Focus is best effort; some documents have nothing focusable.
		s.logger.Debug("navsync: focus active element", "error", err)
	}
	return nil
}

// LastLocation returns the last location notified.
func (s *Shim) LastLocation() string { return s.lastURL }

// PushState pushes url onto the history, then signals.
func (s *Shim) PushState(url string) error {
	if err := s.nav.PushState(url); err != nil {
		return fmt.Errorf("navsync: push state: %w", err)
	}
	return s.signal()
}

// ReplaceState replaces the current history entry, then signals.
func (s *Shim) ReplaceState(url string) error {
	if err := s.nav.ReplaceState(url); err != nil {
		return fmt.Errorf("navsync: replace state: %w", err)
	}
	return s.signal()
}

// Back navigates back. The host reports the resulting popstate through
// PopState.
func (s *Shim) Back() error {
	if err := s.nav.Back(); err != nil {
		return fmt.Errorf("navsync: back: %w", err)
	}
	return nil
}

// Forward navigates forward. See Back.
func (s *Shim) Forward() error {
	if err := s.nav.Forward(); err != nil {
		return fmt.Errorf("navsync: forward: %w", err)
	}
	return nil
}

// HistoryChanged signals a push or replace performed by the page itself.
func (s *Shim) HistoryChanged() error { return s.signal() }

// PopState signals native back/forward navigation.
func (s *Shim) PopState() error { return s.signal() }

// signal notifies LocationChanged then PageElementsChanged when the
// location differs from the last one notified.
func (s *Shim) signal() error {
	url, err := s.nav.Location()
	if err != nil {
		return fmt.Errorf("navsync: location: %w", err)
	}
	if url == s.lastURL {
		return nil
	}
	s.lastURL = url
	s.logger.Debug("navsync: location changed", "url", url)
	s.listener.LocationChanged(url)
	s.listener.PageElementsChanged()
	return nil
}

// Resized emits the new viewport size followed by a page-elements
// notification.
func (s *Shim) Resized() error {
	w, h, err := s.vp.Size()
	if err != nil {
		return fmt.Errorf("navsync: resize: %w", err)
	}
	s.listener.Resized(w, h)
	s.listener.PageElementsChanged()
	return nil
}

// Scrolled emits the scroll offset.
func (s *Shim) Scrolled() error {
	x, y, err := s.vp.Scroll()
	if err != nil {
		return fmt.Errorf("navsync: scroll: %w", err)
	}
	s.listener.Scrolled(x, y)
	return nil
}

// FocusRegained emits the scroll offset at the time the window regained
// focus.
func (s *Shim) FocusRegained() error {
	x, y, err := s.vp.Scroll()
	if err != nil {
		return fmt.Errorf("navsync: focus: %w", err)
	}
	s.listener.FocusRegained(x, y)
	return nil
}

// VisibilityChanged treats the document becoming visible as regained focus.
func (s *Shim) VisibilityChanged(visible bool) error {
	if !visible {
		return nil
	}
	return s.FocusRegained()
}
