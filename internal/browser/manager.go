// Package browser manages the Chrome instance an operator annotates in:
// launch or remote connect via Rod, headful/headless/Xvfb modes, and
// page creation with optional stealth.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Mode controls how Chrome is displayed.
type Mode int

const (
	Headful  Mode = iota // visible window, the define default
	Headless             // no window; screenshots and unattended recording
	Xvfb                 // headful on a virtual display
)

func (m Mode) String() string {
	switch m {
	case Headful:
		return "headful"
	case Headless:
		return "headless"
	case Xvfb:
		return "xvfb"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps a configuration string to a Mode. Empty means Headful.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "headful":
		return Headful, nil
	case "headless":
		return Headless, nil
	case "xvfb":
		return Xvfb, nil
	}
	return 0, fmt.Errorf("browser: unknown mode %q", s)
}

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Bin overrides the Chrome binary. Empty lets the launcher find or
	// download one.
	Bin string

	Mode Mode

	// Stealth opens pages through go-rod/stealth.
	Stealth bool

	// ResourceBlocking lists resource types to block (images, fonts, media, stylesheets).
	ResourceBlocking []string

	// NavigateTimeout bounds each navigation. Default: 30s.
	NavigateTimeout time.Duration

	// ViewportWidth and ViewportHeight set the page viewport when both are
	// positive.
	ViewportWidth  int
	ViewportHeight int

	// XvfbDisplay for Xvfb mode. Default: ":99".
	XvfbDisplay string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.XvfbDisplay == "" {
		c.XvfbDisplay = ":99"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns the Chrome process for one run.
type Manager struct {
	cfg     Config
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	xvfb    *exec.Cmd
	closed  bool
}

// NewManager creates a browser Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start launches Chrome (or connects to a remote instance) and returns
// the Rod browser handle.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("browser: manager is closed")
	}
	if m.browser != nil {
		return m.browser, nil
	}

	b, err := m.launch(ctx)
	if err != nil {
		m.cleanup()
		return nil, err
	}
	m.browser = b
	return b, nil
}

// Browser returns the current Rod browser handle. Thread-safe.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// Close shuts down Chrome and Xvfb.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.cleanup()
}

func (m *Manager) launch(ctx context.Context) (*rod.Browser, error) {
	wsURL := m.cfg.RemoteURL
	if wsURL == "" {
		if m.cfg.Mode == Xvfb {
			if err := m.startXvfb(ctx); err != nil {
				return nil, fmt.Errorf("browser: xvfb: %w", err)
			}
		}
		l := m.newLauncher(ctx)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		m.lnch = l
		wsURL = u
		m.cfg.Logger.Info("browser: launched local chrome", "url", wsURL, "mode", m.cfg.Mode)
	} else {
		m.cfg.Logger.Info("browser: connecting to remote", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		m.cfg.Logger.Warn("browser: ignore cert errors failed", "error", err)
	}
	return b, nil
}

// newLauncher configures a local Chrome. Headful windows open at the
// configured viewport size so the operator sees what will be recorded.
func (m *Manager) newLauncher(ctx context.Context) *launcher.Launcher {
	l := launcher.New().Context(ctx).
		Set("disable-blink-features", "AutomationControlled").
		Set("no-first-run")
	if m.cfg.Bin != "" {
		l = l.Bin(m.cfg.Bin)
	}
	switch m.cfg.Mode {
	case Headless:
		l = l.Headless(true)
	case Xvfb:
		l = l.Headless(false).Env("DISPLAY=" + m.cfg.XvfbDisplay)
	default:
		l = l.Headless(false)
	}
	if w, h := m.cfg.ViewportWidth, m.cfg.ViewportHeight; w > 0 && h > 0 {
		l = l.Set("window-size", fmt.Sprintf("%d,%d", w, h))
	}
	return l
}

func (m *Manager) cleanup() error {
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	m.stopXvfb()
	return nil
}

// WatchPages calls fn for every page target created after the call
// (popups, window.open, user-opened tabs) until ctx is done.
func (m *Manager) WatchPages(ctx context.Context, fn func(*rod.Page)) error {
	b := m.Browser()
	if b == nil {
		return fmt.Errorf("browser: no active browser")
	}
	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(b); err != nil {
		return fmt.Errorf("browser: discover targets: %w", err)
	}
	wait := b.Context(ctx).EachEvent(func(e *proto.TargetTargetCreated) {
		if string(e.TargetInfo.Type) != "page" {
			return
		}
		id := e.TargetInfo.TargetID
		go func() {
			p, err := b.PageFromTarget(id)
			if err != nil {
				m.cfg.Logger.Warn("browser: attach new page", "target", id, "error", err)
				return
			}
			fn(p)
		}()
	})
	go wait()
	return nil
}
