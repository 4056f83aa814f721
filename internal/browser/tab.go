package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab wraps a Rod page with webaoi-specific setup: stealth, resource
// blocking and viewport.
type Tab struct {
	Page    *rod.Page
	manager *Manager
}

// NewTab creates a blank tab with the manager's page settings applied.
func NewTab(mgr *Manager) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	var page *rod.Page
	var err error
	if mgr.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	return Wrap(mgr, page), nil
}

// Wrap applies the manager's page settings to an existing page, such as a
// popup reported by WatchPages.
func Wrap(mgr *Manager, page *rod.Page) *Tab {
	if len(mgr.cfg.ResourceBlocking) > 0 {
		if err := mgr.applyResourceBlocking(page, mgr.cfg.ResourceBlocking); err != nil {
			mgr.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}
	if mgr.cfg.ViewportWidth > 0 && mgr.cfg.ViewportHeight > 0 {
		err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             mgr.cfg.ViewportWidth,
			Height:            mgr.cfg.ViewportHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			mgr.cfg.Logger.Warn("browser: set viewport failed", "error", err)
		}
	}
	return &Tab{Page: page, manager: mgr}
}

// OpenTab creates a new tab and navigates it to pageURL.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string) (*Tab, error) {
	t, err := NewTab(mgr)
	if err != nil {
		return nil, err
	}
	if err := t.Navigate(ctx, pageURL); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// Navigate loads pageURL with the manager's navigation timeout and waits for
// the load event. A load timeout is logged, not returned.
func (t *Tab) Navigate(ctx context.Context, pageURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, t.manager.cfg.NavigateTimeout)
	defer cancel()

	if err := t.Page.Context(navCtx).Navigate(pageURL); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := t.Page.Context(navCtx).WaitLoad(); err != nil {
		t.manager.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	return nil
}

// HTML serialises the complete DOM as outer HTML.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	res, err := t.Page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
