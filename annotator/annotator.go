// Package annotator runs webaoi against a live browser. An Annotator lets an
// operator define AOIs by hovering and labelling elements; a Recorder replays
// a definitions document while the operator browses and streams viewport
// geometry; a Screenshotter captures every defined AOI.
package annotator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/hazyhaar/webaoi/internal/browser"
	"github.com/hazyhaar/webaoi/internal/config"
	"github.com/hazyhaar/webaoi/internal/host"
	"github.com/hazyhaar/webaoi/internal/sink"
	"github.com/hazyhaar/webaoi/locator"
	"github.com/hazyhaar/webaoi/registry"
)

// Annotator is the define-mode orchestrator. It manages the browser, one
// Session per page and the sinks. All sessions share one Registry.
type Annotator struct {
	cfg    *config.Config
	mgr    *browser.Manager
	reg    *registry.Registry
	sinkR  *sink.Router
	logger *slog.Logger

	mu    sync.Mutex
	pages map[*host.Page]struct{}
	wg    sync.WaitGroup
}

// New creates an Annotator from configuration.
func New(cfg *config.Config, logger *slog.Logger, sinks ...sink.Sink) *Annotator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Annotator{
		cfg:    cfg,
		mgr:    newManager(cfg, logger),
		reg:    registry.New(),
		sinkR:  sink.NewRouter(logger, sinks...),
		pages:  make(map[*host.Page]struct{}),
		logger: logger,
	}
}

func newManager(cfg *config.Config, logger *slog.Logger) *browser.Manager {
	mode, err := browser.ParseMode(cfg.Browser.Mode)
	if err != nil {
		logger.Warn("annotator: falling back to headful", "error", err)
	}
	return browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		Bin:              cfg.Browser.Bin,
		Mode:             mode,
		Stealth:          cfg.Browser.Stealth,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		NavigateTimeout:  cfg.Browser.NavigateTimeout,
		ViewportWidth:    cfg.Browser.Viewport.Width,
		ViewportHeight:   cfg.Browser.Viewport.Height,
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		Logger:           logger,
	})
}

// Registry returns the shared registry.
func (a *Annotator) Registry() *registry.Registry { return a.reg }

// Restore preloads definitions, typically the output of an earlier run, so
// the operator continues where they left off. It returns the number of AOIs
// restored.
func (a *Annotator) Restore(doc *locator.Document) int {
	n := a.reg.Restore(doc)
	a.logger.Info("annotator: restored definitions", "aois", n)
	return n
}

// Run launches the browser, opens the start URL and serves every page the
// operator opens until all of them are closed or ctx is done. When
// save_on_exit is set the registry is exported once more before returning.
func (a *Annotator) Run(ctx context.Context) error {
	if a.cfg.StartURL == "" {
		return fmt.Errorf("annotator: no start url")
	}
	if _, err := a.mgr.Start(ctx); err != nil {
		return fmt.Errorf("annotator: start browser: %w", err)
	}

	tab, err := browser.NewTab(a.mgr)
	if err != nil {
		return fmt.Errorf("annotator: open tab: %w", err)
	}
	// The client must be installed before the first document loads.
	if err := a.attach(ctx, tab.Page); err != nil {
		tab.Close()
		return err
	}
	if err := tab.Navigate(ctx, a.cfg.StartURL); err != nil {
		return fmt.Errorf("annotator: %w", err)
	}

	if err := a.mgr.WatchPages(ctx, func(p *rod.Page) {
		if err := a.attach(ctx, browser.Wrap(a.mgr, p).Page); err != nil {
			a.logger.Warn("annotator: attach popup", "error", err)
		}
	}); err != nil {
		a.logger.Warn("annotator: watch pages", "error", err)
	}

	a.logger.Info("annotator: defining", "url", a.cfg.StartURL)
	a.wait(ctx)

	if a.cfg.SaveOnExit && a.reg.Len() > 0 {
		saveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.Save(saveCtx); err != nil {
			return fmt.Errorf("annotator: save on exit: %w", err)
		}
	}
	return nil
}

// wait blocks until every session has ended or ctx is done.
func (a *Annotator) wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		a.logger.Info("annotator: all pages closed")
	case <-ctx.Done():
		a.logger.Info("annotator: stopping", "reason", ctx.Err())
	}
}

func (a *Annotator) attach(ctx context.Context, p *rod.Page) error {
	hp := host.New(host.Config{Page: p, Mode: host.Define, Logger: a.logger})
	if err := hp.Attach(ctx); err != nil {
		return fmt.Errorf("annotator: attach: %w", err)
	}
	sess := NewSession(SessionConfig{
		Host:     hp,
		Define:   true,
		Registry: a.reg,
		OnSave:   a.Save,
		ClimbKey: a.cfg.ClimbKey,
		Logger:   a.logger.With("target", string(p.TargetID)),
	})

	a.mu.Lock()
	a.pages[hp] = struct{}{}
	a.mu.Unlock()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			a.mu.Lock()
			delete(a.pages, hp)
			a.mu.Unlock()
		}()
		sess.Run(ctx)
	}()
	return nil
}

// Save exports the registry and hands the document to every sink.
func (a *Annotator) Save(ctx context.Context) error {
	doc, err := a.reg.Export()
	if err != nil {
		// Malformed AOIs are skipped; the rest is still saved.
		a.logger.Warn("annotator: export", "error", err)
	}
	if err := a.sinkR.SaveDefinitions(ctx, doc); err != nil {
		return fmt.Errorf("annotator: save: %w", err)
	}
	a.logger.Info("annotator: saved", "pages", len(doc.Pages), "aois", doc.Len())
	return nil
}

// Stop detaches every page, closes the sinks and shuts the browser down.
func (a *Annotator) Stop() {
	a.mu.Lock()
	for hp := range a.pages {
		hp.Detach()
	}
	a.mu.Unlock()

	a.sinkR.Close()
	a.mgr.Close()
}
