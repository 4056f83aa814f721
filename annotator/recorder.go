package annotator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/hazyhaar/webaoi/internal/browser"
	"github.com/hazyhaar/webaoi/internal/config"
	"github.com/hazyhaar/webaoi/internal/host"
	"github.com/hazyhaar/webaoi/internal/sink"
	"github.com/hazyhaar/webaoi/locator"
	"github.com/hazyhaar/webaoi/relay"
)

// Recorder is the record-mode orchestrator. Every page gets a relay tab fed
// by a navigation shim; the resulting event stream goes to the sinks.
type Recorder struct {
	cfg    *config.Config
	defs   *locator.Document
	mgr    *browser.Manager
	sinkR  *sink.Router
	relay  *relay.Relay
	logger *slog.Logger

	wg sync.WaitGroup
}

// NewRecorder creates a Recorder resolving the AOIs of defs.
func NewRecorder(cfg *config.Config, defs *locator.Document, logger *slog.Logger, sinks ...sink.Sink) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if defs == nil {
		defs = &locator.Document{}
	}
	r := &Recorder{
		cfg:    cfg,
		defs:   defs,
		mgr:    newManager(cfg, logger),
		sinkR:  sink.NewRouter(logger, sinks...),
		logger: logger,
	}
	r.relay = relay.New(relay.Config{
		Definitions: defs,
		Publisher:   r.sinkR,
		Logger:      logger,
	})
	return r
}

// StartURL is the configured start URL, else the first page of the
// definitions document.
func (r *Recorder) StartURL() string {
	if r.cfg.StartURL != "" {
		return r.cfg.StartURL
	}
	if len(r.defs.Pages) > 0 {
		return r.defs.Pages[0].URL
	}
	return ""
}

// Run opens the start URL and records every page until all are closed or
// ctx is done.
func (r *Recorder) Run(ctx context.Context) error {
	start := r.StartURL()
	if start == "" {
		return fmt.Errorf("annotator: record: no start url and no defined pages")
	}
	if _, err := r.mgr.Start(ctx); err != nil {
		return fmt.Errorf("annotator: start browser: %w", err)
	}

	tab, err := browser.NewTab(r.mgr)
	if err != nil {
		return fmt.Errorf("annotator: open tab: %w", err)
	}
	if err := r.attach(ctx, tab.Page); err != nil {
		tab.Close()
		return err
	}
	if err := tab.Navigate(ctx, start); err != nil {
		return fmt.Errorf("annotator: %w", err)
	}

	if err := r.mgr.WatchPages(ctx, func(p *rod.Page) {
		if err := r.attach(ctx, browser.Wrap(r.mgr, p).Page); err != nil {
			r.logger.Warn("annotator: attach popup", "error", err)
		}
	}); err != nil {
		r.logger.Warn("annotator: watch pages", "error", err)
	}

	r.logger.Info("annotator: recording", "url", start, "pages", len(r.defs.Pages), "aois", r.defs.Len())

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Info("annotator: all pages closed")
	case <-ctx.Done():
		r.logger.Info("annotator: stopping", "reason", ctx.Err())
	}
	return nil
}

func (r *Recorder) attach(ctx context.Context, p *rod.Page) error {
	hp := host.New(host.Config{Page: p, Mode: host.Record, Logger: r.logger})
	if err := hp.Attach(ctx); err != nil {
		return fmt.Errorf("annotator: attach: %w", err)
	}
	tab := r.relay.OpenTab(ctx, hp)
	sess := NewSession(SessionConfig{
		Host:     hp,
		Listener: tab,
		Logger:   r.logger.With("tab", tab.ID()),
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer hp.Detach()
		sess.Run(ctx)
	}()
	return nil
}

// Stop closes the sinks and shuts the browser down.
func (r *Recorder) Stop() {
	r.sinkR.Close()
	r.mgr.Close()
}
