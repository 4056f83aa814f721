package annotator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hazyhaar/webaoi/internal/browser"
	"github.com/hazyhaar/webaoi/internal/config"
	"github.com/hazyhaar/webaoi/internal/host"
	"github.com/hazyhaar/webaoi/locator"
)

const (
	// FullPageFile is the name of the full-page capture in each page directory.
	FullPageFile = "full-page.png"
	// SnapshotFile holds the page's DOM at capture time, for offline resolve.
	SnapshotFile = "page.html"
)

// Screenshotter captures every page of a definitions document and every AOI
// found on it.
type Screenshotter struct {
	mgr    *browser.Manager
	logger *slog.Logger
}

// NewScreenshotter creates a Screenshotter with its own browser.
func NewScreenshotter(cfg *config.Config, logger *slog.Logger) *Screenshotter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Screenshotter{mgr: newManager(cfg, logger), logger: logger}
}

// Shot is one written file. AOI is empty for the full-page capture and the
// DOM snapshot.
type Shot struct {
	URL  string `json:"url"`
	AOI  string `json:"aoi,omitempty"`
	Path string `json:"path"`
}

// Run writes full-page.png, page.html and aoi-<name>.png for each page of doc. A
// single-page document writes into outDir; otherwise page i writes into
// outDir/<i>. AOIs that resolve to nothing are logged and skipped.
func (s *Screenshotter) Run(ctx context.Context, doc *locator.Document, outDir string) ([]Shot, error) {
	if _, err := s.mgr.Start(ctx); err != nil {
		return nil, fmt.Errorf("annotator: start browser: %w", err)
	}

	var shots []Shot
	for i, page := range doc.Pages {
		dir := outDir
		if len(doc.Pages) > 1 {
			dir = filepath.Join(outDir, strconv.Itoa(i))
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return shots, fmt.Errorf("annotator: screenshot dir: %w", err)
		}
		got, err := s.page(ctx, page, dir)
		shots = append(shots, got...)
		if err != nil {
			return shots, err
		}
	}
	return shots, nil
}

func (s *Screenshotter) page(ctx context.Context, page locator.Page, dir string) ([]Shot, error) {
	tab, err := browser.OpenTab(ctx, s.mgr, page.URL)
	if err != nil {
		return nil, fmt.Errorf("annotator: screenshot: %w", err)
	}
	defer tab.Close()

	hp := host.New(host.Config{Page: tab.Page, Mode: host.Record, Logger: s.logger})
	if err := hp.Attach(ctx); err != nil {
		return nil, fmt.Errorf("annotator: screenshot: %w", err)
	}
	defer hp.Detach()

	var shots []Shot
	img, err := hp.Screenshot(ctx, true)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, FullPageFile)
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return nil, fmt.Errorf("annotator: write screenshot: %w", err)
	}
	shots = append(shots, Shot{URL: page.URL, Path: path})

	if html, err := tab.HTML(ctx); err != nil {
		s.logger.Warn("annotator: page snapshot", "url", page.URL, "error", err)
	} else {
		path := filepath.Join(dir, SnapshotFile)
		if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
			return shots, fmt.Errorf("annotator: write snapshot: %w", err)
		}
		shots = append(shots, Shot{URL: page.URL, Path: path})
	}

	for _, def := range page.AOIs {
		found, err := hp.Locate(ctx, def.Chain)
		if err != nil {
			s.logger.Warn("annotator: locate aoi", "url", page.URL, "aoi", def.Name, "error", err)
			continue
		}
		if len(found) == 0 {
			s.logger.Warn("annotator: aoi not found", "url", page.URL, "aoi", def.Name)
			continue
		}
		img, err := hp.ScreenshotElement(ctx, found[0])
		if err != nil {
			s.logger.Warn("annotator: screenshot aoi", "url", page.URL, "aoi", def.Name, "error", err)
			continue
		}
		path := filepath.Join(dir, AOIFile(def.Name))
		if err := os.WriteFile(path, img, 0o644); err != nil {
			return shots, fmt.Errorf("annotator: write screenshot: %w", err)
		}
		shots = append(shots, Shot{URL: page.URL, AOI: def.Name, Path: path})
	}
	s.logger.Info("annotator: page captured", "url", page.URL, "files", len(shots))
	return shots, nil
}

// AOIFile is the screenshot file name for an AOI label. Path separators
// and other characters unsafe in file names become "_".
func AOIFile(name string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, name)
	if safe == "" || safe == "." || safe == ".." {
		safe = "_"
	}
	return "aoi-" + safe + ".png"
}

// Stop shuts the browser down.
func (s *Screenshotter) Stop() {
	s.mgr.Close()
}
