// Command webaoi defines web areas of interest in a live browser, records
// their viewport geometry while an operator browses, and serves stored
// sessions.
//
// Usage:
//
//	webaoi define -url https://example.com -out web-aois.json
//	webaoi define -config webaoi.yaml
//	webaoi record -defs web-aois.json [-url https://example.com/other]
//	webaoi screenshot -defs web-aois.json -out shots/
//	webaoi resolve -defs web-aois.json -html shots/page.html -content
//	webaoi serve -db webaoi.db -addr :8086
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/webaoi/annotator"
	"github.com/hazyhaar/webaoi/aoiserve"
	"github.com/hazyhaar/webaoi/internal/config"
	"github.com/hazyhaar/webaoi/internal/store"
	"github.com/hazyhaar/webaoi/locator"
)

const usage = `usage: webaoi <command> [flags]

commands:
  define      annotate pages and export web-aois.json
  record      stream AOI geometry while browsing
  screenshot  capture every page and AOI of a definitions file
  resolve     resolve definitions against a saved HTML page
  serve       HTTP and MCP read API over the session database`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "define":
		err = runDefine(ctx, args)
	case "record":
		err = runRecord(ctx, args)
	case "screenshot":
		err = runScreenshot(ctx, args)
	case "resolve":
		err = runResolve(args)
	case "serve":
		err = runServe(ctx, args)
	case "-h", "-help", "--help", "help":
		fmt.Fprintln(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "webaoi: unknown command %q\n\n%s\n", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("webaoi: fatal", "command", cmd, "error", err)
		os.Exit(1)
	}
}

// common holds the flags every browser command accepts.
type common struct {
	configPath *string
	logLevel   *string
	mode       *string
}

func commonFlags(fs *flag.FlagSet) common {
	return common{
		configPath: fs.String("config", "", "path to webaoi.yaml config file"),
		logLevel:   fs.String("log-level", "info", "log level: debug, info, warn, error"),
		mode:       fs.String("mode", "", "browser mode: headful, headless, xvfb (overrides config)"),
	}
}

// setup builds the logger and loads the configuration.
func (c common) setup() (*config.Config, *slog.Logger, error) {
	logger := newLogger(*c.logLevel)
	cfg := config.Default()
	if *c.configPath != "" {
		var err error
		if cfg, err = annotator.LoadConfigFile(*c.configPath); err != nil {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
	}
	if *c.mode != "" {
		cfg.Browser.Mode = *c.mode
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	return cfg, logger, nil
}

func newLogger(name string) *slog.Logger {
	var level slog.Level
	switch name {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func runDefine(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("define", flag.ExitOnError)
	c := commonFlags(fs)
	startURL := fs.String("url", "", "start URL (overrides config)")
	out := fs.String("out", "", "definitions file (overrides config output)")
	resume := fs.Bool("resume", false, "preload the existing definitions file")
	fs.Parse(args)

	cfg, logger, err := c.setup()
	if err != nil {
		return err
	}
	if *startURL != "" {
		cfg.StartURL = *startURL
	}
	if *out != "" {
		cfg.Output = *out
		for i := range cfg.Sinks {
			if cfg.Sinks[i].Type == config.SinkFile {
				cfg.Sinks[i].Path = *out
			}
		}
	}

	sinks, err := annotator.BuildSinks(ctx, cfg, store.ModeDefine, logger)
	if err != nil {
		return err
	}
	a := annotator.New(cfg, logger, sinks...)
	defer a.Stop()

	if *resume {
		doc, err := loadDefinitions(cfg.Output)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logger.Info("webaoi: nothing to resume", "path", cfg.Output)
		case err != nil:
			return err
		default:
			a.Restore(doc)
		}
	}
	return a.Run(ctx)
}

func runRecord(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	c := commonFlags(fs)
	defsPath := fs.String("defs", "", "definitions file (default: config definitions)")
	startURL := fs.String("url", "", "start URL (default: first defined page)")
	events := fs.String("events", "", "also append events to this file")
	fs.Parse(args)

	cfg, logger, err := c.setup()
	if err != nil {
		return err
	}
	if *startURL != "" {
		cfg.StartURL = *startURL
	}
	if *defsPath == "" {
		*defsPath = cfg.Definitions
	}
	if *c.configPath == "" {
		// Without a config, events go to stdout as JSON lines.
		cfg.Sinks = []config.SinkConfig{{Type: config.SinkStdout}}
	}
	if *events != "" {
		cfg.Sinks = append(cfg.Sinks, config.SinkConfig{Type: config.SinkFile, Events: *events})
	}

	defs, err := loadDefinitions(*defsPath)
	if err != nil {
		return err
	}
	sinks, err := annotator.BuildSinks(ctx, cfg, store.ModeRecord, logger)
	if err != nil {
		return err
	}
	r := annotator.NewRecorder(cfg, defs, logger, sinks...)
	defer r.Stop()
	return r.Run(ctx)
}

func runScreenshot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("screenshot", flag.ExitOnError)
	c := commonFlags(fs)
	defsPath := fs.String("defs", "", "definitions file (default: config definitions)")
	out := fs.String("out", ".", "output directory")
	fs.Parse(args)

	cfg, logger, err := c.setup()
	if err != nil {
		return err
	}
	if *defsPath == "" {
		*defsPath = cfg.Definitions
	}
	defs, err := loadDefinitions(*defsPath)
	if err != nil {
		return err
	}

	s := annotator.NewScreenshotter(cfg, logger)
	defer s.Stop()
	shots, err := s.Run(ctx, defs, *out)
	enc := json.NewEncoder(os.Stdout)
	for _, shot := range shots {
		enc.Encode(shot)
	}
	return err
}

func runResolve(args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	defsPath := fs.String("defs", "web-aois.json", "definitions file")
	htmlPath := fs.String("html", "", "saved HTML page")
	pageURL := fs.String("url", "", "URL the definitions are keyed by (default: first defined page)")
	content := fs.Bool("content", false, "include each AOI's content as Markdown")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Parse(args)
	newLogger(*logLevel)

	if *htmlPath == "" {
		return fmt.Errorf("resolve: -html is required")
	}
	defs, err := loadDefinitions(*defsPath)
	if err != nil {
		return err
	}
	if *pageURL == "" {
		if len(defs.Pages) == 0 {
			return fmt.Errorf("resolve: %s defines no pages", *defsPath)
		}
		*pageURL = defs.Pages[0].URL
	}

	f, err := os.Open(*htmlPath)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	defer f.Close()

	var opts []annotator.ResolveOption
	if *content {
		opts = append(opts, annotator.WithContent())
	}
	res, err := annotator.ResolveHTML(f, defs, *pageURL, opts...)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to webaoi.yaml config file")
	dbPath := fs.String("db", "", "session database (overrides config)")
	addr := fs.String("addr", "", "listen address (overrides config)")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Parse(args)
	logger := newLogger(*logLevel)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = annotator.LoadConfigFile(*configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if *dbPath != "" {
		cfg.DB = *dbPath
	}
	if *addr != "" {
		cfg.Serve.Addr = *addr
	}

	st, err := store.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := aoiserve.New(st, logger)
	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "webaoi", Version: "1.0.0"}, nil)
	svc.RegisterMCP(mcpSrv)

	srv := &http.Server{
		Addr:              cfg.Serve.Addr,
		Handler:           svc.Handler(mcpSrv),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("webaoi: serving", "addr", cfg.Serve.Addr, "db", cfg.DB)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadDefinitions(path string) (*locator.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load definitions: %w", err)
	}
	defer f.Close()
	doc, err := locator.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load definitions %s: %w", path, err)
	}
	return doc, nil
}
