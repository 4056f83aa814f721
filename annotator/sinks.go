package annotator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hazyhaar/webaoi/internal/config"
	"github.com/hazyhaar/webaoi/internal/sink"
	"github.com/hazyhaar/webaoi/internal/store"
	"github.com/hazyhaar/webaoi/locator"
	"github.com/hazyhaar/webaoi/relay"
)

// Sink is the output interface for exports and recorded events.
type Sink = sink.Sink

// NewFileSink creates a sink writing definitions to path and, when
// eventsPath is set, appending events to eventsPath.
func NewFileSink(path, eventsPath string) (Sink, error) {
	return sink.NewFile(path, eventsPath)
}

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry and event batching.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process sink. Either function may be nil.
func NewCallbackSink(
	onDefinitions func(ctx context.Context, doc *locator.Document) error,
	onEvent func(ctx context.Context, ev relay.Event) error,
) Sink {
	return sink.NewCallback(onDefinitions, onEvent)
}

// BuildSinks opens every configured sink. A sqlite sink opens its database
// and starts a store session of the given mode ("define" or "record"); the
// sink ends the session on Close. On error the sinks already opened are
// closed.
func BuildSinks(ctx context.Context, cfg *Config, mode string, logger *slog.Logger) ([]Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var out []Sink
	fail := func(err error) ([]Sink, error) {
		for _, s := range out {
			s.Close()
		}
		return nil, err
	}

	for i, sc := range cfg.Sinks {
		switch sc.Type {
		case config.SinkFile:
			f, err := sink.NewFile(sc.Path, sc.Events)
			if err != nil {
				return fail(fmt.Errorf("annotator: sinks[%d]: %w", i, err))
			}
			out = append(out, f)
		case config.SinkStdout:
			out = append(out, sink.NewStdout(os.Stdout))
		case config.SinkWebhook:
			out = append(out, sink.NewWebhook(sc.URL, sink.WithWebhookLogger(logger), sink.WithWebhookBatch(sc.Batch)))
		case config.SinkSQLite:
			st, err := store.Open(sc.Path)
			if err != nil {
				return fail(fmt.Errorf("annotator: sinks[%d]: %w", i, err))
			}
			sess := &store.Session{Mode: mode, StartURL: cfg.StartURL}
			if err := st.CreateSession(ctx, sess); err != nil {
				st.Close()
				return fail(fmt.Errorf("annotator: sinks[%d]: %w", i, err))
			}
			logger.Info("annotator: sqlite session", "db", sc.Path, "session", sess.ID)
			out = append(out, sink.NewSQLite(st, sess.ID, true))
		default:
			return fail(fmt.Errorf("annotator: sinks[%d]: unknown type %q", i, sc.Type))
		}
	}
	return out, nil
}
