package sink

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hazyhaar/webaoi/locator"
	"github.com/hazyhaar/webaoi/relay"
)

// DefaultFile is the definitions file written when no path is configured.
const DefaultFile = "web-aois.json"

// File writes each export to a JSON file (4-space indent), replacing the
// previous content atomically. Events are appended to an optional log file,
// one wire string per line.
type File struct {
	path string

	mu     sync.Mutex
	events *os.File
}

// NewFile creates a File sink writing definitions to path. An empty path
// means DefaultFile. eventsPath may be empty to ignore events.
func NewFile(path, eventsPath string) (*File, error) {
	if path == "" {
		path = DefaultFile
	}
	f := &File{path: path}
	if eventsPath != "" {
		ev, err := os.OpenFile(eventsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("sink: open events file: %w", err)
		}
		f.events = ev
	}
	return f, nil
}

// Path returns the definitions file path.
func (f *File) Path() string { return f.path }

func (f *File) SaveDefinitions(_ context.Context, doc *locator.Document) error {
	var buf bytes.Buffer
	if err := doc.Encode(&buf, "    "); err != nil {
		return fmt.Errorf("sink: encode definitions: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".web-aois-*.json")
	if err != nil {
		return fmt.Errorf("sink: create temp: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("sink: write definitions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("sink: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("sink: rename: %w", err)
	}
	return nil
}

func (f *File) SendEvent(_ context.Context, ev relay.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.events == nil {
		return nil
	}
	_, err := fmt.Fprintf(f.events, "%d %s\n", ev.Timestamp.UnixNano(), ev.String())
	return err
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.events == nil {
		return nil
	}
	err := f.events.Close()
	f.events = nil
	return err
}
