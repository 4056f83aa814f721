// Package interaction implements the hover/selection state machine that
// turns pointer and key input into captured AOIs.
//
// A Machine is single-owner: every method must be called from the one
// goroutine that drives the session. Capture blocks in the Prompter; that is
// the only suspension point, and it resolves either to a label or to cancel.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/webaoi/address"
	"github.com/hazyhaar/webaoi/dom"
	"github.com/hazyhaar/webaoi/geometry"
	"github.com/hazyhaar/webaoi/registry"
)

// State of the machine.
type State int

const (
	Idle State = iota
	Hovering
	CapturePrompt
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Hovering:
		return "hovering"
	case CapturePrompt:
		return "capture_prompt"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DefaultClimbKey selects the parent container while hovering.
const DefaultClimbKey = "p"

// AffordanceInset is how far the capture affordance sits inside the
// hovered element's box on every side.
const AffordanceInset = 2

var (
	// ErrNotHovering is returned by Capture when no element is hovered.
	ErrNotHovering = errors.New("interaction: no hovered element")
	// ErrNoSuchAOI is returned by Reveal for an unknown (page, index).
	ErrNoSuchAOI = errors.New("interaction: no such AOI")
)

// Overlay draws the tool's own chrome. Everything it renders must carry
// dom.IgnoreClass.
type Overlay interface {
	// Show places the capture affordance over box.
	Show(box geometry.BoundingBox) error
	// Hide removes the capture affordance.
	Hide() error
	// Append adds a captured AOI to the list panel.
	Append(pageKey string, index int, aoi registry.AOI) error
	// List replaces the list panel with the AOIs of pageKey.
	List(pageKey string, aois []registry.AOI) error
	// Reveal scrolls n into view and flashes it.
	Reveal(n dom.Node) error
}

// Prompter asks the operator for a label. ok is false on cancel.
type Prompter interface {
	PromptLabel(ctx context.Context, def string) (label string, ok bool, err error)
}

// PageSource returns the key of the page currently shown.
type PageSource interface {
	PageKey() (string, error)
}

// Config wires a Machine to its host capabilities.
type Config struct {
	Tree     dom.Tree
	Geometry geometry.Provider
	Overlay  Overlay
	Prompter Prompter
	Pages    PageSource
	Registry *registry.Registry
	ClimbKey string
	Logger   *slog.Logger
}

// Machine is the interaction state machine for one page.
type Machine struct {
	tree     dom.Tree
	geo      geometry.Provider
	overlay  Overlay
	prompter Prompter
	pages    PageSource
	reg      *registry.Registry
	climbKey string
	logger   *slog.Logger

	state   State
	hovered dom.Node
	pending dom.Node
}

// New creates a Machine in the Idle state.
func New(cfg Config) *Machine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ClimbKey == "" {
		cfg.ClimbKey = DefaultClimbKey
	}
	return &Machine{
		tree:     cfg.Tree,
		geo:      cfg.Geometry,
		overlay:  cfg.Overlay,
		prompter: cfg.Prompter,
		pages:    cfg.Pages,
		reg:      cfg.Registry,
		climbKey: cfg.ClimbKey,
		logger:   cfg.Logger,
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Hovered returns the hovered node, or nil.
func (m *Machine) Hovered() dom.Node { return m.hovered }

// PointerEnter hovers n. The tool's own chrome is skipped.
func (m *Machine) PointerEnter(n dom.Node) error {
	if n == nil {
		return nil
	}
	ignored, err := dom.Ignored(m.tree, n)
	if err != nil {
		return fmt.Errorf("interaction: pointer enter: %w", err)
	}
	if ignored {
		return nil
	}
	m.hovered = n
	m.state = Hovering
	return m.showAffordance()
}

// PointerLeave un-hovers unless the pointer moved onto the affordance.
func (m *Machine) PointerLeave(onAffordance bool) error {
	if onAffordance || m.hovered == nil {
		return nil
	}
	m.hovered = nil
	m.state = Idle
	if err := m.overlay.Hide(); err != nil {
		return fmt.Errorf("interaction: pointer leave: %w", err)
	}
	return nil
}

// Capture prompts for a label for the hovered element and records it. It
// returns the stored AOI and true, or false when the operator cancelled or
// entered an empty label.
func (m *Machine) Capture(ctx context.Context) (registry.AOI, bool, error) {
	if m.hovered == nil {
		return registry.AOI{}, false, ErrNotHovering
	}

	m.pending = m.hovered
	m.state = CapturePrompt
	defer func() {
		m.pending = nil
		if m.hovered != nil {
			m.state = Hovering
		} else {
			m.state = Idle
		}
	}()

	def, err := m.defaultLabel(m.pending)
	if err != nil {
		return registry.AOI{}, false, fmt.Errorf("interaction: capture: %w", err)
	}

	label, ok, err := m.prompter.PromptLabel(ctx, def)
	if err != nil {
		return registry.AOI{}, false, fmt.Errorf("interaction: capture: prompt: %w", err)
	}
	if !ok || label == "" {
		m.logger.Debug("interaction: capture cancelled")
		return registry.AOI{}, false, nil
	}

	a, err := address.Encode(m.tree, m.pending)
	if err != nil {
		return registry.AOI{}, false, fmt.Errorf("interaction: capture: %w", err)
	}
	pageKey, err := m.pages.PageKey()
	if err != nil {
		return registry.AOI{}, false, fmt.Errorf("interaction: capture: page key: %w", err)
	}

	aoi := registry.AOI{Label: label, Address: a}
	index, _ := m.reg.Capture(pageKey, label, a)
	m.logger.Info("interaction: captured", "page", pageKey, "label", label, "index", index, "address", string(a))

	if err := m.overlay.Append(pageKey, index, aoi); err != nil {
		return aoi, true, fmt.Errorf("interaction: capture: list: %w", err)
	}
	return aoi, true, nil
}

// defaultLabel proposes the element's id, else its alt text.
func (m *Machine) defaultLabel(n dom.Node) (string, error) {
	id, err := dom.ID(m.tree, n)
	if err != nil || id != "" {
		return id, err
	}
	return m.tree.Attr(n, "alt")
}

// Key handles a key release. Only the climb key (any case) acts.
func (m *Machine) Key(key string) error {
	if !strings.EqualFold(key, m.climbKey) {
		return nil
	}
	return m.Climb()
}

// Climb moves the hover to the nearest ancestor with a different box. It is
// a no-op when nothing is hovered.
func (m *Machine) Climb() error {
	if m.hovered == nil {
		return nil
	}
	n, err := geometry.Climb(m.tree, m.geo, m.hovered)
	if err != nil {
		return fmt.Errorf("interaction: climb: %w", err)
	}
	m.hovered = n
	m.state = Hovering
	return m.showAffordance()
}

// Reveal scrolls the index-th AOI of pageKey into view. Interaction state is
// not touched. Resolution failures are *address.ResolutionError.
func (m *Machine) Reveal(pageKey string, index int) error {
	aoi, ok := m.reg.Lookup(pageKey, index)
	if !ok {
		return fmt.Errorf("%w: %s #%d", ErrNoSuchAOI, pageKey, index)
	}
	n, err := address.Decode(m.tree, aoi.Address)
	if err != nil {
		return err
	}
	if err := m.overlay.Reveal(n); err != nil {
		return fmt.Errorf("interaction: reveal: %w", err)
	}
	return nil
}

// Refresh repositions the affordance after scroll, resize or navigation.
// If the hovered node no longer has a box it is dropped.
func (m *Machine) Refresh() error {
	if m.hovered == nil {
		return nil
	}
	if err := m.showAffordance(); err != nil {
		m.logger.Debug("interaction: hovered node lost", "error", err)
		m.hovered = nil
		m.state = Idle
		if herr := m.overlay.Hide(); herr != nil {
			return fmt.Errorf("interaction: refresh: %w", herr)
		}
	}
	return nil
}

// SyncList re-renders the list panel for the current page.
func (m *Machine) SyncList() error {
	pageKey, err := m.pages.PageKey()
	if err != nil {
		return fmt.Errorf("interaction: sync list: %w", err)
	}
	if err := m.overlay.List(pageKey, m.reg.Page(pageKey)); err != nil {
		return fmt.Errorf("interaction: sync list: %w", err)
	}
	return nil
}

func (m *Machine) showAffordance() error {
	box, err := m.geo.Box(m.hovered)
	if err != nil {
		return fmt.Errorf("interaction: box: %w", err)
	}
	if err := m.overlay.Show(geometry.Inset(box, AffordanceInset)); err != nil {
		return fmt.Errorf("interaction: show: %w", err)
	}
	return nil
}
