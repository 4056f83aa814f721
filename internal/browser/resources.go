package browser

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockable maps configuration names to CDP resource types.
var blockable = map[string]proto.NetworkResourceType{
	"images":      proto.NetworkResourceTypeImage,
	"fonts":       proto.NetworkResourceTypeFont,
	"media":       proto.NetworkResourceTypeMedia,
	"stylesheets": proto.NetworkResourceTypeStylesheet,
}

// blockedTypes resolves configuration names, rejecting unknown ones.
func blockedTypes(names []string) ([]proto.NetworkResourceType, error) {
	out := make([]proto.NetworkResourceType, 0, len(names))
	seen := make(map[proto.NetworkResourceType]bool, len(names))
	for _, n := range names {
		rt, ok := blockable[strings.ToLower(n)]
		if !ok {
			return nil, fmt.Errorf("browser: unknown resource type %q", n)
		}
		if !seen[rt] {
			seen[rt] = true
			out = append(out, rt)
		}
	}
	return out, nil
}

// changesLayout reports whether blocking rt moves elements, which shifts
// every recorded AOI box.
func changesLayout(rt proto.NetworkResourceType) bool {
	return rt == proto.NetworkResourceTypeStylesheet || rt == proto.NetworkResourceTypeFont
}

// applyResourceBlocking fails requests of the given types. Only matching
// requests are paused by the browser; everything else flows untouched.
func (m *Manager) applyResourceBlocking(page *rod.Page, names []string) error {
	types, err := blockedTypes(names)
	if err != nil {
		return err
	}
	router := page.HijackRequests()
	for _, rt := range types {
		if changesLayout(rt) {
			m.cfg.Logger.Warn("browser: blocking resources that affect layout", "type", rt)
		}
		err := router.Add("*", rt, func(h *rod.Hijack) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		})
		if err != nil {
			return fmt.Errorf("browser: block %s: %w", rt, err)
		}
	}
	go router.Run()
	return nil
}
