package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	minScreenWidth  = 1920
	minScreenHeight = 1080
)

// xvfbScreen returns the Xvfb screen spec. The screen is never smaller than
// the configured viewport so recorded AOI geometry is not clipped by the
// window.
func xvfbScreen(width, height int) string {
	w, h := minScreenWidth, minScreenHeight
	if width > w {
		w = width
	}
	if height > h {
		h = height
	}
	return fmt.Sprintf("%dx%dx24", w, h)
}

// xvfbSocket is the X11 socket Xvfb creates for display ":N".
func xvfbSocket(display string) string {
	return "/tmp/.X11-unix/X" + strings.TrimPrefix(display, ":")
}

// startXvfb runs Xvfb on the configured display and waits for its socket.
func (m *Manager) startXvfb(ctx context.Context) error {
	if m.xvfb != nil {
		return nil
	}

	display := m.cfg.XvfbDisplay
	screen := xvfbScreen(m.cfg.ViewportWidth, m.cfg.ViewportHeight)
	cmd := exec.Command("Xvfb", display, "-screen", "0", screen, "-ac", "-nolisten", "tcp")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start xvfb: %w", err)
	}
	m.xvfb = cmd

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	sock := xvfbSocket(display)
	for {
		if _, err := os.Stat(sock); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			m.stopXvfb()
			return fmt.Errorf("xvfb %s not ready: %w", display, ctx.Err())
		case <-time.After(50 * time.Millisecond):
		}
	}

	m.cfg.Logger.Info("browser: xvfb started", "display", display, "screen", screen, "pid", cmd.Process.Pid)
	return nil
}

func (m *Manager) stopXvfb() {
	if m.xvfb == nil {
		return
	}
	if p := m.xvfb.Process; p != nil {
		_ = p.Kill()
		_ = m.xvfb.Wait()
	}
	m.cfg.Logger.Info("browser: xvfb stopped", "display", m.cfg.XvfbDisplay)
	m.xvfb = nil
}
