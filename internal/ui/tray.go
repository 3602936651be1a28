// Package ui hosts the system tray surface: agent status, export
// progress and a cancel control. All real interaction goes through the
// HTTP API; the tray is a passive indicator with two actions.
package ui

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/framecull/framecull-agent/internal/export"
)

type Tray struct {
	exporter *export.Runner
	logger   *slog.Logger

	statusItem *systray.MenuItem
	clipsItem  *systray.MenuItem
	cancelItem *systray.MenuItem

	mu sync.Mutex

	onQuit func()
}

type TrayConfig struct {
	Exporter *export.Runner
	Logger   *slog.Logger
	OnQuit   func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		exporter: cfg.Exporter,
		logger:   cfg.Logger,
		onQuit:   cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Framecull")
	systray.SetTooltip("Framecull Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.clipsItem = systray.AddMenuItem("Clips: 0", "Registered clips")
	t.clipsItem.Disable()

	systray.AddSeparator()

	t.cancelItem = systray.AddMenuItem("Cancel Export", "Stop the running export after the current clip")
	t.cancelItem.Disable()

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Framecull Agent")

	go func() {
		for {
			select {
			case <-t.cancelItem.ClickedCh:
				t.handleCancel()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) handleCancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.exporter == nil || !t.exporter.IsRunning() {
		return
	}
	t.exporter.Cancel()
	t.statusItem.SetTitle("Status: Cancelling...")
}

// UpdateProgress reflects a running export in the tray.
func (t *Tray) UpdateProgress(p export.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.statusItem == nil {
		return
	}
	if p.Filename == "" && p.Current == p.Total {
		t.statusItem.SetTitle("Status: Idle")
		t.cancelItem.Disable()
		return
	}
	t.statusItem.SetTitle(fmt.Sprintf("Status: Exporting %d/%d", p.Current, p.Total))
	t.cancelItem.Enable()
}

func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.statusItem == nil {
		return
	}
	if status == "" {
		status = "Idle"
		t.cancelItem.Disable()
	}
	t.statusItem.SetTitle("Status: " + status)
}

func (t *Tray) UpdateClipsCount(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.clipsItem == nil {
		return
	}
	t.clipsItem.SetTitle(fmt.Sprintf("Clips: %d", count))
}

func (t *Tray) Quit() {
	systray.Quit()
}
