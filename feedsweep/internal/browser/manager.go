// CLAUDE:SUMMARY Chrome lifecycle for the feed tab: launch with a logged-in profile or connect remote, heap/age monitoring that requests recycling.
// Package browser runs the Chrome instance feedsweep drives: launch (with
// the signed-in user's profile) or remote connect, health monitoring, and
// recycling on age or memory pressure.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an already running Chrome.
	// Empty launches a local Chrome.
	RemoteURL string

	// UserDataDir is the Chrome profile holding the feed session cookies.
	UserDataDir string

	// Headful runs a visible Chrome on an Xvfb display.
	Headful     bool
	XvfbDisplay string

	// MemoryLimit in bytes of JS heap before a recycle is requested.
	// Default: 1GB.
	MemoryLimit int64

	// RecycleInterval is the maximum lifetime of a Chrome process.
	// Default: 4h.
	RecycleInterval time.Duration

	// CheckInterval is the health check period. Default: 30s.
	CheckInterval time.Duration

	// ResourceBlocking lists resource types to block (images, fonts, media,
	// stylesheets).
	ResourceBlocking []string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MemoryLimit <= 0 {
		c.MemoryLimit = 1 << 30
	}
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 30 * time.Second
	}
	if c.XvfbDisplay == "" {
		c.XvfbDisplay = ":99"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns one Chrome process at a time.
type Manager struct {
	cfg     Config
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	xvfb    *exec.Cmd
	startAt time.Time
	closed  bool
	due     chan string
}

// NewManager creates a Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg, due: make(chan string, 1)}
}

// Start launches Chrome (or connects to a remote instance) and starts the
// health monitor.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("browser: manager is closed")
	}

	b, err := m.launch(ctx)
	if err != nil {
		return nil, err
	}
	m.browser = b
	m.startAt = time.Now()

	go m.monitorLoop(ctx)

	return b, nil
}

// Browser returns the current Rod browser handle.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// RecycleDue delivers a reason whenever the monitor decides Chrome should be
// recycled. The owner of the tab calls Recycle once it has let go of it.
func (m *Manager) RecycleDue() <-chan string {
	return m.due
}

// Recycle kills Chrome and starts a fresh one. Tabs of the old instance are
// gone afterwards.
func (m *Manager) Recycle(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("browser: manager is closed")
	}

	log := m.cfg.Logger
	log.Info("browser: recycling", "uptime", time.Since(m.startAt).Round(time.Second))

	if err := m.cleanup(); err != nil {
		log.Warn("browser: cleanup during recycle", "error", err)
	}
	b, err := m.launch(ctx)
	if err != nil {
		return fmt.Errorf("browser: relaunch: %w", err)
	}
	m.browser = b
	m.startAt = time.Now()
	log.Info("browser: recycled")
	return nil
}

// Close shuts down Chrome and Xvfb.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.cleanup()
}

func (m *Manager) launch(ctx context.Context) (*rod.Browser, error) {
	log := m.cfg.Logger

	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		if m.cfg.Headful {
			if err := m.startXvfb(); err != nil {
				return nil, fmt.Errorf("browser: xvfb: %w", err)
			}
		}

		l := launcher.New().Context(ctx)
		if m.cfg.Headful {
			l = l.Headless(false).Env("DISPLAY=" + m.cfg.XvfbDisplay)
		} else {
			l = l.Headless(true)
		}
		if m.cfg.UserDataDir != "" {
			l = l.UserDataDir(m.cfg.UserDataDir)
		}
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL, "headful", m.cfg.Headful, "profile", m.cfg.UserDataDir)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	return b, nil
}

func (m *Manager) cleanup() error {
	if m.browser != nil {
		if m.cfg.RemoteURL == "" {
			_ = m.browser.Close()
		}
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	m.stopXvfb()
	return nil
}

func (m *Manager) monitorLoop(ctx context.Context) {
	log := m.cfg.Logger
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()
	misses := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.RLock()
			closed, b, startAt := m.closed, m.browser, m.startAt
			m.mu.RUnlock()
			if closed {
				return
			}
			if b == nil {
				continue
			}

			if time.Since(startAt) > m.cfg.RecycleInterval {
				m.request("age")
				continue
			}

			used, err := jsHeapUsage(ctx, b)
			if err != nil {
				misses++
				log.Debug("browser: heap check failed", "error", err, "misses", misses)
				if misses >= maxMisses {
					misses = 0
					m.request("unresponsive")
				}
				continue
			}
			misses = 0
			if used > m.cfg.MemoryLimit {
				log.Info("browser: memory limit exceeded", "used", used, "limit", m.cfg.MemoryLimit)
				m.request("memory")
			}
		}
	}
}

// maxMisses consecutive failed health checks mark Chrome as unresponsive.
const maxMisses = 3

func (m *Manager) request(reason string) {
	select {
	case m.due <- reason:
		m.cfg.Logger.Info("browser: recycle requested", "reason", reason)
	default:
	}
}

// jsHeapUsage reads the JS heap of the first page as a proxy for the
// browser's memory use.
func jsHeapUsage(ctx context.Context, b *rod.Browser) (int64, error) {
	pages, err := b.Context(ctx).Pages()
	if err != nil || len(pages) == 0 {
		return 0, fmt.Errorf("no pages for heap check")
	}
	res, err := pages[0].Context(ctx).Eval(`() => performance.memory ? performance.memory.usedJSHeapSize : 0`)
	if err != nil {
		return 0, err
	}
	return int64(res.Value.Int()), nil
}
