// CLAUDE:SUMMARY Defines feedsweep config structs (browser, feed, timing, scan, policy, selectors, sinks) and parses YAML with defaults.
// Package config handles feedsweep configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level feedsweep configuration.
type Config struct {
	Browser   BrowserConfig `yaml:"browser"`
	Feed      FeedConfig    `yaml:"feed"`
	Timing    TimingConfig  `yaml:"timing"`
	Scan      ScanConfig    `yaml:"scan"`
	Policy    PolicyConfig  `yaml:"policy"`
	Selectors Selectors     `yaml:"selectors"`
	Locales   []string      `yaml:"locales"`   // extra locale table files
	Sinks     []SinkConfig  `yaml:"sinks"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	UserDataDir      string        `yaml:"user_data_dir"`     // logged-in profile
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	Stealth          string        `yaml:"stealth"`           // headless | headful
	XvfbDisplay      string        `yaml:"xvfb_display"`
	ViewportWidth    int           `yaml:"viewport_width"`
	ViewportHeight   int           `yaml:"viewport_height"`
}

// FeedConfig describes which page is the algorithmic feed.
type FeedConfig struct {
	URL        string        `yaml:"url"`
	Hosts      []string      `yaml:"hosts"`
	HomePaths  []string      `yaml:"home_paths"`
	AutoScroll time.Duration `yaml:"autoscroll"` // 0 = off
}

// TimingConfig holds every delay and interval of the engine.
type TimingConfig struct {
	InitialDelay     time.Duration   `yaml:"initial_delay"`
	Watchdog         time.Duration   `yaml:"watchdog"`
	ScrollTick       time.Duration   `yaml:"scroll_tick"`
	ScrollQuiet      time.Duration   `yaml:"scroll_quiet"`
	DeferDelay       time.Duration   `yaml:"defer_delay"`
	BackgroundDelay  time.Duration   `yaml:"background_delay"`
	RetryDelay       time.Duration   `yaml:"retry_delay"`
	MenuPollInterval time.Duration   `yaml:"menu_poll_interval"`
	MenuPollAttempts int             `yaml:"menu_poll_attempts"`
	Settle           time.Duration   `yaml:"settle"`
	QueueThrottle    time.Duration   `yaml:"queue_throttle"`
	QueueSupervisor  time.Duration   `yaml:"queue_supervisor"`
	JobTimeout       time.Duration   `yaml:"job_timeout"`
	ToastDelays      []time.Duration `yaml:"toast_delays"`
	StallAfter       time.Duration   `yaml:"stall_after"`
	StatsInterval    time.Duration   `yaml:"stats_interval"`
}

// ScanConfig caps how many items one scan hands to the pipeline.
type ScanConfig struct {
	ViewportBatch   int `yaml:"viewport_batch"`
	BackgroundBatch int `yaml:"background_batch"`
}

// PolicyConfig holds the judgment calls that earlier revisions of the
// filter disagreed on.
type PolicyConfig struct {
	Undetermined     string `yaml:"undetermined"`        // keep | dismiss
	ReshareSubject   string `yaml:"reshare_subject"`     // resharer | original
	DismissReshares  *bool  `yaml:"dismiss_reshares"`
	MutePromoted     *bool  `yaml:"mute_promoted"`
	HidePending      bool   `yaml:"hide_pending"`
	MaxJobsPerMinute int    `yaml:"max_jobs_per_minute"` // 0 = unlimited
}

// Selectors locate page structures. Defaults target x.com.
type Selectors struct {
	Item            string   `yaml:"item"`
	FeedContainer   []string `yaml:"feed_container"`
	ProfileLink     string   `yaml:"profile_link"`
	SocialContext   string   `yaml:"social_context"`
	ReshareAction   string   `yaml:"reshare_action"`
	Tab             string   `yaml:"tab"`
	MenuItem        string   `yaml:"menu_item"`
	Menu            string   `yaml:"menu"`
	TriggerPrimary  []string `yaml:"trigger_primary"`
	TriggerGeneric  string   `yaml:"trigger_generic"`
	TriggerFallback string   `yaml:"trigger_fallback"`
	Button          string   `yaml:"button"`
	Toast           string   `yaml:"toast"`
	Overlay         string   `yaml:"overlay"`
	Dialog          string   `yaml:"dialog"`
	DialogClose     string   `yaml:"dialog_close"`
}

// SinkConfig defines a decision output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | file
	Path string `yaml:"path"` // file sinks only
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills every zero field.
func (c *Config) ApplyDefaults() {
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.ViewportWidth <= 0 {
		c.Browser.ViewportWidth = 1280
	}
	if c.Browser.ViewportHeight <= 0 {
		c.Browser.ViewportHeight = 900
	}

	if c.Feed.URL == "" {
		c.Feed.URL = "https://x.com/home"
	}
	if len(c.Feed.Hosts) == 0 {
		c.Feed.Hosts = []string{"x.com", "twitter.com"}
	}
	if len(c.Feed.HomePaths) == 0 {
		c.Feed.HomePaths = []string{"/home", "/"}
	}

	t := &c.Timing
	setDur(&t.InitialDelay, time.Second)
	setDur(&t.Watchdog, 200*time.Millisecond)
	setDur(&t.ScrollTick, 100*time.Millisecond)
	setDur(&t.ScrollQuiet, 200*time.Millisecond)
	setDur(&t.DeferDelay, 100*time.Millisecond)
	setDur(&t.BackgroundDelay, 200*time.Millisecond)
	setDur(&t.RetryDelay, 100*time.Millisecond)
	setDur(&t.MenuPollInterval, 100*time.Millisecond)
	if t.MenuPollAttempts <= 0 {
		t.MenuPollAttempts = 20
	}
	setDur(&t.Settle, 300*time.Millisecond)
	setDur(&t.QueueThrottle, 200*time.Millisecond)
	setDur(&t.QueueSupervisor, 200*time.Millisecond)
	setDur(&t.JobTimeout, 10*time.Second)
	if len(t.ToastDelays) == 0 {
		t.ToastDelays = []time.Duration{500 * time.Millisecond, time.Second, 1500 * time.Millisecond}
	}
	setDur(&t.StallAfter, 10*time.Second)
	setDur(&t.StatsInterval, time.Minute)

	if c.Scan.ViewportBatch <= 0 {
		c.Scan.ViewportBatch = 20
	}
	if c.Scan.BackgroundBatch <= 0 {
		c.Scan.BackgroundBatch = 10
	}

	if c.Policy.Undetermined == "" {
		c.Policy.Undetermined = "keep"
	}
	if c.Policy.ReshareSubject == "" {
		c.Policy.ReshareSubject = "resharer"
	}
	if c.Policy.DismissReshares == nil {
		c.Policy.DismissReshares = boolPtr(true)
	}
	if c.Policy.MutePromoted == nil {
		c.Policy.MutePromoted = boolPtr(true)
	}

	c.Selectors.applyDefaults()

	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: "stdout"}}
	}
}

func (s *Selectors) applyDefaults() {
	setStr(&s.Item, "article")
	if len(s.FeedContainer) == 0 {
		s.FeedContainer = []string{`[data-testid="primaryColumn"]`, "main"}
	}
	setStr(&s.ProfileLink, `a[role="link"][href^="/"]`)
	setStr(&s.SocialContext, `[data-testid="socialContext"]`)
	setStr(&s.ReshareAction, `[data-testid="retweet"]`)
	setStr(&s.Tab, `[role="tab"]`)
	setStr(&s.MenuItem, `[role="menuitem"]`)
	setStr(&s.Menu, `[role="menu"]`)
	if len(s.TriggerPrimary) == 0 {
		s.TriggerPrimary = []string{`[aria-label="More"]`, `[aria-label="その他"]`}
	}
	setStr(&s.TriggerGeneric, `button, div[role="button"]`)
	setStr(&s.TriggerFallback, `[data-testid="caret"]`)
	setStr(&s.Button, `button, div[role="button"], span[role="button"]`)
	setStr(&s.Toast, `[role="alert"], [data-testid="toast"], [data-testid="toastContainer"] div`)
	setStr(&s.Overlay, `[role="presentation"]`)
	setStr(&s.Dialog, `[role="dialog"], [data-testid="sheetDialog"]`)
	setStr(&s.DialogClose, `div[aria-label="閉じる"], div[aria-label="Close"], button[aria-label="Close"]`)
}

// Validate rejects unknown policy values.
func (c *Config) Validate() error {
	switch c.Policy.Undetermined {
	case "keep", "dismiss":
	default:
		return fmt.Errorf("config: policy.undetermined: unknown value %q", c.Policy.Undetermined)
	}
	switch c.Policy.ReshareSubject {
	case "resharer", "original":
	default:
		return fmt.Errorf("config: policy.reshare_subject: unknown value %q", c.Policy.ReshareSubject)
	}
	switch c.Browser.Stealth {
	case "headless", "headful":
	default:
		return fmt.Errorf("config: browser.stealth: unknown value %q", c.Browser.Stealth)
	}
	for _, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "file":
			if s.Path == "" {
				return fmt.Errorf("config: sinks: file sink needs a path")
			}
		default:
			return fmt.Errorf("config: sinks: unknown type %q", s.Type)
		}
	}
	return nil
}

func setDur(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}

func setStr(s *string, def string) {
	if *s == "" {
		*s = def
	}
}

func boolPtr(b bool) *bool { return &b }
