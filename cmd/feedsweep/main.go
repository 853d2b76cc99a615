// CLAUDE:SUMMARY CLI entry point for feedsweep: sweeps a signed-in social feed of posts from accounts the user does not follow.
// Command feedsweep keeps a feed's recommendation tab limited to accounts
// the signed-in user follows.
//
// Usage:
//
//	feedsweep -user-data-dir ~/.config/feedsweep/chrome   # built-in x.com defaults
//	feedsweep -config feedsweep.yaml                        # full YAML config
//	feedsweep -remote ws://127.0.0.1:9222/devtools/browser/...
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/feedsweep/feedsweep"
)

func main() {
	configPath := flag.String("config", "", "path to feedsweep.yaml config file")
	feedURL := flag.String("url", "", "feed URL (overrides config)")
	userDataDir := flag.String("user-data-dir", "", "Chrome profile holding the signed-in session")
	remote := flag.String("remote", "", "DevTools WebSocket URL of a running Chrome")
	headful := flag.Bool("headful", false, "run a visible Chrome on Xvfb")
	undetermined := flag.String("undetermined", "", "policy for items whose relationship cannot be read: keep, dismiss")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	o := overrides{
		url:          *feedURL,
		userDataDir:  *userDataDir,
		remote:       *remote,
		headful:      *headful,
		undetermined: *undetermined,
	}
	if err := run(ctx, logger, *configPath, o); err != nil {
		logger.Error("feedsweep: fatal", "error", err)
		os.Exit(1)
	}
}

type overrides struct {
	url, userDataDir, remote, undetermined string
	headful                                bool
}

func (o overrides) apply(cfg *feedsweep.Config) {
	if o.url != "" {
		cfg.Feed.URL = o.url
	}
	if o.userDataDir != "" {
		cfg.Browser.UserDataDir = o.userDataDir
	}
	if o.remote != "" {
		cfg.Browser.Remote = o.remote
	}
	if o.headful {
		cfg.Browser.Stealth = "headful"
	}
	if o.undetermined != "" {
		cfg.Policy.Undetermined = o.undetermined
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath string, o overrides) error {
	cfg := feedsweep.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = feedsweep.LoadConfigFile(configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	o.apply(cfg)

	if cfg.Browser.Remote == "" && cfg.Browser.UserDataDir == "" {
		logger.Warn("feedsweep: no profile given, the feed will show a login page")
	}

	sinks, err := feedsweep.SinksFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("sinks: %w", err)
	}

	s, err := feedsweep.New(cfg, logger, sinks...)
	if err != nil {
		for _, sk := range sinks {
			_ = sk.Close()
		}
		return err
	}
	return s.Run(ctx)
}
