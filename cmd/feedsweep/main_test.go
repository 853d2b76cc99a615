package main

import (
	"testing"

	"github.com/hazyhaar/feedsweep/feedsweep"
)

func TestOverridesApply(t *testing.T) {
	cfg := feedsweep.DefaultConfig()
	overrides{url: "https://x.com/explore", userDataDir: "/tmp/p", headful: true, undetermined: "dismiss"}.apply(cfg)

	if cfg.Feed.URL != "https://x.com/explore" {
		t.Errorf("url: got %q", cfg.Feed.URL)
	}
	if cfg.Browser.UserDataDir != "/tmp/p" {
		t.Errorf("user data dir: got %q", cfg.Browser.UserDataDir)
	}
	if cfg.Browser.Stealth != "headful" {
		t.Errorf("stealth: got %q, want headful", cfg.Browser.Stealth)
	}
	if cfg.Policy.Undetermined != "dismiss" {
		t.Errorf("undetermined: got %q", cfg.Policy.Undetermined)
	}
	if cfg.Browser.Remote != "" {
		t.Errorf("remote should stay empty, got %q", cfg.Browser.Remote)
	}
}
