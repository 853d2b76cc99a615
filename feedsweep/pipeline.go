package feedsweep

import (
	"fmt"
	"log/slog"

	"github.com/hazyhaar/feedsweep/feedsweep/internal/actuate"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/classify"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/config"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/engine"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/gate"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/ledger"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/locale"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/menu"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/probe"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/scheduler"
)

// pipeline is the engine and scheduler bound to one document.
type pipeline struct {
	engine    *engine.Engine
	scheduler *scheduler.Scheduler
}

func newPipeline(doc dom.Document, cfg *config.Config, table *locale.Table, emit engine.Emitter, logger *slog.Logger) *pipeline {
	sel, t := cfg.Selectors, cfg.Timing

	opener := menu.New(doc, menu.Config{
		TriggerPrimary:  sel.TriggerPrimary,
		TriggerGeneric:  sel.TriggerGeneric,
		TriggerFallback: sel.TriggerFallback,
		MenuItem:        sel.MenuItem,
		Menu:            sel.Menu,
		PollInterval:    t.MenuPollInterval,
		PollAttempts:    t.MenuPollAttempts,
		Table:           table,
		Logger:          logger,
	})
	hidden := ledger.NewHidden()

	eng := engine.New(engine.Config{
		Doc: doc,
		Gate: gate.New(gate.Config{
			Hosts:       cfg.Feed.Hosts,
			HomePaths:   cfg.Feed.HomePaths,
			TabSelector: sel.Tab,
			Table:       table,
		}),
		Classifier: classify.New(classify.Config{
			ProfileLink:   sel.ProfileLink,
			SocialContext: sel.SocialContext,
			ReshareAction: sel.ReshareAction,
			Table:         table,
		}),
		Opener: opener,
		Prober: probe.New(probe.Config{
			Opener: opener,
			Table:  table,
			Settle: t.Settle,
			Logger: logger,
		}),
		Actuator: actuate.New(actuate.Config{
			Doc:          doc,
			Opener:       opener,
			Table:        table,
			Hidden:       hidden,
			Button:       sel.Button,
			Toast:        sel.Toast,
			Overlay:      sel.Overlay,
			Dialog:       sel.Dialog,
			DialogClose:  sel.DialogClose,
			PollInterval: t.MenuPollInterval,
			PollAttempts: t.MenuPollAttempts,
			ToastDelays:  t.ToastDelays,
			Logger:       logger,
		}),
		Ledger:          ledger.New(),
		Hidden:          hidden,
		Policy:          policyOf(cfg.Policy),
		Emitter:         emit,
		QueueThrottle:   t.QueueThrottle,
		QueueSupervisor: t.QueueSupervisor,
		JobTimeout:      t.JobTimeout,
		JobsPerMinute:   cfg.Policy.MaxJobsPerMinute,
		Logger:          logger,
	})

	sched := scheduler.New(scheduler.Config{
		Doc:             doc,
		Engine:          eng,
		ItemSelector:    sel.Item,
		InitialDelay:    t.InitialDelay,
		Watchdog:        t.Watchdog,
		ScrollTick:      t.ScrollTick,
		ScrollQuiet:     t.ScrollQuiet,
		DeferDelay:      t.DeferDelay,
		BackgroundDelay: t.BackgroundDelay,
		RetryDelay:      t.RetryDelay,
		StallAfter:      t.StallAfter,
		ViewportBatch:   cfg.Scan.ViewportBatch,
		BackgroundBatch: cfg.Scan.BackgroundBatch,
		Logger:          logger,
	})

	return &pipeline{engine: eng, scheduler: sched}
}

func policyOf(p config.PolicyConfig) engine.Policy {
	pol := engine.DefaultPolicy()
	pol.DismissUndetermined = p.Undetermined == "dismiss"
	pol.ProbeOriginalAuthor = p.ReshareSubject == "original"
	if p.DismissReshares != nil {
		pol.DismissReshares = *p.DismissReshares
	}
	if p.MutePromoted != nil {
		pol.MutePromoted = *p.MutePromoted
	}
	pol.HidePending = p.HidePending
	return pol
}

// loadTable layers the configured locale files over the built-in table.
func loadTable(paths []string) (*locale.Table, error) {
	table := locale.Default()
	for _, p := range paths {
		extra, err := locale.LoadFile(p)
		if err != nil {
			return nil, fmt.Errorf("feedsweep: locale %s: %w", p, err)
		}
		table = table.Merge(extra)
	}
	return table, nil
}
