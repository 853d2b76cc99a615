// CLAUDE:SUMMARY The single owned engine: claims items in the ledger, classifies them, queues menu jobs and turns verdicts into dismissals and decision events.
// Package engine holds everything one feed tab needs to classify and
// dismiss items: ledger, classifier, menu queue, prober and actuator. Every
// trigger of the scheduler goes through Process, so the ledger claim is the
// single point where an item is taken up.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/hazyhaar/feedsweep/feedsweep/decision"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/actuate"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/classify"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/gate"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/idgen"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/ledger"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/menu"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/probe"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/queue"
)

// Emitter receives one decision per finished item.
type Emitter interface {
	Send(ctx context.Context, d decision.Decision) error
}

// Policy holds the judgment calls on what to dismiss.
type Policy struct {
	DismissUndetermined bool // dismiss when the menu gave no follow evidence
	ProbeOriginalAuthor bool // judge reshares by the original author
	DismissReshares     bool // apply not-interested to non-followed reshares
	MutePromoted        bool
	HidePending         bool // hide items while their verdict is pending
}

// DefaultPolicy keeps undetermined items and dismisses reshares by the
// resharer.
func DefaultPolicy() Policy {
	return Policy{DismissReshares: true, MutePromoted: true}
}

// Config wires an Engine.
type Config struct {
	Doc        dom.Document
	Gate       *gate.Gate
	Classifier *classify.Classifier
	Opener     *menu.Opener
	Prober     *probe.Prober
	Actuator   *actuate.Actuator
	Ledger     *ledger.Ledger
	Hidden     *ledger.Hidden
	Policy     Policy
	Emitter    Emitter

	QueueThrottle   time.Duration
	QueueSupervisor time.Duration
	JobTimeout      time.Duration
	JobsPerMinute   int // 0 = unlimited

	IDs    idgen.Generator
	Logger *slog.Logger
}

// Job is one queued menu interaction.
type Job struct {
	Item   dom.Element
	Facts  classify.Facts
	Kind   decision.Kind
	Reason string
}

// Engine is the per-tab state. It is safe for concurrent use.
type Engine struct {
	cfg    Config
	queue  *queue.Queue[Job]
	logger *slog.Logger

	scans, seen, enqueued, jobs             atomic.Int64
	following, notFollowing, undetermined   atomic.Int64
	dismissed, muted, errs, watchdogRescues atomic.Int64
}

// New creates an Engine. Call Run to start draining the queue.
func New(cfg Config) *Engine {
	if cfg.Ledger == nil {
		cfg.Ledger = ledger.New()
	}
	if cfg.Hidden == nil {
		cfg.Hidden = ledger.NewHidden()
	}
	if cfg.IDs == nil {
		cfg.IDs = idgen.Default
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{cfg: cfg, logger: logger}

	var limiter *rate.Limiter
	if cfg.JobsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.JobsPerMinute)), 1)
	}
	e.queue = queue.New(e.handle, queue.Options[Job]{
		Throttle:   cfg.QueueThrottle,
		Supervisor: cfg.QueueSupervisor,
		JobTimeout: cfg.JobTimeout,
		Gate:       e.Active,
		Limiter:    limiter,
		OnFailure:  e.fail,
		OnIdle:     e.idle,
		Logger:     logger,
	})
	return e
}

// Run drains the menu queue until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	return e.queue.Run(ctx)
}

// Active reports whether the page currently shows the recommended feed.
// Errors count as inactive.
func (e *Engine) Active(ctx context.Context) bool {
	ok, err := e.cfg.Gate.IsActiveFeedView(ctx, e.cfg.Doc)
	if err != nil {
		e.logger.Debug("engine: gate check failed", "error", err)
		return false
	}
	return ok
}

// IsBusy reports whether a menu job is running or throttling.
func (e *Engine) IsBusy() bool { return e.queue.Busy() }

// QueueLen returns the number of waiting menu jobs.
func (e *Engine) QueueLen() int { return e.queue.Len() }

// IsProcessed reports whether id was already taken up.
func (e *Engine) IsProcessed(id dom.NodeID) bool { return e.cfg.Ledger.Has(id) }

// MarkProcessed records id as finished.
func (e *Engine) MarkProcessed(id dom.NodeID) { e.cfg.Ledger.MarkProcessed(id) }

// LastActivity returns the last ledger change.
func (e *Engine) LastActivity() time.Time { return e.cfg.Ledger.LastActivity() }

// CountScan records one scan pass.
func (e *Engine) CountScan() { e.scans.Add(1) }

// CountRescue records a watchdog scan that found forgotten items.
func (e *Engine) CountRescue() { e.watchdogRescues.Add(1) }

// Process takes up every item not yet in the ledger and returns how many
// were claimed. Off the recommended feed nothing is claimed or touched.
func (e *Engine) Process(ctx context.Context, items []dom.Element) int {
	if len(items) == 0 || !e.Active(ctx) {
		return 0
	}
	n := 0
	for _, it := range items {
		if ctx.Err() != nil {
			break
		}
		if e.tryEnqueue(ctx, it) {
			n++
		}
	}
	return n
}

// TryEnqueue claims item and queues the job it needs. It returns false when
// the page is not the recommended feed, or the item was already claimed or
// could not be read.
func (e *Engine) TryEnqueue(ctx context.Context, item dom.Element) bool {
	if !e.Active(ctx) {
		return false
	}
	return e.tryEnqueue(ctx, item)
}

func (e *Engine) tryEnqueue(ctx context.Context, item dom.Element) bool {
	id := item.ID()
	if !e.cfg.Ledger.TryClaim(id) {
		return false
	}
	e.seen.Add(1)

	facts, err := e.cfg.Classifier.Classify(ctx, item)
	if err != nil {
		e.cfg.Ledger.MarkProcessed(id)
		if !errors.Is(err, dom.ErrDetached) {
			e.errs.Add(1)
			e.logger.Warn("engine: classify failed", "node", id, "error", err)
		}
		return false
	}

	job := Job{Item: item, Facts: facts, Kind: decision.KindProbe}
	switch {
	case facts.Promoted && e.cfg.Policy.MutePromoted && classify.ShouldMutePromoted(facts.Text):
		job.Kind = decision.KindMute
		job.Reason = "promoted: " + strings.Join(facts.Signals, ",")
	case facts.Reshare:
		job.Reason = "reshare from a non-followed account"
	default:
		job.Reason = "non-followed account"
	}

	if e.cfg.Policy.HidePending && job.Kind == decision.KindProbe {
		if err := e.cfg.Actuator.Hide(ctx, item); err != nil {
			e.logger.Debug("engine: hide pending failed", "node", id, "error", err)
		}
	}

	if err := e.queue.Push(job); err != nil {
		e.cfg.Ledger.MarkProcessed(id)
		e.restore(ctx, item)
		return false
	}
	e.enqueued.Add(1)
	e.logger.Debug("engine: enqueued", "node", id, "author", facts.Author, "kind", job.Kind, "queue", e.queue.Len())
	return true
}

func (e *Engine) handle(ctx context.Context, job Job) error {
	e.jobs.Add(1)
	start := time.Now()

	d := decision.Decision{
		NodeID:         int64(job.Item.ID()),
		Author:         job.Facts.Author,
		OriginalAuthor: job.Facts.OriginalAuthor,
		Kind:           job.Kind,
		Reshare:        job.Facts.Reshare,
		Reason:         job.Reason,
		Signals:        job.Facts.Signals,
		Action:         decision.ActionNone,
	}

	var err error
	switch job.Kind {
	case decision.KindMute:
		err = e.mute(ctx, job, &d)
	default:
		err = e.probe(ctx, job, &d)
	}
	if err != nil {
		return err
	}

	e.cfg.Ledger.MarkProcessed(job.Item.ID())
	e.emit(ctx, d, start)
	return nil
}

func (e *Engine) mute(ctx context.Context, job Job, d *decision.Decision) error {
	ok, err := e.cfg.Actuator.Mute(ctx, job.Item, job.Facts.Author)
	if err != nil {
		return err
	}
	if ok {
		d.Action = decision.ActionMuted
		e.muted.Add(1)
		e.logger.Info("engine: muted", "author", job.Facts.Author, "reason", job.Reason)
	}
	return nil
}

func (e *Engine) probe(ctx context.Context, job Job, d *decision.Decision) error {
	scope, subject := e.probeScope(ctx, job)

	dismissed := false
	res, err := e.cfg.Prober.Probe(ctx, scope, func(ctx context.Context, v probe.Verdict, s *menu.Session) (bool, error) {
		if !e.shouldDismiss(job, v) {
			return false, nil
		}
		consumed, err := e.cfg.Actuator.NotInterested(ctx, s, subject)
		dismissed = consumed
		return consumed, err
	})
	if errors.Is(err, context.DeadlineExceeded) {
		e.logger.Warn("engine: job timed out, keeping item", "author", subject)
		res.Verdict, err = probe.Undetermined, nil
	}
	if err != nil && !dismissed {
		return err
	}
	if err != nil {
		e.logger.Warn("engine: confirmation failed", "author", subject, "error", err)
	}

	d.Verdict = res.Verdict.String()
	d.Entries = res.Entries
	switch res.Verdict {
	case probe.Following:
		e.following.Add(1)
	case probe.NotFollowing:
		e.notFollowing.Add(1)
	default:
		e.undetermined.Add(1)
	}

	if dismissed {
		d.Action = decision.ActionNotInterested
		e.dismissed.Add(1)
		e.cfg.Actuator.Release(job.Item)
		e.logger.Info("engine: dismissed", "author", subject, "reason", job.Reason)
		return nil
	}
	e.restore(ctx, job.Item)
	return nil
}

// probeScope returns the subtree to look for the overflow control in and
// the handle being judged.
func (e *Engine) probeScope(ctx context.Context, job Job) (dom.Element, string) {
	if !job.Facts.Reshare || !e.cfg.Policy.ProbeOriginalAuthor || job.Facts.OriginalAuthor == "" {
		return job.Item, job.Facts.Author
	}
	sec, err := e.cfg.Classifier.OriginalAuthorSection(ctx, job.Item, job.Facts.OriginalAuthor)
	if err != nil || sec == nil {
		return job.Item, job.Facts.OriginalAuthor
	}
	if _, err := e.cfg.Opener.FindTrigger(ctx, sec); err != nil {
		return job.Item, job.Facts.OriginalAuthor
	}
	return sec, job.Facts.OriginalAuthor
}

func (e *Engine) shouldDismiss(job Job, v probe.Verdict) bool {
	switch v {
	case probe.NotFollowing:
	case probe.Undetermined:
		if !e.cfg.Policy.DismissUndetermined {
			return false
		}
	default:
		return false
	}
	return !job.Facts.Reshare || e.cfg.Policy.DismissReshares
}

// fail handles a job whose handler errored or panicked.
func (e *Engine) fail(job Job, err error) {
	e.errs.Add(1)
	e.cfg.Ledger.MarkProcessed(job.Item.ID())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.restore(ctx, job.Item)
	e.emit(ctx, decision.Decision{
		NodeID:         int64(job.Item.ID()),
		Author:         job.Facts.Author,
		OriginalAuthor: job.Facts.OriginalAuthor,
		Kind:           job.Kind,
		Reshare:        job.Facts.Reshare,
		Reason:         job.Reason,
		Signals:        job.Facts.Signals,
		Action:         decision.ActionFailed,
		Error:          err.Error(),
	}, time.Time{})
}

func (e *Engine) idle(ctx context.Context) {
	closed, err := e.cfg.Actuator.CloseInterstitialModal(ctx)
	if err != nil {
		e.logger.Debug("engine: modal check failed", "error", err)
		return
	}
	if closed {
		e.logger.Info("engine: closed upsell dialog")
	}
}

func (e *Engine) restore(ctx context.Context, item dom.Element) {
	if err := e.cfg.Actuator.Show(ctx, item); err != nil {
		e.logger.Debug("engine: restore failed", "node", item.ID(), "error", err)
	}
}

func (e *Engine) emit(ctx context.Context, d decision.Decision, start time.Time) {
	now := time.Now()
	d.ID = e.cfg.IDs()
	d.Timestamp = now.UnixMilli()
	if !start.IsZero() {
		d.DurationMs = now.Sub(start).Milliseconds()
	}
	if u, err := e.cfg.Doc.URL(ctx); err == nil {
		d.PageURL = u
	}
	if e.cfg.Emitter == nil {
		return
	}
	if err := e.cfg.Emitter.Send(ctx, d); err != nil {
		e.logger.Warn("engine: emit decision failed", "error", err)
	}
}

// Reset forgets all per-document state. Waiting jobs are dropped.
func (e *Engine) Reset() {
	dropped := e.queue.Clear()
	e.cfg.Ledger.Reset()
	e.cfg.Hidden.Reset()
	e.logger.Info("engine: reset", "dropped_jobs", len(dropped))
}

// Stats returns the current counters.
func (e *Engine) Stats() decision.Stats {
	return decision.Stats{
		Scans:          e.scans.Load(),
		ItemsSeen:      e.seen.Load(),
		Enqueued:       e.enqueued.Load(),
		JobsRun:        e.jobs.Load(),
		Following:      e.following.Load(),
		NotFollowing:   e.notFollowing.Load(),
		Undetermined:   e.undetermined.Load(),
		Dismissed:      e.dismissed.Load(),
		Muted:          e.muted.Load(),
		Errors:         e.errs.Load(),
		WatchdogRescue: e.watchdogRescues.Load(),
		Processed:      e.cfg.Ledger.Len(),
		Hidden:         e.cfg.Hidden.Len(),
		Timestamp:      time.Now().UnixMilli(),
	}
}

// String summarises the engine for logs.
func (e *Engine) String() string {
	return fmt.Sprintf("engine(processed=%d queue=%d busy=%v)", e.cfg.Ledger.Len(), e.queue.Len(), e.queue.Busy())
}
