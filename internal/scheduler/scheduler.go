package scheduler

//go:generate mockgen -package=scheduler -destination=mocks_test.go -source=scheduler.go

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"CryptoSentinel/internal/analyzer"
	"CryptoSentinel/internal/metrics"
	"CryptoSentinel/internal/model"
	"CryptoSentinel/internal/recorder"
	"CryptoSentinel/internal/report"
)

// Fetcher supplies one market snapshot per cycle.
type Fetcher interface {
	Fetch(ctx context.Context, limit int) (*model.Snapshot, error)
}

// Store persists snapshots and analysis rows.
type Store interface {
	AppendSnapshot(ctx context.Context, snap *model.Snapshot) error
	AppendAnalysis(ctx context.Context, analysis model.Analysis, observedAt time.Time) error
	MarkDelivered(ctx context.Context, observedAt time.Time) error
}

// Archiver keeps per-cycle files on disk.
type Archiver interface {
	SaveRaw(raw []byte, at time.Time) (string, error)
	SaveChart(png []byte, at time.Time) (string, error)
}

// Notifier delivers text, optionally with an image, and reports success.
type Notifier interface {
	Notify(ctx context.Context, text string, image []byte) bool
}

// Options tunes the cycle and the loop.
type Options struct {
	Limit             int
	TopAssets         int
	BigMoverThreshold float64
	Interval          time.Duration
	RetryBackoff      time.Duration
	Cron              string // when set, replaces the interval loop
}

// CycleResult summarizes one fetch-to-report pass.
type CycleResult struct {
	ID         string
	ObservedAt time.Time
	Outcome    string
	Assets     int
	Delivered  bool
	Err        error
}

// Status is the last finished cycle, as exposed to /status and /healthz.
type Status struct {
	CycleID     string    `json:"cycle_id,omitempty"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
	Outcome     string    `json:"outcome,omitempty"`
	Assets      int       `json:"assets"`
	Delivered   bool      `json:"delivered"`
	Error       string    `json:"error,omitempty"`
	LastSuccess time.Time `json:"last_success,omitempty"`
}

// Healthy reports whether the last cycle, if any, completed.
func (s Status) Healthy() bool {
	return s.Outcome == "" || s.Outcome == metrics.OutcomeOK
}

// Scheduler runs the fetch, persist, analyze, report pipeline.
type Scheduler struct {
	fetcher  Fetcher
	store    Store
	archive  Archiver
	notifier Notifier
	opts     Options

	cycleMu  sync.Mutex
	statusMu sync.RWMutex
	status   Status
}

// NewScheduler creates a new Scheduler.
func NewScheduler(f Fetcher, st Store, a Archiver, n Notifier, opts Options) *Scheduler {
	return &Scheduler{
		fetcher:  f,
		store:    st,
		archive:  a,
		notifier: n,
		opts:     opts,
	}
}

// Run executes one cycle immediately and then one per interval (or per cron tick) until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.opts.Cron != "" {
		return s.runCron(ctx)
	}
	logrus.WithField("interval", s.opts.Interval).Info("scheduler started")
	for {
		if ctx.Err() != nil {
			break
		}
		wait := s.opts.Interval
		if !s.safeCycle(ctx) {
			wait = s.opts.RetryBackoff
		}
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
	}
	logrus.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) runCron(ctx context.Context) error {
	logger := cron.PrintfLogger(logrus.StandardLogger())
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(s.opts.Cron, func() { s.safeCycle(ctx) }); err != nil {
		return fmt.Errorf("register cron cycle: %w", err)
	}

	s.safeCycle(ctx)
	c.Start()
	logrus.WithField("cron", s.opts.Cron).Info("scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	logrus.Info("scheduler stopped")
	return nil
}

// safeCycle runs a cycle and contains any panic. It returns false when the loop should back off.
func (s *Scheduler) safeCycle(ctx context.Context) (ok bool) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("panic", r).Error("cycle panicked, backing off")
			metrics.CyclesTotal.WithLabelValues(metrics.OutcomePanic).Inc()
			s.setStatus(CycleResult{Outcome: metrics.OutcomePanic, Err: fmt.Errorf("panic: %v", r)}, started)
			ok = false
		}
	}()
	s.RunCycle(ctx)
	return true
}

// RunCycle performs one full pass. Cycles never overlap.
func (s *Scheduler) RunCycle(ctx context.Context) (res CycleResult) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	started := time.Now()
	res.ID = uuid.NewString()
	log := logrus.WithField("cycle_id", res.ID)
	defer func() {
		if res.Outcome == "" {
			return // panicking; safeCycle records it
		}
		metrics.CyclesTotal.WithLabelValues(res.Outcome).Inc()
		s.setStatus(res, started)
	}()

	snap, err := s.fetcher.Fetch(ctx, s.opts.Limit)
	if err != nil {
		log.WithError(err).Error("fetch failed, skipping cycle")
		res.Outcome, res.Err = metrics.OutcomeSkipped, err
		s.notifier.Notify(ctx, report.RenderFetchWarning(err), nil)
		return res
	}
	res.ObservedAt, res.Assets = snap.ObservedAt, snap.Len()
	metrics.AssetsFetched.Set(float64(snap.Len()))
	log.WithField("assets", snap.Len()).Info("snapshot fetched")

	if path, err := s.archive.SaveRaw(snap.Raw, snap.ObservedAt); err != nil {
		log.WithError(err).Warn("raw archive failed")
	} else {
		log.WithField("path", path).Debug("raw payload archived")
	}
	s.checkStore(log, s.store.AppendSnapshot(ctx, snap))

	analysis := analyzer.Analyze(snap)
	s.checkStore(log, s.store.AppendAnalysis(ctx, analysis, snap.ObservedAt))

	rep := s.render(log, snap, analysis)

	if rep.Alerts != "" {
		log.Info("sending big mover alerts")
		s.notifier.Notify(ctx, rep.Alerts, nil)
	}
	res.Delivered = s.notifier.Notify(ctx, rep.Text(), rep.Chart)
	if res.Delivered {
		s.checkStore(log, s.store.MarkDelivered(ctx, snap.ObservedAt))
	} else {
		log.Warn("report was not delivered")
	}

	res.Outcome = metrics.OutcomeOK
	log.WithField("delivered", res.Delivered).Info("cycle completed")
	return res
}

func (s *Scheduler) render(log *logrus.Entry, snap *model.Snapshot, analysis model.Analysis) *model.Report {
	rep := &model.Report{
		Overview:  report.RenderOverview(snap),
		TopAssets: report.RenderTopAssets(snap, s.opts.TopAssets),
		Analysis:  report.RenderAnalysis(analysis),
		Alerts:    report.RenderAlerts(analyzer.BigMovers(snap, s.opts.BigMoverThreshold)),
	}

	chart, err := report.RenderChart(snap)
	if err != nil {
		log.WithError(err).Warn("chart unavailable, sending text only")
		return rep
	}
	rep.Chart = chart
	if path, err := s.archive.SaveChart(chart, snap.ObservedAt); err != nil {
		log.WithError(err).Warn("chart file not saved")
	} else {
		rep.ChartPath = path
	}
	return rep
}

// checkStore logs a store failure; the cycle carries on with in-memory data.
func (s *Scheduler) checkStore(log *logrus.Entry, err error) {
	if err == nil {
		return
	}
	op := "unknown"
	var se *recorder.StoreError
	if errors.As(err, &se) {
		op = se.Op
	}
	metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
	log.WithError(err).WithField("op", op).Error("store write failed")
}

func (s *Scheduler) setStatus(res CycleResult, started time.Time) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	s.status.CycleID = res.ID
	s.status.StartedAt = started
	s.status.FinishedAt = time.Now()
	s.status.Outcome = res.Outcome
	s.status.Assets = res.Assets
	s.status.Delivered = res.Delivered
	s.status.Error = ""
	if res.Err != nil {
		s.status.Error = res.Err.Error()
	}
	if res.Outcome == metrics.OutcomeOK {
		s.status.LastSuccess = s.status.FinishedAt
		metrics.LastSuccess.Set(float64(s.status.FinishedAt.Unix()))
	}
}

// Status returns a copy of the last cycle's status.
func (s *Scheduler) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}
