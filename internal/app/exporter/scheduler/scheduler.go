package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Hobrus/svcexporter.git/internal/app/exporter/probe"
	"github.com/Hobrus/svcexporter.git/internal/app/exporter/snapshot"
)

// ErrBusy is returned by RunOnce when a previous probe call that outlived its
// timeout is still running.
var ErrBusy = errors.New("previous probe still running")

type result struct {
	reading probe.Reading
	err     error
}

// Scheduler refreshes the store on a fixed interval. It is the only writer
// of the store.
type Scheduler struct {
	Probe    probe.Probe
	Store    *snapshot.Store
	Interval time.Duration
	Timeout  time.Duration
	Logger   *logrus.Logger

	now func() time.Time
	// busy holds a token while a probe call is in flight, including calls
	// abandoned after their timeout.
	busy chan struct{}
}

func New(p probe.Probe, store *snapshot.Store, interval, timeout time.Duration, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		Probe:    p,
		Store:    store,
		Interval: interval,
		Timeout:  timeout,
		Logger:   logger,
		now:      time.Now,
		busy:     make(chan struct{}, 1),
	}
}

// Run probes immediately and then on every tick until ctx is cancelled.
// Ticks that arrive while a cycle is running are dropped by the ticker, so
// cycles never overlap.
func (s *Scheduler) Run(ctx context.Context) {
	s.cycle(ctx)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cycle(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) cycle(ctx context.Context) {
	if err := s.RunOnce(ctx); errors.Is(err, ErrBusy) {
		s.Logger.WithField("probe", s.Probe.Name()).Warn("Skipping refresh, previous probe still running")
	}
}

// RunOnce executes one probe-and-merge step.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	select {
	case s.busy <- struct{}{}:
	default:
		return ErrBusy
	}

	start := s.now()
	probeCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		defer func() { <-s.busy }()
		r, err := s.Probe.Fetch(probeCtx)
		done <- result{reading: r, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-probeCtx.Done():
		res.err = probeCtx.Err()
		if ctx.Err() == nil {
			res.err = fmt.Errorf("%w: no answer within %s", probe.ErrTimeout, s.Timeout)
		}
		// prefer a result that raced with the deadline
		select {
		case res = <-done:
		default:
		}
	}

	end := s.now()
	if res.err == nil {
		snap := s.Store.Replace(res.reading, end, end.Sub(start))
		s.Logger.WithFields(logrus.Fields{
			"probe":    s.Probe.Name(),
			"duration": snap.LastCheckDuration,
			"targets":  len(snap.Statuses),
			"running":  snap.Running(),
			"reloads":  snap.SuccessCount,
		}).Info("Metrics refreshed")
		return nil
	}

	// A cancelled parent means shutdown, not a failed check.
	if err := ctx.Err(); err != nil {
		s.Logger.WithField("probe", s.Probe.Name()).Debug("Refresh cancelled")
		return err
	}

	if errors.Is(res.err, context.DeadlineExceeded) && !errors.Is(res.err, probe.ErrTimeout) {
		res.err = fmt.Errorf("%w: %v", probe.ErrTimeout, res.err)
	}
	took := end.Sub(start)
	s.Store.RecordFailure(res.err, took)
	s.Logger.WithFields(logrus.Fields{
		"probe":    s.Probe.Name(),
		"duration": took,
	}).WithError(res.err).Error("Refresh failed, serving stale metrics")
	return res.err
}
