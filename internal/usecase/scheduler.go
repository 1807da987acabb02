package usecase

import (
	"context"
	"errors"
	"time"

	applogger "PolyChannel/pkg/logger"
)

// ErrRunPending is returned by Trigger while a requested run is still queued.
var ErrRunPending = errors.New("a run is already pending")

// Executor runs one batch; satisfied by *AnalysisUseCase.
type Executor interface {
	Execute(ctx context.Context, req RunRequest) (*RunOutcome, error)
	Status() RunStatus
}

// Scheduler drives periodic runs and accepts on-demand triggers. Runs never overlap.
type Scheduler struct {
	exec       Executor
	base       RunRequest
	every      time.Duration
	runOnStart bool
	queue      chan RunRequest
	l          *applogger.Logger
}

func NewScheduler(exec Executor, base RunRequest, every time.Duration, runOnStart bool, l *applogger.Logger) *Scheduler {
	if l == nil {
		l = applogger.Nop()
	}
	return &Scheduler{
		exec:       exec,
		base:       base,
		every:      every,
		runOnStart: runOnStart,
		queue:      make(chan RunRequest, 1),
		l:          l.Component("scheduler"),
	}
}

// Base returns a copy of the request used for scheduled runs.
func (s *Scheduler) Base() RunRequest {
	b := s.base
	b.Symbols = append([]string(nil), s.base.Symbols...)
	return b
}

// Status reports the most recent run outcome.
func (s *Scheduler) Status() RunStatus { return s.exec.Status() }

// Trigger queues req for the loop. It does not block.
func (s *Scheduler) Trigger(req RunRequest) error {
	select {
	case s.queue <- req:
		return nil
	default:
		return ErrRunPending
	}
}

// Loop blocks until ctx is done.
func (s *Scheduler) Loop(ctx context.Context) error {
	if s.runOnStart {
		s.execute(ctx, s.Base())
	}
	var tick <-chan time.Time
	if s.every > 0 {
		t := time.NewTicker(s.every)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			s.execute(ctx, s.Base())
		case req := <-s.queue:
			s.execute(ctx, req)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, req RunRequest) {
	start := time.Now()
	out, err := s.exec.Execute(ctx, req)
	if err != nil {
		s.l.Error("scheduled run failed", applogger.Error(err), applogger.Duration("took_ms", time.Since(start)))
		return
	}
	s.l.Info("scheduled run finished",
		applogger.String("run_id", out.Run.RunID),
		applogger.String("bundle", out.Manifest.Directory),
		applogger.Duration("took_ms", time.Since(start)))
}
