package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PolyChannel/internal/domain/models"
)

type countingExecutor struct {
	mu   sync.Mutex
	reqs []RunRequest
	done chan struct{}
}

func (e *countingExecutor) Execute(_ context.Context, req RunRequest) (*RunOutcome, error) {
	e.mu.Lock()
	e.reqs = append(e.reqs, req)
	e.mu.Unlock()
	if e.done != nil {
		e.done <- struct{}{}
	}
	return &RunOutcome{Run: &models.AnalysisRun{RunID: "r"}, Manifest: &models.Manifest{Directory: "/tmp/r"}}, nil
}

func (e *countingExecutor) Status() RunStatus { return RunStatus{Status: "idle"} }

func (e *countingExecutor) requests() []RunRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]RunRequest(nil), e.reqs...)
}

func TestScheduler_RunOnStartAndTrigger(t *testing.T) {
	exec := &countingExecutor{done: make(chan struct{}, 4)}
	s := NewScheduler(exec, RunRequest{TopN: 20}, 0, true, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Loop(ctx) }()

	<-exec.done
	require.NoError(t, s.Trigger(RunRequest{Symbols: []string{"BTC"}}))
	<-exec.done

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	reqs := exec.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, 20, reqs[0].TopN)
	assert.Equal(t, []string{"BTC"}, reqs[1].Symbols)
}

func TestScheduler_TriggerWhilePending(t *testing.T) {
	s := NewScheduler(&countingExecutor{}, RunRequest{}, time.Hour, false, nil)

	require.NoError(t, s.Trigger(RunRequest{TopN: 1}))
	assert.ErrorIs(t, s.Trigger(RunRequest{TopN: 2}), ErrRunPending)
}

func TestScheduler_BaseIsCopied(t *testing.T) {
	s := NewScheduler(&countingExecutor{}, RunRequest{Symbols: []string{"BTC"}}, 0, false, nil)
	b := s.Base()
	b.Symbols[0] = "ETH"
	assert.Equal(t, "BTC", s.Base().Symbols[0])
}
