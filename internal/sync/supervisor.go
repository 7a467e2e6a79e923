package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"go.uber.org/zap"
)

// State represents the current state of an account's sync loop.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateError
)

// Status holds the sync state for a single account.
type Status struct {
	Account   string
	State     State
	StartedAt time.Time
	Error     error
}

// AccountError pairs a failed account with its terminal error.
type AccountError struct {
	Account string
	Err     error
}

// Supervisor runs one worker goroutine per account and collects their
// terminal errors. One account failing does not stop the others.
type Supervisor struct {
	workers  []*Worker
	statuses map[string]*Status
	errCh    chan AccountError
	logger   *zap.Logger

	mu      gosync.Mutex
	wg      gosync.WaitGroup
	running bool
}

// NewSupervisor creates an empty supervisor.
func NewSupervisor(logger *zap.Logger) *Supervisor {
	return &Supervisor{
		statuses: make(map[string]*Status),
		errCh:    make(chan AccountError, 16),
		logger:   logger,
	}
}

// Add registers a worker. Must be called before Start.
func (s *Supervisor) Add(w *Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workers = append(s.workers, w)
	s.statuses[w.account.Name] = &Status{
		Account: w.account.Name,
		State:   StateIdle,
	}
}

// Start launches a goroutine per registered worker. Calling Start twice
// is a no-op.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	workers := make([]*Worker, len(s.workers))
	copy(workers, s.workers)
	s.mu.Unlock()

	for _, w := range workers {
		s.wg.Add(1)
		go func(w *Worker) {
			defer s.wg.Done()
			s.runWorker(ctx, w)
		}(w)
	}
}

// Wait blocks until every worker goroutine has returned.
func (s *Supervisor) Wait() {
	s.wg.Wait()
	close(s.errCh)
}

// Errors returns the channel terminal worker errors are reported on. The
// channel is closed by Wait after all workers finish.
func (s *Supervisor) Errors() <-chan AccountError {
	return s.errCh
}

// Statuses returns the current status of all registered accounts.
func (s *Supervisor) Statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]Status, 0, len(s.statuses))
	for _, st := range s.statuses {
		statuses = append(statuses, *st)
	}
	return statuses
}

// runWorker runs one worker to completion, tracking its status.
func (s *Supervisor) runWorker(ctx context.Context, w *Worker) {
	s.setStatus(w.account.Name, StateRunning, nil)

	err := w.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.setStatus(w.account.Name, StateError, err)
		s.logger.Error("account sync stopped",
			zap.String("account", w.account.Name), zap.Error(err))
		select {
		case s.errCh <- AccountError{Account: w.account.Name, Err: err}:
		default:
			// Drop if channel is full to avoid blocking shutdown
		}
		return
	}

	s.setStatus(w.account.Name, StateIdle, nil)
	s.logger.Info("account sync finished", zap.String("account", w.account.Name))
}

// setStatus updates the status entry for an account.
func (s *Supervisor) setStatus(account string, state State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statuses[account]
	if !ok {
		return
	}
	st.State = state
	st.Error = err
	if state == StateRunning {
		st.StartedAt = time.Now()
	}
}
