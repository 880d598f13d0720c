package activitypub

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Supervisor runs fire-and-track background tasks: side effects and deliveries that must never
// block or undo the primary write. Callers never await a task; errors and panics are logged here.
type Supervisor struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

func NewSupervisor(maxConcurrent int) *Supervisor {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Supervisor{sem: semaphore.NewWeighted(int64(maxConcurrent))}
}

// Go starts fn in the background. fn gets a context that keeps the caller's values
// but not its cancellation, so a finished HTTP request does not abort its deliveries.
func (s *Supervisor) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	supervisedTasksInFlight.Inc()
	go func() {
		defer s.wg.Done()
		defer supervisedTasksInFlight.Dec()

		if err := s.sem.Acquire(ctx, 1); err != nil {
			log.Printf("Supervisor: %s could not start: %v", name, err)
			supervisedTasks.WithLabelValues("failed").Inc()
			return
		}
		defer s.sem.Release(1)

		if err := s.run(ctx, name, fn); err != nil {
			log.Printf("Supervisor: %s failed: %v", name, err)
			supervisedTasks.WithLabelValues("failed").Inc()
			return
		}
		supervisedTasks.WithLabelValues("ok").Inc()
	}()
}

func (s *Supervisor) run(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Supervisor: %s panicked: %v\n%s", name, r, debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Wait blocks until every started task has finished
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// Shutdown waits for in-flight tasks until ctx expires
func (s *Supervisor) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("supervisor shutdown: %w", ctx.Err())
	}
}
