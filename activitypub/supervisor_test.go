package activitypub

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deemkeen/stegofed/domain"
)

func TestSupervisorRunsTasksAndSurvivesPanics(t *testing.T) {
	s := NewSupervisor(2)
	var done atomic.Int32

	s.Go(context.Background(), "ok", func(ctx context.Context) error {
		done.Add(1)
		return nil
	})
	s.Go(context.Background(), "fails", func(ctx context.Context) error {
		done.Add(1)
		return errors.New("boom")
	})
	s.Go(context.Background(), "panics", func(ctx context.Context) error {
		done.Add(1)
		panic("boom")
	})
	s.Wait()

	if n := done.Load(); n != 3 {
		t.Errorf("Expected 3 tasks run, got %d", n)
	}
}

func TestSupervisorDetachesFromCallerCancellation(t *testing.T) {
	s := NewSupervisor(1)
	ctx, cancel := context.WithCancel(context.Background())
	var sawCancel atomic.Bool

	s.Go(ctx, "detached", func(ctx context.Context) error {
		time.Sleep(20 * time.Millisecond)
		sawCancel.Store(ctx.Err() != nil)
		return nil
	})
	cancel()
	s.Wait()

	if sawCancel.Load() {
		t.Error("Expected task context to outlive the caller")
	}
}

func TestSupervisorBoundsConcurrency(t *testing.T) {
	s := NewSupervisor(2)
	var running, peak atomic.Int32

	for i := 0; i < 10; i++ {
		s.Go(context.Background(), "bounded", func(ctx context.Context) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		})
	}
	s.Wait()

	if p := peak.Load(); p > 2 {
		t.Errorf("Expected at most 2 concurrent tasks, got %d", p)
	}
}

func TestSupervisorShutdownTimesOut(t *testing.T) {
	s := NewSupervisor(1)
	release := make(chan struct{})
	s.Go(context.Background(), "stuck", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := s.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}

	close(release)
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("Expected clean shutdown, got %v", err)
	}
}

func TestGatewayNeverBlocksOnFailures(t *testing.T) {
	proto := newMockProtocol()
	proto.failInbox["https://remote.example/users/bob/inbox"] = true
	g := NewGateway(proto, NewSupervisor(1))
	bob := &domain.Actor{URI: "https://remote.example/users/bob", InboxURI: "https://remote.example/users/bob/inbox"}

	g.Deliver(context.Background(), &domain.Account{Username: "alice"}, []Recipient{ActorRecipient(bob)}, &Activity{ID: "a1", Type: "Like"}, DeliveryOptions{})
	g.Deliver(context.Background(), &domain.Account{Username: "alice"}, []Recipient{Followers()}, &Activity{ID: "a2", Type: "Create"}, DeliveryOptions{})
	g.supervisor.Wait()

	if n := len(proto.Deliveries()); n != 2 {
		t.Errorf("Expected both deliveries attempted, got %d", n)
	}
}
