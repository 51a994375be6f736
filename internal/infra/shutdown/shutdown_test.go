package shutdown

import (
	"context"
	"errors"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestHandler_ReverseOrder(t *testing.T) {
	h := NewHandler(time.Second, nil)

	var order []string
	for _, name := range []string{"inbox", "hub", "http"} {
		name := name
		h.OnShutdown(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	if err := h.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if got := strings.Join(order, ","); got != "http,hub,inbox" {
		t.Errorf("hooks ran as %s, want http,hub,inbox", got)
	}

	select {
	case <-h.Done():
	default:
		t.Error("Done should be closed after shutdown")
	}
}

func TestHandler_ErrorsAreJoined(t *testing.T) {
	h := NewHandler(time.Second, nil)
	errA := errors.New("a failed")

	ran := false
	h.OnShutdown("last", func(context.Context) error { ran = true; return nil })
	h.OnShutdown("first", func(context.Context) error { return errA })

	err := h.Shutdown()
	if !errors.Is(err, errA) {
		t.Fatalf("expected joined error to wrap errA, got %v", err)
	}
	if !strings.Contains(err.Error(), "first") {
		t.Errorf("error should name the hook, got %q", err)
	}
	if !ran {
		t.Error("a failing hook must not stop the others")
	}
}

func TestHandler_ShutdownOnce(t *testing.T) {
	h := NewHandler(time.Second, nil)

	calls := 0
	h.OnShutdown("count", func(context.Context) error { calls++; return nil })

	h.Shutdown()
	h.Shutdown()
	if calls != 1 {
		t.Errorf("hook ran %d times, want 1", calls)
	}
}

func TestHandler_TimeoutReachesHooks(t *testing.T) {
	h := NewHandler(20*time.Millisecond, nil)

	h.OnShutdown("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	err := h.Shutdown()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("shutdown did not respect the timeout")
	}
}

func TestHandler_WaitContext(t *testing.T) {
	h := NewHandler(time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Wait() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after cancel")
	}
}

func TestHandler_WaitSignal(t *testing.T) {
	h := NewHandler(time.Second, nil)

	stopped := make(chan struct{})
	h.OnShutdown("marker", func(context.Context) error { close(stopped); return nil })

	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait(context.Background()) }()

	// Give Wait time to install the signal handler.
	time.Sleep(50 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatal(err)
	}

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("hook did not run after SIGTERM")
	}
	<-errCh
}
