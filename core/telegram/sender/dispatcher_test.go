package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	var (
		mu      sync.Mutex
		results []error
	)
	d := NewDispatcher(Options{
		Workers:      1,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
		OnResult: func(_ string, err error) {
			mu.Lock()
			results = append(results, err)
			mu.Unlock()
		},
	})

	var calls atomic.Int32
	err := d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		if calls.Add(1) < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	d.Close()

	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
	if len(results) != 1 || results[0] != nil {
		t.Fatalf("results = %v", results)
	}
	if d.ErrorCount() != 0 {
		t.Fatalf("errors = %d", d.ErrorCount())
	}
}

func TestDispatcherCountsPermanentFailure(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	_ = d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		calls.Add(1)
		return errors.New("chat not found (400)")
	})
	d.Close()

	if calls.Load() != 1 {
		t.Fatalf("non-retryable error retried %d times", calls.Load())
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("errors = %d", d.ErrorCount())
	}
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	d.Close()
	if err := d.Enqueue(context.Background(), "a", "b", func() error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
	if err := d.Enqueue(context.Background(), "a", "b", nil); err == nil {
		t.Fatal("expected nil run error")
	}
}

func TestClassifyAndSanitize(t *testing.T) {
	if got := classifyError(context.DeadlineExceeded); got != "timeout" {
		t.Fatalf("classify = %q", got)
	}
	if got := classifyError(errors.New("Bad Gateway (502)")); got != "http_5xx" {
		t.Fatalf("classify = %q", got)
	}
	msg := redact(errors.New("post https://api.telegram.org/bot123:ABC-def/sendMessage"))
	if msg != "post https://api.telegram.org/bot<redacted>/sendMessage" {
		t.Fatalf("sanitize = %q", msg)
	}
}

func TestDispatcherEnqueueRacingClose(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2, QueueSize: 4})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 50; k++ {
				err := d.Enqueue(context.Background(), "a", "b", func() error { return nil })
				if err != nil && !errors.Is(err, ErrQueueClosed) && !errors.Is(err, ErrQueueFull) {
					t.Errorf("enqueue: %v", err)
					return
				}
			}
		}()
	}
	d.Close()
	wg.Wait()
	d.Close()
}
