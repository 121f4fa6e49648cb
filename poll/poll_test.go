package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/use-agent/aliscout/poll/polltest"
)

func TestRun_StopsWhenDone(t *testing.T) {
	clock := &polltest.Clock{}
	p := Poller{Attempts: 10, Interval: 100 * time.Millisecond, Clock: clock}

	n, err := p.Run(context.Background(), func(_ context.Context, attempt int) (bool, error) {
		return attempt == 3, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
	if got := clock.Total(); got != 300*time.Millisecond {
		t.Errorf("slept %v, want 300ms", got)
	}
}

func TestRun_Exhausted(t *testing.T) {
	clock := &polltest.Clock{}
	p := Poller{Attempts: 150, Interval: 100 * time.Millisecond, Clock: clock}

	calls := 0
	n, err := p.Run(context.Background(), func(context.Context, int) (bool, error) {
		calls++
		return false, nil
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
	if n != 150 || calls != 150 {
		t.Errorf("attempts = %d, calls = %d, want 150", n, calls)
	}
	if got := clock.Total(); got != 15*time.Second {
		t.Errorf("slept %v, want 15s", got)
	}
}

func TestRun_ErrorsAreNotFatal(t *testing.T) {
	var seen []int
	p := Poller{
		Attempts: 5,
		Clock:    &polltest.Clock{},
		OnError:  func(attempt int, _ error) { seen = append(seen, attempt) },
	}

	n, err := p.Run(context.Background(), func(_ context.Context, attempt int) (bool, error) {
		if attempt < 3 {
			// done=true alongside an error must not end the loop
			return true, errors.New("cross-origin")
		}
		return true, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
	if len(seen) != 2 {
		t.Errorf("OnError called %d times, want 2", len(seen))
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := Poller{Attempts: 5, Clock: &polltest.Clock{}}
	_, err := p.Run(ctx, func(context.Context, int) (bool, error) {
		t.Fatal("check must not run after cancellation")
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRealClock_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := (RealClock{}).Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("sleep did not return early on cancellation")
	}
}
