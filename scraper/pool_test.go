package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-rod/rod"
)

func TestAcquireTab_CreateFailureKeepsSlot(t *testing.T) {
	pool := rod.NewPagePool(2)
	errCreate := errors.New("target crashed")
	failing := func() (*rod.Page, error) { return nil, errCreate }

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 5; i++ {
		if _, err := acquireTab(ctx, pool, failing); !errors.Is(err, errCreate) {
			t.Fatalf("acquire %d: err = %v, want create error", i, err)
		}
	}

	want := &rod.Page{}
	got, err := acquireTab(ctx, pool, func() (*rod.Page, error) { return want, nil })
	if err != nil {
		t.Fatalf("acquire after failures: %v", err)
	}
	if got != want {
		t.Error("acquire did not return the created tab")
	}
}

func TestAcquireTab_ReusesReturnedTab(t *testing.T) {
	pool := rod.NewPagePool(1)
	first := &rod.Page{}
	ctx := context.Background()

	p, err := acquireTab(ctx, pool, func() (*rod.Page, error) { return first, nil })
	if err != nil {
		t.Fatal(err)
	}
	pool.Put(p)

	got, err := acquireTab(ctx, pool, func() (*rod.Page, error) {
		t.Fatal("create called while a tab was idle")
		return nil, nil
	})
	if err != nil || got != first {
		t.Errorf("got %p, %v; want the returned tab", got, err)
	}
}

func TestAcquireTab_StopsWithContext(t *testing.T) {
	pool := rod.NewPagePool(1)
	ok := func() (*rod.Page, error) { return &rod.Page{}, nil }
	if _, err := acquireTab(context.Background(), pool, ok); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := acquireTab(ctx, pool, ok); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}
