package scraper

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPacerPausesAfterEachPage(t *testing.T) {
	clock := newFakeClock()
	pacer := NewPacer(time.Second, clock)
	ctx := context.Background()

	if waited, err := pacer.Wait(ctx); err != nil || waited != 0 {
		t.Fatalf("first wait = %v/%v, want immediate", waited, err)
	}
	pacer.Done()
	if waited, err := pacer.Wait(ctx); err != nil || waited != time.Second {
		t.Fatalf("second wait = %v/%v, want 1s", waited, err)
	}

	// A slow page does not shorten the pause that follows it.
	clock.Sleep(ctx, 3*time.Second)
	pacer.Done()
	if waited, err := pacer.Wait(ctx); err != nil || waited != time.Second {
		t.Fatalf("wait after slow page = %v/%v, want 1s", waited, err)
	}

	// Time between the end of a page and the next wait does count.
	pacer.Done()
	clock.Sleep(ctx, 500*time.Millisecond)
	if waited, err := pacer.Wait(ctx); err != nil || waited != 500*time.Millisecond {
		t.Fatalf("wait = %v/%v, want 500ms", waited, err)
	}

	pacer.Done()
	clock.Sleep(ctx, 5*time.Second)
	if waited, err := pacer.Wait(ctx); err != nil || waited != 0 {
		t.Fatalf("wait after idle = %v/%v, want immediate", waited, err)
	}
}

func TestPacerZeroDelay(t *testing.T) {
	clock := newFakeClock()
	pacer := NewPacer(0, clock)
	for i := 0; i < 3; i++ {
		pacer.Done()
		if waited, err := pacer.Wait(context.Background()); err != nil || waited != 0 {
			t.Fatalf("wait %d = %v/%v, want immediate", i, waited, err)
		}
	}
	if len(clock.Sleeps()) != 0 {
		t.Fatalf("zero delay should never sleep")
	}
}

func TestPacerHonoursCancellation(t *testing.T) {
	clock := newFakeClock()
	pacer := NewPacer(time.Second, clock)
	if _, err := pacer.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	pacer.Done()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pacer.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRealClockSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (realClock{}).Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
