package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLanesServeInArrivalOrder(t *testing.T) {
	t.Parallel()

	lanes := NewLanes()
	ctx := context.Background()

	release, err := lanes.Acquire(ctx, "conv")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 1; i <= 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rel, err := lanes.Acquire(ctx, "conv")
			if err != nil {
				t.Errorf("Acquire(%d) error = %v", n, err)
				return
			}
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			rel()
		}(i)
		waitFor(t, func() bool { return lanes.Waiting("conv") == i })
	}

	release()
	wg.Wait()

	for i, n := range order {
		if n != i+1 {
			t.Fatalf("order = %v, want [1 2 3 4]", order)
		}
	}
	if lanes.Waiting("conv") != 0 {
		t.Fatalf("Waiting() = %d after drain", lanes.Waiting("conv"))
	}
}

func TestLanesIndependentKeysDoNotBlock(t *testing.T) {
	t.Parallel()

	lanes := NewLanes()
	ctx := context.Background()

	relA, err := lanes.Acquire(ctx, "a")
	if err != nil {
		t.Fatalf("Acquire(a) error = %v", err)
	}
	defer relA()

	done := make(chan struct{})
	go func() {
		rel, err := lanes.Acquire(ctx, "b")
		if err == nil {
			rel()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lane b blocked behind lane a")
	}
}

func TestLanesCancelledWaiterLeavesQueue(t *testing.T) {
	t.Parallel()

	lanes := NewLanes()
	release, err := lanes.Acquire(context.Background(), "conv")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := lanes.Acquire(ctx, "conv")
		errCh <- err
	}()
	waitFor(t, func() bool { return lanes.Waiting("conv") == 1 })
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Acquire() error = %v, want context.Canceled", err)
	}
	if lanes.Waiting("conv") != 0 {
		t.Fatalf("Waiting() = %d, want 0", lanes.Waiting("conv"))
	}

	release()
	rel, err := lanes.Acquire(context.Background(), "conv")
	if err != nil {
		t.Fatalf("Acquire() after cancel error = %v", err)
	}
	rel()
	rel()
}
