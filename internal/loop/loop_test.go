package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDoRunsTasksSequentially(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := New(16, nil)
	go l.Run(ctx)

	var (
		mu      sync.Mutex
		order   []int
		running int
		overlap bool
		wg      sync.WaitGroup
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := l.Do(ctx, func() {
				running++
				if running > 1 {
					overlap = true
				}
				time.Sleep(time.Millisecond)
				mu.Lock()
				order = append(order, n)
				mu.Unlock()
				running--
			})
			if err != nil {
				t.Errorf("Do failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if overlap {
		t.Error("Tasks overlapped")
	}
	if len(order) != 20 {
		t.Errorf("Expected 20 tasks, got %d", len(order))
	}
}

func TestPostPreservesOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := New(16, nil)
	go l.Run(ctx)

	var order []int
	for i := 0; i < 5; i++ {
		n := i
		l.Post(func() { order = append(order, n) })
	}
	if err := l.Do(ctx, func() {}); err != nil {
		t.Fatalf("Do failed: %v", err)
	}

	for i, n := range order {
		if n != i {
			t.Fatalf("Expected posting order, got %v", order)
		}
	}
}

func TestDoAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := New(1, nil)
	go l.Run(ctx)
	cancel()
	<-l.Done()

	err := l.Do(context.Background(), func() {})
	if !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped, got %v", err)
	}
	if l.Post(func() {}) {
		t.Error("Post should report false after stop")
	}
}

func TestPanickingTaskDoesNotStopLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := New(4, nil)
	go l.Run(ctx)

	if err := l.Do(ctx, func() { panic("boom") }); err != nil {
		t.Fatalf("Do with a panicking task failed: %v", err)
	}

	ran := false
	if err := l.Do(ctx, func() { ran = true }); err != nil {
		t.Fatalf("Do after panic failed: %v", err)
	}
	if !ran {
		t.Error("Expected the loop to keep running after a panic")
	}

	select {
	case <-l.Done():
		t.Error("Loop stopped after a panicking task")
	default:
	}
}
