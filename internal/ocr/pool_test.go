package ocr

import (
	"sync"
	"testing"
	"time"
)

func TestNewPool_Defaults(t *testing.T) {
	pool := NewPool(0, 0)
	if pool == nil {
		t.Fatal("Expected non-nil pool")
	}
	if pool.workers <= 0 {
		t.Error("Expected workers to default to a positive count")
	}
	if cap(pool.jobQueue) != pool.workers*2 {
		t.Errorf("Expected default queue capacity %d, got %d", pool.workers*2, cap(pool.jobQueue))
	}
}

func TestPool_SubmitRunsJobs(t *testing.T) {
	pool := NewPool(2, 8)
	pool.Start()
	defer pool.Close()

	var wg sync.WaitGroup
	var mu sync.Mutex
	counter := 0

	for i := 0; i < 5; i++ {
		wg.Add(1)
		if err := pool.TrySubmit(func() {
			defer wg.Done()
			mu.Lock()
			counter++
			mu.Unlock()
		}); err != nil {
			t.Fatalf("TrySubmit failed: %v", err)
		}
	}
	wg.Wait()

	if counter != 5 {
		t.Errorf("Expected counter to be 5, got %d", counter)
	}
}

func TestPool_SaturationRejects(t *testing.T) {
	pool := NewPool(1, 1)
	pool.Start()
	defer pool.Close()

	block := make(chan struct{})
	started := make(chan struct{})

	// Occupy the single worker...
	if err := pool.TrySubmit(func() { close(started); <-block }); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	<-started
	// ...and fill the queue slot.
	if err := pool.TrySubmit(func() {}); err != nil {
		t.Fatalf("second submit failed: %v", err)
	}

	if err := pool.TrySubmit(func() {}); err != ErrPoolSaturated {
		t.Errorf("expected ErrPoolSaturated, got %v", err)
	}
	close(block)
}

func TestPool_ClosedRejects(t *testing.T) {
	pool := NewPool(1, 4)
	pool.Start()
	pool.Close()

	if err := pool.TrySubmit(func() {}); err != ErrPoolClosed {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
}

func TestPool_StartIdempotent(t *testing.T) {
	pool := NewPool(2, 4)
	pool.Start()
	pool.Start()
	defer pool.Close()

	done := make(chan struct{})
	if err := pool.TrySubmit(func() { close(done) }); err != nil {
		t.Fatalf("TrySubmit failed: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job never ran after double Start")
	}
}

func TestPool_CloseIdempotent(t *testing.T) {
	pool := NewPool(1, 1)
	pool.Start()
	pool.Close()
	pool.Close() // must not panic
}

func TestPool_QueuedJobsRunAfterClose(t *testing.T) {
	pool := NewPool(1, 2)
	pool.Start()

	done := make(chan struct{})
	if err := pool.TrySubmit(func() { close(done) }); err != nil {
		t.Fatalf("TrySubmit failed: %v", err)
	}
	pool.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queued job was dropped on Close")
	}
}
