package notify

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNotifier_DeliversSignal(t *testing.T) {
	var calls atomic.Int32
	n := New(Config{}, func(int) { calls.Add(1) })
	defer n.Close()

	n.Signal()
	waitFor(t, func() bool { return calls.Load() == 1 })
}

func TestNotifier_WindowCoalesces(t *testing.T) {
	var (
		mu      sync.Mutex
		batches []int
	)
	n := New(Config{Window: 50 * time.Millisecond}, func(c int) {
		mu.Lock()
		batches = append(batches, c)
		mu.Unlock()
	})
	defer n.Close()

	for i := 0; i < 5; i++ {
		n.Signal()
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) > 0
	})

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 1 {
		t.Fatalf("batches: got %d, want 1", len(batches))
	}
	if batches[0] != 5 {
		t.Errorf("batch size: got %d, want 5", batches[0])
	}
}

func TestNotifier_MaxBufferFlushesEarly(t *testing.T) {
	var calls atomic.Int32
	n := New(Config{Window: time.Hour, MaxBuffer: 3}, func(int) { calls.Add(1) })
	defer n.Close()

	for i := 0; i < 3; i++ {
		n.Signal()
	}
	waitFor(t, func() bool { return calls.Load() >= 1 })
}

func TestNotifier_SerializedDelivery(t *testing.T) {
	var (
		running atomic.Int32
		overlap atomic.Bool
		calls   atomic.Int32
	)
	n := New(Config{}, func(int) {
		if running.Add(1) > 1 {
			overlap.Store(true)
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		calls.Add(1)
	})
	defer n.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.Signal()
		}()
	}
	wg.Wait()
	waitFor(t, func() bool { return calls.Load() >= 1 })
	time.Sleep(50 * time.Millisecond)

	if overlap.Load() {
		t.Error("callback ran concurrently with itself")
	}
}

func TestNotifier_CloseStopsDelivery(t *testing.T) {
	var calls atomic.Int32
	n := New(Config{Window: 20 * time.Millisecond}, func(int) { calls.Add(1) })

	n.Signal()
	n.Close()
	n.Signal()
	time.Sleep(60 * time.Millisecond)

	if got := calls.Load(); got != 0 {
		t.Errorf("calls after close: got %d, want 0", got)
	}
	n.Close() // idempotent
}

func TestNotifier_CloseDuringDelivery(t *testing.T) {
	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	n := New(Config{}, func(int) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
	})

	n.Signal()
	<-entered
	// Queued behind the running delivery.
	n.Signal()
	n.Signal()

	closed := make(chan struct{})
	go func() {
		n.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked on the running delivery")
	}

	close(release)
	time.Sleep(50 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("deliveries: got %d, want 1", got)
	}
}

func TestNotifier_CloseFromCallback(t *testing.T) {
	var calls atomic.Int32
	var n *Notifier
	ready := make(chan struct{})
	n = New(Config{}, func(int) {
		<-ready
		calls.Add(1)
		n.Close()
		n.Signal()
	})
	close(ready)

	n.Signal()
	waitFor(t, func() bool { return calls.Load() == 1 })
	n.Signal()
	time.Sleep(50 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("deliveries: got %d, want 1", got)
	}
}
