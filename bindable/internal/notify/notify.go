// Package notify turns a stream of mutation signals into serialized,
// debounced callback deliveries. Both document hosts use it so that an
// observation callback never runs concurrently with itself.
package notify

import (
	"sync"
	"sync/atomic"
	"time"
)

// Config controls batching.
type Config struct {
	// Window is the quiet period after the last signal before delivering.
	// Zero delivers on the next turn of the notifier goroutine, which
	// still coalesces signals that arrive while a delivery is running.
	Window time.Duration
	// MaxBuffer delivers immediately once this many signals are pending,
	// even if the window keeps being extended. Default: 1000.
	MaxBuffer int
}

func (c *Config) defaults() {
	if c.Window < 0 {
		c.Window = 0
	}
	if c.MaxBuffer <= 0 {
		c.MaxBuffer = 1000
	}
}

// Notifier delivers batches of signals to a callback on its own goroutine.
type Notifier struct {
	cfg     Config
	fn      func(n int)
	pending atomic.Int64
	kick    chan struct{}
	done    chan struct{}

	mu     sync.Mutex // orders the closed check in flush against Close
	closed atomic.Bool
	once   sync.Once
}

// New starts a Notifier. fn receives the number of signals in the batch.
func New(cfg Config, fn func(n int)) *Notifier {
	cfg.defaults()
	n := &Notifier{
		cfg:  cfg,
		fn:   fn,
		kick: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go n.loop()
	return n
}

// Signal records one mutation. It never blocks.
func (n *Notifier) Signal() {
	if n.closed.Load() {
		return
	}
	n.pending.Add(1)
	select {
	case n.kick <- struct{}{}:
	default:
	}
}

// Close stops the notifier. Pending signals are dropped and no delivery
// is dispatched after Close returns. A delivery dispatched before that
// still runs; Close does not wait for it, so it is safe to call from
// inside the callback.
func (n *Notifier) Close() {
	n.once.Do(func() {
		n.mu.Lock()
		n.closed.Store(true)
		n.mu.Unlock()
		close(n.done)
	})
}

func (n *Notifier) loop() {
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}
	defer stopTimer()

	for {
		select {
		case <-n.done:
			return

		case <-n.kick:
			if n.cfg.Window == 0 || n.pending.Load() >= int64(n.cfg.MaxBuffer) {
				stopTimer()
				n.flush()
				continue
			}
			// (Re)start the quiet window.
			stopTimer()
			timer = time.NewTimer(n.cfg.Window)
			timerC = timer.C

		case <-timerC:
			timer, timerC = nil, nil
			n.flush()
		}
	}
}

func (n *Notifier) flush() {
	n.mu.Lock()
	if n.closed.Load() {
		n.mu.Unlock()
		return
	}
	c := n.pending.Swap(0)
	n.mu.Unlock()
	if c > 0 {
		n.fn(int(c))
	}
}
