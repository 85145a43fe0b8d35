package task

import (
	"container/heap"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Dispatcher runs posted functions once their delay has elapsed, in order of
// their due time, on a single goroutine running Serve. A function which
// fails or panics is logged and does not interrupt the Dispatcher.
type Dispatcher struct {
	mu       sync.Mutex
	pending  postedHeap
	seq      uint64
	stopping bool
	wakeCh   chan struct{}
	doneCh   chan struct{}
}

type posted struct {
	due  time.Time
	seq  uint64
	desc string
	fn   func() error
}

// NewDispatcher returns an idle Dispatcher. Serve must be called to run
// posted functions.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		wakeCh: make(chan struct{}, 1),
		doneCh: make(chan struct{}),
	}
}

// Post |fn| for execution after |delay|. Functions posted after Finish
// has been called are dropped.
func (d *Dispatcher) Post(delay time.Duration, desc string, fn func() error) {
	d.mu.Lock()
	if d.stopping {
		d.mu.Unlock()

		log.WithField("task", desc).Debug("dropping task posted to finished dispatcher")
		return
	}
	d.seq++
	heap.Push(&d.pending, posted{due: time.Now().Add(delay), seq: d.seq, desc: desc, fn: fn})
	d.mu.Unlock()

	select {
	case d.wakeCh <- struct{}{}:
	default: // Already signaled.
	}
}

// Len returns the number of posted functions which haven't yet run.
func (d *Dispatcher) Len() int {
	defer d.mu.Unlock()
	d.mu.Lock()

	return d.pending.Len()
}

// Serve runs posted functions as they become due, until Finish is called.
func (d *Dispatcher) Serve() {
	var timer = time.NewTimer(time.Hour)
	timer.Stop()

	for {
		var ready, wait, exiting = d.popReady(time.Now())

		for _, p := range ready {
			d.run(p)
		}
		if exiting {
			break
		} else if len(ready) != 0 {
			continue // Running may have taken a while. Re-check the clock.
		}

		if wait >= 0 {
			timer.Reset(wait)
		}
		select {
		case <-timer.C:
		case <-d.wakeCh:
			timer.Stop()
		}
	}

	d.mu.Lock()
	if n := d.pending.Len(); n != 0 {
		log.WithField("tasks", n).Debug("dispatcher exiting with pending tasks, which are dropped")
	}
	d.pending = nil
	d.mu.Unlock()

	close(d.doneCh)
}

// Finish signals Serve to exit, and blocks until it has. Functions not yet
// due are dropped.
func (d *Dispatcher) Finish() {
	d.mu.Lock()
	d.stopping = true
	d.mu.Unlock()

	select {
	case d.wakeCh <- struct{}{}:
	default:
	}
	<-d.doneCh
}

// popReady pops posted functions due as of |now|. If none remain, |wait| is
// negative. Otherwise, it's the duration until the next is due.
func (d *Dispatcher) popReady(now time.Time) (ready []posted, wait time.Duration, exiting bool) {
	defer d.mu.Unlock()
	d.mu.Lock()

	for d.pending.Len() != 0 && !d.pending[0].due.After(now) {
		ready = append(ready, heap.Pop(&d.pending).(posted))
	}
	if d.pending.Len() != 0 {
		wait = d.pending[0].due.Sub(now)
	} else {
		wait = -1
	}
	return ready, wait, d.stopping
}

func (d *Dispatcher) run(p posted) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Errorf("panic: %s", fmt.Sprint(r))
			}
		}()
		err = p.fn()
	}()

	if err != nil {
		log.WithFields(log.Fields{
			"task": p.desc,
			"err":  err,
		}).Warn("dispatched task failed")
	}
}

// postedHeap is a min-heap of posted functions on (due, seq).
type postedHeap []posted

func (h postedHeap) Len() int { return len(h) }
func (h postedHeap) Less(i, j int) bool {
	if !h[i].due.Equal(h[j].due) {
		return h[i].due.Before(h[j].due)
	}
	return h[i].seq < h[j].seq
}
func (h postedHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *postedHeap) Push(x interface{}) { *h = append(*h, x.(posted)) }
func (h *postedHeap) Pop() interface{} {
	var old = *h
	var x = old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}
