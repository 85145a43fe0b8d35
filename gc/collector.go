package gc

import (
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Source is the table whose rows a Collector reclaims. Its methods are
// invoked only while the Collector's Locker is held.
type Source interface {
	// Closed returns whether the table is closed.
	Closed() bool
	// RootLocked returns whether any root lock of the table is held.
	RootLocked() bool
	// HasTransactionChangesPending returns whether a transaction may still
	// observe rows which have since been deleted.
	HasTransactionChangesPending() bool
	// RawRowCount is the number of row IDs ever allocated by the table.
	RawRowCount() int
	// IsRowReclaimable returns whether |row| is deleted and unreferenced.
	IsRowReclaimable(row int) (bool, error)
	// HardRemoveRow physically removes |row|.
	HardRemoveRow(row int) error
}

// Poster runs a function after a delay. It's implemented by task.Dispatcher.
type Poster interface {
	Post(delay time.Duration, desc string, fn func() error)
}

// Config of a Collector.
type Config struct {
	// Delay between scheduling a pass and its execution.
	Delay time.Duration
	// MaxPending bounds the number of individually tracked rows. Beyond it,
	// a full sweep is scheduled instead.
	MaxPending int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Delay:      2 * time.Second,
		MaxPending: 1 << 16,
	}
}

// Collector reclaims deleted rows of a Source.
type Collector struct {
	name   string
	src    Source
	locker sync.Locker
	poster Poster
	cfg    Config

	mu           sync.Mutex
	pending      *roaring.Bitmap
	fullSweepDue bool
	scheduled    bool
}

// New returns a Collector of |src|, identified in logs by |name|. Passes
// hold |locker| throughout, which must also guard mutations of |src|.
func New(name string, src Source, locker sync.Locker, poster Poster, cfg Config) *Collector {
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = DefaultConfig().MaxPending
	}
	return &Collector{
		name:    name,
		src:     src,
		locker:  locker,
		poster:  poster,
		cfg:     cfg,
		pending: roaring.New(),
	}
}

// MarkRowAsDeleted marks |row| for reclamation by a future pass.
func (c *Collector) MarkRowAsDeleted(row int) {
	defer c.mu.Unlock()
	c.mu.Lock()

	if c.fullSweepDue {
		return // Will be found by the sweep.
	}
	c.pending.Add(uint32(row))

	if c.pending.GetCardinality() > uint64(c.cfg.MaxPending) {
		log.WithFields(log.Fields{
			"table":      c.name,
			"maxPending": c.cfg.MaxPending,
		}).Debug("pending deletions exceed bound; a full sweep is due")

		c.pending.Clear()
		c.fullSweepDue = true
	}
}

// MarkFullSweep marks that the next pass must sweep every row of the table.
func (c *Collector) MarkFullSweep() {
	defer c.mu.Unlock()
	c.mu.Lock()

	c.pending.Clear()
	c.fullSweepDue = true
}

// Pending returns the number of individually marked rows, and whether a
// full sweep is due.
func (c *Collector) Pending() (rows int, fullSweep bool) {
	defer c.mu.Unlock()
	c.mu.Lock()

	return int(c.pending.GetCardinality()), c.fullSweepDue
}

// Schedule a pass after the configured delay, if there's work to do and a
// pass isn't already scheduled.
func (c *Collector) Schedule() {
	c.mu.Lock()
	if c.scheduled || (!c.fullSweepDue && c.pending.IsEmpty()) {
		c.mu.Unlock()
		return
	}
	c.scheduled = true
	c.mu.Unlock()

	c.poster.Post(c.cfg.Delay, "garbage collection of "+c.name, func() error {
		var _, _ = c.Perform()
		return nil // Perform logs its own errors.
	})
}

// Perform a reclamation pass now, returning the number of rows reclaimed.
// The pass is skipped if the Source is closed, is root locked, or has
// transaction changes pending. An error aborts the pass. Rows not yet
// reclaimed remain marked, and are retried by the next pass.
func (c *Collector) Perform() (int, error) {
	defer c.locker.Unlock()
	c.locker.Lock()

	c.mu.Lock()
	c.scheduled = false
	var fullSweep = c.fullSweepDue
	var rows = c.pending.ToArray()
	c.mu.Unlock()

	if c.src.Closed() || (!fullSweep && len(rows) == 0) {
		return 0, nil
	} else if c.src.RootLocked() || c.src.HasTransactionChangesPending() {
		passesTotal.WithLabelValues(outcomeSkipped).Inc()

		log.WithFields(log.Fields{
			"table":     c.name,
			"pending":   len(rows),
			"fullSweep": fullSweep,
		}).Debug("skipping garbage collection of locked table")
		return 0, nil
	}

	var started = time.Now()
	var reclaimed int
	var err error

	if fullSweep {
		for row, n := 0, c.src.RawRowCount(); row != n && err == nil; row++ {
			var ok bool
			if ok, err = c.reclaim(row); ok {
				reclaimed++
			}
		}
	} else {
		for _, row := range rows {
			var ok bool
			if ok, err = c.reclaim(int(row)); err != nil {
				break
			} else if ok {
				reclaimed++
			}
			c.mu.Lock()
			c.pending.Remove(row)
			c.mu.Unlock()
		}
	}
	rowsReclaimedTotal.Add(float64(reclaimed))

	var fields = log.Fields{
		"table":     c.name,
		"reclaimed": reclaimed,
		"fullSweep": fullSweep,
		"took":      time.Since(started),
	}
	if err != nil {
		passesTotal.WithLabelValues(outcomeFailed).Inc()
		fields["err"] = err
		log.WithFields(fields).Warn("garbage collection pass failed (will retry)")
		return reclaimed, err
	}

	if fullSweep {
		c.mu.Lock()
		c.fullSweepDue = false
		c.pending.Clear()
		c.mu.Unlock()
	}
	passesTotal.WithLabelValues(outcomeComplete).Inc()
	log.WithFields(fields).Debug("garbage collection pass complete")
	return reclaimed, nil
}

func (c *Collector) reclaim(row int) (bool, error) {
	if ok, err := c.src.IsRowReclaimable(row); err != nil {
		return false, errors.WithMessagef(err, "checking row %d", row)
	} else if !ok {
		return false, nil
	} else if err = c.src.HardRemoveRow(row); err != nil {
		return false, errors.WithMessagef(err, "removing row %d", row)
	}
	return true, nil
}
