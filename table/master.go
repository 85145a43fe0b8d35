package table

import (
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"go.tabledb.dev/core/cache"
	"go.tabledb.dev/core/cell"
	"go.tabledb.dev/core/gc"
	"go.tabledb.dev/core/journal"
	"go.tabledb.dev/core/metrics"
	"go.tabledb.dev/core/rowstore"
	"go.tabledb.dev/core/schema"
	"go.tabledb.dev/core/scheme"
)

// Row types of a Master's rows, as recorded by its Store.
const (
	// Written by a transaction which hasn't committed. Store.Write assigns
	// the zero row type.
	rowUncommitted uint8 = iota
	// Committed, and visible to new transactions.
	rowCommittedAdded
	// Removed by a committed transaction (or never committed), and
	// awaiting reclamation.
	rowCommittedRemoved
)

// Options of a Master.
type Options struct {
	Store   rowstore.Options
	Encoder cell.Encoder
	GC      gc.Config
}

// DefaultOptions returns Options having default values.
func DefaultOptions() Options {
	return Options{
		Encoder: cell.DefaultEncoder,
		GC:      gc.DefaultConfig(),
	}
}

// Stats of a Master.
type Stats struct {
	Store            rowstore.Stats
	CommittedRows    int
	RootLocks        int
	OpenTransactions int
	RetainedJournals int
	PendingReclaim   int
	FullSweepDue     bool
	SchemesRebuilt   bool
}

// Master is a base table, backed by a rowstore.Store. It maintains the set
// of committed rows and a Scheme of each column over them, and coordinates
// the commit of DataTable transactions and the reclamation of deleted rows.
type Master struct {
	id    int
	fs    afero.Fs
	path  string
	def   *schema.Definition
	store *rowstore.Store
	cells *cache.Cells
	enc   cell.Encoder
	gc    *gc.Collector

	mu        sync.Mutex
	closed    bool
	rootLocks int
	commitID  uint64
	committed *roaring.Bitmap   // Rows visible to new transactions.
	inflight  *roaring.Bitmap   // Rows written by open transactions.
	schemes   []scheme.Scheme   // Over |committed|.
	history   []*journal.Journal // Committed journals which open transactions may not observe.
	open      map[*DataTable]struct{}
	rebuilt   bool
}

// masterIDs assigns process-unique identifiers to opened Masters, which key
// their cells within the shared cache.Cells.
var masterIDs int64

// Create a Master table at |path| of frozen Definition |def|. Decoded cells
// are cached in |cells|, and garbage collection passes are posted to |poster|.
func Create(fs afero.Fs, path string, def *schema.Definition, cells *cache.Cells, poster gc.Poster, opts Options) (*Master, error) {
	var store, err = rowstore.Create(fs, path, def, opts.Store)
	if err != nil {
		return nil, err
	}
	var m = newMaster(fs, path, def, store, cells, poster, opts)

	if err = m.buildSchemes(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return m, nil
}

// Open the existing Master table at |path|. If its Store wasn't cleanly
// closed, the Master's schemes are rebuilt and a full garbage collection
// sweep is scheduled.
func Open(fs afero.Fs, path string, cells *cache.Cells, poster gc.Poster, opts Options) (*Master, error) {
	var store, dirty, err = rowstore.Open(fs, path, opts.Store)
	if err != nil {
		return nil, err
	}
	def, err := store.Definition()
	if err != nil {
		_ = store.Close()
		return nil, errors.WithMessage(err, "reading table definition")
	}
	var m = newMaster(fs, path, def, store, cells, poster, opts)

	if err = m.recover(dirty); err != nil {
		_ = store.Close()
		return nil, err
	}
	log.WithFields(log.Fields{
		"table":     def.QualifiedName(),
		"path":      path,
		"committed": m.committed.GetCardinality(),
		"dirty":     dirty,
		"rebuilt":   m.rebuilt,
	}).Debug("opened table")

	return m, nil
}

// Drop removes the files of the closed Master table at |path|.
func Drop(fs afero.Fs, path string) error {
	if err := rowstore.Remove(fs, path); err != nil {
		return err
	}
	return removeSchemes(fs, path)
}

func newMaster(fs afero.Fs, path string, def *schema.Definition, store *rowstore.Store,
	cells *cache.Cells, poster gc.Poster, opts Options) *Master {

	var m = &Master{
		id:        int(atomic.AddInt64(&masterIDs, 1)),
		fs:        fs,
		path:      path,
		def:       def,
		store:     store,
		cells:     cells,
		enc:       opts.Encoder,
		committed: roaring.New(),
		inflight:  roaring.New(),
		open:      make(map[*DataTable]struct{}),
	}
	m.gc = gc.New(def.QualifiedName(), collectorSource{m}, &m.mu, poster, opts.GC)
	return m
}

// recover the committed row set and schemes of an opened Master.
func (m *Master) recover(dirty bool) error {
	var reclaim []int

	for row, n := 0, m.store.RawRowCount(); row != n; row++ {
		var rowType, err = m.store.RowType(row)
		if errors.Cause(err) == rowstore.ErrDeletedRow {
			continue
		} else if err != nil {
			return errors.WithMessagef(err, "reading type of row %d", row)
		} else if rowType == rowCommittedAdded {
			m.committed.Add(uint32(row))
		} else {
			reclaim = append(reclaim, row)
		}
	}

	var loaded bool
	if !dirty {
		var err error
		if loaded, err = m.loadSchemes(); err != nil {
			return err
		}
	}
	if !loaded {
		if err := m.buildSchemes(); err != nil {
			return err
		}
	}
	if m.store.ReadOnly() {
		return nil
	}
	// Persisted schemes are stale once the Master is modified.
	if err := removeSchemes(m.fs, m.path); err != nil {
		return err
	}

	if dirty {
		m.gc.MarkFullSweep()
	} else {
		for _, row := range reclaim {
			m.gc.MarkRowAsDeleted(row)
		}
	}
	m.gc.Schedule()
	return nil
}

// buildSchemes builds a Scheme of each column over the committed rows.
func (m *Master) buildSchemes() error {
	m.schemes = make([]scheme.Scheme, len(m.def.Columns))

	for i, col := range m.def.Columns {
		var s, err = scheme.Build(col.IndexScheme(), head{m}, i)
		if err != nil {
			return errors.WithMessagef(err, "building scheme of column %s", col.Name)
		}
		m.schemes[i] = s

		if col.IndexScheme() == schema.IndexOrdered {
			metrics.SchemeRebuildsTotal.Inc()
		}
	}
	m.rebuilt = true
	return nil
}

// Definition of the Master.
func (m *Master) Definition() *schema.Definition { return m.def }

// Name is the qualified name of the Master.
func (m *Master) Name() string { return m.def.QualifiedName() }

// NextUniqueKey returns the next value of the table's unique key sequence.
func (m *Master) NextUniqueKey() (uint64, error) { return m.store.NextUniqueKey() }

// Begin a transaction against a snapshot of the Master's committed rows.
func (m *Master) Begin() (*DataTable, error) {
	defer m.mu.Unlock()
	m.mu.Lock()

	if m.closed {
		return nil, rowstore.ErrClosed
	}
	var t = &DataTable{
		master:   m,
		snapshot: m.commitID,
		visible:  m.committed.Clone(),
		journal:  journal.New(),
		schemes:  make([]scheme.Scheme, len(m.schemes)),
	}
	for i, s := range m.schemes {
		var err error
		if t.schemes[i], err = s.Copy(t, false); err != nil {
			return nil, errors.WithMessagef(err, "copying scheme of column %d", i)
		}
	}
	m.open[t] = struct{}{}
	metrics.OpenTransactions.Inc()

	return t, nil
}

// AddRootLock adds a root lock of the Master. While any root lock is held,
// deleted rows are not physically reclaimed.
func (m *Master) AddRootLock() {
	defer m.mu.Unlock()
	m.mu.Lock()

	m.rootLocks++
	metrics.RootLocks.Inc()
}

// RemoveRootLock removes a root lock of the Master. When the last is
// removed, garbage collection is scheduled.
func (m *Master) RemoveRootLock() {
	defer m.mu.Unlock()
	m.mu.Lock()

	if m.rootLocks == 0 {
		panic("RemoveRootLock without matching AddRootLock")
	}
	m.rootLocks--
	metrics.RootLocks.Dec()

	if m.rootLocks == 0 {
		m.gc.Schedule()
	}
}

// Sweep schedules a garbage collection pass over every row of the Master.
func (m *Master) Sweep() {
	defer m.mu.Unlock()
	m.mu.Lock()

	m.gc.MarkFullSweep()
	m.gc.Schedule()
}

// Collect performs a garbage collection pass now, returning the number of
// rows reclaimed.
func (m *Master) Collect() (int, error) { return m.gc.Perform() }

// Stats of the Master.
func (m *Master) Stats() Stats {
	defer m.mu.Unlock()
	m.mu.Lock()

	var out = Stats{
		Store:            m.store.Stats(),
		CommittedRows:    int(m.committed.GetCardinality()),
		RootLocks:        m.rootLocks,
		OpenTransactions: len(m.open),
		RetainedJournals: len(m.history),
		SchemesRebuilt:   m.rebuilt,
	}
	out.PendingReclaim, out.FullSweepDue = m.gc.Pending()
	return out
}

// Close the Master. Its ordered schemes are persisted, to be loaded by a
// subsequent Open. Transactions which remain open are invalidated.
func (m *Master) Close() error {
	defer m.mu.Unlock()
	m.mu.Lock()

	if m.closed {
		return nil
	}
	m.closed = true
	metrics.OpenTransactions.Sub(float64(len(m.open)))
	for t := range m.open {
		t.done.Store(true)
	}
	m.open = nil

	var err error
	if !m.store.ReadOnly() {
		err = m.writeSchemes()
	}
	if cerr := m.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// cellAt reads the cell at |column| and |row| through the cell cache.
func (m *Master) cellAt(column, row int) (cell.Cell, error) {
	var key = cache.Key{Table: m.id, Row: row, Column: column}
	if c, ok := m.cells.Get(key); ok {
		return c, nil
	}

	var b, err = m.store.Read(row)
	if err != nil {
		return cell.Cell{}, err
	}
	c, err := cell.DecodeRowCell(b, column)
	if err != nil {
		return cell.Cell{}, errors.WithMessagef(err, "decoding row %d", row)
	}
	m.cells.Put(key, c)

	// The row may have been reclaimed since it was read, and its cells
	// dropped from the cache before the Put.
	if !m.store.IsValid(row) {
		m.cells.Remove(key)
	}
	return c, nil
}

// writeRow writes encoded row |b| on behalf of an open transaction.
func (m *Master) writeRow(b []byte) (int, error) {
	defer m.mu.Unlock()
	m.mu.Lock()

	if m.closed {
		return 0, rowstore.ErrClosed
	}
	var row, err = m.store.Write(b)
	if err != nil {
		return 0, err
	}
	m.inflight.Add(uint32(row))
	return row, nil
}

// commit DataTable |t|. Its Journal is checked for clashes with each
// Journal committed since |t| began. On clash, |t| is rolled back.
func (m *Master) commit(t *DataTable) error {
	defer m.mu.Unlock()
	m.mu.Lock()

	if m.closed {
		return rowstore.ErrClosed
	}
	var j = t.journal

	for _, other := range m.history {
		if other.CommitID <= t.snapshot {
			continue
		} else if err := j.TestCommitClash(other); err != nil {
			m.rollbackLocked(t)
			metrics.CommitsTotal.WithLabelValues(metrics.Fail).Inc()
			return err
		}
	}
	if j.HasChanges() {
		if m.store.ReadOnly() {
			m.rollbackLocked(t)
			metrics.CommitsTotal.WithLabelValues(metrics.Fail).Inc()
			return rowstore.ErrReadOnly
		} else if err := m.applyLocked(j); err != nil {
			m.finishLocked(t)
			metrics.CommitsTotal.WithLabelValues(metrics.Fail).Inc()
			return errors.WithMessage(err, "applying journal")
		}
		if len(m.open) > 1 {
			m.history = append(m.history, j)
		}
	}
	m.finishLocked(t)
	metrics.CommitsTotal.WithLabelValues(metrics.Ok).Inc()
	return nil
}

// applyLocked applies committed Journal |j| to the Master. An error leaves
// the Master partially updated, and it must be closed and re-opened.
func (m *Master) applyLocked(j *journal.Journal) error {
	m.commitID++
	j.CommitID = m.commitID

	for _, row := range j.NormalizedAddedRows() {
		if err := m.store.SetRowType(row, rowCommittedAdded); err != nil {
			return err
		}
		m.committed.Add(uint32(row))
		m.inflight.Remove(uint32(row))

		for i, s := range m.schemes {
			if err := s.Insert(row); err != nil {
				return errors.WithMessagef(err, "indexing column %d", i)
			}
		}
		metrics.RowsAddedTotal.Inc()
	}
	for _, row := range j.NormalizedRemovedRows() {
		for i, s := range m.schemes {
			if err := s.Remove(row); err != nil {
				return errors.WithMessagef(err, "unindexing column %d", i)
			}
		}
		m.committed.Remove(uint32(row))

		if err := m.store.SetRowType(row, rowCommittedRemoved); err != nil {
			return err
		}
		m.gc.MarkRowAsDeleted(row)
		metrics.RowsRemovedTotal.Inc()
	}
	for _, row := range j.LocallyDiscardedRows() {
		if err := m.discardLocked(row); err != nil {
			return err
		}
	}
	return nil
}

// rollback DataTable |t|, discarding the rows it added.
func (m *Master) rollback(t *DataTable) {
	defer m.mu.Unlock()
	m.mu.Lock()

	if !m.closed {
		m.rollbackLocked(t)
	}
}

func (m *Master) rollbackLocked(t *DataTable) {
	var rows = append(t.journal.NormalizedAddedRows(), t.journal.LocallyDiscardedRows()...)

	for _, row := range rows {
		if err := m.discardLocked(row); err != nil {
			// The row remains uncommitted, and is reclaimed by a full sweep.
			log.WithFields(log.Fields{
				"table": m.Name(),
				"row":   row,
				"err":   err,
			}).Warn("failed to discard row of rolled-back transaction")
		}
	}
	metrics.RollbacksTotal.Inc()
	m.finishLocked(t)
}

// discardLocked marks uncommitted |row| for reclamation.
func (m *Master) discardLocked(row int) error {
	m.inflight.Remove(uint32(row))
	if err := m.store.SetRowType(row, rowCommittedRemoved); err != nil {
		return err
	}
	m.gc.MarkRowAsDeleted(row)
	return nil
}

// finishLocked releases DataTable |t|, trims Journals no longer observable
// by any open transaction, and schedules garbage collection.
func (m *Master) finishLocked(t *DataTable) {
	t.done.Store(true)
	delete(m.open, t)
	metrics.OpenTransactions.Dec()

	if len(m.open) == 0 {
		m.history = nil
	} else {
		var oldest = m.commitID
		for o := range m.open {
			if o.snapshot < oldest {
				oldest = o.snapshot
			}
		}
		var keep = m.history[:0]
		for _, j := range m.history {
			if j.CommitID > oldest {
				keep = append(keep, j)
			}
		}
		m.history = keep
	}

	if m.rootLocks == 0 {
		m.gc.Schedule()
	}
}

// head is the scheme.Table of a Master's committed rows. Its use requires
// that the Master's mutex is held.
type head struct{ m *Master }

func (h head) RowCount() int { return int(h.m.committed.GetCardinality()) }
func (h head) Rows() []int   { return toInts(h.m.committed) }

func (h head) CellAt(column, row int) (cell.Cell, error) { return h.m.cellAt(column, row) }

func (h head) SetToRowTableDomain(_ int, rows []int, ancestor scheme.Table) ([]int, error) {
	if ancestor != scheme.Table(h) {
		return nil, ErrNotAncestor
	}
	return rows, nil
}

// collectorSource is the gc.Source of a Master. Its methods are invoked
// while the Master's mutex is held.
type collectorSource struct{ m *Master }

func (s collectorSource) Closed() bool                       { return s.m.closed }
func (s collectorSource) RootLocked() bool                   { return s.m.rootLocks != 0 }
func (s collectorSource) HasTransactionChangesPending() bool { return len(s.m.history) != 0 }
func (s collectorSource) RawRowCount() int                   { return s.m.store.RawRowCount() }

func (s collectorSource) IsRowReclaimable(row int) (bool, error) {
	if s.m.inflight.Contains(uint32(row)) {
		return false, nil
	}
	var rowType, err = s.m.store.RowType(row)
	if errors.Cause(err) == rowstore.ErrDeletedRow {
		return false, nil
	} else if err != nil {
		return false, err
	}
	// Uncommitted rows which aren't inflight were written by a transaction
	// which didn't complete before the Store was closed.
	return rowType == rowCommittedRemoved || rowType == rowUncommitted, nil
}

// HardRemoveRow deletes |row| from the Store before dropping its cached
// cells, which cellAt relies upon.
func (s collectorSource) HardRemoveRow(row int) error {
	var err = s.m.store.Delete(row)
	for column := range s.m.def.Columns {
		s.m.cells.Remove(cache.Key{Table: s.m.id, Row: row, Column: column})
	}
	return err
}

func toInts(bm *roaring.Bitmap) []int {
	var out = make([]int, 0, bm.GetCardinality())
	var it = bm.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}
