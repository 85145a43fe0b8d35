package rowstore

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"go.tabledb.dev/core/schema"
)

var (
	// ErrAlreadyExists is returned by Create if the Store's files exist.
	ErrAlreadyExists = errors.New("row store already exists")
	// ErrCorruptStore is returned if a Store cannot be safely opened.
	ErrCorruptStore = errors.New("row store is corrupt")
	// ErrDeletedRow is returned when reading a deleted row.
	ErrDeletedRow = errors.New("row is deleted")
	// ErrOutOfRange is returned when accessing a row ID which was never allocated.
	ErrOutOfRange = errors.New("row out of range")
	// ErrReadOnly is returned by mutations of a read-only Store.
	ErrReadOnly = errors.New("row store is read-only")
	// ErrClosed is returned by operations of a closed Store.
	ErrClosed = errors.New("row store is closed")
)

// Options of a Store.
type Options struct {
	// SectorSize hints the sector size of a created Store. It's clamped to
	// [MinSectorSize, MaxSectorSize]. Zero selects MinSectorSize.
	SectorSize int
	// ReadOnly opens the Store for reading only.
	ReadOnly bool
}

// Stats summarize the allocation state of a Store.
type Stats struct {
	Rows        int
	LiveRows    int
	LiveBytes   int64
	Sectors     int64
	FreeSectors int64
	SectorSize  int
}

// Store is a sector-allocated mapping of row IDs to row bytes.
// A Store is safe for concurrent use.
type Store struct {
	fs       afero.Fs
	path     string
	readOnly bool

	mu      sync.Mutex
	index   afero.File
	sectors afero.File
	hdr     header
	entries []entry
	closed  bool
}

// Create a new Store at |path| holding Definition |def|, which must be frozen.
func Create(fs afero.Fs, path string, def *schema.Definition, opts Options) (_ *Store, err error) {
	if !def.Frozen() {
		return nil, errors.New("definition must be frozen")
	}
	for _, suffix := range []string{indexSuffix, sectorSuffix} {
		if ok, err := afero.Exists(fs, path+suffix); err != nil {
			return nil, errors.WithMessage(err, "checking existence")
		} else if ok {
			return nil, errors.WithMessagef(ErrAlreadyExists, "%s", path)
		}
	}
	defBytes, err := def.Marshal()
	if err != nil {
		return nil, err
	}

	var s = &Store{
		fs:   fs,
		path: path,
		hdr: header{
			id:         uuid.New(),
			sectorSize: clampSectorSize(opts.SectorSize),
			defHead:    noSector,
			freeHead:   noSector,
			flags:      flagDirty,
		},
	}
	if s.index, err = fs.OpenFile(path+indexSuffix, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644); err != nil {
		return nil, errors.WithMessage(err, "creating index file")
	}
	if s.sectors, err = fs.OpenFile(path+sectorSuffix, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644); err != nil {
		_ = s.index.Close()
		_ = fs.Remove(path + indexSuffix)
		return nil, errors.WithMessage(err, "creating sector file")
	}
	defer func() {
		if err != nil {
			_ = s.index.Close()
			_ = s.sectors.Close()
			_ = Remove(fs, path)
		}
	}()

	if s.hdr.defHead, err = s.allocChain(defBytes); err != nil {
		return nil, errors.WithMessage(err, "writing definition")
	}
	s.hdr.defLen = uint32(len(defBytes))

	if err = s.writeHeader(); err != nil {
		return nil, err
	}
	return s, nil
}

// Open an existing Store at |path|. If the Store was not cleanly closed,
// Open verifies its allocation state and rebuilds its free list, and returns
// |dirty| as true. If that's not possible, ErrCorruptStore is returned.
func Open(fs afero.Fs, path string, opts Options) (_ *Store, dirty bool, err error) {
	var flags = os.O_RDWR
	if opts.ReadOnly {
		flags = os.O_RDONLY
	}
	var s = &Store{fs: fs, path: path, readOnly: opts.ReadOnly}

	if s.index, err = fs.OpenFile(path+indexSuffix, flags, 0); err != nil {
		return nil, false, errors.WithMessage(err, "opening index file")
	}
	if s.sectors, err = fs.OpenFile(path+sectorSuffix, flags, 0); err != nil {
		_ = s.index.Close()
		return nil, false, errors.WithMessage(err, "opening sector file")
	}
	defer func() {
		if err != nil {
			_ = s.index.Close()
			_ = s.sectors.Close()
		}
	}()

	var buf = make([]byte, headerSize)
	if err = readFullAt(s.index, buf, 0); err != nil {
		return nil, false, errors.WithMessagef(ErrCorruptStore, "reading header: %s", err)
	} else if err = s.hdr.unmarshal(buf); err != nil {
		return nil, false, err
	} else if err = s.checkExtents(); err != nil {
		return nil, false, err
	}

	buf = make([]byte, int(s.hdr.rowCount)*entrySize)
	if err = readFullAt(s.index, buf, headerSize); err != nil {
		return nil, false, errors.WithMessagef(ErrCorruptStore, "reading %d row entries: %s", s.hdr.rowCount, err)
	}
	s.entries = make([]entry, s.hdr.rowCount)
	for i := range s.entries {
		s.entries[i] = unmarshalEntry(buf[i*entrySize:])
	}

	if dirty = s.hdr.flags&flagDirty != 0; dirty {
		if err = s.repair(); err != nil {
			return nil, false, err
		}
	}
	if !s.readOnly {
		s.hdr.flags |= flagDirty
		if err = s.writeHeader(); err != nil {
			return nil, false, err
		} else if err = s.index.Sync(); err != nil {
			return nil, false, errors.WithMessage(err, "syncing index file")
		}
	}
	return s, dirty, nil
}

// checkExtents verifies the row and sector counts of the header against the
// sizes of the index and sector files.
func (s *Store) checkExtents() error {
	var indexInfo, err = s.index.Stat()
	if err != nil {
		return errors.WithMessage(err, "stat of index file")
	}
	sectorInfo, err := s.sectors.Stat()
	if err != nil {
		return errors.WithMessage(err, "stat of sector file")
	}

	if maxRows := uint64(indexInfo.Size()-headerSize) / entrySize; s.hdr.rowCount > maxRows {
		return errors.WithMessagef(ErrCorruptStore, "header has %d rows, but the index file holds at most %d",
			s.hdr.rowCount, maxRows)
	}
	if maxSectors := sectorInfo.Size() / int64(s.hdr.sectorSize); s.hdr.sectorCount < 0 || s.hdr.sectorCount > maxSectors {
		return errors.WithMessagef(ErrCorruptStore, "header has %d sectors, but the sector file holds at most %d",
			s.hdr.sectorCount, maxSectors)
	}
	if s.hdr.freeCount < 0 || s.hdr.freeCount > s.hdr.sectorCount {
		return errors.WithMessagef(ErrCorruptStore, "header has %d free sectors (of %d)", s.hdr.freeCount, s.hdr.sectorCount)
	}
	return nil
}

// Remove the files of the (closed) Store at |path|.
func Remove(fs afero.Fs, path string) error {
	for _, suffix := range []string{indexSuffix, sectorSuffix} {
		if err := fs.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return errors.WithMessagef(err, "removing %s", path+suffix)
		}
	}
	return nil
}

// ID is the unique identity of the Store, assigned at creation.
func (s *Store) ID() uuid.UUID { return s.hdr.id }

// Path of the Store.
func (s *Store) Path() string { return s.path }

// ReadOnly returns whether the Store was opened read-only.
func (s *Store) ReadOnly() bool { return s.readOnly }

// Definition returns the table Definition the Store was created with.
func (s *Store) Definition() (*schema.Definition, error) {
	defer s.mu.Unlock()
	s.mu.Lock()

	if s.closed {
		return nil, ErrClosed
	}
	var b, err = s.readChain(s.hdr.defHead, int(s.hdr.defLen))
	if err != nil {
		return nil, errors.WithMessage(err, "reading definition")
	}
	return schema.Unmarshal(b)
}

// Write a new row of |p|, returning its row ID.
func (s *Store) Write(p []byte) (int, error) {
	defer s.mu.Unlock()
	s.mu.Lock()

	if err := s.checkWritable(); err != nil {
		return 0, err
	}
	var head, err = s.allocChain(p)
	if err != nil {
		return 0, err
	}
	var row = len(s.entries)
	var e = entry{state: entryLive, length: uint32(len(p)), head: head}

	if err = s.writeEntry(row, e); err != nil {
		return 0, err
	}
	s.entries = append(s.entries, e)
	s.hdr.rowCount = uint64(len(s.entries))

	if err = s.writeHeader(); err != nil {
		return 0, err
	}
	rowsWrittenTotal.Inc()
	bytesWrittenTotal.Add(float64(len(p)))
	return row, nil
}

// Read the content of row |row|.
func (s *Store) Read(row int) ([]byte, error) {
	defer s.mu.Unlock()
	s.mu.Lock()

	var e, err = s.liveEntry(row)
	if err != nil {
		return nil, err
	}
	return s.readChain(e.head, int(e.length))
}

// Delete row |row|, releasing its sectors for re-use. The row ID is not re-used.
func (s *Store) Delete(row int) error {
	defer s.mu.Unlock()
	s.mu.Lock()

	if err := s.checkWritable(); err != nil {
		return err
	}
	var e, err = s.liveEntry(row)
	if err != nil {
		return err
	}
	e.state = entryDeleted

	if err = s.writeEntry(row, e); err != nil {
		return err
	} else if err = s.freeChain(e.head); err != nil {
		return err
	}
	e.head, s.entries[row] = noSector, e

	if err = s.writeHeader(); err != nil {
		return err
	}
	rowsDeletedTotal.Inc()
	return nil
}

// IsValid returns whether |row| was written and is not deleted.
func (s *Store) IsValid(row int) bool {
	defer s.mu.Unlock()
	s.mu.Lock()

	var _, err = s.liveEntry(row)
	return err == nil
}

// RawRowCount returns the number of row IDs ever allocated, including deleted rows.
func (s *Store) RawRowCount() int {
	defer s.mu.Unlock()
	s.mu.Lock()

	return len(s.entries)
}

// RowType returns the caller-defined type tag of a live row.
func (s *Store) RowType(row int) (uint8, error) {
	defer s.mu.Unlock()
	s.mu.Lock()

	var e, err = s.liveEntry(row)
	return e.rowType, err
}

// SetRowType updates the caller-defined type tag of a live row.
func (s *Store) SetRowType(row int, rowType uint8) error {
	defer s.mu.Unlock()
	s.mu.Lock()

	if err := s.checkWritable(); err != nil {
		return err
	}
	var e, err = s.liveEntry(row)
	if err != nil {
		return err
	}
	e.rowType = rowType

	if err = s.writeEntry(row, e); err != nil {
		return err
	}
	s.entries[row] = e
	return nil
}

// NextUniqueKey increments and persists the Store's unique key counter,
// returning its value prior to increment. A read-only Store increments its
// counter in memory only.
func (s *Store) NextUniqueKey() (uint64, error) {
	defer s.mu.Unlock()
	s.mu.Lock()

	if s.closed {
		return 0, ErrClosed
	}
	var key = s.hdr.nextKey
	s.hdr.nextKey++

	if s.readOnly {
		return key, nil
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], s.hdr.nextKey)
	if _, err := s.index.WriteAt(b[:], 32); err != nil {
		return 0, errors.WithMessage(err, "writing unique key")
	}
	return key, nil
}

// Stats of the Store.
func (s *Store) Stats() Stats {
	defer s.mu.Unlock()
	s.mu.Lock()

	var out = Stats{
		Rows:        len(s.entries),
		Sectors:     s.hdr.sectorCount,
		FreeSectors: s.hdr.freeCount,
		SectorSize:  s.hdr.sectorSize,
	}
	for _, e := range s.entries {
		if e.state == entryLive {
			out.LiveRows++
			out.LiveBytes += int64(e.length)
		}
	}
	return out
}

// Close the Store, marking it clean.
func (s *Store) Close() error {
	defer s.mu.Unlock()
	s.mu.Lock()

	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if !s.readOnly {
		s.hdr.flags &^= flagDirty

		if err = s.sectors.Sync(); err != nil {
			err = errors.WithMessage(err, "syncing sector file")
		} else if err = s.writeHeader(); err != nil {
			// Pass.
		} else if err = s.index.Sync(); err != nil {
			err = errors.WithMessage(err, "syncing index file")
		}
	}
	if cerr := s.sectors.Close(); err == nil && cerr != nil {
		err = errors.WithMessage(cerr, "closing sector file")
	}
	if cerr := s.index.Close(); err == nil && cerr != nil {
		err = errors.WithMessage(cerr, "closing index file")
	}
	return err
}

// repair verifies the sector chain of every live row and of the Definition,
// and rebuilds the free list from unreferenced sectors. s.mu must be held or
// the Store must not yet be shared.
func (s *Store) repair() error {
	var used, err = s.usedSectors()
	if err != nil {
		return err
	}
	var freeHead, freeCount = noSector, int64(0)

	for i := s.hdr.sectorCount - 1; i >= 0; i-- {
		if used.Contains(uint64(i)) {
			continue
		}
		if !s.readOnly {
			if err = s.writeSectorHeader(i, sectorFree, freeHead); err != nil {
				return err
			}
		}
		freeHead, freeCount = i, freeCount+1
	}

	log.WithFields(log.Fields{
		"path":        s.path,
		"rows":        len(s.entries),
		"sectors":     s.hdr.sectorCount,
		"freeBefore":  s.hdr.freeCount,
		"freeAfter":   freeCount,
		"readOnly":    s.readOnly,
		"usedSectors": used.GetCardinality(),
	}).Warn("row store was not cleanly closed; repaired allocation state")

	s.hdr.freeHead, s.hdr.freeCount = freeHead, freeCount
	repairsTotal.Inc()
	return nil
}

func (s *Store) checkWritable() error {
	if s.closed {
		return ErrClosed
	} else if s.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (s *Store) liveEntry(row int) (entry, error) {
	if s.closed {
		return entry{}, ErrClosed
	} else if row < 0 || row >= len(s.entries) {
		return entry{}, errors.WithMessagef(ErrOutOfRange, "row %d (of %d)", row, len(s.entries))
	} else if e := s.entries[row]; e.state != entryLive {
		return entry{}, errors.WithMessagef(ErrDeletedRow, "row %d", row)
	} else {
		return e, nil
	}
}

func (s *Store) writeHeader() error {
	if _, err := s.index.WriteAt(s.hdr.marshal(), 0); err != nil {
		return errors.WithMessage(err, "writing header")
	}
	return nil
}

func (s *Store) writeEntry(row int, e entry) error {
	if _, err := s.index.WriteAt(e.marshal(), entryOffset(row)); err != nil {
		return errors.WithMessagef(err, "writing entry of row %d", row)
	}
	return nil
}

func clampSectorSize(n int) int {
	if n < MinSectorSize {
		return MinSectorSize
	} else if n > MaxSectorSize {
		return MaxSectorSize
	}
	return n
}
