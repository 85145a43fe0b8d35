package rowstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.tabledb.dev/core/cell"
	"go.tabledb.dev/core/schema"
)

func testDefinition(t *testing.T) *schema.Definition {
	var d = schema.NewDefinition("test", "rows")
	require.NoError(t, d.AddColumn(schema.Column{Name: "id", Kind: cell.NUMERIC}))
	require.NoError(t, d.AddColumn(schema.Column{Name: "name", Kind: cell.STRING}))
	require.NoError(t, d.Freeze())
	return d
}

func TestCreateWriteReadDelete(t *testing.T) {
	var fs = afero.NewMemMapFs()
	var s, err = Create(fs, "/data/t1", testDefinition(t), Options{SectorSize: 100})
	require.NoError(t, err)

	var small = []byte("hello")
	var large = bytes.Repeat([]byte("0123456789"), 50) // Spans several sectors.
	var empty = []byte{}

	for i, p := range [][]byte{small, large, empty} {
		row, err := s.Write(p)
		require.NoError(t, err)
		require.Equal(t, i, row)
	}
	for i, p := range [][]byte{small, large, empty} {
		out, err := s.Read(i)
		require.NoError(t, err)
		require.Equal(t, p, out)
		require.True(t, s.IsValid(i))
	}
	require.Equal(t, 3, s.RawRowCount())

	// Row IDs are stable across deletions, and deleted rows cannot be read.
	require.NoError(t, s.Delete(1))
	_, err = s.Read(1)
	require.Equal(t, ErrDeletedRow, errors.Cause(err))
	require.False(t, s.IsValid(1))
	require.Equal(t, ErrDeletedRow, errors.Cause(s.Delete(1)))

	out, err := s.Read(0)
	require.NoError(t, err)
	require.Equal(t, small, out)

	_, err = s.Read(3)
	require.Equal(t, ErrOutOfRange, errors.Cause(err))
	_, err = s.Read(-1)
	require.Equal(t, ErrOutOfRange, errors.Cause(err))

	// Freed sectors are re-used before the sector file is extended.
	var before = s.Stats()
	require.Equal(t, int64(6), before.FreeSectors)

	row, err := s.Write(large[:300])
	require.NoError(t, err)
	require.Equal(t, 3, row)

	var after = s.Stats()
	require.Equal(t, before.Sectors, after.Sectors)
	require.Equal(t, int64(2), after.FreeSectors)
	require.Equal(t, 3, after.LiveRows)
	require.Equal(t, int64(5+300), after.LiveBytes)

	require.NoError(t, s.Close())
	require.Equal(t, ErrClosed, errors.Cause(s.Delete(0)))
}

func TestCreateFailsIfExists(t *testing.T) {
	var fs = afero.NewMemMapFs()
	var s, err = Create(fs, "/t", testDefinition(t), Options{})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Create(fs, "/t", testDefinition(t), Options{})
	require.Equal(t, ErrAlreadyExists, errors.Cause(err))

	var d = schema.NewDefinition("", "unfrozen")
	_, err = Create(fs, "/other", d, Options{})
	require.EqualError(t, err, "definition must be frozen")
}

func TestCleanReopenPreservesState(t *testing.T) {
	var fs = afero.NewMemMapFs()
	var s, err = Create(fs, "/t", testDefinition(t), Options{SectorSize: 1 << 20})
	require.NoError(t, err)
	require.Equal(t, MaxSectorSize, s.Stats().SectorSize)

	for i := 0; i != 20; i++ {
		_, err = s.Write([]byte(fmt.Sprintf("row %d", i)))
		require.NoError(t, err)
	}
	require.NoError(t, s.SetRowType(4, 7))
	require.NoError(t, s.Delete(5))

	for i := uint64(0); i != 3; i++ {
		key, err := s.NextUniqueKey()
		require.NoError(t, err)
		require.Equal(t, i, key)
	}
	var id = s.ID()
	require.NoError(t, s.Close())

	s, dirty, err := Open(fs, "/t", Options{})
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, id, s.ID())

	out, err := s.Read(19)
	require.NoError(t, err)
	require.Equal(t, "row 19", string(out))
	require.False(t, s.IsValid(5))

	rowType, err := s.RowType(4)
	require.NoError(t, err)
	require.Equal(t, uint8(7), rowType)

	key, err := s.NextUniqueKey()
	require.NoError(t, err)
	require.Equal(t, uint64(3), key)

	def, err := s.Definition()
	require.NoError(t, err)
	require.Equal(t, "test.rows(id NUMERIC, name STRING)", def.String())
	require.NoError(t, s.Close())
}

func TestReadOnlyDoesNotPersistUniqueKey(t *testing.T) {
	var fs = afero.NewMemMapFs()
	var s, err = Create(fs, "/t", testDefinition(t), Options{})
	require.NoError(t, err)
	_, err = s.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	ro, dirty, err := Open(fs, "/t", Options{ReadOnly: true})
	require.NoError(t, err)
	require.False(t, dirty)

	for i := uint64(0); i != 2; i++ {
		key, err := ro.NextUniqueKey()
		require.NoError(t, err)
		require.Equal(t, i, key)
	}
	_, err = ro.Write([]byte("y"))
	require.Equal(t, ErrReadOnly, errors.Cause(err))
	require.Equal(t, ErrReadOnly, errors.Cause(ro.Delete(0)))
	require.Equal(t, ErrReadOnly, errors.Cause(ro.SetRowType(0, 1)))
	require.NoError(t, ro.Close())

	// The counter was not advanced on disk.
	s, _, err = Open(fs, "/t", Options{})
	require.NoError(t, err)
	key, err := s.NextUniqueKey()
	require.NoError(t, err)
	require.Equal(t, uint64(0), key)
	require.NoError(t, s.Close())
}

func TestDirtyOpenRepairsFreeList(t *testing.T) {
	var fs = afero.NewMemMapFs()
	var s, err = Create(fs, "/t", testDefinition(t), Options{})
	require.NoError(t, err)

	var payload = bytes.Repeat([]byte("abcdefgh"), 30)
	for i := 0; i != 4; i++ {
		_, err = s.Write(payload)
		require.NoError(t, err)
	}
	require.NoError(t, s.Delete(2))

	// Simulate a crash: the free list in the header was lost, while the
	// row entries and sectors were written.
	s.hdr.freeHead, s.hdr.freeCount = noSector, 0
	require.NoError(t, s.writeHeader())
	var expect = s.Stats()
	// Store is abandoned without Close.

	s2, dirty, err := Open(fs, "/t", Options{})
	require.NoError(t, err)
	require.True(t, dirty)

	var stats = s2.Stats()
	require.Equal(t, expect.Sectors, stats.Sectors)
	require.Equal(t, int64(3), stats.FreeSectors) // Row 2's sectors were recovered.

	for _, row := range []int{0, 1, 3} {
		out, err := s2.Read(row)
		require.NoError(t, err)
		require.Equal(t, payload, out)
	}
	// Recovered sectors are re-used.
	_, err = s2.Write(payload)
	require.NoError(t, err)
	require.Equal(t, expect.Sectors, s2.Stats().Sectors)
	require.NoError(t, s2.Close())

	_, dirty, err = Open(fs, "/t", Options{ReadOnly: true})
	require.NoError(t, err)
	require.False(t, dirty)
}

func TestDirtyOpenDetectsCorruption(t *testing.T) {
	var fs = afero.NewMemMapFs()
	var s, err = Create(fs, "/t", testDefinition(t), Options{})
	require.NoError(t, err)
	row, err := s.Write([]byte("content"))
	require.NoError(t, err)

	// Mark the row's sector as free, behind the Store's back.
	require.NoError(t, s.writeSectorHeader(s.entries[row].head, sectorFree, noSector))

	_, _, err = Open(fs, "/t", Options{})
	require.Equal(t, ErrCorruptStore, errors.Cause(err))

	// A store with a bad header is also corrupt.
	f, err := fs.OpenFile("/t"+indexSuffix, os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("garbage!"), 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, _, err = Open(fs, "/t", Options{})
	require.Equal(t, ErrCorruptStore, errors.Cause(err))
}

func TestCorruptLengthsAreDetected(t *testing.T) {
	var fs = afero.NewMemMapFs()
	var s, err = Create(fs, "/t", testDefinition(t), Options{})
	require.NoError(t, err)
	row, err := s.Write([]byte("content"))
	require.NoError(t, err)

	// A row entry claiming an implausible length fails on read.
	var e = s.entries[row]
	e.length = 1 << 31
	require.NoError(t, s.writeEntry(row, e))
	require.NoError(t, s.Close())

	s, dirty, err := Open(fs, "/t", Options{})
	require.NoError(t, err)
	require.False(t, dirty)
	_, err = s.Read(row)
	require.Equal(t, ErrCorruptStore, errors.Cause(err))
	require.NoError(t, s.Close())

	var corruptHeader = func(offset int64, value uint64) {
		f, err := fs.OpenFile("/t"+indexSuffix, os.O_RDWR, 0)
		require.NoError(t, err)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], value)
		_, err = f.WriteAt(b[:], offset)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}
	var hdr = make([]byte, headerSize)
	f, err := fs.Open("/t" + indexSuffix)
	require.NoError(t, err)
	_, err = f.ReadAt(hdr, 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	for _, tc := range []struct {
		offset int64
		value  uint64
	}{
		{56, 1 << 62},         // Row count.
		{56, 2},               // Row count past the end of the index file.
		{64, 1 << 40},         // Sector count.
		{64, uint64(1) << 63}, // Negative sector count.
		{80, 1 << 20},         // Free sector count.
	} {
		corruptHeader(tc.offset, tc.value)

		_, _, err = Open(fs, "/t", Options{ReadOnly: true})
		require.Equal(t, ErrCorruptStore, errors.Cause(err), "offset %d", tc.offset)

		corruptHeader(tc.offset, binary.BigEndian.Uint64(hdr[tc.offset:]))
	}
	// Restored, the store opens again.
	s, _, err = Open(fs, "/t", Options{ReadOnly: true})
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestCreateCleansUpOnFailure(t *testing.T) {
	var fs = afero.NewMemMapFs()
	var ro = afero.NewReadOnlyFs(fs)

	// The read-only filesystem refuses to create files.
	var _, err = Create(ro, "/t", testDefinition(t), Options{})
	require.Error(t, err)

	// A failure after the files were created removes them, so that a
	// later Create succeeds.
	var failing = &failingWriteFs{Fs: fs}
	_, err = Create(failing, "/t", testDefinition(t), Options{})
	require.EqualError(t, err, "writing definition: writing sector 0: injected failure")

	ok, err := afero.Exists(fs, "/t"+indexSuffix)
	require.NoError(t, err)
	require.False(t, ok)

	s, err := Create(fs, "/t", testDefinition(t), Options{})
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

// failingWriteFs wraps files of its Fs to fail on WriteAt.
type failingWriteFs struct{ afero.Fs }

func (fs *failingWriteFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	var f, err = fs.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return failingWriteFile{f}, nil
}

type failingWriteFile struct{ afero.File }

func (failingWriteFile) WriteAt([]byte, int64) (int, error) { return 0, errors.New("injected failure") }

func TestRemove(t *testing.T) {
	var fs = afero.NewMemMapFs()
	var s, err = Create(fs, "/t", testDefinition(t), Options{})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	ok, err := afero.Exists(fs, "/t"+indexSuffix)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, Remove(fs, "/t"))
	ok, err = afero.Exists(fs, "/t"+indexSuffix)
	require.NoError(t, err)
	require.False(t, ok)
}
