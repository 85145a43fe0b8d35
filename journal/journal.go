package journal

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
	"github.com/pkg/errors"
)

// ErrRowRemoveClash is returned by TestCommitClash if two Journals remove the same row.
var ErrRowRemoveClash = errors.New("concurrent transactions removed the same row")

// Op is an operation recorded by a Journal.
type Op uint8

const (
	// ADD records the addition of a row.
	ADD Op = 1
	// REMOVE records the removal of a row.
	REMOVE Op = 2
)

func (o Op) String() string {
	switch o {
	case ADD:
		return "ADD"
	case REMOVE:
		return "REMOVE"
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

// Entry is a single operation of a Journal.
type Entry struct {
	Op  Op
	Row int
}

// Journal is an append-only log of row operations of one transaction against
// one table. It's not safe for concurrent mutation, which is the province of
// the transaction owning it.
type Journal struct {
	// CommitID is assigned when the Journal is committed, and orders
	// committed Journals of a table.
	CommitID uint64

	entries []Entry
	added   *roaring.Bitmap
	removed *roaring.Bitmap
}

// New returns an empty Journal.
func New() *Journal {
	return &Journal{added: roaring.New(), removed: roaring.New()}
}

// Add records the addition of |row|.
func (j *Journal) Add(row int) {
	j.entries = append(j.entries, Entry{Op: ADD, Row: row})
	j.added.Add(uint32(row))
}

// Remove records the removal of |row|.
func (j *Journal) Remove(row int) {
	j.entries = append(j.entries, Entry{Op: REMOVE, Row: row})
	j.removed.Add(uint32(row))
}

// Entries returns the recorded entries, in order. The returned slice must not be modified.
func (j *Journal) Entries() []Entry { return j.entries }

// Len returns the number of recorded entries.
func (j *Journal) Len() int { return len(j.entries) }

// HasChanges returns whether any entry has been recorded.
func (j *Journal) HasChanges() bool { return len(j.entries) != 0 }

// NormalizedAddedRows returns rows added by the Journal and not subsequently
// removed by it, in ascending order.
func (j *Journal) NormalizedAddedRows() []int {
	return toInts(roaring.AndNot(j.added, j.removed))
}

// NormalizedRemovedRows returns rows removed by the Journal which it did not
// also add: removals of rows which pre-exist the transaction. Rows are in
// ascending order.
func (j *Journal) NormalizedRemovedRows() []int {
	return toInts(roaring.AndNot(j.removed, j.added))
}

// LocallyDiscardedRows returns rows both added and removed by the Journal.
// They were never visible outside of the transaction.
func (j *Journal) LocallyDiscardedRows() []int {
	return toInts(roaring.And(j.added, j.removed))
}

// TestCommitClash returns ErrRowRemoveClash if this Journal and |other| each
// remove the same row. Additions are never considered: row IDs are not
// re-used, so two Journals cannot add the same row.
func (j *Journal) TestCommitClash(other *Journal) error {
	var both = roaring.And(j.removed, other.removed)
	if both.IsEmpty() {
		return nil
	}
	commitClashesTotal.Inc()
	return errors.WithMessagef(ErrRowRemoveClash, "row %d (and %d others)",
		both.Minimum(), both.GetCardinality()-1)
}

func toInts(bm *roaring.Bitmap) []int {
	var out = make([]int, 0, bm.GetCardinality())
	var it = bm.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}
