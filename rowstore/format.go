package rowstore

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	// MinSectorSize and MaxSectorSize bound the sector size of a Store.
	MinSectorSize = 91
	MaxSectorSize = 475

	indexSuffix  = ".rix"
	sectorSuffix = ".sec"

	headerSize       = 128
	entrySize        = 16
	sectorHeaderSize = 9
	formatVersion    = 1

	flagDirty = 1 << 0

	noSector = int64(-1)
)

var magic = [8]byte{'T', 'D', 'B', 'R', 'O', 'W', 'S', 1}

// Sector statuses.
const (
	sectorFree = 0
	sectorUsed = 1
)

// Entry states.
const (
	entryLive    = 1
	entryDeleted = 2
)

// header is the reserved metadata block at the head of the index file.
type header struct {
	id          uuid.UUID
	sectorSize  int
	nextKey     uint64 // Little-endian on disk.
	defHead     int64
	defLen      uint32
	flags       uint32
	rowCount    uint64
	sectorCount int64
	freeHead    int64
	freeCount   int64
}

func (h *header) marshal() []byte {
	var b = make([]byte, headerSize)
	copy(b[0:8], magic[:])
	binary.BigEndian.PutUint32(b[8:], formatVersion)
	binary.BigEndian.PutUint32(b[12:], uint32(h.sectorSize))
	copy(b[16:32], h.id[:])
	binary.LittleEndian.PutUint64(b[32:], h.nextKey)
	binary.BigEndian.PutUint64(b[40:], uint64(h.defHead))
	binary.BigEndian.PutUint32(b[48:], h.defLen)
	binary.BigEndian.PutUint32(b[52:], h.flags)
	binary.BigEndian.PutUint64(b[56:], h.rowCount)
	binary.BigEndian.PutUint64(b[64:], uint64(h.sectorCount))
	binary.BigEndian.PutUint64(b[72:], uint64(h.freeHead))
	binary.BigEndian.PutUint64(b[80:], uint64(h.freeCount))
	return b
}

func (h *header) unmarshal(b []byte) error {
	if len(b) < headerSize {
		return errors.WithMessage(ErrCorruptStore, "short header")
	} else if [8]byte(b[0:8]) != magic {
		return errors.WithMessage(ErrCorruptStore, "bad magic")
	} else if v := binary.BigEndian.Uint32(b[8:]); v != formatVersion {
		return errors.WithMessagef(ErrCorruptStore, "unsupported format version %d", v)
	}
	h.sectorSize = int(binary.BigEndian.Uint32(b[12:]))
	copy(h.id[:], b[16:32])
	h.nextKey = binary.LittleEndian.Uint64(b[32:])
	h.defHead = int64(binary.BigEndian.Uint64(b[40:]))
	h.defLen = binary.BigEndian.Uint32(b[48:])
	h.flags = binary.BigEndian.Uint32(b[52:])
	h.rowCount = binary.BigEndian.Uint64(b[56:])
	h.sectorCount = int64(binary.BigEndian.Uint64(b[64:]))
	h.freeHead = int64(binary.BigEndian.Uint64(b[72:]))
	h.freeCount = int64(binary.BigEndian.Uint64(b[80:]))

	if h.sectorSize < MinSectorSize || h.sectorSize > MaxSectorSize {
		return errors.WithMessagef(ErrCorruptStore, "invalid sector size %d", h.sectorSize)
	}
	return nil
}

// entry is the index file record of a row.
type entry struct {
	state   uint8
	rowType uint8
	length  uint32
	head    int64
}

func (e entry) marshal() []byte {
	var b = make([]byte, entrySize)
	b[0] = e.state
	b[1] = e.rowType
	binary.BigEndian.PutUint32(b[4:], e.length)
	binary.BigEndian.PutUint64(b[8:], uint64(e.head))
	return b
}

func unmarshalEntry(b []byte) entry {
	return entry{
		state:   b[0],
		rowType: b[1],
		length:  binary.BigEndian.Uint32(b[4:]),
		head:    int64(binary.BigEndian.Uint64(b[8:])),
	}
}

func entryOffset(row int) int64 { return headerSize + int64(row)*entrySize }
