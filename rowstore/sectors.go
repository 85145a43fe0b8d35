package rowstore

import (
	"encoding/binary"
	"io"
	"strconv"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/pkg/errors"
)

func (s *Store) payloadSize() int { return s.hdr.sectorSize - sectorHeaderSize }

func (s *Store) sectorOffset(sector int64) int64 { return sector * int64(s.hdr.sectorSize) }

// allocChain writes |p| to a newly allocated chain of sectors, drawing from
// the free list before extending the sector file. It returns the head sector.
func (s *Store) allocChain(p []byte) (int64, error) {
	var n = (len(p) + s.payloadSize() - 1) / s.payloadSize()
	if n == 0 {
		n = 1
	}
	var chain = make([]int64, n)

	for i := range chain {
		if s.hdr.freeHead != noSector {
			var status, next, err = s.readSectorHeader(s.hdr.freeHead)
			if err != nil {
				return noSector, err
			} else if status != sectorFree {
				return noSector, errors.WithMessagef(ErrCorruptStore, "free list sector %d is in use", s.hdr.freeHead)
			}
			chain[i], s.hdr.freeHead = s.hdr.freeHead, next
			s.hdr.freeCount--
		} else {
			chain[i] = s.hdr.sectorCount
			s.hdr.sectorCount++
		}
	}

	var buf = make([]byte, s.hdr.sectorSize)
	for i, sector := range chain {
		var next = noSector
		if i+1 != len(chain) {
			next = chain[i+1]
		}
		for j := range buf {
			buf[j] = 0
		}
		buf[0] = sectorUsed
		binary.BigEndian.PutUint64(buf[1:], uint64(next))

		var begin = i * s.payloadSize()
		var end = begin + s.payloadSize()
		if end > len(p) {
			end = len(p)
		}
		if begin < end {
			copy(buf[sectorHeaderSize:], p[begin:end])
		}
		if _, err := s.sectors.WriteAt(buf, s.sectorOffset(sector)); err != nil {
			return noSector, errors.WithMessagef(err, "writing sector %d", sector)
		}
	}
	return chain[0], nil
}

// freeChain returns each sector of the chain at |head| to the free list.
func (s *Store) freeChain(head int64) error {
	for sector, steps := head, int64(0); sector != noSector; steps++ {
		if steps > s.hdr.sectorCount {
			return errors.WithMessagef(ErrCorruptStore, "cycle in chain at sector %d", head)
		}
		var status, next, err = s.readSectorHeader(sector)
		if err != nil {
			return err
		} else if status != sectorUsed {
			return errors.WithMessagef(ErrCorruptStore, "chain sector %d is not in use", sector)
		} else if err = s.writeSectorHeader(sector, sectorFree, s.hdr.freeHead); err != nil {
			return err
		}
		s.hdr.freeHead = sector
		s.hdr.freeCount++
		sector = next
	}
	return nil
}

// readChain reads |length| bytes from the chain at |head|.
func (s *Store) readChain(head int64, length int) ([]byte, error) {
	if length < 0 || int64(length) > s.hdr.sectorCount*int64(s.payloadSize()) {
		return nil, errors.WithMessagef(ErrCorruptStore, "chain at sector %d has length %d, which exceeds the store", head, length)
	}
	var out = make([]byte, 0, length)
	var buf = make([]byte, s.hdr.sectorSize)

	for sector := head; ; {
		if sector < 0 || sector >= s.hdr.sectorCount {
			return nil, errors.WithMessagef(ErrCorruptStore, "chain references sector %d (of %d)", sector, s.hdr.sectorCount)
		} else if err := readFullAt(s.sectors, buf, s.sectorOffset(sector)); err != nil {
			return nil, errors.WithMessagef(err, "reading sector %d", sector)
		} else if buf[0] != sectorUsed {
			return nil, errors.WithMessagef(ErrCorruptStore, "chain sector %d is not in use", sector)
		}
		var n = length - len(out)
		if n > s.payloadSize() {
			n = s.payloadSize()
		}
		out = append(out, buf[sectorHeaderSize:sectorHeaderSize+n]...)

		var next = int64(binary.BigEndian.Uint64(buf[1:]))
		if len(out) == length {
			break
		} else if next == noSector {
			return nil, errors.WithMessagef(ErrCorruptStore, "chain at sector %d is short (%d of %d bytes)", head, len(out), length)
		}
		sector = next
	}
	return out, nil
}

// usedSectors walks the chains of all live rows and of the Definition,
// returning the set of referenced sectors. A chain which is broken, or which
// references a sector already referenced by another chain, is corrupt.
func (s *Store) usedSectors() (*roaring64.Bitmap, error) {
	var used = roaring64.New()

	var walk = func(head int64, length int, desc string) error {
		var capacity int
		for sector := head; sector != noSector; {
			if sector < 0 || sector >= s.hdr.sectorCount {
				return errors.WithMessagef(ErrCorruptStore, "%s references sector %d (of %d)", desc, sector, s.hdr.sectorCount)
			} else if !used.CheckedAdd(uint64(sector)) {
				return errors.WithMessagef(ErrCorruptStore, "%s references sector %d twice", desc, sector)
			}
			var status, next, err = s.readSectorHeader(sector)
			if err != nil {
				return errors.WithMessagef(ErrCorruptStore, "%s: %s", desc, err)
			} else if status != sectorUsed {
				return errors.WithMessagef(ErrCorruptStore, "%s sector %d is not in use", desc, sector)
			}
			capacity += s.payloadSize()
			sector = next
		}
		if capacity < length {
			return errors.WithMessagef(ErrCorruptStore, "%s chain is short (%d of %d bytes)", desc, capacity, length)
		}
		return nil
	}

	if s.hdr.defHead != noSector {
		if err := walk(s.hdr.defHead, int(s.hdr.defLen), "definition"); err != nil {
			return nil, err
		}
	}
	for row, e := range s.entries {
		if e.state != entryLive {
			continue
		}
		if err := walk(e.head, int(e.length), "row "+strconv.Itoa(row)); err != nil {
			return nil, err
		}
	}
	return used, nil
}

func (s *Store) readSectorHeader(sector int64) (status uint8, next int64, err error) {
	var b [sectorHeaderSize]byte
	if err = readFullAt(s.sectors, b[:], s.sectorOffset(sector)); err != nil {
		return 0, 0, errors.WithMessagef(err, "reading sector %d header", sector)
	}
	return b[0], int64(binary.BigEndian.Uint64(b[1:])), nil
}

func (s *Store) writeSectorHeader(sector int64, status uint8, next int64) error {
	var b [sectorHeaderSize]byte
	b[0] = status
	binary.BigEndian.PutUint64(b[1:], uint64(next))

	if _, err := s.sectors.WriteAt(b[:], s.sectorOffset(sector)); err != nil {
		return errors.WithMessagef(err, "writing sector %d header", sector)
	}
	return nil
}

// readFullAt reads exactly len(b) bytes at |off|.
func readFullAt(r io.ReaderAt, b []byte, off int64) error {
	var n, err = r.ReadAt(b, off)
	if n == len(b) {
		return nil
	} else if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}
