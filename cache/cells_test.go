package cache

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.tabledb.dev/core/cell"
)

func TestPutGetRemoveWipe(t *testing.T) {
	var c = New(DefaultConfig(1 << 20))
	var k1, k2 = Key{Table: 1, Row: 2, Column: 3}, Key{Table: 2, Row: 2, Column: 3}

	c.Put(k1, cell.String("one"))
	c.Put(k2, cell.Int(2))

	var v, ok = c.Get(k1)
	require.True(t, ok)
	require.True(t, cell.String("one").Equal(v))

	// Replacing an entry doesn't double-count its bytes.
	var before = c.Bytes()
	c.Put(k1, cell.String("uno"))
	require.Equal(t, before, c.Bytes())

	v, ok = c.Remove(k1)
	require.True(t, ok)
	require.True(t, cell.String("uno").Equal(v))
	_, ok = c.Remove(k1)
	require.False(t, ok)
	_, ok = c.Get(k1)
	require.False(t, ok)
	require.Equal(t, int64(cell.CurrentSizeOf(cell.Int(2))), c.Bytes())

	c.Wipe()
	require.Equal(t, 0, c.Len())
	require.Equal(t, int64(0), c.Bytes())
}

func TestOversizeCellsAreNotCached(t *testing.T) {
	var cfg = DefaultConfig(1 << 20)
	cfg.MaxCellBytes = 100
	var c = New(cfg)

	c.Put(Key{Row: 1}, cell.String(strings.Repeat("x", 200)))
	var _, ok = c.Get(Key{Row: 1})
	require.False(t, ok)
	require.Equal(t, int64(0), c.Bytes())
}

func TestEvictionHysteresis(t *testing.T) {
	var size = int64(cell.CurrentSizeOf(cell.String("0123456789")))
	var c = New(Config{
		MaxBytes:      100 * size,
		MaxCellBytes:  1024,
		HighWatermark: 0.9,
		LowWatermark:  0.5,
	})

	for i := 0; i != 90; i++ {
		c.Put(Key{Row: i}, cell.String("0123456789"))
	}
	// At the high watermark, but not beyond it.
	require.Equal(t, 90, c.Len())

	// Crossing it evicts oldest entries down to the low watermark.
	c.Put(Key{Row: 90}, cell.String("0123456789"))
	require.Equal(t, 50, c.Len())
	require.Equal(t, 50*size, c.Bytes())

	var _, ok = c.Get(Key{Row: 40})
	require.False(t, ok)
	_, ok = c.Get(Key{Row: 41})
	require.True(t, ok)

	// Recently used entries survive eviction.
	c.Resize(40 * size)
	_, ok = c.Get(Key{Row: 41})
	require.True(t, ok)
	require.LessOrEqual(t, c.Bytes(), 20*size)
}

func TestConcurrentAccounting(t *testing.T) {
	var c = New(DefaultConfig(1 << 16))
	var wg sync.WaitGroup

	for g := 0; g != 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i != 2000; i++ {
				var k = Key{Table: g, Row: i % 300, Column: i % 3}
				c.Put(k, cell.Int(int64(i)))
				c.Get(k)
				if i%7 == 0 {
					c.Remove(k)
				}
			}
		}(g)
	}
	wg.Wait()

	// Bytes track exactly the sum of resident entries.
	var sum int64
	for _, k := range c.lru.Keys() {
		var v, _ = c.lru.Peek(k)
		sum += int64(cell.CurrentSizeOf(v.(cell.Cell)))
	}
	require.Equal(t, sum, c.Bytes())
	require.LessOrEqual(t, c.Bytes(), int64(1<<16))
}
