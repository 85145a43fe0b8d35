package mainboilerplate

import (
	"time"

	"github.com/dustin/go-humanize"
	"go.tabledb.dev/core/cache"
	"go.tabledb.dev/core/cell"
	"go.tabledb.dev/core/codecs"
	"go.tabledb.dev/core/gc"
	"go.tabledb.dev/core/rowstore"
	"go.tabledb.dev/core/table"
)

// StoreConfig configures the row stores of tables within a data directory.
type StoreConfig struct {
	Dir        string `long:"dir" env:"DIR" default:"." description:"Directory holding table files"`
	SectorSize int    `long:"sector-size" env:"SECTOR_SIZE" default:"128" description:"Sector size of created tables, in bytes"`
	Codec      string `long:"codec" env:"CODEC" default:"FLATE" choice:"NONE" choice:"FLATE" choice:"SNAPPY" choice:"ZSTANDARD" description:"Compression codec of large cell payloads"`
	ReadOnly   bool   `long:"read-only" env:"READ_ONLY" description:"Open tables for reading only"`
}

// CacheConfig configures the shared cache of decoded cells.
type CacheConfig struct {
	Size          string  `long:"size" env:"SIZE" default:"64MiB" description:"Memory budget of the cell cache"`
	MaxCellSize   string  `long:"max-cell-size" env:"MAX_CELL_SIZE" default:"16KiB" description:"Largest cell which is cached"`
	HighWatermark float64 `long:"high-watermark" env:"HIGH_WATERMARK" default:"0.95" description:"Fraction of the budget which begins eviction"`
	LowWatermark  float64 `long:"low-watermark" env:"LOW_WATERMARK" default:"0.70" description:"Fraction of the budget to which eviction reduces usage"`
}

// GCConfig configures the reclamation of deleted rows.
type GCConfig struct {
	Delay      time.Duration `long:"delay" env:"DELAY" default:"2s" description:"Delay between scheduling and running a collection pass"`
	MaxPending int           `long:"max-pending" env:"MAX_PENDING" default:"65536" description:"Tracked rows beyond which a full sweep is run instead"`
}

// MustCells builds the configured cell cache.
func (c CacheConfig) MustCells() *cache.Cells {
	var size, err = humanize.ParseBytes(c.Size)
	Must(err, "invalid cache size", "size", c.Size)
	maxCell, err := humanize.ParseBytes(c.MaxCellSize)
	Must(err, "invalid max cell size", "size", c.MaxCellSize)

	return cache.New(cache.Config{
		MaxBytes:      int64(size),
		MaxCellBytes:  int(maxCell),
		HighWatermark: c.HighWatermark,
		LowWatermark:  c.LowWatermark,
	})
}

// TableOptions composes StoreConfig and GCConfig into table.Options.
func TableOptions(store StoreConfig, gcCfg GCConfig) table.Options {
	var codec, err = codecs.ParseCodec(store.Codec)
	Must(err, "invalid codec")

	var opts = table.DefaultOptions()
	opts.Store = rowstore.Options{
		SectorSize: store.SectorSize,
		ReadOnly:   store.ReadOnly,
	}
	opts.Encoder = cell.Encoder{Codec: codec, Threshold: cell.CompressionThreshold}
	opts.GC = gc.Config{
		Delay:      gcCfg.Delay,
		MaxPending: gcCfg.MaxPending,
	}
	return opts
}
