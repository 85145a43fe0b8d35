package main

import (
	"context"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"go.tabledb.dev/core/cache"
	mbp "go.tabledb.dev/core/mainboilerplate"
	"go.tabledb.dev/core/metrics"
	"go.tabledb.dev/core/table"
	"go.tabledb.dev/core/task"
)

const iniFilename = "tabledb.ini"

// Config is the top-level configuration object of tabledb.
var Config = new(struct {
	Store mbp.StoreConfig `group:"Store" namespace:"store" env-namespace:"STORE"`
	Cache mbp.CacheConfig `group:"Cache" namespace:"cache" env-namespace:"CACHE"`
	GC    mbp.GCConfig    `group:"GC" namespace:"gc" env-namespace:"GC"`
	Log   mbp.LogConfig   `group:"Logging" namespace:"log" env-namespace:"LOG"`
})

// commands are registered from init() of the files implementing them.
var commands = mbp.NewCommandRegistry()

// session is the runtime of a single command invocation: a cell cache
// shared by its tables, and a Dispatcher serving their collection passes.
type session struct {
	fs         afero.Fs
	cells      *cache.Cells
	dispatcher *task.Dispatcher
	tasks      *task.Group
	masters    []*table.Master
}

func startSession() *session {
	mbp.InitLog(Config.Log)
	prometheus.MustRegister(metrics.TableCollectors()...)

	var s = &session{
		fs:         afero.NewOsFs(),
		cells:      Config.Cache.MustCells(),
		dispatcher: task.NewDispatcher(),
		tasks:      task.NewGroup(context.Background()),
	}
	s.tasks.Queue("dispatcher.Serve", func() error {
		s.dispatcher.Serve()
		return nil
	})
	s.tasks.GoRun()

	log.WithFields(log.Fields{
		"dir":      Config.Store.Dir,
		"readOnly": Config.Store.ReadOnly,
	}).Debug("started session")
	return s
}

// path of the table |name| within the data directory.
func (s *session) path(name string) string { return filepath.Join(Config.Store.Dir, name) }

// mustOpen opens the table |name|, which is closed by finish.
func (s *session) mustOpen(name string) *table.Master {
	var m, err = table.Open(s.fs, s.path(name), s.cells, s.dispatcher,
		mbp.TableOptions(Config.Store, Config.GC))
	mbp.Must(err, "failed to open table", "name", name)

	s.masters = append(s.masters, m)
	return m
}

// finish closes opened tables and stops the Dispatcher. Collection passes
// which haven't yet run are dropped, and run again at next open.
func (s *session) finish() {
	for _, m := range s.masters {
		mbp.Must(m.Close(), "failed to close table", "name", m.Name())
	}
	s.dispatcher.Finish()
	mbp.Must(s.tasks.Wait(), "session task failed")
}

func main() {
	var parser = flags.NewParser(Config, flags.Default)

	parser.LongDescription = `tabledb is a tool for creating and inspecting tables of a data directory.

	See --help pages of each sub-command for documentation and usage examples.
	Optionally configure tabledb with a '` + iniFilename + `' file in the current working directory,
	or with '~/.config/tabledb/` + iniFilename + `'. Use the 'print-config' sub-command to inspect
	the tool's current configuration.
	`
	mbp.AddPrintConfigCmd(parser, iniFilename)
	mbp.Must(commands.AddCommands("", parser.Command, true), "could not add subcommand")
	mbp.MustParseConfig(parser, iniFilename)
}
