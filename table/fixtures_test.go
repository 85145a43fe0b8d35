package table

import (
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.tabledb.dev/core/cache"
	"go.tabledb.dev/core/cell"
	"go.tabledb.dev/core/schema"
	"go.tabledb.dev/core/task"
)

// fixture is the shared environment of tables under test. Its Dispatcher
// is not served: garbage collection passes are performed explicitly.
type fixture struct {
	fs         afero.Fs
	cells      *cache.Cells
	dispatcher *task.Dispatcher
}

func newFixture() *fixture {
	return &fixture{
		fs:         afero.NewMemMapFs(),
		cells:      cache.New(cache.DefaultConfig(1 << 20)),
		dispatcher: task.NewDispatcher(),
	}
}

func peopleDefinition(t require.TestingT) *schema.Definition {
	var def = schema.NewDefinition("app", "people")
	require.NoError(t, def.AddColumn(schema.Column{Name: "id", Kind: cell.NUMERIC, NotNull: true}))
	require.NoError(t, def.AddColumn(schema.Column{Name: "name", Kind: cell.STRING}))
	require.NoError(t, def.Freeze())
	return def
}

func petsDefinition(t require.TestingT) *schema.Definition {
	var def = schema.NewDefinition("app", "pets")
	require.NoError(t, def.AddColumn(schema.Column{Name: "owner", Kind: cell.NUMERIC}))
	require.NoError(t, def.AddColumn(schema.Column{Name: "pet", Kind: cell.STRING, Index: schema.IndexBlind}))
	require.NoError(t, def.Freeze())
	return def
}

func row(id int64, name string) []cell.Cell { return []cell.Cell{cell.Int(id), cell.String(name)} }

// addRows adds |rows| to |dt|, returning their row IDs.
func addRows(t require.TestingT, dt *DataTable, rows ...[]cell.Cell) []int {
	var out []int
	for _, cells := range rows {
		var r = NewRowData(dt.Master().Definition())
		for i, c := range cells {
			require.NoError(t, r.Set(i, c))
		}
		var id, err = dt.AddRow(r)
		require.NoError(t, err)
		out = append(out, id)
	}
	return out
}

// populate creates a Master at |path| having committed |rows|.
func (f *fixture) populate(t require.TestingT, path string, def *schema.Definition, rows ...[]cell.Cell) *Master {
	var m, err = Create(f.fs, path, def, f.cells, f.dispatcher, DefaultOptions())
	require.NoError(t, err)

	dt, err := m.Begin()
	require.NoError(t, err)
	addRows(t, dt, rows...)
	require.NoError(t, dt.Commit())
	return m
}

func begin(t require.TestingT, m *Master) *DataTable {
	var dt, err = m.Begin()
	require.NoError(t, err)
	return dt
}
