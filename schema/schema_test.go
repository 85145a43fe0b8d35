package schema

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.tabledb.dev/core/cell"
)

func TestDefinitionLifecycle(t *testing.T) {
	var d = NewDefinition("app", "users")
	require.NoError(t, d.AddColumn(Column{Name: "id", Kind: cell.NUMERIC, NotNull: true}))
	require.NoError(t, d.AddColumn(Column{Name: "name", Kind: cell.STRING, Default: "'anon'"}))
	require.NoError(t, d.AddColumn(Column{Name: "active", Kind: cell.BOOLEAN}))

	var err = d.AddColumn(Column{Name: "NAME", Kind: cell.STRING})
	require.Equal(t, ErrDuplicateColumn, errors.Cause(err))

	require.NoError(t, d.Freeze())
	require.True(t, d.Frozen())
	require.Equal(t, ErrFrozen, d.AddColumn(Column{Name: "other", Kind: cell.TIME}))
	require.Equal(t, ErrFrozen, d.SetStorageClass("heap"))

	require.Equal(t, 1, d.FindColumn("Name"))
	require.Equal(t, -1, d.FindColumn("missing"))
	require.Equal(t, "app.users(id NUMERIC, name STRING, active BOOLEAN)", d.String())
	require.Equal(t, IndexOrdered, d.Columns[0].IndexScheme())
	require.Equal(t, IndexBlind, d.Columns[2].IndexScheme())
}

func TestDefinitionValidation(t *testing.T) {
	require.EqualError(t, NewDefinition("s", "").Freeze(), "table name is empty")
	require.EqualError(t, NewDefinition("s", "t").Freeze(), "table s.t has no columns")

	var d = NewDefinition("", "t")
	require.EqualError(t, d.AddColumn(Column{Name: "c", Kind: cell.STRING, Index: "hash"}),
		`column "c": unknown index scheme "hash"`)
	require.Error(t, d.AddColumn(Column{Name: "c"}))
	require.Error(t, d.AddColumn(Column{Kind: cell.STRING}))
}

func TestYAMLRoundTrip(t *testing.T) {
	var d = NewDefinition("app", "events")
	require.NoError(t, d.AddColumn(Column{Name: "at", Kind: cell.TIME, Index: IndexBlind}))
	require.NoError(t, d.AddColumn(Column{Name: "payload", Kind: cell.BLOB, SQLType: "VARBINARY", Size: 1024}))
	require.NoError(t, d.AddColumn(Column{Name: "amount", Kind: cell.NUMERIC, Size: 10, Scale: 2}))
	require.NoError(t, d.Freeze())

	var b, err = d.Marshal()
	require.NoError(t, err)
	require.Contains(t, string(b), "kind: TIME")

	out, err := Unmarshal(b)
	require.NoError(t, err)
	require.True(t, out.Frozen())
	require.Equal(t, d.Columns, out.Columns)
	require.Equal(t, d.QualifiedName(), out.QualifiedName())

	_, err = Unmarshal([]byte("name: t\ncolumns:\n- name: x\n  kind: QUATERNION\n"))
	require.Error(t, err)
	_, err = Unmarshal([]byte("name: t\nunknown_field: 1\ncolumns:\n- {name: x, kind: STRING}\n"))
	require.Error(t, err)
}
