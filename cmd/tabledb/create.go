package main

import (
	"fmt"

	"github.com/spf13/afero"
	mbp "go.tabledb.dev/core/mainboilerplate"
	"go.tabledb.dev/core/schema"
	"go.tabledb.dev/core/table"
)

type cmdCreate struct {
	Schema string `long:"schema" short:"s" required:"true" description:"Path of the YAML table definition"`
}

func init() {
	commands.AddCommand("", "create", "Create a table from a YAML definition", `
Create a table within the data directory. The table is named by the schema and
name of its definition, which is read as YAML. For example:

	schema: app
	name: people
	columns:
	  - name: id
	    kind: NUMERIC
	    not_null: true
	  - name: name
	    kind: STRING
	  - name: active
	    kind: BOOLEAN
	    default: "true"

Columns are indexed by an ordered scheme, excepting BOOLEAN, BLOB and OBJECT
columns which use a blind scheme. Set "index: blind" or "index: ordered" to
override the default.
`, &cmdCreate{})
}

func (cmd *cmdCreate) Execute([]string) error {
	var s = startSession()
	defer s.finish()

	var b, err = afero.ReadFile(s.fs, cmd.Schema)
	mbp.Must(err, "failed to read schema", "path", cmd.Schema)
	def, err := schema.Unmarshal(b)
	if err != nil {
		return err
	}

	m, err := table.Create(s.fs, s.path(def.QualifiedName()), def, s.cells, s.dispatcher,
		mbp.TableOptions(Config.Store, Config.GC))
	if err != nil {
		return err
	}
	s.masters = append(s.masters, m)

	fmt.Printf("created %s\n", m.Name())
	return nil
}
