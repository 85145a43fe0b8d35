package main

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.tabledb.dev/core/cell"
	"go.tabledb.dev/core/schema"
	"go.tabledb.dev/core/table"
)

type cmdInsert struct {
	Table string   `long:"table" short:"t" required:"true" description:"Name of the table"`
	Rows  []string `long:"row" short:"r" required:"true" description:"Comma-separated cell values of a row. May be repeated"`
}

func init() {
	commands.AddCommand("", "insert", "Insert rows into a table", `
Insert rows into a table, within a single transaction. Each --row is a
comma-separated list of cell values, given in column order and quoted as
in CSV. The literal NULL is a null cell. Trailing columns which are omitted
take their default value, or are null if the column has no default.

For example:

	>_ tabledb insert --table app.people --row '1,alice' --row '2,"bob, jr"'
`, &cmdInsert{})
}

func (cmd *cmdInsert) Execute([]string) error {
	var s = startSession()
	defer s.finish()

	var m = s.mustOpen(cmd.Table)
	var dt, err = m.Begin()
	if err != nil {
		return err
	}
	var q = table.NewSimpleQuery(dt)
	defer q.Release()

	for _, text := range cmd.Rows {
		r, err := parseRow(m.Definition(), text)
		if err != nil {
			return errors.WithMessagef(err, "row %q", text)
		}
		row, err := q.AddRow(r)
		if err != nil {
			_ = dt.Rollback()
			return errors.WithMessagef(err, "row %q", text)
		}
		log.WithFields(log.Fields{"table": m.Name(), "row": row}).Debug("added row")
	}
	if err = dt.Commit(); err != nil {
		return err
	}
	fmt.Printf("inserted %d rows into %s\n", len(cmd.Rows), m.Name())
	return nil
}

// parseRow parses CSV |text| into a RowData of |def|.
func parseRow(def *schema.Definition, text string) (*table.RowData, error) {
	var fields, err = csv.NewReader(strings.NewReader(text)).Read()
	if err != nil {
		return nil, err
	} else if len(fields) > def.ColumnCount() {
		return nil, errors.Errorf("have %d values, but %s has %d columns",
			len(fields), def.QualifiedName(), def.ColumnCount())
	}

	var r = table.NewRowData(def)
	for i, field := range fields {
		var c, err = cell.Parse(def.Columns[i].Kind, field)
		if err != nil {
			return nil, errors.WithMessagef(err, "column %s", def.Columns[i].Name)
		} else if err = r.Set(i, c); err != nil {
			return nil, err
		}
	}
	if err = r.SetDefaultsForUnset(table.LiteralEvaluator{}, nil, nil); err != nil {
		return nil, err
	}
	return r, nil
}
