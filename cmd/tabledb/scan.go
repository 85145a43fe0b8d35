package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"go.tabledb.dev/core/cell"
	"go.tabledb.dev/core/table"
)

type cmdScan struct {
	Table string `long:"table" short:"t" required:"true" description:"Name of the table"`
	Where string `long:"where" short:"w" description:"Restrict to rows where column=value, in column order"`
	Limit int    `long:"limit" short:"n" default:"0" description:"Maximum number of rows to print. Zero is unlimited"`
}

func init() {
	commands.AddCommand("", "scan", "Print rows of a table", `
Print committed rows of a table as a table. With --where, only rows having a
column equal to a value are printed, in order of the column's index scheme.

For example:

	>_ tabledb scan --table app.people --where name=alice
`, &cmdScan{})
}

func (cmd *cmdScan) Execute([]string) error {
	var s = startSession()
	defer s.finish()

	var m = s.mustOpen(cmd.Table)
	var dt, err = m.Begin()
	if err != nil {
		return err
	}
	var q = table.NewSimpleQuery(dt)
	defer q.Release()
	defer dt.Rollback()

	var rows = q.RowEnumeration()
	if cmd.Where != "" {
		if rows, err = cmd.selectWhere(q); err != nil {
			return err
		}
	}
	if cmd.Limit > 0 && len(rows) > cmd.Limit {
		rows = rows[:cmd.Limit]
	}

	var out = tablewriter.NewWriter(os.Stdout)
	var headers = []string{"Row"}
	for i := 0; i != dt.ColumnCount(); i++ {
		headers = append(headers, dt.ColumnName(i))
	}
	out.Header(headers)

	for _, row := range rows {
		var line = []string{strconv.Itoa(row)}
		for i := 0; i != dt.ColumnCount(); i++ {
			var c, err = q.Get(i, row)
			if err != nil {
				return errors.WithMessagef(err, "reading row %d", row)
			}
			line = append(line, c.String())
		}
		if err = out.Append(line); err != nil {
			return err
		}
	}
	return out.Render()
}

func (cmd *cmdScan) selectWhere(q *table.SimpleQuery) ([]int, error) {
	var ind = strings.IndexByte(cmd.Where, '=')
	if ind == -1 {
		return nil, errors.Errorf("expected --where column=value, not %q", cmd.Where)
	}
	var dt = q.Table()
	var column = dt.Master().Definition().FindColumn(cmd.Where[:ind])
	if column == -1 {
		return nil, errors.Errorf("%s has no column %q", dt.Master().Name(), cmd.Where[:ind])
	}
	var value, err = cell.Parse(dt.ColumnKind(column), cmd.Where[ind+1:])
	if err != nil {
		return nil, errors.WithMessage(err, "parsing --where value")
	}
	return q.SelectIndexesEqual(column, value)
}
