package table

import (
	"strings"

	"github.com/pkg/errors"
	"go.tabledb.dev/core/cell"
	"go.tabledb.dev/core/schema"
)

// VariableResolver resolves named variables of the current evaluation context.
type VariableResolver interface {
	Resolve(name string) (cell.Cell, error)
}

// GroupResolver resolves variables across the rows of an aggregation group.
type GroupResolver interface {
	// Size of the group.
	Size() int
	// Resolve variable |name| of the |index|th row of the group.
	Resolve(name string, index int) (cell.Cell, error)
}

// ExpressionEvaluator evaluates column default expressions. Evaluation of
// SQL text is the province of the query layer, which implements it.
type ExpressionEvaluator interface {
	Evaluate(expr string, kind cell.Kind, vars VariableResolver, group GroupResolver) (cell.Cell, error)
}

// LiteralEvaluator is an ExpressionEvaluator of literal default values.
// An expression prefixed with ':' names a variable, which is resolved.
// Other expressions are parsed as a literal of the column's Kind.
type LiteralEvaluator struct{}

// Evaluate the default expression |expr|.
func (LiteralEvaluator) Evaluate(expr string, kind cell.Kind, vars VariableResolver, _ GroupResolver) (cell.Cell, error) {
	if name := strings.TrimPrefix(expr, ":"); name != expr {
		if vars == nil {
			return cell.Cell{}, errors.Errorf("no resolver for variable %q", name)
		}
		return vars.Resolve(name)
	}
	return cell.Parse(kind, strings.Trim(expr, "'"))
}

// RowData is a row being built for addition to a table.
type RowData struct {
	def   *schema.Definition
	cells []cell.Cell
	set   []bool
}

// NewRowData returns a RowData of Definition |def|, having null cells.
func NewRowData(def *schema.Definition) *RowData {
	var r = &RowData{
		def:   def,
		cells: make([]cell.Cell, len(def.Columns)),
		set:   make([]bool, len(def.Columns)),
	}
	for i, col := range def.Columns {
		r.cells[i] = cell.Null(col.Kind)
	}
	return r
}

// Set |column| to |c|, which must be of the column's Kind.
func (r *RowData) Set(column int, c cell.Cell) error {
	if column < 0 || column >= len(r.cells) {
		return errors.Errorf("column %d out of range (of %d)", column, len(r.cells))
	} else if k := r.def.Columns[column].Kind; c.Kind() != k {
		return errors.WithMessagef(ErrColumnType, "column %s is %s, not %s",
			r.def.Columns[column].Name, k, c.Kind())
	}
	r.cells[column], r.set[column] = c, true
	return nil
}

// SetByName sets the column named |name| to |c|.
func (r *RowData) SetByName(name string, c cell.Cell) error {
	var column = r.def.FindColumn(name)
	if column == -1 {
		return errors.Errorf("no column named %q", name)
	}
	return r.Set(column, c)
}

// Get the cell of |column|.
func (r *RowData) Get(column int) cell.Cell { return r.cells[column] }

// IsSet returns whether |column| was explicitly set.
func (r *RowData) IsSet(column int) bool { return r.set[column] }

// Cells of the row.
func (r *RowData) Cells() []cell.Cell { return r.cells }

// SetToDefault sets |column| to the evaluation of its default expression,
// or to null if it has none.
func (r *RowData) SetToDefault(column int, eval ExpressionEvaluator, vars VariableResolver, group GroupResolver) error {
	var col = r.def.Columns[column]

	if col.Default == "" {
		r.cells[column], r.set[column] = cell.Null(col.Kind), true
		return nil
	} else if eval == nil {
		return errors.Errorf("column %s has a default but no evaluator was provided", col.Name)
	}
	var c, err = eval.Evaluate(col.Default, col.Kind, vars, group)
	if err != nil {
		return errors.WithMessagef(err, "evaluating default of column %s", col.Name)
	}
	return r.Set(column, c)
}

// SetDefaultsForUnset applies SetToDefault to each column not explicitly set.
func (r *RowData) SetDefaultsForUnset(eval ExpressionEvaluator, vars VariableResolver, group GroupResolver) error {
	for i := range r.cells {
		if r.set[i] {
			continue
		} else if err := r.SetToDefault(i, eval, vars, group); err != nil {
			return err
		}
	}
	return nil
}

// Validate the RowData against the constraints of its Definition.
func (r *RowData) Validate() error {
	for i, col := range r.def.Columns {
		if c := r.cells[i]; c.Kind() != col.Kind {
			return errors.WithMessagef(ErrColumnType, "column %s", col.Name)
		} else if col.NotNull && c.IsNull() {
			return errors.WithMessagef(ErrNotNull, "column %s", col.Name)
		}
	}
	return nil
}
