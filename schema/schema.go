// Package schema defines Column and Definition, the immutable description of
// a table's name, storage class, and ordered columns.
package schema

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.tabledb.dev/core/cell"
	"gopkg.in/yaml.v2"
)

// Index schemes which may be selected for a Column.
const (
	// IndexOrdered maintains a persisted, incrementally updated ordering of rows.
	IndexOrdered = "ordered"
	// IndexBlind maintains no state, and sorts the table upon every query.
	IndexBlind = "blind"
)

var (
	// ErrFrozen is returned by mutations of a frozen Definition.
	ErrFrozen = errors.New("definition is immutable")
	// ErrDuplicateColumn is returned when adding a Column whose name is already defined.
	ErrDuplicateColumn = errors.New("duplicate column name")
)

// Column describes a single column of a table.
type Column struct {
	Name    string    `yaml:"name"`
	Kind    cell.Kind `yaml:"kind"`
	SQLType string    `yaml:"sql_type,omitempty"`
	Size    int       `yaml:"size,omitempty"`
	Scale   int       `yaml:"scale,omitempty"`
	NotNull bool      `yaml:"not_null,omitempty"`
	// Default is the text of the column's default expression, evaluated by
	// an external expression evaluator.
	Default string `yaml:"default,omitempty"`
	// Index is the selected index scheme: IndexOrdered or IndexBlind.
	// If empty, an index scheme is chosen from the Kind.
	Index string `yaml:"index,omitempty"`
}

// Validate returns an error if the Column is malformed.
func (c Column) Validate() error {
	if c.Name == "" {
		return errors.New("column name is empty")
	} else if err := c.Kind.Validate(); err != nil {
		return errors.WithMessagef(err, "column %q", c.Name)
	}
	switch c.Index {
	case "", IndexOrdered, IndexBlind:
	default:
		return errors.Errorf("column %q: unknown index scheme %q", c.Name, c.Index)
	}
	if c.Size < 0 || c.Scale < 0 {
		return errors.Errorf("column %q: negative size or scale", c.Name)
	}
	return nil
}

// IndexScheme returns the Column's effective index scheme. Where none was
// selected, BOOLEAN, BLOB and OBJECT columns (which have small or
// uninteresting domains) use IndexBlind and all others use IndexOrdered.
func (c Column) IndexScheme() string {
	if c.Index != "" {
		return c.Index
	}
	switch c.Kind {
	case cell.BOOLEAN, cell.BLOB, cell.OBJECT:
		return IndexBlind
	default:
		return IndexOrdered
	}
}

// Definition describes a table. It's built mutable and then frozen before
// being handed to storage, after which all mutations fail.
type Definition struct {
	Schema       string   `yaml:"schema"`
	Name         string   `yaml:"name"`
	StorageClass string   `yaml:"storage_class,omitempty"`
	Columns      []Column `yaml:"columns"`

	frozen bool
}

// NewDefinition returns an empty, mutable Definition.
func NewDefinition(schema, name string) *Definition {
	return &Definition{Schema: schema, Name: name}
}

// AddColumn appends Column |c|.
func (d *Definition) AddColumn(c Column) error {
	if d.frozen {
		return ErrFrozen
	} else if err := c.Validate(); err != nil {
		return err
	} else if d.FindColumn(c.Name) != -1 {
		return errors.WithMessagef(ErrDuplicateColumn, "%q", c.Name)
	}
	d.Columns = append(d.Columns, c)
	return nil
}

// SetStorageClass sets the storage class of the table.
func (d *Definition) SetStorageClass(class string) error {
	if d.frozen {
		return ErrFrozen
	}
	d.StorageClass = class
	return nil
}

// Freeze the Definition, after validating it.
func (d *Definition) Freeze() error {
	if err := d.Validate(); err != nil {
		return err
	}
	d.frozen = true
	return nil
}

// Frozen returns whether the Definition is immutable.
func (d *Definition) Frozen() bool { return d.frozen }

// Validate returns an error if the Definition is malformed.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return errors.New("table name is empty")
	} else if len(d.Columns) == 0 {
		return errors.Errorf("table %s has no columns", d.QualifiedName())
	}
	var seen = make(map[string]struct{}, len(d.Columns))
	for _, c := range d.Columns {
		if err := c.Validate(); err != nil {
			return err
		} else if _, ok := seen[c.Name]; ok {
			return errors.WithMessagef(ErrDuplicateColumn, "%q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}

// QualifiedName returns "schema.name", or "name" if Schema is empty.
func (d *Definition) QualifiedName() string {
	if d.Schema == "" {
		return d.Name
	}
	return d.Schema + "." + d.Name
}

// ColumnCount returns the number of columns.
func (d *Definition) ColumnCount() int { return len(d.Columns) }

// FindColumn returns the index of the column named |name|, or -1. Names
// compare case-insensitively.
func (d *Definition) FindColumn(name string) int {
	for i, c := range d.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// Kinds returns the Kind of each column.
func (d *Definition) Kinds() []cell.Kind {
	var out = make([]cell.Kind, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Kind
	}
	return out
}

func (d *Definition) String() string {
	var parts = make([]string, len(d.Columns))
	for i, c := range d.Columns {
		parts[i] = fmt.Sprintf("%s %s", c.Name, c.Kind)
	}
	return fmt.Sprintf("%s(%s)", d.QualifiedName(), strings.Join(parts, ", "))
}

// Marshal the Definition to its YAML form.
func (d *Definition) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

// Unmarshal a YAML Definition, which is returned frozen.
func Unmarshal(b []byte) (*Definition, error) {
	var d = new(Definition)
	if err := yaml.UnmarshalStrict(b, d); err != nil {
		return nil, errors.WithMessage(err, "decoding table definition")
	} else if err = d.Freeze(); err != nil {
		return nil, err
	}
	return d, nil
}
