package table

import (
	"os"

	"github.com/jgraettinger/cockroach-encoding/encoding"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"go.tabledb.dev/core/schema"
	"go.tabledb.dev/core/scheme"
)

// schemesSuffix is the file suffix of a Master's persisted ordered schemes.
const schemesSuffix = ".sch"

const schemesVersion = 1

// writeSchemes persists the InsertSearch schemes of the Master. The file
// is stamped with the Store's identity and committed row count, which are
// verified upon load.
func (m *Master) writeSchemes() error {
	var id = m.store.ID()

	var b = encoding.EncodeUvarintAscending(nil, schemesVersion)
	b = append(b, id[:]...)
	b = encoding.EncodeUvarintAscending(b, m.committed.GetCardinality())

	for column, s := range m.schemes {
		var is, ok = s.(*scheme.InsertSearch)
		if !ok {
			continue
		}
		var p = is.Marshal()
		b = encoding.EncodeUvarintAscending(b, uint64(column))
		b = encoding.EncodeUvarintAscending(b, uint64(len(p)))
		b = append(b, p...)
	}
	if err := afero.WriteFile(m.fs, m.path+schemesSuffix, b, 0644); err != nil {
		return errors.WithMessage(err, "writing schemes")
	}
	return nil
}

// loadSchemes loads persisted schemes of the Master, returning false if
// they don't exist or don't match the Master's current state.
func (m *Master) loadSchemes() (bool, error) {
	var b, err = afero.ReadFile(m.fs, m.path+schemesSuffix)
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, errors.WithMessage(err, "reading schemes")
	}

	var ordered map[int][]byte
	if ordered, err = m.parseSchemes(b); err != nil {
		log.WithFields(log.Fields{
			"table": m.Name(),
			"err":   err,
		}).Warn("discarding persisted schemes (will rebuild)")
		return false, nil
	}

	var schemes = make([]scheme.Scheme, len(m.def.Columns))
	for i, col := range m.def.Columns {
		if col.IndexScheme() == schema.IndexBlind {
			schemes[i] = scheme.NewBlindSearch(head{m}, i)
			continue
		}
		var p, ok = ordered[i]
		if !ok {
			return false, nil
		}
		var is, err = scheme.UnmarshalInsertSearch(head{m}, i, p)
		if err != nil || is.Len() != int(m.committed.GetCardinality()) {
			log.WithFields(log.Fields{
				"table":  m.Name(),
				"column": col.Name,
				"err":    err,
			}).Warn("discarding persisted scheme (will rebuild)")
			return false, nil
		}
		schemes[i] = is
	}
	m.schemes = schemes
	return true, nil
}

func (m *Master) parseSchemes(b []byte) (map[int][]byte, error) {
	var version, count, column, size uint64
	var err error

	if b, version, err = encoding.DecodeUvarintAscending(b); err != nil {
		return nil, errors.WithMessage(err, "decoding version")
	} else if version != schemesVersion {
		return nil, errors.Errorf("unknown version %d", version)
	}
	var id = m.store.ID()
	if len(b) < len(id) || string(b[:len(id)]) != string(id[:]) {
		return nil, errors.New("schemes are of another store")
	}
	b = b[len(id):]

	if b, count, err = encoding.DecodeUvarintAscending(b); err != nil {
		return nil, errors.WithMessage(err, "decoding row count")
	} else if count != m.committed.GetCardinality() {
		return nil, errors.Errorf("schemes have %d rows, but table has %d", count, m.committed.GetCardinality())
	}

	var out = make(map[int][]byte)
	for len(b) != 0 {
		if b, column, err = encoding.DecodeUvarintAscending(b); err != nil {
			return nil, errors.WithMessage(err, "decoding column")
		} else if b, size, err = encoding.DecodeUvarintAscending(b); err != nil {
			return nil, errors.WithMessage(err, "decoding scheme size")
		} else if uint64(len(b)) < size {
			return nil, errors.Errorf("scheme of column %d is truncated", column)
		}
		out[int(column)], b = b[:size], b[size:]
	}
	return out, nil
}

func removeSchemes(fs afero.Fs, path string) error {
	if err := fs.Remove(path + schemesSuffix); err != nil && !os.IsNotExist(err) {
		return errors.WithMessage(err, "removing schemes")
	}
	return nil
}
