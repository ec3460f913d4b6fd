// Package dataset persists dataset artifacts on disk as parquet files
// and handles ingestion and export of the tabular exchange formats
// (CSV, XLSX, parquet).
package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"github.com/tabsynth/tabsynth/internal/domain"
	domdataset "github.com/tabsynth/tabsynth/internal/domain/dataset"
)

// Store is a file-backed dataset artifact store rooted at one directory.
// Artifact names may contain one path segment per session, e.g.
// "<session-id>/synthetic".
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates the root directory if needed.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Save writes the dataset as a parquet artifact, replacing any previous
// artifact of the same name.
func (s *Store) Save(name string, ds domdataset.Dataset) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact %s: %w", name, err)
	}
	defer f.Close()

	if err := WriteParquet(f, ds); err != nil {
		return fmt.Errorf("write artifact %s: %w", name, err)
	}
	s.logger.Debug("artifact saved", zap.String("name", name), zap.Int("rows", ds.Len()))
	return nil
}

// Load reads a parquet artifact back into a dataset.
func (s *Store) Load(name string) (domdataset.Dataset, error) {
	path, err := s.path(name)
	if err != nil {
		return domdataset.Dataset{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domdataset.Dataset{}, fmt.Errorf("artifact %s: %w", name, domain.ErrDatasetNotFound)
		}
		return domdataset.Dataset{}, fmt.Errorf("open artifact %s: %w", name, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return domdataset.Dataset{}, fmt.Errorf("stat artifact %s: %w", name, err)
	}

	ds, err := ReadParquet(f, stat.Size())
	if err != nil {
		return domdataset.Dataset{}, fmt.Errorf("read artifact %s: %w", name, err)
	}
	return ds, nil
}

// Delete removes a single artifact.
func (s *Store) Delete(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete artifact %s: %w", name, err)
	}
	return nil
}

// DeleteGroup removes every artifact under one path segment (a session).
func (s *Store) DeleteGroup(group string) error {
	path, err := s.path(group)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(strings.TrimSuffix(path, ".parquet")); err != nil {
		return fmt.Errorf("delete artifact group %s: %w", group, err)
	}
	return nil
}

// Ping verifies the root directory is present and writable.
func (s *Store) Ping(_ context.Context) error {
	probe, err := os.CreateTemp(s.dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("data dir not writable: %w", err)
	}
	probe.Close()
	if err := os.Remove(probe.Name()); err != nil {
		return fmt.Errorf("clean probe file: %w", err)
	}
	return nil
}

// path resolves an artifact name inside the root, rejecting traversal.
func (s *Store) path(name string) (string, error) {
	if name == "" || strings.Contains(name, "..") || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	return filepath.Join(s.dir, filepath.FromSlash(name)+".parquet"), nil
}

// WriteParquet serializes a dataset: numeric columns as optional
// doubles, categorical columns as optional strings, nulls preserved.
func WriteParquet(w io.Writer, ds domdataset.Dataset) error {
	schema, leafs := parquetSchema(ds.Schema())

	pw := parquet.NewWriter(w, schema)
	buf := make([]parquet.Row, 0, 1000)

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		if _, err := pw.WriteRows(buf); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
		buf = buf[:0]
		return nil
	}

	for _, row := range ds.Rows() {
		buf = append(buf, encodeRow(row, ds.Schema(), leafs))
		if len(buf) == cap(buf) {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// ReadParquet streams a parquet file row group by row group.
func ReadParquet(r io.ReaderAt, size int64) (domdataset.Dataset, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return domdataset.Dataset{}, fmt.Errorf("open parquet: %w", err)
	}

	schema, kinds, err := datasetSchema(pf)
	if err != nil {
		return domdataset.Dataset{}, err
	}

	names := make([]string, len(pf.Schema().Columns()))
	for i, path := range pf.Schema().Columns() {
		if len(path) > 0 {
			names[i] = path[0]
		}
	}

	out := domdataset.New(schema)
	for _, rg := range pf.RowGroups() {
		rows := parquet.NewRowGroupReader(rg)
		buf := make([]parquet.Row, 1000)
		for {
			cnt, readErr := rows.ReadRows(buf)
			for i := 0; i < cnt; i++ {
				out.Append(decodeRow(buf[i], names, kinds))
			}
			if readErr != nil {
				if readErr == io.EOF {
					break
				}
				return domdataset.Dataset{}, fmt.Errorf("read rows: %w", readErr)
			}
		}
	}
	return out, nil
}

// parquetSchema builds the flat optional-leaf schema and the leaf index
// of each column.
func parquetSchema(s domdataset.Schema) (*parquet.Schema, map[string]int) {
	group := parquet.Group{}
	for _, col := range s.Columns() {
		if col.Kind() == domdataset.Numeric {
			group[col.Name()] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
		} else {
			group[col.Name()] = parquet.Optional(parquet.String())
		}
	}
	schema := parquet.NewSchema("dataset", group)

	leafs := make(map[string]int, s.Len())
	for i, path := range schema.Columns() {
		if len(path) > 0 {
			leafs[path[0]] = i
		}
	}
	return schema, leafs
}

// datasetSchema recovers column kinds from the parquet leaf types.
func datasetSchema(pf *parquet.File) (domdataset.Schema, map[string]domdataset.Kind, error) {
	fields := pf.Schema().Fields()
	cols := make([]domdataset.Column, 0, len(fields))
	kinds := make(map[string]domdataset.Kind, len(fields))
	for _, f := range fields {
		if !f.Leaf() {
			return domdataset.Schema{}, nil, fmt.Errorf("nested column %q not supported", f.Name())
		}
		kind := domdataset.Categorical
		if f.Type().Kind() == parquet.Double {
			kind = domdataset.Numeric
		}
		cols = append(cols, domdataset.ReconstructColumn(f.Name(), kind))
		kinds[f.Name()] = kind
	}
	schema, err := domdataset.NewSchema(cols)
	if err != nil {
		return domdataset.Schema{}, nil, fmt.Errorf("recover schema: %w", err)
	}
	return schema, kinds, nil
}

func encodeRow(row domdataset.Row, schema domdataset.Schema, leafs map[string]int) parquet.Row {
	out := make(parquet.Row, 0, schema.Len())
	for _, col := range schema.Columns() {
		leaf := leafs[col.Name()]
		v := row[col.Name()]
		switch {
		case v.IsNull():
			out = append(out, parquet.NullValue().Level(0, 0, leaf))
		case col.Kind() == domdataset.Numeric:
			f, ok := v.Float()
			if !ok {
				out = append(out, parquet.NullValue().Level(0, 0, leaf))
				continue
			}
			out = append(out, parquet.ValueOf(f).Level(0, 1, leaf))
		default:
			out = append(out, parquet.ValueOf(v.String()).Level(0, 1, leaf))
		}
	}
	return out
}

func decodeRow(row parquet.Row, names []string, kinds map[string]domdataset.Kind) domdataset.Row {
	out := make(domdataset.Row, len(names))
	for _, v := range row {
		col := v.Column()
		if col < 0 || col >= len(names) || names[col] == "" {
			continue
		}
		name := names[col]
		if v.IsNull() {
			out[name] = domdataset.Null()
			continue
		}
		if kinds[name] == domdataset.Numeric {
			out[name] = domdataset.Number(v.Double())
		} else {
			out[name] = domdataset.Label(v.String())
		}
	}
	return out
}
