package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	domdataset "github.com/tabsynth/tabsynth/internal/domain/dataset"
)

// ReadCSV ingests a CSV file with a header row. Column kinds are
// inferred from the data.
func ReadCSV(r io.Reader) (domdataset.Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return domdataset.Dataset{}, fmt.Errorf("empty csv input")
		}
		return domdataset.Dataset{}, fmt.Errorf("read csv header: %w", err)
	}

	var records [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return domdataset.Dataset{}, fmt.Errorf("read csv row: %w", err)
		}
		records = append(records, rec)
	}
	return fromTable(header, records)
}

// ReadXLSX ingests the first sheet of a workbook, treating the first
// row as the header.
func ReadXLSX(r io.Reader) (domdataset.Dataset, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return domdataset.Dataset{}, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return domdataset.Dataset{}, fmt.Errorf("workbook has no sheets")
	}

	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return domdataset.Dataset{}, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return domdataset.Dataset{}, fmt.Errorf("sheet %s is empty", sheets[0])
	}
	return fromTable(rows[0], rows[1:])
}

// WriteCSV exports a dataset with a header row. Nulls become empty
// cells.
func WriteCSV(w io.Writer, ds domdataset.Dataset) error {
	cw := csv.NewWriter(w)

	cols := ds.Schema().Columns()
	header := make([]string, len(cols))
	for i, col := range cols {
		header[i] = col.Name()
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	rec := make([]string, len(cols))
	for _, row := range ds.Rows() {
		for i, col := range cols {
			v := row[col.Name()]
			if v.IsNull() {
				rec[i] = ""
			} else {
				rec[i] = v.String()
			}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// fromTable infers the schema and converts raw cells to typed values.
// A column is numeric when every non-empty cell parses as a float and
// at least one cell is non-empty.
func fromTable(header []string, records [][]string) (domdataset.Dataset, error) {
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(h)
		if names[i] == "" {
			return domdataset.Dataset{}, fmt.Errorf("column %d has an empty header", i+1)
		}
	}

	cols := make([]domdataset.Column, len(names))
	for i, name := range names {
		kind := domdataset.Categorical
		if columnIsNumeric(records, i) {
			kind = domdataset.Numeric
		}
		col, err := domdataset.NewColumn(name, kind)
		if err != nil {
			return domdataset.Dataset{}, err
		}
		cols[i] = col
	}
	schema, err := domdataset.NewSchema(cols)
	if err != nil {
		return domdataset.Dataset{}, err
	}

	ds := domdataset.New(schema)
	for _, rec := range records {
		row := make(domdataset.Row, len(cols))
		for i, col := range cols {
			row[col.Name()] = parseCell(cell(rec, i), col.Kind())
		}
		ds.Append(row)
	}
	return ds, nil
}

func columnIsNumeric(records [][]string, idx int) bool {
	seen := false
	for _, rec := range records {
		c := strings.TrimSpace(cell(rec, idx))
		if c == "" {
			continue
		}
		if _, err := strconv.ParseFloat(c, 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

func parseCell(raw string, kind domdataset.Kind) domdataset.Value {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domdataset.Null()
	}
	if kind == domdataset.Numeric {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domdataset.Null()
		}
		return domdataset.Number(f)
	}
	return domdataset.Label(raw)
}

// cell tolerates short records, as XLSX readers drop trailing empties.
func cell(rec []string, idx int) string {
	if idx >= len(rec) {
		return ""
	}
	return rec[idx]
}
