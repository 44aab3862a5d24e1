// Package dataset loads delimited text files into training examples.
package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrRaggedRows is returned when the rows of a file do not all have
	// the same number of fields.
	ErrRaggedRows = errors.New("rows have differing field counts")
	// ErrRowCountMismatch is returned when input and output files have a
	// different number of rows.
	ErrRowCountMismatch = errors.New("input and output row counts differ")
	// ErrDimensionMismatch is returned when a training set does not fit a
	// network's input or output width.
	ErrDimensionMismatch = errors.New("training set does not match network dimensions")
	// ErrEmpty is returned when a file holds no data rows.
	ErrEmpty = errors.New("no data rows")
)

// Table is a comma separated file held as strings, one slice per row.
// Rows may have different lengths; Width reports whether they do.
type Table struct {
	name string
	rows [][]string
}

// ReadTable reads the file at path.
func ReadTable(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	t, err := ParseTable(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	t.name = path
	return t, nil
}

// ParseTable reads comma separated rows from r. Blank lines are skipped and
// fields are trimmed of surrounding whitespace.
func ParseTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read csv")
	}
	for _, record := range records {
		for j := range record {
			record[j] = strings.TrimSpace(record[j])
		}
	}
	return &Table{name: "<reader>", rows: records}, nil
}

// Name returns the path the table was read from.
func (t *Table) Name() string {
	return t.name
}

// Rows returns the number of rows, header included.
func (t *Table) Rows() int {
	return len(t.rows)
}

// Fields returns the number of fields in row i.
func (t *Table) Fields(i int) int {
	return len(t.rows[i])
}

// Cell returns field j of row i.
func (t *Table) Cell(i, j int) string {
	return t.rows[i][j]
}

// Row returns row i. The slice is shared with the table.
func (t *Table) Row(i int) []string {
	return t.rows[i]
}

// Width returns the field count shared by every row.
func (t *Table) Width() (int, error) {
	if len(t.rows) == 0 {
		return 0, errors.Wrapf(ErrEmpty, "%s", t.name)
	}
	width := len(t.rows[0])
	for i := 1; i < len(t.rows); i++ {
		if len(t.rows[i]) != width {
			return 0, errors.Wrapf(ErrRaggedRows, "%s: row %d has %d fields, row 0 has %d",
				t.name, i, len(t.rows[i]), width)
		}
	}
	return width, nil
}
