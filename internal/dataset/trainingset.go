package dataset

import (
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// TrainingSet is an ordered list of input/output example pairs with fixed
// widths and the per-column extrema used for min-max normalization.
type TrainingSet struct {
	inputs  [][]float64
	outputs [][]float64

	inputHeader  []string
	outputHeader []string

	inputMin, inputMax   []float64
	outputMin, outputMax []float64

	normalized bool
}

// Load reads a training set from an input file and an output file. Row 0
// of each file is a header; rows 1..N hold one example each.
func Load(inputPath, outputPath string) (*TrainingSet, error) {
	in, err := ReadTable(inputPath)
	if err != nil {
		return nil, err
	}
	out, err := ReadTable(outputPath)
	if err != nil {
		return nil, err
	}
	return FromTables(in, out)
}

// FromTables builds a training set from an input and an output table.
func FromTables(in, out *Table) (*TrainingSet, error) {
	if in.Rows() != out.Rows() {
		return nil, errors.Wrapf(ErrRowCountMismatch, "%s has %d rows, %s has %d",
			in.Name(), in.Rows(), out.Name(), out.Rows())
	}
	if _, err := in.Width(); err != nil {
		return nil, errors.Wrap(err, "malformed input data")
	}
	if _, err := out.Width(); err != nil {
		return nil, errors.Wrap(err, "malformed output data")
	}
	if in.Rows() < 2 {
		return nil, errors.Wrapf(ErrEmpty, "%s has only a header", in.Name())
	}

	inputs, err := parseRows(in)
	if err != nil {
		return nil, err
	}
	outputs, err := parseRows(out)
	if err != nil {
		return nil, err
	}

	ts, err := newTrainingSet(inputs, outputs)
	if err != nil {
		return nil, err
	}
	ts.inputHeader = append([]string(nil), in.Row(0)...)
	ts.outputHeader = append([]string(nil), out.Row(0)...)
	return ts, nil
}

func parseRows(t *Table) ([][]float64, error) {
	rows := make([][]float64, t.Rows()-1)
	for i := 1; i < t.Rows(); i++ {
		row := make([]float64, t.Fields(i))
		for j := range row {
			v, err := strconv.ParseFloat(t.Cell(i, j), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: row %d, column %d", t.Name(), i, j)
			}
			row[j] = v
		}
		rows[i-1] = row
	}
	return rows, nil
}

// New builds a training set from in-memory examples. The slices are copied.
func New(inputs, outputs [][]float64) (*TrainingSet, error) {
	if len(inputs) != len(outputs) {
		return nil, errors.Wrapf(ErrRowCountMismatch, "%d inputs, %d outputs", len(inputs), len(outputs))
	}
	if len(inputs) == 0 {
		return nil, ErrEmpty
	}
	return newTrainingSet(copyRows(inputs), copyRows(outputs))
}

func copyRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r...)
	}
	return out
}

func newTrainingSet(inputs, outputs [][]float64) (*TrainingSet, error) {
	if err := checkWidths(inputs, "input"); err != nil {
		return nil, err
	}
	if err := checkWidths(outputs, "output"); err != nil {
		return nil, err
	}

	ts := &TrainingSet{inputs: inputs, outputs: outputs}
	ts.inputMin, ts.inputMax = extrema(inputs)
	ts.outputMin, ts.outputMax = extrema(outputs)
	return ts, nil
}

func checkWidths(rows [][]float64, what string) error {
	width := len(rows[0])
	if width == 0 {
		return errors.Errorf("%s rows have no columns", what)
	}
	for i, r := range rows {
		if len(r) != width {
			return errors.Wrapf(ErrRaggedRows, "%s row %d has %d columns, want %d", what, i, len(r), width)
		}
	}
	return nil
}

// extrema returns the per-column minimum and maximum of rows.
func extrema(rows [][]float64) (lo, hi []float64) {
	width := len(rows[0])
	lo = make([]float64, width)
	hi = make([]float64, width)
	column := make([]float64, len(rows))
	for j := 0; j < width; j++ {
		for i, r := range rows {
			column[i] = r[j]
		}
		lo[j] = floats.Min(column)
		hi[j] = floats.Max(column)
	}
	return lo, hi
}

// Len returns the number of examples.
func (ts *TrainingSet) Len() int {
	return len(ts.inputs)
}

// Example returns the input and output vectors of example i. The slices are
// shared with the set.
func (ts *TrainingSet) Example(i int) (input, output []float64) {
	return ts.inputs[i], ts.outputs[i]
}

// InputWidth returns the number of input columns.
func (ts *TrainingSet) InputWidth() int {
	return len(ts.inputs[0])
}

// OutputWidth returns the number of output columns.
func (ts *TrainingSet) OutputWidth() int {
	return len(ts.outputs[0])
}

// InputHeader returns the input column descriptions, if the set was loaded
// from files.
func (ts *TrainingSet) InputHeader() []string {
	return ts.inputHeader
}

// OutputHeader returns the output column descriptions.
func (ts *TrainingSet) OutputHeader() []string {
	return ts.outputHeader
}

// InputMin returns the per-column input minimum of the raw data.
func (ts *TrainingSet) InputMin() []float64 { return ts.inputMin }

// InputMax returns the per-column input maximum of the raw data.
func (ts *TrainingSet) InputMax() []float64 { return ts.inputMax }

// OutputMin returns the per-column output minimum of the raw data.
func (ts *TrainingSet) OutputMin() []float64 { return ts.outputMin }

// OutputMax returns the per-column output maximum of the raw data.
func (ts *TrainingSet) OutputMax() []float64 { return ts.outputMax }

// IsNormalized reports whether the examples are currently scaled to [0, 1].
func (ts *TrainingSet) IsNormalized() bool {
	return ts.normalized
}

// Validate checks the set against a network's input and output widths.
func (ts *TrainingSet) Validate(inputWidth, outputWidth int) error {
	if ts.InputWidth() != inputWidth || ts.OutputWidth() != outputWidth {
		return errors.Wrapf(ErrDimensionMismatch, "set is %d->%d, network is %d->%d",
			ts.InputWidth(), ts.OutputWidth(), inputWidth, outputWidth)
	}
	return nil
}

// Normalize scales every column to [0, 1] using the extrema computed at
// load time. Constant columns become 0. It does nothing if the set is
// already normalized.
func (ts *TrainingSet) Normalize() {
	if ts.normalized {
		return
	}
	for i := range ts.inputs {
		normalize(ts.inputs[i], ts.inputMin, ts.inputMax)
		normalize(ts.outputs[i], ts.outputMin, ts.outputMax)
	}
	ts.normalized = true
}

// Denormalize restores the raw values. It does nothing if the set is not
// normalized.
func (ts *TrainingSet) Denormalize() {
	if !ts.normalized {
		return
	}
	for i := range ts.inputs {
		denormalize(ts.inputs[i], ts.inputMin, ts.inputMax)
		denormalize(ts.outputs[i], ts.outputMin, ts.outputMax)
	}
	ts.normalized = false
}

// NormalizeInput returns a copy of a raw input vector scaled with the
// set's input extrema.
func (ts *TrainingSet) NormalizeInput(v []float64) []float64 {
	out := append([]float64(nil), v...)
	normalize(out, ts.inputMin, ts.inputMax)
	return out
}

// DenormalizeOutput returns a copy of a normalized output vector mapped
// back to the raw output range.
func (ts *TrainingSet) DenormalizeOutput(v []float64) []float64 {
	out := append([]float64(nil), v...)
	denormalize(out, ts.outputMin, ts.outputMax)
	return out
}

func normalize(v, lo, hi []float64) {
	for j := range v {
		diff := hi[j] - lo[j]
		if diff != 0 {
			v[j] = (v[j] - lo[j]) / diff
		} else {
			v[j] = 0
		}
	}
}

func denormalize(v, lo, hi []float64) {
	for j := range v {
		v[j] = v[j]*(hi[j]-lo[j]) + lo[j]
	}
}

// Split cuts the set into a training part holding the first floor(N*ratio)
// examples and a validation part holding the rest. Both parts start with
// the parent's extrema and normalization state but own copies of the rows,
// so normalizing one part leaves the parent untouched.
func (ts *TrainingSet) Split(ratio float64) (train, validation *TrainingSet, err error) {
	if ratio <= 0 || ratio >= 1 {
		return nil, nil, errors.Wrapf(ErrEmpty, "split ratio %g leaves one side empty", ratio)
	}
	cut := int(float64(ts.Len()) * ratio)
	if cut == 0 || cut == ts.Len() {
		return nil, nil, errors.Wrapf(ErrEmpty, "split of %d examples at %g leaves one side empty", ts.Len(), ratio)
	}

	part := func(lo, hi int) *TrainingSet {
		p := *ts
		p.inputs = copyRows(ts.inputs[lo:hi])
		p.outputs = copyRows(ts.outputs[lo:hi])
		return &p
	}
	return part(0, cut), part(cut, ts.Len()), nil
}
