package net

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/GoRprop/internal/dataset"
)

// Weight files are plain text: one line per "from" neuron holding its
// comma separated outgoing weights, layer after layer. The topology is not
// stored; a run of consecutive lines with the same field count is one
// layer. Two adjacent layers with the same output width therefore merge
// into one block when the topology is inferred, so callers that know the
// topology should use LoadWeightsInto.

// SaveWeights writes the weights to a file.
func (n *Network) SaveWeights(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}

	if err := n.EncodeWeights(file); err != nil {
		file.Close()
		return err
	}
	return errors.Wrap(file.Close(), "failed to close file")
}

// EncodeWeights writes the weights to w using the shortest representation
// that parses back to the same float64.
func (n *Network) EncodeWeights(w io.Writer) error {
	writer := csv.NewWriter(w)
	for l, m := range n.weights {
		rows, cols := m.Dims()
		record := make([]string, cols)
		for j := 0; j < rows; j++ {
			for k, v := range m.RawRowView(j) {
				record[k] = strconv.FormatFloat(v, 'g', -1, 64)
			}
			if err := writer.Write(record); err != nil {
				return errors.Wrapf(err, "failed to encode layer %d", l)
			}
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "failed to encode weights")
}

// LoadWeights reads a weight file and infers the topology from it.
func LoadWeights(filename string) (*Network, error) {
	table, err := dataset.ReadTable(filename)
	if err != nil {
		return nil, err
	}
	return fromTable(table)
}

// DecodeWeights reads weights from r and infers the topology from them.
func DecodeWeights(r io.Reader) (*Network, error) {
	table, err := dataset.ParseTable(r)
	if err != nil {
		return nil, err
	}
	return fromTable(table)
}

// InferTopology returns the layer sizes described by a weight table. Each
// block of consecutive rows with equal field count is one weight layer:
// its row count is that layer's width, and the last block's field count is
// the output width.
func InferTopology(t *dataset.Table) ([]int, error) {
	if t.Rows() == 0 {
		return nil, errors.Wrap(ErrShapeMismatch, "empty weight file")
	}

	var sizes, widths []int
	rows := 0
	for i := 0; i < t.Rows(); i++ {
		if i > 0 && t.Fields(i) != t.Fields(i-1) {
			sizes = append(sizes, rows)
			widths = append(widths, t.Fields(i-1))
			rows = 0
		}
		rows++
	}
	sizes = append(sizes, rows)
	widths = append(widths, t.Fields(t.Rows()-1))

	for b := 0; b+1 < len(sizes); b++ {
		if widths[b] != sizes[b+1] {
			return nil, errors.Wrapf(ErrShapeMismatch,
				"block %d has %d columns but block %d has %d rows", b, widths[b], b+1, sizes[b+1])
		}
	}
	return append(sizes, widths[len(widths)-1]), nil
}

// AmbiguousTopology reports whether sizes, as returned by InferTopology,
// may hide merged layers. A merged block has more rows than columns, and
// every block after the first is checked against its predecessor's width,
// so only a first block wider than its output can be a silent merge.
func AmbiguousTopology(sizes []int) bool {
	return len(sizes) >= 2 && sizes[0] > sizes[1]
}

func fromTable(t *dataset.Table) (*Network, error) {
	sizes, err := InferTopology(t)
	if err != nil {
		return nil, err
	}
	n, err := allocate(sizes)
	if err != nil {
		return nil, err
	}
	if err := n.fillFromTable(t); err != nil {
		return nil, err
	}
	return n, nil
}

// LoadWeightsInto replaces n's weights with those in a file. The file must
// match n's topology exactly.
func (n *Network) LoadWeightsInto(filename string) error {
	table, err := dataset.ReadTable(filename)
	if err != nil {
		return err
	}
	return n.fillFromTable(table)
}

// DecodeWeightsInto replaces n's weights with those read from r.
func (n *Network) DecodeWeightsInto(r io.Reader) error {
	table, err := dataset.ParseTable(r)
	if err != nil {
		return err
	}
	return n.fillFromTable(table)
}

// fillFromTable parses every weight before touching n, so a bad file
// leaves n unchanged.
func (n *Network) fillFromTable(t *dataset.Table) error {
	want := 0
	for l := 0; l < len(n.sizes)-1; l++ {
		want += n.sizes[l]
	}
	if t.Rows() != want {
		return errors.Wrapf(ErrShapeMismatch, "weight file has %d rows, topology %v needs %d", t.Rows(), n.sizes, want)
	}

	parsed := make([]*mat.Dense, len(n.weights))
	row := 0
	for l := range n.weights {
		rows, cols := n.sizes[l], n.sizes[l+1]
		data := make([]float64, 0, rows*cols)
		for j := 0; j < rows; j, row = j+1, row+1 {
			if t.Fields(row) != cols {
				return errors.Wrapf(ErrShapeMismatch, "line %d has %d weights, layer %d needs %d", row+1, t.Fields(row), l, cols)
			}
			for k := 0; k < cols; k++ {
				v, err := strconv.ParseFloat(t.Cell(row, k), 64)
				if err != nil {
					return errors.Wrapf(err, "line %d, column %d", row+1, k+1)
				}
				data = append(data, v)
			}
		}
		parsed[l] = mat.NewDense(rows, cols, data)
	}

	for l, m := range parsed {
		n.weights[l].Copy(m)
	}
	return nil
}
