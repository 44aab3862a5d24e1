package dataset

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "xor.in", "a,b", "0,0", "0,1", "1,0", "1,1")
	out := writeFile(t, dir, "xor.out", "xor", "0", "1", "1", "0")

	ts, err := Load(in, out)
	require.NoError(t, err)

	assert.Equal(t, 4, ts.Len())
	assert.Equal(t, 2, ts.InputWidth())
	assert.Equal(t, 1, ts.OutputWidth())
	assert.Equal(t, []string{"a", "b"}, ts.InputHeader())
	assert.Equal(t, []string{"xor"}, ts.OutputHeader())

	input, output := ts.Example(1)
	assert.Equal(t, []float64{0, 1}, input)
	assert.Equal(t, []float64{1}, output)

	assert.Equal(t, []float64{0, 0}, ts.InputMin())
	assert.Equal(t, []float64{1, 1}, ts.InputMax())
}

func TestLoadRowCountMismatch(t *testing.T) {
	dir := t.TempDir()
	inLines := []string{"x"}
	outLines := []string{"y"}
	for i := 0; i < 9; i++ {
		inLines = append(inLines, fmt.Sprint(i))
		if i < 8 {
			outLines = append(outLines, fmt.Sprint(i*2))
		}
	}
	in := writeFile(t, dir, "in.csv", inLines...)
	out := writeFile(t, dir, "out.csv", outLines...)

	_, err := Load(in, out)
	require.ErrorIs(t, err, ErrRowCountMismatch)
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		in   []string
		out  []string
		err  error
	}{
		{"Ragged input", []string{"a,b", "1,2", "3"}, []string{"y", "1", "2"}, ErrRaggedRows},
		{"Ragged output", []string{"a", "1", "2"}, []string{"y,z", "1,2", "2"}, ErrRaggedRows},
		{"Header only", []string{"a"}, []string{"y"}, ErrEmpty},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := writeFile(t, dir, fmt.Sprintf("in%d.csv", i), tt.in...)
			out := writeFile(t, dir, fmt.Sprintf("out%d.csv", i), tt.out...)
			_, err := Load(in, out)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestLoadBadNumber(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.csv", "a", "1", "oops")
	out := writeFile(t, dir, "out.csv", "y", "1", "2")

	_, err := Load(in, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestNew(t *testing.T) {
	_, err := New([][]float64{{1}, {2}}, [][]float64{{1}})
	require.ErrorIs(t, err, ErrRowCountMismatch)

	_, err = New(nil, nil)
	require.ErrorIs(t, err, ErrEmpty)

	_, err = New([][]float64{{1, 2}, {3}}, [][]float64{{1}, {2}})
	require.ErrorIs(t, err, ErrRaggedRows)

	raw := [][]float64{{5}}
	ts, err := New(raw, [][]float64{{1}})
	require.NoError(t, err)
	raw[0][0] = 7
	input, _ := ts.Example(0)
	assert.Equal(t, 5.0, input[0], "New should copy its input")
}

func TestValidate(t *testing.T) {
	ts, err := New([][]float64{{1, 2}}, [][]float64{{3}})
	require.NoError(t, err)

	require.NoError(t, ts.Validate(2, 1))
	require.ErrorIs(t, ts.Validate(3, 1), ErrDimensionMismatch)
	require.ErrorIs(t, ts.Validate(2, 2), ErrDimensionMismatch)
}

func TestNormalizeRoundTrip(t *testing.T) {
	inputs := [][]float64{{-3, 10, 4}, {0.5, 20, 4}, {7, 15, 4}}
	outputs := [][]float64{{100}, {-50}, {25}}
	ts, err := New(inputs, outputs)
	require.NoError(t, err)

	ts.Normalize()
	require.True(t, ts.IsNormalized())

	for i := 0; i < ts.Len(); i++ {
		input, output := ts.Example(i)
		for _, v := range append(append([]float64(nil), input...), output...) {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
		assert.Equal(t, 0.0, input[2], "constant column maps to 0")
	}

	first, _ := ts.Example(0)
	snapshot := append([]float64(nil), first...)
	ts.Normalize()
	assert.Equal(t, snapshot, first, "second Normalize is a no-op")

	ts.Denormalize()
	require.False(t, ts.IsNormalized())
	for i := 0; i < ts.Len(); i++ {
		input, output := ts.Example(i)
		assert.InDeltaSlice(t, inputs[i], input, 1e-12)
		assert.InDeltaSlice(t, outputs[i], output, 1e-12)
	}

	ts.Denormalize()
	input, _ := ts.Example(0)
	assert.InDeltaSlice(t, inputs[0], input, 1e-12, "Denormalize on raw data is a no-op")
}

func TestNormalizeHelpers(t *testing.T) {
	ts, err := New([][]float64{{0}, {10}}, [][]float64{{-1}, {1}})
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{0.25}, ts.NormalizeInput([]float64{2.5}), 1e-12)
	assert.InDeltaSlice(t, []float64{0}, ts.DenormalizeOutput([]float64{0.5}), 1e-12)
}

func TestSplit(t *testing.T) {
	ts, err := New(
		[][]float64{{0}, {1}, {2}, {3}, {4}},
		[][]float64{{10}, {11}, {12}, {13}, {14}},
	)
	require.NoError(t, err)
	ts.Normalize()

	train, validation, err := ts.Split(0.6)
	require.NoError(t, err)
	assert.Equal(t, 3, train.Len())
	assert.Equal(t, 2, validation.Len())
	assert.True(t, validation.IsNormalized())
	assert.Equal(t, []float64{4}, validation.InputMax())

	in, out := validation.Example(1)
	assert.Equal(t, []float64{1}, in)
	assert.Equal(t, []float64{14}, validation.DenormalizeOutput(out))

	for _, ratio := range []float64{0, 1, 0.1, -2} {
		_, _, err := ts.Split(ratio)
		assert.ErrorIs(t, err, ErrEmpty, "ratio %g", ratio)
	}
}

func TestSplitPartsAreIndependent(t *testing.T) {
	ts, err := New(
		[][]float64{{0}, {10}, {20}, {30}},
		[][]float64{{0}, {1}, {2}, {3}},
	)
	require.NoError(t, err)

	_, validation, err := ts.Split(0.5)
	require.NoError(t, err)
	validation.Normalize()
	in, _ := validation.Example(1)
	assert.Equal(t, []float64{1}, in)

	assert.False(t, ts.IsNormalized())
	in, out := ts.Example(3)
	assert.Equal(t, []float64{30}, in)
	assert.Equal(t, []float64{3}, out)

	ts.Normalize()
	in, _ = ts.Example(3)
	assert.Equal(t, []float64{1}, in)
}
