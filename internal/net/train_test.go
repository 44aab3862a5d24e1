package net

import (
	"bytes"
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/GoRprop/internal/activations"
	"github.com/FlavioCFOliveira/GoRprop/internal/dataset"
	"github.com/FlavioCFOliveira/GoRprop/internal/loss"
	"github.com/FlavioCFOliveira/GoRprop/internal/opt"
)

func xorSet(t *testing.T) *dataset.TrainingSet {
	t.Helper()
	ts, err := dataset.New(
		[][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}},
		[][]float64{{0}, {1}, {1}, {0}},
	)
	require.NoError(t, err)
	return ts
}

// zeroSet has zero inputs and targets, so a tanh network with any weights
// has zero error and zero gradient.
func zeroSet(t *testing.T) *dataset.TrainingSet {
	t.Helper()
	ts, err := dataset.New([][]float64{{0, 0}, {0, 0}}, [][]float64{{0}, {0}})
	require.NoError(t, err)
	return ts
}

// epochCounter records every callback invocation.
type epochCounter struct {
	BaseCallback
	begun  int
	epochs []int
	errs   []float64
	ended  *Result
}

func (c *epochCounter) OnTrainBegin(n *Network) { c.begun++ }

func (c *epochCounter) OnEpochEnd(epoch int, err float64, n *Network) {
	c.epochs = append(c.epochs, epoch)
	c.errs = append(c.errs, err)
}

func (c *epochCounter) OnTrainEnd(n *Network, res Result) { c.ended = &res }

func quietConfig() TrainConfig {
	cfg := DefaultTrainConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return cfg
}

// TestTrainXOR trains XOR with Nguyen-Widrow weights and iRPROP+. The
// outcome depends on the random start, so several seeds are tried.
func TestTrainXOR(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical convergence test")
	}

	ts := xorSet(t)
	best := 1.0
	for seed := int64(1); seed <= 10; seed++ {
		for _, opts := range [][]ContextOption{nil, {WithFlatSpot()}} {
			n, err := New([]int{2, 4, 1}, -1, 1, InitNguyenWidrow, newRand(seed))
			require.NoError(t, err)

			cfg := quietConfig()
			cfg.MaxEpochs = 20000
			trainer := NewTrainer(n, activations.Sigmoid{}, opt.NewRProp(opt.IRPropPlus), cfg, opts...)
			res, err := trainer.Train(ts)
			require.NoError(t, err)
			require.NotEqual(t, StateRunning, res.State)

			if res.BestError < best {
				best = res.BestError
			}
			if res.BestError < 0.01 {
				return
			}
		}
	}
	t.Fatalf("no seed reached MSE < 0.01, best was %v", best)
}

// TestTrainErrorDecreases tests that training lowers the error of a fixed
// start on XOR.
func TestTrainErrorDecreases(t *testing.T) {
	ts := xorSet(t)
	n, err := New([]int{2, 4, 1}, -1, 1, InitNguyenWidrow, newRand(3))
	require.NoError(t, err)

	cfg := quietConfig()
	cfg.MaxEpochs = 500
	trainer := NewTrainer(n, activations.Sigmoid{}, opt.NewRProp(opt.IRPropPlus), cfg)

	before, err := trainer.Evaluate(ts, loss.MeanSquare)
	require.NoError(t, err)
	res, err := trainer.Train(ts)
	require.NoError(t, err)
	after, err := trainer.Evaluate(ts, loss.MeanSquare)
	require.NoError(t, err)

	assert.Less(t, res.BestError, before)
	assert.Less(t, after, before)
}

// TestTrainRejectsDimensionMismatch tests that no epoch runs on bad input.
func TestTrainRejectsDimensionMismatch(t *testing.T) {
	n, err := New([]int{3, 2, 1}, -1, 1, InitUniform, newRand(1))
	require.NoError(t, err)
	trainer := NewTrainer(n, activations.Sigmoid{}, opt.NewRProp(opt.IRPropPlus), quietConfig())

	counter := &epochCounter{}
	_, err = trainer.Train(xorSet(t), counter)
	require.ErrorIs(t, err, dataset.ErrDimensionMismatch)
	assert.Zero(t, counter.begun)
	assert.Empty(t, counter.epochs)
}

func TestTrainShuffleNeedsRand(t *testing.T) {
	n, err := New([]int{2, 2, 1}, -1, 1, InitUniform, newRand(1))
	require.NoError(t, err)
	cfg := quietConfig()
	cfg.Shuffle = true
	trainer := NewTrainer(n, activations.Sigmoid{}, opt.NewRProp(opt.IRPropPlus), cfg)

	_, err = trainer.Train(xorSet(t))
	require.Error(t, err)
}

// TestTrainMaxEpochs tests the epoch cap and the callback sequence.
func TestTrainMaxEpochs(t *testing.T) {
	n, err := New([]int{2, 4, 1}, -1, 1, InitNguyenWidrow, newRand(8))
	require.NoError(t, err)
	cfg := quietConfig()
	cfg.MaxEpochs = 5
	cfg.Shuffle = true
	cfg.Rand = newRand(8)
	trainer := NewTrainer(n, activations.Sigmoid{}, opt.NewRProp(opt.IRPropPlus), cfg)

	counter := &epochCounter{}
	res, err := trainer.Train(xorSet(t), counter)
	require.NoError(t, err)

	assert.Equal(t, StateMaxEpochs, res.State)
	assert.Equal(t, 5, res.Epochs)
	assert.Equal(t, 1, counter.begun)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, counter.epochs)
	require.NotNil(t, counter.ended)
	assert.Equal(t, res, *counter.ended)
	assert.Equal(t, counter.errs[4], res.LastError)
	for _, e := range counter.errs {
		assert.GreaterOrEqual(t, e, res.BestError)
	}
}

// TestTrainConverges tests the plateau rule: more than PlateauEpochs
// consecutive epochs within MinImprovement of the best error.
func TestTrainConverges(t *testing.T) {
	n, err := New([]int{2, 3, 1}, -1, 1, InitUniform, newRand(2))
	require.NoError(t, err)
	trainer := NewTrainer(n, activations.Tanh{}, opt.NewRProp(opt.IRPropPlus), quietConfig())

	res, err := trainer.Train(zeroSet(t))
	require.NoError(t, err)

	assert.Equal(t, StateConverged, res.State)
	// the first epoch sets the best, the next 101 are plateau epochs
	assert.Equal(t, 102, res.Epochs)
	assert.Zero(t, res.BestError)
}

// TestTrainEarlyStopping tests that a Stopper ends the run between epochs.
func TestTrainEarlyStopping(t *testing.T) {
	n, err := New([]int{2, 3, 1}, -1, 1, InitUniform, newRand(2))
	require.NoError(t, err)
	trainer := NewTrainer(n, activations.Tanh{}, opt.NewRProp(opt.IRPropPlus), quietConfig())

	stopper := NewEarlyStopping(3, 0)
	res, err := trainer.Train(zeroSet(t), stopper)
	require.NoError(t, err)

	assert.Equal(t, StateStopped, res.State)
	assert.Equal(t, 4, res.Epochs)
	assert.True(t, stopper.Stopped)
}

// TestTrainReportsProgress tests periodic progress logging.
func TestTrainReportsProgress(t *testing.T) {
	n, err := New([]int{2, 4, 1}, -1, 1, InitNguyenWidrow, newRand(5))
	require.NoError(t, err)

	var buf bytes.Buffer
	cfg := DefaultTrainConfig()
	cfg.MaxEpochs = 10
	cfg.ReportEvery = 5
	cfg.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	trainer := NewTrainer(n, activations.Sigmoid{}, opt.NewRProp(opt.IRPropPlus), cfg)

	_, err = trainer.Train(xorSet(t))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "epoch=5")
	assert.Contains(t, out, "epoch=10")
	assert.NotContains(t, out, "epoch=3 ")
	assert.Contains(t, out, "training finished")
}

func TestEvaluate(t *testing.T) {
	n, err := New([]int{2, 3, 1}, 0, 0, InitUniform, newRand(1))
	require.NoError(t, err)
	trainer := NewTrainer(n, activations.Tanh{}, opt.NewRProp(opt.IRPropPlus), quietConfig())

	// all-zero weights output tanh(0) = 0 for every example
	mse, err := trainer.Evaluate(xorSet(t), loss.MeanSquare)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, mse, 1e-15)

	sse, err := trainer.Evaluate(xorSet(t), loss.SumOfSquares)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sse, 1e-15)
}

func TestCSVLogger(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "log.csv")

	logger := NewCSVLogger(filename, false)
	n := fixedNetwork(t)

	logger.OnTrainBegin(n)
	logger.OnEpochEnd(1, 0.5, n)
	logger.OnEpochEnd(2, 0.25, n)
	logger.OnTrainEnd(n, Result{})
	require.NoError(t, logger.Err)

	file, err := os.Open(filename)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"epoch", "error", "time_seconds"}, records[0])
	assert.Equal(t, "2", records[2][0])
	assert.Equal(t, "0.25", records[2][1])
}

func TestModelCheckpoint(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "best.csv")
	n, err := New([]int{2, 4, 1}, -1, 1, InitNguyenWidrow, newRand(6))
	require.NoError(t, err)

	cfg := quietConfig()
	cfg.MaxEpochs = 50
	trainer := NewTrainer(n, activations.Sigmoid{}, opt.NewRProp(opt.IRPropPlus), cfg)
	checkpoint := NewModelCheckpoint(filename)
	checkpoint.Log = cfg.Logger

	_, err = trainer.Train(xorSet(t), checkpoint)
	require.NoError(t, err)
	require.NoError(t, checkpoint.Err)

	saved, err := LoadWeights(filename)
	require.NoError(t, err)
	assert.Equal(t, n.Sizes(), saved.Sizes())
}

// TestTrainLeavesCallbackSliceAlone tests that the progress logger is not
// written into spare capacity of the caller's slice.
func TestTrainLeavesCallbackSliceAlone(t *testing.T) {
	n, err := New([]int{2, 2, 1}, -1, 1, InitUniform, newRand(4))
	require.NoError(t, err)
	cfg := quietConfig()
	cfg.MaxEpochs = 3
	cfg.ReportEvery = 1
	trainer := NewTrainer(n, activations.Sigmoid{}, opt.NewRProp(opt.IRPropPlus), cfg)

	counter := &epochCounter{}
	callbacks := make([]Callback, 1, 4)
	callbacks[0] = counter

	_, err = trainer.Train(xorSet(t), callbacks...)
	require.NoError(t, err)
	assert.Len(t, counter.epochs, 3)
	assert.Nil(t, callbacks[:2][1])
}
