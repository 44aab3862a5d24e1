package net

import (
	"log/slog"
	"math"
)

// Callback defines the interface for training callbacks.
type Callback interface {
	OnTrainBegin(n *Network)
	OnEpochEnd(epoch int, err float64, n *Network)
	OnTrainEnd(n *Network, res Result)
}

// Stopper is implemented by callbacks that can end training early. Stop is
// consulted after every epoch.
type Stopper interface {
	Stop() bool
}

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (BaseCallback) OnTrainBegin(n *Network)                       {}
func (BaseCallback) OnEpochEnd(epoch int, err float64, n *Network) {}
func (BaseCallback) OnTrainEnd(n *Network, res Result)             {}

// EarlyStopping stops training when the error has not improved by more
// than Threshold for Patience epochs.
type EarlyStopping struct {
	BaseCallback
	Patience  int
	Threshold float64

	bestErr      float64
	numBadEpochs int
	Stopped      bool
}

func NewEarlyStopping(patience int, threshold float64) *EarlyStopping {
	return &EarlyStopping{
		Patience:  patience,
		Threshold: threshold,
		bestErr:   math.MaxFloat64,
	}
}

func (c *EarlyStopping) OnEpochEnd(epoch int, err float64, n *Network) {
	if err < c.bestErr-c.Threshold {
		c.bestErr = err
		c.numBadEpochs = 0
	} else {
		c.numBadEpochs++
	}

	if c.numBadEpochs >= c.Patience {
		c.Stopped = true
	}
}

func (c *EarlyStopping) Stop() bool {
	return c.Stopped
}

// ModelCheckpoint saves the weights whenever an epoch sets a new best
// error. Err holds the last save failure, if any.
type ModelCheckpoint struct {
	BaseCallback
	Filename string
	Log      *slog.Logger

	bestErr float64
	Err     error
}

func NewModelCheckpoint(filename string) *ModelCheckpoint {
	return &ModelCheckpoint{
		Filename: filename,
		bestErr:  math.MaxFloat64,
	}
}

func (c *ModelCheckpoint) OnEpochEnd(epoch int, err float64, n *Network) {
	if err >= c.bestErr {
		return
	}
	c.bestErr = err

	log := c.Log
	if log == nil {
		log = slog.Default()
	}
	if saveErr := n.SaveWeights(c.Filename); saveErr != nil {
		c.Err = saveErr
		log.Error("checkpoint failed", "file", c.Filename, "err", saveErr)
		return
	}
	log.Debug("checkpoint saved", "file", c.Filename, "epoch", epoch, "error", err)
}

// Logger logs training progress every Interval epochs.
type Logger struct {
	BaseCallback
	Interval int
	Log      *slog.Logger
}

func (c *Logger) logger() *slog.Logger {
	if c.Log == nil {
		return slog.Default()
	}
	return c.Log
}

func (c *Logger) OnEpochEnd(epoch int, err float64, n *Network) {
	if c.Interval > 0 && epoch%c.Interval == 0 {
		c.logger().Info("epoch", "epoch", epoch, "error", err)
	}
}

func (c *Logger) OnTrainEnd(n *Network, res Result) {
	c.logger().Info("training finished",
		"state", res.State.String(),
		"epochs", res.Epochs,
		"best_error", res.BestError,
		"last_error", res.LastError)
}
