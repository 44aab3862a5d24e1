package net

import (
	"encoding/csv"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// CSVLogger logs training progress to a CSV file.
type CSVLogger struct {
	BaseCallback
	Filename string
	Append   bool

	file   *os.File
	writer *csv.Writer
	start  time.Time
	// Err holds the first I/O failure; logging stops after it.
	Err error
}

// NewCSVLogger creates a new CSVLogger.
func NewCSVLogger(filename string, append bool) *CSVLogger {
	return &CSVLogger{
		Filename: filename,
		Append:   append,
	}
}

func (c *CSVLogger) fail(err error) {
	if c.Err == nil {
		c.Err = err
		slog.Default().Error("csv logger", "file", c.Filename, "err", err)
	}
}

func (c *CSVLogger) OnTrainBegin(n *Network) {
	mode := os.O_CREATE | os.O_WRONLY
	if c.Append {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}

	file, err := os.OpenFile(c.Filename, mode, 0644)
	if err != nil {
		c.fail(errors.Wrapf(err, "failed to open %s", c.Filename))
		return
	}
	c.file = file
	c.writer = csv.NewWriter(file)
	c.start = time.Now()

	// Write header if not appending or if file is empty
	info, err := file.Stat()
	if err == nil && (info.Size() == 0 || !c.Append) {
		c.write([]string{"epoch", "error", "time_seconds"})
	}
}

func (c *CSVLogger) write(record []string) {
	if err := c.writer.Write(record); err != nil {
		c.fail(errors.Wrap(err, "failed to write record"))
		return
	}
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		c.fail(errors.Wrap(err, "failed to flush record"))
	}
}

func (c *CSVLogger) OnEpochEnd(epoch int, err float64, n *Network) {
	if c.writer == nil || c.Err != nil {
		return
	}

	elapsed := time.Since(c.start).Seconds()
	c.write([]string{
		strconv.Itoa(epoch),
		strconv.FormatFloat(err, 'g', -1, 64),
		strconv.FormatFloat(elapsed, 'f', 2, 64),
	})
}

func (c *CSVLogger) OnTrainEnd(n *Network, res Result) {
	if c.file != nil {
		c.writer.Flush()
		if err := c.file.Close(); err != nil {
			c.fail(errors.Wrap(err, "failed to close"))
		}
		c.file = nil
		c.writer = nil
	}
}
