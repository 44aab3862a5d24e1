// Command rprop trains a multilayer perceptron with resilient propagation
// on a pair of comma separated files.
//
//	rprop -topology 2,4,1 -in xor.in -out xor.out -weights-out xor.weights
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoRprop/internal/activations"
	"github.com/FlavioCFOliveira/GoRprop/internal/dataset"
	"github.com/FlavioCFOliveira/GoRprop/internal/loss"
	"github.com/FlavioCFOliveira/GoRprop/internal/net"
	"github.com/FlavioCFOliveira/GoRprop/internal/opt"
)

type options struct {
	topology   string
	inPath     string
	outPath    string
	activation string
	init       string
	minWeight  float64
	maxWeight  float64
	variant    string
	errorKind  string
	epochs     int
	report     int
	flatSpot   bool
	normalize  bool
	shuffle    bool
	seed       int64
	validation float64
	weightsIn  string
	weightsOut string
	checkpoint string
	logCSV     string
	verbose    bool
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.topology, "topology", "", "comma separated layer sizes, e.g. 2,4,1")
	flag.StringVar(&o.inPath, "in", "", "input data file (first row is a header)")
	flag.StringVar(&o.outPath, "out", "", "output data file (first row is a header)")
	flag.StringVar(&o.activation, "activation", "sigmoid", "sigmoid, tanh, elliott or elliott-symmetric")
	flag.StringVar(&o.init, "init", "nguyen-widrow", "weight initialization: uniform or nguyen-widrow")
	flag.Float64Var(&o.minWeight, "min-weight", -1, "lower bound of initial weights")
	flag.Float64Var(&o.maxWeight, "max-weight", 1, "upper bound of initial weights")
	flag.StringVar(&o.variant, "variant", "irprop+", "irprop+, irprop-, rprop+ or rprop-")
	flag.StringVar(&o.errorKind, "error", "mse", "reported error: mse, rmse or sse")
	flag.IntVar(&o.epochs, "epochs", 0, "maximum number of epochs (0 = until converged)")
	flag.IntVar(&o.report, "report", 1000, "log progress every N epochs (0 = never)")
	flag.BoolVar(&o.flatSpot, "flat-spot", false, "add the flat-spot correction to derivatives")
	flag.BoolVar(&o.normalize, "normalize", false, "min-max normalize the training data")
	flag.BoolVar(&o.shuffle, "shuffle", false, "visit examples in random order each epoch")
	flag.Int64Var(&o.seed, "seed", 0, "random seed (0 = time based)")
	flag.Float64Var(&o.validation, "validation", 0, "train on this fraction of the examples and validate on the rest (0 = off)")
	flag.StringVar(&o.weightsIn, "weights-in", "", "start from the weights in this file")
	flag.StringVar(&o.weightsOut, "weights-out", "", "write the trained weights to this file")
	flag.StringVar(&o.checkpoint, "checkpoint", "", "save weights here whenever the error improves")
	flag.StringVar(&o.logCSV, "log-csv", "", "write per-epoch errors to this CSV file")
	flag.BoolVar(&o.verbose, "v", false, "debug logging")
	flag.Parse()
	return o
}

func parseTopology(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	sizes := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, errors.Wrapf(err, "bad layer size %q", p)
		}
		sizes[i] = v
	}
	return sizes, nil
}

// buildNetwork returns a fresh network, one inferred from -weights-in, or a
// fresh topology filled strictly from -weights-in.
func buildNetwork(o options, sizes []int, rng *rand.Rand, log *slog.Logger) (*net.Network, error) {
	if sizes == nil {
		if o.weightsIn == "" {
			return nil, errors.New("either -topology or -weights-in is required")
		}
		n, err := net.LoadWeights(o.weightsIn)
		if err != nil {
			return nil, err
		}
		if net.AmbiguousTopology(n.Sizes()) {
			log.Warn("topology inferred from weight file may merge layers of equal width; pass -topology to be sure",
				"file", o.weightsIn, "topology", n.Sizes())
		}
		return n, nil
	}

	var init net.Initializer
	switch o.init {
	case "nguyen-widrow":
		init = net.InitNguyenWidrow
	case "uniform":
		init = net.InitUniform
	default:
		return nil, errors.Errorf("unknown initialization %q", o.init)
	}

	n, err := net.New(sizes, o.minWeight, o.maxWeight, init, rng)
	if err != nil {
		return nil, err
	}
	if o.weightsIn != "" {
		if err := n.LoadWeightsInto(o.weightsIn); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func run(o options, log *slog.Logger) error {
	if o.inPath == "" || o.outPath == "" {
		return errors.New("-in and -out are required")
	}
	sizes, err := parseTopology(o.topology)
	if err != nil {
		return err
	}
	kind, err := activations.Parse(o.activation)
	if err != nil {
		return err
	}
	act, err := activations.New(kind)
	if err != nil {
		return err
	}
	variant, err := opt.ParseVariant(o.variant)
	if err != nil {
		return err
	}
	errorKind, err := loss.ParseErrorKind(o.errorKind)
	if err != nil {
		return err
	}

	seed := o.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	ts, err := dataset.Load(o.inPath, o.outPath)
	if err != nil {
		return err
	}
	log.Debug("training set loaded",
		"examples", ts.Len(),
		"inputs", strings.Join(ts.InputHeader(), ","),
		"outputs", strings.Join(ts.OutputHeader(), ","))
	if o.normalize {
		ts.Normalize()
	}

	train, validation := ts, (*dataset.TrainingSet)(nil)
	if o.validation > 0 {
		if train, validation, err = ts.Split(o.validation); err != nil {
			return err
		}
		log.Info("holding out validation examples", "train", train.Len(), "validation", validation.Len())
	}

	n, err := buildNetwork(o, sizes, rng, log)
	if err != nil {
		return err
	}
	log.Info("network ready", "topology", n.Sizes(), "weights", n.NumWeights(), "seed", seed)

	cfg := net.DefaultTrainConfig()
	cfg.MaxEpochs = o.epochs
	cfg.ReportEvery = o.report
	cfg.ErrorKind = errorKind
	cfg.Shuffle = o.shuffle
	cfg.Rand = rng
	cfg.Logger = log

	var ctxOpts []net.ContextOption
	if o.flatSpot {
		ctxOpts = append(ctxOpts, net.WithFlatSpot())
	}
	trainer := net.NewTrainer(n, act, opt.NewRProp(variant), cfg, ctxOpts...)

	var callbacks []net.Callback
	var csvLogger *net.CSVLogger
	if o.logCSV != "" {
		csvLogger = net.NewCSVLogger(o.logCSV, false)
		callbacks = append(callbacks, csvLogger)
	}
	var checkpoint *net.ModelCheckpoint
	if o.checkpoint != "" {
		checkpoint = net.NewModelCheckpoint(o.checkpoint)
		checkpoint.Log = log
		callbacks = append(callbacks, checkpoint)
	}

	res, err := trainer.Train(train, callbacks...)
	if err != nil {
		return err
	}
	if csvLogger != nil && csvLogger.Err != nil {
		return csvLogger.Err
	}
	if checkpoint != nil && checkpoint.Err != nil {
		return checkpoint.Err
	}

	fmt.Printf("Final error rate (%v): %g after %d epochs (%v)\n", errorKind, res.BestError, res.Epochs, res.State)
	if validation != nil {
		verr, err := trainer.Evaluate(validation, errorKind)
		if err != nil {
			return err
		}
		fmt.Printf("Validation error rate (%v): %g\n", errorKind, verr)
	}

	ctx := trainer.Context()
	for i := 0; i < train.Len(); i++ {
		input, output := train.Example(i)
		predicted := ctx.Predict(input)
		if train.IsNormalized() {
			predicted = train.DenormalizeOutput(predicted)
			output = train.DenormalizeOutput(output)
		}
		fmt.Printf("%d: predicted %s, target %s\n", i+1, formatVector(predicted), formatVector(output))
	}

	if o.weightsOut != "" {
		if err := n.SaveWeights(o.weightsOut); err != nil {
			return err
		}
		log.Info("weights saved", "file", o.weightsOut)
	}
	return nil
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', 6, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func main() {
	o := parseFlags()

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(o, log); err != nil {
		if o.verbose {
			fmt.Fprintf(os.Stderr, "%+v\n", err)
		}
		log.Error("rprop failed", "err", err)
		os.Exit(1)
	}
}
