// Command evaluate scores prediction maps against reference maps and prints a JSON report.
//
// Predictions are read from a directory of map images, or produced by running an
// ONNX model over a directory of input images. Files are paired with references
// by name.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nvr-ai/go-daylight/config"
	"github.com/nvr-ai/go-daylight/evaluation"
	"github.com/nvr-ai/go-daylight/inference"
	"github.com/pkg/errors"
)

func main() {
	var (
		configPath      string
		predictionDir   string
		referenceDir    string
		modelPath       string
		inputDir        string
		outputPath      string
		savePredictions string
		workers         int
		keepBins        bool
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML configuration (defaults are used when empty)")
	flag.StringVar(&predictionDir, "predictions", "", "Directory of prediction maps")
	flag.StringVar(&referenceDir, "references", "", "Directory of reference maps")
	flag.StringVar(&modelPath, "model", "", "ONNX model to produce predictions from -inputs")
	flag.StringVar(&inputDir, "inputs", "", "Directory of model input images (requires -model)")
	flag.StringVar(&outputPath, "output", "", "Write the report to this file instead of stdout")
	flag.StringVar(&savePredictions, "save-predictions", "", "Directory to write model predictions (16-bit PNG) and comparison images to")
	flag.IntVar(&workers, "workers", 0, "Number of concurrent workers (overrides config)")
	flag.BoolVar(&keepBins, "bins", false, "Include per-bin scores for every sample")
	flag.Parse()

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			log.Fatalf("❌ %v", err)
		}
	}
	if workers > 0 {
		cfg.Evaluation.Workers = workers
	}
	if keepBins {
		cfg.Evaluation.KeepBins = true
	}
	if modelPath != "" {
		cfg.Model.Path = modelPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, runArgs{
		predictionDir:   predictionDir,
		referenceDir:    referenceDir,
		inputDir:        inputDir,
		outputPath:      outputPath,
		savePredictions: savePredictions,
	}); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

type runArgs struct {
	predictionDir   string
	referenceDir    string
	inputDir        string
	outputPath      string
	savePredictions string
}

func run(ctx context.Context, cfg config.Config, args runArgs) error {
	if args.referenceDir == "" {
		return errors.New("-references is required")
	}

	evaluator, err := evaluation.NewEvaluator(cfg.Evaluation)
	if err != nil {
		return err
	}

	var samples []evaluation.Sample
	switch {
	case cfg.Model.Path != "":
		if args.inputDir == "" {
			return errors.New("-inputs is required with -model")
		}
		predictor, err := inference.NewPredictor(cfg.Model)
		if err != nil {
			return err
		}
		defer predictor.Close()

		samples, err = predictSamples(ctx, predictor, cfg, args.inputDir, args.referenceDir, args.savePredictions)
		if err != nil {
			return err
		}
	case args.predictionDir != "":
		samples, err = loadSamples(cfg, args.predictionDir, args.referenceDir)
		if err != nil {
			return err
		}
	default:
		return errors.New("either -predictions or -model with -inputs is required")
	}

	report, err := evaluator.Evaluate(ctx, samples)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if args.outputPath != "" {
		f, err := os.Create(args.outputPath)
		if err != nil {
			return errors.Wrap(err, "failed to create report")
		}
		defer f.Close()
		out = f
	}
	return report.WriteJSON(out)
}
