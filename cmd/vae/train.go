package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/born-ml/vae/internal/autodiff"
	"github.com/born-ml/vae/internal/backend/cpu"
	"github.com/born-ml/vae/internal/config"
	"github.com/born-ml/vae/internal/dataset"
	"github.com/born-ml/vae/internal/report"
	"github.com/born-ml/vae/internal/trainer"
	"github.com/born-ml/vae/internal/vae"
)

// Synthetic split sizes used when max-samples is not set.
const (
	syntheticTrain = 512
	syntheticEval  = 128
)

// previewCount is the number of images per row of the preview grid.
const previewCount = 8

// previewScale is the upscale factor of the preview grid.
const previewScale = 4

type backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newTrainCmd() *cobra.Command {
	var (
		configPath string
		flags      config.Config
		estimator  string
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a VAE, then evaluate it on the test split",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Config{}
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			flags.Model.KLEstimator = vae.KLEstimator(estimator)
			applyFlags(cmd.Flags(), &cfg, flags)

			cfg = cfg.WithDefaults()
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runTrain(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML configuration file")
	f.IntVar(&flags.Model.HiddenDim, "hidden-dim", vae.DefaultHiddenDim, "Hidden layer width")
	f.IntVar(&flags.Model.LatentDim, "latent-dim", vae.DefaultLatentDim, "Latent dimension")
	f.IntVar(&flags.Model.InputWidth, "input-width", vae.DefaultInputWidth, "Image width")
	f.IntVar(&flags.Model.InputHeight, "input-height", vae.DefaultInputHeight, "Image height")
	f.IntVar(&flags.Model.BatchSize, "batch-size", vae.DefaultBatchSize, "Batch size")
	f.StringVar(&estimator, "kl-estimator", string(vae.KLMonteCarlo), "KL estimator: monte_carlo or analytic")
	f.IntVar(&flags.Epochs, "epochs", config.DefaultEpochs, "Number of training epochs")
	f.Int64Var(&flags.Seed, "seed", config.DefaultSeed, "Random seed")
	f.StringVar(&flags.DataDir, "data", config.DefaultDataDir, "Directory containing MNIST idx files")
	f.IntVar(&flags.MaxSamples, "max-samples", 0, "Max samples per split (0 = all)")
	f.BoolVar(&flags.Synthetic, "synthetic", false, "Use generated images instead of MNIST files")
	f.StringVar(&flags.SamplesOut, "samples-out", "", "Write a PNG of reconstructions and samples to this path")
	f.StringVar(&flags.CheckpointIn, "checkpoint-in", "", "Initialize weights from this SafeTensors file")
	f.StringVar(&flags.CheckpointOut, "checkpoint-out", "", "Save trained weights to this SafeTensors file")
	f.StringVar(&flags.LogLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	f.IntVar(&flags.LimitTrainBatches, "limit-train-batches", 0, "Max training batches per epoch (0 = all)")
	f.IntVar(&flags.LimitEvalBatches, "limit-eval-batches", 0, "Max validation and test batches (0 = all)")

	return cmd
}

// applyFlags copies explicitly set flags over the file configuration.
func applyFlags(set *pflag.FlagSet, cfg *config.Config, flags config.Config) {
	set.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "hidden-dim":
			cfg.Model.HiddenDim = flags.Model.HiddenDim
		case "latent-dim":
			cfg.Model.LatentDim = flags.Model.LatentDim
		case "input-width":
			cfg.Model.InputWidth = flags.Model.InputWidth
		case "input-height":
			cfg.Model.InputHeight = flags.Model.InputHeight
		case "batch-size":
			cfg.Model.BatchSize = flags.Model.BatchSize
		case "kl-estimator":
			cfg.Model.KLEstimator = flags.Model.KLEstimator
		case "epochs":
			cfg.Epochs = flags.Epochs
		case "seed":
			cfg.Seed = flags.Seed
		case "data":
			cfg.DataDir = flags.DataDir
		case "max-samples":
			cfg.MaxSamples = flags.MaxSamples
		case "synthetic":
			cfg.Synthetic = flags.Synthetic
		case "samples-out":
			cfg.SamplesOut = flags.SamplesOut
		case "checkpoint-in":
			cfg.CheckpointIn = flags.CheckpointIn
		case "checkpoint-out":
			cfg.CheckpointOut = flags.CheckpointOut
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		case "limit-train-batches":
			cfg.LimitTrainBatches = flags.LimitTrainBatches
		case "limit-eval-batches":
			cfg.LimitEvalBatches = flags.LimitEvalBatches
		}
	})
}

// runTrain prepares the data, fits the model, tests it and reports.
func runTrain(ctx context.Context, cfg config.Config, out, logOut io.Writer) error {
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // reproducible runs
	b := autodiff.New(cpu.New())

	splits, err := prepare(cfg, rng)
	if err != nil {
		return err
	}
	logger.Info("data prepared",
		"synthetic", cfg.Synthetic,
		"train", splits[dataset.SplitTrain].Len(),
		"val", splits[dataset.SplitValidation].Len(),
		"test", splits[dataset.SplitTest].Len(),
	)

	train, err := dataset.NewLoader(splits[dataset.SplitTrain], cfg.Model.BatchSize, cfg.ShuffleEnabled(), rng, b)
	if err != nil {
		return err
	}
	val, err := dataset.NewLoader(splits[dataset.SplitValidation], cfg.Model.BatchSize, false, nil, b)
	if err != nil {
		return err
	}
	test, err := dataset.NewLoader(splits[dataset.SplitTest], cfg.Model.BatchSize, false, nil, b)
	if err != nil {
		return err
	}

	model, err := vae.New(cfg.Model, b, rng)
	if err != nil {
		return err
	}
	t := trainer.New(cfg, model, b, logger)
	if cfg.CheckpointIn != "" {
		if err := t.LoadCheckpoint(cfg.CheckpointIn); err != nil {
			return err
		}
	}

	history, err := t.Fit(ctx, train, val)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}
	summary, err := t.Test(ctx, test)
	if err != nil {
		return fmt.Errorf("test: %w", err)
	}

	report.WriteTable(out, history, &summary)

	if cfg.CheckpointOut != "" {
		if err := t.SaveCheckpoint(cfg.CheckpointOut, history); err != nil {
			return err
		}
	}

	if cfg.SamplesOut != "" {
		if err := writePreview(t, test, cfg.SamplesOut); err != nil {
			return err
		}
		logger.Info("preview written", "path", cfg.SamplesOut)
	}
	return nil
}

func prepare(cfg config.Config, rng *rand.Rand) (map[dataset.Split]*dataset.Dataset, error) {
	splits := make(map[dataset.Split]*dataset.Dataset, 3)
	w, h := cfg.Model.InputWidth, cfg.Model.InputHeight

	if cfg.Synthetic {
		train, eval := syntheticTrain, syntheticEval
		if cfg.MaxSamples > 0 {
			train, eval = cfg.MaxSamples, cfg.MaxSamples
		}
		splits[dataset.SplitTrain] = dataset.Synthetic(train, w, h, rng)
		splits[dataset.SplitValidation] = dataset.Synthetic(eval, w, h, rng)
		splits[dataset.SplitTest] = dataset.Synthetic(eval, w, h, rng)
		return splits, nil
	}

	for _, split := range []dataset.Split{dataset.SplitTrain, dataset.SplitValidation, dataset.SplitTest} {
		ds, err := dataset.LoadMNIST(cfg.DataDir, split, cfg.MaxSamples)
		if err != nil {
			return nil, err
		}
		if ds.Width != w || ds.Height != h {
			return nil, fmt.Errorf("%s images are %dx%d but the model expects %dx%d", split, ds.Width, ds.Height, w, h)
		}
		splits[split] = ds
	}
	return splits, nil
}

func writePreview(t *trainer.Trainer[*cpu.CPUBackend], test *dataset.Loader[backend], path string) error {
	for batch := range test.Batches() {
		p, err := t.Preview(batch, previewCount)
		if err != nil {
			return err
		}
		return report.SavePreview(path, p, previewScale)
	}
	return nil
}
