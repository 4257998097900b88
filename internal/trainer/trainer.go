// Package trainer runs the fit, validate and test loops of a VAE.
package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/born-ml/vae/internal/autodiff"
	"github.com/born-ml/vae/internal/config"
	"github.com/born-ml/vae/internal/dataset"
	"github.com/born-ml/vae/internal/nn"
	"github.com/born-ml/vae/internal/optim"
	"github.com/born-ml/vae/internal/tensor"
	"github.com/born-ml/vae/internal/vae"
)

// logEvery is the number of training batches between progress logs.
const logEvery = 50

// EpochResult holds the aggregated metrics of one training epoch and the
// validation pass that followed it.
type EpochResult struct {
	Epoch    int
	Train    vae.EpochSummary
	Val      vae.EpochSummary
	Duration time.Duration
}

// History is the per-epoch record of a Fit call.
type History struct {
	RunID  string
	Epochs []EpochResult
}

// Last returns the final epoch, or false if no epoch completed.
func (h History) Last() (EpochResult, bool) {
	if len(h.Epochs) == 0 {
		return EpochResult{}, false
	}
	return h.Epochs[len(h.Epochs)-1], true
}

// Trainer drives a VAE on an autodiff backend wrapping B.
type Trainer[B tensor.Backend] struct {
	cfg       config.Config
	model     *vae.VAE[*autodiff.AutodiffBackend[B]]
	backend   *autodiff.AutodiffBackend[B]
	optimizer *optim.Adam[*autodiff.AutodiffBackend[B]]
	rng       *rand.Rand
	logger    *slog.Logger
	runID     string
}

// New creates a Trainer with an Adam optimizer over the model parameters.
// A nil logger discards output.
func New[B tensor.Backend](
	cfg config.Config,
	model *vae.VAE[*autodiff.AutodiffBackend[B]],
	backend *autodiff.AutodiffBackend[B],
	logger *slog.Logger,
) *Trainer[B] {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	runID := uuid.NewString()
	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{
		LR: model.Config().LearningRate(),
	})

	return &Trainer[B]{
		cfg:       cfg,
		model:     model,
		backend:   backend,
		optimizer: optimizer,
		rng:       rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec // reproducible sampling
		logger:    logger.With("run", runID),
		runID:     runID,
	}
}

// RunID returns the unique id of this trainer's run.
func (t *Trainer[B]) RunID() string {
	return t.runID
}

// Model returns the model being trained.
func (t *Trainer[B]) Model() *vae.VAE[*autodiff.AutodiffBackend[B]] {
	return t.model
}

// Fit trains for the configured number of epochs, validating after each.
// It stops early with ctx.Err() when ctx is cancelled between batches.
func (t *Trainer[B]) Fit(ctx context.Context, train, val *dataset.Loader[*autodiff.AutodiffBackend[B]]) (History, error) {
	history := History{RunID: t.runID}

	t.logger.Info("fit started",
		"epochs", t.cfg.Epochs,
		"train_batches", train.Len(),
		"val_batches", val.Len(),
		"parameters", nn.CountParameters(t.model.Parameters()),
	)

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		start := time.Now()

		trainSummary, err := t.trainEpoch(ctx, epoch, train)
		if err != nil {
			return history, err
		}
		valSummary, err := t.evaluate(ctx, vae.ModeValidate, val)
		if err != nil {
			return history, fmt.Errorf("epoch %d: %w", epoch, err)
		}

		result := EpochResult{Epoch: epoch, Train: trainSummary, Val: valSummary, Duration: time.Since(start)}
		history.Epochs = append(history.Epochs, result)

		t.logger.Info("epoch finished", append([]any{
			"epoch", epoch,
			"duration", result.Duration.Round(time.Millisecond),
		}, logAttrs(trainSummary, valSummary)...)...)
	}
	return history, nil
}

// Test runs one evaluation pass in test mode.
func (t *Trainer[B]) Test(ctx context.Context, test *dataset.Loader[*autodiff.AutodiffBackend[B]]) (vae.EpochSummary, error) {
	summary, err := t.evaluate(ctx, vae.ModeTest, test)
	if err != nil {
		return vae.EpochSummary{}, err
	}
	t.logger.Info("test finished", logAttrs(summary)...)
	return summary, nil
}

func (t *Trainer[B]) trainEpoch(ctx context.Context, epoch int, loader *dataset.Loader[*autodiff.AutodiffBackend[B]]) (vae.EpochSummary, error) {
	tape := t.backend.Tape()
	var records []vae.EpochRecord

	err := recoverStep(func() error {
		defer tape.Clear()
		defer tape.StopRecording()

		batchIdx := 0
		for batch := range loader.Batches() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if limit := t.cfg.LimitTrainBatches; limit > 0 && batchIdx >= limit {
				break
			}
			batchIdx++

			t.optimizer.ZeroGrad()
			tape.Clear()
			tape.StartRecording()

			out := t.model.Step(vae.ModeTrain, batch, t.rng)
			grads := autodiff.Backward(out.Loss(), t.backend)
			t.optimizer.Step(grads)

			tape.StopRecording()
			tape.Clear()

			rec := out.Record()
			records = append(records, rec)

			if batchIdx%logEvery == 0 {
				t.logger.Debug("train batch",
					"epoch", epoch,
					"batch", batchIdx,
					"train_elbo_loss", rec.ELBO,
					"train_recon_loss", rec.Recon,
					"train_kl_loss", rec.KL,
				)
			}
		}
		return nil
	})
	if err != nil {
		return vae.EpochSummary{}, fmt.Errorf("train epoch %d: %w", epoch, err)
	}
	return vae.AggregateEpoch(vae.ModeTrain, records)
}

// evaluate runs mode over loader with gradient recording stopped.
func (t *Trainer[B]) evaluate(ctx context.Context, mode vae.Mode, loader *dataset.Loader[*autodiff.AutodiffBackend[B]]) (vae.EpochSummary, error) {
	tape := t.backend.Tape()
	tape.StopRecording()

	var records []vae.EpochRecord
	err := recoverStep(func() error {
		n := 0
		for batch := range loader.Batches() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if limit := t.cfg.LimitEvalBatches; limit > 0 && n >= limit {
				break
			}
			n++
			records = append(records, t.model.Step(mode, batch, t.rng).Record())
		}
		return nil
	})
	if err != nil {
		return vae.EpochSummary{}, fmt.Errorf("%s: %w", mode, err)
	}
	return vae.AggregateEpoch(mode, records)
}

// recoverStep runs fn and converts an engine panic into an error.
func recoverStep(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step panicked: %v", r)
		}
	}()
	return fn()
}

func logAttrs(summaries ...vae.EpochSummary) []any {
	var attrs []any
	for _, s := range summaries {
		p := s.Mode.Prefix()
		attrs = append(attrs,
			p+"_elbo_loss", s.ELBO,
			p+"_recon_loss", s.Recon,
			p+"_kl_loss", s.KL,
		)
		if s.AvgLossKey != "" {
			attrs = append(attrs, s.AvgLossKey, s.ELBO)
		}
	}
	return attrs
}
