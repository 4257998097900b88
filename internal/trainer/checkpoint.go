package trainer

import (
	"fmt"
	"strconv"

	"github.com/born-ml/vae/internal/nn"
	"github.com/born-ml/vae/internal/serialization"
)

// SaveCheckpoint writes the model weights to path as SafeTensors. The run
// id, completed epochs and model shape are stored as metadata.
func (t *Trainer[B]) SaveCheckpoint(path string, history History) error {
	cfg := t.model.Config()
	meta := map[string]string{
		"run":          t.runID,
		"epochs":       strconv.Itoa(len(history.Epochs)),
		"hidden_dim":   strconv.Itoa(cfg.HiddenDim),
		"latent_dim":   strconv.Itoa(cfg.LatentDim),
		"input_width":  strconv.Itoa(cfg.InputWidth),
		"input_height": strconv.Itoa(cfg.InputHeight),
		"kl_estimator": string(cfg.KLEstimator),
	}
	if err := serialization.Save(path, nn.StateDict(t.model.Parameters()), meta); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	t.logger.Info("checkpoint saved", "path", path, "epochs", meta["epochs"])
	return nil
}

// LoadCheckpoint restores model weights from a file written by
// SaveCheckpoint. Every parameter must match by name and shape.
func (t *Trainer[B]) LoadCheckpoint(path string) error {
	f, err := serialization.Load(path)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if err := nn.LoadStateDict(t.model.Parameters(), f.Tensors); err != nil {
		return fmt.Errorf("load checkpoint %s: %w", path, err)
	}
	t.logger.Info("checkpoint loaded", "path", path, "from_run", f.Metadata["run"])
	return nil
}
