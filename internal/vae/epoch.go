package vae

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// ErrEmptyEpoch is returned when an epoch produced no batches.
var ErrEmptyEpoch = errors.New("epoch has no batches")

// EpochRecord holds the scalar metrics of one batch.
type EpochRecord struct {
	ELBO  float64
	Recon float64
	KL    float64
}

// EpochSummary holds the per-metric means of one epoch.
type EpochSummary struct {
	Mode  Mode
	ELBO  float64
	Recon float64
	KL    float64

	// AvgLossKey is avg_val_loss or avg_test_loss. Empty for training.
	AvgLossKey string
	// Log maps metric name to value.
	Log map[string]float64
}

// AggregateEpoch averages each metric of records independently.
func AggregateEpoch(mode Mode, records []EpochRecord) (EpochSummary, error) {
	if len(records) == 0 {
		return EpochSummary{}, fmt.Errorf("aggregate %s epoch: %w", mode, ErrEmptyEpoch)
	}

	elbo := make([]float64, len(records))
	recon := make([]float64, len(records))
	kl := make([]float64, len(records))
	for i, r := range records {
		elbo[i] = r.ELBO
		recon[i] = r.Recon
		kl[i] = r.KL
	}

	s := EpochSummary{
		Mode:  mode,
		ELBO:  stat.Mean(elbo, nil),
		Recon: stat.Mean(recon, nil),
		KL:    stat.Mean(kl, nil),
	}

	p := mode.Prefix()
	s.Log = map[string]float64{
		p + "_elbo_loss":  s.ELBO,
		p + "_recon_loss": s.Recon,
		p + "_kl_loss":    s.KL,
	}
	if mode != ModeTrain {
		s.AvgLossKey = "avg_" + p + "_loss"
		s.Log[s.AvgLossKey] = s.ELBO
	}
	return s, nil
}
