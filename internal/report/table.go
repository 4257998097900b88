// Package report renders training results: a metrics table for the
// terminal and PNG grids of reconstructions and samples.
package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/born-ml/vae/internal/trainer"
	"github.com/born-ml/vae/internal/vae"
)

// WriteTable writes one row per epoch with train and validation metrics.
// A non-nil test summary is appended as a final row.
func WriteTable(w io.Writer, history trainer.History, test *vae.EpochSummary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{
		"EPOCH",
		"TRAIN_ELBO_LOSS", "TRAIN_RECON_LOSS", "TRAIN_KL_LOSS",
		"VAL_ELBO_LOSS", "VAL_RECON_LOSS", "VAL_KL_LOSS",
		"TIME",
	})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetBorder(false)

	for _, e := range history.Epochs {
		table.Append([]string{
			strconv.Itoa(e.Epoch),
			format(e.Train.ELBO), format(e.Train.Recon), format(e.Train.KL),
			format(e.Val.ELBO), format(e.Val.Recon), format(e.Val.KL),
			e.Duration.Round(time.Millisecond).String(),
		})
	}
	if test != nil {
		table.Append([]string{
			"test", "", "", "",
			format(test.ELBO), format(test.Recon), format(test.KL),
			"",
		})
	}
	table.Render()
}

func format(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
