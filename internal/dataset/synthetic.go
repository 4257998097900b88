package dataset

import (
	"math"
	"math/rand"
)

// Synthetic generates n single-channel images of size height x width, each
// a soft Gaussian blob at a random position. Labels are the quadrant of the
// blob centre (0-3). The same rng seed yields the same set.
//
//nolint:gosec // math/rand is intentional: reproducible data, not security
func Synthetic(n, width, height int, rng *rand.Rand) *Dataset {
	ds := &Dataset{
		Channels: 1,
		Height:   height,
		Width:    width,
		Images:   make([]float32, n*width*height),
		Labels:   make([]int32, n),
	}

	for i := range n {
		cx := rng.Float64() * float64(width)
		cy := rng.Float64() * float64(height)
		radius := 0.5 + rng.Float64()*float64(min(width, height))/4

		img := ds.Images[i*width*height : (i+1)*width*height]
		for y := range height {
			for x := range width {
				dx := float64(x) + 0.5 - cx
				dy := float64(y) + 0.5 - cy
				img[y*width+x] = float32(math.Exp(-(dx*dx + dy*dy) / (2 * radius * radius)))
			}
		}

		var label int32
		if cx >= float64(width)/2 {
			label++
		}
		if cy >= float64(height)/2 {
			label += 2
		}
		ds.Labels[i] = label
	}
	return ds
}
