package report

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/draw"

	"github.com/born-ml/vae/internal/trainer"
)

// gap is the number of pixels between tiles before scaling.
const gap = 1

// ErrNoImages is returned when a grid has no tiles.
var ErrNoImages = errors.New("grid has no images")

// Grid renders rows of grayscale images. Each image holds width*height
// values in [0, 1]; values outside are clamped.
func Grid(rows [][][]float32, width, height, scale int) (*image.Gray, error) {
	if width <= 0 || height <= 0 || scale <= 0 {
		return nil, fmt.Errorf("grid: invalid size %dx%d scale %d", width, height, scale)
	}
	cols := 0
	for _, row := range rows {
		cols = max(cols, len(row))
	}
	if cols == 0 {
		return nil, ErrNoImages
	}

	tileW, tileH := width+gap, height+gap
	small := image.NewGray(image.Rect(0, 0, cols*tileW+gap, len(rows)*tileH+gap))
	draw.Draw(small, small.Bounds(), image.NewUniform(color.Gray{Y: 64}), image.Point{}, draw.Src)

	for r, row := range rows {
		for c, img := range row {
			if len(img) != width*height {
				return nil, fmt.Errorf("grid: image %d,%d has %d values, want %d", r, c, len(img), width*height)
			}
			x0, y0 := gap+c*tileW, gap+r*tileH
			for y := range height {
				for x := range width {
					small.SetGray(x0+x, y0+y, color.Gray{Y: toByte(img[y*width+x])})
				}
			}
		}
	}

	if scale == 1 {
		return small, nil
	}
	b := small.Bounds()
	large := image.NewGray(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	draw.NearestNeighbor.Scale(large, large.Bounds(), small, b, draw.Src, nil)
	return large, nil
}

// WritePreview encodes a PNG with three rows: originals, their
// reconstructions and prior samples.
func WritePreview(w io.Writer, p trainer.Preview, scale int) error {
	img, err := Grid([][][]float32{p.Originals, p.Reconstructions, p.Samples}, p.Width, p.Height, scale)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// SavePreview writes WritePreview output to path.
func SavePreview(path string, p trainer.Preview, scale int) (err error) {
	f, err := os.Create(path) //nolint:gosec // path is supplied by the user
	if err != nil {
		return fmt.Errorf("save preview: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("save preview: %w", cerr)
		}
	}()

	if err := WritePreview(f, p, scale); err != nil {
		return fmt.Errorf("save preview: %w", err)
	}
	return nil
}

func toByte(v float32) uint8 {
	switch {
	case v <= 0 || v != v:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}
