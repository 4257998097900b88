package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// Split names a dataset partition.
type Split string

const (
	SplitTrain      Split = "train"
	SplitValidation Split = "validation"
	SplitTest       Split = "test"
)

// filePrefix maps a split to the MNIST file prefix. Validation and test
// both read the t10k files.
func (s Split) filePrefix() (string, error) {
	switch s {
	case SplitTrain:
		return "train", nil
	case SplitValidation, SplitTest:
		return "t10k", nil
	default:
		return "", fmt.Errorf("unknown split %q", string(s))
	}
}

// Dataset is an in-memory image set normalized to [0, 1].
type Dataset struct {
	Channels int
	Height   int
	Width    int
	Images   []float32 // Len()*Channels*Height*Width, row-major
	Labels   []int32
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Labels)
}

// ImageSize returns the number of values per sample.
func (d *Dataset) ImageSize() int {
	return d.Channels * d.Height * d.Width
}

// LoadMNIST loads one split from dir. Image and label files are read
// concurrently. Both the plain and the .gz variant of each file are
// accepted. maxSamples > 0 truncates the split.
func LoadMNIST(dir string, split Split, maxSamples int) (*Dataset, error) {
	prefix, err := split.filePrefix()
	if err != nil {
		return nil, err
	}

	imagesPath, err := findFile(dir, prefix+"-images-idx3-ubyte")
	if err != nil {
		return nil, err
	}
	labelsPath, err := findFile(dir, prefix+"-labels-idx1-ubyte")
	if err != nil {
		return nil, err
	}

	var (
		imgs   *Images
		labels []int32
		g      errgroup.Group
	)
	g.Go(func() error {
		var err error
		imgs, err = ReadIDXImages(imagesPath)
		return err
	})
	g.Go(func() error {
		var err error
		labels, err = ReadIDXLabels(labelsPath)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load mnist %s: %w", split, err)
	}

	if imgs.Count != len(labels) {
		return nil, fmt.Errorf("load mnist %s: %d images but %d labels", split, imgs.Count, len(labels))
	}

	n := imgs.Count
	if maxSamples > 0 && maxSamples < n {
		n = maxSamples
	}

	ds := &Dataset{
		Channels: 1,
		Height:   imgs.Height,
		Width:    imgs.Width,
		Images:   make([]float32, n*imgs.Height*imgs.Width),
		Labels:   labels[:n],
	}
	for i := range ds.Images {
		ds.Images[i] = float32(imgs.Pixels[i]) / 255
	}
	return ds, nil
}

func findFile(dir, name string) (string, error) {
	for _, candidate := range []string{name, name + ".gz"} {
		path := filepath.Join(dir, candidate)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("mnist file %s not found in %s: %w", name, dir, os.ErrNotExist)
}
