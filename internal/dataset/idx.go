// Package dataset reads MNIST-style image sets and serves them in batches.
package dataset

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// IDX magic numbers for unsigned-byte image and label files.
const (
	idxImagesMagic uint32 = 0x00000803
	idxLabelsMagic uint32 = 0x00000801
)

// ErrBadMagic is returned when a file does not start with the expected
// IDX magic number.
var ErrBadMagic = errors.New("bad idx magic number")

// Images is a set of single-channel images stored as raw bytes.
type Images struct {
	Count  int
	Height int
	Width  int
	Pixels []byte // Count*Height*Width, row-major
}

// ReadIDXImages reads an IDX3 image file. Files ending in .gz are
// decompressed transparently.
func ReadIDXImages(path string) (*Images, error) {
	var imgs *Images
	err := withReader(path, func(r io.Reader) error {
		dims, err := readHeader(r, idxImagesMagic, 3)
		if err != nil {
			return err
		}
		imgs = &Images{Count: dims[0], Height: dims[1], Width: dims[2]}
		imgs.Pixels = make([]byte, dims[0]*dims[1]*dims[2])
		if _, err := io.ReadFull(r, imgs.Pixels); err != nil {
			return fmt.Errorf("read pixels: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read idx images %s: %w", path, err)
	}
	return imgs, nil
}

// ReadIDXLabels reads an IDX1 label file.
func ReadIDXLabels(path string) ([]int32, error) {
	var labels []int32
	err := withReader(path, func(r io.Reader) error {
		dims, err := readHeader(r, idxLabelsMagic, 1)
		if err != nil {
			return err
		}
		raw := make([]byte, dims[0])
		if _, err := io.ReadFull(r, raw); err != nil {
			return fmt.Errorf("read labels: %w", err)
		}
		labels = make([]int32, len(raw))
		for i, b := range raw {
			labels[i] = int32(b)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read idx labels %s: %w", path, err)
	}
	return labels, nil
}

func readHeader(r io.Reader, magic uint32, ndims int) ([]int, error) {
	var got uint32
	if err := binary.Read(r, binary.BigEndian, &got); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if got != magic {
		return nil, fmt.Errorf("%w: got 0x%08x, want 0x%08x", ErrBadMagic, got, magic)
	}

	raw := make([]uint32, ndims)
	if err := binary.Read(r, binary.BigEndian, raw); err != nil {
		return nil, fmt.Errorf("read dimensions: %w", err)
	}
	dims := make([]int, ndims)
	for i, d := range raw {
		dims[i] = int(d)
	}
	return dims, nil
}

func withReader(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path) //nolint:gosec // path comes from the run configuration
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	return fn(r)
}
