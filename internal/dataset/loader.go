package dataset

import (
	"errors"
	"fmt"
	"iter"
	"math/rand"

	"github.com/born-ml/vae/internal/tensor"
)

// Batch is one mini-batch: images [b, channels, height, width] and their labels.
type Batch[B tensor.Backend] struct {
	Images *tensor.Tensor[float32, B]
	Labels []int32
}

// Size returns the number of samples in the batch.
func (b Batch[B]) Size() int {
	return len(b.Labels)
}

// Loader serves a Dataset in batches on backend B.
type Loader[B tensor.Backend] struct {
	data      *Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand
	backend   B
}

// NewLoader creates a Loader. With shuffle set, each pass draws a new
// permutation from rng.
func NewLoader[B tensor.Backend](data *Dataset, batchSize int, shuffle bool, rng *rand.Rand, backend B) (*Loader[B], error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if shuffle && rng == nil {
		return nil, errors.New("shuffling loader needs a random source")
	}
	return &Loader[B]{
		data:      data,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rng,
		backend:   backend,
	}, nil
}

// Len returns the number of batches per pass. The last batch may be short.
func (l *Loader[B]) Len() int {
	return (l.data.Len() + l.batchSize - 1) / l.batchSize
}

// Dataset returns the underlying data.
func (l *Loader[B]) Dataset() *Dataset {
	return l.data
}

// Batches returns one pass over the data. Batch tensors are built lazily
// as the sequence is consumed.
func (l *Loader[B]) Batches() iter.Seq[Batch[B]] {
	n := l.data.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if l.shuffle {
		l.rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	return func(yield func(Batch[B]) bool) {
		for start := 0; start < n; start += l.batchSize {
			end := min(start+l.batchSize, n)
			if !yield(l.gather(order[start:end])) {
				return
			}
		}
	}
}

func (l *Loader[B]) gather(indices []int) Batch[B] {
	size := l.data.ImageSize()
	shape := tensor.Shape{len(indices), l.data.Channels, l.data.Height, l.data.Width}

	images := tensor.Zeros[float32](shape, l.backend)
	dst := images.Data()
	labels := make([]int32, len(indices))
	for i, idx := range indices {
		copy(dst[i*size:(i+1)*size], l.data.Images[idx*size:(idx+1)*size])
		labels[i] = l.data.Labels[idx]
	}
	return Batch[B]{Images: images, Labels: labels}
}
