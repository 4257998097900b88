package serialization_test

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vae/internal/serialization"
	"github.com/born-ml/vae/internal/tensor"
)

func rawFloat32(t *testing.T, shape tensor.Shape, values ...float32) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(raw.AsFloat32(), values)
	return raw
}

func sampleTensors(t *testing.T) map[string]*tensor.RawTensor {
	t.Helper()
	f64 := tensor.MustNewRaw(tensor.Shape{2}, tensor.Float64, tensor.CPU)
	copy(f64.AsFloat64(), []float64{0.25, -8})
	return map[string]*tensor.RawTensor{
		"encoder.fc.weight": rawFloat32(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6),
		"encoder.fc.bias":   rawFloat32(t, tensor.Shape{2}, -1, 1),
		"scale":             f64,
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	tensors := sampleTensors(t)
	meta := map[string]string{"run": "abc", "epochs": "3"}

	var buf bytes.Buffer
	require.NoError(t, serialization.Write(&buf, tensors, meta))

	f, err := serialization.Read(&buf)
	require.NoError(t, err)

	require.Len(t, f.Tensors, len(tensors))
	for name, want := range tensors {
		got := f.Tensors[name]
		require.NotNil(t, got, name)
		assert.Equal(t, want.Shape(), got.Shape(), name)
		assert.Equal(t, want.DType(), got.DType(), name)
		assert.Equal(t, want.Bytes(), got.Bytes(), name)
	}
	assert.Equal(t, "abc", f.Metadata["run"])
	assert.NotEmpty(t, f.Metadata[serialization.ChecksumKey])
	assert.NotContains(t, meta, serialization.ChecksumKey)
}

func TestWrite_Deterministic(t *testing.T) {
	tensors := sampleTensors(t)
	var a, b bytes.Buffer
	require.NoError(t, serialization.Write(&a, tensors, nil))
	require.NoError(t, serialization.Write(&b, tensors, nil))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestRead_Corrupted(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, serialization.Write(&buf, sampleTensors(t), nil))
	data := buf.Bytes()
	data[len(data)-1] ^= 0xFF

	_, err := serialization.Read(bytes.NewReader(data))
	require.ErrorIs(t, err, serialization.ErrChecksumMismatch)
}

func TestRead_Truncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, serialization.Write(&buf, sampleTensors(t), nil))
	data := buf.Bytes()

	_, err := serialization.Read(bytes.NewReader(data[:len(data)-4]))
	require.ErrorIs(t, err, serialization.ErrOutOfBounds)

	_, err = serialization.Read(bytes.NewReader(data[:4]))
	require.Error(t, err)
}

func TestRead_HeaderTooLarge(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(1<<40)))

	_, err := serialization.Read(&buf)
	require.ErrorIs(t, err, serialization.ErrHeaderTooLarge)
}

func TestRead_UnsupportedDType(t *testing.T) {
	header := []byte(`{"x":{"dtype":"BF16","shape":[1],"data_offsets":[0,2]}}`)
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(len(header))))
	buf.Write(header)
	buf.Write([]byte{0, 0})

	_, err := serialization.Read(&buf)
	require.ErrorIs(t, err, serialization.ErrUnsupportedDType)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.safetensors")
	tensors := sampleTensors(t)
	require.NoError(t, serialization.Save(path, tensors, map[string]string{"latent_dim": "2"}))

	f, err := serialization.Load(path)
	require.NoError(t, err)
	assert.Equal(t, tensors["encoder.fc.weight"].AsFloat32(), f.Tensors["encoder.fc.weight"].AsFloat32())
	assert.Equal(t, "2", f.Metadata["latent_dim"])

	_, err = serialization.Load(filepath.Join(t.TempDir(), "missing.safetensors"))
	require.Error(t, err)
}
