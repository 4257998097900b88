// Package serialization saves and loads model weights in the SafeTensors
// format:
//
//	[8 bytes: header size (uint64 LE)]
//	[header: JSON, tensor name → {dtype, shape, data_offsets}, plus __metadata__]
//	[tensor data: raw little-endian bytes, tensors in name order]
//
// The SHA-256 of the data section is stored in the metadata under
// ChecksumKey and verified on load.
package serialization

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/born-ml/vae/internal/tensor"
)

// ChecksumKey is the metadata key holding the hex SHA-256 of the data section.
const ChecksumKey = "sha256"

// maxHeaderSize bounds the JSON header read from untrusted files.
const maxHeaderSize = 100 << 20

const metadataKey = "__metadata__"

// Common errors.
var (
	ErrChecksumMismatch = errors.New("checksum mismatch: file may be corrupted")
	ErrHeaderTooLarge   = errors.New("header exceeds maximum size")
	ErrOutOfBounds      = errors.New("tensor extends beyond data section")
	ErrUnsupportedDType = errors.New("unsupported dtype")
)

type tensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// File is the decoded content of a SafeTensors file.
type File struct {
	Tensors  map[string]*tensor.RawTensor
	Metadata map[string]string
}

// Write encodes tensors and metadata to w. Tensors are written in name
// order. The checksum is added to a copy of metadata.
func Write(w io.Writer, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	slices.Sort(names)

	header := make(map[string]any, len(names)+1)
	hash := sha256.New()
	var offset int64
	for _, name := range names {
		raw := tensors[name]
		dtype, err := dtypeName(raw.DType())
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}
		size := int64(len(raw.Bytes()))
		header[name] = tensorHeader{
			DType:       dtype,
			Shape:       raw.Shape(),
			DataOffsets: [2]int64{offset, offset + size},
		}
		hash.Write(raw.Bytes())
		offset += size
	}

	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[ChecksumKey] = hex.EncodeToString(hash.Sum(nil))
	header[metadataKey] = meta

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("write header size: %w", err)
	}
	if _, err := bw.Write(headerJSON); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, name := range names {
		if _, err := bw.Write(tensors[name].Bytes()); err != nil {
			return fmt.Errorf("write tensor %s: %w", name, err)
		}
	}
	return bw.Flush()
}

// Read decodes a SafeTensors stream and verifies its checksum when present.
func Read(r io.Reader) (*File, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("read header size: %w", err)
	}
	if headerSize > maxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &entries); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read tensor data: %w", err)
	}

	f := &File{Tensors: make(map[string]*tensor.RawTensor, len(entries))}
	for name, entry := range entries {
		if name == metadataKey {
			if err := json.Unmarshal(entry, &f.Metadata); err != nil {
				return nil, fmt.Errorf("parse metadata: %w", err)
			}
			continue
		}

		var h tensorHeader
		if err := json.Unmarshal(entry, &h); err != nil {
			return nil, fmt.Errorf("parse tensor %s: %w", name, err)
		}
		raw, err := decodeTensor(h, data)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		f.Tensors[name] = raw
	}

	if want, ok := f.Metadata[ChecksumKey]; ok {
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != want {
			return nil, ErrChecksumMismatch
		}
	}
	return f, nil
}

// Save writes a SafeTensors file at path.
func Save(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) (err error) {
	f, err := os.Create(path) //nolint:gosec // path is supplied by the user
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("save %s: %w", path, cerr)
		}
	}()

	if err := Write(f, tensors, metadata); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// Load reads a SafeTensors file from path.
func Load(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // path is supplied by the user
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	defer f.Close()

	file, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return file, nil
}

func decodeTensor(h tensorHeader, data []byte) (*tensor.RawTensor, error) {
	dtype, err := parseDType(h.DType)
	if err != nil {
		return nil, err
	}
	raw, err := tensor.NewRaw(h.Shape, dtype, tensor.CPU)
	if err != nil {
		return nil, err
	}

	start, end := h.DataOffsets[0], h.DataOffsets[1]
	if start < 0 || end > int64(len(data)) || end-start != int64(len(raw.Bytes())) {
		return nil, fmt.Errorf("%w: offsets [%d, %d) with %d data bytes", ErrOutOfBounds, start, end, len(data))
	}
	copy(raw.Bytes(), data[start:end])
	return raw, nil
}

func dtypeName(dt tensor.DataType) (string, error) {
	switch dt {
	case tensor.Float32:
		return "F32", nil
	case tensor.Float64:
		return "F64", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDType, dt)
	}
}

func parseDType(s string) (tensor.DataType, error) {
	switch s {
	case "F32":
		return tensor.Float32, nil
	case "F64":
		return tensor.Float64, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedDType, s)
	}
}
