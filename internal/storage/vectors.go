package storage

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// Vector file layout, all integers little-endian:
//
//	magic   [4]byte "CXVF"
//	version uint16
//	keyLen  uint16, key [keyLen]byte ("embeddings")
//	rows    uint64
//	dim     uint32
//	data    rows*dim float32
const (
	vectorMagic   = "CXVF"
	vectorVersion = uint16(1)
	vectorKey     = "embeddings"
)

// ErrCorruptVectors reports a malformed embeddings file
var ErrCorruptVectors = errors.New("corrupt vector file")

// Matrix is a dense row-major float32 matrix
type Matrix struct {
	Rows int
	Dim  int
	Data []float32
}

// NewMatrix packs rows into a matrix. All rows must have length dim.
func NewMatrix(rows [][]float32, dim int) (*Matrix, error) {
	m := &Matrix{Rows: len(rows), Dim: dim, Data: make([]float32, 0, len(rows)*dim)}
	for i, r := range rows {
		if len(r) != dim {
			return nil, fmt.Errorf("row %d has dimension %d, want %d", i, len(r), dim)
		}
		m.Data = append(m.Data, r...)
	}
	return m, nil
}

// Row returns a view of row i
func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Dim : (i+1)*m.Dim]
}

// CheckFinite returns an error naming the first NaN or Inf entry
func (m *Matrix) CheckFinite() error {
	for i, v := range m.Data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("non-finite value at row %d col %d", i/max(m.Dim, 1), i%max(m.Dim, 1))
		}
	}
	return nil
}

// Dot returns the dot product of two equal-length vectors
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// WriteVectors writes m to path
func WriteVectors(path string, m *Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create vector file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := encodeVectors(w, m); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to flush vector file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync vector file: %w", err)
	}
	return f.Close()
}

func encodeVectors(w io.Writer, m *Matrix) error {
	if len(m.Data) != m.Rows*m.Dim {
		return fmt.Errorf("matrix data length %d != %d*%d", len(m.Data), m.Rows, m.Dim)
	}
	header := []any{
		[]byte(vectorMagic),
		vectorVersion,
		uint16(len(vectorKey)),
		[]byte(vectorKey),
		uint64(m.Rows),
		uint32(m.Dim),
	}
	for _, field := range header {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("failed to write vector header: %w", err)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, m.Data); err != nil {
		return fmt.Errorf("failed to write vectors: %w", err)
	}
	return nil
}

// ReadVectors loads a vector file written by WriteVectors
func ReadVectors(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return decodeVectors(bufio.NewReader(f), info.Size())
}

func decodeVectors(r io.Reader, size int64) (*Matrix, error) {
	magic := make([]byte, len(vectorMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("%w: short header", ErrCorruptVectors)
	}
	if string(magic) != vectorMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptVectors, magic)
	}

	var version, keyLen uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("%w: short header", ErrCorruptVectors)
	}
	if version != vectorVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptVectors, version)
	}
	if err := binary.Read(r, binary.LittleEndian, &keyLen); err != nil {
		return nil, fmt.Errorf("%w: short header", ErrCorruptVectors)
	}
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("%w: short header", ErrCorruptVectors)
	}
	if string(key) != vectorKey {
		return nil, fmt.Errorf("%w: array key %q, want %q", ErrCorruptVectors, key, vectorKey)
	}

	var rows uint64
	var dim uint32
	if err := binary.Read(r, binary.LittleEndian, &rows); err != nil {
		return nil, fmt.Errorf("%w: short header", ErrCorruptVectors)
	}
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("%w: short header", ErrCorruptVectors)
	}

	// bound rows by the payload before multiplying
	headerLen := int64(len(vectorMagic) + 2 + 2 + int(keyLen) + 8 + 4)
	payload := size - headerLen
	if payload < 0 || payload%4 != 0 {
		return nil, fmt.Errorf("%w: size %d bytes does not fit a %d byte header and float32 data", ErrCorruptVectors, size, headerLen)
	}
	floats := uint64(payload / 4)
	if (dim == 0 && rows != 0) || (dim != 0 && rows > floats/uint64(dim)) || rows*uint64(dim) != floats {
		return nil, fmt.Errorf("%w: size %d bytes, header implies %d rows of %d", ErrCorruptVectors, size, rows, dim)
	}

	m := &Matrix{Rows: int(rows), Dim: int(dim), Data: make([]float32, int(rows)*int(dim))}
	if err := binary.Read(r, binary.LittleEndian, m.Data); err != nil {
		return nil, fmt.Errorf("%w: truncated data", ErrCorruptVectors)
	}
	return m, nil
}
