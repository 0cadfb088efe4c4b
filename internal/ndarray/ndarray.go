// Package ndarray is the Go stand-in for the original system's
// "C-contiguous numpy array" fast path: a row-major numeric buffer that,
// when it crosses the sandbox boundary, travels as a shared-memory handle
// instead of as wire bytes.
package ndarray

import (
	"encoding/binary"
	"fmt"
	"math"
	"runtime"
)

// Array is a row-major numeric buffer. Data always holds the raw
// little-endian bytes for Dtype; Float32/Float64 decode on demand rather
// than eagerly, since most Arrays that cross a sandbox boundary are only
// ever read once.
type Array struct {
	Shape []int
	Dtype string
	Data  []byte

	unlink func() error
}

// New wraps an already-encoded buffer. Used for ordinary, non-shared
// arrays - for example a value a registered function builds and returns
// directly, without ever touching shared memory.
func New(shape []int, dtype string, data []byte) Array {
	return Array{Shape: shape, Dtype: dtype, Data: data}
}

// NewShared wraps a buffer that was copied out of a shared-memory segment.
// unlink removes the backing segment and is safe to call more than once.
// A finalizer backstops callers that forget to call Close: this is the
// "reclaimer" half of the shared-memory ownership policy, the explicit
// Close call is the fast path.
func NewShared(shape []int, dtype string, data []byte, unlink func() error) *Array {
	a := &Array{Shape: shape, Dtype: dtype, Data: data, unlink: unlink}
	runtime.SetFinalizer(a, (*Array).Close)
	return a
}

// Close releases the shared-memory segment backing this array, if any. It
// is a no-op for arrays built with New.
func (a *Array) Close() error {
	if a == nil || a.unlink == nil {
		return nil
	}
	u := a.unlink
	a.unlink = nil
	runtime.SetFinalizer(a, nil)
	return u()
}

// NumElements is the product of Shape.
func (a Array) NumElements() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// ByteSize returns the number of bytes a row-major array of this shape and
// dtype occupies, used by a client to size the shared-memory attach before
// it has seen any bytes.
func ByteSize(shape []int, dtype string) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n * dtypeSize(dtype)
}

func dtypeSize(dtype string) int {
	switch dtype {
	case "float64", "int64":
		return 8
	case "float32", "int32":
		return 4
	default:
		return 1
	}
}

// Float64 decodes Data as a slice of little-endian float64s.
func (a Array) Float64() []float64 {
	out := make([]float64, len(a.Data)/8)
	for i := range out {
		bits := binary.LittleEndian.Uint64(a.Data[i*8:])
		out[i] = math.Float64frombits(bits)
	}
	return out
}

// Float32 decodes Data as a slice of little-endian float32s.
func (a Array) Float32() []float32 {
	out := make([]float32, len(a.Data)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(a.Data[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

// FromFloat64 encodes values into a new row-major Array of dtype float64.
func FromFloat64(shape []int, values []float64) Array {
	data := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
	}
	if n := ByteSize(shape, "float64"); n != len(data) {
		panic(fmt.Sprintf("ndarray: shape %v holds %d float64 elements, got %d values", shape, n/8, len(values)))
	}
	return New(shape, "float64", data)
}
