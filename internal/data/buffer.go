package data

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DType is the element type of a Buffer.
type DType int

const (
	Int8 DType = iota
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float
	Double
	Byte
)

// AllTypes lists every element type in declaration order.
func AllTypes() []DType {
	return []DType{Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64, Float, Double, Byte}
}

func (t DType) String() string {
	switch t {
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Float:
		return "float"
	case Double:
		return "double"
	case Byte:
		return "byte"
	default:
		return fmt.Sprintf("dtype(%d)", int(t))
	}
}

// Size returns the width of one element in bytes, or 0 for an unknown type.
func (t DType) Size() int {
	switch t {
	case Int8, Uint8, Byte:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float:
		return 4
	case Int64, Uint64, Double:
		return 8
	default:
		return 0
	}
}

// IsFloating reports whether t is a floating point type.
func (t DType) IsFloating() bool {
	return t == Float || t == Double
}

// ParseDType is the inverse of DType.String.
func ParseDType(s string) (DType, error) {
	for _, t := range AllTypes() {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown element type %q", s)
}

// Buffer is a typed multi-dimensional array. Dims are ordered outer to inner
// and the raw bytes are stored in native byte order.
type Buffer struct {
	dtype DType
	dims  []uint64
	raw   []byte
}

// New wraps raw as a buffer of the given type and shape. The length of raw
// must match the product of dims times the element size.
func New(dtype DType, dims []uint64, raw []byte) (*Buffer, error) {
	if dtype.Size() == 0 {
		return nil, fmt.Errorf("unknown element type %s", dtype)
	}
	want := uint64(dtype.Size()) * NumElements(dims)
	if uint64(len(raw)) != want {
		return nil, fmt.Errorf("buffer of %s%v needs %d bytes, got %d", dtype, dims, want, len(raw))
	}
	return &Buffer{dtype: dtype, dims: append([]uint64(nil), dims...), raw: raw}, nil
}

// Zeros allocates a zero filled buffer.
func Zeros(dtype DType, dims []uint64) *Buffer {
	n := uint64(dtype.Size()) * NumElements(dims)
	return &Buffer{dtype: dtype, dims: append([]uint64(nil), dims...), raw: make([]byte, n)}
}

// FromFloat64s encodes values into a buffer of the given type, converting
// each element.
func FromFloat64s(dtype DType, dims []uint64, values []float64) (*Buffer, error) {
	if uint64(len(values)) != NumElements(dims) {
		return nil, fmt.Errorf("%d values do not fill dims %v", len(values), dims)
	}
	b := Zeros(dtype, dims)
	size := dtype.Size()
	if size == 0 {
		return nil, fmt.Errorf("unknown element type %s", dtype)
	}
	for i, v := range values {
		putElement(dtype, b.raw[i*size:], v)
	}
	return b, nil
}

// NumElements is the product of dims. An empty shape has no elements.
func NumElements(dims []uint64) uint64 {
	if len(dims) == 0 {
		return 0
	}
	n := uint64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}

func (b *Buffer) DType() DType { return b.dtype }

// Dims returns a copy of the shape.
func (b *Buffer) Dims() []uint64 { return append([]uint64(nil), b.dims...) }

// Bytes returns the underlying storage. Callers must not modify it.
func (b *Buffer) Bytes() []byte { return b.raw }

func (b *Buffer) Len() int { return int(NumElements(b.dims)) }

func (b *Buffer) SizeInBytes() int { return len(b.raw) }

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	return &Buffer{
		dtype: b.dtype,
		dims:  append([]uint64(nil), b.dims...),
		raw:   append([]byte(nil), b.raw...),
	}
}

// Float64s decodes every element as a float64.
func (b *Buffer) Float64s() []float64 {
	size := b.dtype.Size()
	out := make([]float64, b.Len())
	for i := range out {
		out[i] = element(b.dtype, b.raw[i*size:])
	}
	return out
}

func element(t DType, p []byte) float64 {
	ne := binary.NativeEndian
	switch t {
	case Int8:
		return float64(int8(p[0]))
	case Uint8, Byte:
		return float64(p[0])
	case Int16:
		return float64(int16(ne.Uint16(p)))
	case Uint16:
		return float64(ne.Uint16(p))
	case Int32:
		return float64(int32(ne.Uint32(p)))
	case Uint32:
		return float64(ne.Uint32(p))
	case Int64:
		return float64(int64(ne.Uint64(p)))
	case Uint64:
		return float64(ne.Uint64(p))
	case Float:
		return float64(math.Float32frombits(ne.Uint32(p)))
	case Double:
		return math.Float64frombits(ne.Uint64(p))
	}
	return math.NaN()
}

func putElement(t DType, p []byte, v float64) {
	ne := binary.NativeEndian
	switch t {
	case Int8:
		p[0] = byte(int8(v))
	case Uint8, Byte:
		p[0] = byte(v)
	case Int16:
		ne.PutUint16(p, uint16(int16(v)))
	case Uint16:
		ne.PutUint16(p, uint16(v))
	case Int32:
		ne.PutUint32(p, uint32(int32(v)))
	case Uint32:
		ne.PutUint32(p, uint32(v))
	case Int64:
		ne.PutUint64(p, uint64(int64(v)))
	case Uint64:
		ne.PutUint64(p, uint64(v))
	case Float:
		ne.PutUint32(p, math.Float32bits(float32(v)))
	case Double:
		ne.PutUint64(p, math.Float64bits(v))
	}
}
