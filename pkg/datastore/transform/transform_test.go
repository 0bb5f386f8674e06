package transform

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/cuemby/rangedb/pkg/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func le32(v int32) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, uint32(v))
	return out
}

func le64(v int64) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, uint64(v))
	return out
}

func TestIntegerEncodingMonotone(t *testing.T) {
	cb := Default()
	values := []int32{math.MinInt32, -1000, -1, 0, 1, 1000, math.MaxInt32}

	var encoded [][]byte
	for _, v := range values {
		e, err := cb.EncodeValue(blob.Int32, le32(v))
		require.NoError(t, err)
		encoded = append(encoded, e)
	}

	for i := 1; i < len(encoded); i++ {
		assert.True(t, bytes.Compare(encoded[i-1], encoded[i]) < 0, "values[%d]=%d should encode less than values[%d]=%d", i-1, values[i-1], i, values[i])
	}
}

func TestIntegerEncodeDecodeRoundTrip(t *testing.T) {
	cb := Default()
	for _, v := range []int32{math.MinInt32, -1, 0, 1, math.MaxInt32} {
		enc, err := cb.EncodeValue(blob.Int32, le32(v))
		require.NoError(t, err)
		dec, err := cb.DecodeValue(blob.Int32, enc)
		require.NoError(t, err)
		assert.Equal(t, int32(binary.LittleEndian.Uint32(dec)), v)
	}

	for _, v := range []int64{math.MinInt64, -1, 0, 1, math.MaxInt64} {
		enc, err := cb.EncodeValue(blob.Int64, le64(v))
		require.NoError(t, err)
		dec, err := cb.DecodeValue(blob.Int64, enc)
		require.NoError(t, err)
		assert.Equal(t, int64(binary.LittleEndian.Uint64(dec)), v)
	}
}

func leFloat(v float32) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, math.Float32bits(v))
	return out
}

func leDouble(v float64) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, math.Float64bits(v))
	return out
}

func TestFloatEncodingMonotone(t *testing.T) {
	cb := Default()
	values := []float32{-1e30, -1.5, -0.0001, 0, 0.0001, 1.5, 1e30}

	var encoded [][]byte
	for _, v := range values {
		e, err := cb.EncodeValue(blob.Float, leFloat(v))
		require.NoError(t, err)
		encoded = append(encoded, e)
	}
	for i := 1; i < len(encoded); i++ {
		assert.True(t, bytes.Compare(encoded[i-1], encoded[i]) < 0, "%v should encode less than %v", values[i-1], values[i])
	}
}

func TestDoubleEncodeDecodeRoundTrip(t *testing.T) {
	cb := Default()
	for _, v := range []float64{-1e100, -1, 0, 1, 1e100} {
		enc, err := cb.EncodeValue(blob.Double, leDouble(v))
		require.NoError(t, err)
		dec, err := cb.DecodeValue(blob.Double, enc)
		require.NoError(t, err)
		assert.Equal(t, v, math.Float64frombits(binary.LittleEndian.Uint64(dec)))
	}
}

func TestBytePassthrough(t *testing.T) {
	cb := Default()
	src := []byte("raw bytes stay raw")
	enc, err := cb.EncodeValue(blob.Byte, src)
	require.NoError(t, err)
	assert.Equal(t, src, enc)
}
