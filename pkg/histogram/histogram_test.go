package histogram

import (
	"testing"

	"github.com/cuemby/rangedb/pkg/cursor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// singleBucket is the simplest possible generator: one bucket whose
// lower bound is the fixed value given.
func singleBucket(lowerBound float64) Generator {
	return func(_ []float64) ([]float64, error) {
		return []float64{lowerBound}, nil
	}
}

func TestHistogramFillingThenCommit(t *testing.T) {
	const firstN = 5
	h := New("test histogram", firstN, singleBucket(0))

	for i := 0; i < firstN-1; i++ {
		h.Add(float64(i))
		_, _, ok := h.Get()
		assert.False(t, ok, "should still be filling")
		n, cache := h.GetCache()
		assert.Equal(t, firstN, n)
		assert.Equal(t, i+1, len(cache))
	}

	h.Add(99)

	buckets, counts, ok := h.Get()
	require.True(t, ok)
	require.Equal(t, 1, len(buckets))
	assert.Equal(t, 0.0, buckets[0])
	assert.Equal(t, uint64(firstN), counts[0])

	_, cache := h.GetCache()
	assert.Empty(t, cache)
}

func TestHistogramCountConservation(t *testing.T) {
	h := New("conserve", 3, EqualWidth(4))
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	for i, v := range values {
		h.Add(v)
		assert.Equal(t, uint64(i+1), h.TotalCount())
	}
}

func TestHistogramBelowFirstBucketFallsIntoBucketZero(t *testing.T) {
	h := New("below", 2, func(_ []float64) ([]float64, error) {
		return []float64{10, 20}, nil
	})
	h.Add(5)
	h.Add(-1000)

	_, counts, ok := h.Get()
	require.True(t, ok)
	assert.Equal(t, uint64(2), counts[0])
	assert.Equal(t, uint64(0), counts[1])
}

func TestHistogramGeneratorFailureStaysFilling(t *testing.T) {
	h := New("broken", 2, func(_ []float64) ([]float64, error) {
		return nil, assertErr
	})
	h.Add(1)
	h.Add(2)

	_, _, ok := h.Get()
	assert.False(t, ok)
	_, cache := h.GetCache()
	assert.Equal(t, 2, len(cache))
}

var assertErr = errGenerator{}

type errGenerator struct{}

func (errGenerator) Error() string { return "generator failed" }

func TestHistogramPackUnpackRoundTripFilling(t *testing.T) {
	h := New("name-filling", 4, EqualWidth(2))
	h.Add(1)
	h.Add(2)

	buf := make([]byte, 256)
	w := cursor.NewWriter(buf)
	require.NoError(t, h.Pack(w))

	r := cursor.NewReader(w.Bytes())
	got, err := Unpack(r)
	require.NoError(t, err)

	assert.Equal(t, h.Name(), got.Name())
	assert.False(t, got.Committed())
	_, cache := got.GetCache()
	assert.Equal(t, 2, len(cache))
}

func TestHistogramPackUnpackRoundTripCommitted(t *testing.T) {
	h := New("name-committed", 2, EqualWidth(2))
	h.Add(1)
	h.Add(2)
	require.True(t, h.Committed())

	buf := make([]byte, 256)
	w := cursor.NewWriter(buf)
	require.NoError(t, h.Pack(w))

	r := cursor.NewReader(w.Bytes())
	got, err := Unpack(r)
	require.NoError(t, err)

	wantBuckets, wantCounts, ok := h.Get()
	require.True(t, ok)
	gotBuckets, gotCounts, ok := got.Get()
	require.True(t, ok)
	assert.Equal(t, wantBuckets, gotBuckets)
	assert.Equal(t, wantCounts, gotCounts)
}
