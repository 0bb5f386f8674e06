// Package histogram implements a streaming bucket-count estimator: a
// named estimator that buffers the first N samples verbatim, then
// freezes a bucket set via a user-supplied generator and switches to
// incrementing bucket counts.
package histogram

import (
	"sort"

	"github.com/cuemby/rangedb/pkg/cursor"
	"github.com/cuemby/rangedb/pkg/rangedberr"
)

// Generator builds a sorted, monotonically increasing bucket boundary set
// from the first-N cache. A generator failure (returning a non-nil error)
// leaves the histogram in the filling state.
type Generator func(cache []float64) ([]float64, error)

// EqualWidth returns a Generator producing n equal-width buckets spanning
// [min(cache), max(cache)].
func EqualWidth(n int) Generator {
	return func(cache []float64) ([]float64, error) {
		if n <= 0 || len(cache) == 0 {
			return nil, rangedberr.New(rangedberr.InvalidArgument, "histogram.equalWidth")
		}
		lo, hi := cache[0], cache[0]
		for _, v := range cache {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		buckets := make([]float64, n)
		width := (hi - lo) / float64(n)
		for i := range buckets {
			buckets[i] = lo + width*float64(i)
		}
		return buckets, nil
	}
}

type state int

const (
	filling state = iota
	committed
)

// Histogram is a named streaming bucket-count estimator. It is not
// goroutine-safe on its own; callers (the datastore) are expected to hold
// a coarser lock around every Add/Get call.
type Histogram struct {
	name      string
	firstN    int
	cache     []float64
	generator Generator

	st      state
	buckets []float64
	counts  []uint64
}

// New constructs a filling-state histogram with the given first-N cache
// capacity and bucket generator.
func New(name string, firstN int, generator Generator) *Histogram {
	return &Histogram{
		name:      name,
		firstN:    firstN,
		cache:     make([]float64, 0, firstN),
		generator: generator,
	}
}

// Name returns the histogram's configured name.
func (h *Histogram) Name() string { return h.name }

// Committed reports whether the bucket set has been frozen.
func (h *Histogram) Committed() bool { return h.st == committed }

// Add records one sample. While filling, samples are buffered verbatim
// until the cache reaches exactly firstN entries, at which point the
// generator runs once; if it succeeds the histogram transitions to
// committed and the cache is drained back through Add (re-entrant, now
// hitting the committed branch). If the generator fails the histogram
// stays in filling; each later Add appends its sample to the cache and
// runs the generator again over the whole cache.
func (h *Histogram) Add(value float64) {
	if h.st == committed {
		h.addCommitted(value)
		return
	}

	h.cache = append(h.cache, value)

	if len(h.cache) < h.firstN {
		return
	}

	buckets, err := h.generator(h.cache)
	if err != nil {
		return
	}

	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)

	drained := h.cache
	h.cache = nil
	h.buckets = sorted
	h.counts = make([]uint64, len(sorted))
	h.st = committed

	for _, v := range drained {
		h.addCommitted(v)
	}
}

// addCommitted increments the bucket whose lower bound is the greatest
// value <= v; values below the first bucket fall into bucket 0.
func (h *Histogram) addCommitted(v float64) {
	idx := sort.Search(len(h.buckets), func(i int) bool { return h.buckets[i] > v })
	if idx > 0 {
		idx--
	} else {
		idx = 0
	}
	h.counts[idx]++
}

// Get returns the frozen bucket boundaries and counts. ok is false while
// the histogram is still filling.
func (h *Histogram) Get() (buckets []float64, counts []uint64, ok bool) {
	if h.st != committed {
		return nil, nil, false
	}
	return h.buckets, h.counts, true
}

// GetCache returns the configured first-N capacity and the samples
// buffered so far. Once committed, the cache is empty.
func (h *Histogram) GetCache() (firstN int, cache []float64) {
	return h.firstN, h.cache
}

// TotalCount sums every bucket's count plus the pending cache size, so
// it always equals the number of Add calls observed so far.
func (h *Histogram) TotalCount() uint64 {
	total := uint64(len(h.cache))
	for _, c := range h.counts {
		total += c
	}
	return total
}

// Pack serializes the histogram: name_len, name, state, first_n, then
// either the cache (filling) or the bucket count/buckets/counts
// (committed).
func (h *Histogram) Pack(c *cursor.Cursor) error {
	if err := c.WriteUint32(uint32(len(h.name))); err != nil {
		return err
	}
	if err := c.WriteBytes([]byte(h.name)); err != nil {
		return err
	}
	if err := c.WriteByte(byte(h.st)); err != nil {
		return err
	}
	if err := c.WriteUint32(uint32(h.firstN)); err != nil {
		return err
	}

	if h.st == filling {
		if err := c.WriteUint32(uint32(len(h.cache))); err != nil {
			return err
		}
		for _, v := range h.cache {
			if err := c.WriteUint64(float64Bits(v)); err != nil {
				return err
			}
		}
		return nil
	}

	if err := c.WriteUint32(uint32(len(h.buckets))); err != nil {
		return err
	}
	for _, v := range h.buckets {
		if err := c.WriteUint64(float64Bits(v)); err != nil {
			return err
		}
	}
	for _, cnt := range h.counts {
		if err := c.WriteUint64(cnt); err != nil {
			return err
		}
	}
	return nil
}

// Unpack reconstructs a Histogram previously written by Pack. The
// returned histogram has no generator (it was already committed, or is
// filling with no way to resume generation without one); a generator
// can be attached by the caller via SetGenerator if more samples will be
// added after reload.
func Unpack(c *cursor.Cursor) (*Histogram, error) {
	nameLen, err := c.ReadUint32()
	if err != nil {
		return nil, err
	}
	nameBytes, err := c.ReadCopy(int(nameLen))
	if err != nil {
		return nil, err
	}
	stByte, err := c.ReadByte()
	if err != nil {
		return nil, err
	}
	firstN, err := c.ReadUint32()
	if err != nil {
		return nil, err
	}

	h := &Histogram{name: string(nameBytes), firstN: int(firstN), st: state(stByte)}

	count, err := c.ReadUint32()
	if err != nil {
		return nil, err
	}

	if h.st == filling {
		h.cache = make([]float64, 0, count)
		for i := uint32(0); i < count; i++ {
			bits, err := c.ReadUint64()
			if err != nil {
				return nil, err
			}
			h.cache = append(h.cache, bitsFloat64(bits))
		}
		return h, nil
	}

	h.buckets = make([]float64, count)
	for i := range h.buckets {
		bits, err := c.ReadUint64()
		if err != nil {
			return nil, err
		}
		h.buckets[i] = bitsFloat64(bits)
	}
	h.counts = make([]uint64, count)
	for i := range h.counts {
		cnt, err := c.ReadUint64()
		if err != nil {
			return nil, err
		}
		h.counts[i] = cnt
	}
	return h, nil
}

// SetGenerator attaches a generator to a histogram reloaded via Unpack so
// it can resume filling (only meaningful if it was still filling).
func (h *Histogram) SetGenerator(g Generator) { h.generator = g }
