package histogram

import "math"

func float64Bits(v float64) uint64 { return math.Float64bits(v) }

func bitsFloat64(bits uint64) float64 { return math.Float64frombits(bits) }
