package hash

import "github.com/cuemby/rangedb/pkg/blob"

// Func maps a (subject, predicate) pair to a datastore id in
// [0, totalDatastores). It returns -1 to signal a miss, which shuffle
// turns into a HashMiss and drops the item.
type Func func(subject, predicate blob.Blob, totalDatastores int) int

// RankZero always routes to datastore 0; used in single-datastore mode.
func RankZero(_, _ blob.Blob, totalDatastores int) int {
	if totalDatastores <= 0 {
		return -1
	}
	return 0
}

// SumModDatastores is the default hash: the byte-sum of subject and
// predicate, modulo the total datastore count.
func SumModDatastores(subject, predicate blob.Blob, totalDatastores int) int {
	if totalDatastores <= 0 {
		return -1
	}
	var sum uint64
	for _, b := range subject.Data() {
		sum += uint64(b)
	}
	for _, b := range predicate.Data() {
		sum += uint64(b)
	}
	return int(sum % uint64(totalDatastores))
}

// Named resolves a hash_name configuration value to a Func.
func Named(name string) (Func, bool) {
	switch name {
	case "RankZero":
		return RankZero, true
	case "SumModDatastores", "":
		return SumModDatastores, true
	default:
		return nil, false
	}
}
