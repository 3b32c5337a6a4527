package importer

// BucketTimestamps groups near-simultaneous timestamps. The input must be
// sorted ascending. A new bucket starts when the gap to the bucket's first
// member exceeds 1 ms; membership is anchored to that first member, not a
// pairwise chain, so 0,1,2 yields {0,1} and {2}. Downstream consumers depend
// on the anchored behavior; do not replace it with chained clustering.
func BucketTimestamps(sorted []int64) [][]int64 {
	if len(sorted) == 0 {
		return nil
	}
	buckets := make([][]int64, 0, len(sorted))
	bucketStart := sorted[0]
	current := []int64{sorted[0]}
	for _, ts := range sorted[1:] {
		if ts-bucketStart <= 1 {
			current = append(current, ts)
			continue
		}
		buckets = append(buckets, current)
		bucketStart = ts
		current = []int64{ts}
	}
	return append(buckets, current)
}
