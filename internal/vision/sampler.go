// Package vision detects animals in videos by sampling frames and sending
// them to an object-detection inference endpoint.
package vision

// SampleIndices returns exactly n frame indices spread evenly across
// [0, total-1], both ends inclusive. When total < n indices repeat. A
// non-positive total or n yields nil.
func SampleIndices(total, n int) []int {
	if total <= 0 || n <= 0 {
		return nil
	}
	if n == 1 {
		return []int{0}
	}

	indices := make([]int, n)
	last := total - 1
	for i := 0; i < n; i++ {
		indices[i] = i * last / (n - 1)
	}
	return indices
}
