// Package pixel holds the order-statistic helpers shared by the stacker and
// the differential dropout detector.
package pixel

// Select partially orders v in place so that v[k] holds the k-th smallest
// value, every element before k is <= v[k] and every element after is >= v[k].
// It panics if k is out of range.
func Select(v []uint16, k int) uint16 {
	if k < 0 || k >= len(v) {
		panic("pixel: select index out of range")
	}
	lo, hi := 0, len(v)-1
	for lo < hi {
		p := partition(v, lo, hi)
		switch {
		case p == k:
			return v[k]
		case p < k:
			lo = p + 1
		default:
			hi = p - 1
		}
	}
	return v[k]
}

// partition is a Lomuto partition around the median of three.
func partition(v []uint16, lo, hi int) int {
	mid := lo + (hi-lo)/2
	if v[mid] < v[lo] {
		v[mid], v[lo] = v[lo], v[mid]
	}
	if v[hi] < v[lo] {
		v[hi], v[lo] = v[lo], v[hi]
	}
	if v[mid] < v[hi] {
		v[mid], v[hi] = v[hi], v[mid]
	}
	pivot := v[hi]
	i := lo
	for j := lo; j < hi; j++ {
		if v[j] < pivot {
			v[i], v[j] = v[j], v[i]
			i++
		}
	}
	v[i], v[hi] = v[hi], v[i]
	return i
}

// Middle returns the element at index len(v)/2 of the partial ordering. For an
// odd count this is the median; for an even count it is the upper of the two
// central values. v is reordered.
func Middle(v []uint16) uint16 {
	if len(v) == 0 {
		return 0
	}
	return Select(v, len(v)/2)
}

// Median returns the stacking median of v, reordering v in place. For an odd
// count it is the central order statistic. For an even count it is the
// truncating average of the elements at (k-1)/2 and k/2, both taken from the
// same partial ordering.
func Median(v []uint16) uint16 {
	k := len(v)
	if k == 0 {
		return 0
	}
	n := k / 2
	upper := Select(v, n)
	if k%2 != 0 {
		return upper
	}
	// The left partition holds the n smallest values; its maximum is the
	// lower central order statistic and lands at index n-1 == (k-1)/2.
	lower := Select(v[:n], n-1)
	return uint16((uint32(lower) + uint32(upper)) / 2)
}

// Mean2 is the truncating average of two samples.
func Mean2(a, b uint16) uint16 {
	return uint16((uint32(a) + uint32(b)) / 2)
}
