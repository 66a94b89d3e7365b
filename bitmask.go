package ecsched

import (
	"math/bits"
)

// Bitmask is a growable bitset used to represent component sets.
// The zero value is an empty set.
type Bitmask []uint64

// Set sets the bit at the given index, growing the mask as needed.
func (m *Bitmask) Set(i int) {
	w := i / 64
	if w >= len(*m) {
		grown := make(Bitmask, w+1)
		copy(grown, *m)
		*m = grown
	}
	(*m)[w] |= 1 << (uint(i) % 64)
}

// Clear clears the bit at the given index.
func (m Bitmask) Clear(i int) {
	w := i / 64
	if w < len(m) {
		m[w] &^= 1 << (uint(i) % 64)
	}
}

// Has returns true if the bit at the given index is set.
func (m Bitmask) Has(i int) bool {
	w := i / 64
	return w < len(m) && m[w]&(1<<(uint(i)%64)) != 0
}

// Intersects returns true if any bit is set in both m and other.
func (m Bitmask) Intersects(other Bitmask) bool {
	n := min(len(m), len(other))
	for i := 0; i < n; i++ {
		if m[i]&other[i] != 0 {
			return true
		}
	}
	return false
}

// And returns a new bitmask with only bits set in both m and other.
func (m Bitmask) And(other Bitmask) Bitmask {
	n := min(len(m), len(other))
	out := make(Bitmask, n)
	for i := 0; i < n; i++ {
		out[i] = m[i] & other[i]
	}
	return out
}

// Or returns a new bitmask with bits set from both m and other.
func (m Bitmask) Or(other Bitmask) Bitmask {
	long, short := m, other
	if len(short) > len(long) {
		long, short = short, long
	}
	out := make(Bitmask, len(long))
	copy(out, long)
	for i := range short {
		out[i] |= short[i]
	}
	return out
}

// IsZero returns true if no bits are set.
func (m Bitmask) IsZero() bool {
	for _, w := range m {
		if w != 0 {
			return false
		}
	}
	return true
}

// Count returns the number of bits set.
func (m Bitmask) Count() int {
	n := 0
	for _, w := range m {
		n += bits.OnesCount64(w)
	}
	return n
}

// Each calls fn for every set bit in ascending order.
func (m Bitmask) Each(fn func(i int)) {
	for wi, w := range m {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			fn(wi*64 + b)
			w &^= 1 << uint(b)
		}
	}
}
