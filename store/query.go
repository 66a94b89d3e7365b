package store

// Each2 iterates over entities that have both component A and B.
// It iterates over the smaller store and checks the larger one.
func Each2[A, B any](sa *Store[A], sb *Store[B], fn func(EntityID, *A, *B)) {
	if sa.Len() <= sb.Len() {
		for id, a := range sa.data {
			if b, ok := sb.data[id]; ok {
				fn(id, a, b)
			}
		}
		return
	}
	for id, b := range sb.data {
		if a, ok := sa.data[id]; ok {
			fn(id, a, b)
		}
	}
}

// Each3 iterates over entities that have components A, B and C, driving the
// loop from the smallest store.
func Each3[A, B, C any](sa *Store[A], sb *Store[B], sc *Store[C], fn func(EntityID, *A, *B, *C)) {
	switch {
	case sa.Len() <= sb.Len() && sa.Len() <= sc.Len():
		for id, a := range sa.data {
			if b, ok := sb.data[id]; ok {
				if c, ok := sc.data[id]; ok {
					fn(id, a, b, c)
				}
			}
		}
	case sb.Len() <= sc.Len():
		for id, b := range sb.data {
			if a, ok := sa.data[id]; ok {
				if c, ok := sc.data[id]; ok {
					fn(id, a, b, c)
				}
			}
		}
	default:
		for id, c := range sc.data {
			if a, ok := sa.data[id]; ok {
				if b, ok := sb.data[id]; ok {
					fn(id, a, b, c)
				}
			}
		}
	}
}
