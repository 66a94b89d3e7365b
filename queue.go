package ecsched

// readyQueue is a min-heap of system ids. Kahn's algorithm pops from it so
// that, among all systems whose predecessors are done, the smallest id always
// comes first. That single rule makes every ordering in the planner
// deterministic.
type readyQueue struct {
	heap []SystemID
}

func newReadyQueue(capacity int) *readyQueue {
	return &readyQueue{heap: make([]SystemID, 0, capacity)}
}

// Len returns the number of queued ids.
func (q *readyQueue) Len() int {
	return len(q.heap)
}

// Push adds an id to the queue.
func (q *readyQueue) Push(id SystemID) {
	q.heap = append(q.heap, id)
	q.up(len(q.heap) - 1)
}

// Pop removes and returns the smallest id.
func (q *readyQueue) Pop() SystemID {
	n := len(q.heap) - 1
	q.swap(0, n)
	q.down(0, n)
	id := q.heap[n]
	q.heap = q.heap[:n]
	return id
}

// up moves the id at index i up the heap.
func (q *readyQueue) up(i int) {
	for {
		parent := (i - 1) / 2
		if parent == i || !(q.heap[i] < q.heap[parent]) {
			break
		}
		q.swap(i, parent)
		i = parent
	}
}

// down moves the id at index i down the heap.
func (q *readyQueue) down(i, n int) {
	for {
		left := 2*i + 1
		if left >= n || left < 0 {
			break
		}
		j := left
		if right := left + 1; right < n && q.heap[right] < q.heap[left] {
			j = right
		}
		if !(q.heap[j] < q.heap[i]) {
			break
		}
		q.swap(i, j)
		i = j
	}
}

func (q *readyQueue) swap(i, j int) {
	q.heap[i], q.heap[j] = q.heap[j], q.heap[i]
}
