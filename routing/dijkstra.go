package routing

import "container/heap"

// pqItem is one entry in the Dijkstra open set, grounded on
// systems/astar.go's nodeHeap (container/heap.Interface over a pointer
// slice, tracking each item's heap index for future decrease-key support).
type pqItem struct {
	cellIdx int
	phi     float64
	index   int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].phi < pq[j].phi }
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// newPQ constructs an initialized, empty priority queue.
func newPQ() *priorityQueue {
	pq := make(priorityQueue, 0, 1024)
	heap.Init(&pq)
	return &pq
}
