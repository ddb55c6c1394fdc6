package crawler

// entry is a URL waiting to be fetched together with its distance from the root.
type entry struct {
	url   string
	depth int
}

// frontier is the FIFO queue of pending fetches.
// Popping from the head and pushing to the tail yields breadth-first order:
// every entry at depth d is fetched before any entry at depth d+1.
type frontier struct {
	items []entry
	head  int
}

func newFrontier() *frontier {
	return &frontier{}
}

func (f *frontier) push(e entry) {
	f.items = append(f.items, e)
}

// pop removes and returns the oldest entry. ok is false when the queue is empty.
func (f *frontier) pop() (e entry, ok bool) {
	if f.head >= len(f.items) {
		return entry{}, false
	}
	e = f.items[f.head]
	f.items[f.head] = entry{}
	f.head++

	// Reclaim the consumed prefix once it dominates the backing array.
	if f.head > 64 && f.head*2 >= len(f.items) {
		n := copy(f.items, f.items[f.head:])
		f.items = f.items[:n]
		f.head = 0
	}
	return e, true
}

func (f *frontier) len() int {
	return len(f.items) - f.head
}
