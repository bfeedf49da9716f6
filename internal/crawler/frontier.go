package crawler

// entryStatus is the lifecycle position of a URL known to the frontier.
type entryStatus uint8

const (
	statusQueued entryStatus = iota + 1
	statusInFlight
	statusVisited
)

// Frontier is the FIFO work queue of a crawl together with the found set
// and the visited registry.
//
// Every URL the frontier has ever seen is in the found set. A URL is queued
// at most once for the lifetime of the frontier, so it can never be queued
// again after it has been visited. FIFO order gives breadth-first traversal
// from the seed.
//
// A Frontier is not safe for concurrent use.
type Frontier struct {
	// queue holds queued URLs; entries before head have been dequeued.
	queue []string
	head  int

	// status maps every found URL to its lifecycle position.
	status map[string]entryStatus

	// visited records visited URLs in visitation order.
	visited []string
}

// NewFrontier creates an empty Frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		queue:   make([]string, 0),
		status:  make(map[string]entryStatus),
		visited: make([]string, 0),
	}
}

// Admit adds url to the found set and, if it was not found before, appends
// it to the queue. It reports whether url was newly found.
// Admitting the same URL twice enqueues it at most once.
func (f *Frontier) Admit(url string) bool {
	if _, ok := f.status[url]; ok {
		return false
	}
	f.status[url] = statusQueued
	f.queue = append(f.queue, url)
	return true
}

// Dequeue removes and returns the URL at the head of the queue.
// The second result is false when the queue is empty.
func (f *Frontier) Dequeue() (string, bool) {
	if f.head >= len(f.queue) {
		return "", false
	}

	url := f.queue[f.head]
	f.queue[f.head] = ""
	f.head++

	// Reclaim the consumed prefix once it dominates the backing array.
	if f.head > 64 && f.head*2 >= len(f.queue) {
		f.queue = append(make([]string, 0, len(f.queue)-f.head), f.queue[f.head:]...)
		f.head = 0
	}

	if f.status[url] == statusQueued {
		f.status[url] = statusInFlight
	}
	return url, true
}

// MarkVisited records that a fetch attempt for url has completed.
// This is the only way a URL enters the visited registry. A URL that was
// never admitted is added to the found set as well, so visited URLs are
// always a subset of found URLs. Marking a URL twice has no effect.
func (f *Frontier) MarkVisited(url string) {
	if f.status[url] == statusVisited {
		return
	}
	f.status[url] = statusVisited
	f.visited = append(f.visited, url)
}

// IsVisited reports whether url is in the visited registry.
func (f *Frontier) IsVisited(url string) bool {
	return f.status[url] == statusVisited
}

// IsFound reports whether url has ever been admitted.
func (f *Frontier) IsFound(url string) bool {
	_, ok := f.status[url]
	return ok
}

// Len returns the number of queued URLs.
func (f *Frontier) Len() int {
	return len(f.queue) - f.head
}

// FoundCount returns the size of the found set.
func (f *Frontier) FoundCount() int {
	return len(f.status)
}

// VisitedCount returns the size of the visited registry.
func (f *Frontier) VisitedCount() int {
	return len(f.visited)
}

// Visited returns the visited URLs in visitation order.
func (f *Frontier) Visited() []string {
	out := make([]string, len(f.visited))
	copy(out, f.visited)
	return out
}

// Pending returns the queued URLs in dequeue order.
func (f *Frontier) Pending() []string {
	out := make([]string, f.Len())
	copy(out, f.queue[f.head:])
	return out
}
