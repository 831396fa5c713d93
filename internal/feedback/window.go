package feedback

import (
	"sync"

	"github.com/franz/file-curator/internal/model"
)

// Tracker aggregates feedback events per recommendation type.
// Implementations must be safe for concurrent use.
type Tracker interface {
	Record(t model.RecommendationType, helpful bool)
	Ratio(t model.RecommendationType) (ratio float64, samples int)
}

// Window keeps the last N events of every recommendation type in a ring
// buffer. Each type has its own lock so submissions for different types
// never contend.
type Window struct {
	size  int
	rings map[model.RecommendationType]*ring
}

type ring struct {
	mu      sync.Mutex
	events  []bool
	next    int
	count   int
	helpful int
}

// NewWindow creates a Window holding up to size events per type
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	w := &Window{
		size:  size,
		rings: make(map[model.RecommendationType]*ring, len(model.RecommendationTypes)),
	}
	for _, t := range model.RecommendationTypes {
		w.rings[t] = &ring{events: make([]bool, size)}
	}
	return w
}

// Size returns the per-type capacity
func (w *Window) Size() int {
	return w.size
}

// Record appends one event, evicting the oldest once the window is full.
// Unknown types are ignored.
func (w *Window) Record(t model.RecommendationType, helpful bool) {
	r, ok := w.rings[t]
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == len(r.events) {
		if r.events[r.next] {
			r.helpful--
		}
	} else {
		r.count++
	}
	r.events[r.next] = helpful
	if helpful {
		r.helpful++
	}
	r.next = (r.next + 1) % len(r.events)
}

// Ratio returns the helpful ratio over the events currently in the window
// and how many events that is. An empty window reports (0, 0).
func (w *Window) Ratio(t model.RecommendationType) (float64, int) {
	r, ok := w.rings[t]
	if !ok {
		return 0, 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return 0, 0
	}
	return float64(r.helpful) / float64(r.count), r.count
}
