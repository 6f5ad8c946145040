package logic

import "sort"

// Window is a bounded FIFO of samples. Pushing past capacity evicts the
// oldest sample.
type Window struct {
	size    int
	samples []float64
}

// NewWindow creates an empty window holding at most size samples.
// A size below 1 is treated as 1.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{
		size:    size,
		samples: make([]float64, 0, size),
	}
}

// Push appends v, evicting the oldest sample if the window is full.
func (w *Window) Push(v float64) {
	if len(w.samples) == w.size {
		copy(w.samples, w.samples[1:])
		w.samples = w.samples[:w.size-1]
	}
	w.samples = append(w.samples, v)
}

// Len returns the number of samples held.
func (w *Window) Len() int {
	return len(w.samples)
}

// Samples returns a copy of the samples in arrival order.
func (w *Window) Samples() []float64 {
	out := make([]float64, len(w.samples))
	copy(out, w.samples)
	return out
}

// Median returns the median of the window. The window itself is not
// reordered. An empty window has median 0.
func (w *Window) Median() float64 {
	return Median(w.samples)
}

// Median returns the middle element of a sorted copy of vals, or the mean of
// the two middle elements when the length is even. Empty input returns 0.
func Median(vals []float64) float64 {
	n := len(vals)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, vals)
	sort.Float64s(sorted)

	mid := (n - 1) / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid] + sorted[mid+1]) / 2
}
