package metrics

// ring is a fixed-capacity window of observed values. Once full, each append
// overwrites the oldest entry, so the window always holds the most recent
// observations without reallocating.
type ring struct {
	values []float64
	next   int
	full   bool
}

func newRing(capacity int) *ring {
	return &ring{values: make([]float64, capacity)}
}

func (r *ring) append(v float64) {
	r.values[r.next] = v
	r.next++
	if r.next == len(r.values) {
		r.next = 0
		r.full = true
	}
}

func (r *ring) len() int {
	if r.full {
		return len(r.values)
	}
	return r.next
}

// snapshot returns a copy of the window, oldest first
func (r *ring) snapshot() []float64 {
	if !r.full {
		out := make([]float64, r.next)
		copy(out, r.values[:r.next])
		return out
	}

	out := make([]float64, 0, len(r.values))
	out = append(out, r.values[r.next:]...)
	out = append(out, r.values[:r.next]...)
	return out
}
