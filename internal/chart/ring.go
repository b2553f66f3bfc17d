package chart

// ring is a fixed capacity FIFO that overwrites its oldest entry when full.
type ring[T any] struct {
	buf    []T
	start  int
	length int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	if r.length < len(r.buf) {
		r.buf[(r.start+r.length)%len(r.buf)] = v
		r.length++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring[T]) last() (T, bool) {
	var zero T
	if r.length == 0 {
		return zero, false
	}
	return r.buf[(r.start+r.length-1)%len(r.buf)], true
}

func (r *ring[T]) toSlice() []T {
	out := make([]T, r.length)
	for i := 0; i < r.length; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}
