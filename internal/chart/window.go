// Package chart keeps the recent price samples shown on the dashboard.
package chart

import (
	"sync"

	"paper-trader/internal/model"
)

const DefaultCapacity = 100

// Window holds at most capacity points, strictly increasing in time.
type Window struct {
	mu     sync.RWMutex
	points *ring[model.PricePoint]
	cap    int
}

func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{points: newRing[model.PricePoint](capacity), cap: capacity}
}

// Record appends the sample unless its time is not after the newest one,
// which is the case when the same candle is polled twice.
func (w *Window) Record(t int64, v float64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if last, ok := w.points.last(); ok && t <= last.Time {
		return false
	}
	w.points.push(model.PricePoint{Time: t, Value: v})
	return true
}

func (w *Window) Snapshot() []model.PricePoint {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.points.toSlice()
}

func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.points.length
}

func (w *Window) Capacity() int {
	return w.cap
}
