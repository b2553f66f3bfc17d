package chart

import (
	"math/rand"
	"sync"
	"testing"

	"paper-trader/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindow_RecordDeduplicates(t *testing.T) {
	w := NewWindow(10)

	assert.True(t, w.Record(100, 1.5))
	assert.False(t, w.Record(100, 1.6), "same timestamp re-poll")
	assert.False(t, w.Record(99, 1.7), "older sample")
	assert.True(t, w.Record(160, 1.8))

	assert.Equal(t, []model.PricePoint{{Time: 100, Value: 1.5}, {Time: 160, Value: 1.8}}, w.Snapshot())
}

func TestWindow_EvictsOldest(t *testing.T) {
	w := NewWindow(DefaultCapacity)
	for i := int64(1); i <= 150; i++ {
		w.Record(i*60, float64(i))
	}

	points := w.Snapshot()
	require.Len(t, points, DefaultCapacity)
	assert.Equal(t, int64(51*60), points[0].Time)
	assert.Equal(t, int64(150*60), points[len(points)-1].Time)
}

func TestWindow_PropertySuffixOfAccepted(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	w := NewWindow(20)

	var accepted []model.PricePoint
	var last int64 = -1
	for i := 0; i < 500; i++ {
		ts := last + int64(rng.Intn(5)) - 1
		v := rng.Float64()
		if w.Record(ts, v) {
			accepted = append(accepted, model.PricePoint{Time: ts, Value: v})
			last = ts
		}
	}

	points := w.Snapshot()
	assert.LessOrEqual(t, len(points), 20)
	for i := 1; i < len(points); i++ {
		assert.Greater(t, points[i].Time, points[i-1].Time)
	}
	require.GreaterOrEqual(t, len(accepted), len(points))
	assert.Equal(t, accepted[len(accepted)-len(points):], points)
}

func TestWindow_SnapshotIsCopy(t *testing.T) {
	w := NewWindow(5)
	w.Record(1, 10)

	snap := w.Snapshot()
	snap[0].Value = 99

	assert.Equal(t, 10.0, w.Snapshot()[0].Value)
}

func TestWindow_ConcurrentReaders(t *testing.T) {
	w := NewWindow(50)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int64(0); i < 1000; i++ {
			w.Record(i, float64(i))
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				points := w.Snapshot()
				for j := 1; j < len(points); j++ {
					if points[j].Time <= points[j-1].Time {
						t.Errorf("snapshot not increasing at %d", j)
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, w.Len())
}
