package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTryReserve(t *testing.T) {
	tests := []struct {
		name          string
		capacity      float64
		amounts       []float64
		wantResults   []bool
		wantRemaining float64
	}{
		{
			name:          "reservations within capacity",
			capacity:      100000,
			amounts:       []float64{6000, 4000},
			wantResults:   []bool{true, true},
			wantRemaining: 90000,
		},
		{
			name:          "failed reservation has no side effect",
			capacity:      10000,
			amounts:       []float64{6000, 6000, 4000},
			wantResults:   []bool{true, false, true},
			wantRemaining: 0,
		},
		{
			name:          "exact remainder is reservable",
			capacity:      5000,
			amounts:       []float64{5000},
			wantResults:   []bool{true},
			wantRemaining: 0,
		},
		{
			name:          "negative amount rejected",
			capacity:      5000,
			amounts:       []float64{-1},
			wantResults:   []bool{false},
			wantRemaining: 5000,
		},
		{
			name:          "zero capacity rejects everything positive",
			capacity:      0,
			amounts:       []float64{1},
			wantResults:   []bool{false},
			wantRemaining: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.capacity)
			for i, amount := range tt.amounts {
				assert.Equal(t, tt.wantResults[i], l.TryReserve(amount), "reservation %d", i)
			}
			assert.Equal(t, tt.wantRemaining, l.Remaining())
			assert.Equal(t, tt.capacity, l.Capacity())
		})
	}
}

func TestRelease(t *testing.T) {
	l := New(10000)
	assert.True(t, l.TryReserve(6000))

	l.Release(6000)
	assert.Equal(t, 10000.0, l.Remaining())

	// Releasing more than was reserved never exceeds capacity.
	l.Release(5000)
	assert.Equal(t, 10000.0, l.Remaining())
}

func TestConcurrentReservationsNeverOverdraw(t *testing.T) {
	const (
		capacity = 100000.0
		amount   = 300.0
		workers  = 64
		attempts = 20
	)
	l := New(capacity)

	var wg sync.WaitGroup
	var mu sync.Mutex
	reserved := 0.0

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < attempts; i++ {
				if l.TryReserve(amount) {
					mu.Lock()
					reserved += amount
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, reserved, capacity)
	assert.Equal(t, capacity-reserved, l.Remaining())
}
