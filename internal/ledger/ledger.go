// Package ledger holds the shared loan budget. It is the one truly global
// mutable resource in the workflow; every operation is a single mutex-guarded
// critical section so concurrent reservations can never jointly overdraw.
package ledger

import (
	"sync"

	"admission-orchestrator/internal/common/metrics"
)

type Ledger struct {
	mu        sync.Mutex
	capacity  float64
	remaining float64
}

// New creates a ledger with the full capacity available.
func New(capacity float64) *Ledger {
	if capacity < 0 {
		capacity = 0
	}
	metrics.LedgerRemaining.Set(capacity)
	return &Ledger{capacity: capacity, remaining: capacity}
}

// TryReserve atomically checks and decrements. On failure there is no side
// effect; remaining never goes negative.
func (l *Ledger) TryReserve(amount float64) bool {
	if amount < 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.remaining < amount {
		metrics.LedgerReservations.WithLabelValues("rejected").Inc()
		return false
	}
	l.remaining -= amount
	metrics.LedgerReservations.WithLabelValues("reserved").Inc()
	metrics.LedgerRemaining.Set(l.remaining)
	return true
}

// Release returns previously reserved funds. Manual reversal only; the normal
// flow never calls it. The balance is capped at capacity.
func (l *Ledger) Release(amount float64) {
	if amount <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.remaining += amount
	if l.remaining > l.capacity {
		l.remaining = l.capacity
	}
	metrics.LedgerReservations.WithLabelValues("released").Inc()
	metrics.LedgerRemaining.Set(l.remaining)
}

// Remaining reports the current disbursable amount.
func (l *Ledger) Remaining() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remaining
}

// Capacity reports the fixed total set at process start.
func (l *Ledger) Capacity() float64 {
	return l.capacity
}
