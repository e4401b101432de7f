package parallel

import (
	"slices"
	"sync"
)

// BatchCallback receives completed batches. Calls are serialized, so a
// callback never runs concurrently with itself or with other callbacks.
type BatchCallback func(Batch)

type observer struct {
	id uint64
	cb BatchCallback
}

var (
	observersMu sync.Mutex
	observerSeq uint64
	observerSet []observer

	// deliverMu serializes observer calls across all runners.
	deliverMu sync.Mutex
)

// Observe installs cb as a process-wide observer of every Runner's batches
// until release is called. Installations nest and may be released in any
// order; release is idempotent.
func Observe(cb BatchCallback) (release func()) {
	if cb == nil {
		return func() {}
	}
	observersMu.Lock()
	observerSeq++
	id := observerSeq
	observerSet = append(observerSet, observer{id: id, cb: cb})
	observersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			observersMu.Lock()
			defer observersMu.Unlock()
			observerSet = slices.DeleteFunc(observerSet, func(o observer) bool {
				return o.id == id
			})
		})
	}
}

// Observers returns the number of installed observers.
func Observers() int {
	observersMu.Lock()
	defer observersMu.Unlock()
	return len(observerSet)
}

// notifyObservers calls the observers installed at the time of the call, in
// installation order.
func notifyObservers(b Batch) {
	observersMu.Lock()
	current := slices.Clone(observerSet)
	observersMu.Unlock()
	if len(current) == 0 {
		return
	}

	deliverMu.Lock()
	defer deliverMu.Unlock()
	for _, o := range current {
		o.cb(b)
	}
}
