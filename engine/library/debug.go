package library

import (
	"github.com/sasha-s/go-deadlock"
)

// ValidateSaneExecutionTime arms the deadlock detector around a call to an external service.
// Call the returned func when the call completes; if it never does, go-deadlock reports the
// goroutine once its DeadlockTimeout elapses.
func ValidateSaneExecutionTime() func() {
	mu := deadlock.Mutex{}
	mu.Lock()
	go func() {
		mu.Lock()
		mu.Unlock()
	}()
	return func() {
		mu.Unlock()
	}
}
