package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestInFlightRegistryRegisterAndCancel(t *testing.T) {
	r := NewInFlightRegistry()

	var cause error
	if !r.Register("run-1", func(err error) { cause = err }) {
		t.Fatal("Register should accept a new ID")
	}
	if r.Register("run-1", func(error) {}) {
		t.Error("Register should reject a duplicate ID")
	}

	if !r.Cancel("run-1") {
		t.Error("Cancel should return true for registered ID")
	}
	if !errors.Is(cause, ErrRunCancelled) {
		t.Errorf("cause = %v, want ErrRunCancelled", cause)
	}
	if r.Cancel("run-1") {
		t.Error("Cancel should return false after already cancelled")
	}
}

func TestInFlightRegistryRemove(t *testing.T) {
	r := NewInFlightRegistry()

	cancelled := false
	r.Register("run-1", func(error) { cancelled = true })
	r.Remove("run-1")
	r.Remove("unknown")

	if r.Cancel("run-1") {
		t.Error("Cancel should return false after Remove")
	}
	if cancelled {
		t.Error("Remove must not cancel")
	}
}

func TestInFlightRegistryCancelAll(t *testing.T) {
	r := NewInFlightRegistry()
	var count atomic.Int32
	for i := 0; i < 5; i++ {
		r.Register(fmt.Sprintf("run-%d", i), func(error) { count.Add(1) })
	}

	if n := r.CancelAll(); n != 5 {
		t.Errorf("CancelAll = %d, want 5", n)
	}
	if count.Load() != 5 || r.Len() != 0 {
		t.Errorf("cancelled %d, remaining %d", count.Load(), r.Len())
	}
	if n := r.CancelAll(); n != 0 {
		t.Errorf("second CancelAll = %d, want 0", n)
	}
}

func TestInFlightRegistryConcurrentAccess(t *testing.T) {
	r := NewInFlightRegistry()
	var cancelCount atomic.Int64
	const numEntries = 100

	var wg sync.WaitGroup
	for i := 0; i < numEntries; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.Register(id, func(error) { cancelCount.Add(1) })
		}(fmt.Sprintf("run-%d", i))
	}
	wg.Wait()

	for i := 0; i < numEntries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("run-%d", i)
			if i%2 == 0 {
				r.Cancel(id)
			} else {
				r.Remove(id)
			}
		}(i)
	}
	wg.Wait()

	if cancelCount.Load() != numEntries/2 {
		t.Errorf("expected %d cancellations, got %d", numEntries/2, cancelCount.Load())
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}
