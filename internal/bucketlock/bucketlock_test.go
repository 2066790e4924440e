package bucketlock

import (
	"sync"
	"testing"
)

func TestRegistry_SerializesSameBucket(t *testing.T) {
	r := NewRegistry()

	counter := 0
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Lock("dataset_D1")
			defer r.Unlock("dataset_D1")
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("counter = %d, want 50", counter)
	}
}

func TestRegistry_IndependentBuckets(t *testing.T) {
	r := NewRegistry()

	r.Lock("dataset_D1")
	defer r.Unlock("dataset_D1")

	done := make(chan struct{})
	go func() {
		r.Lock("dataset_D2")
		r.Unlock("dataset_D2")
		close(done)
	}()

	// must not block on the other bucket's lock
	<-done
}
