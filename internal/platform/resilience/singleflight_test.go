package resilience

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFlight_Do(t *testing.T) {
	t.Parallel()

	var g Flight[int]
	var counter atomic.Int32
	var sharedCount atomic.Int32

	const workers = 20
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			got, err, shared := g.Do("refresh", func() (int, error) {
				counter.Add(1)
				time.Sleep(50 * time.Millisecond)
				return 1181, nil
			})
			if err != nil || got != 1181 {
				t.Errorf("unexpected result: got=%d err=%v", got, err)
			}
			if shared {
				sharedCount.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()

	if got := counter.Load(); got != 1 {
		t.Fatalf("expected function to run once, got %d", got)
	}
	if got := sharedCount.Load(); got != workers-1 {
		t.Fatalf("expected %d shared results, got %d", workers-1, got)
	}
	if g.InFlight("refresh") {
		t.Fatalf("call still marked in flight")
	}
}
