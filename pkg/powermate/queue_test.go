package powermate

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue[int]()
	for i := 1; i <= 3; i++ {
		q.Put(i)
	}
	if q.Len() != 3 {
		t.Fatalf("expected len 3, got %d", q.Len())
	}
	for want := 1; want <= 3; want++ {
		got, ok := q.Get(context.Background(), 0)
		if !ok || got != want {
			t.Fatalf("expected %d, got %d (ok=%v)", want, got, ok)
		}
	}
}

func TestQueue_PollEmpty(t *testing.T) {
	q := NewQueue[int]()
	if _, ok := q.Get(context.Background(), 0); ok {
		t.Fatal("expected empty poll to report nothing")
	}
}

func TestQueue_TimeoutElapses(t *testing.T) {
	q := NewQueue[int]()
	start := time.Now()
	if _, ok := q.Get(context.Background(), 30*time.Millisecond); ok {
		t.Fatal("expected timeout on empty queue")
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Fatalf("returned too early: %v", elapsed)
	}
}

func TestQueue_ForeverWakesOnPut(t *testing.T) {
	q := NewQueue[string]()
	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Put("hello")
	}()

	got, ok := q.Get(context.Background(), Forever)
	if !ok || got != "hello" {
		t.Fatalf("expected hello, got %q (ok=%v)", got, ok)
	}
}

func TestQueue_ForeverStopsOnCancel(t *testing.T) {
	q := NewQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	if _, ok := q.Get(ctx, Forever); ok {
		t.Fatal("expected cancelled Get to report nothing")
	}
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue[int]()
	const producers, each = 4, 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				q.Put(i)
			}
		}()
	}

	got := 0
	for got < producers*each {
		if _, ok := q.Get(context.Background(), time.Second); !ok {
			t.Fatalf("queue ran dry after %d items", got)
		}
		got++
	}
	wg.Wait()
	if q.Len() != 0 {
		t.Fatalf("expected drained queue, %d left", q.Len())
	}
}
