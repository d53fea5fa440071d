package queue

import (
	"sort"
	"sync"
	"testing"
	"time"
)

func TestQueue_PushPopOrder(t *testing.T) {
	q := New[int](2)

	for i := 0; i < 10; i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) returned false", i)
		}
	}

	if q.Len() != 10 {
		t.Errorf("Len() = %d, want 10", q.Len())
	}

	for i := 0; i < 10; i++ {
		v, ok := q.TryPop()
		if !ok {
			t.Fatalf("TryPop() returned false for item %d", i)
		}
		if v != i {
			t.Errorf("popped %d, want %d", v, i)
		}
	}

	if _, ok := q.TryPop(); ok {
		t.Error("TryPop() on empty queue returned true")
	}
}

func TestQueue_GrowsWhenWrapped(t *testing.T) {
	q := New[int](4)

	// Move head forward so the ring wraps before growing.
	q.Push(0)
	q.Push(1)
	q.TryPop()
	q.TryPop()

	for i := 0; i < 9; i++ {
		q.Push(i)
	}

	stats := q.Stats()
	if stats.Cap < 9 {
		t.Errorf("Cap = %d, want >= 9", stats.Cap)
	}
	if stats.Resizes == 0 {
		t.Error("expected at least one resize")
	}

	got := q.Drain()
	for i, v := range got {
		if v != i {
			t.Fatalf("Drain()[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestQueue_DrainEmpties(t *testing.T) {
	q := New[string](4)
	q.Push("a")
	q.Push("b")

	got := q.Drain()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Drain() = %v, want [a b]", got)
	}
	if q.Len() != 0 {
		t.Errorf("Len() after Drain = %d, want 0", q.Len())
	}
	if again := q.Drain(); again != nil {
		t.Errorf("second Drain() = %v, want nil", again)
	}
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := New[int](1)

	got := make(chan int, 1)
	go func() {
		v, _ := q.Pop()
		got <- v
	}()

	select {
	case <-got:
		t.Fatal("Pop returned before Push")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push(42)

	select {
	case v := <-got:
		if v != 42 {
			t.Errorf("Pop() = %d, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake after Push")
	}
}

func TestQueue_CloseDeliversRemaining(t *testing.T) {
	q := New[int](4)
	q.Push(1)
	q.Push(2)
	q.Close()

	if q.Push(3) {
		t.Error("Push after Close returned true")
	}

	for _, want := range []int{1, 2} {
		v, ok := q.Pop()
		if !ok || v != want {
			t.Fatalf("Pop() = (%d, %v), want (%d, true)", v, ok, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop() on closed empty queue returned true")
	}
}

func TestQueue_CloseWakesWaiters(t *testing.T) {
	q := New[int](1)

	done := make(chan bool)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Pop() returned true after Close on empty queue")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not wake blocked Pop")
	}
}

func TestQueue_ConcurrentDrainExactlyOnce(t *testing.T) {
	q := New[int](8)
	const producers = 4
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(base + i)
			}
		}(p * perProducer)
	}

	var mu sync.Mutex
	var seen []int
	stop := make(chan struct{})
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for {
			batch := q.Drain()
			mu.Lock()
			seen = append(seen, batch...)
			mu.Unlock()
			select {
			case <-stop:
				return
			default:
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-drained

	mu.Lock()
	seen = append(seen, q.Drain()...)
	mu.Unlock()

	if len(seen) != producers*perProducer {
		t.Fatalf("drained %d items, want %d", len(seen), producers*perProducer)
	}
	sort.Ints(seen)
	for i, v := range seen {
		if v != i {
			t.Fatalf("item %d = %d, duplicate or missing value", i, v)
		}
	}
}
