package optimizer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueueRunsSubmittedOperations(t *testing.T) {
	q := NewQueue(2, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	var done int32
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		err := q.Submit(Operation{
			Name:     "op",
			Priority: PriorityNormal,
			Run: func(ctx context.Context) error {
				defer wg.Done()
				atomic.AddInt32(&done, 1)
				return nil
			},
		})
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	waitCh := make(chan struct{})
	go func() { wg.Wait(); close(waitCh) }()
	select {
	case <-waitCh:
	case <-time.After(time.Second):
		t.Fatal("operations did not complete in time")
	}

	if got := atomic.LoadInt32(&done); got != 3 {
		t.Fatalf("done = %d, want 3", got)
	}
}

func TestQueueRejectsBeyondBound(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	blocker := Operation{Name: "blocker", Priority: PriorityNormal, Run: func(ctx context.Context) error {
		<-block
		return nil
	}}
	if err := q.Submit(blocker); err != nil {
		t.Fatalf("Submit(blocker) error = %v", err)
	}
	time.Sleep(10 * time.Millisecond) // let it start running

	filler := Operation{Name: "filler", Priority: PriorityNormal, Run: func(ctx context.Context) error { return nil }}
	// maxQueued = 2*1 = 2; one is running, fill the queue to the bound.
	if err := q.Submit(filler); err != nil {
		t.Fatalf("Submit(filler) error = %v", err)
	}

	var dropped int32
	q2 := NewQueue(1, func(op Operation) { atomic.AddInt32(&dropped, 1) })
	q2.running = 2 // simulate at-bound state directly
	if err := q2.Submit(Operation{Name: "overflow", Run: func(ctx context.Context) error { return nil }}); err == nil {
		t.Fatal("Submit() beyond bound should return an error")
	}
	if atomic.LoadInt32(&dropped) != 1 {
		t.Fatalf("onDrop callback invocations = %d, want 1", dropped)
	}

	close(block)
}

func TestQueuePriorityOrdering(t *testing.T) {
	q := NewQueue(2, nil)
	var order []string
	var mu sync.Mutex
	record := func(name string) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	// The blocker keeps one of the two slots, so the three below run one
	// at a time through the other slot, highest priority first.
	block := make(chan struct{})
	q.Submit(Operation{Name: "blocker", Priority: PriorityNormal, Run: func(ctx context.Context) error {
		<-block
		return nil
	}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q.Submit(Operation{Name: "low", Priority: PriorityLow, Run: record("low")})
	q.Submit(Operation{Name: "critical", Priority: PriorityCritical, Run: record("critical")})
	q.Submit(Operation{Name: "normal", Priority: PriorityNormal, Run: record("normal")})

	go q.Run(ctx)
	time.Sleep(10 * time.Millisecond)
	close(block)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "critical" {
		t.Fatalf("order = %v, want critical first", order)
	}
}
