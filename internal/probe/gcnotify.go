package probe

import "runtime"

// gcNotifier subscribes to Go's garbage collector the only way the
// language exposes a push signal for it: a finalizer on a sentinel object,
// re-armed every time it fires. Each finalization means at least one
// collection has completed since the sentinel was armed — the closest
// analogue to "the runtime's garbage-collection notification facility"
// named in §4.1 for a runtime that otherwise only exposes GC activity as
// polled counters (runtime.MemStats, which drainGCEvents also reads).
type gcNotifier struct {
	ticks chan struct{}
	done  chan struct{}
}

type gcSentinel struct{ n *gcNotifier }

func newGCNotifier() *gcNotifier {
	n := &gcNotifier{
		ticks: make(chan struct{}, 64),
		done:  make(chan struct{}),
	}
	n.arm()
	return n
}

func (n *gcNotifier) arm() {
	s := &gcSentinel{n: n}
	runtime.SetFinalizer(s, finalizeSentinel)
}

func finalizeSentinel(s *gcSentinel) {
	select {
	case <-s.n.done:
		return
	default:
	}
	select {
	case s.n.ticks <- struct{}{}:
	default:
	}
	s.n.arm()
}

// drain returns the number of GC notifications received since the last
// call, without blocking.
func (n *gcNotifier) drain() int {
	count := 0
	for {
		select {
		case <-n.ticks:
			count++
		default:
			return count
		}
	}
}

func (n *gcNotifier) stop() {
	select {
	case <-n.done:
	default:
		close(n.done)
	}
}
