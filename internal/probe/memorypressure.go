package probe

import (
	"context"
	"os"
	"sync/atomic"

	"github.com/cilium/ebpf/perf"
	"github.com/dmitriimaksimovdevelop/memguard/internal/ebpf"
)

// memoryPressureWatcher folds the kernel's own direct-reclaim tracepoint
// into Sample.os.reclaimEvents when the host supports native eBPF with
// BTF/CO-RE and the compiled object ships alongside the binary. Absent
// either, it reports zero silently — this is a bonus signal, not a
// required counter, so it never emits the one-shot warning the way a
// missing required counter does.
type memoryPressureWatcher struct {
	loader *ebpf.Loader
	count  uint64 // atomic
	cancel context.CancelFunc
}

func newMemoryPressureWatcher() *memoryPressureWatcher {
	return &memoryPressureWatcher{loader: ebpf.NewLoader(false)}
}

// available reports BTF/CO-RE support plus the object file actually
// present on disk.
func (w *memoryPressureWatcher) available() bool {
	if !w.loader.CanLoad() {
		return false
	}
	for _, spec := range ebpf.NativePrograms {
		if spec.Name == "kmem_pressure" {
			if _, err := os.Stat(spec.ObjectFile); err == nil {
				return true
			}
		}
	}
	return false
}

// start loads the program and counts events until ctx is cancelled. Errors
// are swallowed: this watcher is best-effort and its absence never fails a
// Sample (§4.1).
func (w *memoryPressureWatcher) start(ctx context.Context) {
	if !w.available() {
		return
	}
	var spec *ebpf.ProgramSpec
	for i := range ebpf.NativePrograms {
		if ebpf.NativePrograms[i].Name == "kmem_pressure" {
			spec = &ebpf.NativePrograms[i]
			break
		}
	}
	if spec == nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	prog, err := w.loader.TryLoad(runCtx, spec)
	if err != nil {
		return
	}

	eventsMap := prog.Collection.Maps["events"]
	if eventsMap == nil {
		prog.Close()
		return
	}
	rd, err := perf.NewReader(eventsMap, 4096)
	if err != nil {
		prog.Close()
		return
	}

	go func() {
		defer prog.Close()
		defer rd.Close()
		go func() {
			<-runCtx.Done()
			rd.Close()
		}()
		for {
			if _, err := rd.Read(); err != nil {
				return
			}
			atomic.AddUint64(&w.count, 1)
		}
	}()
}

// drain returns the accumulated event count and resets it to zero.
func (w *memoryPressureWatcher) drain() uint64 {
	return atomic.SwapUint64(&w.count, 0)
}

func (w *memoryPressureWatcher) stop() {
	if w.cancel != nil {
		w.cancel()
	}
}
