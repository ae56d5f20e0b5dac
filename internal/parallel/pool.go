package parallel

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool executes NDRange work-groups on a fixed set of goroutines.
//
// Each worker owns a queue. Groups are dealt round-robin and idle workers
// steal from their neighbours, which keeps the pool balanced when some
// groups run longer than others.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers int

	// queues holds per-worker task queues.
	queues []chan func()

	done chan struct{}
	wg   sync.WaitGroup

	running atomic.Bool
}

// PanicError reports a task that panicked while running on the pool.
type PanicError struct {
	// Group is the index passed to the task that panicked.
	Group int
	// Value is the recovered panic value.
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("parallel: group %d panicked: %v", e.Group, e.Value)
}

// NewWorkerPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	queueSize := max(workers*4, 8)

	p := &WorkerPool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}

	p.running.Store(true)
	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	own := p.queues[id]
	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case task := <-own:
			task()
			continue
		default:
		}

		if task := p.steal(id); task != nil {
			task()
			continue
		}

		select {
		case <-p.done:
			p.drain(own)
			return
		case task := <-own:
			task()
		}
	}
}

func (p *WorkerPool) drain(queue chan func()) {
	for {
		select {
		case task := <-queue:
			task()
		default:
			return
		}
	}
}

func (p *WorkerPool) steal(id int) func() {
	for i := 1; i < p.workers; i++ {
		select {
		case task := <-p.queues[(id+i)%p.workers]:
			return task
		default:
		}
	}
	return nil
}

// Run calls fn(g) for every g in [0, groups) and waits for all of them.
//
// A panicking task does not take down its worker: the first panic is
// returned as a *PanicError once every group has finished. Run on a
// closed pool executes the groups on the calling goroutine.
func (p *WorkerPool) Run(groups int, fn func(group int)) error {
	if groups <= 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		firstErr atomic.Pointer[PanicError]
	)
	call := func(g int) {
		defer func() {
			if r := recover(); r != nil {
				firstErr.CompareAndSwap(nil, &PanicError{Group: g, Value: r})
			}
		}()
		fn(g)
	}

	if !p.running.Load() {
		for g := range groups {
			call(g)
		}
		if err := firstErr.Load(); err != nil {
			return err
		}
		return nil
	}

	wg.Add(groups)
	for g := range groups {
		task := func() {
			defer wg.Done()
			call(g)
		}
		select {
		case p.queues[g%p.workers] <- task:
		case <-p.done:
			task()
		}
	}
	wg.Wait()

	if err := firstErr.Load(); err != nil {
		return err
	}
	return nil
}

// Submit queues a single task on the least loaded worker without waiting.
// It is a no-op on a closed pool.
func (p *WorkerPool) Submit(fn func()) {
	if fn == nil || !p.running.Load() {
		return
	}

	target := 0
	for i := 1; i < p.workers; i++ {
		if len(p.queues[i]) < len(p.queues[target]) {
			target = i
		}
	}

	select {
	case p.queues[target] <- fn:
	case <-p.done:
	}
}

// Close stops the pool after queued tasks have run.
// Close is safe to call multiple times but must not race with Run.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning reports whether the pool still accepts work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}
