package genetic

import (
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// Future is the pending result of a submitted fitness computation.
// Await blocks until the value is available and may be called any number
// of times from any goroutine.
type Future interface {
	Await() float64
}

// Evaluator runs fitness computations. Submit must not wait for the result.
type Evaluator interface {
	Submit(fn func() float64) Future
}

// SyncEvaluator computes fitness lazily on the awaiting goroutine.
type SyncEvaluator struct{}

func (SyncEvaluator) Submit(fn func() float64) Future {
	return &lazyFuture{fn: fn}
}

type lazyFuture struct {
	once  sync.Once
	fn    func() float64
	value float64
}

func (f *lazyFuture) Await() float64 {
	f.once.Do(func() { f.value = f.fn() })
	return f.value
}

// PoolEvaluator runs submissions on a bounded goroutine pool so that a
// whole generation can be scored concurrently.
type PoolEvaluator struct {
	p *pool.Pool
}

// NewPoolEvaluator creates an evaluator with at most workers concurrent
// fitness computations. workers < 1 means unbounded.
func NewPoolEvaluator(workers int) *PoolEvaluator {
	p := pool.New()
	if workers > 0 {
		p = p.WithMaxGoroutines(workers)
	}
	return &PoolEvaluator{p: p}
}

// Submit queues fn. It blocks only while every worker is busy.
func (e *PoolEvaluator) Submit(fn func() float64) Future {
	f := &poolFuture{done: make(chan struct{})}
	e.p.Go(func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.panicked = r
			}
		}()
		f.value = fn()
	})
	return f
}

// Close waits for outstanding submissions. The evaluator may be reused.
func (e *PoolEvaluator) Close() {
	e.p.Wait()
}

type poolFuture struct {
	done     chan struct{}
	value    float64
	panicked any
}

func (f *poolFuture) Await() float64 {
	<-f.done
	if f.panicked != nil {
		panic(fmt.Sprintf("fitness evaluation panicked: %v", f.panicked))
	}
	return f.value
}

// FitnessCache memoizes an organism's fitness. The value is computed at most
// once; concurrent PrepareFitness/Fitness calls on the same organism are safe.
type FitnessCache struct {
	mu     sync.Mutex
	done   bool
	value  float64
	future Future
}

// SubmitFitness starts the computation unless it is already pending or known.
func (c *FitnessCache) SubmitFitness(ev Evaluator, fn func() float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done || c.future != nil {
		return
	}
	if ev == nil {
		ev = SyncEvaluator{}
	}
	c.future = ev.Submit(fn)
}

// AwaitFitness returns the memoized value, submitting first if needed.
func (c *FitnessCache) AwaitFitness(ev Evaluator, fn func() float64) float64 {
	c.SubmitFitness(ev, fn)

	c.mu.Lock()
	if c.done {
		v := c.value
		c.mu.Unlock()
		return v
	}
	f := c.future
	c.mu.Unlock()

	v := f.Await()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.done {
		c.value, c.done, c.future = v, true, nil
	}
	return c.value
}

// KnownFitness returns the cached value if it has been computed.
func (c *FitnessCache) KnownFitness() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.done
}

// SeedFitness installs a value computed elsewhere, e.g. restored from a checkpoint.
func (c *FitnessCache) SeedFitness(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value, c.done, c.future = v, true, nil
}
