// Package future provides a single-resolution asynchronous result.
//
// Continuations registered with Done, Fail and Always never run inside the
// call that registers them or inside Resolve/Reject: they are handed to a
// Scheduler in registration order. Pair the future with a Queue for fully
// deterministic, cooperative execution, or with a Serial worker when results
// arrive from other goroutines.
package future

import (
	"context"
	"errors"
	"sync"
)

// ErrRejected is the rejection reason used when Reject is called with nil.
var ErrRejected = errors.New("future: rejected")

// State is the settlement state of a Future.
type State int

const (
	StatePending State = iota
	StateResolved
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateResolved:
		return "resolved"
	case StateRejected:
		return "rejected"
	default:
		return "pending"
	}
}

// Future holds a value of type T that becomes available later.
type Future[T any] struct {
	mu        sync.Mutex
	scheduler Scheduler
	state     State
	value     T
	err       error
	pending   []func()
}

// New returns a pending future whose continuations run on scheduler.
func New[T any](scheduler Scheduler) *Future[T] {
	if scheduler == nil {
		scheduler = Default()
	}
	return &Future[T]{scheduler: scheduler}
}

// Resolved returns a future already resolved with value.
func Resolved[T any](scheduler Scheduler, value T) *Future[T] {
	f := New[T](scheduler)
	f.Resolve(value)
	return f
}

// Rejected returns a future already rejected with err.
func Rejected[T any](scheduler Scheduler, err error) *Future[T] {
	f := New[T](scheduler)
	f.Reject(err)
	return f
}

// Go runs fn on a new goroutine and settles the returned future with its
// result.
func Go[T any](scheduler Scheduler, fn func() (T, error)) *Future[T] {
	f := New[T](scheduler)
	go func() {
		value, err := fn()
		if err != nil {
			f.Reject(err)
			return
		}
		f.Resolve(value)
	}()
	return f
}

// Map chains fn onto f, returning a future settled with fn's result, or with
// f's rejection.
func Map[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	next := New[U](f.scheduler)
	f.Done(func(value T) {
		out, err := fn(value)
		if err != nil {
			next.Reject(err)
			return
		}
		next.Resolve(out)
	})
	f.Fail(func(err error) {
		next.Reject(err)
	})
	return next
}

// Resolve settles the future with value. It reports false when the future was
// already settled.
func (f *Future[T]) Resolve(value T) bool {
	f.mu.Lock()
	if f.state != StatePending {
		f.mu.Unlock()
		return false
	}
	f.state = StateResolved
	f.value = value
	callbacks := f.pending
	f.pending = nil
	f.mu.Unlock()

	f.dispatch(callbacks)
	return true
}

// Reject settles the future with err. It reports false when the future was
// already settled.
func (f *Future[T]) Reject(err error) bool {
	if err == nil {
		err = ErrRejected
	}
	f.mu.Lock()
	if f.state != StatePending {
		f.mu.Unlock()
		return false
	}
	f.state = StateRejected
	f.err = err
	callbacks := f.pending
	f.pending = nil
	f.mu.Unlock()

	f.dispatch(callbacks)
	return true
}

// Done registers fn to run when the future resolves.
func (f *Future[T]) Done(fn func(T)) *Future[T] {
	if fn == nil {
		return f
	}
	f.enqueue(func() {
		if f.state == StateResolved {
			fn(f.value)
		}
	})
	return f
}

// Fail registers fn to run when the future is rejected.
func (f *Future[T]) Fail(fn func(error)) *Future[T] {
	if fn == nil {
		return f
	}
	f.enqueue(func() {
		if f.state == StateRejected {
			fn(f.err)
		}
	})
	return f
}

// Always registers fn to run once the future settles either way.
func (f *Future[T]) Always(fn func()) *Future[T] {
	if fn == nil {
		return f
	}
	f.enqueue(fn)
	return f
}

// Then registers both continuations at once.
func (f *Future[T]) Then(onResolve func(T), onReject func(error)) *Future[T] {
	return f.Done(onResolve).Fail(onReject)
}

// State returns the current settlement state.
func (f *Future[T]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Result returns the settled value and error. ok is false while pending.
func (f *Future[T]) Result() (value T, err error, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err, f.state != StatePending
}

// Wait blocks until the future settles and every continuation registered
// before the call has run. With a Queue scheduler something must keep
// draining the queue or Wait only returns on ctx cancellation.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	done := make(chan struct{})
	f.Always(func() { close(done) })
	select {
	case <-done:
		value, err, _ := f.Result()
		return value, err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (f *Future[T]) enqueue(task func()) {
	f.mu.Lock()
	if f.state == StatePending {
		f.pending = append(f.pending, task)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	f.scheduler.Schedule(task)
}

func (f *Future[T]) dispatch(callbacks []func()) {
	for _, task := range callbacks {
		f.scheduler.Schedule(task)
	}
}
