package storefront

import (
	"context"
	"sync"
)

// LoadState is the lifecycle of an explicit load.
type LoadState int

const (
	LoadIdle LoadState = iota
	LoadLoading
	LoadSucceeded
	LoadFailed
)

func (s LoadState) String() string {
	switch s {
	case LoadLoading:
		return "loading"
	case LoadSucceeded:
		return "success"
	case LoadFailed:
		return "error"
	default:
		return "idle"
	}
}

// Result is the outcome of a load. Value keeps the last successful value while a reload is in flight or failed.
type Result[T any] struct {
	State LoadState
	Value T
	Err   error
}

// Loader runs fetch on demand. Starting a load cancels the one in flight, so a slow stale response
// can never overwrite a newer one.
type Loader[T any] struct {
	fetch func(ctx context.Context) (T, error)

	mu      sync.Mutex
	current Result[T]
	cancel  context.CancelFunc
	seq     uint64
}

// NewLoader wraps fetch.
func NewLoader[T any](fetch func(ctx context.Context) (T, error)) *Loader[T] {
	return &Loader[T]{fetch: fetch}
}

// Load cancels any in-flight load, runs fetch and returns its result.
// A load superseded while running returns ErrLoadSuperseded and leaves Current untouched.
func (l *Loader[T]) Load(ctx context.Context) Result[T] {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	l.seq++
	seq := l.seq
	l.cancel = cancel
	l.current = Result[T]{State: LoadLoading, Value: l.current.Value}
	l.mu.Unlock()

	value, err := l.fetch(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if seq != l.seq {
		cancel()
		return Result[T]{State: LoadFailed, Value: l.current.Value, Err: ErrLoadSuperseded}
	}
	cancel()
	l.cancel = nil
	if err != nil {
		l.current = Result[T]{State: LoadFailed, Value: l.current.Value, Err: err}
	} else {
		l.current = Result[T]{State: LoadSucceeded, Value: value}
	}
	return l.current
}

// Set records value as a successful result without fetching, cancelling any load in flight.
func (l *Loader[T]) Set(value T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.seq++
	l.current = Result[T]{State: LoadSucceeded, Value: value}
}

// Cancel aborts the load in flight, if any.
func (l *Loader[T]) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
}

// Current returns the latest result.
func (l *Loader[T]) Current() Result[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}
