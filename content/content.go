// Package content loads named resources in the background and hands out
// handles that report when loading has finished.
package content

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"honnef.co/go/render2d/gfx"
	"honnef.co/go/render2d/renderer"
)

var ErrUnknownAsset = errors.New("unknown asset")

// LoadFunc produces the value of the resource named id. It runs on its own
// goroutine and should return early when ctx is canceled.
type LoadFunc func(ctx context.Context, id string) (any, error)

// Manager is safe for concurrent use.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	loaders map[string]LoadFunc
	handles map[string]any
	nextID  uint32
}

func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		ctx:     ctx,
		cancel:  cancel,
		loaders: make(map[string]LoadFunc),
		handles: make(map[string]any),
	}
}

// Register sets the loader for id, replacing any earlier one. Resources that
// have already been requested are not reloaded.
func (m *Manager) Register(id string, fn LoadFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaders[id] = fn
}

// Close cancels all loads in progress and waits for their goroutines.
func (m *Manager) Close() error {
	m.cancel()
	m.wg.Wait()
	return nil
}

// Handle is a resource that may still be loading.
type Handle[T any] struct {
	id   uint32
	name string

	done      chan struct{}
	completed atomic.Bool
	// value and err are written once, before done is closed.
	value T
	err   error
}

// Load requests the resource named id and returns immediately. Requesting
// the same id again returns the same handle. It panics if id was previously
// requested with a different type.
func Load[T any](m *Manager, id string) *Handle[T] {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.handles[id]; ok {
		th, ok := h.(*Handle[T])
		if !ok {
			panic(fmt.Sprintf("asset %q loaded as %T, requested as %T", id, h, th))
		}
		return th
	}

	m.nextID++
	h := &Handle[T]{
		id:   m.nextID,
		name: id,
		done: make(chan struct{}),
	}
	m.handles[id] = h

	fn, ok := m.loaders[id]
	if !ok {
		h.finish(*new(T), fmt.Errorf("%q: %w", id, ErrUnknownAsset))
		return h
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		v, err := fn(m.ctx, id)
		if err != nil {
			h.finish(*new(T), fmt.Errorf("loading %q: %w", id, err))
			return
		}
		tv, ok := v.(T)
		if !ok {
			h.finish(*new(T), fmt.Errorf("loading %q: got %T, want %T", id, v, tv))
			return
		}
		h.finish(tv, nil)
	}()
	return h
}

// LoadPipeline implements renderer.Content.
func (m *Manager) LoadPipeline(id string) gfx.Pipeline {
	return Load[any](m, id)
}

func (h *Handle[T]) finish(v T, err error) {
	h.value = v
	h.err = err
	if err != nil {
		renderer.Logger().Warn("content load failed", "id", h.name, "err", err)
	} else {
		h.completed.Store(true)
	}
	close(h.done)
}

// ID is assigned in request order, starting at 1.
func (h *Handle[T]) ID() uint32   { return h.id }
func (h *Handle[T]) Name() string { return h.name }

// HasCompleted reports whether the resource has loaded successfully. Failed
// loads never complete.
func (h *Handle[T]) HasCompleted() bool { return h.completed.Load() }

// Get returns the value once loading has succeeded.
func (h *Handle[T]) Get() (T, bool) {
	if !h.completed.Load() {
		var zero T
		return zero, false
	}
	return h.value, true
}

// Value is Get with the value boxed, for consumers that don't know T.
func (h *Handle[T]) Value() (any, bool) {
	v, ok := h.Get()
	return v, ok
}

// Wait blocks until loading has finished or ctx is done.
func (h *Handle[T]) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
