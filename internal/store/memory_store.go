package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// watchBuffer bounds undelivered changes per watcher; notifications past it are
// dropped since delivery is advisory.
const watchBuffer = 64

// MemoryStore is an in-process backing store. Each Open call returns a handle
// that behaves like a separate execution context over the same data.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string]string
	watchers map[uint64]*memoryWatch
	nextID   uint64
}

type memoryWatch struct {
	origin string
	ch     chan Change
}

// NewMemoryStore creates an empty in-memory backing store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:     make(map[string]string),
		watchers: make(map[uint64]*memoryWatch),
	}
}

// Open returns a new handle with its own origin
func (s *MemoryStore) Open() *MemoryHandle {
	return &MemoryHandle{backing: s, origin: uuid.NewString()}
}

// notify must be called with s.mu held.
func (s *MemoryStore) notify(origin string, keys ...string) {
	for _, w := range s.watchers {
		if w.origin == origin {
			continue
		}
		for _, key := range keys {
			select {
			case w.ch <- Change{Key: key, Origin: origin}:
			default:
			}
		}
	}
}

// MemoryHandle implements WatchableStore on top of a MemoryStore
type MemoryHandle struct {
	backing *MemoryStore
	origin  string
}

func (h *MemoryHandle) Origin() string {
	return h.origin
}

func (h *MemoryHandle) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h.backing.mu.RLock()
	defer h.backing.mu.RUnlock()

	value, ok := h.backing.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (h *MemoryHandle) Set(ctx context.Context, key, value string) error {
	return h.SetMany(ctx, map[string]string{key: value})
}

func (h *MemoryHandle) SetMany(ctx context.Context, entries map[string]string) error {
	return h.Update(ctx, entries, nil)
}

func (h *MemoryHandle) Delete(ctx context.Context, keys ...string) error {
	return h.Update(ctx, nil, keys)
}

func (h *MemoryHandle) Update(ctx context.Context, set map[string]string, del []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.backing.mu.Lock()
	defer h.backing.mu.Unlock()

	keys := make([]string, 0, len(set)+len(del))
	for _, k := range del {
		delete(h.backing.data, k)
		keys = append(keys, k)
	}
	for k, v := range set {
		h.backing.data[k] = v
		keys = append(keys, k)
	}
	h.backing.notify(h.origin, keys...)
	return nil
}

// Watch registers for changes made by other handles until ctx is done
func (h *MemoryHandle) Watch(ctx context.Context) (<-chan Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := &memoryWatch{origin: h.origin, ch: make(chan Change, watchBuffer)}

	s := h.backing
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = w
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, id)
		close(w.ch)
		s.mu.Unlock()
	}()

	return w.ch, nil
}
