package identity

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/missionlab/payment-service/pkg/logger"
)

var (
	// ErrMappingNotFound is returned by MappingStore.Lookup for an unknown identity.
	ErrMappingNotFound = errors.New("identity mapping not found")
	// ErrMappingStoreFailed wraps backend failures of a MappingStore.
	ErrMappingStoreFailed = errors.New("identity mapping store failed")
)

// MappingStore persists identity to id assignments.
type MappingStore interface {
	Lookup(ctx context.Context, external string) (int64, error)
	// Assign stores a fresh id for external unless one exists already, and
	// returns whichever id is stored afterwards.
	Assign(ctx context.Context, external string) (int64, error)
}

// TableResolver resolves identities through an explicit mapping table.
type TableResolver struct {
	store  MappingStore
	logger *slog.Logger
}

// NewTableResolver creates a resolver over store. A nil store selects an
// in-memory table.
func NewTableResolver(store MappingStore, log *slog.Logger) *TableResolver {
	if store == nil {
		store = NewMemoryMappings(1)
	}
	if log == nil {
		log = slog.Default()
	}
	return &TableResolver{store: store, logger: log.With(logger.Component("identity"))}
}

func (r *TableResolver) Resolve(ctx context.Context, external string) (int64, error) {
	v, err := normalize(external)
	if err != nil {
		return 0, err
	}

	id, err := r.store.Lookup(ctx, v)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrMappingNotFound) {
		return 0, err
	}

	id, err = r.store.Assign(ctx, v)
	if err != nil {
		return 0, err
	}
	r.logger.InfoContext(ctx, "identity mapped", logger.UserID(id))
	return id, nil
}

// MemoryMappings is a process-local MappingStore.
type MemoryMappings struct {
	mu   sync.Mutex
	next int64
	ids  map[string]int64
}

// NewMemoryMappings creates an empty table whose first assigned id is start.
func NewMemoryMappings(start int64) *MemoryMappings {
	if start < 1 {
		start = 1
	}
	return &MemoryMappings{next: start, ids: make(map[string]int64)}
}

func (m *MemoryMappings) Lookup(_ context.Context, external string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.ids[external]
	if !ok {
		return 0, ErrMappingNotFound
	}
	return id, nil
}

func (m *MemoryMappings) Assign(_ context.Context, external string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.ids[external]; ok {
		return id, nil
	}
	id := m.next
	m.next++
	m.ids[external] = id
	return id, nil
}
