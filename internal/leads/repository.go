package leads

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/uootd-quotes/internal/storage"
	"github.com/wolfman30/uootd-quotes/pkg/logging"
)

const (
	// ListKey is the remote list holding every lead, newest first.
	ListKey = "uootd:leads:v1"
	// MaxStored caps retained leads; the oldest are evicted first.
	MaxStored = 400
)

// Repository defines the interface for lead storage
type Repository interface {
	Append(ctx context.Context, lead *Lead) storage.Backend
	List(ctx context.Context) ([]Lead, storage.Backend)
	Delete(ctx context.Context, id string) (bool, storage.Backend)
}

// RepositoryConfig wires a StoreRepository.
type RepositoryConfig struct {
	DataDir  string
	Dir      *storage.FSDir
	MaxLen   int
	Logger   *logging.Logger
	Observer storage.Observer
}

// StoreRepository keeps leads in the two-tier list store.
type StoreRepository struct {
	list *storage.ListStore[Lead]
}

// NewStoreRepository creates a repository over rdb (may be nil).
func NewStoreRepository(rdb *redis.Client, cfg RepositoryConfig) *StoreRepository {
	if cfg.Dir == nil {
		cfg.Dir = storage.DefaultFSDir(cfg.DataDir, "")
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = MaxStored
	}
	return &StoreRepository{
		list: storage.NewListStore[Lead](rdb, storage.ListConfig{
			Name:     "leads",
			Key:      ListKey,
			FileName: "leads.json",
			MaxLen:   cfg.MaxLen,
			Dir:      cfg.Dir,
			Logger:   cfg.Logger,
			Observer: cfg.Observer,
		}),
	}
}

// Append stores lead at the head of the list.
func (r *StoreRepository) Append(ctx context.Context, lead *Lead) storage.Backend {
	return r.list.Push(ctx, *lead)
}

// List returns stored leads in storage order.
func (r *StoreRepository) List(ctx context.Context) ([]Lead, storage.Backend) {
	return r.list.Range(ctx)
}

// Delete removes the lead with id.
func (r *StoreRepository) Delete(ctx context.Context, id string) (bool, storage.Backend) {
	return r.list.Remove(ctx, func(l Lead) bool { return l.ID == id })
}

// InMemoryRepository is a process-local Repository for tests and local runs
type InMemoryRepository struct {
	mu     sync.RWMutex
	leads  []Lead
	maxLen int
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{maxLen: MaxStored}
}

// Append prepends lead, evicting the oldest past MaxStored.
func (r *InMemoryRepository) Append(ctx context.Context, lead *Lead) storage.Backend {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads = append([]Lead{*lead}, r.leads...)
	if len(r.leads) > r.maxLen {
		r.leads = r.leads[:r.maxLen]
	}
	return storage.BackendFS
}

// List returns a copy of the stored leads.
func (r *InMemoryRepository) List(ctx context.Context) ([]Lead, storage.Backend) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Lead, len(r.leads))
	copy(out, r.leads)
	return out, storage.BackendFS
}

// Delete removes the lead with id.
func (r *InMemoryRepository) Delete(ctx context.Context, id string) (bool, storage.Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.leads {
		if l.ID == id {
			r.leads = append(r.leads[:i], r.leads[i+1:]...)
			return true, storage.BackendFS
		}
	}
	return false, storage.BackendFS
}
