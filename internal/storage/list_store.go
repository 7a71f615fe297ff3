package storage

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/uootd-quotes/pkg/logging"
)

// ListConfig configures a bounded, newest-first ListStore.
type ListConfig struct {
	Name string
	// Key is the remote list key.
	Key string
	// FileName is the JSON array file used by the filesystem tier.
	FileName string
	// MaxLen caps retained records; the oldest are evicted first.
	MaxLen   int
	Dir      *FSDir
	Logger   *logging.Logger
	Observer Observer
}

// ListStore keeps an append-only, length-capped list of records.
//
// The remote tier pushes and trims inside one MULTI block. The filesystem
// tier rewrites the whole array; writers in this process are serialised by
// fsMu, writers in other processes sharing the directory are not.
type ListStore[T any] struct {
	rdb    *redis.Client
	cfg    ListConfig
	logger *logging.Logger
	obs    Observer
	fsMu   sync.Mutex
}

// NewListStore creates a list store. rdb may be nil.
func NewListStore[T any](rdb *redis.Client, cfg ListConfig) *ListStore[T] {
	logger, obs := defaults(cfg.Logger, cfg.Observer, cfg.Name)
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = 400
	}
	if cfg.FileName == "" {
		cfg.FileName = SafeFilename(cfg.Name) + ".json"
	}
	return &ListStore[T]{rdb: rdb, cfg: cfg, logger: logger, obs: obs}
}

// MaxLen returns the retention ceiling.
func (s *ListStore[T]) MaxLen() int {
	return s.cfg.MaxLen
}

// Push prepends record and trims the list to MaxLen.
func (s *ListStore[T]) Push(ctx context.Context, record T) Backend {
	backend := s.push(ctx, record)
	s.obs.ObserveStorageOp(s.cfg.Name, "push", string(backend))
	return backend
}

func (s *ListStore[T]) push(ctx context.Context, record T) Backend {
	data, err := json.Marshal(record)
	if err != nil {
		s.logger.Error("marshal record failed", "error", err)
		return BackendNone
	}

	if s.rdb != nil {
		_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LPush(ctx, s.cfg.Key, data)
			pipe.LTrim(ctx, s.cfg.Key, 0, int64(s.cfg.MaxLen-1))
			return nil
		})
		if err == nil {
			return BackendKV
		}
		s.logger.Warn("kv push failed, falling back to fs", "error", err)
	}

	if s.cfg.Dir == nil {
		return BackendNone
	}
	s.fsMu.Lock()
	defer s.fsMu.Unlock()

	existing := s.readFS()
	next := make([]T, 0, len(existing)+1)
	next = append(next, record)
	next = append(next, existing...)
	if len(next) > s.cfg.MaxLen {
		next = next[:s.cfg.MaxLen]
	}
	if err := s.writeFS(next); err != nil {
		s.logger.Error("fs push failed", "error", err)
		return BackendNone
	}
	return BackendFS
}

// Range returns every retained record in stored (newest-first) order along
// with the tier that answered.
func (s *ListStore[T]) Range(ctx context.Context) ([]T, Backend) {
	records, backend := s.rangeRecords(ctx)
	s.obs.ObserveStorageOp(s.cfg.Name, "range", string(backend))
	return records, backend
}

func (s *ListStore[T]) rangeRecords(ctx context.Context) ([]T, Backend) {
	if s.rdb != nil {
		rows, err := s.rdb.LRange(ctx, s.cfg.Key, 0, int64(s.cfg.MaxLen-1)).Result()
		if err == nil {
			return s.decodeRows(rows), BackendKV
		}
		s.logger.Warn("kv range failed, falling back to fs", "error", err)
	}

	if s.cfg.Dir == nil {
		return nil, BackendNone
	}
	s.fsMu.Lock()
	defer s.fsMu.Unlock()
	return s.readFS(), BackendFS
}

// Remove drops every record matching match. It reports false when nothing
// matched or no tier could be updated.
func (s *ListStore[T]) Remove(ctx context.Context, match func(T) bool) (bool, Backend) {
	removed, backend := s.remove(ctx, match)
	s.obs.ObserveStorageOp(s.cfg.Name, "remove", string(backend))
	return removed, backend
}

func (s *ListStore[T]) remove(ctx context.Context, match func(T) bool) (bool, Backend) {
	if s.rdb != nil {
		removed, err := s.removeKV(ctx, match)
		if err == nil {
			return removed, BackendKV
		}
		s.logger.Warn("kv remove failed, falling back to fs", "error", err)
	}

	if s.cfg.Dir == nil {
		return false, BackendNone
	}
	s.fsMu.Lock()
	defer s.fsMu.Unlock()

	existing := s.readFS()
	kept := existing[:0:0]
	for _, record := range existing {
		if !match(record) {
			kept = append(kept, record)
		}
	}
	if len(kept) == len(existing) {
		return false, BackendFS
	}
	if err := s.writeFS(kept); err != nil {
		s.logger.Error("fs remove failed", "error", err)
		return false, BackendNone
	}
	return true, BackendFS
}

func (s *ListStore[T]) removeKV(ctx context.Context, match func(T) bool) (bool, error) {
	rows, err := s.rdb.LRange(ctx, s.cfg.Key, 0, int64(s.cfg.MaxLen-1)).Result()
	if err != nil {
		return false, err
	}

	kept := make([]any, 0, len(rows))
	for _, row := range rows {
		var record T
		if err := json.Unmarshal([]byte(row), &record); err != nil {
			continue
		}
		if !match(record) {
			kept = append(kept, row)
		}
	}
	if len(kept) == len(rows) {
		return false, nil
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.cfg.Key)
		if len(kept) > 0 {
			pipe.RPush(ctx, s.cfg.Key, kept...)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *ListStore[T]) decodeRows(rows []string) []T {
	records := make([]T, 0, len(rows))
	for _, row := range rows {
		var record T
		if err := json.Unmarshal([]byte(row), &record); err != nil {
			s.logger.Warn("skipping undecodable kv row", "error", err)
			continue
		}
		records = append(records, record)
	}
	return records
}

// readFS must be called with fsMu held.
func (s *ListStore[T]) readFS() []T {
	raw, err := s.cfg.Dir.ReadFile(s.cfg.FileName)
	if err != nil {
		return nil
	}
	var records []T
	if err := json.Unmarshal(raw, &records); err != nil {
		s.logger.Warn("fs list undecodable, starting empty", "error", err)
		return nil
	}
	return records
}

// writeFS must be called with fsMu held.
func (s *ListStore[T]) writeFS(records []T) error {
	if records == nil {
		records = []T{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return s.cfg.Dir.WriteFile(s.cfg.FileName, data)
}
