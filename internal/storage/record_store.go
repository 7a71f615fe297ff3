package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/uootd-quotes/pkg/logging"
)

// RecordConfig configures a keyed RecordStore.
type RecordConfig struct {
	// Name labels logs and metrics, e.g. "assets".
	Name string
	// KeyPrefix is prepended to every remote key.
	KeyPrefix string
	// TTL bounds record lifetime. The remote tier enforces it natively; the
	// filesystem tier enforces it on read and in Sweep. Zero disables expiry.
	TTL      time.Duration
	Dir      *FSDir
	Logger   *logging.Logger
	Observer Observer
	Now      func() time.Time
}

// RecordStore persists one JSON document per key.
type RecordStore[T any] struct {
	rdb    *redis.Client
	cfg    RecordConfig
	logger *logging.Logger
	obs    Observer
}

// NewRecordStore creates a store. rdb may be nil, in which case only the
// filesystem tier is used.
func NewRecordStore[T any](rdb *redis.Client, cfg RecordConfig) *RecordStore[T] {
	logger, obs := defaults(cfg.Logger, cfg.Observer, cfg.Name)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &RecordStore[T]{rdb: rdb, cfg: cfg, logger: logger, obs: obs}
}

func (s *RecordStore[T]) remoteKey(key string) string {
	return s.cfg.KeyPrefix + key
}

func (s *RecordStore[T]) fileName(key string) string {
	return SafeFilename(key) + ".json"
}

// Put writes record under key and reports which tier took it.
func (s *RecordStore[T]) Put(ctx context.Context, key string, record *T) Backend {
	backend := s.put(ctx, key, record)
	s.obs.ObserveStorageOp(s.cfg.Name, "put", string(backend))
	return backend
}

func (s *RecordStore[T]) put(ctx context.Context, key string, record *T) Backend {
	if key == "" || record == nil {
		return BackendNone
	}

	if s.rdb != nil {
		data, err := json.Marshal(record)
		if err != nil {
			s.logger.Error("marshal record failed", "error", err, "key", key)
			return BackendNone
		}
		err = s.rdb.Set(ctx, s.remoteKey(key), data, s.cfg.TTL).Err()
		if err == nil {
			return BackendKV
		}
		s.logger.Warn("kv write failed, falling back to fs", "error", err, "key", key)
	}

	if s.cfg.Dir == nil {
		return BackendNone
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		s.logger.Error("marshal record failed", "error", err, "key", key)
		return BackendNone
	}
	if err := s.cfg.Dir.WriteFile(s.fileName(key), data); err != nil {
		s.logger.Error("fs write failed", "error", err, "key", key)
		return BackendNone
	}
	return BackendFS
}

// Get reads the record under key. A remote miss still consults the
// filesystem so records written during a remote outage stay reachable.
func (s *RecordStore[T]) Get(ctx context.Context, key string) (*T, Backend) {
	record, backend := s.get(ctx, key)
	s.obs.ObserveStorageOp(s.cfg.Name, "get", string(backend))
	return record, backend
}

func (s *RecordStore[T]) get(ctx context.Context, key string) (*T, Backend) {
	if key == "" {
		return nil, BackendNone
	}

	if s.rdb != nil {
		raw, err := s.rdb.Get(ctx, s.remoteKey(key)).Bytes()
		switch {
		case err == nil:
			var record T
			jsonErr := json.Unmarshal(raw, &record)
			if jsonErr == nil {
				return &record, BackendKV
			}
			s.logger.Warn("kv record undecodable", "error", jsonErr, "key", key)
		case errors.Is(err, redis.Nil):
		default:
			s.logger.Warn("kv read failed, falling back to fs", "error", err, "key", key)
		}
	}

	if s.cfg.Dir == nil {
		return nil, BackendNone
	}
	name := s.fileName(key)
	if s.expired(name) {
		_ = s.cfg.Dir.Remove(name)
		return nil, BackendNone
	}
	raw, err := s.cfg.Dir.ReadFile(name)
	if err != nil {
		return nil, BackendNone
	}
	var record T
	if err := json.Unmarshal(raw, &record); err != nil {
		s.logger.Warn("fs record undecodable", "error", err, "key", key)
		return nil, BackendNone
	}
	return &record, BackendFS
}

// Delete removes key from whichever tier answers. The filesystem copy is
// always cleared too, since Get falls through to it on a remote miss.
func (s *RecordStore[T]) Delete(ctx context.Context, key string) bool {
	ok, backend := s.delete(ctx, key)
	s.obs.ObserveStorageOp(s.cfg.Name, "delete", string(backend))
	return ok
}

func (s *RecordStore[T]) delete(ctx context.Context, key string) (bool, Backend) {
	if key == "" {
		return false, BackendNone
	}

	if s.rdb != nil {
		err := s.rdb.Del(ctx, s.remoteKey(key)).Err()
		if err == nil {
			if s.cfg.Dir != nil {
				_ = s.cfg.Dir.Remove(s.fileName(key))
			}
			return true, BackendKV
		}
		s.logger.Warn("kv delete failed, falling back to fs", "error", err, "key", key)
	}

	if s.cfg.Dir == nil {
		return false, BackendNone
	}
	if err := s.cfg.Dir.Remove(s.fileName(key)); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("fs delete failed", "error", err, "key", key)
		}
		return false, BackendNone
	}
	return true, BackendFS
}

func (s *RecordStore[T]) expired(name string) bool {
	if s.cfg.TTL <= 0 {
		return false
	}
	info, err := s.cfg.Dir.Stat(name)
	if err != nil {
		return false
	}
	return s.cfg.Now().Sub(info.ModTime()) > s.cfg.TTL
}

// Sweep deletes filesystem records older than the TTL and returns how many
// were removed. The remote tier expires keys on its own.
func (s *RecordStore[T]) Sweep(ctx context.Context) (int, error) {
	if s.cfg.TTL <= 0 || s.cfg.Dir == nil {
		return 0, nil
	}
	dir, err := s.cfg.Dir.Path()
	if err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	cutoff := s.cfg.Now().Add(-s.cfg.TTL)
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("swept expired fs records", "removed", removed)
	}
	return removed, nil
}
