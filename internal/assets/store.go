// Package assets keeps the screenshot behind every generated quote so staff
// can look at it when the visitor follows up.
package assets

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/uootd-quotes/internal/storage"
	"github.com/wolfman30/uootd-quotes/pkg/dataurl"
	"github.com/wolfman30/uootd-quotes/pkg/logging"
)

const (
	// KeyPrefix namespaces asset keys in the shared KV database.
	KeyPrefix = "uootd:asset:v1:"
	// Retention is how long an asset is kept after the quote.
	Retention = 7 * 24 * time.Hour
)

// QuoteAsset is the stored reference to an uploaded image.
type QuoteAsset struct {
	QuoteID   string `json:"quoteId"`
	CreatedAt string `json:"createdAt"`
	ImageURL  string `json:"imageUrl"`
}

// Config wires a Store.
type Config struct {
	DataDir  string
	Dir      *storage.FSDir
	Mirror   *S3Mirror
	Logger   *logging.Logger
	Observer storage.Observer
	Now      func() time.Time
}

// Store persists QuoteAssets keyed by quote id.
type Store struct {
	records *storage.RecordStore[QuoteAsset]
	mirror  *S3Mirror
	logger  *logging.Logger
	now     func() time.Time
}

// NewStore creates a store over rdb (may be nil) and the filesystem.
func NewStore(rdb *redis.Client, cfg Config) *Store {
	if cfg.Dir == nil {
		cfg.Dir = storage.DefaultFSDir(cfg.DataDir, "quote-assets")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{
		records: storage.NewRecordStore[QuoteAsset](rdb, storage.RecordConfig{
			Name:      "assets",
			KeyPrefix: KeyPrefix,
			TTL:       Retention,
			Dir:       cfg.Dir,
			Logger:    cfg.Logger,
			Observer:  cfg.Observer,
			Now:       cfg.Now,
		}),
		mirror: cfg.Mirror,
		logger: cfg.Logger.Component("assets"),
		now:    cfg.Now,
	}
}

// Put records imageURL for quoteID. Empty inputs are a no-op.
func (s *Store) Put(ctx context.Context, quoteID, imageURL string) storage.Backend {
	quoteID = strings.TrimSpace(quoteID)
	if quoteID == "" || imageURL == "" {
		return storage.BackendNone
	}

	asset := &QuoteAsset{
		QuoteID:   quoteID,
		CreatedAt: s.now().UTC().Format(time.RFC3339Nano),
		ImageURL:  imageURL,
	}
	backend := s.records.Put(ctx, quoteID, asset)
	if !backend.OK() {
		s.logger.Warn("quote asset not persisted", "quote_id", quoteID)
	}

	if d, ok := dataurl.Parse(imageURL); ok && s.mirror.Enabled() {
		if err := s.mirror.Upload(ctx, quoteID, d); err != nil {
			s.logger.Warn("asset mirror upload failed", "error", err, "quote_id", quoteID)
		}
	}
	return backend
}

// Get returns the asset for quoteID, or nil.
func (s *Store) Get(ctx context.Context, quoteID string) (*QuoteAsset, storage.Backend) {
	quoteID = strings.TrimSpace(quoteID)
	if quoteID == "" {
		return nil, storage.BackendNone
	}
	return s.records.Get(ctx, quoteID)
}

// Delete removes the asset and its mirror copy.
func (s *Store) Delete(ctx context.Context, quoteID string) bool {
	quoteID = strings.TrimSpace(quoteID)
	if quoteID == "" {
		return false
	}
	ok := s.records.Delete(ctx, quoteID)
	if s.mirror.Enabled() {
		if err := s.mirror.Delete(ctx, quoteID); err != nil {
			s.logger.Warn("asset mirror delete failed", "error", err, "quote_id", quoteID)
		}
	}
	return ok
}

// Sweep expires filesystem assets past Retention.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	return s.records.Sweep(ctx)
}
