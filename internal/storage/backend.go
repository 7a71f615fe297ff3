// Package storage implements the two-tier persistence used for leads and
// quote assets: a remote key-value backend when configured, falling back to
// JSON files on the local filesystem for every operation that fails remotely.
package storage

import (
	"regexp"

	"github.com/wolfman30/uootd-quotes/pkg/logging"
)

// Backend names the tier that served an operation.
type Backend string

const (
	BackendKV   Backend = "kv"
	BackendFS   Backend = "fs"
	BackendNone Backend = "none"
)

// OK reports whether any tier accepted the operation.
func (b Backend) OK() bool {
	return b == BackendKV || b == BackendFS
}

// Observer receives one call per completed store operation.
type Observer interface {
	ObserveStorageOp(store, op, backend string)
}

type nopObserver struct{}

func (nopObserver) ObserveStorageOp(string, string, string) {}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SafeFilename maps a key onto a name that is safe in any directory.
func SafeFilename(key string) string {
	return unsafeFilenameChars.ReplaceAllString(key, "_")
}

func defaults(logger *logging.Logger, obs Observer, name string) (*logging.Logger, Observer) {
	if logger == nil {
		logger = logging.Default()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return logger.Component("storage." + name), obs
}
