package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNoWritableDir is returned when none of the candidate directories can be
// created and written.
var ErrNoWritableDir = errors.New("storage: no writable directory")

// FSDir resolves the first usable directory from an ordered candidate list
// and remembers it for the life of the instance. A failed write invalidates
// the choice so the next candidate gets a chance.
type FSDir struct {
	mu         sync.Mutex
	candidates []string
	resolved   int // index into candidates, -1 when unresolved
}

// NewFSDir creates a resolver over candidates, most preferred first.
func NewFSDir(candidates ...string) *FSDir {
	var cleaned []string
	for _, c := range candidates {
		if c != "" {
			cleaned = append(cleaned, filepath.Clean(c))
		}
	}
	return &FSDir{candidates: cleaned, resolved: -1}
}

// DefaultFSDir prefers dataDir/sub and falls back to the OS temp directory.
func DefaultFSDir(dataDir, sub string) *FSDir {
	return NewFSDir(
		filepath.Join(dataDir, sub),
		filepath.Join(os.TempDir(), "uootd", sub),
	)
}

// Path returns the resolved directory, creating it on first use.
func (d *FSDir) Path() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resolveLocked(0)
}

// Reset forgets the resolved directory.
func (d *FSDir) Reset() {
	d.mu.Lock()
	d.resolved = -1
	d.mu.Unlock()
}

func (d *FSDir) resolveLocked(from int) (string, error) {
	if d.resolved >= from && d.resolved >= 0 {
		return d.candidates[d.resolved], nil
	}
	for i := from; i < len(d.candidates); i++ {
		if err := probeDir(d.candidates[i]); err != nil {
			continue
		}
		d.resolved = i
		return d.candidates[i], nil
	}
	d.resolved = -1
	return "", ErrNoWritableDir
}

// ReadFile reads name from the resolved directory.
func (d *FSDir) ReadFile(name string) ([]byte, error) {
	dir, err := d.Path()
	if err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(dir, name))
}

// Stat stats name inside the resolved directory.
func (d *FSDir) Stat(name string) (os.FileInfo, error) {
	dir, err := d.Path()
	if err != nil {
		return nil, err
	}
	return os.Stat(filepath.Join(dir, name))
}

// Remove deletes name from the resolved directory.
func (d *FSDir) Remove(name string) error {
	dir, err := d.Path()
	if err != nil {
		return err
	}
	return os.Remove(filepath.Join(dir, name))
}

// WriteFile writes data to name, moving on to the next candidate directory
// when the current one rejects the write.
func (d *FSDir) WriteFile(name string, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var lastErr error
	from := 0
	for {
		dir, err := d.resolveLocked(from)
		if err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w: %v", ErrNoWritableDir, lastErr)
			}
			return err
		}
		if err := writeFileAtomic(filepath.Join(dir, name), data); err != nil {
			lastErr = err
			from = d.resolved + 1
			d.resolved = -1
			continue
		}
		return nil
	}
}

func probeDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
