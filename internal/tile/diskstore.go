package tile

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"
)

// DiskStore persists encoded tile payloads across runs, addressed by the
// fully-resolved tile URL. Expiry is applied by the reader, not here:
// expired entries stay on disk and are simply reported as stale, which keeps
// cheap revalidation policies possible later.
type DiskStore struct {
	dir string
}

// NewDiskStore opens (creating if needed) a store rooted at dir.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{dir: dir}, nil
}

// DefaultDir returns the per-user tile store location.
func DefaultDir() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = filepath.Join(os.Getenv("HOME"), ".cache")
	}
	return filepath.Join(cacheDir, "georef", "tiles")
}

func (d *DiskStore) path(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(d.dir, hex.EncodeToString(sum[:]))
}

// Get returns the stored payload for url and its write time. ok is false
// when no entry exists or it cannot be read.
func (d *DiskStore) Get(url string) (payload []byte, storedAt time.Time, ok bool) {
	p := d.path(url)
	info, err := os.Stat(p)
	if err != nil {
		return nil, time.Time{}, false
	}
	payload, err = os.ReadFile(p)
	if err != nil {
		return nil, time.Time{}, false
	}
	return payload, info.ModTime(), true
}

// Put stores a payload for url with a fresh timestamp.
func (d *DiskStore) Put(url string, payload []byte) error {
	p := d.path(url)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}
