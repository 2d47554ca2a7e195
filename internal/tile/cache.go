package tile

import (
	"context"
	"log"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Config controls cache behavior. It is passed at construction and may be
// replaced wholesale with Configure; there is no hidden global state.
type Config struct {
	// ExpireDays is the disk entry lifetime in days, applied when reading.
	// 0 disables the persistent cache on the read side (always
	// revalidate); values above 365 are clamped.
	ExpireDays int
	// MemoryTiles bounds the in-memory cache entry count.
	MemoryTiles int
}

const (
	maxExpireDays      = 365
	defaultMemoryTiles = 256
)

func (c Config) normalized() Config {
	if c.ExpireDays < 0 {
		c.ExpireDays = 0
	}
	if c.ExpireDays > maxExpireDays {
		c.ExpireDays = maxExpireDays
	}
	if c.MemoryTiles <= 0 {
		c.MemoryTiles = defaultMemoryTiles
	}
	return c
}

// flight is one in-progress fetch that concurrent requesters share.
type flight struct {
	done chan struct{}
	img  *Image
	err  error
}

// Cache supplies tile images. Lookup order: bounded in-memory LRU, then the
// persistent disk store (subject to read-time expiry), then the network.
// Concurrent requests for the same key coalesce into a single fetch. The
// cache is the one shared structure between the render path and fetch
// completions, so all map access is serialized behind one mutex.
type Cache struct {
	mu       sync.Mutex
	source   *Source
	config   Config
	mem      *lru.Cache[string, *Image]
	inflight map[string]*flight

	disk    *DiskStore
	fetcher *Fetcher
	onLoad  func()
}

// NewCache creates a Cache over the given source and disk store. A nil disk
// store disables persistence; every miss then goes to the network.
func NewCache(source *Source, disk *DiskStore, cfg Config) *Cache {
	cfg = cfg.normalized()
	mem, _ := lru.New[string, *Image](cfg.MemoryTiles)
	return &Cache{
		source:   source,
		config:   cfg,
		mem:      mem,
		inflight: make(map[string]*flight),
		disk:     disk,
		fetcher:  NewFetcher(),
	}
}

// SetOnLoad registers a callback invoked after a fetch completes
// successfully, from the fetch goroutine. The UI uses it to schedule a
// redraw.
func (c *Cache) SetOnLoad(fn func()) {
	c.mu.Lock()
	c.onLoad = fn
	c.mu.Unlock()
}

// Configure replaces the cache configuration.
func (c *Cache) Configure(cfg Config) {
	cfg = cfg.normalized()
	c.mu.Lock()
	defer c.mu.Unlock()
	if cfg.MemoryTiles != c.config.MemoryTiles {
		c.mem.Resize(cfg.MemoryTiles)
	}
	c.config = cfg
}

// Config returns the active cache configuration.
func (c *Cache) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// SetSource switches to a different URL template. In-memory state is
// dropped, since the same key now addresses a different tile set; the
// persistent store is untouched (it is keyed by resolved URL and keeps
// serving other templates).
func (c *Cache) SetSource(source *Source) {
	c.mu.Lock()
	c.source = source
	c.mem.Purge()
	c.mu.Unlock()
}

// Source returns the active URL template source, or nil when the tile layer
// is disabled.
func (c *Cache) Source() *Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// Get returns the tile if it is immediately available, without ever blocking
// on the network. On a miss it starts (or joins) a background fetch and
// reports pending=true; the tile is drawn as absent for this frame and the
// OnLoad callback signals when a redraw will find it.
func (c *Cache) Get(key Key) (img *Image, pending bool) {
	if !key.Valid() {
		return nil, false
	}

	c.mu.Lock()
	if c.source == nil {
		c.mu.Unlock()
		return nil, false
	}
	url := c.source.URL(key)
	if img, ok := c.mem.Get(url); ok {
		c.mu.Unlock()
		return img, false
	}
	c.startFlightLocked(url)
	c.mu.Unlock()

	return nil, true
}

// Fetch returns the tile, blocking until it is available or the fetch fails.
// Concurrent calls for the same key share one network request and receive
// the same result.
func (c *Cache) Fetch(ctx context.Context, key Key) (*Image, error) {
	if !key.Valid() {
		return nil, &FetchError{URL: key.String(), Err: context.Canceled}
	}

	c.mu.Lock()
	if c.source == nil {
		c.mu.Unlock()
		return nil, ErrInvalidTileURL
	}
	url := c.source.URL(key)
	if img, ok := c.mem.Get(url); ok {
		c.mu.Unlock()
		return img, nil
	}
	fl := c.startFlightLocked(url)
	c.mu.Unlock()

	select {
	case <-fl.done:
		return fl.img, fl.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// startFlightLocked returns the in-flight fetch for url, creating one if
// none is outstanding. Caller holds c.mu.
func (c *Cache) startFlightLocked(url string) *flight {
	if fl, ok := c.inflight[url]; ok {
		return fl
	}
	fl := &flight{done: make(chan struct{})}
	c.inflight[url] = fl
	go c.run(url, fl)
	return fl
}

// run resolves one flight: disk first, then network. Runs on its own
// goroutine; distinct keys fetch concurrently.
func (c *Cache) run(url string, fl *flight) {
	fl.img, fl.err = c.load(url)

	c.mu.Lock()
	delete(c.inflight, url)
	if fl.img != nil {
		c.mem.Add(url, fl.img)
	}
	onLoad := c.onLoad
	c.mu.Unlock()

	close(fl.done)
	if fl.err != nil {
		log.Printf("tile %s: %v", url, fl.err)
	} else if onLoad != nil {
		onLoad()
	}
}

func (c *Cache) load(url string) (*Image, error) {
	c.mu.Lock()
	expiry := time.Duration(c.config.ExpireDays) * 24 * time.Hour
	c.mu.Unlock()

	// Expiry is evaluated here, at read time. ExpireDays 0 skips the disk
	// read entirely and always revalidates over the network.
	if expiry > 0 && c.disk != nil {
		if payload, storedAt, ok := c.disk.Get(url); ok && time.Since(storedAt) < expiry {
			if pix, err := decodeTile(url, payload); err == nil {
				return &Image{Pix: pix, FetchedAt: storedAt, Origin: OriginCache}, nil
			}
			// Undecodable disk entry: fall through and refetch.
		}
	}

	payload, err := c.fetcher.Fetch(context.Background(), url)
	if err != nil {
		return nil, err
	}

	pix, err := decodeTile(url, payload)
	if err != nil {
		// A bad payload is not cached.
		return nil, err
	}

	if c.disk != nil {
		if err := c.disk.Put(url, payload); err != nil {
			log.Printf("tile store %s: %v", url, err)
		}
	}
	return &Image{Pix: pix, FetchedAt: time.Now(), Origin: OriginNetwork}, nil
}
