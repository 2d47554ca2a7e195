package tile

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func tilePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestCache(t *testing.T, serverURL string, cfg Config) *Cache {
	t.Helper()
	source, err := NewSource(serverURL + "/{z}/{x}/{y}.png")
	if err != nil {
		t.Fatal(err)
	}
	disk, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewCache(source, disk, cfg)
}

func TestFetchCoalescesConcurrentRequests(t *testing.T) {
	var hits atomic.Int64
	release := make(chan struct{})
	payload := tilePNG(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Write(payload)
	}))
	defer srv.Close()

	c := newTestCache(t, srv.URL, Config{ExpireDays: 1})
	key := Key{Zoom: 3, X: 2, Y: 1}

	const requesters = 8
	var wg sync.WaitGroup
	results := make([]*Image, requesters)
	for i := 0; i < requesters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			img, err := c.Fetch(context.Background(), key)
			if err != nil {
				t.Errorf("requester %d: %v", i, err)
				return
			}
			results[i] = img
		}(i)
	}

	// Let all requesters pile onto the single flight, then release it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := hits.Load(); got != 1 {
		t.Errorf("network fetches = %d, want 1", got)
	}
	for i := 1; i < requesters; i++ {
		if results[i] != results[0] {
			t.Errorf("requester %d got a different image instance", i)
		}
	}
	if results[0].Origin != OriginNetwork {
		t.Errorf("origin = %v, want network", results[0].Origin)
	}
}

func TestFetchUsesDiskCacheWithinExpiry(t *testing.T) {
	var hits atomic.Int64
	payload := tilePNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(payload)
	}))
	defer srv.Close()

	c := newTestCache(t, srv.URL, Config{ExpireDays: 1})
	key := Key{Zoom: 1, X: 0, Y: 0}

	first, err := c.Fetch(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	if first.Origin != OriginNetwork {
		t.Fatalf("first origin = %v, want network", first.Origin)
	}

	// Drop the memory layer; a fresh disk entry must satisfy the read.
	c.mem.Purge()
	second, err := c.Fetch(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	if second.Origin != OriginCache {
		t.Errorf("second origin = %v, want cache", second.Origin)
	}
	if hits.Load() != 1 {
		t.Errorf("network fetches = %d, want 1", hits.Load())
	}
}

func TestExpireDaysZeroAlwaysRevalidates(t *testing.T) {
	var hits atomic.Int64
	payload := tilePNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(payload)
	}))
	defer srv.Close()

	c := newTestCache(t, srv.URL, Config{ExpireDays: 0})
	key := Key{Zoom: 1, X: 1, Y: 0}

	if _, err := c.Fetch(context.Background(), key); err != nil {
		t.Fatal(err)
	}
	c.mem.Purge()
	img, err := c.Fetch(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	if img.Origin != OriginNetwork {
		t.Errorf("origin = %v, want network with caching disabled", img.Origin)
	}
	if hits.Load() != 2 {
		t.Errorf("network fetches = %d, want 2", hits.Load())
	}
}

func TestFetchErrorNotCached(t *testing.T) {
	var hits atomic.Int64
	payload := tilePNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write(payload)
	}))
	defer srv.Close()

	c := newTestCache(t, srv.URL, Config{ExpireDays: 1})
	key := Key{Zoom: 2, X: 0, Y: 0}

	_, err := c.Fetch(context.Background(), key)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", fe.StatusCode)
	}

	// The failure must not stick; a retry succeeds.
	img, err := c.Fetch(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	if img.Origin != OriginNetwork {
		t.Errorf("origin = %v, want network", img.Origin)
	}
}

func TestDecodeErrorNotCached(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("this is not an image"))
	}))
	defer srv.Close()

	disk, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	source, _ := NewSource(srv.URL + "/{z}/{x}/{y}.png")
	c := NewCache(source, disk, Config{ExpireDays: 1})
	key := Key{Zoom: 2, X: 1, Y: 1}

	_, err = c.Fetch(context.Background(), key)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}

	// Nothing may have been persisted for the bad payload.
	if _, _, ok := disk.Get(source.URL(key)); ok {
		t.Error("undecodable payload was written to the disk store")
	}
}

func TestGetNeverBlocksAndSignalsLoad(t *testing.T) {
	payload := tilePNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	c := newTestCache(t, srv.URL, Config{ExpireDays: 1})
	loaded := make(chan struct{}, 1)
	c.SetOnLoad(func() {
		select {
		case loaded <- struct{}{}:
		default:
		}
	})

	key := Key{Zoom: 4, X: 5, Y: 6}
	img, pending := c.Get(key)
	if img != nil || !pending {
		t.Fatalf("first Get = (%v, %v), want (nil, pending)", img, pending)
	}

	select {
	case <-loaded:
	case <-time.After(5 * time.Second):
		t.Fatal("OnLoad callback never fired")
	}

	img, pending = c.Get(key)
	if img == nil || pending {
		t.Fatalf("Get after load = (%v, %v), want image", img, pending)
	}
}

func TestGetRejectsInvalidKey(t *testing.T) {
	c := newTestCache(t, "http://unused.invalid", Config{})
	if img, pending := c.Get(Key{Zoom: 2, X: 9, Y: 0}); img != nil || pending {
		t.Errorf("out-of-range key must be absent, got (%v, %v)", img, pending)
	}
}

func TestSetSourcePurgesMemoryOnly(t *testing.T) {
	payload := tilePNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	disk, err := NewDiskStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	source, _ := NewSource(srv.URL + "/a/{z}/{x}/{y}.png")
	c := NewCache(source, disk, Config{ExpireDays: 1})
	key := Key{Zoom: 1, X: 0, Y: 1}

	if _, err := c.Fetch(context.Background(), key); err != nil {
		t.Fatal(err)
	}
	firstURL := source.URL(key)

	other, _ := NewSource(srv.URL + "/b/{z}/{x}/{y}.png")
	c.SetSource(other)

	if c.mem.Len() != 0 {
		t.Errorf("memory cache not purged on template change, len = %d", c.mem.Len())
	}
	if _, _, ok := disk.Get(firstURL); !ok {
		t.Error("disk entry for the old template was dropped")
	}
}

func TestDiskStoreRoundTrip(t *testing.T) {
	disk, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	const url = "https://host/tiles/3/1/2.png"
	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	if err := disk.Put(url, payload); err != nil {
		t.Fatal(err)
	}

	got, storedAt, ok := disk.Get(url)
	if !ok {
		t.Fatal("entry not found after Put")
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload = %v, want %v", got, payload)
	}
	if time.Since(storedAt) > time.Minute {
		t.Errorf("implausible stored-at time %v", storedAt)
	}

	if _, _, ok := disk.Get("https://host/other.png"); ok {
		t.Error("lookup of unknown url succeeded")
	}
}
