// Package tile supplies web-map tile imagery: URL template handling, HTTP
// fetching, a persistent disk store, and a bounded in-memory cache with
// per-key fetch coalescing.
package tile

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
	"time"

	"georef/pkg/mercator"
)

// ErrInvalidTileURL is returned for templates missing a {z}, {x} or {y}
// placeholder. The caller is expected to disable the tile layer, not abort.
var ErrInvalidTileURL = errors.New("invalid tile URL template")

// Key addresses one tile in the XYZ pyramid.
type Key struct {
	Zoom int
	X    int
	Y    int
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Zoom, k.X, k.Y)
}

// Valid reports whether the key is inside the pyramid bounds.
func (k Key) Valid() bool {
	if k.Zoom < 0 || k.Zoom > mercator.MaxZoom {
		return false
	}
	maxIndex := 1 << k.Zoom
	return k.X >= 0 && k.X < maxIndex && k.Y >= 0 && k.Y < maxIndex
}

// Origin tags where a tile image came from.
type Origin int

const (
	OriginNetwork Origin = iota
	OriginCache
)

func (o Origin) String() string {
	switch o {
	case OriginCache:
		return "cache"
	default:
		return "network"
	}
}

// Image is a decoded tile bitmap with its fetch metadata.
type Image struct {
	Pix       image.Image
	FetchedAt time.Time
	Origin    Origin
}

// Source resolves tile keys to URLs from a user-configured template
// containing literal {z}, {x} and {y} placeholders.
type Source struct {
	template string
}

// NewSource validates the template and returns a Source. Templates missing
// any of the three placeholders fail with ErrInvalidTileURL.
func NewSource(template string) (*Source, error) {
	for _, ph := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(template, ph) {
			return nil, fmt.Errorf("template %q missing %s: %w", template, ph, ErrInvalidTileURL)
		}
	}
	return &Source{template: template}, nil
}

// Template returns the raw template string.
func (s *Source) Template() string {
	return s.template
}

// URL resolves the template for a key. Different templates address different
// tile sets, so the resolved URL is the cache identity of a tile.
func (s *Source) URL(k Key) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(k.Zoom),
		"{x}", strconv.Itoa(k.X),
		"{y}", strconv.Itoa(k.Y),
	)
	return r.Replace(s.template)
}
