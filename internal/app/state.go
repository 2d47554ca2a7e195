// Package app provides application state, configuration, and events.
package app

import (
	"fmt"
	"sync"

	"georef/internal/gcp"
	"georef/internal/image"
	"georef/internal/tile"
	"georef/internal/transform"
	"georef/internal/viewport"
)

// EventType identifies different application events.
type EventType int

const (
	EventPointsChanged EventType = iota
	EventTransformChanged
	EventViewportChanged
	EventImageLoaded
	EventTileConfigChanged
	EventModified
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// State holds the application state: the control point set, the estimator
// settings and their lazily fitted transform, the map viewport, the tile
// cache, and the image layer. Points and transform are driven from the
// interactive thread; the mutex guards reads from fetch-completion paths.
type State struct {
	mu sync.RWMutex

	// Control points
	Points *gcp.Store

	// Estimator settings
	kind      transform.Kind
	weighting transform.Weighting
	preview   bool

	// Fitted transform, recomputed lazily after any point or settings
	// change. fitErr records why the last fit failed; lastGood keeps the
	// previous valid transform in place for rendering.
	fitted    *transform.Transform
	fitErr    error
	fittedGen uint64
	fitStale  bool

	// Map view
	Viewport viewport.State

	// Tile layer
	Tiles        *tile.Cache
	TilesVisible bool
	TileOpacity  float64

	// Source image
	Image *image.Layer

	Modified bool

	listeners map[EventType][]EventListener
}

// NewState creates a new application state with an empty point set and the
// tile layer disabled until a template is configured.
func NewState(disk *tile.DiskStore, cfg tile.Config) *State {
	s := &State{
		Points:       gcp.NewStore(),
		kind:         transform.Affine,
		weighting:    transform.WeightGlobal,
		Tiles:        tile.NewCache(nil, disk, cfg),
		TilesVisible: true,
		TileOpacity:  1.0,
		Viewport:     viewport.New(0, 0, 2, 800, 600),
		listeners:    make(map[EventType][]EventListener),
	}

	// Any point mutation invalidates the fit; the next Transform() call
	// recomputes it.
	s.Points.OnChange(func() {
		s.mu.Lock()
		s.fitStale = true
		s.Modified = true
		s.mu.Unlock()
		s.Emit(EventPointsChanged, nil)
	})

	return s
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Kind returns the selected transform model.
func (s *State) Kind() transform.Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kind
}

// SetKind selects the transform model and invalidates the fit.
func (s *State) SetKind(kind transform.Kind) {
	s.mu.Lock()
	if s.kind == kind {
		s.mu.Unlock()
		return
	}
	s.kind = kind
	s.fitStale = true
	s.mu.Unlock()
	s.Emit(EventTransformChanged, nil)
}

// Weighting returns the selected weighting mode.
func (s *State) Weighting() transform.Weighting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weighting
}

// SetWeighting selects the weighting mode and invalidates the fit.
func (s *State) SetWeighting(w transform.Weighting) {
	s.mu.Lock()
	if s.weighting == w {
		s.mu.Unlock()
		return
	}
	s.weighting = w
	s.fitStale = true
	s.mu.Unlock()
	s.Emit(EventTransformChanged, nil)
}

// Preview reports whether the real-time transform preview is enabled.
func (s *State) Preview() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.preview
}

// SetPreview toggles the transform preview.
func (s *State) SetPreview(enabled bool) {
	s.mu.Lock()
	s.preview = enabled
	s.mu.Unlock()
	s.Emit(EventTransformChanged, nil)
}

// Transform returns the current fitted transform, recomputing it if points
// or settings changed since the last call. When fitting fails the previous
// valid transform stays in place and FitError reports why; a recompute
// happens at most once per logical change, not per access.
func (s *State) Transform() *transform.Transform {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen := s.Points.Generation()
	if !s.fitStale && s.fittedGen == gen {
		return s.fitted
	}

	tr, err := transform.Estimate(s.Points.List(), s.kind, s.weighting)
	s.fitStale = false
	s.fittedGen = gen
	s.fitErr = err
	if err == nil {
		s.fitted = tr
	}
	return s.fitted
}

// FitError returns the failure of the most recent fit attempt, or nil.
func (s *State) FitError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitErr
}

// View returns the current viewport state.
func (s *State) View() viewport.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Viewport
}

// ResizeViewport adjusts the viewport to a new widget size without
// announcing a view change; the caller is already redrawing.
func (s *State) ResizeViewport(width, height int) viewport.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Viewport.Width != width || s.Viewport.Height != height {
		s.Viewport = s.Viewport.Resized(width, height)
	}
	return s.Viewport
}

// SetViewport replaces the viewport state.
func (s *State) SetViewport(v viewport.State) {
	s.mu.Lock()
	s.Viewport = v
	s.mu.Unlock()
	s.Emit(EventViewportChanged, nil)
}

// ConfigureTileSource validates and applies a tile URL template. An invalid
// template disables the tile layer and returns the error; the session
// continues without tiles.
func (s *State) ConfigureTileSource(template string) error {
	source, err := tile.NewSource(template)
	if err != nil {
		s.Tiles.SetSource(nil)
		s.Emit(EventTileConfigChanged, nil)
		return fmt.Errorf("tile layer disabled: %w", err)
	}
	s.Tiles.SetSource(source)
	s.Emit(EventTileConfigChanged, nil)
	return nil
}

// LoadImage loads the source image layer from a file.
func (s *State) LoadImage(path string) error {
	layer, err := image.Load(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.Image = layer
	s.Modified = true
	s.mu.Unlock()
	s.Emit(EventImageLoaded, path)
	return nil
}

// SetModified marks the session as modified and emits an event.
func (s *State) SetModified(modified bool) {
	s.mu.Lock()
	s.Modified = modified
	s.mu.Unlock()
	s.Emit(EventModified, modified)
}

// Scene assembles the current frame inputs for the compositor. The fit is
// refreshed first; when the current fit fails the last good transform keeps
// rendering.
func (s *State) Scene() image.Scene {
	tr := s.Transform()

	s.mu.RLock()
	defer s.mu.RUnlock()

	scene := image.Scene{
		Viewport:     s.Viewport,
		Tiles:        s.Tiles,
		Image:        s.Image,
		Preview:      s.preview,
		Points:       s.Points.List(),
		TilesVisible: s.TilesVisible,
		TileOpacity:  s.TileOpacity,
	}
	if s.preview {
		scene.Transform = tr
	}
	return scene
}
