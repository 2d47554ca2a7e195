// Package gcp manages ground control points: correspondences between source
// image pixels and map coordinates.
package gcp

import (
	"errors"
	"fmt"

	"georef/pkg/geometry"
)

var (
	// ErrDuplicateLocation is returned when a point would share its exact
	// image coordinate with an existing enabled point.
	ErrDuplicateLocation = errors.New("duplicate image location")
	// ErrNotFound is returned for operations on an unknown point id.
	ErrNotFound = errors.New("point not found")
)

// PointID identifies a control point within a Store.
type PointID int

// Point is a single ground control point. Image coordinates are source-image
// pixels (origin top-left); map coordinates are geographic lon/lat, or
// projected world pixels when the project uses a pixel reference, consistent
// across the whole store.
type Point struct {
	ID      PointID `json:"id"`
	ImageX  float64 `json:"image_x"`
	ImageY  float64 `json:"image_y"`
	MapX    float64 `json:"map_x"`
	MapY    float64 `json:"map_y"`
	Weight  float64 `json:"weight"`
	Enabled bool    `json:"enabled"`
}

// ImagePoint returns the image-space coordinate of the point.
func (p Point) ImagePoint() geometry.Point2D {
	return geometry.Point2D{X: p.ImageX, Y: p.ImageY}
}

// MapPoint returns the map-space coordinate of the point.
func (p Point) MapPoint() geometry.Point2D {
	return geometry.Point2D{X: p.MapX, Y: p.MapY}
}

// Listener is notified after any successful store mutation.
type Listener func()

// Store owns the set of control points. It preserves insertion order and
// enforces at most one active point per image-pixel location. The store is
// driven from the interactive thread only and is not safe for concurrent
// mutation.
type Store struct {
	points     []Point
	nextID     PointID
	generation uint64
	listeners  []Listener
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{nextID: 1}
}

// OnChange registers a listener called after every successful mutation.
func (s *Store) OnChange(l Listener) {
	s.listeners = append(s.listeners, l)
}

// Generation returns a counter bumped by every successful mutation. Holders
// of derived state (the fitted transform) compare it to decide staleness.
func (s *Store) Generation() uint64 {
	return s.generation
}

func (s *Store) mutated() {
	s.generation++
	for _, l := range s.listeners {
		l()
	}
}

// Add inserts a new point and returns its id. The weight defaults to 1.0
// when zero or negative. Fails with ErrDuplicateLocation if an enabled point
// already occupies the exact image coordinate.
func (s *Store) Add(p Point) (PointID, error) {
	if s.findAt(p.ImageX, p.ImageY, -1) >= 0 {
		return 0, fmt.Errorf("add point at image (%g, %g): %w", p.ImageX, p.ImageY, ErrDuplicateLocation)
	}

	p.ID = s.nextID
	s.nextID++
	if p.Weight <= 0 {
		p.Weight = 1.0
	}
	s.points = append(s.points, p)
	s.mutated()
	return p.ID, nil
}

// Remove deletes a point. Fails with ErrNotFound for an unknown id.
func (s *Store) Remove(id PointID) error {
	idx := s.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("remove point %d: %w", id, ErrNotFound)
	}
	s.points = append(s.points[:idx], s.points[idx+1:]...)
	s.mutated()
	return nil
}

// SetEnabled toggles a point's participation in fitting.
func (s *Store) SetEnabled(id PointID, enabled bool) error {
	idx := s.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("enable point %d: %w", id, ErrNotFound)
	}
	if enabled && !s.points[idx].Enabled {
		// Re-enabling must not collide with another enabled point.
		if s.findAt(s.points[idx].ImageX, s.points[idx].ImageY, idx) >= 0 {
			return fmt.Errorf("enable point %d: %w", id, ErrDuplicateLocation)
		}
	}
	if s.points[idx].Enabled == enabled {
		return nil
	}
	s.points[idx].Enabled = enabled
	s.mutated()
	return nil
}

// SetWeight updates a point's fit weight. Non-positive weights are rejected.
func (s *Store) SetWeight(id PointID, weight float64) error {
	idx := s.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("weight point %d: %w", id, ErrNotFound)
	}
	if weight <= 0 {
		return fmt.Errorf("weight point %d: weight must be positive, got %g", id, weight)
	}
	s.points[idx].Weight = weight
	s.mutated()
	return nil
}

// SetMapPoint updates a point's map-space coordinate.
func (s *Store) SetMapPoint(id PointID, mapX, mapY float64) error {
	idx := s.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("move point %d: %w", id, ErrNotFound)
	}
	s.points[idx].MapX = mapX
	s.points[idx].MapY = mapY
	s.mutated()
	return nil
}

// SetImagePoint updates a point's image-space coordinate, enforcing the
// unique-location invariant against other enabled points.
func (s *Store) SetImagePoint(id PointID, imageX, imageY float64) error {
	idx := s.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("move point %d: %w", id, ErrNotFound)
	}
	if s.points[idx].Enabled && s.findAt(imageX, imageY, idx) >= 0 {
		return fmt.Errorf("move point %d to image (%g, %g): %w", id, imageX, imageY, ErrDuplicateLocation)
	}
	s.points[idx].ImageX = imageX
	s.points[idx].ImageY = imageY
	s.mutated()
	return nil
}

// Get returns a copy of the point with the given id.
func (s *Store) Get(id PointID) (Point, error) {
	idx := s.indexOf(id)
	if idx < 0 {
		return Point{}, fmt.Errorf("get point %d: %w", id, ErrNotFound)
	}
	return s.points[idx], nil
}

// List returns the points in insertion order. The slice is a copy.
func (s *Store) List() []Point {
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// Enabled returns the enabled points in insertion order.
func (s *Store) Enabled() []Point {
	var out []Point
	for _, p := range s.points {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// Count returns the total number of points.
func (s *Store) Count() int {
	return len(s.points)
}

// CountEnabled returns the number of enabled points.
func (s *Store) CountEnabled() int {
	n := 0
	for _, p := range s.points {
		if p.Enabled {
			n++
		}
	}
	return n
}

// Clear removes all points.
func (s *Store) Clear() {
	if len(s.points) == 0 {
		return
	}
	s.points = nil
	s.mutated()
}

func (s *Store) indexOf(id PointID) int {
	for i := range s.points {
		if s.points[i].ID == id {
			return i
		}
	}
	return -1
}

// findAt returns the index of an enabled point at exactly (x, y), ignoring
// the point at skip, or -1.
func (s *Store) findAt(x, y float64, skip int) int {
	for i := range s.points {
		if i == skip || !s.points[i].Enabled {
			continue
		}
		if s.points[i].ImageX == x && s.points[i].ImageY == y {
			return i
		}
	}
	return -1
}
