// Package viewport owns the map view state: current zoom and center, the
// screen↔world conversions, pan and cursor-anchored zoom, and the visible
// tile computation.
package viewport

import (
	"georef/internal/tile"
	"georef/pkg/geometry"
	"georef/pkg/mercator"
)

// State is an immutable viewport snapshot. CenterX/CenterY are world pixel
// coordinates at the current zoom level (world size = TileSize * 2^zoom).
type State struct {
	Zoom    int
	CenterX float64
	CenterY float64
	Width   int
	Height  int
}

// New creates a viewport state centered on a geographic coordinate.
func New(lon, lat float64, zoom, width, height int) State {
	zoom = clampZoom(zoom)
	c := mercator.GeoToWorldPixel(lon, lat, zoom)
	return State{Zoom: zoom, CenterX: c.X, CenterY: c.Y, Width: width, Height: height}
}

func clampZoom(zoom int) int {
	if zoom < 0 {
		return 0
	}
	if zoom > mercator.MaxZoom {
		return mercator.MaxZoom
	}
	return zoom
}

// Resized returns the state with a new screen size.
func (s State) Resized(width, height int) State {
	s.Width = width
	s.Height = height
	return s
}

// ScreenToWorld converts a screen position to world pixel coordinates:
// world = center + screen - (width/2, height/2).
func (s State) ScreenToWorld(p geometry.Point2D) geometry.Point2D {
	return geometry.Point2D{
		X: s.CenterX + p.X - float64(s.Width)/2,
		Y: s.CenterY + p.Y - float64(s.Height)/2,
	}
}

// WorldToScreen is the exact inverse of ScreenToWorld.
func (s State) WorldToScreen(p geometry.Point2D) geometry.Point2D {
	return geometry.Point2D{
		X: p.X - s.CenterX + float64(s.Width)/2,
		Y: p.Y - s.CenterY + float64(s.Height)/2,
	}
}

// Panned returns the state moved by a screen-pixel delta. Screen pixels map
// 1:1 onto world pixels since the view has no rotation or skew. No bounds
// clamping here; tile indices are clamped at fetch time.
func (s State) Panned(dx, dy float64) State {
	s.CenterX -= dx
	s.CenterY -= dy
	return s
}

// ZoomedAt returns the state zoomed by one step in the given direction
// (positive in, negative out), keeping the world point under the screen
// anchor stationary. A step that would leave [0, MaxZoom] is a no-op.
func (s State) ZoomedAt(anchor geometry.Point2D, direction int) State {
	if direction == 0 {
		return s
	}
	step := 1
	if direction < 0 {
		step = -1
	}

	newZoom := clampZoom(s.Zoom + step)
	if newZoom == s.Zoom {
		return s
	}

	before := s.ScreenToWorld(anchor)

	// The anchor's world point, rescaled to the new zoom, stays under the
	// same screen position; its screen offset to the center is unchanged.
	anchorAfter := mercator.RescaleWorldPixel(before, s.Zoom, newZoom)
	s.CenterX = anchorAfter.X + (s.CenterX-before.X)
	s.CenterY = anchorAfter.Y + (s.CenterY-before.Y)
	s.Zoom = newZoom
	return s
}

// VisibleTiles returns every tile key the current viewport rectangle
// overlaps, clamped to the valid index range for the zoom level.
func (s State) VisibleTiles() []tile.Key {
	topLeft := s.ScreenToWorld(geometry.Point2D{X: 0, Y: 0})
	bottomRight := s.ScreenToWorld(geometry.Point2D{X: float64(s.Width), Y: float64(s.Height)})

	minX, minY := mercator.WorldPixelToTile(topLeft.X, topLeft.Y, s.Zoom)
	maxX, maxY := mercator.WorldPixelToTile(bottomRight.X, bottomRight.Y, s.Zoom)

	keys := make([]tile.Key, 0, (maxX-minX+1)*(maxY-minY+1))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			keys = append(keys, tile.Key{Zoom: s.Zoom, X: x, Y: y})
		}
	}
	return keys
}

// CenterGeo returns the viewport center as lon/lat.
func (s State) CenterGeo() (lon, lat float64) {
	return mercator.WorldPixelToGeo(geometry.Point2D{X: s.CenterX, Y: s.CenterY}, s.Zoom)
}
