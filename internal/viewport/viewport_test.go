package viewport

import (
	"math"
	"math/rand"
	"testing"

	"georef/internal/tile"
	"georef/pkg/geometry"
	"georef/pkg/mercator"
)

func TestScreenWorldRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		s := State{
			Zoom:    rng.Intn(mercator.MaxZoom + 1),
			CenterX: rng.Float64() * 1e6,
			CenterY: rng.Float64() * 1e6,
			Width:   100 + rng.Intn(2000),
			Height:  100 + rng.Intn(2000),
		}
		p := geometry.Point2D{X: rng.Float64()*3000 - 500, Y: rng.Float64()*3000 - 500}

		back := s.WorldToScreen(s.ScreenToWorld(p))
		if math.Abs(back.X-p.X) > 1e-9 || math.Abs(back.Y-p.Y) > 1e-9 {
			t.Fatalf("state %+v point %+v: round trip gave %+v", s, p, back)
		}
	}
}

func TestPanMovesCenterOpposite(t *testing.T) {
	s := State{Zoom: 5, CenterX: 1000, CenterY: 2000, Width: 800, Height: 600}

	moved := s.Panned(30, -45)
	if moved.CenterX != 970 || moved.CenterY != 2045 {
		t.Errorf("center = (%f, %f), want (970, 2045)", moved.CenterX, moved.CenterY)
	}
	// Value semantics: the original state is untouched.
	if s.CenterX != 1000 || s.CenterY != 2000 {
		t.Errorf("original state mutated: %+v", s)
	}
}

func TestZoomAtKeepsAnchorStationary(t *testing.T) {
	anchors := []geometry.Point2D{
		{X: 400, Y: 300}, // center
		{X: 0, Y: 0},     // corner
		{X: 799, Y: 13},
		{X: 123.5, Y: 456.25},
	}

	for _, anchor := range anchors {
		s := State{Zoom: 6, CenterX: 9000, CenterY: 8000, Width: 800, Height: 600}

		for _, dir := range []int{1, -1} {
			before := s.ScreenToWorld(anchor)
			after := s.ZoomedAt(anchor, dir)
			scale := math.Pow(2, float64(after.Zoom-s.Zoom))

			// The same world point, rescaled to the new zoom, must sit
			// under the anchor.
			got := after.ScreenToWorld(anchor)
			if math.Abs(got.X-before.X*scale) > 1e-6 || math.Abs(got.Y-before.Y*scale) > 1e-6 {
				t.Errorf("anchor %+v dir %d: world under anchor moved from (%f, %f) to (%f, %f)",
					anchor, dir, before.X*scale, before.Y*scale, got.X, got.Y)
			}
		}
	}
}

func TestZoomClampsAtRange(t *testing.T) {
	anchor := geometry.Point2D{X: 10, Y: 10}

	s := State{Zoom: 0, CenterX: 128, CenterY: 128, Width: 400, Height: 400}
	if out := s.ZoomedAt(anchor, -1); out != s {
		t.Errorf("zoom out at 0 must be a no-op, got %+v", out)
	}

	s.Zoom = mercator.MaxZoom
	if in := s.ZoomedAt(anchor, 1); in != s {
		t.Errorf("zoom in at max must be a no-op, got %+v", in)
	}
}

func TestVisibleTiles(t *testing.T) {
	// A 512x512 view centered at world (512, 512) on zoom 2 spans world
	// pixels [256, 768], i.e. tiles 1..2 on both axes.
	s := State{Zoom: 2, CenterX: 512, CenterY: 512, Width: 512, Height: 512}

	keys := s.VisibleTiles()
	want := map[tile.Key]bool{
		{Zoom: 2, X: 1, Y: 1}: true,
		{Zoom: 2, X: 2, Y: 1}: true,
		{Zoom: 2, X: 1, Y: 2}: true,
		{Zoom: 2, X: 2, Y: 2}: true,
	}
	if len(keys) != len(want) {
		t.Fatalf("got %d tiles %v, want %d", len(keys), keys, len(want))
	}
	for _, k := range keys {
		if !want[k] {
			t.Errorf("unexpected tile %v", k)
		}
	}
}

func TestVisibleTilesClampedAtWorldEdge(t *testing.T) {
	// Viewport hanging off the top-left of the world must only produce
	// valid indices.
	s := State{Zoom: 3, CenterX: 0, CenterY: 0, Width: 1024, Height: 768}

	for _, k := range s.VisibleTiles() {
		if !k.Valid() {
			t.Errorf("invalid tile key %v", k)
		}
	}
}

func TestNewCentersOnGeo(t *testing.T) {
	s := New(0, 0, 3, 800, 600)
	world := mercator.WorldSize(3)
	if math.Abs(s.CenterX-world/2) > 1e-9 || math.Abs(s.CenterY-world/2) > 1e-9 {
		t.Errorf("center = (%f, %f), want world midpoint %f", s.CenterX, s.CenterY, world/2)
	}

	lon, lat := s.CenterGeo()
	if math.Abs(lon) > 1e-9 || math.Abs(lat) > 1e-9 {
		t.Errorf("CenterGeo = (%f, %f), want (0, 0)", lon, lat)
	}
}
