package mercator

import (
	"math"
	"testing"

	"georef/pkg/geometry"
)

func TestGeoToWorldPixel(t *testing.T) {
	tests := []struct {
		name     string
		lon, lat float64
		zoom     int
		wantX    float64
		wantY    float64
	}{
		{
			name:  "Center of map at zoom 0",
			lon:   0,
			lat:   0,
			zoom:  0,
			wantX: 128,
			wantY: 128,
		},
		{
			name:  "Top-left corner at zoom 1",
			lon:   -180,
			lat:   MaxLat,
			zoom:  1,
			wantX: 0,
			wantY: 0,
		},
		{
			name:  "Bottom-right corner at zoom 1",
			lon:   180,
			lat:   MinLat,
			zoom:  1,
			wantX: 512,
			wantY: 512,
		},
		{
			name:  "Equator at 90E, zoom 1",
			lon:   90,
			lat:   0,
			zoom:  1,
			wantX: 384,
			wantY: 256,
		},
		{
			name:  "Latitude beyond limit clamps to pole",
			lon:   0,
			lat:   89,
			zoom:  2,
			wantX: 512,
			wantY: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GeoToWorldPixel(tt.lon, tt.lat, tt.zoom)
			if math.Abs(got.X-tt.wantX) > 1e-6 || math.Abs(got.Y-tt.wantY) > 1e-6 {
				t.Errorf("got (%f, %f); want (%f, %f)", got.X, got.Y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestWorldPixelToGeoRoundTrip(t *testing.T) {
	coords := []struct {
		lon, lat float64
		zoom     int
	}{
		{0, 0, 0},
		{-122.6789, 45.12345, 12},
		{13.3777, 52.5163, 17},
		{179.9, -84.0, 5},
		{-179.9, 84.0, 5},
	}

	for _, c := range coords {
		wp := GeoToWorldPixel(c.lon, c.lat, c.zoom)
		lon, lat := WorldPixelToGeo(wp, c.zoom)
		if math.Abs(lon-c.lon) > 1e-9 || math.Abs(lat-c.lat) > 1e-9 {
			t.Errorf("round trip (%f, %f) zoom %d: got (%f, %f)", c.lon, c.lat, c.zoom, lon, lat)
		}
	}
}

func TestWorldPixelToTile(t *testing.T) {
	tests := []struct {
		name  string
		x, y  float64
		zoom  int
		wantX int
		wantY int
	}{
		{"Origin", 0, 0, 3, 0, 0},
		{"Inside tile (1,0) at zoom 2", 300, 100, 2, 1, 0},
		{"Exact tile boundary", 256, 256, 2, 1, 1},
		{"Negative coordinates clamp to 0", -40, -1, 4, 0, 0},
		{"Beyond world clamps to last tile", 1e9, 1e9, 3, 7, 7},
		{"Zoom 0 single tile", 255.9, 255.9, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotX, gotY := WorldPixelToTile(tt.x, tt.y, tt.zoom)
			if gotX != tt.wantX || gotY != tt.wantY {
				t.Errorf("got (%d, %d); want (%d, %d)", gotX, gotY, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestWorldPixelToTileBounds(t *testing.T) {
	// Tile indices must stay inside [0, 2^zoom) for arbitrary inputs.
	for zoom := 0; zoom <= MaxZoom; zoom++ {
		maxIndex := 1 << zoom
		for _, v := range []float64{-1e12, -256.5, 0, 1, 123456.78, 1e12} {
			x, y := WorldPixelToTile(v, v, zoom)
			if x < 0 || x >= maxIndex || y < 0 || y >= maxIndex {
				t.Fatalf("zoom %d input %f: tile (%d, %d) out of range", zoom, v, x, y)
			}
		}
	}
}

func TestRescaleWorldPixel(t *testing.T) {
	p := geometry.Point2D{X: 100, Y: 40}
	up := RescaleWorldPixel(p, 3, 5)
	if up.X != 400 || up.Y != 160 {
		t.Errorf("zoom in: got (%f, %f); want (400, 160)", up.X, up.Y)
	}
	down := RescaleWorldPixel(up, 5, 3)
	if down.X != 100 || down.Y != 40 {
		t.Errorf("zoom out: got (%f, %f); want (100, 40)", down.X, down.Y)
	}
}

func BenchmarkGeoToWorldPixel(b *testing.B) {
	coords := [][3]float64{
		{0, 0, 1},
		{180, MaxLat, 10},
		{-180, MinLat, 15},
		{-122.6789, 45.12345, 12},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, c := range coords {
			GeoToWorldPixel(c[0], c[1], int(c[2]))
		}
	}
}
