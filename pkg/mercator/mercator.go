// Package mercator provides spherical web-Mercator projection math for the
// standard XYZ tile pyramid. All functions are pure and deterministic.
package mercator

import (
	"math"

	"georef/pkg/geometry"
)

// Constants for the Web Mercator tile grid
const (
	// TileSize is the edge length of a map tile in pixels.
	TileSize = 256
	// MaxZoom is the maximum supported zoom level.
	MaxZoom = 19

	// MaxLat is the latitude limit of Web Mercator (arctan(sinh(π))).
	MaxLat = 85.0511
	MinLat = -85.0511

	degToRad = math.Pi / 180.0
	radToDeg = 180.0 / math.Pi
)

// pow2 contains pre-calculated powers of 2 for zoom levels 0-21.
var pow2 = [22]float64{
	1, 2, 4, 8, 16, 32, 64, 128, 256, 512,
	1024, 2048, 4096, 8192, 16384, 32768, 65536,
	131072, 262144, 524288, 1048576, 2097152,
}

// WorldSize returns the edge length of the world in pixels at the given zoom
// level (TileSize * 2^zoom).
func WorldSize(zoom int) float64 {
	return TileSize * pow2[zoom]
}

// GeoToWorldPixel converts a lon/lat coordinate to world pixel coordinates at
// the given zoom level. Latitude is clamped to the Web Mercator limits; the
// full world spans TileSize * 2^zoom pixels at every zoom.
func GeoToWorldPixel(lon, lat float64, zoom int) geometry.Point2D {
	if lat > MaxLat {
		lat = MaxLat
	} else if lat < MinLat {
		lat = MinLat
	}

	size := WorldSize(zoom)
	x := (lon + 180.0) / 360.0 * size

	// Poles map to the grid edges exactly, avoiding log() blowup.
	if lat >= MaxLat {
		return geometry.Point2D{X: x, Y: 0}
	}
	if lat <= MinLat {
		return geometry.Point2D{X: x, Y: size}
	}

	sinLat := math.Sin(lat * degToRad)
	y := size * (0.5 - 0.25*math.Log((1.0+sinLat)/(1.0-sinLat))/math.Pi)

	return geometry.Point2D{X: x, Y: y}
}

// WorldPixelToGeo converts world pixel coordinates at the given zoom level
// back to lon/lat.
func WorldPixelToGeo(p geometry.Point2D, zoom int) (lon, lat float64) {
	size := WorldSize(zoom)
	lon = p.X/size*360.0 - 180.0
	lat = math.Atan(math.Sinh(math.Pi*(1-2*p.Y/size))) * radToDeg
	return lon, lat
}

// WorldPixelToTile converts world pixel coordinates to the tile index
// containing them, clamped into [0, 2^zoom).
func WorldPixelToTile(x, y float64, zoom int) (tileX, tileY int) {
	tileX = int(math.Floor(x / TileSize))
	tileY = int(math.Floor(y / TileSize))

	maxIndex := (1 << zoom) - 1
	tileX = max(0, min(tileX, maxIndex))
	tileY = max(0, min(tileY, maxIndex))
	return tileX, tileY
}

// TileOrigin returns the world pixel coordinates of the top-left corner of a
// tile index at the given zoom level.
func TileOrigin(tileX, tileY int) geometry.Point2D {
	return geometry.Point2D{X: float64(tileX) * TileSize, Y: float64(tileY) * TileSize}
}

// RescaleWorldPixel converts world pixel coordinates from one zoom level to
// another by scaling with 2^(toZoom-fromZoom).
func RescaleWorldPixel(p geometry.Point2D, fromZoom, toZoom int) geometry.Point2D {
	if fromZoom == toZoom {
		return p
	}
	scale := pow2[toZoom] / pow2[fromZoom]
	return geometry.Point2D{X: p.X * scale, Y: p.Y * scale}
}
