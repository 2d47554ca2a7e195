package image

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"georef/internal/gcp"
	"georef/internal/tile"
	"georef/internal/transform"
	"georef/internal/viewport"
	"georef/pkg/geometry"
	"georef/pkg/mercator"
)

// Scene is everything one frame is composed from. The compositor draws
// whatever is available right now and never blocks on the network; tiles
// still in flight are simply absent this frame and arrive via the cache's
// OnLoad callback.
type Scene struct {
	Viewport  viewport.State
	Tiles     *tile.Cache
	Image     *Layer
	Transform *transform.Transform
	Preview   bool
	Points    []gcp.Point

	TilesVisible bool
	TileOpacity  float64
}

// Marker colors match the roles from the GCP table: red for the image-side
// position, blue for the map-side position.
var (
	imageMarkerColor = color.RGBA{R: 220, G: 40, B: 40, A: 255}
	mapMarkerColor   = color.RGBA{R: 40, G: 90, B: 220, A: 255}
	backgroundColor  = color.RGBA{R: 40, G: 40, B: 40, A: 255}
)

// Render composes the map tiles, the image layer and the GCP markers for
// the scene's viewport into a single frame.
func Render(s Scene) *image.RGBA {
	vp := s.Viewport
	dst := image.NewRGBA(image.Rect(0, 0, vp.Width, vp.Height))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)

	if s.TilesVisible && s.Tiles != nil {
		renderTiles(dst, s)
	}
	georeferenced := s.Preview && s.Transform != nil
	if s.Image != nil && s.Image.Visible && s.Image.Image != nil {
		renderImageLayer(dst, s, georeferenced)
	}
	renderMarkers(dst, s, georeferenced)

	return dst
}

func renderTiles(dst *image.RGBA, s Scene) {
	vp := s.Viewport
	alpha := opacityMask(s.TileOpacity)

	for _, key := range vp.VisibleTiles() {
		img, _ := s.Tiles.Get(key)
		if img == nil {
			continue
		}
		origin := vp.WorldToScreen(mercator.TileOrigin(key.X, key.Y))
		r := image.Rect(int(origin.X), int(origin.Y),
			int(origin.X)+mercator.TileSize, int(origin.Y)+mercator.TileSize)
		draw.DrawMask(dst, r, img.Pix, img.Pix.Bounds().Min, alpha, image.Point{}, draw.Over)
	}
}

// renderImageLayer places the source image. With an active transform
// preview the image is georeferenced: its corners are forward-mapped into
// map space and it is scaled into the resulting world-pixel rectangle (an
// axis-aligned placement; true warping is a downstream concern). Without
// one it is drawn 1:1 anchored at world origin, so it pans with the map.
func renderImageLayer(dst *image.RGBA, s Scene, georeferenced bool) {
	vp := s.Viewport
	layer := s.Image
	alpha := opacityMask(layer.Opacity)

	if !georeferenced {
		anchor := vp.WorldToScreen(geometry.Point2D{X: 0, Y: 0})
		r := image.Rect(int(anchor.X), int(anchor.Y),
			int(anchor.X)+layer.Width(), int(anchor.Y)+layer.Height())
		draw.DrawMask(dst, r, layer.Image, layer.Image.Bounds().Min, alpha, image.Point{}, draw.Over)
		return
	}

	corners := layer.Corners()
	screen := make([]geometry.Point2D, 0, len(corners))
	for _, c := range corners {
		mapped := s.Transform.Forward(c)
		world := mercator.GeoToWorldPixel(mapped.X, mapped.Y, vp.Zoom)
		screen = append(screen, vp.WorldToScreen(world))
	}
	bounds := geometry.BoundingRect(screen)
	r := image.Rect(int(bounds.X), int(bounds.Y),
		int(bounds.X+bounds.Width), int(bounds.Y+bounds.Height))
	if r.Dx() <= 0 || r.Dy() <= 0 || !r.Overlaps(dst.Bounds()) {
		return
	}

	xdraw.ApproxBiLinear.Scale(dst, r, layer.Image, layer.Image.Bounds(), xdraw.Over,
		&xdraw.Options{SrcMask: alpha, SrcMaskP: image.Point{}})
}

func renderMarkers(dst *image.RGBA, s Scene, georeferenced bool) {
	vp := s.Viewport

	for _, p := range s.Points {
		if !p.Enabled {
			continue
		}

		// Map-side marker at the recorded map coordinate.
		world := mercator.GeoToWorldPixel(p.MapX, p.MapY, vp.Zoom)
		mp := vp.WorldToScreen(world)
		drawMarker(dst, int(mp.X), int(mp.Y), mapMarkerColor)

		// Image-side marker follows the image layer's placement. Under a
		// preview the gap to the map marker visualizes the residual.
		var ip geometry.Point2D
		if georeferenced {
			mapped := s.Transform.Forward(p.ImagePoint())
			ip = vp.WorldToScreen(mercator.GeoToWorldPixel(mapped.X, mapped.Y, vp.Zoom))
		} else {
			ip = vp.WorldToScreen(p.ImagePoint())
		}
		drawMarker(dst, int(ip.X), int(ip.Y), imageMarkerColor)
	}
}

// drawMarker draws a small cross with a center dot.
func drawMarker(dst *image.RGBA, cx, cy int, col color.RGBA) {
	const arm = 5
	b := dst.Bounds()
	set := func(x, y int) {
		if x >= b.Min.X && x < b.Max.X && y >= b.Min.Y && y < b.Max.Y {
			dst.SetRGBA(x, y, col)
		}
	}
	for d := -arm; d <= arm; d++ {
		set(cx+d, cy)
		set(cx, cy+d)
	}
	set(cx+1, cy+1)
	set(cx-1, cy-1)
	set(cx+1, cy-1)
	set(cx-1, cy+1)
}

// opacityMask returns a uniform alpha mask for opacity in [0, 1], or nil
// for full opacity (no masking cost).
func opacityMask(opacity float64) image.Image {
	if opacity >= 1 || opacity <= 0 {
		if opacity <= 0 {
			return image.NewUniform(color.Alpha{A: 0})
		}
		return nil
	}
	return image.NewUniform(color.Alpha{A: uint8(opacity * 255)})
}
