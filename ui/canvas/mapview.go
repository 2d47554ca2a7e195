// Package canvas provides the interactive map view with pan, zoom, and
// control point picking.
package canvas

import (
	"fmt"
	"image"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"georef/internal/app"
	appimage "georef/internal/image"
	"georef/pkg/geometry"
	"georef/pkg/mercator"
)

// Mode represents the current interaction mode.
type Mode int

const (
	ModePan       Mode = iota
	ModePickImage // next click records an image-side coordinate
	ModePickMap   // next click records a map-side coordinate
)

// MapView displays the basemap, the source image layer and the control
// point markers, and handles pan, cursor-anchored zoom and click picking.
// Rendering goes through a raster whose draw callback composes the frame
// from the application state; every interaction just mutates the viewport
// and refreshes.
type MapView struct {
	widget.BaseWidget

	state  *app.State
	raster *fynecanvas.Raster

	mode Mode

	// Callbacks
	onPickImage  func(x, y float64)
	onPickMap    func(lon, lat float64)
	onModeChange func(Mode)
	onHover      func(lon, lat float64)
}

// NewMapView creates a map view bound to the application state.
func NewMapView(state *app.State) *MapView {
	mv := &MapView{state: state}

	mv.raster = fynecanvas.NewRaster(mv.draw)
	mv.raster.ScaleMode = fynecanvas.ImageScalePixels
	mv.raster.SetMinSize(fyne.NewSize(400, 300))

	mv.ExtendBaseWidget(mv)
	return mv
}

// SetMode sets the interaction mode.
func (mv *MapView) SetMode(mode Mode) {
	if mv.mode == mode {
		return
	}
	mv.mode = mode
	if mv.onModeChange != nil {
		mv.onModeChange(mode)
	}
	mv.Refresh()
}

// GetMode returns the current interaction mode.
func (mv *MapView) GetMode() Mode {
	return mv.mode
}

// OnPickImage sets a callback for image-side picks. Coordinates are source
// image pixels.
func (mv *MapView) OnPickImage(callback func(x, y float64)) {
	mv.onPickImage = callback
}

// OnPickMap sets a callback for map-side picks. Coordinates are lon/lat.
func (mv *MapView) OnPickMap(callback func(lon, lat float64)) {
	mv.onPickMap = callback
}

// OnModeChange sets a callback invoked after the interaction mode changes.
func (mv *MapView) OnModeChange(callback func(Mode)) {
	mv.onModeChange = callback
}

// OnHover sets a callback for pointer movement, reporting the geographic
// coordinate under the cursor.
func (mv *MapView) OnHover(callback func(lon, lat float64)) {
	mv.onHover = callback
}

// Refresh redraws the view.
func (mv *MapView) Refresh() {
	mv.raster.Refresh()
	mv.BaseWidget.Refresh()
}

// draw is the raster drawing function.
func (mv *MapView) draw(w, h int) image.Image {
	if w <= 0 || h <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}

	mv.state.ResizeViewport(w, h)
	scene := mv.state.Scene()
	frame := appimage.Render(scene)
	mv.drawAnnotations(frame, scene)
	return frame
}

// drawAnnotations draws residual links and point id labels over the frame.
// Marker positions repeat the compositor's placement so the labels always
// stick to their markers.
func (mv *MapView) drawAnnotations(frame *image.RGBA, scene appimage.Scene) {
	vp := scene.Viewport
	georeferenced := scene.Preview && scene.Transform != nil

	for _, p := range scene.Points {
		if !p.Enabled {
			continue
		}

		world := mercator.GeoToWorldPixel(p.MapX, p.MapY, vp.Zoom)
		mp := vp.WorldToScreen(world)

		var ip geometry.Point2D
		if georeferenced {
			mapped := scene.Transform.Forward(p.ImagePoint())
			ip = vp.WorldToScreen(mercator.GeoToWorldPixel(mapped.X, mapped.Y, vp.Zoom))
		} else {
			ip = vp.WorldToScreen(p.ImagePoint())
		}

		// The link between the pair makes the residual visible when a
		// preview is active.
		drawLink(frame, int(ip.X), int(ip.Y), int(mp.X), int(mp.Y))
		DrawLabel(frame, fmt.Sprintf("%d", p.ID), int(mp.X)+labelOffset, int(mp.Y)-labelOffset, labelColor, 2)
	}
}

// Dragged pans the map with the cursor.
func (mv *MapView) Dragged(ev *fyne.DragEvent) {
	view := mv.state.View()
	mv.state.SetViewport(view.Panned(float64(ev.Dragged.DX), float64(ev.Dragged.DY)))
	mv.Refresh()
}

// DragEnd implements fyne.Draggable.
func (mv *MapView) DragEnd() {}

// Scrolled zooms by one step, keeping the world point under the cursor
// stationary.
func (mv *MapView) Scrolled(ev *fyne.ScrollEvent) {
	direction := 0
	if ev.Scrolled.DY > 0 {
		direction = 1
	} else if ev.Scrolled.DY < 0 {
		direction = -1
	}
	if direction == 0 {
		return
	}

	anchor := geometry.Point2D{X: float64(ev.Position.X), Y: float64(ev.Position.Y)}
	view := mv.state.View()
	mv.state.SetViewport(view.ZoomedAt(anchor, direction))
	mv.Refresh()
}

// Tapped handles left-click events according to the interaction mode.
func (mv *MapView) Tapped(ev *fyne.PointEvent) {
	if mv.mode == ModePan {
		return
	}

	pos := geometry.Point2D{X: float64(ev.Position.X), Y: float64(ev.Position.Y)}
	view := mv.state.View()
	world := view.ScreenToWorld(pos)

	switch mv.mode {
	case ModePickImage:
		if mv.onPickImage != nil {
			img := mv.screenToImage(world, view.Zoom)
			mv.onPickImage(img.X, img.Y)
		}
	case ModePickMap:
		if mv.onPickMap != nil {
			lon, lat := mercator.WorldPixelToGeo(world, view.Zoom)
			mv.onPickMap(lon, lat)
		}
	}
}

// TappedSecondary cancels any pending pick.
func (mv *MapView) TappedSecondary(*fyne.PointEvent) {
	mv.SetMode(ModePan)
}

// MouseMoved reports the geographic coordinate under the cursor.
func (mv *MapView) MouseMoved(ev *desktop.MouseEvent) {
	if mv.onHover == nil {
		return
	}
	view := mv.state.View()
	world := view.ScreenToWorld(geometry.Point2D{X: float64(ev.Position.X), Y: float64(ev.Position.Y)})
	lon, lat := mercator.WorldPixelToGeo(world, view.Zoom)
	mv.onHover(lon, lat)
}

// MouseIn implements desktop.Hoverable.
func (mv *MapView) MouseIn(*desktop.MouseEvent) {}

// MouseOut implements desktop.Hoverable.
func (mv *MapView) MouseOut() {}

// Cursor shows a crosshair while a pick is pending.
func (mv *MapView) Cursor() desktop.Cursor {
	if mv.mode != ModePan {
		return desktop.CrosshairCursor
	}
	return desktop.DefaultCursor
}

// screenToImage maps a world pixel back to a source image pixel. Without an
// active preview the image layer sits 1:1 at world origin, so world and
// image coordinates coincide; with one, the fitted inverse runs the click
// back through map space.
func (mv *MapView) screenToImage(world geometry.Point2D, zoom int) geometry.Point2D {
	tr := mv.state.Transform()
	if mv.state.Preview() && tr != nil {
		if inv, ok := tr.Inverse(); ok {
			lon, lat := mercator.WorldPixelToGeo(world, zoom)
			return inv(geometry.Point2D{X: lon, Y: lat})
		}
	}
	return world
}

// CreateRenderer implements fyne.Widget.
func (mv *MapView) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(mv.raster)
}
