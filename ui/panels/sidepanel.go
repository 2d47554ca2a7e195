// Package panels provides the side panel docks: control points, transform
// settings, and layer display controls.
package panels

import (
	"georef/internal/app"
	"georef/ui/canvas"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
)

// SidePanel groups the dock panels into tabs.
type SidePanel struct {
	tabs *container.AppTabs

	Points    *PointsPanel
	Transform *TransformPanel
	Layers    *LayersPanel
}

// NewSidePanel creates the side panel bound to the state and map view.
func NewSidePanel(state *app.State, view *canvas.MapView) *SidePanel {
	sp := &SidePanel{
		Points:    NewPointsPanel(state, view),
		Transform: NewTransformPanel(state, view),
		Layers:    NewLayersPanel(state, view),
	}

	sp.tabs = container.NewAppTabs(
		container.NewTabItem("Points", sp.Points.Container()),
		container.NewTabItem("Transform", sp.Transform.Container()),
		container.NewTabItem("Layers", sp.Layers.Container()),
	)
	return sp
}

// SetWindow sets the parent window for dialogs.
func (sp *SidePanel) SetWindow(win fyne.Window) {
	sp.Points.SetWindow(win)
}

// Container returns the side panel's root widget.
func (sp *SidePanel) Container() fyne.CanvasObject {
	return sp.tabs
}
