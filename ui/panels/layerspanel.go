package panels

import (
	"strconv"

	"georef/internal/app"
	"georef/ui/canvas"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// LayersPanel controls the basemap and image layer display settings.
type LayersPanel struct {
	state *app.State
	view  *canvas.MapView
	box   *fyne.Container

	urlEntry    *widget.Entry
	expiryEntry *widget.Entry
	tileCheck   *widget.Check
	tileSlider  *widget.Slider
	imageCheck  *widget.Check
	imageSlider *widget.Slider
	statusLabel *widget.Label

	// Called after the tile template or expiry is applied, so the window
	// can persist them.
	onApply func(template string, expireDays int)
}

// NewLayersPanel creates the layers panel.
func NewLayersPanel(state *app.State, view *canvas.MapView) *LayersPanel {
	lp := &LayersPanel{state: state, view: view}

	lp.urlEntry = widget.NewEntry()
	lp.urlEntry.SetPlaceHolder("https://tile.example.org/{z}/{x}/{y}.png")
	if src := state.Tiles.Source(); src != nil {
		lp.urlEntry.SetText(src.Template())
	}

	lp.expiryEntry = widget.NewEntry()
	lp.expiryEntry.SetText(strconv.Itoa(state.Tiles.Config().ExpireDays))

	applyBtn := widget.NewButton("Apply", func() { lp.onApplyClicked() })

	lp.tileCheck = widget.NewCheck("Show tiles", func(on bool) {
		lp.state.TilesVisible = on
		lp.view.Refresh()
	})
	lp.tileCheck.SetChecked(state.TilesVisible)

	lp.tileSlider = widget.NewSlider(0, 1)
	lp.tileSlider.Step = 0.05
	lp.tileSlider.Value = state.TileOpacity
	lp.tileSlider.OnChanged = func(v float64) {
		lp.state.TileOpacity = v
		lp.view.Refresh()
	}

	lp.imageCheck = widget.NewCheck("Show image", func(on bool) {
		if lp.state.Image != nil {
			lp.state.Image.Visible = on
			lp.view.Refresh()
		}
	})
	lp.imageCheck.SetChecked(true)

	lp.imageSlider = widget.NewSlider(0, 1)
	lp.imageSlider.Step = 0.05
	lp.imageSlider.Value = 1.0
	lp.imageSlider.OnChanged = func(v float64) {
		if lp.state.Image != nil {
			lp.state.Image.Opacity = v
			lp.view.Refresh()
		}
	}

	lp.statusLabel = widget.NewLabel("")
	lp.statusLabel.Wrapping = fyne.TextWrapWord

	lp.box = container.NewVBox(
		widget.NewLabel("Tile URL template:"),
		lp.urlEntry,
		container.NewBorder(nil, nil, widget.NewLabel("Cache days:"), applyBtn, lp.expiryEntry),
		lp.tileCheck,
		widget.NewLabel("Tile opacity:"),
		lp.tileSlider,
		widget.NewSeparator(),
		lp.imageCheck,
		widget.NewLabel("Image opacity:"),
		lp.imageSlider,
		lp.statusLabel,
	)

	lp.state.On(app.EventImageLoaded, func(interface{}) { lp.syncImageControls() })
	return lp
}

// Container returns the panel's root widget.
func (lp *LayersPanel) Container() fyne.CanvasObject {
	return lp.box
}

// OnApply sets a callback invoked after tile settings are applied.
func (lp *LayersPanel) OnApply(callback func(template string, expireDays int)) {
	lp.onApply = callback
}

// SetTemplate fills the URL entry, e.g. when restoring preferences.
func (lp *LayersPanel) SetTemplate(template string) {
	lp.urlEntry.SetText(template)
}

func (lp *LayersPanel) onApplyClicked() {
	days, err := strconv.Atoi(lp.expiryEntry.Text)
	if err != nil || days < 0 {
		lp.statusLabel.SetText("Cache days must be a non-negative number")
		return
	}

	cfg := lp.state.Tiles.Config()
	cfg.ExpireDays = days
	lp.state.Tiles.Configure(cfg)
	lp.expiryEntry.SetText(strconv.Itoa(lp.state.Tiles.Config().ExpireDays))

	template := lp.urlEntry.Text
	if err := lp.state.ConfigureTileSource(template); err != nil {
		lp.statusLabel.SetText(err.Error())
	} else {
		lp.statusLabel.SetText("Tile source applied")
		if lp.onApply != nil {
			lp.onApply(template, days)
		}
	}
	lp.view.Refresh()
}

func (lp *LayersPanel) syncImageControls() {
	if lp.state.Image == nil {
		return
	}
	lp.imageCheck.SetChecked(lp.state.Image.Visible)
	lp.imageSlider.Value = lp.state.Image.Opacity
	lp.imageSlider.Refresh()
}
