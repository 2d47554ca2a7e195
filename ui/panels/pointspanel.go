package panels

import (
	"fmt"
	"strconv"

	"georef/internal/app"
	"georef/internal/gcp"
	"georef/ui/canvas"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// pointColumns describes the table layout.
var pointColumns = []struct {
	title string
	width float32
}{
	{"ID", 36},
	{"Img X", 64},
	{"Img Y", 64},
	{"Lon", 80},
	{"Lat", 80},
	{"Wt", 44},
	{"On", 32},
	{"Resid", 64},
}

// PointsPanel displays and manages the control point table.
type PointsPanel struct {
	state *app.State
	view  *canvas.MapView
	box   *fyne.Container

	table       *widget.Table
	statusLabel *widget.Label
	weightEntry *widget.Entry

	// Cached rows, refreshed on point changes
	points      []gcp.Point
	selectedRow int

	// Image-side coordinate of a half-finished pair
	pendingX, pendingY float64
	pending            bool

	window fyne.Window
}

// NewPointsPanel creates the control point panel.
func NewPointsPanel(state *app.State, view *canvas.MapView) *PointsPanel {
	pp := &PointsPanel{
		state:       state,
		view:        view,
		selectedRow: -1,
	}

	pp.table = widget.NewTable(
		func() (int, int) {
			return len(pp.points) + 1, len(pointColumns)
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("")
		},
		func(id widget.TableCellID, o fyne.CanvasObject) {
			label := o.(*widget.Label)
			if id.Row == 0 {
				label.TextStyle = fyne.TextStyle{Bold: true}
				label.SetText(pointColumns[id.Col].title)
				return
			}
			label.TextStyle = fyne.TextStyle{}
			label.SetText(pp.cellText(id.Row-1, id.Col))
		},
	)
	for i, col := range pointColumns {
		pp.table.SetColumnWidth(i, col.width)
	}
	pp.table.OnSelected = func(id widget.TableCellID) {
		if id.Row > 0 {
			pp.selectedRow = id.Row - 1
		}
	}

	pp.statusLabel = widget.NewLabel("No control points")
	pp.statusLabel.Wrapping = fyne.TextWrapWord

	addBtn := widget.NewButton("Add Pair", func() { pp.onAddPair() })
	editBtn := widget.NewButton("Edit…", func() { pp.onEdit() })
	deleteBtn := widget.NewButton("Delete", func() { pp.onDelete() })
	toggleBtn := widget.NewButton("Toggle", func() { pp.onToggle() })
	clearBtn := widget.NewButton("Clear", func() { pp.onClear() })

	pp.weightEntry = widget.NewEntry()
	pp.weightEntry.SetPlaceHolder("1.0")
	setWeightBtn := widget.NewButton("Set Weight", func() { pp.onSetWeight() })

	buttons := container.NewHBox(addBtn, editBtn, deleteBtn, toggleBtn, clearBtn)
	weightRow := container.NewBorder(nil, nil, nil, setWeightBtn, pp.weightEntry)

	pp.box = container.NewBorder(
		nil,
		container.NewVBox(buttons, weightRow, pp.statusLabel),
		nil,
		nil,
		pp.table,
	)

	pp.wirePicking()
	pp.state.On(app.EventPointsChanged, func(interface{}) { pp.Reload() })
	pp.state.On(app.EventTransformChanged, func(interface{}) { pp.Reload() })
	pp.Reload()
	return pp
}

// SetWindow sets the parent window for dialogs.
func (pp *PointsPanel) SetWindow(win fyne.Window) {
	pp.window = win
}

// Container returns the panel's root widget.
func (pp *PointsPanel) Container() fyne.CanvasObject {
	return pp.box
}

// Reload refreshes the table from the store.
func (pp *PointsPanel) Reload() {
	pp.points = pp.state.Points.List()
	if pp.selectedRow >= len(pp.points) {
		pp.selectedRow = len(pp.points) - 1
	}
	pp.updateStatus()
	pp.table.Refresh()
}

// wirePicking connects the two-click pairing flow: first click picks the
// image-side coordinate, the second the map-side, then the pair is stored.
func (pp *PointsPanel) wirePicking() {
	pp.view.OnPickImage(func(x, y float64) {
		pp.pendingX, pp.pendingY = x, y
		pp.pending = true
		pp.view.SetMode(canvas.ModePickMap)
		pp.statusLabel.SetText(fmt.Sprintf("Image point (%.1f, %.1f) picked. Click the map position.", x, y))
	})

	pp.view.OnPickMap(func(lon, lat float64) {
		if !pp.pending {
			return
		}
		pp.pending = false
		pp.view.SetMode(canvas.ModePan)

		_, err := pp.state.Points.Add(gcp.Point{
			ImageX:  pp.pendingX,
			ImageY:  pp.pendingY,
			MapX:    lon,
			MapY:    lat,
			Enabled: true,
		})
		if err != nil {
			pp.showError(err)
		}
		pp.view.Refresh()
	})

	pp.view.OnModeChange(func(mode canvas.Mode) {
		if mode == canvas.ModePan && pp.pending {
			// Right-click abandoned the pair.
			pp.pending = false
			pp.updateStatus()
		}
	})
}

func (pp *PointsPanel) onAddPair() {
	pp.view.SetMode(canvas.ModePickImage)
	pp.statusLabel.SetText("Click the image point.")
}

// onEdit opens a form for typing exact coordinates of the selected point.
func (pp *PointsPanel) onEdit() {
	p, ok := pp.selected()
	if !ok || pp.window == nil {
		return
	}

	imgX := widget.NewEntry()
	imgX.SetText(fmt.Sprintf("%.2f", p.ImageX))
	imgY := widget.NewEntry()
	imgY.SetText(fmt.Sprintf("%.2f", p.ImageY))
	lon := widget.NewEntry()
	lon.SetText(fmt.Sprintf("%.6f", p.MapX))
	lat := widget.NewEntry()
	lat.SetText(fmt.Sprintf("%.6f", p.MapY))

	items := []*widget.FormItem{
		widget.NewFormItem("Image X", imgX),
		widget.NewFormItem("Image Y", imgY),
		widget.NewFormItem("Longitude", lon),
		widget.NewFormItem("Latitude", lat),
	}

	dialog.ShowForm(fmt.Sprintf("Edit Point %d", p.ID), "Apply", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		ix, err1 := strconv.ParseFloat(imgX.Text, 64)
		iy, err2 := strconv.ParseFloat(imgY.Text, 64)
		mx, err3 := strconv.ParseFloat(lon.Text, 64)
		my, err4 := strconv.ParseFloat(lat.Text, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			pp.statusLabel.SetText("Coordinates must be numbers")
			return
		}
		if err := pp.state.Points.SetImagePoint(p.ID, ix, iy); err != nil {
			pp.showError(err)
			return
		}
		if err := pp.state.Points.SetMapPoint(p.ID, mx, my); err != nil {
			pp.showError(err)
			return
		}
		pp.view.Refresh()
	}, pp.window)
}

func (pp *PointsPanel) onDelete() {
	p, ok := pp.selected()
	if !ok {
		return
	}
	if err := pp.state.Points.Remove(p.ID); err != nil {
		pp.showError(err)
	}
	pp.view.Refresh()
}

func (pp *PointsPanel) onToggle() {
	p, ok := pp.selected()
	if !ok {
		return
	}
	if err := pp.state.Points.SetEnabled(p.ID, !p.Enabled); err != nil {
		pp.showError(err)
	}
	pp.view.Refresh()
}

func (pp *PointsPanel) onClear() {
	if pp.state.Points.Count() == 0 {
		return
	}
	confirm := func(ok bool) {
		if !ok {
			return
		}
		pp.state.Points.Clear()
		pp.view.Refresh()
	}
	if pp.window != nil {
		dialog.ShowConfirm("Clear Points", "Remove all control points?", confirm, pp.window)
	} else {
		confirm(true)
	}
}

func (pp *PointsPanel) onSetWeight() {
	p, ok := pp.selected()
	if !ok {
		return
	}
	weight, err := strconv.ParseFloat(pp.weightEntry.Text, 64)
	if err != nil {
		pp.statusLabel.SetText("Weight must be a number")
		return
	}
	if err := pp.state.Points.SetWeight(p.ID, weight); err != nil {
		pp.showError(err)
	}
	pp.view.Refresh()
}

func (pp *PointsPanel) selected() (gcp.Point, bool) {
	if pp.selectedRow < 0 || pp.selectedRow >= len(pp.points) {
		return gcp.Point{}, false
	}
	return pp.points[pp.selectedRow], true
}

func (pp *PointsPanel) showError(err error) {
	if pp.window != nil {
		dialog.ShowError(err, pp.window)
	} else {
		pp.statusLabel.SetText(err.Error())
	}
}

func (pp *PointsPanel) updateStatus() {
	total := pp.state.Points.Count()
	enabled := pp.state.Points.CountEnabled()
	if total == 0 {
		pp.statusLabel.SetText("No control points")
		return
	}
	pp.statusLabel.SetText(fmt.Sprintf("%d points, %d enabled", total, enabled))
}

// cellText renders a single table cell.
func (pp *PointsPanel) cellText(row, col int) string {
	if row < 0 || row >= len(pp.points) {
		return ""
	}
	p := pp.points[row]
	switch col {
	case 0:
		return strconv.Itoa(int(p.ID))
	case 1:
		return fmt.Sprintf("%.1f", p.ImageX)
	case 2:
		return fmt.Sprintf("%.1f", p.ImageY)
	case 3:
		return fmt.Sprintf("%.5f", p.MapX)
	case 4:
		return fmt.Sprintf("%.5f", p.MapY)
	case 5:
		return fmt.Sprintf("%.1f", p.Weight)
	case 6:
		if p.Enabled {
			return "✓"
		}
		return ""
	case 7:
		return pp.residualText(p)
	}
	return ""
}

// residualText looks up the point's fit residual. Residuals are reported in
// the order the enabled points went into the fit.
func (pp *PointsPanel) residualText(p gcp.Point) string {
	if !p.Enabled {
		return "-"
	}
	tr := pp.state.Transform()
	if tr == nil {
		return "-"
	}
	idx := 0
	for _, q := range pp.points {
		if !q.Enabled {
			continue
		}
		if q.ID == p.ID {
			break
		}
		idx++
	}
	residuals := tr.Residuals()
	if idx >= len(residuals) {
		return "-"
	}
	return fmt.Sprintf("%.3g", residuals[idx])
}
