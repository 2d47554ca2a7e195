package panels

import (
	"fmt"

	"georef/internal/app"
	"georef/internal/transform"
	"georef/ui/canvas"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// kindNames lists the transform models in menu order.
var kindNames = []string{
	"Polynomial (Order 1)",
	"Polynomial (Order 2)",
	"Thin Plate Spline",
}

// weightingNames lists the weighting modes in menu order.
var weightingNames = []string{"None", "Inverse Distance"}

func kindFromString(s string) transform.Kind {
	switch s {
	case "Polynomial (Order 2)":
		return transform.Polynomial2
	case "Thin Plate Spline":
		return transform.ThinPlateSpline
	default:
		return transform.Affine
	}
}

func kindToString(k transform.Kind) string {
	switch k {
	case transform.Polynomial2:
		return "Polynomial (Order 2)"
	case transform.ThinPlateSpline:
		return "Thin Plate Spline"
	default:
		return "Polynomial (Order 1)"
	}
}

func weightingFromString(s string) transform.Weighting {
	if s == "Inverse Distance" {
		return transform.WeightInverseDistance
	}
	return transform.WeightGlobal
}

func weightingToString(w transform.Weighting) string {
	if w == transform.WeightInverseDistance {
		return "Inverse Distance"
	}
	return "None"
}

// TransformPanel selects the transform model and shows the fit quality.
type TransformPanel struct {
	state *app.State
	view  *canvas.MapView
	box   *fyne.Container

	kindSelect      *widget.Select
	weightingSelect *widget.Select
	previewCheck    *widget.Check
	fitLabel        *widget.Label
}

// NewTransformPanel creates the transform panel.
func NewTransformPanel(state *app.State, view *canvas.MapView) *TransformPanel {
	tp := &TransformPanel{state: state, view: view}

	tp.kindSelect = widget.NewSelect(kindNames, func(s string) {
		tp.state.SetKind(kindFromString(s))
		tp.view.Refresh()
	})
	tp.kindSelect.SetSelected(kindToString(state.Kind()))

	tp.weightingSelect = widget.NewSelect(weightingNames, func(s string) {
		tp.state.SetWeighting(weightingFromString(s))
		tp.view.Refresh()
	})
	tp.weightingSelect.SetSelected(weightingToString(state.Weighting()))

	tp.previewCheck = widget.NewCheck("Preview on map", func(on bool) {
		tp.state.SetPreview(on)
		tp.view.Refresh()
	})
	tp.previewCheck.SetChecked(state.Preview())

	tp.fitLabel = widget.NewLabel("")
	tp.fitLabel.Wrapping = fyne.TextWrapWord

	tp.box = container.NewVBox(
		widget.NewLabel("Transform:"),
		tp.kindSelect,
		widget.NewLabel("Weighting:"),
		tp.weightingSelect,
		tp.previewCheck,
		widget.NewSeparator(),
		tp.fitLabel,
	)

	tp.state.On(app.EventPointsChanged, func(interface{}) { tp.updateFitLabel() })
	tp.state.On(app.EventTransformChanged, func(interface{}) { tp.updateFitLabel() })
	tp.updateFitLabel()
	return tp
}

// Container returns the panel's root widget.
func (tp *TransformPanel) Container() fyne.CanvasObject {
	return tp.box
}

// updateFitLabel reports fit quality, the shortfall before a fit is possible,
// or the failure of the last attempt.
func (tp *TransformPanel) updateFitLabel() {
	kind := tp.state.Kind()
	need := kind.MinPoints()
	have := tp.state.Points.CountEnabled()

	if have < need {
		tp.fitLabel.SetText(fmt.Sprintf("%d of %d points required for %s", have, need, kind))
		return
	}

	tr := tp.state.Transform()
	if err := tp.state.FitError(); err != nil {
		tp.fitLabel.SetText("Fit failed: " + err.Error())
		return
	}
	if tr == nil {
		tp.fitLabel.SetText("No fit yet")
		return
	}
	text := fmt.Sprintf("RMSE: %.4g", tr.RMSE())
	if _, ok := tr.Inverse(); !ok {
		text += " (no inverse available)"
	}
	tp.fitLabel.SetText(text)
}
