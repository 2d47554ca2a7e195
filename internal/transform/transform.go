// Package transform estimates spatial transforms from ground control points.
// A fitted Transform maps source-image pixel coordinates into map coordinates
// and, when available, back again.
package transform

import (
	"errors"
	"fmt"
	"math"

	"georef/internal/gcp"
	"georef/pkg/geometry"
)

var (
	// ErrInsufficientPoints is returned when too few enabled points are
	// available for the requested kind.
	ErrInsufficientPoints = errors.New("insufficient control points")
	// ErrSingularSystem is returned when the fitting system is not solvable
	// (collinear or coincident points).
	ErrSingularSystem = errors.New("singular fitting system")
)

// Kind selects the transform model.
type Kind int

const (
	// Affine is an order-1 polynomial (6 parameters), least-squares fit.
	Affine Kind = iota
	// Polynomial2 is an order-2 polynomial (12 parameters), least-squares fit.
	Polynomial2
	// ThinPlateSpline interpolates exactly through every control point.
	ThinPlateSpline
)

func (k Kind) String() string {
	switch k {
	case Affine:
		return "Polynomial (Order 1)"
	case Polynomial2:
		return "Polynomial (Order 2)"
	case ThinPlateSpline:
		return "Thin Plate Spline"
	default:
		return "Unknown"
	}
}

// MinPoints returns the minimum number of enabled points the kind requires.
func (k Kind) MinPoints() int {
	switch k {
	case Polynomial2:
		return 6
	default:
		return 3
	}
}

// Weighting selects how control point weights enter a polynomial fit.
type Weighting int

const (
	// WeightGlobal uses each point's weight in one global least-squares fit.
	WeightGlobal Weighting = iota
	// WeightInverseDistance refits the polynomial for every evaluated
	// coordinate, scaling each point's weight by the inverse squared
	// distance to the evaluation point. A locally-weighted (moving) fit
	// rather than a closed-form global one.
	WeightInverseDistance
)

func (w Weighting) String() string {
	switch w {
	case WeightInverseDistance:
		return "Inverse Distance"
	default:
		return "None"
	}
}

// MapFunc maps a point from one space to the other.
type MapFunc func(geometry.Point2D) geometry.Point2D

// Transform is an immutable fitted mapping produced by Estimate. Forward maps
// image pixels to map coordinates; Inverse is nil for kinds without one.
type Transform struct {
	kind      Kind
	weighting Weighting
	forward   MapFunc
	inverse   MapFunc
	residuals []float64
	rmse      float64
}

// Kind returns the transform model.
func (t *Transform) Kind() Kind { return t.kind }

// Weighting returns the weighting mode the fit used.
func (t *Transform) Weighting() Weighting { return t.weighting }

// Forward maps an image pixel coordinate to map space.
func (t *Transform) Forward(p geometry.Point2D) geometry.Point2D {
	return t.forward(p)
}

// Inverse returns the map-to-image mapping, or false when the kind provides
// none. Absence of an inverse is not an error.
func (t *Transform) Inverse() (MapFunc, bool) {
	if t.inverse == nil {
		return nil, false
	}
	return t.inverse, true
}

// Residuals returns the per-point forward-mapping error, in map units, in
// the order of the enabled points the fit consumed.
func (t *Transform) Residuals() []float64 {
	out := make([]float64, len(t.residuals))
	copy(out, t.residuals)
	return out
}

// RMSE returns the root-mean-square of the residuals.
func (t *Transform) RMSE() float64 { return t.rmse }

// Estimate fits a transform of the given kind to the enabled points in the
// set. Disabled points are ignored. Weighting applies to the polynomial
// kinds; ThinPlateSpline interpolates exactly and ignores it.
func Estimate(points []gcp.Point, kind Kind, weighting Weighting) (*Transform, error) {
	enabled := make([]gcp.Point, 0, len(points))
	for _, p := range points {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	if len(enabled) < kind.MinPoints() {
		return nil, fmt.Errorf("%s needs at least %d points, have %d: %w",
			kind, kind.MinPoints(), len(enabled), ErrInsufficientPoints)
	}

	var (
		t   *Transform
		err error
	)
	switch kind {
	case Affine, Polynomial2:
		t, err = estimatePolynomial(enabled, kind, weighting)
	case ThinPlateSpline:
		t, err = estimateTPS(enabled)
	default:
		return nil, fmt.Errorf("unknown transform kind %d", kind)
	}
	if err != nil {
		return nil, err
	}

	t.residuals = make([]float64, len(enabled))
	var sum float64
	for i, p := range enabled {
		r := t.forward(p.ImagePoint()).Distance(p.MapPoint())
		t.residuals[i] = r
		sum += r * r
	}
	t.rmse = math.Sqrt(sum / float64(len(enabled)))

	return t, nil
}

// newtonInverse numerically inverts forward around start, refining toward
// target with a finite-difference Jacobian. Returns start unchanged when the
// Jacobian degenerates.
func newtonInverse(forward MapFunc, start, target geometry.Point2D) geometry.Point2D {
	const (
		iterations = 20
		step       = 1e-4
		tolerance  = 1e-10
	)

	p := start
	for i := 0; i < iterations; i++ {
		f := forward(p)
		ex := f.X - target.X
		ey := f.Y - target.Y
		if ex*ex+ey*ey < tolerance {
			break
		}

		fx := forward(geometry.Point2D{X: p.X + step, Y: p.Y})
		fy := forward(geometry.Point2D{X: p.X, Y: p.Y + step})
		j11 := (fx.X - f.X) / step
		j21 := (fx.Y - f.Y) / step
		j12 := (fy.X - f.X) / step
		j22 := (fy.Y - f.Y) / step

		det := j11*j22 - j12*j21
		if math.Abs(det) < 1e-14 {
			break
		}

		// Solve J * delta = error.
		p.X -= (j22*ex - j12*ey) / det
		p.Y -= (j11*ey - j21*ex) / det
	}
	return p
}
