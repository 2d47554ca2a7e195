package transform

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"georef/internal/gcp"
	"georef/pkg/geometry"
)

// idwEpsilon keeps the per-evaluation inverse-distance weight finite at the
// control points themselves, where the distance is zero.
const idwEpsilon = 1e-12

// monomialCount returns the number of basis terms per axis for the kind.
func monomialCount(kind Kind) int {
	if kind == Polynomial2 {
		return 6
	}
	return 3
}

// monomials evaluates the polynomial basis of the kind at p.
// Order 1: [1, x, y]; order 2 adds [x², xy, y²].
func monomials(kind Kind, p geometry.Point2D, out []float64) []float64 {
	out = append(out[:0], 1, p.X, p.Y)
	if kind == Polynomial2 {
		out = append(out, p.X*p.X, p.X*p.Y, p.Y*p.Y)
	}
	return out
}

// polyCoeffs holds per-axis polynomial coefficients.
type polyCoeffs struct {
	kind Kind
	cx   []float64
	cy   []float64
}

func (c *polyCoeffs) eval(p geometry.Point2D) geometry.Point2D {
	var basis [6]float64
	b := monomials(c.kind, p, basis[:0])

	var x, y float64
	for i, m := range b {
		x += c.cx[i] * m
		y += c.cy[i] * m
	}
	return geometry.Point2D{X: x, Y: y}
}

// solvePolynomial solves the weighted least-squares system (AᵗWA)c = AᵗWb
// for both output axes. Rows are scaled by √w and solved by QR, which is the
// same system in a better-conditioned form.
func solvePolynomial(points []gcp.Point, kind Kind, weights []float64) (*polyCoeffs, error) {
	n := len(points)
	m := monomialCount(kind)

	A := mat.NewDense(n, m, nil)
	bx := mat.NewVecDense(n, nil)
	by := mat.NewVecDense(n, nil)

	var basis [6]float64
	for i, p := range points {
		sw := sqrtWeight(weights[i])
		row := monomials(kind, p.ImagePoint(), basis[:0])
		for j, v := range row {
			A.Set(i, j, sw*v)
		}
		bx.SetVec(i, sw*p.MapX)
		by.SetVec(i, sw*p.MapY)
	}

	var qr mat.QR
	qr.Factorize(A)

	var cx, cy mat.VecDense
	if err := qr.SolveVecTo(&cx, false, bx); err != nil {
		return nil, fmt.Errorf("%s fit: %w", kind, ErrSingularSystem)
	}
	if err := qr.SolveVecTo(&cy, false, by); err != nil {
		return nil, fmt.Errorf("%s fit: %w", kind, ErrSingularSystem)
	}

	coeffs := &polyCoeffs{kind: kind, cx: make([]float64, m), cy: make([]float64, m)}
	for j := 0; j < m; j++ {
		coeffs.cx[j] = cx.AtVec(j)
		coeffs.cy[j] = cy.AtVec(j)
	}
	return coeffs, nil
}

func sqrtWeight(w float64) float64 {
	if w <= 0 {
		w = 1
	}
	// √w scales one row; squaring through AᵗA recovers w.
	return math.Sqrt(w)
}

func estimatePolynomial(points []gcp.Point, kind Kind, weighting Weighting) (*Transform, error) {
	weights := make([]float64, len(points))
	for i, p := range points {
		weights[i] = p.Weight
	}

	global, err := solvePolynomial(points, kind, weights)
	if err != nil {
		return nil, err
	}

	t := &Transform{kind: kind, weighting: weighting}

	switch weighting {
	case WeightInverseDistance:
		// Locally-weighted fit: coefficients are recomputed for every
		// evaluation point, with each control point's weight scaled by
		// the inverse squared distance to it. The global fit is kept as
		// a fallback for evaluation points where the local system
		// degenerates. No inverse is provided in this mode.
		pts := append([]gcp.Point(nil), points...)
		base := append([]float64(nil), weights...)
		t.forward = func(p geometry.Point2D) geometry.Point2D {
			local := make([]float64, len(pts))
			for i, cp := range pts {
				d2 := distSq(p, cp.ImagePoint())
				local[i] = base[i] / (d2 + idwEpsilon)
			}
			coeffs, err := solvePolynomial(pts, kind, local)
			if err != nil {
				return global.eval(p)
			}
			return coeffs.eval(p)
		}
	default:
		t.forward = global.eval
		t.inverse = polynomialInverse(global, points)
	}

	return t, nil
}

// polynomialInverse builds the map-to-image mapping. The affine kind inverts
// in closed form; order 2 refines a closed-form affine start with Newton
// iteration. Returns nil when no inverse exists.
func polynomialInverse(coeffs *polyCoeffs, points []gcp.Point) MapFunc {
	affinePart := geometry.AffineTransform{
		A: coeffs.cx[1], B: coeffs.cx[2], TX: coeffs.cx[0],
		C: coeffs.cy[1], D: coeffs.cy[2], TY: coeffs.cy[0],
	}
	inv, ok := affinePart.Inverse()
	if !ok {
		return nil
	}

	if coeffs.kind == Affine {
		return inv.Apply
	}

	forward := coeffs.eval
	return func(p geometry.Point2D) geometry.Point2D {
		return newtonInverse(forward, inv.Apply(p), p)
	}
}

func distSq(a, b geometry.Point2D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}
