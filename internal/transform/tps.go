package transform

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"georef/internal/gcp"
	"georef/pkg/geometry"
)

// tpsKernel is the thin-plate radial basis U(r) = r² log r, expressed in
// terms of r² to avoid the square root. U(0) = 0 by continuity.
func tpsKernel(r2 float64) float64 {
	if r2 <= 0 {
		return 0
	}
	return 0.5 * r2 * math.Log(r2)
}

// tpsCoeffs holds one axis of a fitted spline: n kernel weights followed by
// the affine terms [a0, ax, ay].
type tpsCoeffs struct {
	knots      []geometry.Point2D
	w          []float64
	a0, ax, ay float64
}

func (c *tpsCoeffs) eval(p geometry.Point2D) float64 {
	v := c.a0 + c.ax*p.X + c.ay*p.Y
	for i, k := range c.knots {
		v += c.w[i] * tpsKernel(distSq(p, k))
	}
	return v
}

// solveTPS fits one output axis of the spline through the knots. The linear
// system is the standard one:
//
//	| K  P | |w|   |v|
//	| Pᵗ 0 | |a| = |0|
//
// with K_ij = U(|k_i - k_j|) and P_i = [1, x_i, y_i]. The zero block encodes
// the side conditions: the kernel weights sum to zero and are orthogonal to
// the affine basis.
func solveTPS(knots []geometry.Point2D, values []float64) (*tpsCoeffs, error) {
	n := len(knots)
	size := n + 3

	L := mat.NewDense(size, size, nil)
	rhs := mat.NewVecDense(size, nil)

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			L.Set(i, j, tpsKernel(distSq(knots[i], knots[j])))
		}
		L.Set(i, n, 1)
		L.Set(i, n+1, knots[i].X)
		L.Set(i, n+2, knots[i].Y)
		L.Set(n, i, 1)
		L.Set(n+1, i, knots[i].X)
		L.Set(n+2, i, knots[i].Y)
		rhs.SetVec(i, values[i])
	}

	var sol mat.VecDense
	if err := sol.SolveVec(L, rhs); err != nil {
		return nil, fmt.Errorf("thin plate spline fit: %w", ErrSingularSystem)
	}

	c := &tpsCoeffs{knots: knots, w: make([]float64, n)}
	for i := 0; i < n; i++ {
		c.w[i] = sol.AtVec(i)
	}
	c.a0 = sol.AtVec(n)
	c.ax = sol.AtVec(n + 1)
	c.ay = sol.AtVec(n + 2)
	return c, nil
}

// tpsPair fits both output axes over a shared knot set.
func tpsPair(knots []geometry.Point2D, xs, ys []float64) (MapFunc, error) {
	cx, err := solveTPS(knots, xs)
	if err != nil {
		return nil, err
	}
	cy, err := solveTPS(knots, ys)
	if err != nil {
		return nil, err
	}
	return func(p geometry.Point2D) geometry.Point2D {
		return geometry.Point2D{X: cx.eval(p), Y: cy.eval(p)}
	}, nil
}

func estimateTPS(points []gcp.Point) (*Transform, error) {
	n := len(points)
	src := make([]geometry.Point2D, n)
	dst := make([]geometry.Point2D, n)
	mapX := make([]float64, n)
	mapY := make([]float64, n)
	imgX := make([]float64, n)
	imgY := make([]float64, n)
	for i, p := range points {
		src[i] = p.ImagePoint()
		dst[i] = p.MapPoint()
		mapX[i], mapY[i] = p.MapX, p.MapY
		imgX[i], imgY[i] = p.ImageX, p.ImageY
	}

	forward, err := tpsPair(src, mapX, mapY)
	if err != nil {
		return nil, err
	}

	// The inverse is a second spline with source and destination swapped.
	// Coincident map coordinates make that system singular; the forward
	// transform is still valid then, just without an inverse.
	inverse, err := tpsPair(dst, imgX, imgY)
	if err != nil {
		inverse = nil
	}

	return &Transform{
		kind:    ThinPlateSpline,
		forward: forward,
		inverse: inverse,
	}, nil
}
