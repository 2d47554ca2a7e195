// Command fitcheck fits a transform to control point pairs from a file and
// prints residuals. Useful for checking point sets without the UI.
//
// Input is one pair per line: imageX imageY lon lat [weight], with # comments
// and blank lines ignored.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"georef/internal/gcp"
	"georef/internal/transform"
	"georef/pkg/geometry"
)

func main() {
	input := flag.String("i", "", "Path to control point file")
	kindName := flag.String("k", "affine", "Transform kind: affine, poly2, tps")
	weightName := flag.String("w", "none", "Weighting: none, idw")
	query := flag.String("q", "", "Optional image point to project, as 'x,y'")
	flag.Parse()

	if *input == "" {
		fmt.Println("Usage: fitcheck -i <points file> [-k affine|poly2|tps] [-w none|idw] [-q x,y]")
		os.Exit(1)
	}

	kind, err := parseKind(*kindName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	weighting, err := parseWeighting(*weightName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	points, err := readPoints(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read points: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Read %d control points from %s\n", len(points), *input)

	tr, err := transform.Estimate(points, kind, weighting)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fit failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n=== %s fit ===\n", tr.Kind())
	fmt.Printf("Weighting: %s\n", tr.Weighting())
	fmt.Printf("RMSE: %.6g\n", tr.RMSE())
	if _, ok := tr.Inverse(); !ok {
		fmt.Println("Inverse: not available")
	}

	fmt.Println("\n  #      Img X      Img Y        Lon        Lat   Residual")
	residuals := tr.Residuals()
	for i, p := range points {
		fmt.Printf("%3d %10.2f %10.2f %10.5f %10.5f %10.4g\n",
			i, p.ImageX, p.ImageY, p.MapX, p.MapY, residuals[i])
	}

	if *query != "" {
		q, err := parseQuery(*query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		out := tr.Forward(q)
		fmt.Printf("\n(%.2f, %.2f) -> (%.6f, %.6f)\n", q.X, q.Y, out.X, out.Y)
	}
}

func parseKind(name string) (transform.Kind, error) {
	switch strings.ToLower(name) {
	case "affine", "poly1":
		return transform.Affine, nil
	case "poly2":
		return transform.Polynomial2, nil
	case "tps":
		return transform.ThinPlateSpline, nil
	}
	return 0, fmt.Errorf("unknown transform kind %q", name)
}

func parseWeighting(name string) (transform.Weighting, error) {
	switch strings.ToLower(name) {
	case "none", "global":
		return transform.WeightGlobal, nil
	case "idw", "inverse-distance":
		return transform.WeightInverseDistance, nil
	}
	return 0, fmt.Errorf("unknown weighting %q", name)
}

func parseQuery(s string) (geometry.Point2D, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geometry.Point2D{}, fmt.Errorf("query must be 'x,y', got %q", s)
	}
	x, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	y, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return geometry.Point2D{}, fmt.Errorf("query must be numeric 'x,y', got %q", s)
	}
	return geometry.Point2D{X: x, Y: y}, nil
}

func readPoints(path string) ([]gcp.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var points []gcp.Point
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(strings.ReplaceAll(text, ",", " "))
		if len(fields) < 4 || len(fields) > 5 {
			return nil, fmt.Errorf("line %d: want 4 or 5 fields, got %d", line, len(fields))
		}
		vals := make([]float64, len(fields))
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %q is not a number", line, field)
			}
			vals[i] = v
		}
		p := gcp.Point{
			ImageX:  vals[0],
			ImageY:  vals[1],
			MapX:    vals[2],
			MapY:    vals[3],
			Weight:  1.0,
			Enabled: true,
		}
		if len(vals) == 5 {
			p.Weight = vals[4]
		}
		points = append(points, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return points, nil
}
