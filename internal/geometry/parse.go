package geometry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/flatscan/internal/scanerr"
)

// ParseCorners reads corner points from one of the accepted textual forms:
//
//	[[0.1,0.1],[0.9,0.1],[0.9,0.9],[0.1,0.9]]
//	[{"x":0.1,"y":0.1}, ...]
//	0.1,0.1;0.9,0.1;0.9,0.9;0.1,0.9
//
// It does not check the count or range; see ValidateNormalized.
func ParseCorners(s string) ([]Point, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, scanerr.New(scanerr.InvalidInput, "corners", "no corners given")
	}
	if strings.HasPrefix(s, "[") {
		return parseCornersJSON([]byte(s))
	}
	return parseCornersList(s)
}

func parseCornersJSON(data []byte) ([]Point, error) {
	var pairs [][]float64
	if err := json.Unmarshal(data, &pairs); err == nil {
		pts := make([]Point, len(pairs))
		for i, p := range pairs {
			if len(p) != 2 {
				return nil, scanerr.New(scanerr.InvalidInput, "corners", "corner %d has %d coordinates", i, len(p))
			}
			pts[i] = Point{X: p[0], Y: p[1]}
		}
		return pts, nil
	}

	var objs []map[string]float64
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&objs); err != nil {
		return nil, scanerr.Wrap(scanerr.InvalidInput, "corners", fmt.Errorf("decode corners: %w", err))
	}
	pts := make([]Point, len(objs))
	for i, o := range objs {
		x, okX := o["x"]
		y, okY := o["y"]
		if !okX || !okY || len(o) != 2 {
			return nil, scanerr.New(scanerr.InvalidInput, "corners", "corner %d must have exactly x and y", i)
		}
		pts[i] = Point{X: x, Y: y}
	}
	return pts, nil
}

func parseCornersList(s string) ([]Point, error) {
	items := strings.Split(strings.Trim(s, ";"), ";")
	pts := make([]Point, 0, len(items))
	for i, item := range items {
		xy := strings.Split(item, ",")
		if len(xy) != 2 {
			return nil, scanerr.New(scanerr.InvalidInput, "corners", "corner %d: want \"x,y\", got %q", i, item)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xy[0]), 64)
		if err != nil {
			return nil, scanerr.Wrap(scanerr.InvalidInput, "corners", err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(xy[1]), 64)
		if err != nil {
			return nil, scanerr.Wrap(scanerr.InvalidInput, "corners", err)
		}
		pts = append(pts, Point{X: x, Y: y})
	}
	return pts, nil
}
