package testutil

import (
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/flatscan/internal/geometry"
)

// Scenario is a document photograph with known corners and the frame the
// rectifier is expected to produce for it.
type Scenario struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Photo       ImageSize        `json:"-"`
	Corners     []geometry.Point `json:"corners"`
	Width       int              `json:"width"`
	Height      int              `json:"height"`
}

// Scenarios returns the reference cases shared by the scan, server and CLI
// tests.
func Scenarios() []Scenario {
	return []Scenario{
		{
			Name:        "inset_rectangle",
			Description: "800x600 photo, page inset by 10% on every side",
			Photo:       PhotoSize,
			Corners:     []geometry.Point{{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.1}, {X: 0.9, Y: 0.9}, {X: 0.1, Y: 0.9}},
			Width:       640,
			Height:      480,
		},
		{
			Name:        "scrambled_order",
			Description: "same page, corners given as BR, TL, BL, TR",
			Photo:       PhotoSize,
			Corners:     []geometry.Point{{X: 0.9, Y: 0.9}, {X: 0.1, Y: 0.1}, {X: 0.1, Y: 0.9}, {X: 0.9, Y: 0.1}},
			Width:       640,
			Height:      480,
		},
		{
			Name:        "keystone",
			Description: "top edge shorter than the bottom edge",
			Photo:       PhotoSize,
			Corners:     []geometry.Point{{X: 0.25, Y: 0.1}, {X: 0.75, Y: 0.1}, {X: 0.95, Y: 0.9}, {X: 0.05, Y: 0.9}},
			Width:       720,
			Height:      506,
		},
	}
}

// ScenarioByName returns the named scenario.
func ScenarioByName(t testing.TB, name string) Scenario {
	t.Helper()
	for _, s := range Scenarios() {
		if s.Name == name {
			return s
		}
	}
	require.FailNow(t, "unknown scenario", name)
	return Scenario{}
}

// Canonical returns the scenario corners in TL, TR, BR, BL order.
func (s Scenario) Canonical() [4]geometry.Point {
	var quad [4]geometry.Point
	copy(quad[:], s.Corners)
	ordered, err := geometry.Order(quad)
	if err != nil {
		return quad
	}
	return ordered
}

// Render draws the default page into the scenario's photograph.
func (s Scenario) Render() *image.NRGBA {
	return DocumentPhoto(DocumentPage(DefaultPageConfig()), s.Photo, s.Canonical(), TableBrown)
}

// CornersJSON returns the corners in the [[x,y],...] wire form.
func (s Scenario) CornersJSON() string {
	pairs := make([][2]float64, len(s.Corners))
	for i, c := range s.Corners {
		pairs[i] = [2]float64{c.X, c.Y}
	}
	raw, _ := json.Marshal(pairs)
	return string(raw)
}

// WriteScenarioPhoto renders s as PNG into dir and returns the file path.
func WriteScenarioPhoto(t testing.TB, s Scenario, dir string) string {
	t.Helper()
	path := filepath.Join(dir, s.Name+".png")
	SaveImage(t, s.Render(), path)
	return path
}

// WriteFile writes data to dir/name and returns the path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}
