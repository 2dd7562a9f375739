package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/flatscan/internal/codec"
	"github.com/MeKo-Tech/flatscan/internal/filter"
	"github.com/MeKo-Tech/flatscan/internal/testutil"
)

func main() {
	// Set up structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir           = flag.String("out", "testdata", "Output directory, relative to the project root")
		generateImages   = flag.Bool("images", true, "Generate reference photos of the test scenarios")
		generateFixtures = flag.Bool("fixtures", true, "Generate scenario fixtures and filter presets")
		verbose          = flag.Bool("v", false, "Verbose output")
		help             = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate test data for flatscan testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                    # Generate all test data\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -fixtures=false    # Generate only images\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	dir := filepath.Join(root, *outDir)
	if *verbose {
		slog.Info("Options", "dir", dir, "images", *generateImages, "fixtures", *generateFixtures)
	}

	if *generateImages {
		n, err := generateImagesIn(filepath.Join(dir, "images"))
		if err != nil {
			slog.Error("Failed to generate test images", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated test images", "count", n)
	}

	if *generateFixtures {
		if err := generateFixturesIn(filepath.Join(dir, "fixtures")); err != nil {
			slog.Error("Failed to generate test fixtures", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated test fixtures")
	}
}

// generateImagesIn writes the flat reference page and every scenario photo
// as PNG and JPEG.
func generateImagesIn(dir string) (int, error) {
	if err := testutil.EnsureDir(dir); err != nil {
		return 0, fmt.Errorf("failed to create images directory: %w", err)
	}

	count := 0
	write := func(name string, data []byte) error {
		count++
		return os.WriteFile(filepath.Join(dir, name), data, 0o644)
	}

	page, err := codec.Encode(testutil.DocumentPage(testutil.DefaultPageConfig()), codec.EncodeOptions{Format: codec.PNG})
	if err != nil {
		return 0, err
	}
	if err := write("page.png", page); err != nil {
		return 0, err
	}

	for _, s := range testutil.Scenarios() {
		img := s.Render()
		for _, format := range []codec.Format{codec.PNG, codec.JPEG} {
			data, err := codec.Encode(img, codec.EncodeOptions{Format: format})
			if err != nil {
				return count, fmt.Errorf("failed to encode %s as %s: %w", s.Name, format, err)
			}
			if err := write(s.Name+format.Extension(), data); err != nil {
				return count, err
			}
		}
	}
	return count, nil
}

// generateFixturesIn writes the scenario descriptions and example filter
// presets.
func generateFixturesIn(dir string) error {
	if err := testutil.EnsureDir(filepath.Join(dir, "presets")); err != nil {
		return fmt.Errorf("failed to create fixtures directory: %w", err)
	}

	scenarios, err := json.MarshalIndent(testutil.Scenarios(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "scenarios.json"), scenarios, 0o644); err != nil {
		return err
	}

	presets := []struct {
		name, description, filters string
	}{
		{"document", "clean black and white text page", "grayscale,enhance:adaptive_bw"},
		{"receipt", "thermal paper receipt", "enhance:lighten,enhance:sharpen,enhance:bw"},
		{"photo", "colour document with photos", "enhance:magic_color,resize:2000"},
	}
	for _, p := range presets {
		specs, err := filter.ParseCompact(p.filters)
		if err != nil {
			return fmt.Errorf("preset %s: %w", p.name, err)
		}
		data, err := yaml.Marshal(filter.Preset{Name: p.name, Description: p.description, Filters: filter.ToRaw(specs)})
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, "presets", p.name+".yaml"), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
