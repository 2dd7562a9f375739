package cmd

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/flatscan/internal/geometry"
	"github.com/MeKo-Tech/flatscan/internal/scan"
)

func newRectifyCmd(a *app) *cobra.Command {
	var (
		f       scanFlags
		corners string
		maxSide int
	)

	cmd := &cobra.Command{
		Use:   "rectify IN",
		Short: "Correct the perspective of a photographed document",
		Long: `Correct the perspective of a photographed document.

The four page corners are given as fractions of the image width and height,
in any order. The result is sized to the page's proportions and written next
to the input unless --out is given ("-" writes to stdout).

Examples:
  flatscan rectify photo.jpg --corners "0.1,0.1;0.9,0.1;0.9,0.9;0.1,0.9"
  flatscan rectify photo.jpg --corners "[[0.1,0.1],[0.9,0.1],[0.9,0.9],[0.1,0.9]]" --format png
  flatscan rectify photo.jpg --corners "..." --filters "enhance:bw" --out page.png --ocr`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if corners == "" {
				return errors.New("--corners is required")
			}
			pts, err := geometry.ParseCorners(corners)
			if err != nil {
				return err
			}
			specs, err := f.parseFilters()
			if err != nil {
				return err
			}
			out, err := f.encodeOptions()
			if err != nil {
				return err
			}

			cfg, err := a.load()
			if err != nil {
				return err
			}
			svc, err := buildService(cfg, &f, maxSide)
			if err != nil {
				return err
			}

			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			res, err := svc.RectifyPerspective(cmd.Context(), scan.RectifyRequest{
				Image:      data,
				FormatHint: f.inputFormat,
				Corners:    pts,
				Filters:    specs,
				Output:     out,
				OCR:        f.ocrOptions(),
				Persist:    f.persist,
			})
			if err != nil {
				return err
			}
			slog.Debug("Rectified", "input", args[0], "width", res.Width, "height", res.Height, "timings", res.Timings.String())
			return writeResult(cmd, args[0], &f, "flat", res)
		},
	}

	addScanFlags(cmd, &f)
	cmd.Flags().StringVarP(&corners, "corners", "c", "", `page corners, "x,y;x,y;x,y;x,y" or JSON`)
	cmd.Flags().IntVar(&maxSide, "max-side", 0, "cap the longer output side in pixels (default from config)")
	return cmd
}
