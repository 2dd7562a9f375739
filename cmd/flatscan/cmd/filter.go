package cmd

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/flatscan/internal/scan"
)

func newFilterCmd(a *app) *cobra.Command {
	var f scanFlags

	cmd := &cobra.Command{
		Use:   "filter IN",
		Short: "Apply enhancement filters to an image",
		Long: `Apply an ordered list of filters to an image.

Filters: grayscale, rotate:<deg>, crop:<x>:<y>:<w>:<h>,
enhance:<contrast|sharpen|bw|adaptive_bw|magic_color|lighten|denoise>,
adjust:brightness=<n>:contrast=<n>:gamma=<n>:saturation=<n>, resize:<w>[:<h>].

Examples:
  flatscan filter scan.png --filters "rotate:90,enhance:bw" --out scan_bw.png
  flatscan filter scan.jpg --filters-file presets/document.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := f.parseFilters()
			if err != nil {
				return err
			}
			if len(specs) == 0 {
				return errors.New("no filters given: use --filters or --filters-file")
			}
			out, err := f.encodeOptions()
			if err != nil {
				return err
			}

			cfg, err := a.load()
			if err != nil {
				return err
			}
			svc, err := buildService(cfg, &f, 0)
			if err != nil {
				return err
			}

			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			res, err := svc.ApplyFilters(cmd.Context(), scan.FilterRequest{
				Image:      data,
				FormatHint: f.inputFormat,
				Filters:    specs,
				Output:     out,
				OCR:        f.ocrOptions(),
				Persist:    f.persist,
			})
			if err != nil {
				return err
			}
			slog.Debug("Filtered", "input", args[0], "filters", res.Filters, "timings", res.Timings.String())
			return writeResult(cmd, args[0], &f, "filtered", res)
		},
	}

	addScanFlags(cmd, &f)
	return cmd
}
