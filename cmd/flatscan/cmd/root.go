// Package cmd implements the flatscan command line.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/flatscan/internal/config"
	"github.com/MeKo-Tech/flatscan/internal/version"
)

// skipConfig marks commands that run without loading the configuration.
const skipConfig = "skip-config"

// app carries the configuration state of one command tree.
type app struct {
	cfgFile string
	loader  *config.Loader
	cfg     *config.Config
}

// Execute runs the CLI and exits non-zero on failure.
// This is called by main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand builds a fresh command tree with its own viper instance, so
// commands can be executed repeatedly in one process.
func NewRootCommand() *cobra.Command {
	a := &app{loader: config.NewLoaderWithViper(viper.New())}

	rootCmd := &cobra.Command{
		Use:   "flatscan",
		Short: "Flatten photographed documents into scans",
		Long: `flatscan turns a photo of a document into a flat, upright scan.

Given the four corners of the page, it corrects the perspective, sizes the
result to the page's true proportions and optionally runs enhancement filters
(grayscale, rotation, cropping, black & white, ...) and text extraction.

Examples:
  flatscan rectify photo.jpg --corners "0.1,0.1;0.9,0.1;0.9,0.9;0.1,0.9"
  flatscan filter scan.png --filters "enhance:bw" --out scan_bw.png
  flatscan serve --port 8080`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
				return nil
			}
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is search in ., $HOME, $XDG_CONFIG_HOME/flatscan, /etc/flatscan)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().Bool("version", false, "print version information and exit")

	v := a.loader.GetViper()
	_ = v.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = v.BindPFlag("log_level", pf.Lookup("log-level"))

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipConfig] == "true" {
			setupLogging(cmd.ErrOrStderr(), "info")
			return nil
		}
		cfg, err := a.load()
		if err != nil {
			return err
		}
		setupLogging(cmd.ErrOrStderr(), cfg.SlogLevel())
		return nil
	}

	rootCmd.AddCommand(
		newRectifyCmd(a),
		newFilterCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// load reads the configuration once per command tree.
func (a *app) load() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := a.loader.LoadWithFile(a.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	a.cfg = cfg
	return cfg, nil
}

// setupLogging installs a JSON slog handler at the given level.
func setupLogging(w io.Writer, level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})))
}
