package rectify

import "github.com/spf13/afero"

// Config holds configuration for perspective rectification.
type Config struct {
	MaxOutputSide int // caps the longer output side, aspect kept (0 = no cap)
	Workers       int // goroutines sharing the row loop (0 = GOMAXPROCS)
	// Debug dumping
	DebugDir string   // if non-empty, writes overlay and compare PNGs here
	DebugFS  afero.Fs // filesystem for debug dumps (nil = OS filesystem)
}

// DefaultConfig returns sensible defaults for rectification.
func DefaultConfig() Config {
	return Config{
		MaxOutputSide: 0,
		Workers:       0,
		DebugDir:      "",
	}
}
