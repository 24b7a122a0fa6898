package runtimeinit

import (
	"fmt"
	"log"

	"capcut-bypass/src/config"
	"capcut-bypass/src/logutil"
)

type Options struct {
	LoadOptions config.LoadOptions
	// SetupLogging overrides logutil.Setup (the CLI routes logs to stderr).
	SetupLogging func(cfg *config.Config)
}

// Bootstrap loads configuration and prepares logging. The elevation state is
// only reported; BlockInput silently does nothing for a non-elevated process
// when the editor itself runs elevated.
func Bootstrap(opts Options) (*config.Config, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg)
	} else {
		logutil.Setup(cfg.EnableFileLogging, cfg.StateDir)
	}

	elevated, err := isElevated()
	switch {
	case err != nil:
		log.Printf("Elevation check failed: %v", err)
	case !elevated:
		log.Printf("Running without elevation; input blocking may be refused")
	default:
		log.Printf("Running elevated")
	}

	log.Printf("Target: %s (title %q), hotkey %s", cfg.TargetExe, cfg.TargetTitle, cfg.Hotkey)
	for _, root := range cfg.DraftRoots {
		log.Printf("Draft root: %s", logutil.SanitizePath(root))
	}
	return cfg, nil
}
