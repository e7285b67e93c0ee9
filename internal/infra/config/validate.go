package config

import (
	"fmt"
	"os"
	"strings"
)

// Validate checks cfg for unusable values. It is called after overrides so
// env mistakes are caught too.
func Validate(cfg *Config) error {
	var problems []string

	if cfg.Shell.WorkDir == "" {
		problems = append(problems, "shell.workdir must not be empty")
	} else if info, err := os.Stat(cfg.Shell.WorkDir); err != nil || !info.IsDir() {
		problems = append(problems, fmt.Sprintf("shell.workdir %q is not an existing directory", cfg.Shell.WorkDir))
	}
	if cfg.Shell.OutputBufferMax < 4096 {
		problems = append(problems, "shell.output_buffer_max must be at least 4096")
	}
	if cfg.Shell.TranscriptMaxLen < 256 {
		problems = append(problems, "shell.transcript_max_len must be at least 256")
	}

	switch strings.ToLower(cfg.Logger.Level) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		problems = append(problems, fmt.Sprintf("logger.level %q is not a known level", cfg.Logger.Level))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
