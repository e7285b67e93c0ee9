package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.NotEmpty(t, cfg.Shell.WorkDir)
	assert.Equal(t, 1024*1024, cfg.Shell.OutputBufferMax)
	assert.Equal(t, 16000, cfg.Shell.TranscriptMaxLen)
	assert.Equal(t, 300*time.Millisecond, cfg.Shell.RestoreDelay)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "quill", cfg.UI.AgentName)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().Shell.OutputBufferMax, cfg.Shell.OutputBufferMax)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
shell:
  workdir: `+dir+`
  interactive: true
  restore_delay: 500ms
logger:
  level: debug
ui:
  agent_name: custom
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Shell.WorkDir)
	assert.True(t, cfg.Shell.Interactive)
	assert.Equal(t, 500*time.Millisecond, cfg.Shell.RestoreDelay)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "custom", cfg.UI.AgentName)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("shell: [not a map"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("QUILL_SHELL_WORKDIR", dir)
	t.Setenv("QUILL_SHELL_INTERACTIVE", "true")
	t.Setenv("QUILL_HISTORY_ENABLED", "false")
	t.Setenv("QUILL_LOGGER_LEVEL", "debug")
	t.Setenv("QUILL_SHELL_RESTORE_DELAY", "150ms")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	assert.Equal(t, dir, cfg.Shell.WorkDir)
	assert.True(t, cfg.Shell.Interactive)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 150*time.Millisecond, cfg.Shell.RestoreDelay)
}

func TestColorProfile(t *testing.T) {
	cases := map[string]termenv.Profile{
		"ascii":     termenv.Ascii,
		"ansi":      termenv.ANSI,
		"ansi256":   termenv.ANSI256,
		"truecolor": termenv.TrueColor,
	}
	for name, want := range cases {
		cfg := Defaults()
		cfg.UI.ColorProfile = name
		assert.Equal(t, want, cfg.ColorProfile(), name)
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Shell.WorkDir = t.TempDir()
	require.NoError(t, Validate(cfg))

	cfg.Shell.WorkDir = "/definitely/not/a/real/dir"
	assert.Error(t, Validate(cfg))

	cfg = Defaults()
	cfg.Shell.WorkDir = t.TempDir()
	cfg.Shell.OutputBufferMax = 100
	assert.Error(t, Validate(cfg))

	cfg = Defaults()
	cfg.Shell.WorkDir = t.TempDir()
	cfg.Logger.Level = "loud"
	assert.Error(t, Validate(cfg))
}
