package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/CZERTAINLY/rootshell/internal/model"
	"github.com/CZERTAINLY/rootshell/internal/shell"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	yml := `
version: 0
verbose: true
shell:
  commands: ["sh", "-i"]
  timeout: 5s
  non_root: true
  redirect_stderr: true
  initializers:
    - export LC_ALL=C
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.True(t, cfg.Verbose)
	require.Equal(t, []string{"sh", "-i"}, cfg.Shell.Commands)
	require.Equal(t, "5s", cfg.Shell.Timeout)
	require.True(t, cfg.Shell.NonRoot)
	require.True(t, cfg.Shell.RedirectStderr)
	require.Equal(t, []string{"export LC_ALL=C"}, cfg.Shell.Initializers)

	b := cfg.Builder()
	require.Equal(t, shell.FlagNonRootShell|shell.FlagRedirectStderr, b.Flags())
}

func TestLoadConfig_Empty(t *testing.T) {
	cfg, err := model.LoadConfig(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, model.DefaultConfig(), cfg)
	require.Equal(t, shell.DefaultTimeout.String(), cfg.Shell.Timeout)
	require.Equal(t, shell.Flag(0), cfg.Builder().Flags())
}

func TestLoadConfig_Fail(t *testing.T) {
	t.Parallel()

	type then struct {
		is  error
		msg string
	}

	var testCases = []struct {
		scenario string
		given    string
		then     then
	}{
		{
			"unknown field",
			"version: 0\nservice:\n  mode: manual\n",
			then{model.ErrInvalidConfig, "field service not found"},
		},
		{
			"version",
			"version: 1\n",
			then{model.ErrUnsupportedVersion, "version 1, expected 0"},
		},
		{
			"timeout",
			"shell:\n  timeout: soon\n",
			then{model.ErrInvalidConfig, "shell.timeout"},
		},
		{
			"negative timeout",
			"shell:\n  timeout: -1s\n",
			then{model.ErrInvalidConfig, "must be positive"},
		},
		{
			"exclusive flags",
			"shell:\n  non_root: true\n  mount_master: true\n",
			then{model.ErrInvalidConfig, "exclusive"},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			_, err := model.LoadConfig(strings.NewReader(tt.given))
			require.Error(t, err)
			require.ErrorIs(t, err, tt.then.is)
			require.ErrorContains(t, err, tt.then.msg)
		})
	}
}

func TestConfigBuilder(t *testing.T) {
	t.Parallel()
	cfg := model.DefaultConfig()
	cfg.Shell.MountMaster = true
	cfg.Shell.Timeout = "250ms"
	require.NoError(t, cfg.Validate())
	require.Equal(t, shell.FlagMountMaster, cfg.Builder().Flags())

	d, err := time.ParseDuration(cfg.Shell.Timeout)
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, d)
}
