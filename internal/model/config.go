package model

import (
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/CZERTAINLY/rootshell/internal/shell"
)

// Config is the rootsh configuration file.
type Config struct {
	Version int   `yaml:"version"` // fixed 0 for now
	Verbose bool  `yaml:"verbose,omitempty"`
	Shell   Shell `yaml:"shell"`
}

// Shell configures how the main shell is built.
type Shell struct {
	Commands       []string `yaml:"commands,omitempty"` // empty => su --mount-master, su, sh
	Timeout        string   `yaml:"timeout,omitempty"`  // e.g. "20s"
	NonRoot        bool     `yaml:"non_root,omitempty"`
	MountMaster    bool     `yaml:"mount_master,omitempty"`
	RedirectStderr bool     `yaml:"redirect_stderr,omitempty"`
	Initializers   []string `yaml:"initializers,omitempty"` // commands run in every new shell
}

func DefaultConfig() Config {
	return Config{
		Version: 0,
		Shell: Shell{
			Timeout: shell.DefaultTimeout.String(),
		},
	}
}

// LoadConfig decodes YAML from r, unknown fields are rejected.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Version != 0 {
		return fmt.Errorf("%w: version %d, expected 0", ErrUnsupportedVersion, c.Version)
	}
	if c.Shell.NonRoot && c.Shell.MountMaster {
		return fmt.Errorf("%w: shell.non_root and shell.mount_master are exclusive", ErrInvalidConfig)
	}
	if _, err := c.Shell.timeout(); err != nil {
		return err
	}
	return nil
}

func (s Shell) timeout() (time.Duration, error) {
	if s.Timeout == "" {
		return shell.DefaultTimeout, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("%w: shell.timeout: %w", ErrInvalidConfig, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: shell.timeout must be positive, got %s", ErrInvalidConfig, s.Timeout)
	}
	return d, nil
}

// Builder maps the configuration to a shell builder.
func (c Config) Builder() *shell.Builder {
	var flags shell.Flag
	if c.Shell.NonRoot {
		flags |= shell.FlagNonRootShell
	}
	if c.Shell.MountMaster {
		flags |= shell.FlagMountMaster
	}
	if c.Shell.RedirectStderr {
		flags |= shell.FlagRedirectStderr
	}
	timeout, err := c.Shell.timeout()
	if err != nil {
		timeout = shell.DefaultTimeout
	}

	b := shell.NewBuilder().
		SetFlags(flags).
		SetTimeout(timeout)
	if len(c.Shell.Commands) > 0 {
		b.SetCommands(c.Shell.Commands...)
	}
	if len(c.Shell.Initializers) > 0 {
		b.SetInitializers(shell.CommandInitializer(c.Shell.Initializers...))
	}
	return b
}
