package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
	Sources  SourcesConfig  `toml:"sources"`
	Install  InstallConfig  `toml:"install"`
	Deploy   DeployConfig   `toml:"deploy"`
	Log      LogConfig      `toml:"log"`

	// Runtime values (not from TOML)
	Stack string `toml:"-"`
}

type DefaultsConfig struct {
	RuntimeVersion    string `toml:"runtime_version"`
	ServerVersion     string `toml:"server_version"`
	ServerConstraint  string `toml:"server_constraint"`
	RuntimeConstraint string `toml:"runtime_constraint"`
}

// SourcesConfig holds download URL templates. {version} and {stack} are
// substituted; a checksum suffix of "" disables checksum lookup.
type SourcesConfig struct {
	ServerURL       string `toml:"server_url"`
	ServerChecksum  string `toml:"server_checksum_suffix"`
	RuntimeURL      string `toml:"runtime_url"`
	RuntimeChecksum string `toml:"runtime_checksum_suffix"`
}

type InstallConfig struct {
	// Relative to the build dir.
	ServerDir  string `toml:"server_dir"`
	RuntimeDir string `toml:"runtime_dir"`
	ProfileDir string `toml:"profile_dir"`
	StateDir   string `toml:"state_dir"`
}

type DeployConfig struct {
	WarGlobs []string `toml:"war_globs"`
}

type LogConfig struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	StreamURL string `toml:"stream_url"`
}

func Default() *Config {
	stack := os.Getenv("STACK")
	if stack == "" {
		stack = "heroku-18"
	}
	return &Config{
		Stack: stack,
		Defaults: DefaultsConfig{
			RuntimeVersion:   "1.8",
			ServerVersion:    "16.0.0.Final",
			ServerConstraint: ">= 8.0",
		},
		Sources: SourcesConfig{
			ServerURL:       "https://download.jboss.org/wildfly/{version}/wildfly-{version}.tar.gz",
			ServerChecksum:  ".sha1",
			RuntimeURL:      "https://lang-jvm.s3.amazonaws.com/jdk/{stack}/openjdk{version}.tar.gz",
			RuntimeChecksum: "",
		},
		Install: InstallConfig{
			ServerDir:  ".jboss/wildfly",
			RuntimeDir: ".jdk",
			ProfileDir: ".profile.d",
			StateDir:   ".wfpack",
		},
		Deploy: DeployConfig{
			WarGlobs: []string{"target/*.war"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Sources.ServerURL == "" {
		return fmt.Errorf("config: sources.server_url is required")
	}
	if c.Sources.RuntimeURL == "" {
		return fmt.Errorf("config: sources.runtime_url is required")
	}
	if c.Install.ServerDir == "" || c.Install.RuntimeDir == "" {
		return fmt.Errorf("config: install.server_dir and install.runtime_dir are required")
	}
	if len(c.Deploy.WarGlobs) == 0 {
		return fmt.Errorf("config: deploy.war_globs must not be empty")
	}
	return nil
}
