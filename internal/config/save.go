package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// WriteDefaultConfig writes a starter config file with a commented example
// connection. It refuses to overwrite an existing file.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(Defaults())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	content := append([]byte(defaultHeader), data...)
	if err := os.WriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

const defaultHeader = `# tracq configuration.
#
# Define one profile per tracker under "connections" and pick one with
# "default" or the --connection flag. Example:
#
# default: work
# connections:
#   work:
#     kind: bugzilla
#     base: https://bugs.example.org
#     token: "<api key>"
#     user: me@example.org
#     concurrency: 4
#   oss:
#     kind: github
#     base: https://api.github.com
#     repo: acme/widget
#     token: "<token>"
#
`

// Save writes the full config back to path, preserving nothing but the
// structured content.
func Save(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
