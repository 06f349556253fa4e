// Package felconfig loads FEL session defaults from a ".env" file and
// environment variables, the same two-tier precedence the teacher's device
// config used: environment variables win, the .env file fills in the rest.
package felconfig

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the defaults OpenSession and the CLI front ends fall back to
// when a flag isn't given explicitly.
type Config struct {
	Bus     int // -1 means "discover by VID/PID"
	Device  int
	Timeout time.Duration
	Verbose bool
}

var (
	loaded  *Config
	didLoad bool
)

// Load reads FEL_BUS/FEL_DEVICE/FEL_TIMEOUT/FEL_VERBOSE from .env (if
// present) and the environment, caching the result for the process
// lifetime. Missing values keep their defaults (Bus/Device -1, Timeout 0
// meaning "use the package default").
func Load() (*Config, error) {
	if didLoad {
		return loaded, nil
	}

	cfg := &Config{Bus: -1, Device: -1}

	root := findProjectRoot()
	if data, err := os.ReadFile(filepath.Join(root, ".env")); err == nil {
		parseEnvFile(string(data), cfg)
	}

	if v := os.Getenv("FEL_BUS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bus = n
		}
	}
	if v := os.Getenv("FEL_DEVICE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Device = n
		}
	}
	if v := os.Getenv("FEL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = d
		}
	}
	if v := os.Getenv("FEL_VERBOSE"); v != "" {
		cfg.Verbose = v == "1" || strings.EqualFold(v, "true")
	}

	loaded = cfg
	didLoad = true
	return cfg, nil
}

func parseEnvFile(content string, cfg *Config) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "FEL_BUS":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.Bus = n
			}
		case "FEL_DEVICE":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.Device = n
			}
		case "FEL_TIMEOUT":
			if d, err := time.ParseDuration(value); err == nil {
				cfg.Timeout = d
			}
		case "FEL_VERBOSE":
			cfg.Verbose = value == "1" || strings.EqualFold(value, "true")
		}
	}
}

func findProjectRoot() string {
	cwd, _ := os.Getwd()
	if _, err := os.Stat(filepath.Join(cwd, ".env")); err == nil {
		return cwd
	}
	for {
		if _, err := os.Stat(filepath.Join(cwd, "go.mod")); err == nil {
			return cwd
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return cwd
		}
		cwd = parent
	}
}
