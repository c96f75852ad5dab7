// Package config loads usbhostd's TOML configuration from a platform-appropriate
// search path, following the component-config layout convention used across
// the surrounding tooling.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config holds the tunables that sit outside the Monitor/OS contract:
// log verbosity and destination, the debounce interval override for
// Mode B change notification, and a Monitor device-path override useful
// for pointing the facade at a test double.
type Config struct {
	LogLevel           string `toml:"log_level"`
	LogDir             string `toml:"log_dir"`
	DebounceMillis     int    `toml:"debounce_millis"`
	MonitorDevice      string `toml:"monitor_device"`
	MonitorServiceName string `toml:"monitor_service_name"`
	DisableOSNotify    bool   `toml:"disable_os_notify"`
}

const component = "usbhost"

// Default returns a Config with production defaults; never zero-valued.
func Default() Config {
	return Config{
		LogLevel:           "INFO",
		LogDir:             defaultLogDir(),
		DebounceMillis:     500,
		MonitorDevice:      `\\.\VBoxUSBMon`,
		MonitorServiceName: "VBoxUSBMon",
	}
}

// Load searches the platform search paths for filename and decodes it over
// the defaults. A missing file is not an error: init must never be blocked
// by absent configuration.
func Load(filename string) (Config, error) {
	cfg := Default()

	for _, path := range SearchPaths(filename) {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
		return cfg, nil
	}

	return cfg, nil
}

// SearchPaths returns the ordered list of candidate config file locations:
// the system-wide per-component directory, the user config directory, the
// executable's directory, and finally the working directory.
func SearchPaths(filename string) []string {
	var paths []string

	switch runtime.GOOS {
	case "windows":
		paths = append(paths, filepath.Join(os.Getenv("ProgramData"), "vmbridge", component, filename))
	default:
		paths = append(paths, filepath.Join("/etc/vmbridge", component, filename))
	}

	if home, err := os.UserHomeDir(); err == nil {
		switch runtime.GOOS {
		case "windows":
			paths = append(paths, filepath.Join(home, "AppData", "Local", "vmbridge", component, filename))
		default:
			paths = append(paths, filepath.Join(home, ".config", "vmbridge", component, filename))
		}
	}

	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), filename))
	}

	paths = append(paths, filepath.Join(".", filename))
	return paths
}

func defaultLogDir() string {
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			return filepath.Join(pd, "vmbridge", component, "logs")
		}
	}
	return filepath.Join(os.TempDir(), "vmbridge", component, "logs")
}
