package cli

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"k8s.io/klog/v2"

	"github.com/ditsuke/go-badcurl/badcurl/profiles"
)

// Environment variables supplying defaults for flags left unset.
const (
	EnvImpersonate = "BADCURL_IMPERSONATE"
	EnvProxy       = "BADCURL_PROXY"
	EnvTimeout     = "BADCURL_TIMEOUT"
)

const (
	defaultTimeout = 30 * time.Second
	// noProfile disables impersonation.
	noProfile = "none"
)

var defaultProfile = profiles.Chrome133.String()

// config holds flag defaults resolved from the environment.
type config struct {
	Impersonate string
	Proxy       string
	Timeout     time.Duration
}

// loadConfig reads envFile (when it exists) into the environment without
// overriding variables that are already set, then resolves the defaults.
func loadConfig(envFile string) config {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			klog.Warningf("cli: could not load %s: %v", envFile, err)
		}
	}

	cfg := config{
		Impersonate: defaultProfile,
		Proxy:       os.Getenv(EnvProxy),
		Timeout:     defaultTimeout,
	}
	if v := os.Getenv(EnvImpersonate); v != "" {
		cfg.Impersonate = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			klog.Warningf("cli: ignoring invalid %s %q", EnvTimeout, v)
		} else {
			cfg.Timeout = d
		}
	}
	return cfg
}
