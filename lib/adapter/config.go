package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

// --------------------------------------------------------------------------
// Property Keys
// --------------------------------------------------------------------------

// Recognized keys of the harness property map.
const (
	PropURL           = "url"
	PropUser          = "database-user"
	PropPassword      = "database-password"
	PropFreshDatabase = "fresh-database"

	PropPoolCapacity        = "pool-capacity"
	PropBootstrapMaxRetries = "bootstrap-max-retries"
	PropBootstrapBackoffMS  = "bootstrap-backoff-ms"
)

// Defaults.
const (
	defaultUser     = "admin"
	defaultPassword = "admin"

	defaultPoolCapacity        = 64
	defaultBootstrapMaxRetries = 50
	defaultBootstrapBackoff    = 100 * time.Millisecond

	// Fallback targets when no temp directory is available.
	fallbackURLWindows = "plocal:C:/temp/databases/ycsb"
	fallbackURLUnix    = "plocal:/temp/databases/ycsb"
)

// --------------------------------------------------------------------------
// Resolved Configuration
// --------------------------------------------------------------------------

// Config is the resolved, immutable startup configuration of one binding.
type Config struct {
	URL           string
	User          string
	Password      string
	FreshDatabase bool

	PoolCapacity        int
	BootstrapMaxRetries int           // 0 = retry without ceiling
	BootstrapBackoff    time.Duration // wait between schema retry attempts
}

// ResolveConfig derives a Config from the harness property map, applying
// platform defaults for everything not explicitly set. It is a pure
// derivation with no side effects; it fails only on values that are set
// but unparsable.
func ResolveConfig(props map[string]string) (Config, error) {
	cfg := Config{
		URL:                 defaultURL(),
		User:                defaultUser,
		Password:            defaultPassword,
		PoolCapacity:        defaultPoolCapacity,
		BootstrapMaxRetries: defaultBootstrapMaxRetries,
		BootstrapBackoff:    defaultBootstrapBackoff,
	}

	if v, ok := props[PropURL]; ok && v != "" {
		cfg.URL = v
	}
	if v, ok := props[PropUser]; ok && v != "" {
		cfg.User = v
	}
	if v, ok := props[PropPassword]; ok && v != "" {
		cfg.Password = v
	}
	if v, ok := props[PropFreshDatabase]; ok {
		// Lenient boolean parsing: anything that is not "true" is false.
		b, err := strconv.ParseBool(v)
		cfg.FreshDatabase = err == nil && b
	}

	if v, ok := props[PropPoolCapacity]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("adapter: invalid %s value %q", PropPoolCapacity, v)
		}
		cfg.PoolCapacity = n
	}
	if v, ok := props[PropBootstrapMaxRetries]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("adapter: invalid %s value %q", PropBootstrapMaxRetries, v)
		}
		cfg.BootstrapMaxRetries = n
	}
	if v, ok := props[PropBootstrapBackoffMS]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("adapter: invalid %s value %q", PropBootstrapBackoffMS, v)
		}
		cfg.BootstrapBackoff = time.Duration(n) * time.Millisecond
	}

	return cfg, nil
}

// defaultURL places the embedded database under the platform temp
// directory, falling back to a fixed per-platform path when none is
// available.
func defaultURL() string {
	if tmp := os.TempDir(); tmp != "" {
		return "plocal:" + filepath.Join(tmp, "databases", "ycsb")
	}
	if runtime.GOOS == "windows" {
		return fallbackURLWindows
	}
	return fallbackURLUnix
}
