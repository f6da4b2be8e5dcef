package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none is
// given) into the process environment. Missing files are ignored; variables
// already set win over the file.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// EnvString returns the trimmed value of key and whether it was set.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

// EnvDuration parses key with time.ParseDuration.
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return d, true, nil
}

// ApplyEnv overlays KABUM_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	if v, ok := EnvString("KABUM_BASE_URL"); ok {
		c.BaseURL = v
	}
	if v, ok := EnvString("KABUM_USER_AGENT"); ok {
		c.UserAgent = v
	}
	if v, ok := EnvString("KABUM_OUTPUT_DIR"); ok {
		c.OutputDir = v
	}
	if v, ok := EnvString("KABUM_DUMP_DIR"); ok {
		c.DumpDir = v
	}
	if v, ok := EnvString("KABUM_FORMAT"); ok {
		c.OutputFormat = strings.ToLower(v)
	}
	if v, ok := EnvString("KABUM_METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}

	if v, ok, err := EnvInt("KABUM_PAGE_SIZE"); err != nil {
		return err
	} else if ok {
		c.PageSize = v
	}
	if v, ok, err := EnvDuration("KABUM_DELAY"); err != nil {
		return err
	} else if ok {
		c.Delay = v
	}
	if v, ok, err := EnvDuration("KABUM_TIMEOUT"); err != nil {
		return err
	} else if ok {
		c.Timeout = v
	}
	return nil
}
