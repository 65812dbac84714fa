package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// LoadEnvFile reads KEY=value pairs from DIRSCRAPE_ENV_FILE (default ".env")
// into the process environment before Load runs. Variables already present
// in the environment are not overridden, and a missing file is ignored.
func LoadEnvFile() error {
	path := envOr("DIRSCRAPE_ENV_FILE", ".env")
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
