package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// EnvFileVariable overrides the .env file location.
const EnvFileVariable = "PROOFBUILD_ENV_FILE"

// loadEnvFile populates unset environment variables from a .env file. A
// missing file is ignored; variables already set in the process win.
func loadEnvFile() error {
	path := ".env"
	explicit := false
	if value, ok := os.LookupEnv(EnvFileVariable); ok && strings.TrimSpace(value) != "" {
		expanded, err := expandPath(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvFileVariable, err)
		}
		path = expanded
		explicit = true
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func lookupEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
