package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/slok/fxtask/internal/conventions"
)

// EnvFileEnvar selects an extra env file that overrides the default one.
const EnvFileEnvar = conventions.EnvPrefix + "ENV_FILE"

// LoadEnv loads the `.env` file of the working directory (if any) and then the file set
// on FXTASK_ENV_FILE, overriding the previous values. Already set environment
// variables are kept for the default file.
func LoadEnv() error {
	return loadEnvFiles(conventions.EnvFile, os.Getenv(EnvFileEnvar))
}

func loadEnvFiles(defaultFile, overrideFile string) error {
	if err := godotenv.Load(defaultFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("could not load %s: %w", defaultFile, err)
	}

	if overrideFile == "" {
		return nil
	}
	if err := godotenv.Overload(overrideFile); err != nil {
		return fmt.Errorf("could not load %s: %w", overrideFile, err)
	}

	return nil
}
