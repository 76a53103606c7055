package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default fxtask data directory name (relative to home).
	DefaultDataDir = ".fxtask"
	// DBFile is the task history SQLite filename.
	DBFile = "fxtask.db"
	// EnvFile is the dotenv file loaded from the working directory.
	EnvFile = ".env"

	// DefaultMaxImageDimension is the longest side uploaded images are downscaled to.
	DefaultMaxImageDimension = 2048

	// EnvPrefix is the prefix of the environment variables that configure the CLI flags.
	EnvPrefix = "FXTASK_"
)

// DataDir returns the fxtask data directory for a home directory.
func DataDir(homeDir string) string {
	return filepath.Join(homeDir, DefaultDataDir)
}

// DBPath returns the default task history database path for a home directory.
func DBPath(homeDir string) string {
	return filepath.Join(DataDir(homeDir), DBFile)
}
