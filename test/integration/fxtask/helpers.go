package fxtask

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/slok/fxtask/test/integration/testutils"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Binary string
	// APIURL is the effects backend, when empty the fake backend is used.
	APIURL   string
	APIToken string
	// EffectID and ImageURL are the effect applied against a real backend.
	EffectID string
	ImageURL string
}

func (c *Config) defaults() error {
	if c.Binary == "" {
		c.Binary = "fxtask"
	}

	// go test changes the CWD to the test package directory.
	if !filepath.IsAbs(c.Binary) {
		return fmt.Errorf("FXTASK_INTEGRATION_BINARY must be an absolute path, got %q", c.Binary)
	}
	if _, err := os.Stat(c.Binary); err != nil {
		return fmt.Errorf("fxtask binary not found at %q: %w", c.Binary, err)
	}

	if c.APIURL != "" && (c.EffectID == "" || c.ImageURL == "") {
		return fmt.Errorf("effect and image are required with a real backend (FXTASK_INTEGRATION_EFFECT_ID, FXTASK_INTEGRATION_IMAGE_URL)")
	}
	if c.EffectID == "" {
		c.EffectID = "cartoonify"
	}
	if c.ImageURL == "" {
		c.ImageURL = "https://cdn.example.com/me.png"
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the config is invalid or the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "FXTASK_INTEGRATION"
		envBinary     = "FXTASK_INTEGRATION_BINARY"
		envAPIURL     = "FXTASK_INTEGRATION_API_URL"
		envAPIToken   = "FXTASK_INTEGRATION_API_TOKEN"
		envEffectID   = "FXTASK_INTEGRATION_EFFECT_ID"
		envImageURL   = "FXTASK_INTEGRATION_IMAGE_URL"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{
		Binary:   os.Getenv(envBinary),
		APIURL:   os.Getenv(envAPIURL),
		APIToken: os.Getenv(envAPIToken),
		EffectID: os.Getenv(envEffectID),
		ImageURL: os.Getenv(envImageURL),
	}

	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// Env returns the environment that points the binary to the configured backend and history.
func (c Config) Env(dbPath string) []string {
	env := []string{"FXTASK_DB_PATH=" + dbPath}
	if c.APIURL == "" {
		return append(env, "FXTASK_BACKEND=fake", "FXTASK_POLL_INTERVAL=10ms")
	}

	return append(env,
		"FXTASK_BACKEND=api",
		"FXTASK_POLL_INTERVAL=2s",
		"FXTASK_API_URL="+c.APIURL,
		"FXTASK_API_TOKEN="+c.APIToken,
	)
}

// RunApply applies the effect request file and waits for the task.
func RunApply(ctx context.Context, config Config, dbPath, file string) (stdout, stderr []byte, err error) {
	return testutils.RunFXTaskArgs(ctx, config.Env(dbPath), config.Binary, []string{"apply", "-f", file, "--format", "json"}, true)
}

// RunList lists the task history.
func RunList(ctx context.Context, config Config, dbPath string) (stdout, stderr []byte, err error) {
	return testutils.RunFXTask(ctx, config.Env(dbPath), config.Binary, "list --format json", true)
}

// RunResults fetches the results of a task.
func RunResults(ctx context.Context, config Config, dbPath, taskID string) (stdout, stderr []byte, err error) {
	return testutils.RunFXTaskArgs(ctx, config.Env(dbPath), config.Binary, []string{"results", taskID, "--format", "json"}, true)
}

// RunAck acknowledges a task.
func RunAck(ctx context.Context, config Config, dbPath, taskID string) (stdout, stderr []byte, err error) {
	return testutils.RunFXTaskArgs(ctx, config.Env(dbPath), config.Binary, []string{"ack", taskID}, true)
}
