package lib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	sdklib "github.com/slok/fxtask/pkg/lib"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	APIURL   string
	APIToken string
	EffectID string
	// ImagePath is a local image uploaded as raw bytes.
	ImagePath string
}

func (c *Config) defaults() error {
	if c.APIURL == "" {
		return fmt.Errorf("backend url is required (FXTASK_INTEGRATION_API_URL)")
	}

	if c.EffectID == "" {
		return fmt.Errorf("effect is required (FXTASK_INTEGRATION_EFFECT_ID)")
	}

	if c.ImagePath == "" {
		return fmt.Errorf("image path is required (FXTASK_INTEGRATION_IMAGE_PATH)")
	}
	if _, err := os.Stat(c.ImagePath); err != nil {
		return fmt.Errorf("image not found at %q: %w", c.ImagePath, err)
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "FXTASK_INTEGRATION"
		envAPIURL     = "FXTASK_INTEGRATION_API_URL"
		envAPIToken   = "FXTASK_INTEGRATION_API_TOKEN"
		envEffectID   = "FXTASK_INTEGRATION_EFFECT_ID"
		envImagePath  = "FXTASK_INTEGRATION_IMAGE_PATH"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{
		APIURL:    os.Getenv(envAPIURL),
		APIToken:  os.Getenv(envAPIToken),
		EffectID:  os.Getenv(envEffectID),
		ImagePath: os.Getenv(envImagePath),
	}

	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// EffectRequest returns the configured effect request with the image loaded.
func (c Config) EffectRequest(t *testing.T) sdklib.EffectRequest {
	t.Helper()

	data, err := os.ReadFile(c.ImagePath)
	require.NoError(t, err)

	return sdklib.EffectRequest{
		EffectID: c.EffectID,
		Images: []sdklib.ImagePayload{
			{Param: "image", Data: data, Filename: filepath.Base(c.ImagePath)},
		},
	}
}

// NewTestClient creates an SDK client against the real backend with a temp SQLite DB for test isolation.
func NewTestClient(t *testing.T, config Config) *sdklib.Client {
	t.Helper()

	client, err := sdklib.New(context.Background(), sdklib.Config{
		APIURL:            config.APIURL,
		APIToken:          config.APIToken,
		DBPath:            filepath.Join(t.TempDir(), "test.db"),
		PollInterval:      2 * time.Second,
		MaxImageDimension: 1024,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}
