
package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3*time.Second, cfg.DelayDuration())
	assert.Contains(t, cfg.Identity, "Mozilla/5.0")
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"empty source":      func(c *Config) { c.Source = "  " },
		"empty destination": func(c *Config) { c.Destination = "" },
		"negative delay":    func(c *Config) { c.Delay = -1 },
		"nan delay":         func(c *Config) { c.Delay = math.NaN() },
		"zero timeout":      func(c *Config) { c.Timeout = 0 },
		"zero body cap":     func(c *Config) { c.MaxBodyBytes = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}
}

func TestZeroDelayIsValid(t *testing.T) {
	cfg := Default()
	cfg.Delay = 0
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, time.Duration(0), cfg.DelayDuration())

	cfg.Delay = 0.25
	assert.Equal(t, 250*time.Millisecond, cfg.DelayDuration())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OBITFEED_DELAY", "1.5")
	t.Setenv("OBITFEED_IDENTITY", "EnvAgent/2.0")
	t.Setenv("OBITFEED_MAX_BODY_BYTES", "2048")

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, 1.5, cfg.Delay)
	assert.Equal(t, "EnvAgent/2.0", cfg.Identity)
	assert.EqualValues(t, 2048, cfg.MaxBodyBytes)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obitfeed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"source: in.xml\ndestination: out.xml\ndelay: 0\ntimeout: 30s\nreport: run.yaml\n"), 0o600))

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, "in.xml", cfg.Source)
	assert.Equal(t, "out.xml", cfg.Destination)
	assert.Equal(t, 0.0, cfg.Delay)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "run.yaml", cfg.ReportPath)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
