
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Defaults of the operator form.
const (
	DefaultSource       = "original_feed.xml"
	DefaultDestination  = "updated_feed.xml"
	DefaultDelay        = 3.0
	DefaultIdentity     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"
	DefaultTimeout      = 10 * time.Second
	DefaultDialTimeout  = 5 * time.Second
	DefaultMaxBodyBytes = 5 * 1024 * 1024
	DefaultLogLevel     = "info"
)

// Viper keys. Flags use the same names; env vars are OBITFEED_<KEY> with
// dashes turned into underscores.
const (
	KeySource       = "source"
	KeyDestination  = "destination"
	KeyDelay        = "delay"
	KeyIdentity     = "identity"
	KeyTimeout      = "timeout"
	KeyMaxBodyBytes = "max-body-bytes"
	KeyLogLevel     = "log-level"
	KeyReport       = "report"
	KeyMetricsFile  = "metrics-file"
)

const EnvPrefix = "OBITFEED"

type Config struct {
	Source      string
	Destination string
	// Delay is the pause between entries, in seconds.
	Delay        float64
	Identity     string
	Timeout      time.Duration
	MaxBodyBytes int64
	LogLevel     string
	ReportPath   string
	MetricsPath  string
}

func Default() Config {
	return Config{
		Source:       DefaultSource,
		Destination:  DefaultDestination,
		Delay:        DefaultDelay,
		Identity:     DefaultIdentity,
		Timeout:      DefaultTimeout,
		MaxBodyBytes: DefaultMaxBodyBytes,
		LogLevel:     DefaultLogLevel,
	}
}

// NewViper returns a viper instance with defaults and environment binding
// applied. Callers bind their flags on top.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault(KeySource, d.Source)
	v.SetDefault(KeyDestination, d.Destination)
	v.SetDefault(KeyDelay, d.Delay)
	v.SetDefault(KeyIdentity, d.Identity)
	v.SetDefault(KeyTimeout, d.Timeout)
	v.SetDefault(KeyMaxBodyBytes, d.MaxBodyBytes)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyReport, "")
	v.SetDefault(KeyMetricsFile, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file (YAML) into v and builds a Config.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	cfg := Config{
		Source:       strings.TrimSpace(v.GetString(KeySource)),
		Destination:  strings.TrimSpace(v.GetString(KeyDestination)),
		Delay:        v.GetFloat64(KeyDelay),
		Identity:     strings.TrimSpace(v.GetString(KeyIdentity)),
		Timeout:      v.GetDuration(KeyTimeout),
		MaxBodyBytes: v.GetInt64(KeyMaxBodyBytes),
		LogLevel:     v.GetString(KeyLogLevel),
		ReportPath:   strings.TrimSpace(v.GetString(KeyReport)),
		MetricsPath:  strings.TrimSpace(v.GetString(KeyMetricsFile)),
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Source) == "" {
		errs = append(errs, errors.New("source path is empty"))
	}
	if strings.TrimSpace(c.Destination) == "" {
		errs = append(errs, errors.New("destination path is empty"))
	}
	if c.Delay < 0 || math.IsNaN(c.Delay) || math.IsInf(c.Delay, 0) {
		errs = append(errs, fmt.Errorf("delay must be a non-negative number of seconds, got %v", c.Delay))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("max body bytes must be positive, got %d", c.MaxBodyBytes))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func (c Config) DelayDuration() time.Duration {
	return time.Duration(c.Delay * float64(time.Second))
}
