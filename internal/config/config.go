// Package config loads runtime configuration from config.yml, environment
// variables (VIGIL_ prefix), and defaults. Every threshold constant, the
// cooldown window, and the polling intervals are configurable without code
// changes.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"vigil/internal/alert"
)

// Config holds runtime configuration for the engine.
type Config struct {
	LogLevel string
	HTTPAddr string

	Bus   BusConfig
	File  FileConfig
	Store StoreConfig

	Cooldown   time.Duration
	Thresholds alert.Thresholds

	Audio AudioConfig
}

// BusConfig configures the broker subscription.
type BusConfig struct {
	Brokers    []string
	GroupID    string
	Topics     map[string]string // topic -> sensor kind
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// FileConfig configures the polling file reader.
type FileConfig struct {
	Path     string
	Interval time.Duration
	Watch    bool
}

// StoreConfig configures the polling store reader. An empty DSN disables it.
type StoreConfig struct {
	Driver   string
	DSN      string
	Interval time.Duration
}

// AudioConfig configures the notification action player.
type AudioConfig struct {
	Enabled bool
	Command string
	Args    []string
	Timeout time.Duration
}

// Load reads configuration from the given file, falling back to search paths
// and defaults when path is empty.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/vigil")
	}
	v.SetEnvPrefix("VIGIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{
		LogLevel: v.GetString("log_level"),
		HTTPAddr: v.GetString("http_addr"),
		Bus: BusConfig{
			Brokers:    v.GetStringSlice("bus.brokers"),
			GroupID:    v.GetString("bus.group_id"),
			Topics:     v.GetStringMapString("bus.topics"),
			MinBackoff: v.GetDuration("bus.min_backoff"),
			MaxBackoff: v.GetDuration("bus.max_backoff"),
		},
		File: FileConfig{
			Path:     v.GetString("file.path"),
			Interval: v.GetDuration("file.interval"),
			Watch:    v.GetBool("file.watch"),
		},
		Store: StoreConfig{
			Driver:   v.GetString("store.driver"),
			DSN:      v.GetString("store.dsn"),
			Interval: v.GetDuration("store.interval"),
		},
		Cooldown: v.GetDuration("alerts.cooldown"),
		Thresholds: alert.Thresholds{
			TempHigh:        v.GetFloat64("alerts.temp_high"),
			TempLow:         v.GetFloat64("alerts.temp_low"),
			HeartRateHigh:   v.GetFloat64("alerts.heart_rate_high"),
			HeartRateLow:    v.GetFloat64("alerts.heart_rate_low"),
			AlcoholDetected: v.GetFloat64("alerts.alcohol_detected"),
			MotionMagnitude: v.GetFloat64("alerts.motion_magnitude"),
		},
		Audio: AudioConfig{
			Enabled: v.GetBool("audio.enabled"),
			Command: v.GetString("audio.command"),
			Args:    v.GetStringSlice("audio.args"),
			Timeout: v.GetDuration("audio.timeout"),
		},
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := alert.DefaultThresholds()

	v.SetDefault("log_level", "info")
	v.SetDefault("http_addr", ":8080")

	v.SetDefault("bus.brokers", []string{"localhost:9092"})
	v.SetDefault("bus.group_id", "vigil")
	v.SetDefault("bus.topics", map[string]string{
		"botibot/temp":         "temperature",
		"botibot/bpm":          "heart_rate",
		"botibot/alcohol":      "alcohol",
		"botibot/gyro":         "motion_magnitude",
		"botibot/accel":        "motion_magnitude",
		"botibot/distance":     "distance",
		"botibot/weight_value": "weight",
	})
	v.SetDefault("bus.min_backoff", time.Second)
	v.SetDefault("bus.max_backoff", time.Minute)

	v.SetDefault("file.path", "/var/lib/vigil/mqtt_data.json")
	v.SetDefault("file.interval", time.Second)
	v.SetDefault("file.watch", true)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.interval", 2*time.Second)

	v.SetDefault("alerts.cooldown", alert.DefaultCooldown)
	v.SetDefault("alerts.temp_high", def.TempHigh)
	v.SetDefault("alerts.temp_low", def.TempLow)
	v.SetDefault("alerts.heart_rate_high", def.HeartRateHigh)
	v.SetDefault("alerts.heart_rate_low", def.HeartRateLow)
	v.SetDefault("alerts.alcohol_detected", def.AlcoholDetected)
	v.SetDefault("alerts.motion_magnitude", def.MotionMagnitude)

	v.SetDefault("audio.enabled", false)
	v.SetDefault("audio.command", "aplay")
	v.SetDefault("audio.args", []string{"/usr/share/vigil/sounds/{cue}.wav"})
	v.SetDefault("audio.timeout", 30*time.Second)
}
