// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MinWriteInterval is the shortest allowed time between recorded rows
const MinWriteInterval = 10 * time.Millisecond

// EnvPrefix prefixes every environment override, e.g. MYO_RECORDER_DEVICE_PORT
const EnvPrefix = "MYO_RECORDER"

// Config represents the application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Device      DeviceConfig      `mapstructure:"device"`
	Acquisition AcquisitionConfig `mapstructure:"acquisition"`
	Recording   RecordingConfig   `mapstructure:"recording"`
	Server      ServerConfig      `mapstructure:"server"`
	MQTT        MQTTConfig        `mapstructure:"mqtt"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// DeviceConfig represents the armband and dongle configuration
type DeviceConfig struct {
	Kind           string          `mapstructure:"kind"`
	Identity       string          `mapstructure:"identity"`
	Port           string          `mapstructure:"port"`
	BaudRate       int             `mapstructure:"baud_rate"`
	ReadTimeout    time.Duration   `mapstructure:"read_timeout"`
	ConnectTimeout time.Duration   `mapstructure:"connect_timeout"`
	Simulated      SimulatedConfig `mapstructure:"simulated"`
}

// SimulatedConfig tunes the synthetic device
type SimulatedConfig struct {
	EMGRate   int           `mapstructure:"emg_rate"`
	IMURate   int           `mapstructure:"imu_rate"`
	DropAfter time.Duration `mapstructure:"drop_after"`
}

// AcquisitionConfig represents the acquisition loop timing
type AcquisitionConfig struct {
	WriteInterval        time.Duration `mapstructure:"write_interval"`
	IdleDelay            time.Duration `mapstructure:"idle_delay"`
	WatchdogTimeout      time.Duration `mapstructure:"watchdog_timeout"`
	FaultCooldown        time.Duration `mapstructure:"fault_cooldown"`
	ReconnectCooldown    time.Duration `mapstructure:"reconnect_cooldown"`
	CooldownMultiplier   float64       `mapstructure:"cooldown_multiplier"`
	MaxCooldown          time.Duration `mapstructure:"max_cooldown"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	ReconnectDelay       time.Duration `mapstructure:"reconnect_delay"`
	ReconnectSettle      time.Duration `mapstructure:"reconnect_settle"`
	MaxOuterRetries      int           `mapstructure:"max_outer_retries"`
}

// RecordingConfig represents recording file configuration
type RecordingConfig struct {
	FilePrefix   string        `mapstructure:"file_prefix"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
}

// ServerConfig represents the optional local status API
type ServerConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MQTTConfig represents the optional lifecycle event publisher
type MQTTConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Broker         string        `mapstructure:"broker"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password" json:"-"`
	TopicPrefix    string        `mapstructure:"topic_prefix"`
	QoS            byte          `mapstructure:"qos"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// New returns a viper instance with defaults, environment binding and
// config search paths applied
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "myo-recorder"))
	}
	v.AddConfigPath("/etc/myo-recorder")

	// Environment variable support
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
	return v
}

// Load reads configuration from configFile, or from the search paths when
// configFile is empty. A missing config file is not an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "myo-recorder")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Device defaults
	v.SetDefault("device.kind", "myo")
	v.SetDefault("device.identity", "")
	v.SetDefault("device.port", "/dev/ttyACM0")
	v.SetDefault("device.baud_rate", 115200)
	v.SetDefault("device.read_timeout", "10ms")
	v.SetDefault("device.connect_timeout", "30s")
	v.SetDefault("device.simulated.emg_rate", 200)
	v.SetDefault("device.simulated.imu_rate", 50)
	v.SetDefault("device.simulated.drop_after", "0s")

	// Acquisition defaults
	v.SetDefault("acquisition.write_interval", "10ms")
	v.SetDefault("acquisition.idle_delay", "1ms")
	v.SetDefault("acquisition.watchdog_timeout", "60s")
	v.SetDefault("acquisition.fault_cooldown", "5s")
	v.SetDefault("acquisition.reconnect_cooldown", "30s")
	v.SetDefault("acquisition.cooldown_multiplier", 1.0)
	v.SetDefault("acquisition.max_cooldown", "30s")
	v.SetDefault("acquisition.max_reconnect_attempts", 5)
	v.SetDefault("acquisition.reconnect_delay", "10s")
	v.SetDefault("acquisition.reconnect_settle", "1s")
	v.SetDefault("acquisition.max_outer_retries", 0)

	// Recording defaults
	v.SetDefault("recording.file_prefix", "myo_data")
	v.SetDefault("recording.sync_interval", "1s")

	// Server defaults
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8085)
	v.SetDefault("server.allowed_origins", []string{})

	// MQTT defaults
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "myo-recorder")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", "myo/events")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.connect_timeout", "10s")
}

// validate validates the configuration
func validate(config *Config) error {
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	validFormats := []string{"json", "console"}
	if !contains(validFormats, config.Logging.Format) {
		return fmt.Errorf("logging.format must be one of: %v", validFormats)
	}

	validKinds := []string{"myo", "simulated"}
	if !contains(validKinds, config.Device.Kind) {
		return fmt.Errorf("device.kind must be one of: %v", validKinds)
	}

	if config.Device.Port == "" {
		return fmt.Errorf("device.port is required")
	}
	if config.Device.BaudRate <= 0 {
		return fmt.Errorf("device.baud_rate must be positive")
	}

	positive := map[string]time.Duration{
		"device.read_timeout":            config.Device.ReadTimeout,
		"device.connect_timeout":         config.Device.ConnectTimeout,
		"acquisition.write_interval":     config.Acquisition.WriteInterval,
		"acquisition.watchdog_timeout":   config.Acquisition.WatchdogTimeout,
		"acquisition.fault_cooldown":     config.Acquisition.FaultCooldown,
		"acquisition.reconnect_cooldown": config.Acquisition.ReconnectCooldown,
		"acquisition.reconnect_delay":    config.Acquisition.ReconnectDelay,
	}
	for key, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}

	if config.Acquisition.WriteInterval < MinWriteInterval {
		return fmt.Errorf("acquisition.write_interval must be at least %s", MinWriteInterval)
	}
	if config.Acquisition.IdleDelay < 0 || config.Acquisition.ReconnectSettle < 0 {
		return fmt.Errorf("acquisition delays must not be negative")
	}
	if config.Acquisition.MaxReconnectAttempts < 1 {
		return fmt.Errorf("acquisition.max_reconnect_attempts must be at least 1")
	}
	if config.Acquisition.CooldownMultiplier < 1 {
		return fmt.Errorf("acquisition.cooldown_multiplier must be at least 1")
	}
	if config.Acquisition.MaxCooldown < config.Acquisition.ReconnectCooldown {
		return fmt.Errorf("acquisition.max_cooldown must not be below acquisition.reconnect_cooldown")
	}
	if config.Acquisition.MaxOuterRetries < 0 {
		return fmt.Errorf("acquisition.max_outer_retries must not be negative")
	}

	if config.Server.Enabled && (config.Server.Port <= 0 || config.Server.Port > 65535) {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if config.MQTT.Enabled {
		if config.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if config.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	}

	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// GetServerAddr returns the status API address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.Logging.Level == "debug"
}
