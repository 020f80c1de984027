package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"healthrisk/internal/common"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	ModelDir         string
	DataPath         string // empty disables the model catalog store
	Port             int
	LogLevel         string
	Environment      string
	ServiceName      string
	PythonPath       string
	InferenceTimeout time.Duration
	AllowedOrigins   []string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	ShutdownTimeout  time.Duration
}

type ConfigFile struct {
	Models struct {
		Dir              string `yaml:"dir"`
		PythonPath       string `yaml:"pythonPath"`
		InferenceTimeout string `yaml:"inferenceTimeout"`
	} `yaml:"models"`

	Server struct {
		Port            int      `yaml:"port"`
		AllowedOrigins  []string `yaml:"allowedOrigins"`
		ReadTimeout     string   `yaml:"readTimeout"`
		WriteTimeout    string   `yaml:"writeTimeout"`
		ShutdownTimeout string   `yaml:"shutdownTimeout"`
	} `yaml:"server"`

	System struct {
		DataPath    string `yaml:"dataPath"`
		LogLevel    string `yaml:"logLevel"`
		Environment string `yaml:"environment"`
		ServiceName string `yaml:"serviceName"`
	} `yaml:"system"`
}

// Load reads settings from the YAML file named by CONFIG_FILE, or from the
// environment alone when it is unset.
func Load() (Settings, error) {
	return LoadFile(os.Getenv(common.EnvConfigFile))
}

// LoadFile reads settings from path. An empty path means environment only.
// Environment variables always override file values.
func LoadFile(path string) (Settings, error) {
	if path != "" {
		return loadFromYAML(path)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	settings := Settings{
		ModelDir:         getEnvOrDefault(common.EnvModelDir, orString(config.Models.Dir, common.DefaultModelDir)),
		DataPath:         getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		Port:             getIntOrDefault(common.EnvPort, orInt(config.Server.Port, common.DefaultPort)),
		LogLevel:         getEnvOrDefault(common.EnvLogLevel, orString(config.System.LogLevel, common.DefaultLogLevel)),
		Environment:      getEnvOrDefault(common.EnvAppEnv, orString(config.System.Environment, common.DefaultEnvironment)),
		ServiceName:      getEnvOrDefault(common.EnvServiceName, orString(config.System.ServiceName, common.DefaultServiceName)),
		PythonPath:       getEnvOrDefault(common.EnvPythonPath, config.Models.PythonPath),
		InferenceTimeout: getDurationOrDefault(common.EnvInferenceTimeout, parseDurationOr(config.Models.InferenceTimeout, common.DefaultInferenceTimeout)),
		AllowedOrigins:   getOriginsFromEnvOrConfig(config.Server.AllowedOrigins),
		ReadTimeout:      getDurationOrDefault(common.EnvReadTimeout, parseDurationOr(config.Server.ReadTimeout, common.DefaultHTTPTimeout)),
		WriteTimeout:     getDurationOrDefault(common.EnvWriteTimeout, parseDurationOr(config.Server.WriteTimeout, common.DefaultHTTPTimeout)),
		ShutdownTimeout:  getDurationOrDefault(common.EnvShutdownTimeout, parseDurationOr(config.Server.ShutdownTimeout, common.DefaultShutdownTimeout)),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ModelDir:         getEnvOrDefault(common.EnvModelDir, common.DefaultModelDir),
		DataPath:         os.Getenv(common.EnvDataPath), // optional
		Port:             getIntOrDefault(common.EnvPort, common.DefaultPort),
		LogLevel:         getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		Environment:      getEnvOrDefault(common.EnvAppEnv, common.DefaultEnvironment),
		ServiceName:      getEnvOrDefault(common.EnvServiceName, common.DefaultServiceName),
		PythonPath:       os.Getenv(common.EnvPythonPath), // auto-detected when empty
		InferenceTimeout: getDurationOrDefault(common.EnvInferenceTimeout, common.DefaultInferenceTimeout),
		AllowedOrigins:   splitOrDefault(os.Getenv(common.EnvAllowedOrigins), []string{common.DefaultAllowedOrigins}),
		ReadTimeout:      getDurationOrDefault(common.EnvReadTimeout, common.DefaultHTTPTimeout),
		WriteTimeout:     getDurationOrDefault(common.EnvWriteTimeout, common.DefaultHTTPTimeout),
		ShutdownTimeout:  getDurationOrDefault(common.EnvShutdownTimeout, common.DefaultShutdownTimeout),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// Addr is the listen address for the HTTP server.
func (s *Settings) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}

// IsDevelopment reports whether human-readable logging should be used.
func (s *Settings) IsDevelopment() bool {
	return s.Environment == common.EnvironmentDevelopment
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func splitOrDefault(v string, def []string) []string {
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func getOriginsFromEnvOrConfig(configOrigins []string) []string {
	if env := os.Getenv(common.EnvAllowedOrigins); env != "" {
		return splitOrDefault(env, []string{common.DefaultAllowedOrigins})
	}
	if len(configOrigins) > 0 {
		return configOrigins
	}
	return []string{common.DefaultAllowedOrigins}
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func parseDurationOr(v string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}

// validateSettings performs validation of configuration values
func validateSettings(settings *Settings) error {
	if strings.TrimSpace(settings.ModelDir) == "" {
		return fmt.Errorf("model directory cannot be empty")
	}

	if settings.Port < common.MinPort || settings.Port > common.MaxPort {
		return fmt.Errorf("port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.Port)
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(settings.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q", settings.LogLevel)
	}

	switch settings.Environment {
	case common.EnvironmentDevelopment, common.EnvironmentProduction, common.EnvironmentTest:
	default:
		return fmt.Errorf("environment must be one of %s, %s or %s, got %q",
			common.EnvironmentDevelopment, common.EnvironmentProduction, common.EnvironmentTest, settings.Environment)
	}

	if settings.ServiceName == "" {
		return fmt.Errorf("service name cannot be empty")
	}

	// Validate time durations
	if settings.InferenceTimeout < 100*time.Millisecond || settings.InferenceTimeout > time.Minute {
		return fmt.Errorf("inference timeout must be between 100ms and 1m, got %v", settings.InferenceTimeout)
	}
	if settings.ReadTimeout < time.Second || settings.ReadTimeout > 5*time.Minute {
		return fmt.Errorf("read timeout must be between 1s and 5m, got %v", settings.ReadTimeout)
	}
	if settings.WriteTimeout < time.Second || settings.WriteTimeout > 5*time.Minute {
		return fmt.Errorf("write timeout must be between 1s and 5m, got %v", settings.WriteTimeout)
	}
	if settings.ShutdownTimeout < time.Second || settings.ShutdownTimeout > 5*time.Minute {
		return fmt.Errorf("shutdown timeout must be between 1s and 5m, got %v", settings.ShutdownTimeout)
	}

	if len(settings.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	return nil
}
