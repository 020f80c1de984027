package common

import "time"

// Environment variable keys
const (
	EnvConfigFile       = "CONFIG_FILE"
	EnvModelDir         = "MODEL_DIR"
	EnvDataPath         = "DATA_PATH"
	EnvPort             = "PORT"
	EnvLogLevel         = "LOG_LEVEL"
	EnvAppEnv           = "APP_ENV"
	EnvPythonPath       = "PYTHON_PATH"
	EnvInferenceTimeout = "INFERENCE_TIMEOUT"
	EnvAllowedOrigins   = "ALLOWED_ORIGINS"
	EnvReadTimeout      = "READ_TIMEOUT"
	EnvWriteTimeout     = "WRITE_TIMEOUT"
	EnvShutdownTimeout  = "SHUTDOWN_TIMEOUT"
	EnvServiceName      = "SERVICE_NAME"
	EnvServerURL        = "HEALTHRISK_URL"
)

// Configuration defaults
const (
	DefaultModelDir         = "trained_models"
	DefaultPort             = 5000
	DefaultLogLevel         = "info"
	DefaultEnvironment      = EnvironmentProduction
	DefaultAllowedOrigins   = "*"
	DefaultServiceName      = "healthrisk"
	DefaultServerURL        = "http://localhost:5000"
	DefaultInferenceTimeout = 5 * time.Second
	DefaultHTTPTimeout      = 10 * time.Second
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultClientTimeout    = 5 * time.Second
)

// Deployment environments
const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
	EnvironmentTest        = "test"
)

// Validation constants
const (
	MinPort = 1
	MaxPort = 65535
)

// MaxRequestBytes caps the size of a prediction request body.
const MaxRequestBytes = 1 << 20
