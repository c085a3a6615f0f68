package config

import "time"

// RunnerConfig holds runtime configuration for the execution runner service.
type RunnerConfig struct {
	Environment      string
	Addr             string
	Workdir          string
	APIBaseURL       string
	RunnerAuthToken  string
	LogEmitTimeout   time.Duration
	PythonBin        string
	PipBin           string
	ExecTimeout      time.Duration
	InstallTimeout   time.Duration
	StorageEndpoint  string
	StorageBucket    string
	StorageRegion    string
	StorageAccessKey string
	StorageSecretKey string
	StoragePathStyle bool
}

// LoadRunnerConfig constructs a RunnerConfig from environment variables.
func LoadRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Environment:      GetString("APP_ENV", "development"),
		Addr:             GetString("RUNNER_ADDR", ":5000"),
		Workdir:          GetString("RUNNER_WORKDIR", "/tmp/vehosts"),
		APIBaseURL:       GetString("API_BASE_URL", "http://api:4000"),
		RunnerAuthToken:  GetString("RUNNER_AUTH_TOKEN", ""),
		LogEmitTimeout:   GetSeconds("LOG_EMIT_TIMEOUT_SECONDS", 5),
		PythonBin:        GetString("PYTHON_BIN", "python3"),
		PipBin:           GetString("PIP_BIN", "pip3"),
		ExecTimeout:      GetSeconds("RUN_EXEC_TIMEOUT_SECONDS", 60),
		InstallTimeout:   GetSeconds("PIP_INSTALL_TIMEOUT_SECONDS", 120),
		StorageEndpoint:  GetString("STORAGE_ENDPOINT", ""),
		StorageBucket:    GetString("STORAGE_BUCKET", "project-files"),
		StorageRegion:    GetString("STORAGE_REGION", "us-east-1"),
		StorageAccessKey: GetString("STORAGE_ACCESS_KEY_ID", ""),
		StorageSecretKey: GetString("STORAGE_SECRET_ACCESS_KEY", ""),
		StoragePathStyle: GetBool("STORAGE_FORCE_PATH_STYLE", true),
	}
}
