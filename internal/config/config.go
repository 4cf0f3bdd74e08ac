package config

import (
	"encoding/json"
	"os"
	"strconv"
)

// Config holds all agent configuration
type Config struct {
	ListenAddress string       `json:"listenAddress"`
	DatabasePath  string       `json:"databasePath"`
	DatabaseURL   string       `json:"databaseUrl"`
	Server        Server       `json:"server"`
	Sync          Sync         `json:"sync"`
	Connectivity  Connectivity `json:"connectivity"`
	Security      Security     `json:"security"`
}

// Server is the remote booth server the agent uploads to
type Server struct {
	BaseURL        string `json:"baseUrl"`
	APIKey         string `json:"apiKey"`
	APIKeyHeader   string `json:"apiKeyHeader"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// Sync configuration for the queue drain loop
type Sync struct {
	IntervalSeconds int `json:"intervalSeconds"`
	RetryCeiling    int `json:"retryCeiling"`
}

// Connectivity configuration for the reachability probe
type Connectivity struct {
	ProbeIntervalSeconds int `json:"probeIntervalSeconds"`
	ProbeTimeoutSeconds  int `json:"probeTimeoutSeconds"`
}

// Security configuration for the local booth UI API
type Security struct {
	APIKey       string `json:"apiKey"`
	APIKeyHeader string `json:"apiKeyHeader"`
}

// UsePostgres returns true if PostgreSQL should be used for the queue store
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		ListenAddress: ":8090",
		DatabasePath:  "booth-queue.db",
		Server: Server{
			BaseURL:        "http://localhost:5000",
			APIKeyHeader:   "X-API-Key",
			TimeoutSeconds: 30,
		},
		Sync: Sync{
			IntervalSeconds: 30,
			RetryCeiling:    5,
		},
		Connectivity: Connectivity{
			ProbeIntervalSeconds: 10,
			ProbeTimeoutSeconds:  5,
		},
		Security: Security{
			APIKey:       "CHANGE_THIS_TO_A_SECURE_API_KEY_AT_LEAST_32_CHARS",
			APIKeyHeader: "X-API-Key",
		},
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	cfg := defaultConfig()

	// Try to load from config file
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Override from environment variables
	if addr := os.Getenv("LISTEN_ADDRESS"); addr != "" {
		cfg.ListenAddress = addr
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if serverURL := os.Getenv("SERVER_URL"); serverURL != "" {
		cfg.Server.BaseURL = serverURL
	}
	if apiKey := os.Getenv("SERVER_API_KEY"); apiKey != "" {
		cfg.Server.APIKey = apiKey
	}
	if apiKey := os.Getenv("API_KEY"); apiKey != "" {
		cfg.Security.APIKey = apiKey
	}

	// Sync configuration
	if interval := os.Getenv("SYNC_INTERVAL_SECONDS"); interval != "" {
		if seconds, err := strconv.Atoi(interval); err == nil && seconds > 0 {
			cfg.Sync.IntervalSeconds = seconds
		}
	}
	if ceiling := os.Getenv("SYNC_RETRY_CEILING"); ceiling != "" {
		if n, err := strconv.Atoi(ceiling); err == nil && n > 0 {
			cfg.Sync.RetryCeiling = n
		}
	}

	// Connectivity probe configuration
	if interval := os.Getenv("CONNECTIVITY_PROBE_SECONDS"); interval != "" {
		if seconds, err := strconv.Atoi(interval); err == nil && seconds > 0 {
			cfg.Connectivity.ProbeIntervalSeconds = seconds
		}
	}

	return cfg, nil
}
