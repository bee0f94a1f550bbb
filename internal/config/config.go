package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingConfig is returned when required data agent settings are absent.
var ErrMissingConfig = errors.New("TENANT_ID and DATA_AGENT_URL must be set in environment variables")

const (
	DefaultAPIVersion = "2024-05-01-preview"
	DefaultScope      = "https://api.fabric.microsoft.com/.default"
	// DefaultClientID is the public Azure CLI application used for interactive sign-in.
	DefaultClientID = "04b07795-8ddb-461a-bbee-02f9e1bf7b46"
)

// Credential modes accepted by DATA_AGENT_CREDENTIAL.
const (
	CredentialInteractive = "interactive"
	CredentialDefault     = "default"
	CredentialCLI         = "cli"
	CredentialStatic      = "static"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Agent   AgentConfig
	Session SessionConfig
	CORS    CORSConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	agent, err := loadAgentConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Agent: agent, Session: session, CORS: loadCORSConfig()}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AgentConfig 描述远端 data agent 的连接配置。
type AgentConfig struct {
	TenantID        string
	URL             string
	APIVersion      string
	Scope           string
	ClientID        string
	Credential      string
	StaticToken     string
	Timeout         time.Duration
	PollInterval    time.Duration
	CancelOnTimeout bool
}

// Validate reports ErrMissingConfig when the required settings are absent.
func (c AgentConfig) Validate() error {
	if c.TenantID == "" || c.URL == "" {
		return ErrMissingConfig
	}
	switch c.Credential {
	case CredentialInteractive, CredentialDefault, CredentialCLI:
	case CredentialStatic:
		if c.StaticToken == "" {
			return fmt.Errorf("DATA_AGENT_TOKEN must be set when DATA_AGENT_CREDENTIAL=%s", CredentialStatic)
		}
	default:
		return fmt.Errorf("unsupported DATA_AGENT_CREDENTIAL %q", c.Credential)
	}
	return nil
}

func loadAgentConfig() (AgentConfig, error) {
	timeout, err := parseDurationEnv("DATA_AGENT_TIMEOUT", 120*time.Second)
	if err != nil {
		return AgentConfig{}, err
	}
	if timeout <= 0 {
		return AgentConfig{}, fmt.Errorf("invalid DATA_AGENT_TIMEOUT value %s: must be positive", timeout)
	}

	interval, err := parseDurationEnv("DATA_AGENT_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		return AgentConfig{}, err
	}
	if interval <= 0 {
		return AgentConfig{}, fmt.Errorf("invalid DATA_AGENT_POLL_INTERVAL value %s: must be positive", interval)
	}

	cancelOnTimeout, err := parseBoolEnv("DATA_AGENT_CANCEL_ON_TIMEOUT", true)
	if err != nil {
		return AgentConfig{}, err
	}

	return AgentConfig{
		TenantID:        strings.TrimSpace(os.Getenv("TENANT_ID")),
		URL:             strings.TrimSpace(os.Getenv("DATA_AGENT_URL")),
		APIVersion:      getEnvOrDefault("DATA_AGENT_API_VERSION", DefaultAPIVersion),
		Scope:           getEnvOrDefault("DATA_AGENT_SCOPE", DefaultScope),
		ClientID:        getEnvOrDefault("DATA_AGENT_CLIENT_ID", DefaultClientID),
		Credential:      strings.ToLower(getEnvOrDefault("DATA_AGENT_CREDENTIAL", CredentialInteractive)),
		StaticToken:     strings.TrimSpace(os.Getenv("DATA_AGENT_TOKEN")),
		Timeout:         timeout,
		PollInterval:    interval,
		CancelOnTimeout: cancelOnTimeout,
	}, nil
}

// SessionConfig bounds the in-memory thread registry.
type SessionConfig struct {
	TTL      time.Duration
	Capacity int
}

func loadSessionConfig() (SessionConfig, error) {
	ttl, err := parseDurationEnv("SESSION_TTL", 24*time.Hour)
	if err != nil {
		return SessionConfig{}, err
	}
	if ttl < 0 {
		ttl = 0
	}

	capacity := 1024
	if override, err := parseOptionalIntEnv("SESSION_CAPACITY"); err != nil {
		return SessionConfig{}, err
	} else if override != nil {
		if *override < 1 {
			capacity = 1
		} else {
			capacity = *override
		}
	}

	return SessionConfig{TTL: ttl, Capacity: capacity}, nil
}

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string
}

func loadCORSConfig() CORSConfig {
	raw := getEnvOrDefault("CORS_ORIGINS", "*")
	origins := make([]string, 0, 4)
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return CORSConfig{AllowedOrigins: origins}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

// parseDurationEnv accepts Go durations ("90s") or plain seconds ("90").
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
