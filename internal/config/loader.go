package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	agenterrors "github.com/mabott/snmp-agent-app/internal/errors"
)

// Environment variable names for the email credentials. These are fixed for
// compatibility with existing deployments and are never read from the file.
const (
	EnvEmailAccount  = "SNMP_AGENT_EMAIL_ACCT"
	EnvEmailPassword = "SNMP_AGENT_EMAIL_PWD"
)

const envPrefix = "QSNMP_"

var defaultConfigPaths = []string{
	"/etc/snmp-agent/agent.yml",
	"/etc/snmp-agent/agent.yaml",
	"./agent.yml",
	"./agent.yaml",
}

// Loader resolves configuration from defaults, a YAML file, and the process
// environment, in that order of precedence.
type Loader struct {
	cfg         *Config
	configPaths []string
}

// NewLoader creates a loader with the default search paths.
func NewLoader() *Loader {
	return &Loader{
		cfg:         Default(),
		configPaths: defaultConfigPaths,
	}
}

// SetConfigPath puts a custom config path in front of the search list.
func (l *Loader) SetConfigPath(path string) {
	if path != "" {
		l.configPaths = append([]string{path}, l.configPaths...)
	}
}

// Load resolves and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	// Pick up a local .env if present so credentials can be kept out of the
	// shell profile. Missing files are fine.
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded environment from .env")
	}

	if err := l.loadFromFile(); err != nil {
		return nil, err
	}
	l.loadFromEnv()

	if err := l.cfg.Validate(); err != nil {
		return nil, err
	}
	return l.cfg, nil
}

func (l *Loader) loadFromFile() error {
	var configPath string
	for _, path := range l.configPaths {
		if _, err := os.Stat(path); err == nil {
			configPath = path
			break
		}
	}
	if configPath == "" {
		return agenterrors.WrapConfig("load",
			fmt.Errorf("no config file found (searched %s)", strings.Join(l.configPaths, ", ")))
	}

	log.Info().Str("path", configPath).Msg("Loading configuration file")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return agenterrors.WrapConfig("load", fmt.Errorf("read config file %s: %w", configPath, err))
	}
	if err := yaml.Unmarshal(data, l.cfg); err != nil {
		return agenterrors.WrapConfig("load", fmt.Errorf("parse config file %s: %w", configPath, err))
	}
	return nil
}

func (l *Loader) loadFromEnv() {
	if val := os.Getenv(envPrefix + "CLUSTER_HOST"); val != "" {
		l.cfg.Cluster.Host = val
	}
	if val := os.Getenv(envPrefix + "CLUSTER_USERNAME"); val != "" {
		l.cfg.Cluster.Username = val
	}
	if val := os.Getenv(envPrefix + "CLUSTER_PASSWORD"); val != "" {
		l.cfg.Cluster.Password = val
	}
	if val := os.Getenv(envPrefix + "POLL_INTERVAL"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			l.cfg.Poll.IntervalSeconds = seconds
		}
	}
	if val := os.Getenv(envPrefix + "CALL_TIMEOUT"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			l.cfg.Poll.CallTimeoutSeconds = seconds
		}
	}
	if val := os.Getenv(envPrefix + "LOG_LEVEL"); val != "" {
		l.cfg.Log.Level = val
	}
	if val := os.Getenv(envPrefix + "LOG_FILE"); val != "" {
		l.cfg.Log.File = val
	}
	if val := os.Getenv(envPrefix + "METRICS_LISTEN"); val != "" {
		l.cfg.Metrics.Listen = val
	}

	// Email credentials are environment-only.
	l.cfg.Email.Account = os.Getenv(EnvEmailAccount)
	l.cfg.Email.Password = os.Getenv(EnvEmailPassword)
}
