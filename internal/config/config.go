package config

import (
	"fmt"
	"time"

	agenterrors "github.com/mabott/snmp-agent-app/internal/errors"
)

// Default ports used when the config file omits them.
const (
	DefaultClusterPort = 8000
	DefaultTrapPort    = 162
	DefaultSNMPListen  = ":161"
	DefaultTLSPort     = 587
)

// Config is the fully resolved agent configuration. It is read-only after
// Load returns; the only values that may change at runtime are the email
// credentials, which the watcher re-reads from the environment file.
type Config struct {
	Cluster ClusterConfig `yaml:"cluster"`
	IPMI    IPMIConfig    `yaml:"ipmi"`
	SNMP    SNMPConfig    `yaml:"snmp"`
	Email   EmailConfig   `yaml:"email"`
	Poll    PollConfig    `yaml:"poll"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// ClusterConfig identifies the monitored Qumulo cluster's REST endpoint.
type ClusterConfig struct {
	Name        string `yaml:"name"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	VerifySSL   bool   `yaml:"verify_ssl"`
	Fingerprint string `yaml:"fingerprint"`
}

// IPMIEndpoint maps one out-of-band management interface to the cluster node
// it belongs to. The node id is explicit configuration: positional
// correspondence between the endpoint list and cluster node order is not
// assumed.
type IPMIEndpoint struct {
	Host   string `yaml:"host"`
	NodeID int    `yaml:"node_id"`
}

// IPMIConfig controls power-supply monitoring.
type IPMIConfig struct {
	Enabled   bool           `yaml:"enabled"`
	Username  string         `yaml:"username"`
	Password  string         `yaml:"password"`
	Endpoints []IPMIEndpoint `yaml:"endpoints"`
}

// SNMPConfig controls the SNMP responder and the trap channel.
type SNMPConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"`
	Community     string `yaml:"community"`
	TrapReceiver  string `yaml:"trap_receiver"`
	TrapPort      int    `yaml:"trap_port"`
	TrapCommunity string `yaml:"trap_community"`
}

// EmailConfig controls the mail channel. Account and Password are never read
// from the config file; they come from SNMP_AGENT_EMAIL_ACCT and
// SNMP_AGENT_EMAIL_PWD in the process environment.
type EmailConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Server      string `yaml:"server"`
	TLSPort     int    `yaml:"tls_port"`
	AddressFrom string `yaml:"address_from"`
	AddressTo   string `yaml:"address_to"`
	Account     string `yaml:"-"`
	Password    string `yaml:"-"`
}

// PollConfig controls the scheduler cadence and the bound on external calls.
type PollConfig struct {
	IntervalSeconds    int `yaml:"interval_seconds"`
	CallTimeoutSeconds int `yaml:"call_timeout_seconds"`
}

// MetricsConfig controls the Prometheus /metrics listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LogConfig controls process logging.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Interval returns the poll interval as a duration.
func (p PollConfig) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

// CallTimeout returns the per-external-call bound as a duration.
func (p PollConfig) CallTimeout() time.Duration {
	return time.Duration(p.CallTimeoutSeconds) * time.Second
}

// Default returns the configuration baseline before file and environment
// sources are applied.
func Default() *Config {
	return &Config{
		Cluster: ClusterConfig{
			Port: DefaultClusterPort,
		},
		SNMP: SNMPConfig{
			ListenAddress: DefaultSNMPListen,
			Community:     "public",
			TrapPort:      DefaultTrapPort,
			TrapCommunity: "traps",
		},
		Email: EmailConfig{
			TLSPort: DefaultTLSPort,
		},
		Poll: PollConfig{
			IntervalSeconds:    5,
			CallTimeoutSeconds: 30,
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9091",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Validate checks the resolved configuration. Any error returned here is
// fatal: the agent must not start the poll loop or the SNMP responder.
func (c *Config) Validate() error {
	if c.Cluster.Host == "" {
		return agenterrors.WrapConfig("validate", fmt.Errorf("cluster.host is required"))
	}
	if c.Cluster.Name == "" {
		return agenterrors.WrapConfig("validate", fmt.Errorf("cluster.name is required"))
	}
	if c.Cluster.Username == "" || c.Cluster.Password == "" {
		return agenterrors.WrapConfig("validate", fmt.Errorf("cluster.username and cluster.password are required"))
	}
	if c.Cluster.Port <= 0 || c.Cluster.Port > 65535 {
		return agenterrors.WrapConfig("validate", fmt.Errorf("cluster.port %d out of range", c.Cluster.Port))
	}
	if c.Poll.IntervalSeconds <= 0 {
		return agenterrors.WrapConfig("validate", fmt.Errorf("poll.interval_seconds must be positive, got %d", c.Poll.IntervalSeconds))
	}
	if c.Poll.CallTimeoutSeconds <= 0 {
		return agenterrors.WrapConfig("validate", fmt.Errorf("poll.call_timeout_seconds must be positive, got %d", c.Poll.CallTimeoutSeconds))
	}

	if c.SNMP.Enabled && c.SNMP.TrapReceiver == "" {
		return agenterrors.WrapConfig("validate", fmt.Errorf("snmp.trap_receiver is required when the trap channel is enabled"))
	}

	if c.Email.Enabled {
		if c.Email.Server == "" {
			return agenterrors.WrapConfig("validate", fmt.Errorf("email.server is required when the email channel is enabled"))
		}
		if c.Email.TLSPort <= 0 || c.Email.TLSPort > 65535 {
			return agenterrors.WrapConfig("validate", fmt.Errorf("email.tls_port %d out of range", c.Email.TLSPort))
		}
		if c.Email.AddressFrom == "" || c.Email.AddressTo == "" {
			return agenterrors.WrapConfig("validate", fmt.Errorf("email.address_from and email.address_to are required when the email channel is enabled"))
		}
		if c.Email.Account == "" || c.Email.Password == "" {
			return agenterrors.WrapConfig("validate",
				fmt.Errorf("email credentials missing: set %s and %s in the environment", EnvEmailAccount, EnvEmailPassword))
		}
	}

	if c.IPMI.Enabled {
		if len(c.IPMI.Endpoints) == 0 {
			return agenterrors.WrapConfig("validate", fmt.Errorf("ipmi.endpoints must not be empty when IPMI monitoring is enabled"))
		}
		seen := make(map[int]string, len(c.IPMI.Endpoints))
		for _, ep := range c.IPMI.Endpoints {
			if ep.Host == "" {
				return agenterrors.WrapConfig("validate", fmt.Errorf("ipmi endpoint with node_id %d has no host", ep.NodeID))
			}
			if ep.NodeID <= 0 {
				return agenterrors.WrapConfig("validate", fmt.Errorf("ipmi endpoint %s: node_id must be positive", ep.Host))
			}
			if prev, dup := seen[ep.NodeID]; dup {
				return agenterrors.WrapConfig("validate", fmt.Errorf("ipmi endpoints %s and %s share node_id %d", prev, ep.Host, ep.NodeID))
			}
			seen[ep.NodeID] = ep.Host
		}
	}

	return nil
}
