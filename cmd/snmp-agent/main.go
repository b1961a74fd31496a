package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mabott/snmp-agent-app/internal/config"
	agenterrors "github.com/mabott/snmp-agent-app/internal/errors"
	"github.com/mabott/snmp-agent-app/internal/logging"
	"github.com/mabott/snmp-agent-app/internal/metrics"
	"github.com/mabott/snmp-agent-app/internal/monitor"
	"github.com/mabott/snmp-agent-app/internal/notify"
	"github.com/mabott/snmp-agent-app/internal/snmpagent"
	"github.com/mabott/snmp-agent-app/pkg/ipmi"
	"github.com/mabott/snmp-agent-app/pkg/qumulo"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:     "snmp-agent",
	Short:   "SNMP health agent for Qumulo storage clusters",
	Long:    `snmp-agent polls a Qumulo cluster for node, drive and power-supply health and raises SNMP traps and email alerts on state transitions`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		runAgent()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("snmp-agent %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the agent config file")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// clusterClient composes the REST client and the IPMI querier into the
// single dependency the monitor polls.
type clusterClient struct {
	*qumulo.Client
	ipmi *ipmi.Client
}

func (c *clusterClient) GetPowerState(ctx context.Context, endpoint string) (map[string]ipmi.Status, error) {
	return c.ipmi.QueryPowerSupplies(ctx, endpoint)
}

func runAgent() {
	// Baseline logger for early startup; re-initialized once the config is
	// loaded.
	logging.Init(logging.Config{
		Format:    "auto",
		Level:     "info",
		Component: "snmp-agent",
	})
	defer logging.Shutdown()

	loader := config.NewLoader()
	loader.SetConfigPath(configPath)
	cfg, err := loader.Load()
	if err != nil {
		log.Fatal().Err(err).Bool("fatal", agenterrors.IsFatal(err)).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Format:     cfg.Log.Format,
		Level:      cfg.Log.Level,
		Component:  "snmp-agent",
		FilePath:   cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	log.Info().
		Str("version", Version).
		Str("cluster", cfg.Cluster.Name).
		Msg("Starting Qumulo SNMP agent")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	restClient, err := qumulo.NewClient(qumulo.ClientConfig{
		Host:        cfg.Cluster.Host,
		Port:        cfg.Cluster.Port,
		Username:    cfg.Cluster.Username,
		Password:    cfg.Cluster.Password,
		Fingerprint: cfg.Cluster.Fingerprint,
		VerifySSL:   cfg.Cluster.VerifySSL,
		Timeout:     cfg.Poll.CallTimeout(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create cluster client")
	}

	client := &clusterClient{Client: restClient}
	if cfg.IPMI.Enabled {
		client.ipmi = ipmi.NewClient(cfg.IPMI.Username, cfg.IPMI.Password)
	}

	mib := snmpagent.NewMIB()

	var traps notify.TrapSender
	if cfg.SNMP.Enabled {
		responder := snmpagent.NewResponder(cfg.SNMP, mib)
		if err := responder.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start SNMP responder")
		}
		defer responder.Shutdown()

		traps = snmpagent.NewTrapEmitter(cfg.SNMP)
	}

	var mail notify.MailSender
	if cfg.Email.Enabled {
		sender := notify.NewSMTPSender(cfg.Email)
		mail = sender
		startCredentialWatcher(sender)
	}

	monitor.SetMetricHooks(metrics.RecordAlertFired, metrics.RecordAlertCleared, metrics.RecordTickComplete)
	notify.SetFailureHook(metrics.RecordChannelFailure)

	if cfg.Metrics.Enabled {
		startMetricsServer(ctx, cfg.Metrics.Listen)
	}

	scheduler := monitor.NewScheduler(monitor.New(client, cfg), notify.NewDispatcher(traps, mail), mib, cfg.Poll.Interval())
	scheduler.Run(ctx)

	log.Info().Msg("Agent stopped")
}

// startCredentialWatcher wires rotated email credentials from the local .env
// file into the mail sender. A missing .env is fine: credentials then come
// from the process environment and stay fixed.
func startCredentialWatcher(sender *notify.SMTPSender) {
	const envPath = ".env"
	if _, err := os.Stat(envPath); err != nil {
		return
	}

	watcher, err := config.NewCredentialWatcher(envPath)
	if err != nil {
		log.Warn().Err(err).Msg("Credential watcher unavailable, email credentials fixed for this run")
		return
	}
	watcher.SetReloadCallback(func(creds config.EmailCredentials) {
		sender.SetCredentials(creds.Account, creds.Password)
		log.Info().Msg("Email credentials reloaded")
	})
	if err := watcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start credential watcher")
	}
}
