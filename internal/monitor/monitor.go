package monitor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mabott/snmp-agent-app/internal/config"
	"github.com/mabott/snmp-agent-app/pkg/ipmi"
	"github.com/mabott/snmp-agent-app/pkg/qumulo"
)

// ClusterClient supplies the current state of the monitored cluster. The
// REST client and the IPMI querier are composed into one implementation at
// wiring time.
type ClusterClient interface {
	IsAuthenticated() bool
	Login(ctx context.Context) error
	ListOfflineNodes(ctx context.Context) ([]qumulo.NodeInfo, error)
	ListDeadDrives(ctx context.Context) ([]qumulo.DriveInfo, error)
	GetPowerState(ctx context.Context, endpoint string) (map[string]ipmi.Status, error)
}

// Monitor orchestrates one poll cycle: it queries the cluster for each
// monitored category, feeds the results through the tracker, and collects
// the events that transitions produced.
type Monitor struct {
	client      ClusterClient
	tracker     *Tracker
	clusterName string
	ipmiEnabled bool
	endpoints   []config.IPMIEndpoint
	callTimeout time.Duration
}

// New creates a Monitor for the configured cluster.
func New(client ClusterClient, cfg *config.Config) *Monitor {
	return &Monitor{
		client:      client,
		tracker:     NewTracker(),
		clusterName: cfg.Cluster.Name,
		ipmiEnabled: cfg.IPMI.Enabled,
		endpoints:   cfg.IPMI.Endpoints,
		callTimeout: cfg.Poll.CallTimeout(),
	}
}

// Poll runs one cycle and returns the emitted events in evaluation order:
// connectivity first, then nodes, drives, and power supplies in configured
// endpoint order. A tick that starts unauthenticated attempts a best-effort
// login before connectivity is evaluated, so a reachable cluster never reads
// as offline (the first tick of the process included) and a lost connection
// is retried every tick. While cluster connectivity is alerting, every other
// category is skipped for the tick: their inputs are undefined.
func (m *Monitor) Poll(ctx context.Context) []Event {
	events := make([]Event, 0, 4)
	connKey := EntityKey{Category: CategoryConnectivity}

	if !m.client.IsAuthenticated() {
		loginCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
		err := m.client.Login(loginCtx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("Error connecting to Qumulo Cluster REST Server")
		}
	}

	if ev := m.tracker.Evaluate(connKey, !m.client.IsAuthenticated(),
		m.clusterOfflineEvent, m.clusterOnlineEvent); ev != nil {
		events = append(events, *ev)
	}

	if m.tracker.IsAlerting(connKey) {
		return events
	}

	if ev := m.checkNodes(ctx); ev != nil {
		events = append(events, *ev)
	}
	if ev := m.checkDrives(ctx); ev != nil {
		events = append(events, *ev)
	}
	if m.ipmiEnabled {
		events = append(events, m.checkPowerSupplies(ctx)...)
	}

	return events
}

func (m *Monitor) checkNodes(ctx context.Context) *Event {
	queryCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()

	offline, err := m.client.ListOfflineNodes(queryCtx)
	if err != nil {
		log.Error().Err(err).Msg("Node status query failed, skipping node evaluation this tick")
		return nil
	}

	key := EntityKey{Category: CategoryNodes}
	return m.tracker.Evaluate(key, len(offline) > 0,
		func() *Event {
			body := fmt.Sprintf("There are currently %d nodes offline:", len(offline))
			for _, node := range offline {
				body += fmt.Sprintf("\tNode %s is currently offline.", node.Name)
			}
			return newEvent(EventAlert, key, "Qumulo Nodes Offline", body, TrapNodeDown, nil)
		},
		func() *Event {
			return newEvent(EventClear, key, "Qumulo Nodes Back Online", "All nodes back online", TrapNodesClear, nil)
		})
}

func (m *Monitor) checkDrives(ctx context.Context) *Event {
	queryCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()

	dead, err := m.client.ListDeadDrives(queryCtx)
	if err != nil {
		log.Error().Err(err).Msg("Drive status query failed, skipping drive evaluation this tick")
		return nil
	}

	key := EntityKey{Category: CategoryDrives}
	return m.tracker.Evaluate(key, len(dead) > 0,
		func() *Event {
			body := fmt.Sprintf("There are currently %d drives offline:", len(dead))
			for _, drive := range dead {
				body += fmt.Sprintf("\t%s Drive %s is offline.", drive.DiskType, drive.ID)
			}
			return newEvent(EventAlert, key, "Qumulo Drives Offline", body, TrapDriveFailure, nil)
		},
		func() *Event {
			return newEvent(EventClear, key, "Qumulo Drives Back Online", "All drives back online", TrapNodesClear, nil)
		})
}

func (m *Monitor) checkPowerSupplies(ctx context.Context) []Event {
	var events []Event

	for _, endpoint := range m.endpoints {
		queryCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
		states, err := m.client.GetPowerState(queryCtx, endpoint.Host)
		cancel()
		if err != nil {
			// One bad endpoint must not abort the rest; it is retried on
			// the next tick without special-casing.
			log.Warn().Err(err).Str("endpoint", endpoint.Host).Int("nodeID", endpoint.NodeID).
				Msg("IPMI power query failed, please verify IPMI config")
			continue
		}

		labels := make([]string, 0, len(states))
		for label := range states {
			labels = append(labels, label)
		}
		sort.Strings(labels)

		for _, label := range labels {
			key := EntityKey{Category: CategoryPowerSupply, NodeID: endpoint.NodeID, Supply: label}
			nodeName := m.nodeName(endpoint.NodeID)

			ev := m.tracker.Evaluate(key, states[label] == ipmi.StatusFail,
				func() *Event {
					return newEvent(EventAlert, key,
						"[ALERT] Qumulo Power Supply Failure "+nodeName,
						fmt.Sprintf("%s in %s failed", label, nodeName),
						TrapPowerSupplyFailure,
						[]VarBinding{
							{OID: OIDPowerSupplyNodeName, Value: nodeName},
							{OID: OIDPowerSupplyLabel, Value: label},
						})
				},
				func() *Event {
					return newEvent(EventClear, key,
						"Qumulo Power Supply Normal",
						fmt.Sprintf("%s in %s power back to normal", label, nodeName),
						TrapNodesClear, nil)
				})
			if ev != nil {
				events = append(events, *ev)
			}
		}
	}

	return events
}

func (m *Monitor) clusterOfflineEvent() *Event {
	return newEvent(EventAlert, EntityKey{Category: CategoryConnectivity},
		"Qumulo Cluster offline",
		"Error connecting to Qumulo Cluster REST Server",
		TrapNodeDown, nil)
}

func (m *Monitor) clusterOnlineEvent() *Event {
	return newEvent(EventClear, EntityKey{Category: CategoryConnectivity},
		"Qumulo Cluster back online",
		"Connection to Qumulo Cluster REST Server restored",
		TrapNodesClear, nil)
}

func (m *Monitor) nodeName(nodeID int) string {
	return fmt.Sprintf("%s-%d", m.clusterName, nodeID)
}
