package monitor

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabott/snmp-agent-app/internal/config"
	"github.com/mabott/snmp-agent-app/pkg/ipmi"
	"github.com/mabott/snmp-agent-app/pkg/qumulo"
)

// fakeCluster counts queries atomically so tests driving the scheduler on
// its own goroutine can observe them.
type fakeCluster struct {
	authenticated bool
	loginErr      error
	loginCalls    atomic.Int32

	offlineNodes []qumulo.NodeInfo
	nodeQueries  atomic.Int32

	deadDrives   []qumulo.DriveInfo
	driveQueries atomic.Int32

	power    map[string]map[string]ipmi.Status
	powerErr map[string]error
}

func (f *fakeCluster) IsAuthenticated() bool { return f.authenticated }

func (f *fakeCluster) Login(ctx context.Context) error {
	f.loginCalls.Add(1)
	if f.loginErr != nil {
		return f.loginErr
	}
	f.authenticated = true
	return nil
}

func (f *fakeCluster) ListOfflineNodes(ctx context.Context) ([]qumulo.NodeInfo, error) {
	f.nodeQueries.Add(1)
	return f.offlineNodes, nil
}

func (f *fakeCluster) ListDeadDrives(ctx context.Context) ([]qumulo.DriveInfo, error) {
	f.driveQueries.Add(1)
	return f.deadDrives, nil
}

func (f *fakeCluster) GetPowerState(ctx context.Context, endpoint string) (map[string]ipmi.Status, error) {
	if err := f.powerErr[endpoint]; err != nil {
		return nil, err
	}
	return f.power[endpoint], nil
}

func testConfig(ipmiEnabled bool) *config.Config {
	cfg := config.Default()
	cfg.Cluster.Name = "qcluster"
	cfg.Cluster.Host = "qumulo.test"
	cfg.Cluster.Username = "admin"
	cfg.Cluster.Password = "pw"
	cfg.IPMI.Enabled = ipmiEnabled
	cfg.IPMI.Endpoints = []config.IPMIEndpoint{
		{Host: "ipmi-1", NodeID: 1},
		{Host: "ipmi-2", NodeID: 2},
	}
	return cfg
}

func TestPollNodeAggregateAcrossTicks(t *testing.T) {
	client := &fakeCluster{authenticated: true}
	m := New(client, testConfig(false))

	// Tick 1: one node offline.
	client.offlineNodes = []qumulo.NodeInfo{{ID: 1, Name: "qcluster-1", Status: "offline"}}
	events := m.Poll(context.Background())
	require.Len(t, events, 1)
	assert.Equal(t, EventAlert, events[0].Kind)
	assert.Equal(t, "Qumulo Nodes Offline", events[0].Subject)
	assert.Contains(t, events[0].Body, "There are currently 1 nodes offline:")
	assert.Contains(t, events[0].Body, "Node qcluster-1 is currently offline.")
	assert.Equal(t, TrapNodeDown, events[0].TrapName)

	// Tick 2: a second node goes offline; still one steady condition.
	client.offlineNodes = append(client.offlineNodes,
		qumulo.NodeInfo{ID: 2, Name: "qcluster-2", Status: "offline"})
	events = m.Poll(context.Background())
	assert.Empty(t, events, "steady-unhealthy must not re-alert")

	// Tick 3: all nodes recover.
	client.offlineNodes = nil
	events = m.Poll(context.Background())
	require.Len(t, events, 1)
	assert.Equal(t, EventClear, events[0].Kind)
	assert.Equal(t, "All nodes back online", events[0].Body)
	assert.Equal(t, TrapNodesClear, events[0].TrapName)
}

func TestPollDriveAggregate(t *testing.T) {
	client := &fakeCluster{authenticated: true}
	m := New(client, testConfig(false))

	client.deadDrives = []qumulo.DriveInfo{{ID: "1.2", State: "dead", DiskType: "SSD"}}
	events := m.Poll(context.Background())
	require.Len(t, events, 1)
	assert.Equal(t, "Qumulo Drives Offline", events[0].Subject)
	assert.Contains(t, events[0].Body, "SSD Drive 1.2 is offline.")
	assert.Equal(t, TrapDriveFailure, events[0].TrapName)

	client.deadDrives = nil
	events = m.Poll(context.Background())
	require.Len(t, events, 1)
	assert.Equal(t, EventClear, events[0].Kind)
	assert.Equal(t, "Qumulo Drives Back Online", events[0].Subject)
}

func TestPollPowerSuppliesPerEntity(t *testing.T) {
	client := &fakeCluster{
		authenticated: true,
		power: map[string]map[string]ipmi.Status{
			"ipmi-1": {"PS1": ipmi.StatusFail, "PS2": ipmi.StatusGood},
			"ipmi-2": {"PS1": ipmi.StatusGood, "PS2": ipmi.StatusGood},
		},
	}
	m := New(client, testConfig(true))

	// Tick 1: node 1 PS1 failed.
	events := m.Poll(context.Background())
	require.Len(t, events, 1)
	assert.Equal(t, EventAlert, events[0].Kind)
	assert.Equal(t, EntityKey{Category: CategoryPowerSupply, NodeID: 1, Supply: "PS1"}, events[0].Key)
	assert.Equal(t, "[ALERT] Qumulo Power Supply Failure qcluster-1", events[0].Subject)
	assert.Equal(t, "PS1 in qcluster-1 failed", events[0].Body)
	require.Len(t, events[0].VarBindings, 2)
	assert.Equal(t, VarBinding{OID: OIDPowerSupplyNodeName, Value: "qcluster-1"}, events[0].VarBindings[0])
	assert.Equal(t, VarBinding{OID: OIDPowerSupplyLabel, Value: "PS1"}, events[0].VarBindings[1])

	// Tick 2: PS1 recovers while PS2 fails; both transitions fire
	// independently in label order.
	client.power["ipmi-1"] = map[string]ipmi.Status{"PS1": ipmi.StatusGood, "PS2": ipmi.StatusFail}
	events = m.Poll(context.Background())
	require.Len(t, events, 2)
	assert.Equal(t, EventClear, events[0].Kind)
	assert.Equal(t, "PS1", events[0].Key.Supply)
	assert.Equal(t, "PS1 in qcluster-1 power back to normal", events[0].Body)
	assert.Equal(t, EventAlert, events[1].Kind)
	assert.Equal(t, "PS2", events[1].Key.Supply)
}

func TestPollHealthyClusterFirstTickEmitsNothing(t *testing.T) {
	// A fresh process holds no session yet; the first tick must log in
	// before evaluating connectivity instead of raising a spurious
	// cluster-offline alert against a healthy cluster.
	client := &fakeCluster{authenticated: false}
	m := New(client, testConfig(false))

	events := m.Poll(context.Background())
	assert.Empty(t, events)
	assert.Equal(t, int32(1), client.loginCalls.Load())
	assert.Equal(t, int32(1), client.nodeQueries.Load(), "checks must run on the first tick")
	assert.Equal(t, int32(1), client.driveQueries.Load())

	// The second tick reuses the session.
	events = m.Poll(context.Background())
	assert.Empty(t, events)
	assert.Equal(t, int32(1), client.loginCalls.Load())
}

func TestPollConnectivityGatesOtherChecks(t *testing.T) {
	client := &fakeCluster{
		authenticated: false,
		loginErr:      fmt.Errorf("connection refused"),
		offlineNodes:  []qumulo.NodeInfo{{ID: 1, Name: "qcluster-1", Status: "offline"}},
	}
	m := New(client, testConfig(false))

	// Ticks 1-3: disconnected. One alert on the first tick only, no
	// node/drive queries, and a reconnect attempt per tick.
	for tick := 1; tick <= 3; tick++ {
		events := m.Poll(context.Background())
		if tick == 1 {
			require.Len(t, events, 1, "tick %d", tick)
			assert.Equal(t, EventAlert, events[0].Kind)
			assert.Equal(t, "Qumulo Cluster offline", events[0].Subject)
		} else {
			assert.Empty(t, events, "tick %d", tick)
		}
	}
	assert.Equal(t, int32(0), client.nodeQueries.Load())
	assert.Equal(t, int32(0), client.driveQueries.Load())
	assert.Equal(t, int32(3), client.loginCalls.Load())

	// Tick 4: the cluster is reachable again. The connectivity clear is
	// followed by normal evaluation resuming in the same tick.
	client.loginErr = nil
	client.authenticated = true
	events := m.Poll(context.Background())
	require.Len(t, events, 2)
	assert.Equal(t, EventClear, events[0].Kind)
	assert.Equal(t, CategoryConnectivity, events[0].Key.Category)
	assert.Equal(t, EventAlert, events[1].Kind)
	assert.Equal(t, CategoryNodes, events[1].Key.Category)
	assert.Equal(t, int32(1), client.nodeQueries.Load())
	assert.Equal(t, int32(1), client.driveQueries.Load())
}

func TestPollIPMIPartialFailure(t *testing.T) {
	client := &fakeCluster{
		authenticated: true,
		power: map[string]map[string]ipmi.Status{
			"ipmi-2": {"PS1": ipmi.StatusFail},
		},
		powerErr: map[string]error{
			"ipmi-1": fmt.Errorf("sdr query failed"),
		},
	}
	m := New(client, testConfig(true))

	// Endpoint 1 fails; endpoint 2 is still evaluated this tick.
	events := m.Poll(context.Background())
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].Key.NodeID)
	assert.Equal(t, "PS1", events[0].Key.Supply)

	// Next tick the failed endpoint recovers and is evaluated without
	// special-casing.
	delete(client.powerErr, "ipmi-1")
	client.power["ipmi-1"] = map[string]ipmi.Status{"PS1": ipmi.StatusFail}
	events = m.Poll(context.Background())
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Key.NodeID)
}
