package snmpagent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabott/snmp-agent-app/internal/config"
	"github.com/mabott/snmp-agent-app/internal/monitor"
)

func TestMIBPollCountConcurrentAccess(t *testing.T) {
	mib := NewMIB()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				mib.IncrementPollCount()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint32(800), mib.PollCount())
}

func TestMIBScalarTable(t *testing.T) {
	mib := NewMIB()
	mib.IncrementPollCount()
	mib.IncrementPollCount()

	scalars := mib.Scalars()
	require.Len(t, scalars, 2)

	assert.Equal(t, OIDDescription, scalars[0].OID)
	desc, err := scalars[0].Get()
	require.NoError(t, err)
	assert.Equal(t, Description, desc)

	assert.Equal(t, OIDPollCount, scalars[1].OID)
	count, err := scalars[1].Get()
	require.NoError(t, err)
	assert.Equal(t, gosnmp.Counter32, scalars[1].Type)
	assert.EqualValues(t, 2, count)
}

func TestBuildTrapVarBindOrder(t *testing.T) {
	emitter := NewTrapEmitter(config.SNMPConfig{
		TrapReceiver:  "nms.example.com",
		TrapPort:      162,
		TrapCommunity: "traps",
	})

	event := monitor.Event{
		Kind:     monitor.EventAlert,
		TrapName: monitor.TrapPowerSupplyFailure,
		VarBindings: []monitor.VarBinding{
			{OID: monitor.OIDPowerSupplyNodeName, Value: "qcluster-1"},
			{OID: monitor.OIDPowerSupplyLabel, Value: "PS1"},
		},
	}

	trap, err := emitter.buildTrap(event)
	require.NoError(t, err)
	require.Len(t, trap.Variables, 4)

	assert.Equal(t, oidSysUpTime, trap.Variables[0].Name)
	assert.Equal(t, gosnmp.TimeTicks, trap.Variables[0].Type)

	assert.Equal(t, oidSnmpTrapOID, trap.Variables[1].Name)
	assert.Equal(t, "1.3.6.1.4.1.47017.0.4", trap.Variables[1].Value)

	assert.Equal(t, monitor.OIDPowerSupplyNodeName, trap.Variables[2].Name)
	assert.Equal(t, "qcluster-1", trap.Variables[2].Value)
	assert.Equal(t, monitor.OIDPowerSupplyLabel, trap.Variables[3].Name)
	assert.Equal(t, "PS1", trap.Variables[3].Value)
}

func TestBuildTrapUnknownNameFails(t *testing.T) {
	emitter := NewTrapEmitter(config.SNMPConfig{TrapReceiver: "nms.example.com", TrapPort: 162})

	_, err := emitter.buildTrap(monitor.Event{TrapName: "bogusTrap"})
	assert.Error(t, err)
}

func TestTrapTimeoutFloorsExpiredDeadline(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	assert.Equal(t, minTrapTimeout, trapTimeout(ctx))

	assert.Equal(t, defaultTrapTimeout, trapTimeout(context.Background()))

	ctx, cancel = context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	assert.LessOrEqual(t, trapTimeout(ctx), time.Minute)
	assert.GreaterOrEqual(t, trapTimeout(ctx), minTrapTimeout)
}

func TestClearEventsMapToNodesClearOID(t *testing.T) {
	assert.Equal(t, "1.3.6.1.4.1.47017.0.2", trapOIDs[monitor.TrapNodesClear])
}
