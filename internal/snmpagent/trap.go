package snmpagent

import (
	"context"
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/mabott/snmp-agent-app/internal/config"
	"github.com/mabott/snmp-agent-app/internal/monitor"
)

// Standard varbind OIDs every SNMPv2c notification carries.
const (
	oidSysUpTime   = ".1.3.6.1.2.1.1.3.0"
	oidSnmpTrapOID = ".1.3.6.1.6.3.1.1.4.1.0"
)

// Notification OIDs under the Qumulo enterprise subtree, one per trap name
// the receiving NMS matches on.
var trapOIDs = map[string]string{
	monitor.TrapNodeDown:           "1.3.6.1.4.1.47017.0.1",
	monitor.TrapNodesClear:         "1.3.6.1.4.1.47017.0.2",
	monitor.TrapDriveFailure:       "1.3.6.1.4.1.47017.0.3",
	monitor.TrapPowerSupplyFailure: "1.3.6.1.4.1.47017.0.4",
}

// TrapEmitter sends SNMPv2c traps to the configured receiver. Each send
// opens its own UDP socket; traps are rare enough that a held connection
// buys nothing.
type TrapEmitter struct {
	target    string
	port      uint16
	community string
	started   time.Time
}

// NewTrapEmitter creates an emitter for the configured trap receiver.
func NewTrapEmitter(cfg config.SNMPConfig) *TrapEmitter {
	return &TrapEmitter{
		target:    cfg.TrapReceiver,
		port:      uint16(cfg.TrapPort),
		community: cfg.TrapCommunity,
		started:   time.Now(),
	}
}

const (
	defaultTrapTimeout = 5 * time.Second
	minTrapTimeout     = time.Second
)

// trapTimeout derives the exchange timeout from the dispatch context.
// gosnmp rejects non-positive timeouts, so an already-expired deadline gets
// a small floor and fails on the send instead.
func trapTimeout(ctx context.Context) time.Duration {
	timeout := defaultTrapTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout < minTrapTimeout {
		timeout = minTrapTimeout
	}
	return timeout
}

// SendTrap delivers event as a v2c trap. The context deadline bounds the
// whole exchange.
func (t *TrapEmitter) SendTrap(ctx context.Context, event monitor.Event) error {
	trap, err := t.buildTrap(event)
	if err != nil {
		return err
	}

	conn := &gosnmp.GoSNMP{
		Target:    t.target,
		Port:      t.port,
		Community: t.community,
		Version:   gosnmp.Version2c,
		Timeout:   trapTimeout(ctx),
		Retries:   1,
	}
	if err := conn.Connect(); err != nil {
		return fmt.Errorf("connect to trap receiver %s: %w", t.target, err)
	}
	defer conn.Conn.Close()

	if _, err := conn.SendTrap(trap); err != nil {
		return fmt.Errorf("send %s to %s: %w", event.TrapName, t.target, err)
	}
	return nil
}

// buildTrap assembles the varbind list: sysUpTime, snmpTrapOID, then the
// event's own bindings in order.
func (t *TrapEmitter) buildTrap(event monitor.Event) (gosnmp.SnmpTrap, error) {
	notificationOID, ok := trapOIDs[event.TrapName]
	if !ok {
		return gosnmp.SnmpTrap{}, fmt.Errorf("unknown trap name %q", event.TrapName)
	}

	variables := []gosnmp.SnmpPDU{
		{
			Name:  oidSysUpTime,
			Type:  gosnmp.TimeTicks,
			Value: uint32(time.Since(t.started) / (10 * time.Millisecond)),
		},
		{
			Name:  oidSnmpTrapOID,
			Type:  gosnmp.ObjectIdentifier,
			Value: notificationOID,
		},
	}
	for _, binding := range event.VarBindings {
		variables = append(variables, gosnmp.SnmpPDU{
			Name:  binding.OID,
			Type:  gosnmp.OctetString,
			Value: binding.Value,
		})
	}

	return gosnmp.SnmpTrap{Variables: variables}, nil
}
