package monitor

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind distinguishes a newly raised alert from a cleared one.
type EventKind string

const (
	EventAlert EventKind = "alert"
	EventClear EventKind = "clear"
)

// Category identifies a monitored condition.
type Category string

const (
	// CategoryConnectivity tracks reachability of the cluster REST API as a
	// single aggregate condition. It gates every other category: while the
	// cluster is unreachable their inputs are undefined.
	CategoryConnectivity Category = "cluster_connectivity"
	// CategoryNodes tracks "any node offline" as one aggregate condition.
	CategoryNodes Category = "node_aggregate"
	// CategoryDrives tracks "any drive dead" as one aggregate condition.
	CategoryDrives Category = "drive_aggregate"
	// CategoryPowerSupply tracks each power supply on each node
	// independently.
	CategoryPowerSupply Category = "power_supply"
)

// EntityKey names one tracked condition. Aggregate categories leave NodeID
// and Supply at their zero values; power supplies carry both.
type EntityKey struct {
	Category Category
	NodeID   int
	Supply   string
}

func (k EntityKey) String() string {
	if k.Category == CategoryPowerSupply {
		return fmt.Sprintf("%s/%d/%s", k.Category, k.NodeID, k.Supply)
	}
	return string(k.Category)
}

// Trap names the receiving NMS matches on. These are wire-compatibility
// constants; every clear notice uses nodesClearTrap.
const (
	TrapNodeDown           = "nodeDownTrap"
	TrapNodesClear         = "nodesClearTrap"
	TrapDriveFailure       = "driveFailureTrap"
	TrapPowerSupplyFailure = "powerSupplyFailureTrap"
)

// OIDs under the Qumulo enterprise subtree carried as power-supply-failure
// variable bindings.
const (
	OIDPowerSupplyNodeName = "1.3.6.1.4.1.47017.8"
	OIDPowerSupplyLabel    = "1.3.6.1.4.1.47017.11"
)

// VarBinding is one OID/value pair attached to an outbound trap.
type VarBinding struct {
	OID   string
	Value string
}

// Event is a single edge-triggered notification. It is produced by the
// tracker on a state transition, handed to the dispatcher once, and then
// discarded.
type Event struct {
	ID          string
	Kind        EventKind
	Key         EntityKey
	Subject     string
	Body        string
	TrapName    string
	VarBindings []VarBinding
	Timestamp   time.Time
}

func newEvent(kind EventKind, key EntityKey, subject, body, trapName string, bindings []VarBinding) *Event {
	return &Event{
		ID:          uuid.NewString(),
		Kind:        kind,
		Key:         key,
		Subject:     subject,
		Body:        body,
		TrapName:    trapName,
		VarBindings: bindings,
		Timestamp:   time.Now(),
	}
}
