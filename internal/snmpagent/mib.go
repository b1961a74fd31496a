// Package snmpagent exposes the agent's QUMULO-MIB values over SNMP and
// sends SNMPv2c traps for health events.
package snmpagent

import (
	"sync"

	"github.com/slayercat/GoSNMPServer"
	"github.com/gosnmp/gosnmp"
)

// Scalar OIDs under the Qumulo enterprise subtree.
const (
	OIDDescription = "1.3.6.1.4.1.47017.1.0"
	OIDPollCount   = "1.3.6.1.4.1.47017.2.0"
)

// Description is the fixed string served for the description scalar.
const Description = "My Description"

// Scalar binds one exported OID to the provider producing its current value.
// The table of scalars is fixed at startup; providers are plain functions so
// new exports need no new types.
type Scalar struct {
	OID      string
	Type     gosnmp.Asn1BER
	Document string
	Get      func() (interface{}, error)
}

// MIB holds the agent's exported values. The poll counter is written by the
// scheduler goroutine and read by the SNMP serving goroutine, so it sits
// behind a mutex.
type MIB struct {
	mu        sync.RWMutex
	pollCount uint32
}

// NewMIB creates a MIB with the poll counter at zero.
func NewMIB() *MIB {
	return &MIB{}
}

// IncrementPollCount adds one completed poll cycle.
func (m *MIB) IncrementPollCount() {
	m.mu.Lock()
	m.pollCount++
	m.mu.Unlock()
}

// PollCount returns the number of completed poll cycles.
func (m *MIB) PollCount() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pollCount
}

// Scalars returns the registration table served by the responder.
func (m *MIB) Scalars() []Scalar {
	return []Scalar{
		{
			OID:      OIDDescription,
			Type:     gosnmp.OctetString,
			Document: "testDescription",
			Get: func() (interface{}, error) {
				return GoSNMPServer.Asn1OctetStringWrap(Description), nil
			},
		},
		{
			OID:      OIDPollCount,
			Type:     gosnmp.Counter32,
			Document: "testCount",
			Get: func() (interface{}, error) {
				return GoSNMPServer.Asn1Counter32Wrap(uint(m.PollCount())), nil
			},
		},
	}
}
