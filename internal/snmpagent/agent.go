package snmpagent

import (
	"github.com/rs/zerolog/log"
	"github.com/slayercat/GoSNMPServer"

	"github.com/mabott/snmp-agent-app/internal/config"
	agenterrors "github.com/mabott/snmp-agent-app/internal/errors"
)

// Responder serves GET/GETNEXT for the MIB scalars over UDP.
type Responder struct {
	server *GoSNMPServer.SNMPServer
	listen string
}

// NewResponder builds the SNMP server for the given MIB and community.
func NewResponder(cfg config.SNMPConfig, mib *MIB) *Responder {
	items := make([]*GoSNMPServer.PDUValueControlItem, 0, 2)
	for _, scalar := range mib.Scalars() {
		scalar := scalar
		items = append(items, &GoSNMPServer.PDUValueControlItem{
			OID:      scalar.OID,
			Type:     scalar.Type,
			OnGet:    scalar.Get,
			Document: scalar.Document,
		})
	}

	master := GoSNMPServer.MasterAgent{
		Logger: GoSNMPServer.NewDiscardLogger(),
		SubAgents: []*GoSNMPServer.SubAgent{
			{
				CommunityIDs: []string{cfg.Community},
				OIDs:         items,
			},
		},
	}

	return &Responder{
		server: GoSNMPServer.NewSNMPServer(master),
		listen: cfg.ListenAddress,
	}
}

// Start binds the UDP listener and serves requests on a new goroutine until
// Shutdown is called.
func (r *Responder) Start() error {
	if err := r.server.ListenUDP("udp", r.listen); err != nil {
		return agenterrors.WrapConfig("snmpListen", err)
	}
	log.Info().Str("listen", r.listen).Msg("SNMP responder listening")

	go func() {
		if err := r.server.ServeForever(); err != nil {
			log.Error().Err(err).Msg("SNMP responder stopped serving")
		}
	}()
	return nil
}

// Shutdown closes the listener and stops the serving goroutine.
func (r *Responder) Shutdown() {
	r.server.Shutdown()
	log.Info().Msg("SNMP responder stopped")
}
