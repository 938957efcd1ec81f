package knx

import (
	"net"
	"time"
)

// Options configures a Tunnel (C6). Only the fields below are recognized;
// the core never reads configuration from a file or environment variable
// itself — the config package parses YAML into an Options value for the
// demo binary's benefit, but this package stays ignorant of that.
type Options struct {
	// LocalIP is the bind address advertised in this tunnel's HPAIs.
	LocalIP net.IP

	// ControlPort is the local UDP port for the control channel. 0 binds
	// an ephemeral port.
	ControlPort uint16

	// DataPort is the local UDP port for the data channel. 0 binds an
	// ephemeral port.
	DataPort uint16

	// ServerIP is the KNXnet/IP server's address.
	ServerIP net.IP

	// ServerControlPort is the server's control channel port. The data
	// channel port is never configured here: it is learned from
	// CONNECT_RESPONSE's data-endpoint HPAI.
	ServerControlPort uint16

	// HeartbeatInterval is how long the tunnel sits idle in CONNECTED
	// before sending a CONNECTIONSTATE_REQUEST.
	HeartbeatInterval time.Duration

	// ConnectResponseTimeout bounds how long CONNECTING waits for
	// CONNECT_RESPONSE.
	ConnectResponseTimeout time.Duration

	// ConnectionstateResponseTimeout bounds how long HEARTBEAT_WAIT waits
	// for CONNECTIONSTATE_RESPONSE.
	ConnectionstateResponseTimeout time.Duration

	// DisconnectResponseTimeout bounds how long DISCONNECTING waits for
	// DISCONNECT_RESPONSE.
	DisconnectResponseTimeout time.Duration

	// TunnellingAckTimeout bounds how long a sent TUNNELLING_REQUEST waits
	// for its TUNNELLING_ACK before a retransmit.
	TunnellingAckTimeout time.Duration

	// Logger receives actor diagnostics (malformed datagrams, send
	// failures, ignored frames). Nil discards everything.
	//
	// Reconnect backoff: this library applies no default backoff of its
	// own on a connect or connectionstate failure — Callbacks.OnDisconnect
	// decides, via Backoff(d). Consider returning at least a few seconds
	// to avoid hammering a gateway that's still booting.
	Logger Logger
}

// DefaultOptions returns the spec-mandated defaults. A host overrides any
// subset (ServerIP and ServerControlPort, typically) before calling Start.
func DefaultOptions() Options {
	return Options{
		LocalIP:           net.IPv4(127, 0, 0, 1),
		ControlPort:       0,
		DataPort:          0,
		ServerIP:          net.IPv4(127, 0, 0, 1),
		ServerControlPort: 3671,

		HeartbeatInterval:              60 * time.Second,
		ConnectResponseTimeout:         10 * time.Second,
		ConnectionstateResponseTimeout: 10 * time.Second,
		DisconnectResponseTimeout:      5 * time.Second,
		TunnellingAckTimeout:           1 * time.Second,
	}
}

// withDefaults fills any zero-valued field with its spec default, so a
// host can build Options{ServerIP: addr} and leave the rest untouched.
// ControlPort/DataPort are left alone: 0 is itself the valid "ephemeral
// port" setting, not an unset marker.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.LocalIP == nil {
		o.LocalIP = d.LocalIP
	}
	if o.ServerIP == nil {
		o.ServerIP = d.ServerIP
	}
	if o.ServerControlPort == 0 {
		o.ServerControlPort = d.ServerControlPort
	}
	if o.HeartbeatInterval == 0 {
		o.HeartbeatInterval = d.HeartbeatInterval
	}
	if o.ConnectResponseTimeout == 0 {
		o.ConnectResponseTimeout = d.ConnectResponseTimeout
	}
	if o.ConnectionstateResponseTimeout == 0 {
		o.ConnectionstateResponseTimeout = d.ConnectionstateResponseTimeout
	}
	if o.DisconnectResponseTimeout == 0 {
		o.DisconnectResponseTimeout = d.DisconnectResponseTimeout
	}
	if o.TunnellingAckTimeout == 0 {
		o.TunnellingAckTimeout = d.TunnellingAckTimeout
	}
	if o.Logger == nil {
		o.Logger = nopLogger{}
	}
	return o
}
