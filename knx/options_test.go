package knx

import (
	"net"
	"testing"
	"time"
)

func TestOptions_WithDefaults_FillsZeroValues(t *testing.T) {
	got := Options{ServerIP: net.IPv4(10, 0, 0, 1)}.withDefaults()

	want := DefaultOptions()
	if !got.LocalIP.Equal(want.LocalIP) {
		t.Errorf("LocalIP = %v, want %v", got.LocalIP, want.LocalIP)
	}
	if !got.ServerIP.Equal(net.IPv4(10, 0, 0, 1)) {
		t.Errorf("ServerIP overridden unexpectedly: %v", got.ServerIP)
	}
	if got.ServerControlPort != want.ServerControlPort {
		t.Errorf("ServerControlPort = %d, want %d", got.ServerControlPort, want.ServerControlPort)
	}
	if got.HeartbeatInterval != want.HeartbeatInterval {
		t.Errorf("HeartbeatInterval = %v, want %v", got.HeartbeatInterval, want.HeartbeatInterval)
	}
	if got.TunnellingAckTimeout != want.TunnellingAckTimeout {
		t.Errorf("TunnellingAckTimeout = %v, want %v", got.TunnellingAckTimeout, want.TunnellingAckTimeout)
	}
	if got.Logger == nil {
		t.Error("Logger = nil, want a nopLogger fallback")
	}
}

func TestOptions_WithDefaults_LeavesPortsAlone(t *testing.T) {
	got := Options{ControlPort: 0, DataPort: 0}.withDefaults()
	if got.ControlPort != 0 || got.DataPort != 0 {
		t.Errorf("ControlPort/DataPort = %d/%d, want 0/0 (ephemeral, not defaulted)", got.ControlPort, got.DataPort)
	}
}

func TestOptions_WithDefaults_PreservesExplicitValues(t *testing.T) {
	opts := Options{
		HeartbeatInterval:    5 * time.Second,
		TunnellingAckTimeout: 250 * time.Millisecond,
	}.withDefaults()

	if opts.HeartbeatInterval != 5*time.Second {
		t.Errorf("HeartbeatInterval overridden: %v", opts.HeartbeatInterval)
	}
	if opts.TunnellingAckTimeout != 250*time.Millisecond {
		t.Errorf("TunnellingAckTimeout overridden: %v", opts.TunnellingAckTimeout)
	}
}
