package knx

import (
	"bytes"
	"net"
	"testing"
)

// ─── ConnectRequest (S1 scenario) ────────────────────────────────────

func TestEncodeFrame_ConnectRequest_Scenario(t *testing.T) {
	f := ConnectRequest{
		ControlEndpoint: HPAI{IP: net.IPv4(10, 10, 42, 2), Port: 0xF69E},
		DataEndpoint:    HPAI{IP: net.IPv4(192, 168, 10, 99), Port: 0x86D0},
		CRI:             CRI{KNXLayer: KNXLayerLinkLayer},
	}

	got, err := EncodeFrame(f)
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}

	want := []byte{
		0x06, 0x10, 0x02, 0x05, 0x00, 0x1A,
		0x08, 0x01, 0x0A, 0x0A, 0x2A, 0x02, 0xF6, 0x9E,
		0x08, 0x01, 0xC0, 0xA8, 0x0A, 0x63, 0x86, 0xD0,
		0x04, 0x04, 0x02, 0x00,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeFrame(ConnectRequest) = %X, want %X", got, want)
	}
}

func TestDecodeFrame_ConnectRequest_Scenario(t *testing.T) {
	data := []byte{
		0x06, 0x10, 0x02, 0x05, 0x00, 0x1A,
		0x08, 0x01, 0x0A, 0x0A, 0x2A, 0x02, 0xF6, 0x9E,
		0x08, 0x01, 0xC0, 0xA8, 0x0A, 0x63, 0x86, 0xD0,
		0x04, 0x04, 0x02, 0x00,
	}

	f, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	cr, ok := f.(ConnectRequest)
	if !ok {
		t.Fatalf("DecodeFrame() = %T, want ConnectRequest", f)
	}
	if !cr.ControlEndpoint.IP.Equal(net.IPv4(10, 10, 42, 2)) || cr.ControlEndpoint.Port != 0xF69E {
		t.Errorf("ControlEndpoint = %+v, want 10.10.42.2:0xF69E", cr.ControlEndpoint)
	}
	if !cr.DataEndpoint.IP.Equal(net.IPv4(192, 168, 10, 99)) || cr.DataEndpoint.Port != 0x86D0 {
		t.Errorf("DataEndpoint = %+v, want 192.168.10.99:0x86D0", cr.DataEndpoint)
	}
	if cr.CRI.KNXLayer != KNXLayerLinkLayer {
		t.Errorf("CRI.KNXLayer = 0x%02X, want 0x%02X", cr.CRI.KNXLayer, KNXLayerLinkLayer)
	}
}

// ─── Round trip across all frame types ───────────────────────────────

func TestFrameRoundTrip(t *testing.T) {
	endpoint := HPAI{IP: net.IPv4(192, 168, 1, 10), Port: 3671}

	frames := []Frame{
		ConnectRequest{
			ControlEndpoint: endpoint,
			DataEndpoint:    endpoint,
			CRI:             CRI{KNXLayer: KNXLayerLinkLayer},
		},
		ConnectResponse{
			ChannelID:    1,
			Status:       StatusNoError,
			DataEndpoint: endpoint,
			CRD:          CRD{IndividualAddress: IndividualAddress{Area: 1, Line: 1, Device: 1}},
		},
		ConnectionstateRequest{ChannelID: 1, ControlEndpoint: endpoint},
		ConnectionstateResponse{ChannelID: 1, Status: StatusNoError},
		DisconnectRequest{ChannelID: 1, ControlEndpoint: endpoint},
		DisconnectResponse{ChannelID: 1, Status: StatusNoError},
		TunnellingRequest{ChannelID: 1, Seq: 0, Telegram: []byte{0x11, 0x00, 0xBC, 0xE0, 0x00, 0x00, 0x0A, 0x03, 0x01, 0x00, 0x81}},
		TunnellingAck{ChannelID: 1, Seq: 0, Status: StatusNoError},
	}

	for _, f := range frames {
		encoded, err := EncodeFrame(f)
		if err != nil {
			t.Fatalf("EncodeFrame(%T) error = %v", f, err)
		}
		decoded, err := DecodeFrame(encoded)
		if err != nil {
			t.Fatalf("DecodeFrame() error = %v", err)
		}
		if decoded.ServiceType() != f.ServiceType() {
			t.Errorf("round trip service type mismatch: got 0x%04X, want 0x%04X", decoded.ServiceType(), f.ServiceType())
		}
	}
}

// ─── Malformed frames ─────────────────────────────────────────────────

func TestDecodeFrame_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"too short", []byte{0x06, 0x10}},
		{"bad header size", []byte{0x07, 0x10, 0x02, 0x05, 0x00, 0x06}},
		{"bad version", []byte{0x06, 0x11, 0x02, 0x05, 0x00, 0x06}},
		{"length mismatch", []byte{0x06, 0x10, 0x02, 0x05, 0xFF, 0xFF}},
		{"total_length shorter than header", []byte{0x06, 0x10, 0x02, 0x05, 0x00, 0x03}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeFrame(tt.data); err == nil {
				t.Error("DecodeFrame() expected error, got nil")
			}
		})
	}
}

func TestDecodeFrame_UnknownService(t *testing.T) {
	data := []byte{0x06, 0x10, 0xFF, 0xFF, 0x00, 0x06}
	f, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame() unexpected error = %v", err)
	}
	uf, ok := f.(UnknownFrame)
	if !ok {
		t.Fatalf("DecodeFrame() = %T, want UnknownFrame", f)
	}
	if uf.Service != 0xFFFF {
		t.Errorf("UnknownFrame.Service = 0x%04X, want 0xFFFF", uf.Service)
	}
}

// ─── HPAI ─────────────────────────────────────────────────────────────

func TestHPAIRejectsIPv6(t *testing.T) {
	f := ConnectionstateRequest{
		ChannelID:       1,
		ControlEndpoint: HPAI{IP: net.ParseIP("::1"), Port: 3671},
	}
	if _, err := EncodeFrame(f); err == nil {
		t.Error("EncodeFrame() expected error for IPv6 HPAI endpoint")
	}
}
