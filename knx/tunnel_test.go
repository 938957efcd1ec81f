package knx

import (
	"net"
	"testing"
	"time"
)

// ─── fake server harness ────────────────────────────────────────────────
//
// A minimal stand-in KNXnet/IP server: two loopback UDP sockets, decoding
// whatever the client under test sends and handing it to the test over a
// channel so the test can script the exact response sequence each
// scenario needs. Mirrors the net.Pipe()-duo harness style used for
// protocol-session tests elsewhere in the corpus, adapted to UDP since
// that's this protocol's transport.

type serverFrame struct {
	socket socketKind
	frame  Frame
	from   *net.UDPAddr
}

type fakeServer struct {
	control *net.UDPConn
	data    *net.UDPConn
	frames  chan serverFrame
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	control, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen fake server control: %v", err)
	}
	data, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		control.Close() //nolint:errcheck
		t.Fatalf("listen fake server data: %v", err)
	}

	s := &fakeServer{control: control, data: data, frames: make(chan serverFrame, 32)}
	go s.readLoop(socketControl, control)
	go s.readLoop(socketData, data)
	t.Cleanup(func() {
		control.Close() //nolint:errcheck
		data.Close()    //nolint:errcheck
	})
	return s
}

func (s *fakeServer) readLoop(kind socketKind, conn *net.UDPConn) {
	buf := make([]byte, datagramBufSize)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		f, err := DecodeFrame(buf[:n])
		if err != nil {
			continue
		}
		s.frames <- serverFrame{socket: kind, frame: f, from: addr}
	}
}

func (s *fakeServer) controlPort() uint16 { return localPort(s.control) }
func (s *fakeServer) dataPort() uint16    { return localPort(s.data) }

func (s *fakeServer) sendControl(t *testing.T, f Frame, to *net.UDPAddr) {
	t.Helper()
	b, err := EncodeFrame(f)
	if err != nil {
		t.Fatalf("encode %T: %v", f, err)
	}
	if _, err := s.control.WriteToUDP(b, to); err != nil {
		t.Fatalf("write control: %v", err)
	}
}

func (s *fakeServer) sendData(t *testing.T, f Frame, to *net.UDPAddr) {
	t.Helper()
	b, err := EncodeFrame(f)
	if err != nil {
		t.Fatalf("encode %T: %v", f, err)
	}
	if _, err := s.data.WriteToUDP(b, to); err != nil {
		t.Fatalf("write data: %v", err)
	}
}

func (s *fakeServer) await(t *testing.T, timeout time.Duration) serverFrame {
	t.Helper()
	select {
	case f := <-s.frames:
		return f
	case <-time.After(timeout):
		t.Fatal("timed out waiting for a frame from the client")
		return serverFrame{}
	}
}

// clientPeers is what the handshake reveals about the client under test:
// where its control and data sockets are, learned from the CONNECT_REQUEST
// itself rather than tracked separately.
type clientPeers struct {
	control *net.UDPAddr
	data    *net.UDPAddr
}

// connectServer drives the CONNECT_REQUEST/RESPONSE handshake, replying
// with channelID, and returns the client's control and data endpoints.
func (s *fakeServer) connectServer(t *testing.T, channelID byte) clientPeers {
	t.Helper()
	sf := s.await(t, 2*time.Second)
	req, ok := sf.frame.(ConnectRequest)
	if !ok {
		t.Fatalf("first frame = %T, want ConnectRequest", sf.frame)
	}
	resp := ConnectResponse{
		ChannelID:    channelID,
		Status:       StatusNoError,
		DataEndpoint: HPAI{IP: net.IPv4(127, 0, 0, 1), Port: s.dataPort()},
		CRD:          CRD{IndividualAddress: IndividualAddressFromUint16(0x1101)},
	}
	s.sendControl(t, resp, sf.from)
	return clientPeers{
		control: sf.from,
		data:    &net.UDPAddr{IP: req.DataEndpoint.IP, Port: int(req.DataEndpoint.Port)},
	}
}

// ─── test callbacks ─────────────────────────────────────────────────────

type testCallbacks struct {
	connect          chan struct{}
	disconnect       chan error
	telegrams        chan []byte
	acks             chan struct{}
	disconnectResult Result

	// onConnect, if set, overrides the default OK() result returned from
	// OnConnect — used to script an immediate outbound send right after
	// the handshake completes.
	onConnect func() Result
}

func newTestCallbacks() *testCallbacks {
	return &testCallbacks{
		connect:          make(chan struct{}, 1),
		disconnect:       make(chan error, 1),
		telegrams:        make(chan []byte, 8),
		acks:             make(chan struct{}, 8),
		disconnectResult: StopResult(),
	}
}

func (c *testCallbacks) Init() Result { return OK() }

func (c *testCallbacks) OnConnect() Result {
	select {
	case c.connect <- struct{}{}:
	default:
	}
	if c.onConnect != nil {
		return c.onConnect()
	}
	return OK()
}

func (c *testCallbacks) OnDisconnect(reason error) Result {
	select {
	case c.disconnect <- reason:
	default:
	}
	return c.disconnectResult
}

func (c *testCallbacks) OnTelegram(telegram []byte) Result {
	select {
	case c.telegrams <- telegram:
	default:
	}
	return OK()
}

func (c *testCallbacks) OnTelegramAck() Result {
	select {
	case c.acks <- struct{}{}:
	default:
	}
	return OK()
}

// HandleCast lets a test push a second telegram in right after connect,
// to exercise the at-most-one-in-flight rule.
func (c *testCallbacks) HandleCast(msg any) Result {
	if tg, ok := msg.([]byte); ok {
		return SendTelegram(tg)
	}
	return OK()
}

func (c *testCallbacks) HandleCall(any) Result { return NoReply() }
func (c *testCallbacks) HandleInfo(any) Result { return OK() }

func shortOpts(server *fakeServer) Options {
	return Options{
		LocalIP:           net.IPv4(127, 0, 0, 1),
		ServerIP:          net.IPv4(127, 0, 0, 1),
		ServerControlPort: server.controlPort(),

		HeartbeatInterval:              time.Minute, // disabled unless a test shortens it
		ConnectResponseTimeout:         2 * time.Second,
		ConnectionstateResponseTimeout: 30 * time.Millisecond,
		DisconnectResponseTimeout:      30 * time.Millisecond,
		TunnellingAckTimeout:           30 * time.Millisecond,
	}
}

func waitConnect(t *testing.T, cb *testCallbacks) {
	t.Helper()
	select {
	case <-cb.connect:
	case <-time.After(2 * time.Second):
		t.Fatal("OnConnect was not invoked")
	}
}

// ─── S1: connect handshake ──────────────────────────────────────────────

func TestTunnel_ConnectSuccess(t *testing.T) {
	server := newFakeServer(t)
	cb := newTestCallbacks()

	tun, err := Start(cb, shortOpts(server))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tun.Stop()

	server.connectServer(t, 7)
	waitConnect(t, cb)
}

func TestTunnel_ConnectResponseErrorStatus(t *testing.T) {
	server := newFakeServer(t)
	cb := newTestCallbacks()

	tun, err := Start(cb, shortOpts(server))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tun.Stop()

	sf := server.await(t, 2*time.Second)
	if _, ok := sf.frame.(ConnectRequest); !ok {
		t.Fatalf("got %T, want ConnectRequest", sf.frame)
	}
	server.sendControl(t, ConnectResponse{Status: StatusNoMoreConnections}, sf.from)

	select {
	case reason := <-cb.disconnect:
		pe, ok := reason.(*ProtocolError)
		if !ok {
			t.Fatalf("reason type = %T, want *ProtocolError", reason)
		}
		if pe.Kind != ReasonConnectResponseError {
			t.Errorf("Kind = %v, want %v", pe.Kind, ReasonConnectResponseError)
		}
		if pe.IsTimeout() {
			t.Error("IsTimeout() = true, want false for an explicit error status")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnDisconnect was not invoked after an error CONNECT_RESPONSE")
	}
}

// ─── S5: three consecutive heartbeat timeouts disconnect ────────────────

func TestTunnel_ThreeHeartbeatTimeoutsDisconnect(t *testing.T) {
	server := newFakeServer(t)
	cb := newTestCallbacks()

	opts := shortOpts(server)
	opts.HeartbeatInterval = 20 * time.Millisecond
	opts.ConnectionstateResponseTimeout = 20 * time.Millisecond
	opts.DisconnectResponseTimeout = 20 * time.Millisecond

	tun, err := Start(cb, opts)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tun.Stop()

	server.connectServer(t, 9)
	waitConnect(t, cb)

	// The server never answers CONNECTIONSTATE_REQUEST: expect exactly
	// three attempts before the client moves to DISCONNECTING.
	for i := 0; i < maxHeartbeatFailures; i++ {
		sf := server.await(t, 2*time.Second)
		if _, ok := sf.frame.(ConnectionstateRequest); !ok {
			t.Fatalf("attempt %d: got %T, want ConnectionstateRequest", i+1, sf.frame)
		}
	}

	sf := server.await(t, 2*time.Second)
	if _, ok := sf.frame.(DisconnectRequest); !ok {
		t.Fatalf("got %T, want DisconnectRequest after exhausting heartbeat retries", sf.frame)
	}

	select {
	case reason := <-cb.disconnect:
		pe, ok := reason.(*ProtocolError)
		if !ok {
			t.Fatalf("reason type = %T, want *ProtocolError", reason)
		}
		if pe.Kind != ReasonConnectionstateResponseError {
			t.Errorf("Kind = %v, want %v", pe.Kind, ReasonConnectionstateResponseError)
		}
		if !pe.IsTimeout() {
			t.Error("IsTimeout() = false, want true: no response was ever sent")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnDisconnect was not invoked after exhausting heartbeat retries")
	}
}

// ─── S6: duplicate TUNNELLING_REQUEST seq ───────────────────────────────

func TestTunnel_DuplicateSeqRequestAcksTwiceDeliversOnce(t *testing.T) {
	server := newFakeServer(t)
	cb := newTestCallbacks()

	tun, err := Start(cb, shortOpts(server))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tun.Stop()

	peers := server.connectServer(t, 3)
	waitConnect(t, cb)

	telegram := []byte{MessageCodeLDataInd, 0x00, 0xBC, 0x11, 0x01, 0x08, 0x01, 0x01, 0x00, 0x80}
	req := TunnellingRequest{ChannelID: 3, Seq: 0, Telegram: telegram}

	server.sendData(t, req, peers.data)
	server.sendData(t, req, peers.data) // exact duplicate, same seq

	for i := 0; i < 2; i++ {
		sf := server.await(t, 2*time.Second)
		if sf.socket != socketData {
			t.Fatalf("ack %d arrived on %v socket, want data", i+1, sf.socket)
		}
		ack, ok := sf.frame.(TunnellingAck)
		if !ok {
			t.Fatalf("ack %d: got %T, want TunnellingAck", i+1, sf.frame)
		}
		if ack.Seq != 0 || ack.Status != StatusNoError {
			t.Errorf("ack %d = %+v, want Seq=0 Status=StatusNoError", i+1, ack)
		}
	}

	select {
	case got := <-cb.telegrams:
		if string(got) != string(telegram) {
			t.Errorf("delivered telegram = % X, want % X", got, telegram)
		}
	case <-time.After(time.Second):
		t.Fatal("OnTelegram was never invoked")
	}

	select {
	case <-cb.telegrams:
		t.Fatal("OnTelegram invoked a second time for a duplicate sequence number")
	case <-time.After(200 * time.Millisecond):
	}
}

// ─── P5: at most one TUNNELLING_REQUEST in flight ───────────────────────

func TestTunnel_SecondSendDiscardedWhileOneInFlight(t *testing.T) {
	server := newFakeServer(t)
	cb := newTestCallbacks()

	first := []byte{0xAA}
	second := []byte{0xBB}
	cb.onConnect = func() Result { return SendTelegram(first) }

	// A long ack timeout keeps the ack timer from resending the first
	// telegram during the 200ms observation window below.
	opts := shortOpts(server)
	opts.TunnellingAckTimeout = 2 * time.Second

	tun, err := Start(cb, opts)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tun.Stop()

	peers := server.connectServer(t, 5)
	waitConnect(t, cb)

	// Cast a second telegram immediately; the actor processes it before the
	// server has acked the first, so it must be discarded rather than
	// queued or interleaved.
	tun.Cast(second)

	sf := server.await(t, 2*time.Second)
	gotReq, ok := sf.frame.(TunnellingRequest)
	if !ok {
		t.Fatalf("got %T, want TunnellingRequest", sf.frame)
	}
	if string(gotReq.Telegram) != string(first) {
		t.Errorf("first in-flight telegram = % X, want % X", gotReq.Telegram, first)
	}

	select {
	case sf2 := <-server.frames:
		if req2, ok := sf2.frame.(TunnellingRequest); ok {
			t.Fatalf("received a second TUNNELLING_REQUEST %X while one was still in flight", req2.Telegram)
		}
	case <-time.After(200 * time.Millisecond):
		// No second request arrived: the discard worked as intended.
	}

	server.sendData(t, TunnellingAck{ChannelID: 5, Seq: gotReq.Seq, Status: StatusNoError}, peers.data)
	select {
	case <-cb.acks:
	case <-time.After(2 * time.Second):
		t.Fatal("OnTelegramAck was not invoked after the ack")
	}
}
