package knx

import (
	"fmt"
	"net"
)

// socketKind distinguishes the control and data UDP channels a tunnel
// keeps open, per §4.6/§6: control carries CONNECT/CONNECTIONSTATE/
// DISCONNECT traffic, data carries TUNNELLING_REQUEST/ACK.
type socketKind int

const (
	socketControl socketKind = iota
	socketData
)

func (s socketKind) String() string {
	if s == socketData {
		return "data"
	}
	return "control"
}

// rawDatagram is a raw UDP payload handed to the actor loop by a reader
// goroutine. Parsing happens on the actor; readers only copy bytes off the
// wire and tag them with the socket they arrived on (the sender address is
// not kept).
type rawDatagram struct {
	socket socketKind
	data   []byte
}

// datagramBufSize generously bounds a KNXnet/IP tunnelling frame: header
// (6) + largest body (CONNECT_REQUEST, two HPAIs + CRI) or a cEMI
// telegram wrapped in TUNNELLING_REQUEST (4-byte header + up to
// maxTPDUPayload-bounded telegram). 576 covers either with headroom.
const datagramBufSize = 576

// transport owns the two UDP sockets a tunnel uses and forwards inbound
// datagrams to events. It never touches the wire-level frame encoding
// itself beyond EncodeFrame/DecodeFrame — decoding is the actor's job.
type transport struct {
	control *net.UDPConn
	data    *net.UDPConn

	serverControl *net.UDPAddr

	// serverData is the server's data-channel endpoint, learned from
	// CONNECT_RESPONSE. Nil until then.
	serverData *net.UDPAddr

	events chan rawDatagram
	done   chan struct{}
}

func newTransport(opts Options) (*transport, error) {
	control, err := net.ListenUDP("udp4", &net.UDPAddr{IP: opts.LocalIP, Port: int(opts.ControlPort)})
	if err != nil {
		return nil, fmt.Errorf("knx: bind control socket: %w", err)
	}
	data, err := net.ListenUDP("udp4", &net.UDPAddr{IP: opts.LocalIP, Port: int(opts.DataPort)})
	if err != nil {
		control.Close() //nolint:errcheck // best-effort cleanup on the failure path
		return nil, fmt.Errorf("knx: bind data socket: %w", err)
	}

	t := &transport{
		control:       control,
		data:          data,
		serverControl: &net.UDPAddr{IP: opts.ServerIP, Port: int(opts.ServerControlPort)},
		events:        make(chan rawDatagram, 64),
		done:          make(chan struct{}),
	}
	go t.readLoop(socketControl, control)
	go t.readLoop(socketData, data)
	return t, nil
}

func (t *transport) readLoop(kind socketKind, conn *net.UDPConn) {
	buf := make([]byte, datagramBufSize)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			// Socket closed under us on teardown; nothing left to do.
			return
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		select {
		case t.events <- rawDatagram{socket: kind, data: datagram}:
		case <-t.done:
			return
		}
	}
}

// controlHPAI is this tunnel's local control endpoint, as advertised in
// CONNECT_REQUEST and CONNECTIONSTATE_REQUEST/DISCONNECT_REQUEST.
func (t *transport) controlHPAI(localIP net.IP) HPAI {
	return HPAI{IP: localIP, Port: localPort(t.control)}
}

// dataHPAI is this tunnel's local data endpoint, as advertised in
// CONNECT_REQUEST.
func (t *transport) dataHPAI(localIP net.IP) HPAI {
	return HPAI{IP: localIP, Port: localPort(t.data)}
}

func localPort(conn *net.UDPConn) uint16 {
	return uint16(conn.LocalAddr().(*net.UDPAddr).Port) //nolint:gosec // OS-assigned UDP ports fit in uint16
}

// sendControl encodes and sends f to the server's control endpoint.
func (t *transport) sendControl(f Frame) error {
	b, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	_, err = t.control.WriteToUDP(b, t.serverControl)
	return err
}

// sendData encodes and sends f to the server's data endpoint, learned
// from CONNECT_RESPONSE.
func (t *transport) sendData(f Frame) error {
	if t.serverData == nil {
		return fmt.Errorf("%w: server data endpoint not yet learned", ErrNotConnected)
	}
	b, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	_, err = t.data.WriteToUDP(b, t.serverData)
	return err
}

func (t *transport) close() {
	close(t.done)
	t.control.Close() //nolint:errcheck // best-effort on teardown
	t.data.Close()     //nolint:errcheck // best-effort on teardown
}
