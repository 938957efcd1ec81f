// Package knx implements a KNXnet/IP Tunnelling client: wire codecs for the
// KNXnet/IP frame formats and KNX datapoint types, plus a long-running
// tunnel connection manager.
//
// # Architecture
//
// The package has two tightly coupled halves:
//
//   - Codecs: bidirectional, bit-exact encode/decode for KNXnet/IP frames
//     (Connect, Connectionstate, Disconnect, Tunnelling service pairs),
//     embedded cEMI telegrams, and KNX datapoint values.
//   - Tunnel: a single-threaded cooperative actor that opens two UDP
//     sockets (control and data), drives the connect/heartbeat/disconnect
//     state machine, and delivers/accepts telegrams through a Callbacks
//     interface supplied by the caller.
//
// The package never touches a config file, a database, or a concrete
// logging backend; it accepts a narrow Logger interface and leaves wiring
// those concerns to the caller (see the sibling config, logging, and
// recorder packages for one way to do that).
//
// # Addresses
//
// KNX individual addresses use area.line.device notation ("1.1.5");
// group addresses use the 3-level main/middle/sub form ("1/2/3"), the
// 2-level main/sub form, or a raw 16-bit value.
//
//	addr, err := knx.ParseGroupAddress("1/2/3")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(addr.String()) // "1/2/3"
//
// # Datapoint Types
//
// KNX defines standardised data formats (DPTs). This package covers the
// common main groups used for group communication: 1 (boolean), 2 (1-bit
// controlled), 3 (3-bit controlled), 4 (character), 5 (8-bit unsigned),
// 6 (8-bit signed), 7/8 (16-bit unsigned/signed), 9 (16-bit float), 10/11
// (time/date), 12–14 (32-bit values), 15 (access data), 16 (character
// strings), 18 (scene control), and 20 (1-byte enumerations).
//
// # Connecting a tunnel
//
//	tun, err := knx.Start(callbacks, knx.Options{
//	    ServerIP:          net.ParseIP("192.168.1.20"),
//	    ServerControlPort: 3671,
//	})
//
// callbacks implements knx.Callbacks; Start blocks only long enough to
// complete Init and send the initial CONNECT_REQUEST, then returns a
// *Tunnel whose actor goroutine drives the rest of the session.
//
// # Thread Safety
//
// A *Tunnel's exported methods (Cast, Call, Stop) are safe for concurrent
// use; Callbacks methods all run on the tunnel's own actor goroutine and
// must not block.
package knx
