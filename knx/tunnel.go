package knx

import (
	"fmt"
	"net"
	"time"
)

// maxHeartbeatFailures is the number of consecutive CONNECTIONSTATE_REQUEST
// attempts (response error or timeout) tolerated before the tunnel gives up
// and moves to DISCONNECTING. See S5.
const maxHeartbeatFailures = 3

// tunnelState is one node of the state machine in §4.6. stateReconnectWait
// is an implementation-only addition: the wire protocol has nothing to say
// during a user-controlled backoff wait, so it isn't one of the spec's
// named states, but Stop must still be able to interrupt it.
type tunnelState int

const (
	stateInit tunnelState = iota
	stateConnecting
	stateConnected
	stateHeartbeatWait
	stateDisconnecting
	stateReconnectWait
	stateDisconnected
)

func (s tunnelState) String() string {
	switch s {
	case stateInit:
		return "INIT"
	case stateConnecting:
		return "CONNECTING"
	case stateConnected:
		return "CONNECTED"
	case stateHeartbeatWait:
		return "HEARTBEAT_WAIT"
	case stateDisconnecting:
		return "DISCONNECTING"
	case stateReconnectWait:
		return "RECONNECT_WAIT"
	case stateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// loopAction tells run's dispatch loop whether to keep processing events
// or tear the tunnel down for good.
type loopAction int

const (
	actionContinue loopAction = iota
	actionStop
)

// messageKind distinguishes the three arbitrary-message channels a host
// can use, plus the internal stop signal.
type messageKind int

const (
	msgCast messageKind = iota
	msgCall
	msgInfo
	msgStop
)

type userMessage struct {
	kind  messageKind
	value any
	reply chan any // non-nil only for msgCall
}

// Tunnel is a KNXnet/IP tunnelling client: a single-threaded cooperative
// actor serializing UDP reads, timer firings, and user-submitted messages
// through one event loop, per §5. Construct with Start; there is no
// exported zero value.
type Tunnel struct {
	opts      Options
	callbacks Callbacks
	logger    Logger

	transport *transport
	timers    *timerSet
	messages  chan userMessage
	stopped   chan struct{}

	state     tunnelState
	channelID byte

	localSeq  byte // our outbound TUNNELLING_REQUEST sequence counter
	remoteSeq byte // next sequence expected from the server

	pendingRequest     *TunnellingRequest // at most one in flight, per P5
	ackFailCount       int
	heartbeatFailCount int

	// pendingReason holds the disconnect cause while DISCONNECTING awaits
	// its response or timeout, delivered to OnDisconnect once that
	// round-trip completes.
	pendingReason *ProtocolError
}

// Start opens the control and data sockets, runs callbacks.Init, and on
// success begins the CONNECTING handshake before returning. The actor
// goroutine then drives the rest of the state machine until Stop is called
// or a callback returns StopResult().
func Start(callbacks Callbacks, opts Options) (*Tunnel, error) {
	opts = opts.withDefaults()

	tr, err := newTransport(opts)
	if err != nil {
		return nil, err
	}

	t := &Tunnel{
		opts:      opts,
		callbacks: callbacks,
		logger:    opts.Logger,
		transport: tr,
		timers:    newTimerSet(),
		messages:  make(chan userMessage, 16),
		stopped:   make(chan struct{}),
		state:     stateInit,
	}

	if res := callbacks.Init(); res.Kind == ResultStop {
		tr.close()
		close(t.stopped)
		return nil, ErrClientStopped
	}

	if err := t.enterConnecting(); err != nil {
		tr.close()
		close(t.stopped)
		return nil, err
	}

	go t.run()
	return t, nil
}

// Cast submits msg for asynchronous handling by Callbacks.HandleCast (if
// implemented); it does not wait for a response.
func (t *Tunnel) Cast(msg any) {
	select {
	case t.messages <- userMessage{kind: msgCast, value: msg}:
	case <-t.stopped:
	}
}

// Call submits msg to Callbacks.HandleCall (if implemented) and blocks for
// its reply. Returns nil if the tunnel has stopped or does not implement
// MessageHandler.
func (t *Tunnel) Call(msg any) any {
	reply := make(chan any, 1)
	select {
	case t.messages <- userMessage{kind: msgCall, value: msg, reply: reply}:
	case <-t.stopped:
		return nil
	}
	select {
	case r := <-reply:
		return r
	case <-t.stopped:
		return nil
	}
}

// Stop permanently terminates the tunnel: if connected, it makes a
// best-effort attempt to send DISCONNECT_REQUEST, then closes both
// sockets. Stop blocks until teardown completes.
func (t *Tunnel) Stop() {
	select {
	case t.messages <- userMessage{kind: msgStop}:
	case <-t.stopped:
		return
	}
	<-t.stopped
}

// run is the tunnel's single event-loop goroutine: a select over inbound
// datagrams, timer fires, and user messages, realizing the actor model
// from §5 ("option (a)" of §9's design notes).
func (t *Tunnel) run() {
	defer t.teardown()
	for {
		select {
		case dg, ok := <-t.transport.events:
			if !ok {
				return
			}
			if t.handleDatagram(dg) == actionStop {
				return
			}
		case ev := <-t.timers.events:
			if !t.timers.valid(ev) {
				continue
			}
			if t.handleTimer(ev.slot) == actionStop {
				return
			}
		case m := <-t.messages:
			if t.handleUserMessage(m) == actionStop {
				return
			}
		}
	}
}

func (t *Tunnel) teardown() {
	if t.hasChannel() {
		req := DisconnectRequest{ChannelID: t.channelID, ControlEndpoint: t.transport.controlHPAI(t.opts.LocalIP)}
		if err := t.transport.sendControl(req); err != nil {
			t.logger.Debug("best-effort DISCONNECT_REQUEST on stop failed", "error", err)
		}
	}
	t.timers.cancelAll()
	t.state = stateDisconnected
	t.transport.close()
	close(t.stopped)
}

// ─── Channel-id and state helpers ──────────────────────────────────────

// hasChannel reports whether channelID currently identifies a live (or
// tearing-down) connection, as opposed to being unset during INIT,
// CONNECTING, or a reconnect wait.
func (t *Tunnel) hasChannel() bool {
	switch t.state {
	case stateConnected, stateHeartbeatWait, stateDisconnecting:
		return true
	default:
		return false
	}
}

// acceptingTelegrams reports whether the tunnel currently processes
// TUNNELLING_REQUEST/ACK traffic. Scoped to CONNECTED and HEARTBEAT_WAIT:
// the channel is still valid in both, a heartbeat round-trip in flight
// doesn't stop bus traffic.
func (t *Tunnel) acceptingTelegrams() bool {
	return t.state == stateConnected || t.state == stateHeartbeatWait
}

// ─── Datagram dispatch ──────────────────────────────────────────────────

func (t *Tunnel) handleDatagram(dg rawDatagram) loopAction {
	f, err := DecodeFrame(dg.data)
	if err != nil {
		t.logger.Debug("dropping malformed datagram", "socket", dg.socket, "error", err)
		return actionContinue
	}

	switch v := f.(type) {
	case ConnectResponse:
		return t.onConnectResponse(v)
	case ConnectionstateResponse:
		return t.onConnectionstateResponse(v)
	case DisconnectRequest:
		return t.onDisconnectRequest(v)
	case DisconnectResponse:
		return t.onDisconnectResponse(v)
	case TunnellingRequest:
		return t.onTunnellingRequest(v)
	case TunnellingAck:
		return t.onTunnellingAck(v)
	case UnknownFrame:
		t.logger.Debug("ignoring unknown service frame", "service", fmt.Sprintf("0x%04X", v.Service))
		return actionContinue
	default:
		return actionContinue
	}
}

// ─── Timer dispatch ──────────────────────────────────────────────────────

func (t *Tunnel) handleTimer(slot timerSlotID) loopAction {
	switch slot {
	case timerConnectResponse:
		return t.onConnectResponseTimeout()
	case timerConnectionstateResponse:
		return t.onConnectionstateTimeout()
	case timerDisconnectResponse:
		return t.onDisconnectResponseTimeout()
	case timerTunnellingAck:
		return t.onTunnellingAckTimeout()
	case timerHeartbeat:
		return t.onHeartbeatFire()
	case timerReconnect:
		return t.onReconnectFire()
	default:
		return actionContinue
	}
}

// ─── CONNECTING ───────────────────────────────────────────────────────

// enterConnecting sends CONNECT_REQUEST and arms its response timer. Used
// both for the initial connect and every reconnect attempt.
func (t *Tunnel) enterConnecting() error {
	req := ConnectRequest{
		ControlEndpoint: t.transport.controlHPAI(t.opts.LocalIP),
		DataEndpoint:    t.transport.dataHPAI(t.opts.LocalIP),
		CRI:             CRI{KNXLayer: KNXLayerLinkLayer},
	}
	if err := t.transport.sendControl(req); err != nil {
		return fmt.Errorf("knx: send CONNECT_REQUEST: %w", err)
	}
	t.state = stateConnecting
	t.timers.arm(timerConnectResponse, t.opts.ConnectResponseTimeout)
	return nil
}

func (t *Tunnel) onConnectResponse(v ConnectResponse) loopAction {
	if t.state != stateConnecting {
		return actionContinue
	}
	t.timers.cancel(timerConnectResponse)
	if v.Status != StatusNoError {
		return t.failConnect(int(v.Status))
	}

	t.channelID = v.ChannelID
	t.transport.serverData = &net.UDPAddr{IP: v.DataEndpoint.IP, Port: int(v.DataEndpoint.Port)}
	t.localSeq = 0
	t.remoteSeq = 0
	t.state = stateConnected
	t.armHeartbeat()
	return t.deliver(t.callbacks.OnConnect())
}

func (t *Tunnel) onConnectResponseTimeout() loopAction {
	if t.state != stateConnecting {
		return actionContinue
	}
	return t.failConnect(-1)
}

func (t *Tunnel) failConnect(status int) loopAction {
	t.timers.cancel(timerConnectResponse)
	reason := &ProtocolError{Kind: ReasonConnectResponseError, Status: status}
	return t.reportDisconnect(reason)
}

// ─── CONNECTED / HEARTBEAT_WAIT ─────────────────────────────────────────

func (t *Tunnel) armHeartbeat() {
	t.timers.arm(timerHeartbeat, t.opts.HeartbeatInterval)
}

func (t *Tunnel) onHeartbeatFire() loopAction {
	if t.state != stateConnected {
		return actionContinue
	}
	return t.sendConnectionstateRequest()
}

// sendConnectionstateRequest sends CONNECTIONSTATE_REQUEST, bumps
// heartbeat_fail_count, and arms its response timer. Called both on the
// first heartbeat fire from CONNECTED and on each retry from
// HEARTBEAT_WAIT, per §4.6 step 4/6.
func (t *Tunnel) sendConnectionstateRequest() loopAction {
	req := ConnectionstateRequest{
		ChannelID:       t.channelID,
		ControlEndpoint: t.transport.controlHPAI(t.opts.LocalIP),
	}
	if err := t.transport.sendControl(req); err != nil {
		t.logger.Error("send CONNECTIONSTATE_REQUEST failed", "error", err)
	}
	t.heartbeatFailCount++
	t.state = stateHeartbeatWait
	t.timers.arm(timerConnectionstateResponse, t.opts.ConnectionstateResponseTimeout)
	return actionContinue
}

func (t *Tunnel) onConnectionstateResponse(v ConnectionstateResponse) loopAction {
	if t.state != stateHeartbeatWait || v.ChannelID != t.channelID {
		return actionContinue
	}
	t.timers.cancel(timerConnectionstateResponse)
	if v.Status == StatusNoError {
		t.heartbeatFailCount = 0
		t.state = stateConnected
		t.armHeartbeat()
		return actionContinue
	}
	return t.heartbeatFailOrDisconnect(int(v.Status))
}

func (t *Tunnel) onConnectionstateTimeout() loopAction {
	if t.state != stateHeartbeatWait {
		return actionContinue
	}
	return t.heartbeatFailOrDisconnect(-1)
}

func (t *Tunnel) heartbeatFailOrDisconnect(status int) loopAction {
	if t.heartbeatFailCount < maxHeartbeatFailures {
		return t.sendConnectionstateRequest()
	}
	reason := &ProtocolError{Kind: ReasonConnectionstateResponseError, Status: status}
	return t.enterDisconnecting(reason)
}

// ─── DISCONNECTING ────────────────────────────────────────────────────

// enterDisconnecting cancels every live timer, sends DISCONNECT_REQUEST,
// and arms its response timer. reason is delivered to OnDisconnect once
// the DISCONNECTING round-trip (or its timeout) completes.
func (t *Tunnel) enterDisconnecting(reason *ProtocolError) loopAction {
	t.timers.cancel(timerHeartbeat)
	t.timers.cancel(timerConnectionstateResponse)
	t.timers.cancel(timerTunnellingAck)
	t.pendingRequest = nil
	t.pendingReason = reason

	req := DisconnectRequest{
		ChannelID:       t.channelID,
		ControlEndpoint: t.transport.controlHPAI(t.opts.LocalIP),
	}
	if err := t.transport.sendControl(req); err != nil {
		t.logger.Error("send DISCONNECT_REQUEST failed", "error", err)
	}
	t.state = stateDisconnecting
	t.timers.arm(timerDisconnectResponse, t.opts.DisconnectResponseTimeout)
	return actionContinue
}

func (t *Tunnel) onDisconnectResponse(v DisconnectResponse) loopAction {
	if t.state != stateDisconnecting || v.ChannelID != t.channelID {
		t.logger.Debug("ignoring DISCONNECT_RESPONSE while not disconnecting", "channel_id", v.ChannelID)
		return actionContinue
	}
	t.timers.cancel(timerDisconnectResponse)
	return t.finishDisconnect()
}

func (t *Tunnel) onDisconnectResponseTimeout() loopAction {
	if t.state != stateDisconnecting {
		return actionContinue
	}
	return t.finishDisconnect()
}

func (t *Tunnel) finishDisconnect() loopAction {
	reason := t.pendingReason
	t.pendingReason = nil
	t.channelID = 0
	t.transport.serverData = nil
	if reason == nil {
		// Defensive: finishDisconnect should only run after
		// enterDisconnecting set a reason.
		reason = &ProtocolError{Kind: ReasonDisconnectRequested, Status: -1}
	}
	return t.reportDisconnect(reason)
}

// onDisconnectRequest handles the server-initiated teardown of §4.6 step
// 7, which applies in any state that currently has a live channel_id.
func (t *Tunnel) onDisconnectRequest(v DisconnectRequest) loopAction {
	if !t.hasChannel() || v.ChannelID != t.channelID {
		return actionContinue
	}
	t.timers.cancelAll()

	resp := DisconnectResponse{ChannelID: t.channelID, Status: StatusNoError}
	if err := t.transport.sendControl(resp); err != nil {
		t.logger.Error("send DISCONNECT_RESPONSE failed", "error", err)
	}

	t.channelID = 0
	t.pendingRequest = nil
	t.transport.serverData = nil

	reason := &ProtocolError{Kind: ReasonDisconnectRequested, Status: -1}
	return t.reportDisconnect(reason)
}

// ─── Reconnection / backoff ──────────────────────────────────────────────

// reportDisconnect invokes OnDisconnect and acts on its Result: StopResult
// terminates the actor, otherwise the returned backoff (possibly zero)
// governs when CONNECTING is re-entered.
func (t *Tunnel) reportDisconnect(reason error) loopAction {
	res := t.callbacks.OnDisconnect(reason)
	if res.Kind == ResultStop {
		return actionStop
	}

	backoff := time.Duration(res.BackoffMS) * time.Millisecond
	if backoff <= 0 {
		if err := t.enterConnecting(); err != nil {
			t.logger.Error("reconnect failed", "error", err)
			return actionStop
		}
		return actionContinue
	}

	t.state = stateReconnectWait
	t.timers.arm(timerReconnect, backoff)
	return actionContinue
}

func (t *Tunnel) onReconnectFire() loopAction {
	if t.state != stateReconnectWait {
		return actionContinue
	}
	if err := t.enterConnecting(); err != nil {
		t.logger.Error("reconnect failed", "error", err)
		return actionStop
	}
	return actionContinue
}

// ─── Tunnelling request/ack (CONNECTED / HEARTBEAT_WAIT) ─────────────────

func (t *Tunnel) onTunnellingRequest(v TunnellingRequest) loopAction {
	if !t.acceptingTelegrams() || v.ChannelID != t.channelID {
		return actionContinue
	}

	switch {
	case v.Seq == t.remoteSeq:
		t.ackTunnellingRequest(v.Seq)
		t.remoteSeq++ // byte arithmetic wraps 255 -> 0
		return t.deliver(t.callbacks.OnTelegram(v.Telegram))

	case v.Seq == t.remoteSeq-1:
		// Duplicate of the last delivered request: resend the ack, skip
		// the callback. Byte subtraction wraps correctly at 0 -> 255.
		t.ackTunnellingRequest(v.Seq)
		return actionContinue

	default:
		// Out of order: drop silently, never advance remote_seq.
		return actionContinue
	}
}

func (t *Tunnel) ackTunnellingRequest(seq byte) {
	ack := TunnellingAck{ChannelID: t.channelID, Seq: seq, Status: StatusNoError}
	if err := t.transport.sendData(ack); err != nil {
		t.logger.Error("send TUNNELLING_ACK failed", "error", err)
	}
}

func (t *Tunnel) onTunnellingAck(v TunnellingAck) loopAction {
	if !t.acceptingTelegrams() || v.ChannelID != t.channelID || t.pendingRequest == nil {
		return actionContinue
	}
	if v.Seq != t.pendingRequest.Seq {
		// Stale ack for a sequence we no longer have in flight.
		return actionContinue
	}
	if v.Status == StatusNoError {
		t.timers.cancel(timerTunnellingAck)
		t.localSeq++
		t.pendingRequest = nil
		t.ackFailCount = 0
		return t.deliver(t.callbacks.OnTelegramAck())
	}
	return t.ackFailOrDisconnect(int(v.Status))
}

// ackFailOrDisconnect handles an explicit error-status TUNNELLING_ACK: a
// single resend, then straight to DISCONNECTING (unlike the timer-fire
// path, which tolerates one retry before giving up).
func (t *Tunnel) ackFailOrDisconnect(status int) loopAction {
	t.timers.cancel(timerTunnellingAck)
	t.resendPending()
	reason := &ProtocolError{Kind: ReasonTunnellingAckError, Status: status}
	return t.enterDisconnecting(reason)
}

func (t *Tunnel) onTunnellingAckTimeout() loopAction {
	if !t.acceptingTelegrams() || t.pendingRequest == nil {
		return actionContinue
	}
	t.ackFailCount++
	if t.ackFailCount == 1 {
		t.resendPending()
		t.timers.arm(timerTunnellingAck, t.opts.TunnellingAckTimeout)
		return actionContinue
	}
	t.resendPending()
	reason := &ProtocolError{Kind: ReasonTunnellingAckError, Status: -1}
	return t.enterDisconnecting(reason)
}

func (t *Tunnel) resendPending() {
	if t.pendingRequest == nil {
		return
	}
	if err := t.transport.sendData(*t.pendingRequest); err != nil {
		t.logger.Error("resend TUNNELLING_REQUEST failed", "error", err)
	}
}

// sendTelegram implements the outbound rule of §4.6: at most one request
// in flight. A telegram offered while one is already pending is discarded,
// per P5.
func (t *Tunnel) sendTelegram(raw []byte) {
	if !t.acceptingTelegrams() {
		t.logger.Debug("dropping send_telegram result: tunnel not connected")
		return
	}
	if t.pendingRequest != nil {
		t.logger.Info("discarding outbound telegram: request already in flight")
		return
	}
	req := TunnellingRequest{ChannelID: t.channelID, Seq: t.localSeq, Telegram: raw}
	if err := t.transport.sendData(req); err != nil {
		t.logger.Error("send TUNNELLING_REQUEST failed", "error", err)
		return
	}
	t.pendingRequest = &req
	t.timers.arm(timerTunnellingAck, t.opts.TunnellingAckTimeout)
}

// ─── Callback result plumbing ────────────────────────────────────────────

// deliver applies the side effects common to any Callbacks result: a
// ResultStop terminates the actor, a ResultSendTelegram triggers an
// outbound send. Other kinds (OK, Reply, NoReply, Backoff) carry no
// further action here — Backoff is only meaningful from OnDisconnect,
// handled directly by reportDisconnect instead.
func (t *Tunnel) deliver(res Result) loopAction {
	switch res.Kind {
	case ResultStop:
		return actionStop
	case ResultSendTelegram:
		t.sendTelegram(res.Telegram)
	}
	return actionContinue
}

// ─── User messages ───────────────────────────────────────────────────────

func (t *Tunnel) handleUserMessage(m userMessage) loopAction {
	if m.kind == msgStop {
		return actionStop
	}

	mh, ok := t.callbacks.(MessageHandler)
	if !ok {
		if m.kind == msgCall && m.reply != nil {
			m.reply <- nil
		}
		t.logger.Debug("dropping message: callbacks does not implement MessageHandler", "kind", m.kind)
		return actionContinue
	}

	switch m.kind {
	case msgCast:
		return t.deliver(mh.HandleCast(m.value))
	case msgCall:
		res := mh.HandleCall(m.value)
		if m.reply != nil {
			m.reply <- res.Reply
		}
		return t.deliver(res)
	case msgInfo:
		return t.deliver(mh.HandleInfo(m.value))
	default:
		return actionContinue
	}
}
