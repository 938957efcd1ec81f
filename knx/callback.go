package knx

import "time"

// ResultKind tags the variant of a Result returned by a Callbacks method.
type ResultKind int

const (
	ResultOK ResultKind = iota
	ResultSendTelegram
	ResultReply
	ResultNoReply
	ResultStop
	ResultBackoff
)

// Result is the sum type every Callbacks (and MessageHandler) method
// returns: a single tagged struct carrying only the fields relevant to its
// Kind, rather than an interface per variant as Frame in frame.go uses,
// since the variants here are plain data.
type Result struct {
	Kind ResultKind

	// Telegram is the raw cEMI bytes to send. Set only for ResultSendTelegram.
	Telegram []byte

	// Reply is handed back to the caller of Tunnel.Call. Set only for ResultReply.
	Reply any

	// BackoffMS is the delay before re-entering CONNECTING. Set only on a
	// ResultBackoff returned from OnDisconnect; <= 0 reconnects immediately.
	BackoffMS int
}

// OK is the common no-op result: do nothing, state unchanged.
func OK() Result { return Result{Kind: ResultOK} }

// SendTelegram returns a Result instructing the tunnel to send telegram on
// the data channel, subject to the at-most-one-in-flight rule.
func SendTelegram(telegram []byte) Result {
	return Result{Kind: ResultSendTelegram, Telegram: telegram}
}

// Backoff returns a Result for OnDisconnect instructing the tunnel to wait
// d before re-entering CONNECTING. d <= 0 reconnects immediately.
func Backoff(d time.Duration) Result {
	return Result{Kind: ResultBackoff, BackoffMS: int(d.Milliseconds())}
}

// StopResult returns a Result that permanently terminates the tunnel.
func StopResult() Result { return Result{Kind: ResultStop} }

// ReplyWith returns a Result carrying v back to the caller of Tunnel.Call.
func ReplyWith(v any) Result { return Result{Kind: ResultReply, Reply: v} }

// NoReply returns a Result for HandleCall that defers the reply; Tunnel.Call
// still returns nil immediately in that case.
func NoReply() Result { return Result{Kind: ResultNoReply} }

// Callbacks is the behavior a host implements to drive a Tunnel. All
// methods run synchronously on the tunnel's single actor goroutine and
// must not block longer than TunnellingAckTimeout.
type Callbacks interface {
	// Init runs once, after the tunnel opens its sockets and before it
	// sends CONNECT_REQUEST. Returning StopResult() aborts Start.
	Init() Result

	// OnConnect runs after a successful CONNECT_RESPONSE.
	OnConnect() Result

	// OnDisconnect reports why the tunnel left CONNECTED or CONNECTING.
	// Return Backoff(d) to reconnect after d, or StopResult() to terminate
	// permanently.
	OnDisconnect(reason error) Result

	// OnTelegram delivers an inbound cEMI telegram body in remote_seq
	// order; duplicates and out-of-order arrivals are filtered before this
	// is called.
	OnTelegram(telegram []byte) Result

	// OnTelegramAck runs after the peer acknowledges an outbound telegram.
	OnTelegramAck() Result
}

// MessageHandler is an optional interface a Callbacks implementation may
// additionally satisfy, to receive messages submitted via Tunnel.Cast and
// Tunnel.Call. A Callbacks value that doesn't implement it simply drops
// such messages (logged at debug).
type MessageHandler interface {
	HandleCast(msg any) Result
	HandleCall(msg any) Result
	HandleInfo(msg any) Result
}
