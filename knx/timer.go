package knx

import "time"

// timerSlotID names one of the tunnel's independent timer slots. Each slot
// is re-armed and canceled without affecting the others.
type timerSlotID int

const (
	timerConnectResponse timerSlotID = iota
	timerConnectionstateResponse
	timerDisconnectResponse
	timerTunnellingAck
	timerHeartbeat
	timerReconnect
	numTimerSlots
)

func (s timerSlotID) String() string {
	switch s {
	case timerConnectResponse:
		return "connect_response"
	case timerConnectionstateResponse:
		return "connectionstate_response"
	case timerDisconnectResponse:
		return "disconnect_response"
	case timerTunnellingAck:
		return "tunnelling_ack"
	case timerHeartbeat:
		return "heartbeat"
	case timerReconnect:
		return "reconnect"
	default:
		return "unknown"
	}
}

// timerEvent is posted to timerSet.events when a slot's time.Timer fires.
// gen pins it to the generation the timer was armed with, so the actor can
// tell a stale fire (from a timer since re-armed or canceled) from a live
// one without any locking.
type timerEvent struct {
	slot timerSlotID
	gen  uint64
}

// timerSet holds the independent re-armable timers for one tunnel
// instance. Every slot carries a generation counter bumped on every arm
// and cancel; a fired timerEvent is valid only if its generation still
// matches the slot's current generation. This realizes the "stale-timer
// policy" design note without relying on time.Timer.Stop's documented
// races around an already-fired channel.
type timerSet struct {
	slots [numTimerSlots]struct {
		timer *time.Timer
		gen   uint64
	}
	events chan timerEvent
}

func newTimerSet() *timerSet {
	return &timerSet{events: make(chan timerEvent, numTimerSlots)}
}

// arm (re)arms slot to fire after d, invalidating any previously scheduled
// fire for it.
func (ts *timerSet) arm(slot timerSlotID, d time.Duration) {
	ts.cancel(slot)
	gen := ts.slots[slot].gen
	ts.slots[slot].timer = time.AfterFunc(d, func() {
		select {
		case ts.events <- timerEvent{slot: slot, gen: gen}:
		default:
			// events is sized for one outstanding fire per slot; a full
			// channel here means the slot already has an event queued.
		}
	})
}

// cancel stops slot's timer, if any, and bumps its generation so any
// already-fired event for it is discarded as stale when it reaches the
// actor.
func (ts *timerSet) cancel(slot timerSlotID) {
	if ts.slots[slot].timer != nil {
		ts.slots[slot].timer.Stop()
		ts.slots[slot].timer = nil
	}
	ts.slots[slot].gen++
}

// cancelAll stops every slot. Called on teardown.
func (ts *timerSet) cancelAll() {
	for slot := timerSlotID(0); slot < numTimerSlots; slot++ {
		ts.cancel(slot)
	}
}

// valid reports whether e's generation still matches its slot's current
// generation, i.e. the timer has not been re-armed or canceled since e
// fired.
func (ts *timerSet) valid(e timerEvent) bool {
	return e.gen == ts.slots[e.slot].gen
}
