package amp

import "sync/atomic"

// Event is a set of one-shot notifications raised by the audio thread.
type Event uint32

const (
	EventModelLoaded Event = 1 << iota
	EventModelCleared
	EventIRLeftLoaded
	EventIRLeftCleared
	EventIRRightLoaded
	EventIRRightCleared
	EventGateAttenuating
)

var eventNames = []struct {
	ev   Event
	name string
}{
	{EventModelLoaded, "model-loaded"},
	{EventModelCleared, "model-cleared"},
	{EventIRLeftLoaded, "ir-left-loaded"},
	{EventIRLeftCleared, "ir-left-cleared"},
	{EventIRRightLoaded, "ir-right-loaded"},
	{EventIRRightCleared, "ir-right-cleared"},
	{EventGateAttenuating, "gate-attenuating"},
}

// Has reports whether all bits of ev are set.
func (e Event) Has(ev Event) bool { return e&ev == ev }

// Names lists the set events in declaration order.
func (e Event) Names() []string {
	var out []string
	for _, n := range eventNames {
		if e.Has(n.ev) {
			out = append(out, n.name)
		}
	}
	return out
}

type eventFlags struct {
	bits atomic.Uint32
}

func (f *eventFlags) raise(ev Event) {
	if ev == 0 {
		return
	}
	for {
		old := f.bits.Load()
		if f.bits.CompareAndSwap(old, old|uint32(ev)) {
			return
		}
	}
}

func (f *eventFlags) drain() Event {
	return Event(f.bits.Swap(0))
}
