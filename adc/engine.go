package adc

import (
	"signalcan-go/x/mathx"
	"signalcan-go/x/timex"
)

// Sample rate clamp bounds (Hz).
const (
	MinSampleRateHz = 1
	MaxSampleRateHz = 2000
)

// Engine drives the converter through non-blocking round-robin scan cycles.
// A cycle visits each enabled channel exactly once, in ascending circular
// order starting after the previously active channel. All methods must be
// called from the single cooperative loop.
type Engine struct {
	conv      Converter
	fullScale uint16

	enabled uint8
	raw     [NumChannels]uint16

	sampleRate uint16
	intervalMs uint32

	scanning     bool
	active       uint8
	lastActive   int8 // -1 before the first conversion
	remaining    uint8
	cycleStartMs int64
}

// NewEngine builds an engine around a converter, defaulting to 100 Hz with
// no channels enabled. The full-scale count is resolved here, once.
func NewEngine(conv Converter) *Engine {
	e := &Engine{
		conv:       conv,
		fullScale:  conv.Resolution().FullScale(),
		lastActive: -1,
	}
	e.SetSampleRate(100)
	return e
}

// FullScale returns the resolved full-scale count (4095 for 12-bit).
func (e *Engine) FullScale() uint16 { return e.fullScale }

// SetSampleRate clamps hz to [1, 2000] and recomputes the cycle interval.
// Takes effect at the next cycle boundary; an in-progress scan continues.
// Returns the applied rate.
func (e *Engine) SetSampleRate(hz uint16) uint16 {
	hz = mathx.Clamp(hz, uint16(MinSampleRateHz), uint16(MaxSampleRateHz))
	e.sampleRate = hz
	e.intervalMs = timex.CycleMs(hz)
	return hz
}

// SampleRate returns the applied rate in Hz.
func (e *Engine) SampleRate() uint16 { return e.sampleRate }

// IntervalMs returns the derived cycle interval.
func (e *Engine) IntervalMs() uint32 { return e.intervalMs }

// SetEnabled flips one channel. Out-of-range channels are a no-op: these
// setters have no return channel, so bad indices are deliberately ignored.
func (e *Engine) SetEnabled(ch uint8, on bool) {
	if ch >= NumChannels {
		return
	}
	if on {
		e.enabled |= 1 << ch
	} else {
		e.enabled &^= 1 << ch
	}
}

// SetEnableMask replaces the whole enable mask.
func (e *Engine) SetEnableMask(mask uint8) { e.enabled = mask }

// EnableMask returns the current enable mask.
func (e *Engine) EnableMask() uint8 { return e.enabled }

// Enabled reports one channel's enable state.
func (e *Engine) Enabled(ch uint8) bool {
	return ch < NumChannels && e.enabled&(1<<ch) != 0
}

// Raw returns a snapshot of the latest counts.
func (e *Engine) Raw() [NumChannels]uint16 { return e.raw }

// Scanning reports whether a cycle is in progress.
func (e *Engine) Scanning() bool { return e.scanning }

// Tick advances the state machine. It polls with a zero-wait check and never
// blocks; call it from every pass of the cooperative loop.
func (e *Engine) Tick(nowMs int64) {
	if !e.scanning {
		if e.enabled == 0 {
			return
		}
		if nowMs-e.cycleStartMs < int64(e.intervalMs) {
			return
		}
		e.beginCycle(nowMs)
		return
	}

	if !e.conv.Ready() {
		return
	}
	v := e.conv.Read()
	if v > uint32(e.fullScale) {
		v = uint32(e.fullScale)
	}
	// Stored even if the channel was disabled mid-conversion.
	e.raw[e.active] = uint16(v)
	e.lastActive = int8(e.active)
	e.advance(nowMs)
}

func (e *Engine) beginCycle(nowMs int64) {
	// Membership is snapshotted here; channels enabled mid-cycle wait for
	// the next one so every cycle visits each member exactly once.
	e.remaining = e.enabled
	start := uint8(0)
	if e.lastActive >= 0 {
		start = (uint8(e.lastActive) + 1) % NumChannels
	}
	ch, ok := nextSet(e.remaining, start)
	if !ok {
		return
	}
	e.cycleStartMs = nowMs
	if !e.startConversion(ch) {
		e.abort(nowMs)
		return
	}
	e.scanning = true
}

func (e *Engine) advance(nowMs int64) {
	e.remaining &^= 1 << e.active
	// Intersect with the live mask so a channel disabled mid-scan is skipped.
	ch, ok := nextSet(e.remaining&e.enabled, (e.active+1)%NumChannels)
	if !ok {
		e.scanning = false
		return
	}
	if !e.startConversion(ch) {
		e.abort(nowMs)
	}
}

func (e *Engine) startConversion(ch uint8) bool {
	if err := e.conv.SelectChannel(ch); err != nil {
		return false
	}
	if err := e.conv.Start(); err != nil {
		return false
	}
	e.active = ch
	return true
}

// abort returns to Idle and re-anchors the cycle clock so the retry waits a
// full interval instead of spinning on a faulted converter.
func (e *Engine) abort(nowMs int64) {
	e.scanning = false
	e.cycleStartMs = nowMs
}

// nextSet finds the first set bit searching circularly from start, wrapping
// at most once through all channels.
func nextSet(mask uint8, start uint8) (uint8, bool) {
	for i := uint8(0); i < NumChannels; i++ {
		ch := (start + i) % NumChannels
		if mask&(1<<ch) != 0 {
			return ch, true
		}
	}
	return 0, false
}
