package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// CycleMs returns the rounded millisecond period for a sample rate in Hz.
// rateHz==0 is coerced to 1 to avoid division by zero.
func CycleMs(rateHz uint16) uint32 {
	if rateHz == 0 {
		rateHz = 1
	}
	r := uint32(rateHz)
	return (1000 + r/2) / r
}
