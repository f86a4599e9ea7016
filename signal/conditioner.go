package signal

import "signalcan-go/adc"

// Status is a channel's 2-bit health code as carried in the status word.
type Status uint8

const (
	Inactive       Status = 0 // channel disabled, regardless of voltage
	Active         Status = 1 // enabled and inside [min, max], bounds inclusive
	OutOfRangeLow  Status = 2 // enabled, below min
	OutOfRangeHigh Status = 3 // enabled, above max
)

func (s Status) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	case OutOfRangeLow:
		return "oor_low"
	case OutOfRangeHigh:
		return "oor_high"
	}
	return "?"
}

// Calibration defaults: unity gain, no offset, 0.5..4.5 V device-input range.
const (
	DefaultGain   = 1.0
	DefaultOffset = 0.0
	DefaultMinV   = 0.5
	DefaultMaxV   = 4.5
)

// Calibration maps pin voltage to device-input voltage:
// vin = Gain*vpin + Offset, healthy while MinV <= vin <= MaxV.
type Calibration struct {
	Gain   float32
	Offset float32
	MinV   float32
	MaxV   float32
}

// Conditioner converts raw counts into calibrated device-input voltages and
// classifies each channel. Mutation happens only from the main loop.
type Conditioner struct {
	cal       [adc.NumChannels]Calibration
	vrefMv    uint32
	fullScale uint16

	raw    [adc.NumChannels]uint16
	pinV   [adc.NumChannels]float32
	inV    [adc.NumChannels]float32
	mv     [adc.NumChannels]uint16
	status [adc.NumChannels]Status
}

// NewConditioner builds a conditioner with documented per-channel defaults.
func NewConditioner(vrefMv uint32, fullScale uint16) *Conditioner {
	c := &Conditioner{vrefMv: vrefMv, fullScale: fullScale}
	for i := range c.cal {
		c.cal[i] = Calibration{
			Gain:   DefaultGain,
			Offset: DefaultOffset,
			MinV:   DefaultMinV,
			MaxV:   DefaultMaxV,
		}
	}
	return c
}

// SetVref changes the reference in millivolts (applies from the next Update).
func (c *Conditioner) SetVref(mv uint32) {
	if mv == 0 {
		return
	}
	c.vrefMv = mv
}

// Vref returns the reference in millivolts.
func (c *Conditioner) Vref() uint32 { return c.vrefMv }

// SetGainOffset sets the affine calibration. Out-of-range channels are a
// deliberate no-op: setters outside the command path have no return channel.
func (c *Conditioner) SetGainOffset(ch uint8, gain, offset float32) {
	if ch >= adc.NumChannels {
		return
	}
	c.cal[ch].Gain = gain
	c.cal[ch].Offset = offset
}

// SetDivider derives the gain from a resistive divider:
// vin = vpin * (rTop+rBottom)/rBottom, offset zeroed. rBottom <= 0 is rejected.
func (c *Conditioner) SetDivider(ch uint8, rTop, rBottom float32) {
	if ch >= adc.NumChannels || rBottom <= 0 {
		return
	}
	c.cal[ch].Gain = (rTop + rBottom) / rBottom
	c.cal[ch].Offset = 0
}

// SetRange sets the out-of-range thresholds; requires min < max.
func (c *Conditioner) SetRange(ch uint8, min, max float32) {
	if ch >= adc.NumChannels || min >= max {
		return
	}
	c.cal[ch].MinV = min
	c.cal[ch].MaxV = max
}

// Cal returns a channel's calibration (zero value out of range).
func (c *Conditioner) Cal(ch uint8) Calibration {
	if ch >= adc.NumChannels {
		return Calibration{}
	}
	return c.cal[ch]
}

// PinVoltage converts one raw count using the configured reference and
// full-scale: vpin = raw * (vref/1000) / fullScale.
func (c *Conditioner) PinVoltage(raw uint16) float32 {
	vref := float32(c.vrefMv) / 1000
	return vref * float32(raw) / float32(c.fullScale)
}

// Update recomputes voltages, millivolt encodings and status codes from a
// raw snapshot and the live enable mask.
func (c *Conditioner) Update(raw [adc.NumChannels]uint16, enabled uint8) {
	c.raw = raw
	for i := uint8(0); i < adc.NumChannels; i++ {
		vpin := c.PinVoltage(raw[i])
		vin := c.cal[i].Gain*vpin + c.cal[i].Offset
		c.pinV[i] = vpin
		c.inV[i] = vin
		c.mv[i] = VoltsToMillivolts(vin)
		c.status[i] = classify(enabled&(1<<i) != 0, vin, c.cal[i].MinV, c.cal[i].MaxV)
	}
}

// Raw returns the last snapshot fed to Update.
func (c *Conditioner) Raw() [adc.NumChannels]uint16 { return c.raw }

// InputVoltage returns the device-input voltage (0 out of range).
func (c *Conditioner) InputVoltage(ch uint8) float32 {
	if ch >= adc.NumChannels {
		return 0
	}
	return c.inV[ch]
}

// Millivolts returns the saturated millivolt encoding for one channel.
func (c *Conditioner) Millivolts(ch uint8) uint16 {
	if ch >= adc.NumChannels {
		return 0
	}
	return c.mv[ch]
}

// MillivoltsAll returns the full millivolt array.
func (c *Conditioner) MillivoltsAll() [adc.NumChannels]uint16 { return c.mv }

// Status returns one channel's classification.
func (c *Conditioner) Status(ch uint8) Status {
	if ch >= adc.NumChannels {
		return Inactive
	}
	return c.status[ch]
}

// StatusWord packs the eight 2-bit codes, channel 0 in the two LSBs.
func (c *Conditioner) StatusWord() uint16 {
	var w uint16
	for i := uint8(0); i < adc.NumChannels; i++ {
		w |= uint16(c.status[i]) << (2 * i)
	}
	return w
}

// OutOfRangeMask is a one-bit-per-channel view of the out-of-range states.
func (c *Conditioner) OutOfRangeMask() uint8 {
	var m uint8
	for i := uint8(0); i < adc.NumChannels; i++ {
		if c.status[i] == OutOfRangeLow || c.status[i] == OutOfRangeHigh {
			m |= 1 << i
		}
	}
	return m
}

func classify(enabled bool, vin, min, max float32) Status {
	if !enabled {
		return Inactive
	}
	if vin < min {
		return OutOfRangeLow
	}
	if vin > max {
		return OutOfRangeHigh
	}
	return Active
}

// VoltsToMillivolts saturates to [0, 65535] mV, rounding half up.
func VoltsToMillivolts(v float32) uint16 {
	if v <= 0 {
		return 0
	}
	mv := v * 1000
	if mv >= 65535 {
		return 65535
	}
	return uint16(mv + 0.5)
}
