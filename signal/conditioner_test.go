package signal

import (
	"testing"

	"signalcan-go/adc"
)

func approx(t *testing.T, name string, got, want, tol float32) {
	t.Helper()
	d := got - want
	if d < 0 {
		d = -d
	}
	if d > tol {
		t.Errorf("%s = %g, want %g (±%g)", name, got, want, tol)
	}
}

func TestPinVoltage(t *testing.T) {
	c := NewConditioner(3300, 4095)
	approx(t, "PinVoltage(4095)", c.PinVoltage(4095), 3.3, 0.001)
	approx(t, "PinVoltage(0)", c.PinVoltage(0), 0, 0.0001)
	approx(t, "PinVoltage(2048)", c.PinVoltage(2048), 1.6504, 0.001)
}

func TestDividerGain(t *testing.T) {
	c := NewConditioner(3300, 4095)
	c.SetGainOffset(2, 3, 0.5)
	c.SetDivider(2, 10000, 10000)
	cal := c.Cal(2)
	approx(t, "gain", cal.Gain, 2, 0.0001)
	approx(t, "offset", cal.Offset, 0, 0.0001)

	// Bad divider leaves the calibration untouched.
	c.SetDivider(2, 10000, 0)
	if got := c.Cal(2); got.Gain != cal.Gain {
		t.Errorf("gain after bad divider = %g", got.Gain)
	}
}

func TestUpdateComputesInputVoltage(t *testing.T) {
	c := NewConditioner(3300, 4095)
	c.SetDivider(0, 10000, 10000)

	var raw [adc.NumChannels]uint16
	raw[0] = 2048 // ~1.65 V at the pin, ~3.3 V at the input
	c.Update(raw, 1<<0)

	approx(t, "InputVoltage(0)", c.InputVoltage(0), 3.301, 0.005)
	if mv := c.Millivolts(0); mv < 3295 || mv > 3305 {
		t.Errorf("Millivolts(0) = %d, want ~3300", mv)
	}
	if c.Status(0) != Active {
		t.Errorf("Status(0) = %v, want active", c.Status(0))
	}
}

func TestClassification(t *testing.T) {
	c := NewConditioner(5000, 4095) // 5 V reference makes the math direct
	c.SetRange(0, 1.0, 2.0)

	cases := []struct {
		raw     uint16
		enabled bool
		want    Status
	}{
		{0, true, OutOfRangeLow},
		{700, true, OutOfRangeLow},   // ~0.85 V
		{1229, true, Active},         // ~1.5 V
		{2457, true, OutOfRangeHigh}, // ~3.0 V
		{1229, false, Inactive},
		{2457, false, Inactive}, // disabled wins over out-of-range
	}
	for _, tc := range cases {
		var raw [adc.NumChannels]uint16
		raw[0] = tc.raw
		var mask uint8
		if tc.enabled {
			mask = 1
		}
		c.Update(raw, mask)
		if got := c.Status(0); got != tc.want {
			t.Errorf("raw=%d enabled=%v: status = %v, want %v", tc.raw, tc.enabled, got, tc.want)
		}
	}
}

func TestClassificationBoundsInclusive(t *testing.T) {
	c := NewConditioner(3300, 4095)
	c.SetGainOffset(0, 1, 0)
	c.SetRange(0, 1.0, 2.0)

	// Drive vin exactly to the bounds through the offset term.
	for _, tc := range []struct {
		offset float32
		want   Status
	}{
		{1.0, Active},  // vin == min
		{2.0, Active},  // vin == max
		{0.999, OutOfRangeLow},
		{2.001, OutOfRangeHigh},
	} {
		c.SetGainOffset(0, 0, tc.offset) // gain 0: vin is the offset exactly
		c.Update([adc.NumChannels]uint16{}, 1)
		if got := c.Status(0); got != tc.want {
			t.Errorf("vin=%g: status = %v, want %v", tc.offset, got, tc.want)
		}
	}
}

func TestSetRangeRejectsInverted(t *testing.T) {
	c := NewConditioner(3300, 4095)
	before := c.Cal(0)
	c.SetRange(0, 2.0, 2.0)
	c.SetRange(0, 3.0, 1.0)
	if c.Cal(0) != before {
		t.Fatalf("inverted range applied: %+v", c.Cal(0))
	}
}

func TestVoltsToMillivolts(t *testing.T) {
	cases := []struct {
		v    float32
		want uint16
	}{
		{-1, 0},
		{0, 0},
		{0.0004, 0},
		{0.001, 1},
		{3.3, 3300},
		{65.534, 65534},
		{65.535, 65535},
		{100, 65535},
	}
	for _, tc := range cases {
		if got := VoltsToMillivolts(tc.v); got != tc.want {
			t.Errorf("VoltsToMillivolts(%g) = %d, want %d", tc.v, got, tc.want)
		}
	}
}

func TestStatusWordPacking(t *testing.T) {
	c := NewConditioner(3300, 4095)
	c.SetRange(0, 0.0, 4.0)  // channel 0 healthy at 0 V
	c.SetRange(1, 2.0, 3.0)  // channel 1 reads ~0 V: out-of-range low
	c.SetGainOffset(2, 0, 5) // channel 2 pinned above its max
	c.SetRange(2, 1.0, 2.0)

	c.Update([adc.NumChannels]uint16{}, 1<<0|1<<1|1<<2)

	want := uint16(Active)<<0 | uint16(OutOfRangeLow)<<2 | uint16(OutOfRangeHigh)<<4
	if got := c.StatusWord(); got != want {
		t.Fatalf("StatusWord = %#06x, want %#06x", got, want)
	}
	if got := c.OutOfRangeMask(); got != 1<<1|1<<2 {
		t.Fatalf("OutOfRangeMask = %#x, want %#x", got, 1<<1|1<<2)
	}
}
