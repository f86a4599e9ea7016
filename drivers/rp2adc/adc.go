//go:build rp2040 || rp2350

// Package rp2adc adapts the RP2040 on-chip ADC to the node's converter
// surface. The machine package only exposes a blocking Get, so "start"
// performs the conversion and "ready" is immediately true; at the chip's
// conversion time (~2 us) this stays well inside one loop pass.
package rp2adc

import (
	"machine"

	"signalcan-go/adc"
	"signalcan-go/errcode"
)

type Converter struct {
	pins     [adc.NumChannels]machine.ADC
	have     [adc.NumChannels]bool
	selected uint8
	value    uint16
	done     bool
}

// New configures the given analog pins as channels 0..n-1.
func New(pins ...machine.Pin) *Converter {
	machine.InitADC()
	c := &Converter{}
	for i, p := range pins {
		if i >= adc.NumChannels {
			break
		}
		a := machine.ADC{Pin: p}
		a.Configure(machine.ADCConfig{})
		c.pins[i] = a
		c.have[i] = true
	}
	return c
}

func (c *Converter) SelectChannel(ch uint8) error {
	if ch >= adc.NumChannels || !c.have[ch] {
		return errcode.InvalidParams
	}
	c.selected = ch
	return nil
}

func (c *Converter) Start() error {
	if !c.have[c.selected] {
		return errcode.NotReady
	}
	// machine.ADC.Get returns a 16-bit left-justified reading; the node's
	// raw domain is the native 12 bits.
	c.value = c.pins[c.selected].Get() >> 4
	c.done = true
	return nil
}

func (c *Converter) Ready() bool { return c.done }

func (c *Converter) Read() uint32 {
	c.done = false
	return uint32(c.value)
}

func (c *Converter) Resolution() adc.Resolution { return adc.Res12Bit }
