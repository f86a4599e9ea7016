package device

import (
	"signalcan-go/adc"
	"signalcan-go/canio"
	"signalcan-go/protocol"
	"signalcan-go/signal"
)

// ChannelConfig is one channel's startup calibration. A non-zero RBottom
// selects divider-derived gain (RTop/RBottom) over the explicit Gain/Offset
// pair.
type ChannelConfig struct {
	Enabled bool
	Gain    float32
	Offset  float32
	MinV    float32
	MaxV    float32
	RTop    float32
	RBottom float32
}

// Config is the node's startup configuration. Runtime mutation happens only
// through the command protocol; nothing here persists across power loss.
type Config struct {
	NodeID       uint8
	Baud         canio.Baud
	SampleRateHz uint16
	VrefMv       uint32
	FWVersion    uint16
	PeriodMs     uint32
	Resolution   adc.Resolution

	Channels [adc.NumChannels]ChannelConfig
}

// DefaultConfig returns the documented power-on defaults: unity gain, zero
// offset, 0.5..4.5 V range, 100 Hz, 3300 mV reference, all channels off.
func DefaultConfig() Config {
	cfg := Config{
		NodeID:       0x40,
		Baud:         canio.Baud500k,
		SampleRateHz: 100,
		VrefMv:       3300,
		FWVersion:    0x0100,
		PeriodMs:     protocol.DefaultPeriodMs,
		Resolution:   adc.Res12Bit,
	}
	for i := range cfg.Channels {
		cfg.Channels[i] = ChannelConfig{
			Gain:   signal.DefaultGain,
			Offset: signal.DefaultOffset,
			MinV:   signal.DefaultMinV,
			MaxV:   signal.DefaultMaxV,
		}
	}
	return cfg
}
