package node

import (
	"signalcan-go/adc"
	"signalcan-go/canio"
	"signalcan-go/device"
)

// DecodeConfig turns the parsed JSON object from the config service into a
// device configuration. Missing keys keep the documented defaults; bad
// values fall back rather than fail, since the node has no other way up.
func DecodeConfig(m map[string]any) device.Config {
	cfg := device.DefaultConfig()

	if v, ok := num(m, "node_id"); ok && v >= 0 && v < 256 {
		cfg.NodeID = uint8(v)
	}
	if s, ok := m["baud"].(string); ok {
		switch s {
		case "125k":
			cfg.Baud = canio.Baud125k
		case "250k":
			cfg.Baud = canio.Baud250k
		case "500k":
			cfg.Baud = canio.Baud500k
		case "1M":
			cfg.Baud = canio.Baud1M
		}
	}
	if v, ok := num(m, "sample_rate_hz"); ok && v > 0 {
		cfg.SampleRateHz = uint16(v)
	}
	if v, ok := num(m, "vref_mv"); ok && v > 0 {
		cfg.VrefMv = uint32(v)
	}
	if v, ok := num(m, "period_ms"); ok && v > 0 {
		cfg.PeriodMs = uint32(v)
	}
	if v, ok := num(m, "fw_version"); ok && v >= 0 {
		cfg.FWVersion = uint16(v)
	}
	if v, ok := num(m, "resolution_bits"); ok {
		switch int(v) {
		case 6:
			cfg.Resolution = adc.Res6Bit
		case 8:
			cfg.Resolution = adc.Res8Bit
		case 10:
			cfg.Resolution = adc.Res10Bit
		case 12:
			cfg.Resolution = adc.Res12Bit
		}
	}

	channels, _ := m["channels"].([]any)
	for _, raw := range channels {
		cm, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		chF, ok := num(cm, "ch")
		if !ok || chF < 0 || chF >= adc.NumChannels {
			continue
		}
		cc := &cfg.Channels[int(chF)]
		if b, ok := cm["enabled"].(bool); ok {
			cc.Enabled = b
		}
		if v, ok := num(cm, "gain"); ok {
			cc.Gain = float32(v)
		}
		if v, ok := num(cm, "offset"); ok {
			cc.Offset = float32(v)
		}
		if v, ok := num(cm, "min_v"); ok {
			cc.MinV = float32(v)
		}
		if v, ok := num(cm, "max_v"); ok {
			cc.MaxV = float32(v)
		}
		if v, ok := num(cm, "r_top"); ok {
			cc.RTop = float32(v)
		}
		if v, ok := num(cm, "r_bottom"); ok {
			cc.RBottom = float32(v)
		}
	}
	return cfg
}

// num reads a JSON number from a map, coercing the integer widths the
// parser may hand back.
func num(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
