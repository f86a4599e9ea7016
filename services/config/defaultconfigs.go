package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Populate embeddedConfigs at build time (e.g. via code generation) or
// manually during development.
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

const cfgSim = `{
  "node": {
    "node_id": 64,
    "baud": "500k",
    "sample_rate_hz": 100,
    "vref_mv": 3300,
    "period_ms": 100,
    "channels": [
      {"ch": 0, "enabled": true},
      {"ch": 1, "enabled": true, "r_top": 10000, "r_bottom": 10000},
      {"ch": 4, "enabled": true, "min_v": 0.2, "max_v": 3.1}
    ]
  }
}`

const cfgPico = `{
  "node": {
    "node_id": 64,
    "baud": "500k",
    "sample_rate_hz": 100,
    "vref_mv": 3300,
    "period_ms": 100,
    "channels": [
      {"ch": 0, "enabled": true},
      {"ch": 1, "enabled": true},
      {"ch": 2, "enabled": true, "r_top": 10000, "r_bottom": 10000}
    ]
  }
}`

var embeddedConfigs = map[string][]byte{
	"sim":  []byte(cfgSim),
	"pico": []byte(cfgPico),
}
