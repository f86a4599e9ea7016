// Package protocol implements the node's fixed CAN wire protocol: command
// decode and acknowledgement at node_id+0x5/0x6, value readback at
// node_id+0x7, and the periodic telemetry frames at node_id+0x1..0x3.
// All multi-byte fields are big-endian except the sample-rate pair, which
// the protocol defines little-endian.
package protocol

// Identifier offsets from the device node id.
const (
	IDOffValuesLow  = 0x1 // channels 0..3, millivolts
	IDOffValuesHigh = 0x2 // channels 4..7, millivolts
	IDOffStatus     = 0x3 // status word, uptime, supply, fw version
	IDOffCommand    = 0x5
	IDOffAck        = 0x6
	IDOffResponse   = 0x7 // GET_VALUE readback
)

// Command codes (frame byte 0).
const (
	CmdSetBaud         = 1
	CmdSetSampleRate   = 2
	CmdSetChannel      = 3
	CmdSetChannelRange = 4
	CmdGetValue        = 5
)

// GET_VALUE selection codes.
const (
	SelSampleRate = 0
	SelScale      = 1
	SelOffset     = 2
	SelOORMin     = 3
	SelOORMax     = 4
)

// Scale factors between wire integers and engineering units.
const (
	scalePerCount = 1000 // gain wire LSB = 0.001
	mvPerVolt     = 1000
)

// Sender is the bounded transmit surface the handlers use.
type Sender interface {
	Send(id uint16, payload []byte, timeoutMs uint32) error
}

// Vitals supplies the externally sourced status-frame fields.
type Vitals interface {
	UptimeSeconds() uint16
	SupplyMillivolts() uint16
}
