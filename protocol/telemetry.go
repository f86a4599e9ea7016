package protocol

import (
	"encoding/binary"

	"signalcan-go/adc"
	"signalcan-go/signal"
)

// DefaultPeriodMs is the telemetry publish period when none is configured.
const DefaultPeriodMs = 100

// Publisher emits the node's three telemetry frames on a fixed period:
// millivolt values for channels 0..3 and 4..7, then the device-status frame.
type Publisher struct {
	NodeID    uint16
	FWVersion uint16
	PeriodMs  uint32
	TimeoutMs uint32

	Engine *adc.Engine
	Cond   *signal.Conditioner
	Vitals Vitals
	Tx     Sender

	lastSendMs int64
	primed     bool
}

// Prime anchors the period so the first publish happens one full period
// after startup rather than on the first loop pass.
func (p *Publisher) Prime(nowMs int64) {
	p.lastSendMs = nowMs
	p.primed = true
}

// PublishIfDue checks the period and publishes when elapsed. The send tick
// advances whether or not the sends succeed, so a failed period is not
// retried until the next one; the error is surfaced to the caller.
func (p *Publisher) PublishIfDue(nowMs int64) (bool, error) {
	period := p.PeriodMs
	if period == 0 {
		period = DefaultPeriodMs
	}
	if p.primed && nowMs-p.lastSendMs < int64(period) {
		return false, nil
	}
	p.lastSendMs = nowMs
	p.primed = true
	return true, p.Publish()
}

// Publish refreshes conditioning from the latest acquisition snapshot and
// sends the value and status frames. Stops at the first failed send.
func (p *Publisher) Publish() error {
	p.Cond.Update(p.Engine.Raw(), p.Engine.EnableMask())
	mv := p.Cond.MillivoltsAll()

	var buf [8]byte
	for i := 0; i < 4; i++ {
		binary.BigEndian.PutUint16(buf[2*i:], mv[i])
	}
	if err := p.Tx.Send(p.NodeID+IDOffValuesLow, buf[:], p.TimeoutMs); err != nil {
		return err
	}

	for i := 0; i < 4; i++ {
		binary.BigEndian.PutUint16(buf[2*i:], mv[4+i])
	}
	if err := p.Tx.Send(p.NodeID+IDOffValuesHigh, buf[:], p.TimeoutMs); err != nil {
		return err
	}

	binary.BigEndian.PutUint16(buf[0:2], p.Cond.StatusWord())
	binary.BigEndian.PutUint16(buf[2:4], p.Vitals.UptimeSeconds())
	binary.BigEndian.PutUint16(buf[4:6], p.Vitals.SupplyMillivolts())
	binary.BigEndian.PutUint16(buf[6:8], p.FWVersion)
	return p.Tx.Send(p.NodeID+IDOffStatus, buf[:], p.TimeoutMs)
}

// DecodeValues parses one of the two millivolt frames into four values.
func DecodeValues(data [8]byte) [4]uint16 {
	var out [4]uint16
	for i := range out {
		out[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return out
}

// StatusFrame is the decoded device-status frame.
type StatusFrame struct {
	StatusWord uint16
	UptimeS    uint16
	SupplyMv   uint16
	FWVersion  uint16
}

// ChannelStatus extracts one channel's 2-bit code from the status word.
func (s StatusFrame) ChannelStatus(ch uint8) signal.Status {
	return signal.Status(s.StatusWord >> (2 * ch) & 0x3)
}

// DecodeStatus parses the device-status frame payload.
func DecodeStatus(data [8]byte) StatusFrame {
	return StatusFrame{
		StatusWord: binary.BigEndian.Uint16(data[0:2]),
		UptimeS:    binary.BigEndian.Uint16(data[2:4]),
		SupplyMv:   binary.BigEndian.Uint16(data[4:6]),
		FWVersion:  binary.BigEndian.Uint16(data[6:8]),
	}
}
