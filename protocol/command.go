package protocol

import (
	"encoding/binary"
	"math"

	"signalcan-go/adc"
	"signalcan-go/canio"
	"signalcan-go/errcode"
	"signalcan-go/signal"
)

// Handler consumes one command frame at a time and always emits exactly one
// ack. Validation precedes mutation: a rejected command leaves every piece
// of state untouched and acks success=0.
//
// Handle must run from the cooperative loop, never the receive path: baud
// changes reprogram the controller and are applied only after the ack has
// gone out (at the old baud, so the commander can still hear it).
type Handler struct {
	NodeID uint16
	Engine *adc.Engine
	Cond   *signal.Conditioner

	Tx        Sender
	SetBaud   func(canio.Baud) error
	TimeoutMs uint32
}

// Handle processes a single command frame addressed to NodeID+0x5.
// The returned error covers transmit and deferred-apply failures; protocol
// validation failures are reported on the wire, not here.
func (h *Handler) Handle(f canio.Frame) error {
	ok, post := h.dispatch(f)

	ack := []byte{0}
	if ok {
		ack[0] = 1
	}
	if err := h.Tx.Send(h.NodeID+IDOffAck, ack, h.TimeoutMs); err != nil {
		return err
	}
	if post != nil {
		return post()
	}
	return nil
}

func (h *Handler) dispatch(f canio.Frame) (ok bool, post func() error) {
	if f.DLC != 8 {
		return false, nil
	}
	d := f.Data

	switch d[0] {
	case CmdSetBaud:
		b, valid := canio.BaudFromWire(d[1])
		if !valid {
			return false, nil
		}
		// Applied after the ack; see Handle.
		return true, func() error { return h.SetBaud(b) }

	case CmdSetSampleRate:
		// Little-endian by protocol definition, unlike every other field.
		rate := uint16(d[1]) | uint16(d[2])<<8
		h.Engine.SetSampleRate(rate)
		return true, nil

	case CmdSetChannel:
		ch := d[1]
		if ch >= adc.NumChannels {
			return false, nil
		}
		enable := d[2] != 0
		gain := float32(binary.BigEndian.Uint16(d[3:5])) / scalePerCount
		offset := float32(binary.BigEndian.Uint16(d[5:7])) / mvPerVolt
		h.Cond.SetGainOffset(ch, gain, offset)
		h.Engine.SetEnabled(ch, enable)
		return true, nil

	case CmdSetChannelRange:
		ch := d[1]
		if ch >= adc.NumChannels {
			return false, nil
		}
		minMv := binary.BigEndian.Uint16(d[2:4])
		maxMv := binary.BigEndian.Uint16(d[4:6])
		if minMv >= maxMv {
			return false, nil
		}
		h.Cond.SetRange(ch, float32(minMv)/mvPerVolt, float32(maxMv)/mvPerVolt)
		return true, nil

	case CmdGetValue:
		ch := d[1]
		sel := d[2]
		if ch >= adc.NumChannels || sel > SelOORMax {
			return false, nil
		}
		v := h.readValue(ch, sel)
		var resp [8]byte
		resp[0] = ch
		resp[1] = sel
		binary.BigEndian.PutUint32(resp[2:6], math.Float32bits(v))
		if err := h.Tx.Send(h.NodeID+IDOffResponse, resp[:], h.TimeoutMs); err != nil {
			// The readback was lost but the command itself was valid; the
			// ack still reports acceptance.
			_ = err
		}
		return true, nil
	}
	return false, nil
}

func (h *Handler) readValue(ch, sel uint8) float32 {
	switch sel {
	case SelSampleRate:
		return float32(h.Engine.SampleRate())
	case SelScale:
		return h.Cond.Cal(ch).Gain
	case SelOffset:
		return h.Cond.Cal(ch).Offset
	case SelOORMin:
		return h.Cond.Cal(ch).MinV
	case SelOORMax:
		return h.Cond.Cal(ch).MaxV
	}
	return 0
}

// EncodeSetChannel builds the SET_CHANNEL payload a commander would send.
// Gain saturates at the 0.001-unit wire range; offset at the mV range.
func EncodeSetChannel(ch uint8, enable bool, gain, offsetV float32) [8]byte {
	var d [8]byte
	d[0] = CmdSetChannel
	d[1] = ch
	if enable {
		d[2] = 1
	}
	binary.BigEndian.PutUint16(d[3:5], saturateU16(gain*scalePerCount))
	binary.BigEndian.PutUint16(d[5:7], saturateU16(offsetV*mvPerVolt))
	return d
}

// EncodeSetRange builds the SET_CHANNEL_RANGE payload.
func EncodeSetRange(ch uint8, minV, maxV float32) [8]byte {
	var d [8]byte
	d[0] = CmdSetChannelRange
	d[1] = ch
	binary.BigEndian.PutUint16(d[2:4], saturateU16(minV*mvPerVolt))
	binary.BigEndian.PutUint16(d[4:6], saturateU16(maxV*mvPerVolt))
	return d
}

// EncodeSetSampleRate builds the SET_SAMPLE_RATE payload (rate is the one
// little-endian field on this bus).
func EncodeSetSampleRate(hz uint16) [8]byte {
	var d [8]byte
	d[0] = CmdSetSampleRate
	d[1] = uint8(hz)
	d[2] = uint8(hz >> 8)
	return d
}

// EncodeGetValue builds the GET_VALUE payload.
func EncodeGetValue(ch, sel uint8) [8]byte {
	var d [8]byte
	d[0] = CmdGetValue
	d[1] = ch
	d[2] = sel
	return d
}

// EncodeSetBaud builds the SET_BAUD payload.
func EncodeSetBaud(b canio.Baud) [8]byte {
	var d [8]byte
	d[0] = CmdSetBaud
	d[1] = b.Wire()
	return d
}

// DecodeResponse parses a GET_VALUE response frame.
func DecodeResponse(f canio.Frame) (ch, sel uint8, v float32, err error) {
	if f.DLC != 8 {
		return 0, 0, 0, errcode.InvalidFrame
	}
	ch = f.Data[0]
	sel = f.Data[1]
	v = math.Float32frombits(binary.BigEndian.Uint32(f.Data[2:6]))
	return ch, sel, v, nil
}

func saturateU16(v float32) uint16 {
	if v <= 0 {
		return 0
	}
	if v >= 65535 {
		return 65535
	}
	return uint16(v + 0.5)
}
