//go:build rp2040 || rp2350

// Package slcanuart mirrors CAN traffic over a UART in a fixed 13-byte
// binary framing, so a host attached to the serial port can observe the
// node's bus (and inject frames) without CAN hardware of its own.
//
// Record layout: one header byte (0x80 | DLC, plus 0x10 for RTR and 0x20
// for extended ids), a big-endian 32-bit identifier, then 8 data bytes.
// Short payloads are zero padded so every record is exactly 13 bytes.
package slcanuart

import (
	"context"

	"github.com/jangala-dev/tinygo-uartx/uartx"

	"signalcan-go/canio"
	"signalcan-go/errcode"
	"signalcan-go/x/bytering"
)

const (
	recordLen  = 13
	hdrValid   = 0x80
	hdrRTR     = 0x10
	hdrExt     = 0x20
	hdrDLCMask = 0x0F
)

type Bridge struct {
	u   *uartx.UART
	tx  *bytering.Ring
	rx  []byte // partial inbound record
	scr [64]byte
}

// New attaches a bridge to a configured UART. The transmit ring absorbs
// bursts; records that do not fit are dropped whole.
func New(u *uartx.UART) *Bridge {
	return &Bridge{
		u:  u,
		tx: bytering.New(512),
		rx: make([]byte, 0, recordLen),
	}
}

// Mirror queues one frame for transmission. It never blocks: when the ring
// cannot take a full record the frame is dropped and Busy is returned.
func (b *Bridge) Mirror(f canio.Frame, rtr bool) error {
	var rec [recordLen]byte
	hdr := hdrValid | (f.DLC & hdrDLCMask)
	if rtr {
		hdr |= hdrRTR
	}
	rec[0] = hdr
	rec[1] = 0
	rec[2] = 0
	rec[3] = byte(f.ID >> 8)
	rec[4] = byte(f.ID)
	copy(rec[5:], f.Data[:])
	if b.tx.Space() < recordLen {
		return errcode.Busy
	}
	b.tx.TryWrite(rec[:])
	return nil
}

// Pump pushes buffered records out the UART. Call it from the main loop.
func (b *Bridge) Pump() {
	var buf [recordLen]byte
	for b.tx.Available() >= recordLen {
		n := b.tx.TryRead(buf[:])
		if n == 0 {
			return
		}
		b.u.Write(buf[:n])
	}
}

// Poll reads whatever the UART has buffered and delivers any complete
// records to fn as frames. Extended-id and RTR records are skipped; the
// node's protocol is standard data frames only.
func (b *Bridge) Poll(ctx context.Context, fn func(canio.Frame)) error {
	n, err := b.u.RecvSomeContext(ctx, b.scr[:])
	if err != nil {
		return err
	}
	for _, c := range b.scr[:n] {
		if len(b.rx) == 0 && c&hdrValid == 0 {
			continue // resync on a header byte
		}
		b.rx = append(b.rx, c)
		if len(b.rx) < recordLen {
			continue
		}
		hdr := b.rx[0]
		if hdr&(hdrRTR|hdrExt) == 0 {
			var f canio.Frame
			f.ID = uint16(b.rx[3])<<8 | uint16(b.rx[4])
			f.DLC = hdr & hdrDLCMask
			copy(f.Data[:], b.rx[5:recordLen])
			if f.Validate() == nil {
				fn(f)
			}
		}
		b.rx = b.rx[:0]
	}
	return nil
}
