package canio

import (
	"encoding/binary"

	"signalcan-go/errcode"
)

// MaxStdID is the largest 11-bit standard identifier.
const MaxStdID = 0x7FF

// Frame is a classical CAN data frame with a standard (11-bit) identifier.
// Extended identifiers and CAN FD are out of scope for this node.
type Frame struct {
	ID   uint16 // 11-bit standard identifier
	DLC  uint8  // 0..8
	Data [8]byte
}

// RxFrame is a received frame plus the header flags the controller saw.
// The transport rejects Extended frames; RTR passes through untouched.
type RxFrame struct {
	Frame
	Extended bool
	RTR      bool
}

// NewFrame builds a data frame from a payload of at most 8 bytes.
func NewFrame(id uint16, payload []byte) (Frame, error) {
	var f Frame
	if id > MaxStdID {
		return f, errcode.InvalidFrame
	}
	if len(payload) > 8 {
		return f, errcode.InvalidFrame
	}
	f.ID = id
	f.DLC = uint8(len(payload))
	copy(f.Data[:], payload)
	return f, nil
}

// Validate returns an error if the frame is not a valid standard data frame.
func (f Frame) Validate() error {
	if f.ID > MaxStdID {
		return errcode.InvalidFrame
	}
	if f.DLC > 8 {
		return errcode.InvalidFrame
	}
	return nil
}

// Payload returns the DLC-sized view of the data bytes.
func (f *Frame) Payload() []byte { return f.Data[:f.DLC] }

// MarshalBinary encodes the frame in the 16-byte SocketCAN can_frame layout
// (little-endian id word, DLC, 3 pad bytes, 8 data bytes). Used by the linux
// controller and the capture tools.
func (f Frame) MarshalBinary() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(f.ID))
	buf[4] = f.DLC
	copy(buf[8:16], f.Data[:])
	return buf, nil
}

// SocketCAN header flags.
const (
	canEffFlag = 0x80000000
	canRtrFlag = 0x40000000
	canEffMask = 0x1FFFFFFF
)

// UnmarshalBinary decodes a SocketCAN can_frame into an RxFrame.
func (f *RxFrame) UnmarshalBinary(data []byte) error {
	if len(data) < 16 {
		return errcode.InvalidFrame
	}
	id := binary.LittleEndian.Uint32(data[0:4])
	f.Extended = id&canEffFlag != 0
	f.RTR = id&canRtrFlag != 0
	if f.Extended {
		// Keep the low bits so callers can log what arrived; the transport
		// rejects the frame either way.
		f.ID = uint16(id & canEffMask & 0xFFFF)
	} else {
		f.ID = uint16(id & MaxStdID)
	}
	f.DLC = data[4]
	if f.DLC > 8 {
		return errcode.InvalidFrame
	}
	copy(f.Data[:], data[8:16])
	return nil
}
