package adc

// NumChannels is the number of analog inputs the node samples.
const NumChannels = 8

// Resolution is the converter's configured bit depth.
type Resolution uint8

const (
	Res6Bit  Resolution = 6
	Res8Bit  Resolution = 8
	Res10Bit Resolution = 10
	Res12Bit Resolution = 12
)

// FullScale resolves the resolution into a numeric full-scale count once;
// unknown values fall back to 12-bit.
func (r Resolution) FullScale() uint16 {
	switch r {
	case Res6Bit, Res8Bit, Res10Bit, Res12Bit:
		return uint16(1)<<r - 1
	}
	return 4095
}

// Converter is the boundary to the analog-to-digital peripheral. Ready must
// never block; Read is only valid after Ready reports true.
type Converter interface {
	SelectChannel(ch uint8) error
	Start() error
	Ready() bool
	Read() uint32
	Resolution() Resolution
}
