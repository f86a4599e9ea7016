package canio

// Baud selects one of the four supported nominal bit rates.
type Baud uint8

const (
	Baud125k Baud = iota
	Baud250k
	Baud500k
	Baud1M
)

// RefClockHz is the CAN peripheral clock the timing table is derived for.
const RefClockHz = 48_000_000

// BaudFromWire maps the protocol's baud enum (0..3) to a Baud.
func BaudFromWire(v uint8) (Baud, bool) {
	if v > uint8(Baud1M) {
		return 0, false
	}
	return Baud(v), true
}

// Wire returns the protocol enum value.
func (b Baud) Wire() uint8 { return uint8(b) }

func (b Baud) String() string {
	switch b {
	case Baud125k:
		return "125k"
	case Baud250k:
		return "250k"
	case Baud500k:
		return "500k"
	case Baud1M:
		return "1M"
	}
	return "?"
}

// BitTiming describes one nominal bit: 16 time quanta total, sampled at
// ~87.5% (sync + BS1 = 14 TQ of 16).
type BitTiming struct {
	Prescaler uint16
	SJW       uint8 // time quanta
	BS1       uint8
	BS2       uint8
}

// TimingFor returns the bit timing for a baud selector at RefClockHz.
func TimingFor(b Baud) BitTiming {
	t := BitTiming{SJW: 1, BS1: 13, BS2: 2}
	switch b {
	case Baud125k:
		t.Prescaler = 24
	case Baud250k:
		t.Prescaler = 12
	case Baud500k:
		t.Prescaler = 6
	case Baud1M:
		t.Prescaler = 3
	default:
		t.Prescaler = 24
	}
	return t
}

// BitRate returns the nominal bit rate this timing yields at RefClockHz.
func (t BitTiming) BitRate() uint32 {
	tq := uint32(1) + uint32(t.BS1) + uint32(t.BS2)
	return RefClockHz / (uint32(t.Prescaler) * tq)
}
