package canio

import "signalcan-go/errcode"

// Hardware filter geometry: 14 banks, each holding four 16-bit encoded
// identifiers in identifier-list mode, or one id/mask pair in mask mode.
const (
	NumFilterBanks = 14
	idsPerBank     = 4

	// MaxFilterIDs is the identifier-list capacity across all banks.
	MaxFilterIDs = NumFilterBanks * idsPerBank
)

type FilterMode uint8

const (
	ModeIDList FilterMode = iota
	ModeMask
)

type FilterScale uint8

const (
	Scale16 FilterScale = iota
	Scale32
)

// FilterBank is one hardware bank's worth of configuration. Words carries
// the four register halves; in IDLIST16 mode each word is one encoded
// identifier, in mask mode words 0/1 are the id pair and 2/3 the mask pair.
type FilterBank struct {
	Index  uint8
	Active bool
	Mode   FilterMode
	Scale  FilterScale
	FIFO   uint8
	Words  [idsPerBank]uint16
}

// EncodeStdID maps an 11-bit identifier into the 16-bit filter register
// position (id in bits 15..5).
func EncodeStdID(id uint16) uint16 { return (id & MaxStdID) << 5 }

// PackFilters lays an ordered identifier list out across the filter banks.
//
// Banks fill sequentially, four ids each; a partial last bank repeats its
// final id so every slot holds a real match. Banks past the end are returned
// deactivated so stale hardware state cannot match. An empty list yields a
// single accept-all mask bank. Lists beyond MaxFilterIDs are rejected.
func PackFilters(ids []uint16) ([NumFilterBanks]FilterBank, error) {
	var banks [NumFilterBanks]FilterBank
	for i := range banks {
		banks[i].Index = uint8(i)
	}

	if len(ids) > MaxFilterIDs {
		return banks, errcode.Capacity
	}

	if len(ids) == 0 {
		// Accept everything: mask mode with a zero mask matches any id.
		banks[0].Active = true
		banks[0].Mode = ModeMask
		banks[0].Scale = Scale32
		return banks, nil
	}

	for b := 0; b*idsPerBank < len(ids); b++ {
		bank := &banks[b]
		bank.Active = true
		bank.Mode = ModeIDList
		bank.Scale = Scale16
		for s := 0; s < idsPerBank; s++ {
			i := b*idsPerBank + s
			if i >= len(ids) {
				i = len(ids) - 1 // pad with the last id
			}
			bank.Words[s] = EncodeStdID(ids[i])
		}
	}
	return banks, nil
}

// Matches reports whether a standard identifier passes this bank.
// Mirrors the hardware behaviour closely enough for the loopback controller
// and the simulator.
func (b FilterBank) Matches(id uint16) bool {
	if !b.Active {
		return false
	}
	switch b.Mode {
	case ModeIDList:
		enc := EncodeStdID(id)
		for _, w := range b.Words {
			if w == enc {
				return true
			}
		}
		return false
	case ModeMask:
		// Words 0/1: id pair, words 2/3: mask pair (32-bit scale).
		mask := b.Words[2]
		want := b.Words[0] & mask
		return EncodeStdID(id)&mask == want
	}
	return false
}
