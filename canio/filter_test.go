package canio

import (
	"testing"

	"signalcan-go/errcode"
)

func TestPackFiltersEmptyAcceptsAll(t *testing.T) {
	banks, err := PackFilters(nil)
	if err != nil {
		t.Fatalf("PackFilters(nil): %v", err)
	}
	b0 := banks[0]
	if !b0.Active || b0.Mode != ModeMask || b0.Scale != Scale32 {
		t.Fatalf("bank0 = %+v, want active accept-all mask bank", b0)
	}
	if b0.Words != [4]uint16{} {
		t.Fatalf("bank0 words = %v, want all zero (match anything)", b0.Words)
	}
	for i := 1; i < NumFilterBanks; i++ {
		if banks[i].Active {
			t.Fatalf("bank %d active, want deactivated", i)
		}
	}
	for _, id := range []uint16{0x000, 0x123, MaxStdID} {
		if !b0.Matches(id) {
			t.Errorf("accept-all bank rejected 0x%03x", id)
		}
	}
}

func TestPackFiltersPartialBankPads(t *testing.T) {
	ids := []uint16{0x41, 0x45, 0x101, 0x102, 0x300}
	banks, err := PackFilters(ids)
	if err != nil {
		t.Fatalf("PackFilters: %v", err)
	}

	want0 := [4]uint16{EncodeStdID(0x41), EncodeStdID(0x45), EncodeStdID(0x101), EncodeStdID(0x102)}
	if banks[0].Words != want0 {
		t.Errorf("bank0 words = %v, want %v", banks[0].Words, want0)
	}
	// Fifth id lands in bank 1; its three free slots repeat it.
	want1 := [4]uint16{EncodeStdID(0x300), EncodeStdID(0x300), EncodeStdID(0x300), EncodeStdID(0x300)}
	if banks[1].Words != want1 {
		t.Errorf("bank1 words = %v, want %v", banks[1].Words, want1)
	}
	if banks[0].Mode != ModeIDList || banks[1].Mode != ModeIDList {
		t.Errorf("banks not in identifier-list mode: %v %v", banks[0].Mode, banks[1].Mode)
	}
	for i := 2; i < NumFilterBanks; i++ {
		if banks[i].Active {
			t.Fatalf("bank %d active, want deactivated", i)
		}
	}

	for _, id := range ids {
		hit := false
		for _, b := range banks {
			if b.Matches(id) {
				hit = true
				break
			}
		}
		if !hit {
			t.Errorf("no bank matches listed id 0x%03x", id)
		}
	}
	for _, b := range banks {
		if b.Matches(0x200) {
			t.Errorf("bank %d matches unlisted id 0x200", b.Index)
		}
	}
}

func TestPackFiltersCapacity(t *testing.T) {
	ids := make([]uint16, MaxFilterIDs)
	for i := range ids {
		ids[i] = uint16(i + 1)
	}
	if _, err := PackFilters(ids); err != nil {
		t.Fatalf("PackFilters at capacity: %v", err)
	}

	ids = append(ids, 0x400)
	if _, err := PackFilters(ids); errcode.Of(err) != errcode.Capacity {
		t.Fatalf("PackFilters over capacity: err = %v, want Capacity", err)
	}
}

func TestEncodeStdID(t *testing.T) {
	if got := EncodeStdID(0x45); got != 0x45<<5 {
		t.Errorf("EncodeStdID(0x45) = %#x, want %#x", got, 0x45<<5)
	}
	// Out-of-range bits are masked, not carried into the register word.
	if got := EncodeStdID(0xFFFF); got != MaxStdID<<5 {
		t.Errorf("EncodeStdID(0xFFFF) = %#x, want %#x", got, MaxStdID<<5)
	}
}
