package protocol

import (
	"testing"

	"signalcan-go/adc"
	"signalcan-go/errcode"
	"signalcan-go/signal"
)

type fixedVitals struct {
	uptime uint16
	supply uint16
}

func (v fixedVitals) UptimeSeconds() uint16    { return v.uptime }
func (v fixedVitals) SupplyMillivolts() uint16 { return v.supply }

func newTestPublisher() (*Publisher, *fakeSender) {
	tx := &fakeSender{}
	p := &Publisher{
		NodeID:    testNode,
		FWVersion: 0x0102,
		PeriodMs:  100,
		TimeoutMs: 5,
		Engine:    adc.NewEngine(flatConv{}),
		Cond:      signal.NewConditioner(3300, 4095),
		Vitals:    fixedVitals{uptime: 42, supply: 3312},
		Tx:        tx,
	}
	return p, tx
}

func TestPublishFrameSet(t *testing.T) {
	p, tx := newTestPublisher()
	p.Cond.SetGainOffset(0, 0, 1.234) // vin pinned at 1.234 V
	p.Cond.SetGainOffset(5, 0, 2.5)
	p.Engine.SetEnableMask(1<<0 | 1<<5)

	if err := p.Publish(); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(tx.sent) != 3 {
		t.Fatalf("sent %d frames, want 3", len(tx.sent))
	}

	low, high, status := tx.sent[0], tx.sent[1], tx.sent[2]
	if low.id != testNode+IDOffValuesLow || high.id != testNode+IDOffValuesHigh || status.id != testNode+IDOffStatus {
		t.Fatalf("ids = %#x %#x %#x", low.id, high.id, status.id)
	}

	mvLow := DecodeValues([8]byte(low.data))
	if mvLow[0] != 1234 {
		t.Errorf("ch0 = %d mV, want 1234", mvLow[0])
	}
	mvHigh := DecodeValues([8]byte(high.data))
	if mvHigh[1] != 2500 {
		t.Errorf("ch5 = %d mV, want 2500", mvHigh[1])
	}

	st := DecodeStatus([8]byte(status.data))
	if st.UptimeS != 42 || st.SupplyMv != 3312 || st.FWVersion != 0x0102 {
		t.Errorf("status frame = %+v", st)
	}
	if st.ChannelStatus(0) != signal.Active || st.ChannelStatus(5) != signal.Active {
		t.Errorf("enabled channels not active: %016b", st.StatusWord)
	}
	if st.ChannelStatus(1) != signal.Inactive || st.ChannelStatus(7) != signal.Inactive {
		t.Errorf("disabled channels not inactive: %016b", st.StatusWord)
	}
}

func TestPublishIfDuePeriod(t *testing.T) {
	p, tx := newTestPublisher()
	p.Prime(1000)

	sent, err := p.PublishIfDue(1050)
	if sent || err != nil {
		t.Fatalf("published at half period: %v %v", sent, err)
	}
	sent, err = p.PublishIfDue(1100)
	if !sent || err != nil {
		t.Fatalf("not published at the period: %v %v", sent, err)
	}
	if len(tx.sent) != 3 {
		t.Fatalf("sent %d frames, want 3", len(tx.sent))
	}

	// Not due again until another full period elapses.
	if sent, _ = p.PublishIfDue(1150); sent {
		t.Fatal("published early after a success")
	}
}

func TestPublishIfDueAdvancesOnFailure(t *testing.T) {
	p, tx := newTestPublisher()
	p.Prime(1000)
	tx.err = errcode.Timeout

	sent, err := p.PublishIfDue(1100)
	if !sent || errcode.Of(err) != errcode.Timeout {
		t.Fatalf("sent=%v err=%v, want attempt with Timeout", sent, err)
	}

	// The tick advanced: no immediate retry storm on the next pass.
	if sent, _ = p.PublishIfDue(1101); sent {
		t.Fatal("retried inside the period after a failure")
	}
	tx.err = nil
	if sent, _ = p.PublishIfDue(1200); !sent {
		t.Fatal("did not publish at the next period")
	}
}

func TestUnprimedPublishesImmediately(t *testing.T) {
	p, _ := newTestPublisher()
	if sent, err := p.PublishIfDue(5); !sent || err != nil {
		t.Fatalf("first unprimed pass: %v %v", sent, err)
	}
}
