package canio

import (
	"sync"

	"signalcan-go/errcode"
)

// Loopback is an in-memory Controller for tests and the host simulator.
// Injected frames pass through the programmed filter banks exactly like
// hardware; transmitted frames accumulate in an outbox the bench side drains.
type Loopback struct {
	mu      sync.Mutex
	started bool
	timing  BitTiming
	inits   int
	banks   [NumFilterBanks]FilterBank

	fifo   [2][]RxFrame
	outbox []Frame

	// Fault injection knobs.
	TxBusy  bool  // MailboxesFree reports 0
	TxErr   error // Transmit fails
	InitErr error
}

func NewLoopback() *Loopback { return &Loopback{} }

func (l *Loopback) Init(t BitTiming) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.InitErr != nil {
		return l.InitErr
	}
	l.timing = t
	l.inits++
	// Reinit loses programmed banks, as on hardware.
	l.banks = [NumFilterBanks]FilterBank{}
	return nil
}

func (l *Loopback) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = true
	return nil
}

func (l *Loopback) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = false
	return nil
}

func (l *Loopback) MailboxesFree() uint8 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.TxBusy {
		return 0
	}
	return 3
}

func (l *Loopback) Transmit(f Frame) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.TxErr != nil {
		return l.TxErr
	}
	if !l.started {
		return errcode.NotReady
	}
	l.outbox = append(l.outbox, f)
	return nil
}

func (l *Loopback) FIFOFill(fifo uint8) uint8 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if int(fifo) >= len(l.fifo) {
		return 0
	}
	n := len(l.fifo[fifo])
	if n > 255 {
		n = 255
	}
	return uint8(n)
}

func (l *Loopback) Receive(fifo uint8) (RxFrame, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if int(fifo) >= len(l.fifo) || len(l.fifo[fifo]) == 0 {
		return RxFrame{}, errcode.NotReady
	}
	rx := l.fifo[fifo][0]
	l.fifo[fifo] = l.fifo[fifo][1:]
	return rx, nil
}

func (l *Loopback) ConfigureFilter(b FilterBank) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b.Index >= NumFilterBanks {
		return errcode.InvalidParams
	}
	l.banks[b.Index] = b
	return nil
}

// Inject delivers a frame from the simulated bus into FIFO 0 if the
// controller is started and a filter bank accepts it. Returns whether the
// frame was accepted.
func (l *Loopback) Inject(rx RxFrame) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.started {
		return false
	}
	if !rx.Extended {
		accepted := false
		for i := range l.banks {
			if l.banks[i].Matches(rx.ID) {
				accepted = true
				break
			}
		}
		if !accepted {
			return false
		}
	}
	l.fifo[l.bankFIFO(rx.ID)] = append(l.fifo[l.bankFIFO(rx.ID)], rx)
	return true
}

func (l *Loopback) bankFIFO(id uint16) uint8 {
	for i := range l.banks {
		if l.banks[i].Matches(id) {
			return l.banks[i].FIFO
		}
	}
	return 0
}

// Drain returns and clears the transmitted frames.
func (l *Loopback) Drain() []Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.outbox
	l.outbox = nil
	return out
}

// Timing returns the last programmed bit timing.
func (l *Loopback) Timing() BitTiming {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.timing
}

// Inits reports how many times Init ran (baud swaps reinitialize).
func (l *Loopback) Inits() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inits
}

// Banks returns a copy of the programmed filter banks.
func (l *Loopback) Banks() [NumFilterBanks]FilterBank {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.banks
}
