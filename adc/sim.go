package adc

import "sync"

// SimConverter is a deterministic converter for tests and the host
// simulator. Counts are programmable per channel; Latency sets how many
// Ready polls a conversion takes (0 means ready immediately).
type SimConverter struct {
	mu       sync.Mutex
	res      Resolution
	counts   [NumChannels]uint16
	selected uint8
	pending  int
	started  bool

	Latency   int
	SelectErr error
	StartErr  error
}

func NewSimConverter(res Resolution) *SimConverter {
	return &SimConverter{res: res}
}

// SetCount programs the raw count a channel will convert to.
func (s *SimConverter) SetCount(ch uint8, v uint16) {
	if ch >= NumChannels {
		return
	}
	s.mu.Lock()
	s.counts[ch] = v
	s.mu.Unlock()
}

func (s *SimConverter) SelectChannel(ch uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SelectErr != nil {
		return s.SelectErr
	}
	s.selected = ch
	return nil
}

func (s *SimConverter) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.StartErr != nil {
		return s.StartErr
	}
	s.started = true
	s.pending = s.Latency
	return nil
}

func (s *SimConverter) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return false
	}
	if s.pending > 0 {
		s.pending--
		return false
	}
	return true
}

func (s *SimConverter) Read() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	return uint32(s.counts[s.selected])
}

func (s *SimConverter) Resolution() Resolution { return s.res }
