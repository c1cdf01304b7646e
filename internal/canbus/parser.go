package canbus

import (
	"fmt"
	"math"
	"sync"
)

// SignalRequest names one signal the parser should decode.
type SignalRequest struct {
	Message string
	Signal  string
}

// Check requires a message to keep arriving at roughly FrequencyHz.
type Check struct {
	Message     string
	FrequencyHz float64
}

// ParserConfig configures a Parser for one bus.
type ParserConfig struct {
	Catalog *Catalog
	Bus     uint8
	Signals []SignalRequest
	Checks  []Check
	CycleHz float64
}

type trackedMessage struct {
	def      *MessageDef
	signals  []SignalDef
	values   map[string]float64
	lastSeen int64 // cycle number, -1 before the first frame
	window   int64 // 0 when the message is not checked
}

// Parser decodes the requested signals from frames on a single bus and tracks
// how recently each checked message was seen. It is safe for concurrent use,
// though the control loop is normally its only caller.
type Parser struct {
	mu       sync.RWMutex
	bus      uint8
	cycle    int64
	byID     map[uint32]*trackedMessage
	byName   map[string]*trackedMessage
	checked  []*trackedMessage
	received uint64
}

// NewParser validates cfg against its catalog and builds a parser.
func NewParser(cfg ParserConfig) (*Parser, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("parser for bus %d: no catalog", cfg.Bus)
	}
	cycleHz := cfg.CycleHz
	if cycleHz <= 0 {
		cycleHz = 100
	}

	p := &Parser{
		bus:    cfg.Bus,
		byID:   make(map[uint32]*trackedMessage),
		byName: make(map[string]*trackedMessage),
	}

	track := func(name string) (*trackedMessage, error) {
		if m, ok := p.byName[name]; ok {
			return m, nil
		}
		def, ok := cfg.Catalog.Message(name)
		if !ok {
			return nil, fmt.Errorf("catalog %s has no message %q", cfg.Catalog.Name, name)
		}
		m := &trackedMessage{def: def, values: make(map[string]float64), lastSeen: -1}
		p.byName[name] = m
		p.byID[def.ID] = m
		return m, nil
	}

	for _, req := range cfg.Signals {
		m, err := track(req.Message)
		if err != nil {
			return nil, err
		}
		sig, ok := m.def.Signal(req.Signal)
		if !ok {
			return nil, fmt.Errorf("message %s has no signal %q", req.Message, req.Signal)
		}
		m.signals = append(m.signals, sig)
		m.values[sig.Name] = sig.Default
	}

	for _, c := range cfg.Checks {
		if c.FrequencyHz <= 0 {
			return nil, fmt.Errorf("check for %s: frequency must be positive", c.Message)
		}
		m, err := track(c.Message)
		if err != nil {
			return nil, err
		}
		m.window = int64(math.Ceil(10 * cycleHz / c.FrequencyHz))
		p.checked = append(p.checked, m)
	}

	return p, nil
}

// Bus returns the bus index this parser listens on.
func (p *Parser) Bus() uint8 { return p.bus }

// UpdateFrames advances the parser by one cycle and decodes every frame in
// frames that belongs to this bus and a tracked message. Frames for other buses
// or unknown identifiers are ignored.
func (p *Parser) UpdateFrames(frames []BusFrame) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cycle++
	for _, f := range frames {
		if f.Bus != p.bus || f.Frame.ID&FlagRemote != 0 {
			continue
		}
		m, ok := p.byID[f.ArbitrationID()]
		if !ok {
			continue
		}
		for _, s := range m.signals {
			m.values[s.Name] = s.Decode(f.Frame.Data)
		}
		m.lastSeen = p.cycle
		p.received++
	}
}

// Value returns the most recently decoded value of a signal, or its default
// if no frame has carried it yet. Unrequested signals read as zero.
func (p *Parser) Value(message, signal string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.byName[message]
	if !ok {
		return 0
	}
	return m.values[signal]
}

// MessageValid reports whether a checked message arrived within its freshness
// window. Unchecked messages are valid once seen at least once.
func (p *Parser) MessageValid(message string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.byName[message]
	if !ok {
		return false
	}
	return p.fresh(m)
}

func (p *Parser) fresh(m *trackedMessage) bool {
	if m.lastSeen < 0 {
		return false
	}
	if m.window == 0 {
		return true
	}
	return p.cycle-m.lastSeen < m.window
}

// CanValid is true when every checked message is fresh. A parser without
// checks is always valid.
func (p *Parser) CanValid() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, m := range p.checked {
		if !p.fresh(m) {
			return false
		}
	}
	return true
}

// Cycle returns the number of UpdateFrames calls so far.
func (p *Parser) Cycle() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cycle
}

// Received returns the number of tracked frames decoded so far.
func (p *Parser) Received() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.received
}
