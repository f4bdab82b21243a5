package comm

// Shared packet state. One mutex guards both assemblies: the console and
// waveform writers mutate the O->T packet while the streaming loop snapshots
// it and loads T->O data.

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tturner/cipmaster/internal/layout"
	"github.com/tturner/cipmaster/internal/packet"
)

// ErrUnknownField reports a field neither assembly declares.
var ErrUnknownField = errors.New("field not declared by either assembly")

// SharedState holds the O->T and T->O packets behind a single lock.
type SharedState struct {
	mu sync.Mutex
	ot *packet.Packet
	to *packet.Packet
}

// NewSharedState binds the two assembly packets.
func NewSharedState(ot, to *packet.Packet) *SharedState {
	return &SharedState{ot: ot, to: to}
}

// Set writes a field value into whichever packet declares it. Incoming
// fields are writable too, but the next received frame overwrites them.
func (s *SharedState) Set(name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.owner(name); p != nil {
		return p.Set(name, value)
	}
	return fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Clear zeroes a field in whichever packet declares it.
func (s *SharedState) Clear(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.owner(name); p != nil {
		return p.Clear(name)
	}
	return fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Format reads a field from whichever packet declares it.
func (s *SharedState) Format(name string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.owner(name); p != nil {
		return p.Format(name)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// FieldSpec returns the spec of a field from whichever packet declares it.
func (s *SharedState) FieldSpec(name string) (layout.FieldSpec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.owner(name); p != nil {
		return p.Field(name)
	}
	return layout.FieldSpec{}, false
}

// Has reports whether either assembly declares the field.
func (s *SharedState) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner(name) != nil
}

// PrepareOT runs fn on the O->T packet under the lock and returns a
// snapshot of the resulting wire bytes.
func (s *SharedState) PrepareOT(fn func(ot *packet.Packet) error) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		if err := fn(s.ot); err != nil {
			return nil, err
		}
	}
	return s.ot.Snapshot(), nil
}

// LoadTO replaces the T->O packet contents with received wire bytes.
func (s *SharedState) LoadTO(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.to.LoadBytes(data)
}

// FieldValue pairs a field name with its display value.
type FieldValue struct {
	Name  string
	Type  layout.CipType
	Value any
}

// OTValues and TOValues return declared field values in layout order.
// Synthesized spare fields are skipped.
func (s *SharedState) OTValues() []FieldValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return values(s.ot)
}

func (s *SharedState) TOValues() []FieldValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return values(s.to)
}

func values(p *packet.Packet) []FieldValue {
	var out []FieldValue
	for _, f := range p.Layout().Fields {
		if strings.HasPrefix(f.ID, "spare_") {
			continue
		}
		v, err := p.Format(f.ID)
		if err != nil {
			continue
		}
		out = append(out, FieldValue{Name: f.ID, Type: f.Type, Value: v})
	}
	return out
}

// OTFieldsByType and TOFieldsByType list field names grouped by CIP type.
func (s *SharedState) OTFieldsByType() map[string][]string { return s.ot.FieldsByType() }

func (s *SharedState) TOFieldsByType() map[string][]string { return s.to.FieldsByType() }

// OTLayoutBits and TOLayoutBits expose the assembly sizes for connection
// parameter calculation.
func (s *SharedState) OTLayoutBits() uint { return s.ot.Layout().TotalBits }

func (s *SharedState) TOLayoutBits() uint { return s.to.Layout().TotalBits }

// owner returns the packet declaring name, O->T winning ties. Callers hold
// the lock.
func (s *SharedState) owner(name string) *packet.Packet {
	if s.ot.Has(name) {
		return s.ot
	}
	if s.to.Has(name) {
		return s.to
	}
	return nil
}
