package waveform

// Waveform generators for REAL fields of the outgoing assembly. Each active
// wave owns a goroutine that samples its function every 10ms and writes the
// value through the shared state.

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/tturner/cipmaster/internal/comm"
	"github.com/tturner/cipmaster/internal/layout"
)

var (
	// ErrNotReal reports a wave target that is not a REAL field.
	ErrNotReal = errors.New("field is not REAL and cannot be waved")
	// ErrBadPeriod reports a non-positive period.
	ErrBadPeriod = errors.New("period must be greater than zero")
)

// DefaultSampleInterval is the write cadence of a running wave.
const DefaultSampleInterval = 10 * time.Millisecond

// Func computes a wave sample from the elapsed time and the period.
type Func func(elapsed, period time.Duration) float64

// Sine builds a sine wave oscillating between min and max.
func Sine(max, min float64) Func {
	amplitude := (max - min) / 2
	offset := (max + min) / 2
	return func(elapsed, period time.Duration) float64 {
		return amplitude*math.Sin(2*math.Pi*elapsed.Seconds()/period.Seconds()) + offset
	}
}

// Triangle builds a triangle wave oscillating between min and max.
func Triangle(max, min float64) Func {
	amplitude := (max - min) / 2
	offset := (max + min) / 2
	return func(elapsed, period time.Duration) float64 {
		phase := elapsed.Seconds() / period.Seconds()
		saw := phase - math.Floor(phase+0.5) // [-0.5, 0.5)
		return amplitude*(2*math.Abs(2*saw)-1) + offset
	}
}

// Square builds a square wave spending duty (clamped to [0,1]) of each
// period at max.
func Square(max, min, duty float64) Func {
	duty = math.Max(0, math.Min(1, duty))
	return func(elapsed, period time.Duration) float64 {
		if math.Mod(elapsed.Seconds(), period.Seconds()) < period.Seconds()*duty {
			return max
		}
		return min
	}
}

// Manager tracks one goroutine per waved field.
type Manager struct {
	state    *comm.SharedState
	interval time.Duration

	mu    sync.Mutex
	stops map[string]chan struct{}
	done  map[string]chan struct{}
}

// NewManager builds a manager writing through the shared state.
func NewManager(state *comm.SharedState, interval time.Duration) *Manager {
	if interval == 0 {
		interval = DefaultSampleInterval
	}
	return &Manager{
		state:    state,
		interval: interval,
		stops:    make(map[string]chan struct{}),
		done:     make(map[string]chan struct{}),
	}
}

// Start launches a wave on the named REAL field, replacing any wave already
// running there.
func (m *Manager) Start(field string, period time.Duration, fn Func) error {
	if period <= 0 {
		return ErrBadPeriod
	}
	if err := m.checkReal(field); err != nil {
		return err
	}

	m.Stop(field)

	stop := make(chan struct{})
	done := make(chan struct{})
	m.mu.Lock()
	m.stops[field] = stop
	m.done[field] = done
	m.mu.Unlock()

	go m.run(field, period, fn, stop, done)
	return nil
}

// Stop halts the wave on a field. It reports whether one was running.
func (m *Manager) Stop(field string) bool {
	m.mu.Lock()
	stop, ok := m.stops[field]
	done := m.done[field]
	if ok {
		delete(m.stops, field)
		delete(m.done, field)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	close(stop)
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
	}
	return true
}

// StopAll halts every running wave and returns the field names stopped.
func (m *Manager) StopAll() []string {
	m.mu.Lock()
	names := make([]string, 0, len(m.stops))
	for name := range m.stops {
		names = append(names, name)
	}
	m.mu.Unlock()

	var stopped []string
	for _, name := range names {
		if m.Stop(name) {
			stopped = append(stopped, name)
		}
	}
	return stopped
}

// Active lists the fields with a running wave.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.stops))
	for name := range m.stops {
		names = append(names, name)
	}
	return names
}

func (m *Manager) run(field string, period time.Duration, fn Func, stop, done chan struct{}) {
	defer close(done)
	start := time.Now()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			value := fn(now.Sub(start), period)
			if err := m.state.Set(field, value); err != nil {
				return
			}
		}
	}
}

// checkReal verifies the target field exists and is REAL.
func (m *Manager) checkReal(field string) error {
	f, ok := m.state.FieldSpec(field)
	if !ok {
		return fmt.Errorf("field %q not found", field)
	}
	if f.Type != layout.TypeREAL {
		return fmt.Errorf("%w: %q is %s", ErrNotReal, field, f.Type)
	}
	return nil
}
