package comm

// Connection lifecycle manager: dial, Forward Open, cyclic exchange,
// teardown, optional auto-reconnect with a fixed backoff.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tturner/cipmaster/internal/client"
	"github.com/tturner/cipmaster/internal/enip"
	"github.com/tturner/cipmaster/internal/layout"
	"github.com/tturner/cipmaster/internal/logging"
	"github.com/tturner/cipmaster/internal/packet"
)

// State is the lifecycle state of the manager.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateRetrying
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateRetrying:
		return "retrying"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Application sequence and connection parameter constants.
const (
	appSeqStart = 65500 // initial O->T application sequence count

	otParamBase uint16 = 0x4800 // point-to-point, scheduled, variable size
	toParamBase uint16 = 0x2800 // multicast, scheduled, variable size
)

// ComputeConnectionParams derives the Forward Open size parameters from the
// assembly sizes in bits. Each direction carries the assembly plus the
// 6-byte sequence/run-idle prefix.
func ComputeConnectionParams(otBits, toBits uint) (ot, to uint16) {
	ot = otParamBase | uint16(otBits/8+enip.IOPrefixSize)
	to = toParamBase | uint16(toBits/8+enip.IOPrefixSize)
	return ot, to
}

// IOClient is the slice of the session client the manager drives. Tests
// substitute a fake.
type IOClient interface {
	ForwardOpen(otParams, toParams uint16) error
	ForwardClose() error
	ReceiveIO() (enip.IODatagram, error)
	SendIO(seqCount uint16, payload []byte) error
	Close() error
}

// DialFunc creates a connected client. The production value wraps
// client.Dial.
type DialFunc func(ctx context.Context, cfg client.Config) (IOClient, error)

// ProductionDial adapts client.Dial to the DialFunc shape.
func ProductionDial(logger *logging.Logger) DialFunc {
	return func(ctx context.Context, cfg client.Config) (IOClient, error) {
		return client.Dial(ctx, cfg, logger)
	}
}

// Bindings names the O->T fields the streaming loop maintains itself.
type Bindings struct {
	Heartbeat string // USINT counter, written each cycle
	Timestamp string // UTC epoch seconds, written each cycle
}

// DefaultBindings matches the field names of the reference target.
func DefaultBindings() Bindings {
	return Bindings{Heartbeat: "MPU_CTCMSAlive", Timestamp: "MPU_CDateTimeSec"}
}

// Options configures a Manager.
type Options struct {
	Dial         DialFunc
	Client       client.Config
	Bindings     Bindings
	RetryBackoff time.Duration // default 2s
	JoinTimeout  time.Duration // default 5s
	Now          func() time.Time
}

// Manager owns the communication goroutine.
type Manager struct {
	opts   Options
	state  *SharedState
	logger *logging.Logger

	mu            sync.Mutex
	lifecycle     State
	autoReconnect bool
	stopCh        chan struct{}
	doneCh        chan struct{}
}

// NewManager builds a manager around the shared state.
func NewManager(opts Options, state *SharedState, logger *logging.Logger) *Manager {
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.JoinTimeout == 0 {
		opts.JoinTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{opts: opts, state: state, logger: logger, lifecycle: StateIdle}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lifecycle
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.lifecycle = s
	m.mu.Unlock()
}

// EnableAuto turns on reconnection after errors.
func (m *Manager) EnableAuto() {
	m.mu.Lock()
	m.autoReconnect = true
	m.mu.Unlock()
	m.logger.Info("automatic reconnection enabled")
}

// DisableAuto turns reconnection off and stops any running exchange.
func (m *Manager) DisableAuto() {
	m.mu.Lock()
	m.autoReconnect = false
	m.mu.Unlock()
	m.logger.Info("automatic reconnection disabled")
	m.Stop()
}

// AutoEnabled reports the reconnect setting.
func (m *Manager) AutoEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.autoReconnect
}

// Start launches the communication goroutine. A second Start while one is
// running is ignored.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.doneCh != nil {
		select {
		case <-m.doneCh:
			// previous run finished, fall through and restart
		default:
			m.mu.Unlock()
			m.logger.Info("communication already running; start ignored")
			return nil
		}
	}
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	m.stopCh = stopCh
	m.doneCh = doneCh
	m.mu.Unlock()

	otParams, toParams := ComputeConnectionParams(m.state.OTLayoutBits(), m.state.TOLayoutBits())
	m.logger.Info("starting communication (O->T params 0x%04X, T->O params 0x%04X)", otParams, toParams)

	go m.loop(ctx, stopCh, doneCh, otParams, toParams)
	return nil
}

// Stop signals the goroutine and waits up to the join timeout.
func (m *Manager) Stop() {
	m.mu.Lock()
	stopCh := m.stopCh
	doneCh := m.doneCh
	if stopCh != nil {
		select {
		case <-stopCh:
			// already signalled
		default:
			close(stopCh)
		}
	}
	m.mu.Unlock()

	if doneCh == nil {
		return
	}
	select {
	case <-doneCh:
		m.logger.Info("communication stopped")
	case <-time.After(m.opts.JoinTimeout):
		m.logger.Error("communication did not stop within %s", m.opts.JoinTimeout)
		m.setState(StateFailed)
	}
}

// loop runs attempts until stopped, or after the first error when
// reconnection is disabled.
func (m *Manager) loop(ctx context.Context, stopCh, doneCh chan struct{}, otParams, toParams uint16) {
	defer close(doneCh)

	for {
		err := m.runOnce(ctx, stopCh, otParams, toParams)
		if stopped(stopCh) {
			break
		}
		if err != nil {
			m.logger.Error("communication error: %v", err)
			if !m.AutoEnabled() {
				m.logger.Info("reconnection disabled, exiting communication loop")
				break
			}
		} else if !m.AutoEnabled() {
			break
		}

		m.setState(StateRetrying)
		m.logger.Info("retrying in %s", m.opts.RetryBackoff)
		select {
		case <-stopCh:
		case <-time.After(m.opts.RetryBackoff):
		}
		if stopped(stopCh) {
			break
		}
	}

	m.setState(StateStopped)
}

// runOnce performs one dial / Forward Open / stream cycle.
func (m *Manager) runOnce(ctx context.Context, stopCh chan struct{}, otParams, toParams uint16) error {
	m.setState(StateConnecting)

	cl, err := m.opts.Dial(ctx, m.opts.Client)
	if err != nil {
		return fmt.Errorf("establish session: %w", err)
	}
	defer cl.Close()

	if err := cl.ForwardOpen(otParams, toParams); err != nil {
		return fmt.Errorf("forward open: %w", err)
	}
	m.logger.Info("forward open accepted, streaming")
	m.setState(StateStreaming)

	if err := m.stream(cl, stopCh); err != nil {
		return err
	}

	// Clean stop: release the connection before closing the sockets.
	if err := cl.ForwardClose(); err != nil {
		m.logger.Error("forward close: %v", err)
	}
	return nil
}

// stream answers every received T->O datagram with the current O->T
// assembly until stopped or a receive fails. A quiet receive window means
// the producer is gone and counts as a failure.
func (m *Manager) stream(cl IOClient, stopCh chan struct{}) error {
	var heartbeat uint8
	seq := uint16(appSeqStart)

	for {
		if stopped(stopCh) {
			return nil
		}

		d, err := cl.ReceiveIO()
		if err != nil {
			if errors.Is(err, client.ErrTimeout) {
				return fmt.Errorf("incoming stream lost: %w", err)
			}
			return fmt.Errorf("receive: %w", err)
		}

		if err := m.state.LoadTO(d.Payload); err != nil {
			return fmt.Errorf("parse incoming assembly: %w", err)
		}

		heartbeat = nextHeartbeat(heartbeat)
		snapshot, err := m.state.PrepareOT(func(ot *packet.Packet) error {
			m.applyBindings(ot, heartbeat)
			return nil
		})
		if err != nil {
			return fmt.Errorf("prepare outgoing assembly: %w", err)
		}

		if err := cl.SendIO(seq, snapshot); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		seq = nextAppSeq(seq)
	}
}

// applyBindings writes the heartbeat and timestamp into the O->T packet
// when the bound fields exist. The heartbeat only lands on a USINT field.
func (m *Manager) applyBindings(ot *packet.Packet, heartbeat uint8) {
	if name := m.opts.Bindings.Heartbeat; name != "" {
		if f, ok := ot.Field(name); ok && f.Type == layout.TypeUSINT {
			_ = ot.Set(name, uint64(heartbeat))
		}
	}
	if name := m.opts.Bindings.Timestamp; name != "" {
		if ot.Has(name) {
			_ = ot.Set(name, uint64(m.opts.Now().UTC().Unix()))
		}
	}
}

// nextHeartbeat wraps from 255 back to 0.
func nextHeartbeat(v uint8) uint8 {
	if v >= 255 {
		return 0
	}
	return v + 1
}

// nextAppSeq wraps from 65535 back to 0.
func nextAppSeq(v uint16) uint16 {
	if v == 65535 {
		return 0
	}
	return v + 1
}

func stopped(stopCh chan struct{}) bool {
	select {
	case <-stopCh:
		return true
	default:
		return false
	}
}
