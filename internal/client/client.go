package client

// EtherNet/IP session client. One TCP connection carries explicit messaging
// (RegisterSession, Forward Open/Close, attribute services); a unicast UDP
// socket sends O->T cyclic I/O and a multicast membership receives T->O.

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/tturner/cipmaster/internal/cip"
	"github.com/tturner/cipmaster/internal/enip"
	"github.com/tturner/cipmaster/internal/logging"
)

// Well-known EtherNet/IP ports.
const (
	ExplicitPort = 44818 // TCP, explicit messaging
	IOPort       = 2222  // UDP, implicit (cyclic) I/O
)

var (
	// ErrSessionFailed reports a RegisterSession rejection.
	ErrSessionFailed = errors.New("session registration failed")
	// ErrForwardOpenRejected reports a non-zero Forward Open status.
	ErrForwardOpenRejected = errors.New("forward open rejected")
	// ErrNonZeroStatus reports a CIP reply with a non-success general status.
	ErrNonZeroStatus = errors.New("CIP error status")
	// ErrTimeout reports that no frame arrived within the receive window.
	ErrTimeout = errors.New("receive timed out")
	// ErrMalformedFrame reports an undecodable frame.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrNotConnected reports use of a closed client.
	ErrNotConnected = errors.New("not connected")
)

// Config describes the target and the receive parameters.
type Config struct {
	TargetIP       string
	MulticastGroup string        // T->O group, e.g. "239.192.1.3"
	Interface      string        // receive interface name, empty = all
	DialTimeout    time.Duration // default 5s
	ReceiveTimeout time.Duration // default 500ms
}

func (c *Config) applyDefaults() {
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReceiveTimeout == 0 {
		c.ReceiveTimeout = 500 * time.Millisecond
	}
}

// Client holds the state of one EtherNet/IP session.
type Client struct {
	cfg    Config
	logger *logging.Logger

	mu      sync.Mutex
	tcp     net.Conn
	udp     *net.UDPConn // unicast O->T I/O socket
	mcast   *multicastReceiver
	session uint32
	ctx     [8]byte

	otConnID uint32 // from Forward Open, O->T
	toConnID uint32 // from Forward Open, T->O
	unitSeq  uint16 // SendUnitData message sequence
	ioSeq    uint32 // sequenced-address counter for O->T datagrams
}

// Dial opens the TCP connection, registers the session, connects the O->T
// UDP socket and joins the T->O multicast group.
func Dial(ctx context.Context, cfg Config, logger *logging.Logger) (*Client, error) {
	cfg.applyDefaults()

	c := &Client{cfg: cfg, logger: logger, unitSeq: 1, ioSeq: 1}

	dialer := net.Dialer{Timeout: cfg.DialTimeout}
	tcp, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(cfg.TargetIP, fmt.Sprintf("%d", ExplicitPort)))
	if err != nil {
		return nil, fmt.Errorf("dial explicit channel: %w", err)
	}
	c.tcp = tcp

	if err := c.registerSession(); err != nil {
		tcp.Close()
		return nil, err
	}
	logger.Debug("session registered: 0x%08X", c.session)

	udpAddr := &net.UDPAddr{IP: net.ParseIP(cfg.TargetIP), Port: IOPort}
	udp, err := net.DialUDP("udp4", nil, udpAddr)
	if err != nil {
		c.closeLocked()
		return nil, fmt.Errorf("dial I/O channel: %w", err)
	}
	c.udp = udp

	mcast, err := joinMulticast(cfg.MulticastGroup, cfg.Interface)
	if err != nil {
		c.closeLocked()
		return nil, fmt.Errorf("join T->O group: %w", err)
	}
	c.mcast = mcast
	logger.Debug("joined multicast group %s", cfg.MulticastGroup)

	return c, nil
}

// registerSession performs the RegisterSession exchange.
func (c *Client) registerSession() error {
	if _, err := c.tcp.Write(enip.BuildRegisterSession(c.ctx)); err != nil {
		return fmt.Errorf("send RegisterSession: %w", err)
	}
	encap, err := c.recvEncap()
	if err != nil {
		return fmt.Errorf("RegisterSession reply: %w", err)
	}
	if encap.Status != enip.StatusSuccess {
		return fmt.Errorf("%w: encapsulation status 0x%08X", ErrSessionFailed, encap.Status)
	}
	c.session = encap.SessionID
	return nil
}

// recvEncap reads one encapsulation packet from the TCP stream.
func (c *Client) recvEncap() (enip.Encapsulation, error) {
	header := make([]byte, enip.HeaderSize)
	if _, err := io.ReadFull(c.tcp, header); err != nil {
		return enip.Encapsulation{}, err
	}
	length := binary.LittleEndian.Uint16(header[2:4])
	buf := header
	if length > 0 {
		buf = append(header, make([]byte, length)...)
		if _, err := io.ReadFull(c.tcp, buf[enip.HeaderSize:]); err != nil {
			return enip.Encapsulation{}, err
		}
	}
	encap, err := enip.Decode(buf)
	if err != nil {
		return enip.Encapsulation{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return encap, nil
}

// sendRR sends an encoded CIP request as SendRRData and returns the parsed
// CIP reply.
func (c *Client) sendRR(cipData []byte) (cip.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tcp == nil {
		return cip.Response{}, ErrNotConnected
	}
	if _, err := c.tcp.Write(enip.BuildSendRRData(c.session, c.ctx, cipData)); err != nil {
		return cip.Response{}, fmt.Errorf("send RRData: %w", err)
	}
	encap, err := c.recvEncap()
	if err != nil {
		return cip.Response{}, fmt.Errorf("RRData reply: %w", err)
	}
	if encap.Status != enip.StatusSuccess {
		return cip.Response{}, fmt.Errorf("%w: encapsulation status 0x%08X", ErrNonZeroStatus, encap.Status)
	}
	payload, err := enip.ParseSendRRData(encap.Data)
	if err != nil {
		return cip.Response{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	resp, err := cip.ParseResponse(payload)
	if err != nil {
		return cip.Response{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return resp, nil
}

// sendRRCM sends a request through the Connection Manager UnconnectedSend
// envelope. Replies come back as plain Message Router replies.
func (c *Client) sendRRCM(cipData []byte) (cip.Response, error) {
	return c.sendRR(cip.WrapUnconnectedSend(cipData))
}

// SendUnitData sends an encoded CIP message over the established connection.
func (c *Client) SendUnitData(cipData []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tcp == nil {
		return ErrNotConnected
	}
	packet := enip.BuildSendUnitData(c.session, c.ctx, c.otConnID, c.unitSeq, cipData)
	c.unitSeq++
	if _, err := c.tcp.Write(packet); err != nil {
		return fmt.Errorf("send UnitData: %w", err)
	}
	return nil
}

// ForwardOpen negotiates the cyclic I/O connection and stores the returned
// connection IDs.
func (c *Client) ForwardOpen(otParams, toParams uint16) error {
	resp, err := c.sendRR(cip.NewForwardOpenRequest(otParams, toParams).Encode())
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("%w: %s", ErrForwardOpenRejected, cip.StatusText(resp.Status))
	}
	reply, err := cip.ParseForwardOpenReply(resp.Payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	c.mu.Lock()
	c.otConnID = reply.OTConnectionID
	c.toConnID = reply.TOConnectionID
	c.mu.Unlock()

	c.logger.Info("forward open accepted: O->T 0x%08X, T->O 0x%08X", reply.OTConnectionID, reply.TOConnectionID)
	return nil
}

// ForwardClose tears down the cyclic I/O connection.
func (c *Client) ForwardClose() error {
	resp, err := c.sendRR(cip.BuildForwardClose())
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("%w: forward close: %s", ErrNonZeroStatus, cip.StatusText(resp.Status))
	}
	return nil
}

// ConnectionIDs returns the IDs assigned by the last Forward Open.
func (c *Client) ConnectionIDs() (ot, to uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.otConnID, c.toConnID
}

// GetAttribute reads one attribute via Get Attribute List.
func (c *Client) GetAttribute(class, instance, attr uint16) ([]byte, error) {
	resp, err := c.sendRRCM(cip.BuildGetAttributeList(class, instance, attr))
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: get attribute: %s", ErrNonZeroStatus, cip.StatusText(resp.Status))
	}
	return cip.ParseGetAttributeListReply(resp.Payload, attr)
}

// SetAttribute writes one attribute via Set Attribute List.
func (c *Client) SetAttribute(class, instance, attr uint16, value []byte) error {
	resp, err := c.sendRRCM(cip.BuildSetAttributeList(class, instance, attr, value))
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("%w: set attribute: %s", ErrNonZeroStatus, cip.StatusText(resp.Status))
	}
	return nil
}

// GetInstanceList enumerates the instances of a class, following
// partial-transfer continuations.
func (c *Client) GetInstanceList(class uint16) ([]uint32, error) {
	var (
		ids   []uint32
		start uint16
	)
	for {
		resp, err := c.sendRRCM(cip.BuildGetInstanceList(class, start))
		if err != nil {
			return nil, err
		}
		chunk, err := cip.ParseInstanceIDs(resp.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		ids = append(ids, chunk...)

		switch resp.Status {
		case cip.StatusSuccess:
			return ids, nil
		case cip.StatusPartialTransfer:
			if len(ids) == 0 {
				return nil, fmt.Errorf("%w: partial transfer with empty instance list", ErrMalformedFrame)
			}
			start = uint16(ids[len(ids)-1]) + 1
		default:
			return nil, fmt.Errorf("%w: instance list: %s", ErrNonZeroStatus, cip.StatusText(resp.Status))
		}
	}
}

// ReadFullTag reads totalSize bytes of a tag, following partial-transfer
// chunking.
func (c *Client) ReadFullTag(class, instance uint16, totalSize int) ([]byte, error) {
	data := make([]byte, 0, totalSize)
	offset := 0
	for offset < totalSize {
		remaining := totalSize - offset
		resp, err := c.sendRRCM(cip.BuildReadOtherTag(class, instance, uint32(offset), uint16(remaining)))
		if err != nil {
			return nil, err
		}
		switch {
		case resp.Status == cip.StatusSuccess:
			if len(resp.Payload) != remaining {
				return nil, fmt.Errorf("%w: final chunk size %d, want %d", ErrMalformedFrame, len(resp.Payload), remaining)
			}
		case resp.Status == cip.StatusPartialTransfer && len(resp.Payload) > 0:
			// partial chunk, keep reading
		default:
			return nil, fmt.Errorf("%w: tag read: %s", ErrNonZeroStatus, cip.StatusText(resp.Status))
		}
		data = append(data, resp.Payload...)
		offset += len(resp.Payload)
	}
	return data, nil
}

// Close unregisters the session and closes every socket. Safe to call more
// than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	var first error
	if c.tcp != nil {
		if c.session != 0 {
			// Best effort; the target drops the session on close anyway.
			_, _ = c.tcp.Write(enip.BuildUnregisterSession(c.session, c.ctx))
		}
		first = c.tcp.Close()
		c.tcp = nil
	}
	if c.udp != nil {
		if err := c.udp.Close(); err != nil && first == nil {
			first = err
		}
		c.udp = nil
	}
	if c.mcast != nil {
		if err := c.mcast.close(); err != nil && first == nil {
			first = err
		}
		c.mcast = nil
	}
	return first
}
