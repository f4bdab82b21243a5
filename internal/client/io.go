package client

// Cyclic I/O paths: unicast UDP O->T sends and multicast T->O receives.

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/tturner/cipmaster/internal/enip"
)

// SendIO sends one O->T assembly over the unicast UDP socket. The caller
// supplies the application sequence count; the sequenced-address counter is
// internal.
func (c *Client) SendIO(seqCount uint16, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.udp == nil {
		return ErrNotConnected
	}
	frame := enip.BuildIODatagram(enip.IODatagram{
		ConnectionID:  c.otConnID,
		Sequence:      c.ioSeq,
		SequenceCount: seqCount,
		Header:        enip.HeaderRun,
		Payload:       payload,
	})
	c.ioSeq++
	if _, err := c.udp.Write(frame); err != nil {
		return fmt.Errorf("send I/O datagram: %w", err)
	}
	return nil
}

// ReceiveIO waits up to the configured receive timeout for one T->O
// datagram from the multicast group. A quiet window returns ErrTimeout.
func (c *Client) ReceiveIO() (enip.IODatagram, error) {
	c.mu.Lock()
	mcast := c.mcast
	timeout := c.cfg.ReceiveTimeout
	c.mu.Unlock()

	if mcast == nil {
		return enip.IODatagram{}, ErrNotConnected
	}
	raw, err := mcast.receive(timeout)
	if err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return enip.IODatagram{}, ErrTimeout
		}
		return enip.IODatagram{}, fmt.Errorf("receive I/O datagram: %w", err)
	}
	d, err := enip.ParseIODatagram(raw)
	if err != nil {
		return enip.IODatagram{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return d, nil
}

// multicastReceiver is a bound UDP socket joined to the T->O group.
type multicastReceiver struct {
	conn  *net.UDPConn
	pconn *ipv4.PacketConn
	group net.IP
	ifi   *net.Interface
}

// joinMulticast binds the I/O port and joins the group on the named
// interface (all interfaces when empty).
func joinMulticast(group, ifname string) (*multicastReceiver, error) {
	groupIP := net.ParseIP(group)
	if groupIP == nil || !groupIP.IsMulticast() {
		return nil, fmt.Errorf("invalid multicast group address: %q", group)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: IOPort})
	if err != nil {
		return nil, fmt.Errorf("listen UDP for multicast: %w", err)
	}

	var ifi *net.Interface
	if ifname != "" {
		ifi, err = net.InterfaceByName(ifname)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("interface %q: %w", ifname, err)
		}
	}

	p := ipv4.NewPacketConn(conn)
	if err := p.JoinGroup(ifi, &net.UDPAddr{IP: groupIP}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join multicast group %s: %w", groupIP, err)
	}

	return &multicastReceiver{conn: conn, pconn: p, group: groupIP, ifi: ifi}, nil
}

func (m *multicastReceiver) receive(timeout time.Duration) ([]byte, error) {
	if err := m.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}
	buf := make([]byte, 2000)
	n, _, err := m.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (m *multicastReceiver) close() error {
	_ = m.pconn.LeaveGroup(m.ifi, &net.UDPAddr{IP: m.group})
	return m.conn.Close()
}
