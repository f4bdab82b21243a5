package netcheck

// Network preflight: address validation, target reachability and multicast
// capability. The route-table parsing the operators used before is replaced
// with interface flag inspection.

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// Check statuses.
const (
	StatusOK     = "OK"
	StatusFailed = "FAILED"
)

var (
	// ErrInvalidIPv4 reports an address that is not a plain IPv4 address.
	ErrInvalidIPv4 = errors.New("not a valid IPv4 address")
	// ErrNotMulticast reports an address outside 224.0.0.0/4.
	ErrNotMulticast = errors.New("not an IPv4 multicast address")
)

// Check is one preflight step outcome.
type Check struct {
	Name   string
	Status string
}

// Result is the preflight outcome.
type Result struct {
	TargetIP    string
	MulticastIP string
	Checks      []Check
	OK          bool
}

// Config drives a preflight run. Probe and Interfaces default to real
// implementations; tests substitute fakes.
type Config struct {
	TargetIP    string
	MulticastIP string
	ProbePort   int           // TCP port probed on the target
	DialTimeout time.Duration // default 2s

	Probe      func(addr string, timeout time.Duration) bool
	Interfaces func() ([]net.Interface, error)
}

// ValidateIPv4 parses a dotted-quad IPv4 address.
func ValidateIPv4(s string) (net.IP, error) {
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIPv4, s)
	}
	return ip.To4(), nil
}

// ValidateMulticastIPv4 parses an address and requires it to sit in
// 224.0.0.0/4.
func ValidateMulticastIPv4(s string) (net.IP, error) {
	ip, err := ValidateIPv4(s)
	if err != nil {
		return nil, err
	}
	if !ip.IsMulticast() {
		return nil, fmt.Errorf("%w: %q", ErrNotMulticast, s)
	}
	return ip, nil
}

// HasMulticastInterface reports whether any interface is up and
// multicast-capable.
func HasMulticastInterface(list func() ([]net.Interface, error)) bool {
	ifaces, err := list()
	if err != nil {
		return false
	}
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp != 0 && ifi.Flags&net.FlagMulticast != 0 {
			return true
		}
	}
	return false
}

// tcpProbe attempts a TCP connection to decide reachability.
func tcpProbe(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Run executes the preflight checks in order. Address validation failures
// short-circuit, matching the behaviour the operators expect.
func Run(cfg Config) Result {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ProbePort == 0 {
		cfg.ProbePort = 44818
	}
	if cfg.Probe == nil {
		cfg.Probe = tcpProbe
	}
	if cfg.Interfaces == nil {
		cfg.Interfaces = net.Interfaces
	}

	var r Result

	target, err := ValidateIPv4(cfg.TargetIP)
	if err != nil {
		r.Checks = append(r.Checks, Check{"Validate Target IP", StatusFailed})
		return r
	}
	r.TargetIP = target.String()

	mcast, err := ValidateMulticastIPv4(cfg.MulticastIP)
	if err != nil {
		r.Checks = append(r.Checks, Check{"Validate Multicast IP", StatusFailed})
		return r
	}
	r.MulticastIP = mcast.String()

	reachable := cfg.Probe(net.JoinHostPort(r.TargetIP, fmt.Sprintf("%d", cfg.ProbePort)), cfg.DialTimeout)
	r.Checks = append(r.Checks, Check{"Communication With Target", status(reachable)})

	capable := HasMulticastInterface(cfg.Interfaces)
	r.Checks = append(r.Checks, Check{"Multicast-Capable Interface", status(capable)})

	ok := true
	for _, c := range r.Checks {
		if c.Status != StatusOK {
			ok = false
			break
		}
	}
	r.OK = ok
	return r
}

func status(ok bool) string {
	if ok {
		return StatusOK
	}
	return StatusFailed
}
