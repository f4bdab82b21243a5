package client

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/tturner/cipmaster/internal/cip"
	"github.com/tturner/cipmaster/internal/enip"
	"github.com/tturner/cipmaster/internal/logging"
)

// fakeTarget answers sendRR exchanges on the far end of a pipe. Each handler
// receives the raw CIP request and returns the raw CIP reply.
func fakeTarget(t *testing.T, conn net.Conn, handlers ...func(req []byte) []byte) {
	t.Helper()
	go func() {
		for _, handle := range handlers {
			header := make([]byte, enip.HeaderSize)
			if _, err := io.ReadFull(conn, header); err != nil {
				return
			}
			length := binary.LittleEndian.Uint16(header[2:4])
			body := make([]byte, length)
			if _, err := io.ReadFull(conn, body); err != nil {
				return
			}
			encap, err := enip.Decode(append(header, body...))
			if err != nil {
				return
			}
			req, err := enip.ParseSendRRData(encap.Data)
			if err != nil {
				return
			}
			reply := enip.BuildSendRRData(encap.SessionID, encap.SenderContext, handle(req))
			if _, err := conn.Write(reply); err != nil {
				return
			}
		}
	}()
}

func testClient(t *testing.T, conn net.Conn) *Client {
	t.Helper()
	logger, err := logging.NewLogger(logging.LogLevelSilent, "")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	cfg := Config{TargetIP: "127.0.0.1"}
	cfg.applyDefaults()
	return &Client{cfg: cfg, logger: logger, tcp: conn, session: 0x11223344, unitSeq: 1, ioSeq: 1}
}

// cipReply builds a Message Router reply with the given status and payload.
func cipReply(service cip.ServiceCode, status uint8, payload []byte) []byte {
	out := []byte{uint8(service) | cip.ResponseServiceBit, 0x00, status, 0x00}
	return append(out, payload...)
}

func TestForwardOpenStoresConnectionIDs(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	payload := make([]byte, 26)
	binary.LittleEndian.PutUint32(payload[0:4], 0xAAAA0001)
	binary.LittleEndian.PutUint32(payload[4:8], 0xBBBB0002)

	fakeTarget(t, remote, func(req []byte) []byte {
		if req[0] != uint8(cip.ServiceForwardOpen) {
			t.Errorf("service: got 0x%02X, want 0x54", req[0])
		}
		return cipReply(cip.ServiceForwardOpen, cip.StatusSuccess, payload)
	})

	c := testClient(t, local)
	if err := c.ForwardOpen(0x4816, 0x2816); err != nil {
		t.Fatalf("ForwardOpen failed: %v", err)
	}
	ot, to := c.ConnectionIDs()
	if ot != 0xAAAA0001 || to != 0xBBBB0002 {
		t.Errorf("connection IDs: got 0x%08X/0x%08X", ot, to)
	}
}

func TestForwardOpenRejected(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	fakeTarget(t, remote, func(req []byte) []byte {
		return cipReply(cip.ServiceForwardOpen, 0x01, nil)
	})

	c := testClient(t, local)
	err := c.ForwardOpen(0x4816, 0x2816)
	if !errors.Is(err, ErrForwardOpenRejected) {
		t.Fatalf("got %v, want ErrForwardOpenRejected", err)
	}
}

func TestGetAttribute(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	fakeTarget(t, remote, func(req []byte) []byte {
		if req[0] != uint8(cip.ServiceUnconnectedSend) {
			t.Errorf("outer service: got 0x%02X, want UnconnectedSend", req[0])
		}
		value := []byte{0x01, 0x00, 0x03, 0x00, 0x00, 0x00, 0xCA, 0xFE}
		return cipReply(cip.ServiceGetAttributeList, cip.StatusSuccess, value)
	})

	c := testClient(t, local)
	value, err := c.GetAttribute(0x04, 0x65, 3)
	if err != nil {
		t.Fatalf("GetAttribute failed: %v", err)
	}
	if !bytes.Equal(value, []byte{0xCA, 0xFE}) {
		t.Errorf("value: got % X, want CA FE", value)
	}
}

func TestGetInstanceListContinuation(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	first := make([]byte, 8)
	binary.LittleEndian.PutUint32(first[0:4], 1)
	binary.LittleEndian.PutUint32(first[4:8], 2)
	second := make([]byte, 4)
	binary.LittleEndian.PutUint32(second[0:4], 3)

	fakeTarget(t, remote,
		func(req []byte) []byte {
			return cipReply(cip.ServiceGetInstanceList, cip.StatusPartialTransfer, first)
		},
		func(req []byte) []byte {
			return cipReply(cip.ServiceGetInstanceList, cip.StatusSuccess, second)
		},
	)

	c := testClient(t, local)
	ids, err := c.GetInstanceList(0x04)
	if err != nil {
		t.Fatalf("GetInstanceList failed: %v", err)
	}
	want := []uint32{1, 2, 3}
	if len(ids) != len(want) {
		t.Fatalf("ids: got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids: got %v, want %v", ids, want)
		}
	}
}

func TestReadFullTagChunked(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	fakeTarget(t, remote,
		func(req []byte) []byte {
			return cipReply(cip.ServiceReadOtherTag, cip.StatusPartialTransfer, []byte{1, 2, 3})
		},
		func(req []byte) []byte {
			return cipReply(cip.ServiceReadOtherTag, cip.StatusSuccess, []byte{4, 5})
		},
	)

	c := testClient(t, local)
	data, err := c.ReadFullTag(0x6B, 1, 5)
	if err != nil {
		t.Fatalf("ReadFullTag failed: %v", err)
	}
	if !bytes.Equal(data, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("data: got % X, want 01 02 03 04 05", data)
	}
}

func TestSetAttributeErrorStatus(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	fakeTarget(t, remote, func(req []byte) []byte {
		return cipReply(cip.ServiceSetAttributeList, 0x05, nil)
	})

	c := testClient(t, local)
	err := c.SetAttribute(0x04, 0x65, 3, []byte{0x01})
	if !errors.Is(err, ErrNonZeroStatus) {
		t.Fatalf("got %v, want ErrNonZeroStatus", err)
	}
}
