package cip

// Explicit service payloads: attribute access, instance enumeration and the
// vendor tag read, plus the UnconnectedSend envelope they travel in.

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// BuildGetAttributeList builds a single-attribute Get Attribute List
// request. Get Attribute Single is avoided because targets in the field do
// not answer it reliably.
func BuildGetAttributeList(class, instance, attr uint16) []byte {
	var body []byte
	body = binary.LittleEndian.AppendUint16(body, 1) // attribute count
	body = binary.LittleEndian.AppendUint16(body, attr)
	return EncodeRequest(Request{
		Service: ServiceGetAttributeList,
		Path:    Path{Class: class, Instance: instance},
		Payload: body,
	})
}

// ParseGetAttributeListReply extracts the single attribute value from a Get
// Attribute List reply payload.
func ParseGetAttributeListReply(payload []byte, attr uint16) ([]byte, error) {
	if len(payload) < 6 {
		return nil, fmt.Errorf("attribute list reply too short: %d bytes", len(payload))
	}
	if count := binary.LittleEndian.Uint16(payload[0:2]); count != 1 {
		return nil, fmt.Errorf("attribute count: got %d, want 1", count)
	}
	if got := binary.LittleEndian.Uint16(payload[2:4]); got != attr {
		return nil, fmt.Errorf("attribute ID: got %d, want %d", got, attr)
	}
	if status := binary.LittleEndian.Uint16(payload[4:6]); status != 0 {
		return nil, fmt.Errorf("attribute status 0x%04X", status)
	}
	return payload[6:], nil
}

// BuildSetAttributeList builds a single-attribute Set Attribute List request.
func BuildSetAttributeList(class, instance, attr uint16, value []byte) []byte {
	body := make([]byte, 4, 4+len(value))
	binary.LittleEndian.PutUint16(body[0:2], 1) // attribute count
	binary.LittleEndian.PutUint16(body[2:4], attr)
	body = append(body, value...)
	return EncodeRequest(Request{
		Service: ServiceSetAttributeList,
		Path:    Path{Class: class, Instance: instance},
		Payload: body,
	})
}

// BuildGetInstanceList builds a Get Instance List request starting at the
// given instance. A partial-transfer status in the reply means the caller
// should issue another request starting past the last ID returned.
func BuildGetInstanceList(class, startInstance uint16) []byte {
	return EncodeRequest(Request{
		Service: ServiceGetInstanceList,
		Path:    Path{Class: class, Instance: startInstance},
	})
}

// ParseInstanceIDs decodes the 32-bit instance IDs in a Get Instance List
// reply payload.
func ParseInstanceIDs(payload []byte) ([]uint32, error) {
	if len(payload)%4 != 0 {
		return nil, fmt.Errorf("instance list payload not a multiple of 4: %d bytes", len(payload))
	}
	ids := make([]uint32, 0, len(payload)/4)
	for off := 0; off < len(payload); off += 4 {
		ids = append(ids, binary.LittleEndian.Uint32(payload[off:off+4]))
	}
	return ids, nil
}

// BuildReadOtherTag builds one chunk request of the vendor tag read service.
func BuildReadOtherTag(class, instance uint16, start uint32, length uint16) []byte {
	var body []byte
	body = binary.LittleEndian.AppendUint32(body, start)
	body = binary.LittleEndian.AppendUint16(body, length)
	return EncodeRequest(Request{
		Service: ServiceReadOtherTag,
		Path:    Path{Class: class, Instance: instance},
		Payload: body,
	})
}

// WrapUnconnectedSend wraps an encoded request in an UnconnectedSend
// envelope addressed to the Connection Manager, routed out port 1.
func WrapUnconnectedSend(encoded []byte) []byte {
	body := make([]byte, 0, 8+len(encoded))
	body = append(body, 0x00, 249) // priority/tick time, timeout ticks
	body = binary.LittleEndian.AppendUint16(body, uint16(len(encoded)))
	body = append(body, encoded...)
	if len(encoded)%2 != 0 {
		body = append(body, 0x00)
	}
	body = append(body, 0x01, 0x00) // route path size, reserved
	body = append(body, 0x01, 0x00) // port 1, address 0

	return EncodeRequest(Request{
		Service: ServiceUnconnectedSend,
		Path:    ConnectionManagerPath,
		Payload: body,
	})
}

// AttrFormat renders an attribute value for display: small integers as hex,
// all-zero buffers as a count, anything else as spaced hex bytes.
func AttrFormat(value []byte) string {
	switch len(value) {
	case 1:
		return fmt.Sprintf("0x%x", value[0])
	case 2:
		return fmt.Sprintf("0x%x", binary.LittleEndian.Uint16(value))
	case 4:
		return fmt.Sprintf("0x%x", binary.LittleEndian.Uint32(value))
	}

	allZero := true
	for _, b := range value {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return fmt.Sprintf("[%d zeros]", len(value))
	}

	parts := make([]string, len(value))
	for i, b := range value {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, " ")
}
