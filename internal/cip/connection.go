package cip

// Forward Open and Forward Close requests to the Connection Manager object.

import (
	"encoding/binary"
	"fmt"
)

// IOConnectionPath is the fixed connection path used for the cyclic I/O
// connection: electronic key segment, assembly class 0x04 instance 1,
// connection points 0x65 (consuming) and 0x64 (producing).
var IOConnectionPath = []byte{
	0x34, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x20, 0x04, 0x24, 0x01, 0x2C, 0x65, 0x2C, 0x64,
}

// ForwardOpenRequest carries the negotiable parts of a Forward Open.
type ForwardOpenRequest struct {
	PriorityTickTime       uint8
	TimeoutTicks           uint8
	OTConnectionID         uint32
	TOConnectionID         uint32
	ConnectionSerialNumber uint16
	VendorID               uint16
	OriginatorSerialNumber uint32
	TimeoutMultiplier      uint8
	OTRPIMicros            uint32
	OTConnectionParams     uint16
	TORPIMicros            uint32
	TOConnectionParams     uint16
	TransportTrigger       uint8
	ConnectionPath         []byte
}

// NewForwardOpenRequest returns a request with the station defaults;
// callers fill in the two connection size parameters.
func NewForwardOpenRequest(otParams, toParams uint16) ForwardOpenRequest {
	return ForwardOpenRequest{
		TimeoutTicks:           249,
		OTConnectionID:         0x80000031,
		TOConnectionID:         0x80FE0030,
		ConnectionSerialNumber: 0x1337,
		VendorID:               0x004D,
		OriginatorSerialNumber: 0xDEADBEEF,
		OTRPIMicros:            8_000_000,
		OTConnectionParams:     otParams,
		TORPIMicros:            8_000_000,
		TOConnectionParams:     toParams,
		TransportTrigger:       0xA3, // class 3, cyclic, server
		ConnectionPath:         IOConnectionPath,
	}
}

// Encode serializes the full Forward Open request addressed to the
// Connection Manager.
func (r ForwardOpenRequest) Encode() []byte {
	path := r.ConnectionPath
	if len(path)%2 != 0 {
		path = append(path, 0x00)
	}

	body := make([]byte, 0, 36+len(path))
	body = append(body, r.PriorityTickTime, r.TimeoutTicks)
	body = binary.LittleEndian.AppendUint32(body, r.OTConnectionID)
	body = binary.LittleEndian.AppendUint32(body, r.TOConnectionID)
	body = binary.LittleEndian.AppendUint16(body, r.ConnectionSerialNumber)
	body = binary.LittleEndian.AppendUint16(body, r.VendorID)
	body = binary.LittleEndian.AppendUint32(body, r.OriginatorSerialNumber)
	body = append(body, r.TimeoutMultiplier, 0x00, 0x00, 0x00) // multiplier + reserved
	body = binary.LittleEndian.AppendUint32(body, r.OTRPIMicros)
	body = binary.LittleEndian.AppendUint16(body, r.OTConnectionParams)
	body = binary.LittleEndian.AppendUint32(body, r.TORPIMicros)
	body = binary.LittleEndian.AppendUint16(body, r.TOConnectionParams)
	body = append(body, r.TransportTrigger, uint8(len(path)/2))
	body = append(body, path...)

	return EncodeRequest(Request{
		Service: ServiceForwardOpen,
		Path:    ConnectionManagerPath,
		Payload: body,
	})
}

// ForwardOpenReply holds the identifiers the target assigned.
type ForwardOpenReply struct {
	OTConnectionID         uint32
	TOConnectionID         uint32
	ConnectionSerialNumber uint16
	VendorID               uint16
	OriginatorSerialNumber uint32
	OTAPIMicros            uint32
	TOAPIMicros            uint32
}

// ParseForwardOpenReply parses a successful Forward Open reply payload.
func ParseForwardOpenReply(payload []byte) (ForwardOpenReply, error) {
	if len(payload) < 26 {
		return ForwardOpenReply{}, fmt.Errorf("Forward Open reply too short: %d bytes", len(payload))
	}
	return ForwardOpenReply{
		OTConnectionID:         binary.LittleEndian.Uint32(payload[0:4]),
		TOConnectionID:         binary.LittleEndian.Uint32(payload[4:8]),
		ConnectionSerialNumber: binary.LittleEndian.Uint16(payload[8:10]),
		VendorID:               binary.LittleEndian.Uint16(payload[10:12]),
		OriginatorSerialNumber: binary.LittleEndian.Uint32(payload[12:16]),
		OTAPIMicros:            binary.LittleEndian.Uint32(payload[16:20]),
		TOAPIMicros:            binary.LittleEndian.Uint32(payload[20:24]),
	}, nil
}

// BuildForwardClose builds a Forward Close matching the identifiers used in
// NewForwardOpenRequest.
func BuildForwardClose() []byte {
	path := IOConnectionPath

	body := make([]byte, 0, 12+len(path))
	body = append(body, 0x00, 249) // priority/tick time, timeout ticks
	body = binary.LittleEndian.AppendUint16(body, 0x1337)
	body = binary.LittleEndian.AppendUint16(body, 0x004D)
	body = binary.LittleEndian.AppendUint32(body, 0xDEADBEEF)
	body = append(body, uint8(len(path)/2), 0x00) // path size, reserved
	body = append(body, path...)

	return EncodeRequest(Request{
		Service: ServiceForwardClose,
		Path:    ConnectionManagerPath,
		Payload: body,
	})
}
