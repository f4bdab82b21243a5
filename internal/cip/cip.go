package cip

// CIP Message Router request and response encoding. All multi-byte fields
// are little-endian.

import (
	"encoding/binary"
	"fmt"
)

// ServiceCode represents a CIP service code.
type ServiceCode uint8

// Service codes used by this station.
const (
	ServiceGetAttributeList ServiceCode = 0x03
	ServiceSetAttributeList ServiceCode = 0x04
	ServiceGetInstanceList  ServiceCode = 0x4B
	ServiceReadOtherTag     ServiceCode = 0x4C
	ServiceUnconnectedSend  ServiceCode = 0x52
	ServiceForwardClose     ServiceCode = 0x4E
	ServiceForwardOpen      ServiceCode = 0x54
)

// General status codes.
const (
	StatusSuccess         uint8 = 0x00
	StatusPartialTransfer uint8 = 0x06
)

// ResponseServiceBit is set in the service byte of every reply.
const ResponseServiceBit = 0x80

// Path is a CIP logical path (class/instance, optional attribute).
type Path struct {
	Class     uint16
	Instance  uint16
	Attribute uint16
	HasAttr   bool
}

// ConnectionManagerPath addresses the Connection Manager object,
// class 0x06 instance 1.
var ConnectionManagerPath = Path{Class: 0x06, Instance: 1}

// Request is a CIP service request.
type Request struct {
	Service ServiceCode
	Path    Path
	RawPath []byte // optional raw EPATH override
	Payload []byte // request body after the path
}

// Response is a parsed CIP service reply.
type Response struct {
	Service   ServiceCode // with ResponseServiceBit cleared
	Status    uint8
	ExtStatus []uint16
	Payload   []byte
}

// OK reports whether the reply carries a success status.
func (r Response) OK() bool { return r.Status == StatusSuccess }

// EPATH segment types.
const (
	epathSegmentClassID     = 0x20
	epathSegmentInstanceID  = 0x24
	epathSegmentAttributeID = 0x30
)

// EncodeEPATH encodes a logical path into EPATH format, using 8-bit
// segments where the ID fits and 16-bit segments otherwise.
func EncodeEPATH(path Path) []byte {
	var epath []byte

	if path.Class <= 0xFF {
		epath = append(epath, epathSegmentClassID, uint8(path.Class))
	} else {
		epath = append(epath, epathSegmentClassID|0x01, 0x00)
		epath = binary.LittleEndian.AppendUint16(epath, path.Class)
	}

	if path.Instance <= 0xFF {
		epath = append(epath, epathSegmentInstanceID, uint8(path.Instance))
	} else {
		epath = append(epath, epathSegmentInstanceID|0x01, 0x00)
		epath = binary.LittleEndian.AppendUint16(epath, path.Instance)
	}

	if path.HasAttr {
		if path.Attribute <= 0xFF {
			epath = append(epath, epathSegmentAttributeID, uint8(path.Attribute))
		} else {
			epath = append(epath, epathSegmentAttributeID|0x01, 0x00)
			epath = binary.LittleEndian.AppendUint16(epath, path.Attribute)
		}
	}

	return epath
}

// EncodeRequest encodes a service request: service code, path size in
// 16-bit words, EPATH, then the payload.
func EncodeRequest(req Request) []byte {
	epath := req.RawPath
	if len(epath) == 0 {
		epath = EncodeEPATH(req.Path)
	}
	if len(epath)%2 != 0 {
		epath = append(epath, 0x00)
	}

	data := make([]byte, 0, 2+len(epath)+len(req.Payload))
	data = append(data, uint8(req.Service), uint8(len(epath)/2))
	data = append(data, epath...)
	data = append(data, req.Payload...)
	return data
}

// ParseResponse parses a Message Router reply: service (reply bit set),
// reserved byte, general status, additional status word count, additional
// status words, then the payload.
func ParseResponse(data []byte) (Response, error) {
	if len(data) < 4 {
		return Response{}, fmt.Errorf("CIP response too short: %d bytes", len(data))
	}
	if data[0]&ResponseServiceBit == 0 {
		return Response{}, fmt.Errorf("not a CIP reply: service byte 0x%02X", data[0])
	}

	resp := Response{
		Service: ServiceCode(data[0] &^ ResponseServiceBit),
		Status:  data[2],
	}
	extWords := int(data[3])
	offset := 4
	if len(data) < offset+2*extWords {
		return Response{}, fmt.Errorf("CIP response truncated in additional status")
	}
	for i := 0; i < extWords; i++ {
		resp.ExtStatus = append(resp.ExtStatus, binary.LittleEndian.Uint16(data[offset:offset+2]))
		offset += 2
	}
	resp.Payload = data[offset:]
	return resp, nil
}

// StatusText renders a general status for log output.
func StatusText(status uint8) string {
	switch status {
	case StatusSuccess:
		return "success"
	case StatusPartialTransfer:
		return "partial transfer"
	default:
		return fmt.Sprintf("general status 0x%02X", status)
	}
}
