package enip

// EtherNet/IP encapsulation framing. All encapsulation and CPF fields are
// little-endian per the ENIP specification.

import (
	"encoding/binary"
	"fmt"
)

// ENIP command codes.
const (
	CommandRegisterSession   uint16 = 0x0065
	CommandUnregisterSession uint16 = 0x0066
	CommandSendRRData        uint16 = 0x006F
	CommandSendUnitData      uint16 = 0x0070
)

// StatusSuccess is the only non-error encapsulation status.
const StatusSuccess uint32 = 0x00000000

// HeaderSize is the fixed encapsulation header size in bytes.
const HeaderSize = 24

// Encapsulation represents an EtherNet/IP encapsulation packet.
type Encapsulation struct {
	Command       uint16
	Length        uint16
	SessionID     uint32
	Status        uint32
	SenderContext [8]byte
	Options       uint32
	Data          []byte
}

// Encode serializes an encapsulation packet.
func Encode(encap Encapsulation) []byte {
	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint16(header[0:2], encap.Command)
	binary.LittleEndian.PutUint16(header[2:4], uint16(len(encap.Data)))
	binary.LittleEndian.PutUint32(header[4:8], encap.SessionID)
	binary.LittleEndian.PutUint32(header[8:12], encap.Status)
	copy(header[12:20], encap.SenderContext[:])
	binary.LittleEndian.PutUint32(header[20:24], encap.Options)
	return append(header, encap.Data...)
}

// Decode parses an encapsulation packet.
func Decode(data []byte) (Encapsulation, error) {
	if len(data) < HeaderSize {
		return Encapsulation{}, fmt.Errorf("packet too short: %d bytes (minimum %d)", len(data), HeaderSize)
	}

	var encap Encapsulation
	encap.Command = binary.LittleEndian.Uint16(data[0:2])
	encap.Length = binary.LittleEndian.Uint16(data[2:4])
	encap.SessionID = binary.LittleEndian.Uint32(data[4:8])
	encap.Status = binary.LittleEndian.Uint32(data[8:12])
	copy(encap.SenderContext[:], data[12:20])
	encap.Options = binary.LittleEndian.Uint32(data[20:24])
	if len(data) > HeaderSize {
		encap.Data = data[HeaderSize:]
	}
	return encap, nil
}

// BuildRegisterSession builds a RegisterSession encapsulation.
func BuildRegisterSession(senderContext [8]byte) []byte {
	var regData []byte
	regData = binary.LittleEndian.AppendUint16(regData, 1) // protocol version
	regData = binary.LittleEndian.AppendUint16(regData, 0) // option flags

	return Encode(Encapsulation{
		Command:       CommandRegisterSession,
		SenderContext: senderContext,
		Data:          regData,
	})
}

// BuildUnregisterSession builds an UnregisterSession encapsulation.
func BuildUnregisterSession(sessionID uint32, senderContext [8]byte) []byte {
	return Encode(Encapsulation{
		Command:       CommandUnregisterSession,
		SessionID:     sessionID,
		SenderContext: senderContext,
	})
}

// BuildSendRRData wraps a CIP request in a SendRRData encapsulation with a
// null-address / unconnected-data CPF pair.
func BuildSendRRData(sessionID uint32, senderContext [8]byte, cipData []byte) []byte {
	var sendData []byte
	sendData = binary.LittleEndian.AppendUint32(sendData, 0) // interface handle (UCMM)
	sendData = binary.LittleEndian.AppendUint16(sendData, 0) // timeout
	sendData = append(sendData, EncodeCPFItems([]CPFItem{
		{TypeID: CPFItemNullAddress},
		{TypeID: CPFItemUnconnectedData, Data: cipData},
	})...)

	return Encode(Encapsulation{
		Command:       CommandSendRRData,
		SessionID:     sessionID,
		SenderContext: senderContext,
		Data:          sendData,
	})
}

// ParseSendRRData extracts the CIP payload from a SendRRData encapsulation body.
func ParseSendRRData(data []byte) ([]byte, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("SendRRData body too short: %d bytes", len(data))
	}
	items, err := ParseCPFItems(data[6:])
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.TypeID == CPFItemUnconnectedData {
			return item.Data, nil
		}
	}
	return nil, fmt.Errorf("no unconnected data item in SendRRData body")
}

// BuildSendUnitData wraps a connected CIP message in a SendUnitData
// encapsulation addressed to connectionID with a 16-bit message sequence.
func BuildSendUnitData(sessionID uint32, senderContext [8]byte, connectionID uint32, sequence uint16, cipData []byte) []byte {
	var addr [4]byte
	binary.LittleEndian.PutUint32(addr[:], connectionID)

	payload := make([]byte, 2, 2+len(cipData))
	binary.LittleEndian.PutUint16(payload[0:2], sequence)
	payload = append(payload, cipData...)

	var sendData []byte
	sendData = binary.LittleEndian.AppendUint32(sendData, 0) // interface handle
	sendData = binary.LittleEndian.AppendUint16(sendData, 0) // timeout
	sendData = append(sendData, EncodeCPFItems([]CPFItem{
		{TypeID: CPFItemConnectedAddress, Data: addr[:]},
		{TypeID: CPFItemConnectedData, Data: payload},
	})...)

	return Encode(Encapsulation{
		Command:       CommandSendUnitData,
		SessionID:     sessionID,
		SenderContext: senderContext,
		Data:          sendData,
	})
}

// ParseSendUnitData extracts the connection ID, message sequence and CIP
// payload from a SendUnitData encapsulation body.
func ParseSendUnitData(data []byte) (uint32, uint16, []byte, error) {
	if len(data) < 6 {
		return 0, 0, nil, fmt.Errorf("SendUnitData body too short: %d bytes", len(data))
	}
	items, err := ParseCPFItems(data[6:])
	if err != nil {
		return 0, 0, nil, err
	}

	var (
		connID  uint32
		seq     uint16
		payload []byte
		found   bool
	)
	for _, item := range items {
		switch item.TypeID {
		case CPFItemConnectedAddress:
			if len(item.Data) < 4 {
				return 0, 0, nil, fmt.Errorf("connected address item too short")
			}
			connID = binary.LittleEndian.Uint32(item.Data[:4])
		case CPFItemConnectedData:
			if len(item.Data) < 2 {
				return 0, 0, nil, fmt.Errorf("connected data item too short")
			}
			seq = binary.LittleEndian.Uint16(item.Data[:2])
			payload = item.Data[2:]
			found = true
		}
	}
	if !found {
		return 0, 0, nil, fmt.Errorf("no connected data item in SendUnitData body")
	}
	return connID, seq, payload, nil
}
