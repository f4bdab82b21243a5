package enip

// Class-1 cyclic I/O datagram framing (UDP port 2222). These frames carry no
// encapsulation header: an item count, a sequenced-address item naming the
// connection, and a connected-data item whose payload is a 16-bit sequence
// count, a 32-bit run/idle header and the assembly bytes.

import (
	"encoding/binary"
	"fmt"
)

// HeaderRun is the run/idle header value for an active connection.
const HeaderRun uint32 = 1

// IOPrefixSize is the sequence count plus run/idle header prepended to each
// assembly; it is the "+6" in the Forward Open connection size parameters.
const IOPrefixSize = 6

// IODatagram is one cyclic I/O frame.
type IODatagram struct {
	ConnectionID  uint32 // network connection ID from Forward Open
	Sequence      uint32 // sequenced-address encapsulation counter
	SequenceCount uint16 // application-level sequence count
	Header        uint32 // run/idle header
	Payload       []byte // assembly bytes
}

// BuildIODatagram serializes a cyclic I/O frame.
func BuildIODatagram(d IODatagram) []byte {
	var addr [8]byte
	binary.LittleEndian.PutUint32(addr[0:4], d.ConnectionID)
	binary.LittleEndian.PutUint32(addr[4:8], d.Sequence)

	data := make([]byte, IOPrefixSize, IOPrefixSize+len(d.Payload))
	binary.LittleEndian.PutUint16(data[0:2], d.SequenceCount)
	binary.LittleEndian.PutUint32(data[2:6], d.Header)
	data = append(data, d.Payload...)

	return EncodeCPFItems([]CPFItem{
		{TypeID: CPFItemSequencedAddress, Data: addr[:]},
		{TypeID: CPFItemConnectedData, Data: data},
	})
}

// ParseIODatagram parses a cyclic I/O frame.
func ParseIODatagram(data []byte) (IODatagram, error) {
	items, err := ParseCPFItems(data)
	if err != nil {
		return IODatagram{}, err
	}

	var (
		d        IODatagram
		haveAddr bool
		haveData bool
	)
	for _, item := range items {
		switch item.TypeID {
		case CPFItemSequencedAddress:
			if len(item.Data) < 8 {
				return IODatagram{}, fmt.Errorf("sequenced address item too short: %d bytes", len(item.Data))
			}
			d.ConnectionID = binary.LittleEndian.Uint32(item.Data[0:4])
			d.Sequence = binary.LittleEndian.Uint32(item.Data[4:8])
			haveAddr = true
		case CPFItemConnectedData:
			if len(item.Data) < IOPrefixSize {
				return IODatagram{}, fmt.Errorf("connected data item too short: %d bytes", len(item.Data))
			}
			d.SequenceCount = binary.LittleEndian.Uint16(item.Data[0:2])
			d.Header = binary.LittleEndian.Uint32(item.Data[2:6])
			d.Payload = item.Data[IOPrefixSize:]
			haveData = true
		}
	}
	if !haveAddr || !haveData {
		return IODatagram{}, fmt.Errorf("I/O frame missing required items (address=%v data=%v)", haveAddr, haveData)
	}
	return d, nil
}
