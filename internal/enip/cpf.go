package enip

// Common Packet Format items shared by TCP encapsulations and UDP I/O frames.

import (
	"encoding/binary"
	"fmt"
)

// CPF item type IDs.
const (
	CPFItemNullAddress      uint16 = 0x0000
	CPFItemConnectedAddress uint16 = 0x00A1
	CPFItemConnectedData    uint16 = 0x00B1
	CPFItemUnconnectedData  uint16 = 0x00B2
	CPFItemSequencedAddress uint16 = 0x8002
)

// CPFItem is one type/length/data item.
type CPFItem struct {
	TypeID uint16
	Data   []byte
}

// EncodeCPFItems serializes an item count followed by each item.
func EncodeCPFItems(items []CPFItem) []byte {
	var out []byte
	out = binary.LittleEndian.AppendUint16(out, uint16(len(items)))
	for _, item := range items {
		out = binary.LittleEndian.AppendUint16(out, item.TypeID)
		out = binary.LittleEndian.AppendUint16(out, uint16(len(item.Data)))
		out = append(out, item.Data...)
	}
	return out
}

// ParseCPFItems parses an item count followed by each item.
func ParseCPFItems(data []byte) ([]CPFItem, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("CPF block too short: %d bytes", len(data))
	}
	count := int(binary.LittleEndian.Uint16(data[0:2]))
	offset := 2

	items := make([]CPFItem, 0, count)
	for i := 0; i < count; i++ {
		if len(data) < offset+4 {
			return nil, fmt.Errorf("CPF item %d header truncated", i)
		}
		typeID := binary.LittleEndian.Uint16(data[offset : offset+2])
		length := int(binary.LittleEndian.Uint16(data[offset+2 : offset+4]))
		offset += 4
		if len(data) < offset+length {
			return nil, fmt.Errorf("CPF item %d data truncated: want %d bytes, have %d", i, length, len(data)-offset)
		}
		items = append(items, CPFItem{TypeID: typeID, Data: data[offset : offset+length]})
		offset += length
	}
	return items, nil
}
