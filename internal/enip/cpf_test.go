package enip

import (
	"bytes"
	"testing"
)

func TestCPFItemsRoundTrip(t *testing.T) {
	items := []CPFItem{
		{TypeID: CPFItemNullAddress},
		{TypeID: CPFItemUnconnectedData, Data: []byte{0x01, 0x02, 0x03}},
	}

	parsed, err := ParseCPFItems(EncodeCPFItems(items))
	if err != nil {
		t.Fatalf("ParseCPFItems failed: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("item count: got %d, want 2", len(parsed))
	}
	if parsed[0].TypeID != CPFItemNullAddress || len(parsed[0].Data) != 0 {
		t.Errorf("item 0: got %+v", parsed[0])
	}
	if parsed[1].TypeID != CPFItemUnconnectedData || !bytes.Equal(parsed[1].Data, items[1].Data) {
		t.Errorf("item 1: got %+v", parsed[1])
	}
}

func TestParseCPFItemsTruncated(t *testing.T) {
	data := EncodeCPFItems([]CPFItem{{TypeID: CPFItemConnectedData, Data: []byte{1, 2, 3, 4}}})
	if _, err := ParseCPFItems(data[:len(data)-2]); err == nil {
		t.Fatalf("expected error for truncated item data")
	}
	if _, err := ParseCPFItems([]byte{0x01}); err == nil {
		t.Fatalf("expected error for truncated item count")
	}
}
