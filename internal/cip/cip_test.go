package cip

import (
	"bytes"
	"testing"
)

func TestEncodeEPATH(t *testing.T) {
	cases := []struct {
		name string
		path Path
		want []byte
	}{
		{
			name: "connection manager",
			path: ConnectionManagerPath,
			want: []byte{0x20, 0x06, 0x24, 0x01},
		},
		{
			name: "with attribute",
			path: Path{Class: 0x04, Instance: 0x65, Attribute: 0x03, HasAttr: true},
			want: []byte{0x20, 0x04, 0x24, 0x65, 0x30, 0x03},
		},
		{
			name: "16-bit instance",
			path: Path{Class: 0x04, Instance: 0x1234},
			want: []byte{0x20, 0x04, 0x25, 0x00, 0x34, 0x12},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EncodeEPATH(tc.path); !bytes.Equal(got, tc.want) {
				t.Errorf("EncodeEPATH: got % X, want % X", got, tc.want)
			}
		})
	}
}

func TestEncodeRequest(t *testing.T) {
	got := EncodeRequest(Request{
		Service: ServiceGetInstanceList,
		Path:    Path{Class: 0x04},
		Payload: []byte{0xAA},
	})
	want := []byte{0x4B, 0x02, 0x20, 0x04, 0x24, 0x00, 0xAA}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeRequest: got % X, want % X", got, want)
	}
}

func TestParseResponse(t *testing.T) {
	data := []byte{0xD4, 0x00, 0x00, 0x00, 0x01, 0x02}
	resp, err := ParseResponse(data)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if resp.Service != ServiceForwardOpen {
		t.Errorf("service: got 0x%02X, want 0x54", resp.Service)
	}
	if !resp.OK() {
		t.Errorf("status: got 0x%02X, want success", resp.Status)
	}
	if !bytes.Equal(resp.Payload, []byte{0x01, 0x02}) {
		t.Errorf("payload: got % X, want 01 02", resp.Payload)
	}
}

func TestParseResponseExtendedStatus(t *testing.T) {
	data := []byte{0xD4, 0x00, 0x01, 0x01, 0x00, 0x01, 0xAA}
	resp, err := ParseResponse(data)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if resp.OK() {
		t.Fatalf("expected non-success status")
	}
	if len(resp.ExtStatus) != 1 || resp.ExtStatus[0] != 0x0100 {
		t.Errorf("extended status: got %v, want [0x0100]", resp.ExtStatus)
	}
	if !bytes.Equal(resp.Payload, []byte{0xAA}) {
		t.Errorf("payload: got % X, want AA", resp.Payload)
	}
}

func TestParseResponseRejectsRequest(t *testing.T) {
	if _, err := ParseResponse([]byte{0x54, 0x00, 0x00, 0x00}); err == nil {
		t.Fatalf("expected error for service byte without reply bit")
	}
}
