package hello

import (
	"bytes"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	buf := MakeHeader(CmdChannelMessage, 5, 0xBEEF)
	if len(buf) != HeaderLen {
		t.Fatalf("expected %d bytes, got %d", HeaderLen, len(buf))
	}
	hdr, payload, err := ParseHeader(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if hdr.Command != CmdChannelMessage {
		t.Fatalf("command mismatch: 0x%02x", hdr.Command)
	}
	if hdr.ClientGroup() != 5 {
		t.Fatalf("client group mismatch: %d", hdr.ClientGroup())
	}
	if hdr.Sequence != 0xBEEF {
		t.Fatalf("sequence mismatch: 0x%04x", hdr.Sequence)
	}
	if len(payload) != 0 {
		t.Fatalf("expected no payload, got %d bytes", len(payload))
	}
}

func TestHeaderClientGroupMasked(t *testing.T) {
	buf := MakeHeader(CmdPingRequest, 0xFF, 1)
	if buf[1] != 0x0F {
		t.Fatalf("client group not masked to 4 bits: 0x%02x", buf[1])
	}
}

func TestParseHeaderPayload(t *testing.T) {
	pkt := append(MakeHeader(CmdScanResponse, 0, 7), 0xAA, 0xBB)
	_, payload, err := ParseHeader(pkt)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !bytes.Equal(payload, []byte{0xAA, 0xBB}) {
		t.Fatalf("payload mismatch: %v", payload)
	}
}

func TestParseHeaderShort(t *testing.T) {
	if _, _, err := ParseHeader([]byte{0x40, 0x00, 0x01}); err != ErrShortPacket {
		t.Fatalf("expected ErrShortPacket, got %v", err)
	}
}
