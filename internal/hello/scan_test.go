package hello

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func scanResponsePayload(version, status byte, unitID [16]byte, host string) []byte {
	payload := make([]byte, scanResponseFixedLen+scanUnitIDLen+scanHostNameLen)
	payload[0] = byte(len(payload))
	payload[1] = version
	payload[2] = status
	copy(payload[4:], unitID[:])
	copy(payload[4+scanUnitIDLen:], host)
	return payload
}

func TestParseScanResponse(t *testing.T) {
	unitID := [16]byte{0xDE, 0xAD, 0xBE, 0xEF}
	payload := scanResponsePayload(0x12, byte(StatusRealtime|StatusOccupied), unitID, "lumen-1")

	res, err := parseScanResponse(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Version.Major != 1 || res.Version.Minor != 2 {
		t.Fatalf("version nibbles wrong: %+v", res.Version)
	}
	if res.Status&StatusRealtime == 0 || res.Status&StatusOccupied == 0 {
		t.Fatalf("status flags wrong: 0x%02x", res.Status)
	}
	if res.HostName != "lumen-1" {
		t.Fatalf("host name wrong: %q", res.HostName)
	}
	if res.UnitID[0] != 0xDE || res.UnitID[3] != 0xEF {
		t.Fatalf("unit id wrong: %x", res.UnitID)
	}
}

func TestParseScanResponseShort(t *testing.T) {
	if _, err := parseScanResponse([]byte{0x01, 0x02}); err != ErrShortPacket {
		t.Fatalf("expected ErrShortPacket, got %v", err)
	}
}

// fakeUnit answers scan requests on a loopback socket like a real DAC.
func fakeUnit(t *testing.T, host string) *net.UDPAddr {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 512)
		for {
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			hdr, _, err := ParseHeader(buf[:n])
			if err != nil || hdr.Command != CmdScanRequest {
				continue
			}
			resp := append(MakeHeader(CmdScanResponse, 0, hdr.Sequence),
				scanResponsePayload(0x10, byte(StatusRealtime), [16]byte{1}, host)...)
			_, _ = conn.WriteToUDP(resp, from)
		}
	}()
	return conn.LocalAddr().(*net.UDPAddr)
}

func TestScanCollectsResponses(t *testing.T) {
	addr := fakeUnit(t, "unit-a")

	results, err := Scan(context.Background(), addr.String(), 300*time.Millisecond, zerolog.Nop())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 response, got %d", len(results))
	}
	if results[0].HostName != "unit-a" {
		t.Fatalf("host name wrong: %q", results[0].HostName)
	}
	if results[0].Addr == nil {
		t.Fatal("responder address missing")
	}
}

func TestScanTimeoutIsNotAnError(t *testing.T) {
	// Nothing listens here; the scan should come back empty, not fail.
	results, err := Scan(context.Background(), "127.0.0.1:49151", 150*time.Millisecond, zerolog.Nop())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no responses, got %d", len(results))
	}
}

func TestScanSocketAllowsBroadcast(t *testing.T) {
	lc := net.ListenConfig{Control: enableBroadcast}
	pc, err := lc.ListenPacket(context.Background(), "udp4", ":0")
	if err != nil {
		t.Fatalf("broadcast-capable socket refused: %v", err)
	}
	defer pc.Close()

	// With SO_BROADCAST set, the local stack must not reject a send to the
	// limited broadcast address with a permission error. Hosts without a
	// broadcast-capable route may still report unreachable; that is not
	// what this guards against.
	dst := &net.UDPAddr{IP: net.IPv4bcast, Port: Port}
	if _, err := pc.(*net.UDPConn).WriteToUDP(MakeHeader(CmdScanRequest, 0, 0), dst); err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Fatalf("broadcast send rejected: %v", err)
		}
		t.Skipf("no broadcast-capable route: %v", err)
	}
}

func TestDiscoverAndRegister(t *testing.T) {
	addr := fakeUnit(t, "unit-b")
	reg := newTestRegistry()

	ids, err := DiscoverAndRegister(context.Background(), reg, addr.String(), 300*time.Millisecond, zerolog.Nop())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(ids) != 1 || ids[0] != "unit-b" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	rec, ok := reg.Get("unit-b")
	if !ok {
		t.Fatal("device not registered")
	}
	if rec.Status&StatusRealtime == 0 {
		t.Fatalf("status not recorded: 0x%02x", rec.Status)
	}
	if rec.Version.Major != 1 || rec.Version.Minor != 0 {
		t.Fatalf("version not recorded: %+v", rec.Version)
	}
	if rec.LastSeen.IsZero() {
		t.Fatal("last seen not recorded")
	}
}
