package hello

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
)

const (
	scanResponseFixedLen = 4
	scanUnitIDLen        = 16
	scanHostNameLen      = 20
)

// ScanResult is one unit's parsed answer to a scan request.
type ScanResult struct {
	StructSize uint8
	Version    ProtocolVersion
	Status     StatusFlags
	UnitID     []byte
	HostName   string
	Addr       *net.UDPAddr
}

// UnitIDString renders the unit id as lowercase hex for use as an identity.
func (s ScanResult) UnitIDString() string {
	return hex.EncodeToString(s.UnitID)
}

// Scan broadcasts a scan request and collects responses until the timeout
// elapses or ctx is cancelled. Units that stay silent are simply absent;
// an empty result is not an error.
func Scan(ctx context.Context, broadcastAddr string, timeout time.Duration, log zerolog.Logger) ([]ScanResult, error) {
	dst, err := net.ResolveUDPAddr("udp4", broadcastAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", broadcastAddr, err)
	}
	if dst.Port == 0 {
		dst.Port = Port
	}

	lc := net.ListenConfig{Control: enableBroadcast}
	pc, err := lc.ListenPacket(ctx, "udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("open scan socket: %w", err)
	}
	conn := pc.(*net.UDPConn)
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if _, err := conn.WriteToUDP(MakeHeader(CmdScanRequest, 0, 0), dst); err != nil {
		return nil, fmt.Errorf("send scan request: %w", err)
	}
	log.Debug().Str("broadcast", dst.String()).Dur("timeout", timeout).Msg("scan request sent")

	var results []ScanResult
	buf := make([]byte, 512)
	for {
		if ctx.Err() != nil {
			return results, nil
		}
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return results, nil
			}
			return results, fmt.Errorf("scan read: %w", err)
		}
		hdr, payload, err := ParseHeader(buf[:n])
		if err != nil || hdr.Command != CmdScanResponse {
			continue
		}
		res, err := parseScanResponse(payload)
		if err != nil {
			log.Warn().Err(err).Str("from", from.String()).Msg("bad scan response")
			continue
		}
		res.Addr = from
		results = append(results, res)
		log.Debug().Str("from", from.String()).Str("host", res.HostName).
			Str("version", res.Version.String()).Msg("scan response")
	}
}

func parseScanResponse(payload []byte) (ScanResult, error) {
	if len(payload) < scanResponseFixedLen {
		return ScanResult{}, ErrShortPacket
	}
	res := ScanResult{
		StructSize: payload[0],
		Version: ProtocolVersion{
			Major: payload[1] >> 4,
			Minor: payload[1] & 0x0F,
		},
		Status: StatusFlags(payload[2]),
	}
	// payload[3] is reserved.
	rest := payload[scanResponseFixedLen:]
	if len(rest) >= scanUnitIDLen {
		res.UnitID = append([]byte(nil), rest[:scanUnitIDLen]...)
		rest = rest[scanUnitIDLen:]
	}
	if len(rest) > 0 {
		name := rest
		if len(name) > scanHostNameLen {
			name = name[:scanHostNameLen]
		}
		if i := bytes.IndexByte(name, 0); i >= 0 {
			name = name[:i]
		}
		res.HostName = string(name)
	}
	return res, nil
}

// DiscoverAndRegister runs a scan and registers every responding unit,
// deriving its identity from the host name and falling back to the source
// address. It returns the ids it registered or refreshed.
func DiscoverAndRegister(ctx context.Context, reg *Registry, broadcastAddr string, timeout time.Duration, log zerolog.Logger) ([]string, error) {
	results, err := Scan(ctx, broadcastAddr, timeout, log)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	ids := make([]string, 0, len(results))
	for _, res := range results {
		id := res.HostName
		if id == "" {
			id = res.Addr.IP.String()
		}
		reg.Register(id, res.Addr.IP.String(), res.Addr.Port, 0)
		status, version := res.Status, res.Version
		_ = reg.Update(id, DeviceUpdate{
			Status:   &status,
			Version:  &version,
			LastSeen: &now,
		})
		ids = append(ids, id)
	}
	log.Info().Int("devices", len(ids)).Msg("discovery complete")
	return ids, nil
}
