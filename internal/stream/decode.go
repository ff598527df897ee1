package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortBuffer marks wire input shorter than the structure being decoded.
// Network input is untrusted, so decoders return it instead of panicking.
var ErrShortBuffer = errors.New("stream: buffer too short")

// MessageHeader is the decoded 8-byte channel message header.
type MessageHeader struct {
	TotalSize     uint16
	Channel       uint8
	ConfigPresent bool
	ChunkType     uint8
	TimestampUS   uint32
}

// DecodeHeader parses the fixed message header.
func DecodeHeader(buf []byte) (MessageHeader, error) {
	if len(buf) < messageHeaderLen {
		return MessageHeader{}, ErrShortBuffer
	}
	status := buf[2]
	if status&statusChannelMessage == 0 {
		return MessageHeader{}, fmt.Errorf("not a channel message (status 0x%02x)", status)
	}
	return MessageHeader{
		TotalSize:     binary.BigEndian.Uint16(buf),
		Channel:       status & statusChannelMask,
		ConfigPresent: status&statusConfigPresent != 0,
		ChunkType:     buf[3],
		TimestampUS:   binary.BigEndian.Uint32(buf[4:]),
	}, nil
}

// ConfigHeader is the decoded channel configuration block, tags included.
type ConfigHeader struct {
	WordCount   uint8 // 32-bit words of tag data (SCWC)
	Flags       uint8
	ServiceID   uint8
	ServiceMode uint8
	Tags        []uint16
}

// Routing reports whether the config block has the routing flag set.
func (c ConfigHeader) Routing() bool { return c.Flags&cfgFlagRouting != 0 }

// Close reports whether the config block closes the channel.
func (c ConfigHeader) Close() bool { return c.Flags&cfgFlagClose != 0 }

// DecodeConfigHeader parses the configuration block starting at off.
func DecodeConfigHeader(buf []byte, off int) (ConfigHeader, error) {
	if off < 0 || len(buf) < off+configHeaderLen {
		return ConfigHeader{}, ErrShortBuffer
	}
	h := ConfigHeader{
		WordCount:   buf[off],
		Flags:       buf[off+1],
		ServiceID:   buf[off+2],
		ServiceMode: buf[off+3],
	}
	tagBytes := int(h.WordCount) * 4
	if len(buf) < off+configHeaderLen+tagBytes {
		return ConfigHeader{}, ErrShortBuffer
	}
	h.Tags = make([]uint16, tagBytes/2)
	for i := range h.Tags {
		h.Tags[i] = binary.BigEndian.Uint16(buf[off+configHeaderLen+2*i:])
	}
	return h, nil
}

// ValidationResult reports whether a buffer is internally consistent. A
// mismatch is data to log or discard, not an error condition.
type ValidationResult struct {
	OK           bool
	DeclaredSize int
	ActualSize   int
	Reason       string
}

// Validate recomputes the sizes a channel message declares and checks them
// against the actual buffer length.
func Validate(buf []byte) ValidationResult {
	res := ValidationResult{ActualSize: len(buf)}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		res.Reason = err.Error()
		return res
	}
	res.DeclaredSize = int(hdr.TotalSize)
	if res.DeclaredSize != res.ActualSize {
		res.Reason = fmt.Sprintf("declared size %d, buffer holds %d", res.DeclaredSize, res.ActualSize)
		return res
	}

	expected := messageHeaderLen
	var cfg ConfigHeader
	if hdr.ConfigPresent {
		cfg, err = DecodeConfigHeader(buf, messageHeaderLen)
		if err != nil {
			res.Reason = "truncated config header"
			return res
		}
		expected += configHeaderLen + int(cfg.WordCount)*4
	}
	if hdr.ChunkType != ChunkVoid {
		if len(buf) < expected+chunkHeaderLen {
			res.Reason = "truncated frame chunk header"
			return res
		}
		expected += chunkHeaderLen
		payload := res.ActualSize - expected
		if hdr.ConfigPresent {
			// With the layout in hand, the sample data must divide evenly.
			if p, ok := ProfileFromTags(cfg.Tags); ok && payload%p.BytesPerPoint() != 0 {
				res.Reason = fmt.Sprintf("%d payload bytes not a multiple of %d-byte samples", payload, p.BytesPerPoint())
				return res
			}
		}
	} else if res.ActualSize != expected {
		res.Reason = fmt.Sprintf("void chunk with %d trailing bytes", res.ActualSize-expected)
		return res
	}

	res.OK = true
	return res
}
