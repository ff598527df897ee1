package stream

import (
	"encoding/binary"
	"fmt"

	"github.com/zbear0808/laser-idn-project-sub009/internal/show"
)

// IDN-Stream channel message framing. All fields are big-endian.
const (
	messageHeaderLen = 8
	configHeaderLen  = 4
	chunkHeaderLen   = 4

	// MaxPointsPerMessage caps one message at 150 points so a message never
	// exceeds a single unfragmented UDP datagram. Longer frames are
	// truncated; splitting is the caller's job.
	MaxPointsPerMessage = 150

	// MaxChannel is the highest valid device channel id.
	MaxChannel = 63

	statusChannelMessage = 0x80
	statusConfigPresent  = 0x40
	statusChannelMask    = 0x3F

	// Chunk types.
	ChunkVoid       uint8 = 0x00
	ChunkFrame      uint8 = 0x02
	ChunkFrameFirst uint8 = 0x03

	chunkFlagSingleScan = 0x01

	// Channel config flags.
	cfgFlagRouting = 0x01
	cfgFlagClose   = 0x02

	// Service modes for the config header.
	ServiceModeGraphicContinuous uint8 = 0x01
	ServiceModeGraphicDiscrete   uint8 = 0x02
)

// EncodeOptions carries the per-message knobs beyond frame content.
type EncodeOptions struct {
	ServiceID   uint8
	ServiceMode uint8
	// IncludeConfig prepends the channel configuration block (header plus
	// tag array). Senders re-include it periodically so late joiners and
	// rebooted devices can interpret the sample layout.
	IncludeConfig bool
	// FirstFragment marks the first message after a channel open.
	FirstFragment bool
	// SingleScan asks the device to draw the frame once instead of
	// repeating it until the next frame arrives.
	SingleScan bool
	// Close turns the message into a close-channel encoding: void chunk,
	// close flag in the config header, no sample payload.
	Close bool
}

// EncodeMessage serializes one frame into an IDN-Stream channel message.
// At most MaxPointsPerMessage points are written; a zero-point frame is a
// valid encoding that voids the channel's buffer. The declared total size
// in the header always equals the length of the returned buffer.
func EncodeMessage(frame show.Frame, channel uint8, timestampUS uint32, durationUS uint32, profile BitDepthProfile, opts EncodeOptions) ([]byte, error) {
	if channel > MaxChannel {
		return nil, fmt.Errorf("channel %d out of range 0..%d", channel, MaxChannel)
	}
	if !profile.Valid() {
		return nil, fmt.Errorf("unsupported bit depth profile %d/%d", profile.PositionBits, profile.ColorBits)
	}
	if opts.Close {
		return encodeClose(channel, timestampUS, opts), nil
	}

	points := frame.Points
	if len(points) > MaxPointsPerMessage {
		points = points[:MaxPointsPerMessage]
	}

	var tags []uint16
	total := messageHeaderLen + chunkHeaderLen + len(points)*profile.BytesPerPoint()
	if opts.IncludeConfig {
		tags = profile.Tags()
		total += configHeaderLen + 2*len(tags)
	}

	buf := make([]byte, total)
	chunkType := ChunkFrame
	if opts.FirstFragment {
		chunkType = ChunkFrameFirst
	}
	putMessageHeader(buf, uint16(total), channel, opts.IncludeConfig, chunkType, timestampUS)
	off := messageHeaderLen

	if opts.IncludeConfig {
		buf[off] = uint8(len(tags) / 2) // SCWC: 32-bit words of tag data
		buf[off+1] = cfgFlagRouting
		buf[off+2] = opts.ServiceID
		buf[off+3] = opts.ServiceMode
		off += configHeaderLen
		for _, tag := range tags {
			binary.BigEndian.PutUint16(buf[off:], tag)
			off += 2
		}
	}

	if opts.SingleScan {
		buf[off] = chunkFlagSingleScan
	}
	putUint24(buf[off+1:], durationUS)
	off += chunkHeaderLen

	for _, p := range points {
		if profile.PositionBits == 16 {
			binary.BigEndian.PutUint16(buf[off:], uint16(Position16(p.X)))
			binary.BigEndian.PutUint16(buf[off+2:], uint16(Position16(p.Y)))
			off += 4
		} else {
			buf[off] = Position8(p.X)
			buf[off+1] = Position8(p.Y)
			off += 2
		}
		if profile.ColorBits == 16 {
			binary.BigEndian.PutUint16(buf[off:], Color16(p.R))
			binary.BigEndian.PutUint16(buf[off+2:], Color16(p.G))
			binary.BigEndian.PutUint16(buf[off+4:], Color16(p.B))
			off += 6
		} else {
			buf[off] = Color8(p.R)
			buf[off+1] = Color8(p.G)
			buf[off+2] = Color8(p.B)
			off += 3
		}
	}

	return buf, nil
}

// EncodeVoid builds a zero-point frame message that clears whatever the
// channel is currently scanning.
func EncodeVoid(channel uint8, timestampUS uint32, durationUS uint32, profile BitDepthProfile, opts EncodeOptions) ([]byte, error) {
	return EncodeMessage(show.Frame{DurationUS: durationUS}, channel, timestampUS, durationUS, profile, opts)
}

// EncodeClose builds the dedicated close-channel message: a void chunk with
// the close flag set in its config header and no payload.
func EncodeClose(channel uint8, timestampUS uint32) ([]byte, error) {
	if channel > MaxChannel {
		return nil, fmt.Errorf("channel %d out of range 0..%d", channel, MaxChannel)
	}
	return encodeClose(channel, timestampUS, EncodeOptions{}), nil
}

func encodeClose(channel uint8, timestampUS uint32, opts EncodeOptions) []byte {
	total := messageHeaderLen + configHeaderLen
	buf := make([]byte, total)
	putMessageHeader(buf, uint16(total), channel, true, ChunkVoid, timestampUS)
	// SCWC 0: the close config block carries no tag array.
	buf[messageHeaderLen+1] = cfgFlagRouting | cfgFlagClose
	buf[messageHeaderLen+2] = opts.ServiceID
	buf[messageHeaderLen+3] = opts.ServiceMode
	return buf
}

func putMessageHeader(buf []byte, total uint16, channel uint8, config bool, chunkType uint8, timestampUS uint32) {
	binary.BigEndian.PutUint16(buf, total)
	status := uint8(statusChannelMessage) | (channel & statusChannelMask)
	if config {
		status |= statusConfigPresent
	}
	buf[2] = status
	buf[3] = chunkType
	binary.BigEndian.PutUint32(buf[4:], timestampUS)
}

func putUint24(buf []byte, v uint32) {
	if v > 0xFFFFFF {
		v = 0xFFFFFF
	}
	buf[0] = uint8(v >> 16)
	buf[1] = uint8(v >> 8)
	buf[2] = uint8(v)
}
