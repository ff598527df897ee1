package hello

import (
	"encoding/binary"
	"errors"
)

// Port is the fixed UDP port of the IDN-Hello protocol.
const Port = 7255

// Command is the first byte of every IDN-Hello packet.
type Command uint8

const (
	CmdVoid               Command = 0x00
	CmdPingRequest        Command = 0x08
	CmdPingResponse       Command = 0x09
	CmdScanRequest        Command = 0x10
	CmdScanResponse       Command = 0x11
	CmdServiceMapRequest  Command = 0x12
	CmdServiceMapResponse Command = 0x13
	CmdChannelMessage     Command = 0x40
	CmdChannelMessageAck  Command = 0x41
	CmdClose              Command = 0x44
	CmdAbort              Command = 0x45
	CmdAcknowledge        Command = 0x47
)

// HeaderLen is the fixed envelope size: command, flags, u16 sequence.
const HeaderLen = 4

const clientGroupMask = 0x0F

// ErrShortPacket marks input under the fixed header size.
var ErrShortPacket = errors.New("hello: packet too short")

// Header is the decoded 4-byte IDN-Hello envelope.
type Header struct {
	Command  Command
	Flags    uint8
	Sequence uint16
}

// ClientGroup extracts the 4-bit client group from the flags byte.
func (h Header) ClientGroup() uint8 { return h.Flags & clientGroupMask }

// MakeHeader builds the envelope. The client group is masked to 4 bits.
func MakeHeader(cmd Command, clientGroup uint8, seq uint16) []byte {
	buf := make([]byte, HeaderLen)
	buf[0] = uint8(cmd)
	buf[1] = clientGroup & clientGroupMask
	binary.BigEndian.PutUint16(buf[2:], seq)
	return buf
}

// ParseHeader decodes the envelope and returns any trailing payload.
func ParseHeader(buf []byte) (Header, []byte, error) {
	if len(buf) < HeaderLen {
		return Header{}, nil, ErrShortPacket
	}
	h := Header{
		Command:  Command(buf[0]),
		Flags:    buf[1],
		Sequence: binary.BigEndian.Uint16(buf[2:]),
	}
	return h, buf[HeaderLen:], nil
}
