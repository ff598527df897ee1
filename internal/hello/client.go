package hello

import (
	"fmt"
	"net"
	"strconv"

	"github.com/rs/zerolog"
)

// Client sends IDN-Hello packets to registered devices over one shared UDP
// socket. The transport is unacknowledged by design; socket errors are
// surfaced to the caller and never retried here.
type Client struct {
	reg  *Registry
	conn *net.UDPConn
	log  zerolog.Logger
}

// NewClient opens the send socket. The registry supplies addressing and
// sequence numbers for every send.
func NewClient(reg *Registry, log zerolog.Logger) (*Client, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("open hello socket: %w", err)
	}
	return &Client{reg: reg, conn: conn, log: log}, nil
}

// Close releases the socket.
func (c *Client) Close() error {
	return c.conn.Close()
}

// SendToDevice frames payload with the device's next sequence number and
// transmits it. Returns ErrUnknownDevice when the id is not registered.
func (c *Client) SendToDevice(id string, cmd Command, payload []byte) error {
	rec, ok := c.reg.Get(id)
	if !ok {
		return fmt.Errorf("send to %q: %w", id, ErrUnknownDevice)
	}
	seq, err := c.reg.NextSequence(id)
	if err != nil {
		return err
	}

	pkt := make([]byte, 0, HeaderLen+len(payload))
	pkt = append(pkt, MakeHeader(cmd, rec.ClientGroup, seq)...)
	pkt = append(pkt, payload...)

	port := rec.Port
	if port == 0 {
		port = Port
	}
	// Config may register devices by hostname, so resolve rather than
	// require a literal IP.
	dst, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(rec.Addr, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("send to %q: resolve %q: %w", id, rec.Addr, err)
	}
	if _, err := c.conn.WriteToUDP(pkt, dst); err != nil {
		return fmt.Errorf("send to %q: %w", id, err)
	}
	c.log.Trace().Str("device", id).Uint8("cmd", uint8(cmd)).
		Uint16("seq", seq).Int("bytes", len(pkt)).Msg("packet sent")
	return nil
}

// Ping sends a ping request. Responses arrive asynchronously, if at all.
func (c *Client) Ping(id string) error {
	return c.SendToDevice(id, CmdPingRequest, nil)
}

// RequestServiceMap asks a unit to report its services. Any response
// arrives asynchronously, like ping.
func (c *Client) RequestServiceMap(id string) error {
	return c.SendToDevice(id, CmdServiceMapRequest, nil)
}

// SendChannelMessage transmits a codec-produced channel message.
func (c *Client) SendChannelMessage(id string, msg []byte) error {
	return c.SendToDevice(id, CmdChannelMessage, msg)
}

// SendChannelMessageAck is the acknowledgement-requesting variant.
func (c *Client) SendChannelMessageAck(id string, msg []byte) error {
	return c.SendToDevice(id, CmdChannelMessageAck, msg)
}

// CloseChannel closes the session gracefully; final may carry a last
// channel message (typically a close-channel encoding) or be nil.
func (c *Client) CloseChannel(id string, final []byte) error {
	return c.SendToDevice(id, CmdClose, final)
}

// Abort resets the device session immediately. No payload is allowed.
func (c *Client) Abort(id string) error {
	return c.SendToDevice(id, CmdAbort, nil)
}
