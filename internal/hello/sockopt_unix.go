//go:build !windows

package hello

import "syscall"

// enableBroadcast flags the scan socket so requests may go to broadcast
// addresses; without SO_BROADCAST, Linux rejects 255.255.255.255 sends.
func enableBroadcast(network, address string, c syscall.RawConn) error {
	var serr error
	if err := c.Control(func(fd uintptr) {
		serr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return serr
}
