package turbine

import "net"

// Socket is the minimal send surface a retransmit worker needs. Abstracted
// from net.UDPConn so tests can substitute a fake without binding real
// sockets — no pack library wraps raw fire-and-forget UDP datagram sends,
// so the implementation is stdlib net (see DESIGN.md).
type Socket interface {
	SendTo(addr string, payload []byte) error
}

// UDPSocket adapts a bound net.UDPConn to Socket.
type UDPSocket struct {
	Conn *net.UDPConn
}

// NewUDPSocket wraps an already-bound UDP connection.
func NewUDPSocket(conn *net.UDPConn) *UDPSocket {
	return &UDPSocket{Conn: conn}
}

// SendTo resolves addr and writes payload to it. Send errors are the
// caller's responsibility to count (spec.md §4.4: "UDP send errors are
// counted but never fatal").
func (u *UDPSocket) SendTo(addr string, payload []byte) error {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	_, err = u.Conn.WriteToUDP(payload, raddr)
	return err
}

// encodeFrame prepends a single forward-flag byte to payload, the wire
// framing a retransmit peer needs to continue the forward/neighbor state
// machine on its own hop (spec.md §4.4's per-packet state machine) — a
// minimal stand-in for the original's on-wire shred header, since shred
// binary framing is out of scope for this core.
func encodeFrame(forward bool, payload []byte) []byte {
	frame := make([]byte, 1+len(payload))
	if forward {
		frame[0] = 1
	}
	copy(frame[1:], payload)
	return frame
}
