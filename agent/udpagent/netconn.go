// This file is part of dumpcore.
//
// dumpcore is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// dumpcore is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with dumpcore.  If not, see <https://www.gnu.org/licenses/>.

package udpagent

import (
	"net"
	"time"

	"github.com/rtos-tools/dumpcore/curated"
)

// error patterns raised by this file.
const ErrTruncatedReply = "udpagent: reply truncated at %d bytes"

// NetConn is the real Conn: a connected UDP socket, one request
// datagram out, one reply datagram in, each bounded by timeout.
type NetConn struct {
	conn    *net.UDPConn
	timeout time.Duration
	buf     []byte
}

// Dial opens a UDP socket to addr (host:port) with the given default
// per-call timeout.
func Dial(addr string, timeout time.Duration) (*NetConn, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, curated.Errorf("udpagent: resolve %s: %s", addr, err.Error())
	}

	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, curated.Errorf("udpagent: dial %s: %s", addr, err.Error())
	}

	return &NetConn{conn: conn, timeout: timeout, buf: make([]byte, 4096)}, nil
}

func (n *NetConn) SetTimeout(d time.Duration) { n.timeout = d }

func (n *NetConn) Close() error { return n.conn.Close() }

func (n *NetConn) RoundTrip(req []byte) ([]byte, error) {
	if err := n.conn.SetDeadline(time.Now().Add(n.timeout)); err != nil {
		return nil, curated.Errorf("udpagent: set deadline: %s", err.Error())
	}

	if _, err := n.conn.Write(req); err != nil {
		return nil, curated.Errorf("udpagent: write: %s", err.Error())
	}

	nr, err := n.conn.Read(n.buf)
	if err != nil {
		return nil, curated.Errorf("udpagent: read: %s", err.Error())
	}
	if nr == 0 {
		return nil, curated.Errorf(ErrTruncatedReply, nr)
	}

	out := make([]byte, nr)
	copy(out, n.buf[:nr])
	return out, nil
}

var _ Conn = (*NetConn)(nil)
var _ Timeouts = (*NetConn)(nil)
