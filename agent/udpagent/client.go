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

// Package udpagent implements the Agent Transport over a fixed
// request/reply UDP protocol: each agent call is its own
// datagram round-trip, with no Hiffy-style program batching, but the
// read_dump reply is still a fixed-size window so dumpreader's iterator
// abstraction is shared unchanged between both transports.
package udpagent

import (
	"time"

	"github.com/rtos-tools/dumpcore/agent"
	"github.com/rtos-tools/dumpcore/archive"
	"github.com/rtos-tools/dumpcore/curated"
	"github.com/rtos-tools/dumpcore/debugcore"
	"github.com/rtos-tools/dumpcore/dumpreader"
)

// error patterns raised by this package.
const (
	ErrCallFailed        = "udpagent: %s failed: errno %d"
	ErrCallFailedDecoded = "udpagent: %s failed: %s (errno %d)"
	ErrEmptyReply        = "udpagent: empty reply to %s"
	ErrRSizeTooSmall     = "udpagent: rsize %d must be positive"
)

// Conn is the one primitive the UDP transport needs: send a request
// datagram and return its single reply. Implementations talk to a real
// socket (see NetConn); tests substitute a fake that answers directly.
type Conn interface {
	RoundTrip(req []byte) ([]byte, error)
}

// Timeouts is implemented by Conn values that support adjusting their
// per-call deadline. The client widens this once around TakeDump, the
// same one-shot (not looped) widening Hiffy applies to the debug core.
type Timeouts interface {
	SetTimeout(d time.Duration)
}

// Client is the UDP Agent Transport implementation.
type Client struct {
	conn    Conn
	core    debugcore.Core
	archive archive.Archive
	rsize   int
}

// NewClient constructs a UDP client. rsize is the fixed read_dump reply
// window size, analogous to Hiffy's IDL-discovered rsize but fixed by
// protocol convention here rather than discovered from a manifest. core
// may be nil when this agent has no attached debug interface at all (a
// pure network agent); when present, Core() exposes it so the
// orchestrator can still halt/run/read registers around simulate/emulate.
// a may be nil when no firmware archive is available to decode agent
// errno values into names; a failing call then just reports the bare code.
func NewClient(conn Conn, rsize int, core debugcore.Core, a archive.Archive) (*Client, error) {
	if rsize <= 0 {
		return nil, curated.Errorf(ErrRSizeTooSmall, rsize)
	}
	return &Client{conn: conn, rsize: rsize, core: core, archive: a}, nil
}

func (c *Client) Core() debugcore.Core { return c.core }

func (c *Client) call(op byte, name string, args ...uint32) ([]byte, error) {
	reply, err := c.conn.RoundTrip(encodeRequest(op, args...))
	if err != nil {
		return nil, err
	}

	ok, errno, payload := decodeReply(reply)
	if !ok {
		if errno == errnoInvalidArea {
			return nil, curated.Errorf(dumpreader.ErrInvalidArea, 0)
		}
		if c.archive != nil {
			if decoded, ok := c.archive.DecodeAgentError(errno); ok {
				return nil, curated.Errorf(ErrCallFailedDecoded, name, decoded, errno)
			}
		}
		return nil, curated.Errorf(ErrCallFailed, name, errno)
	}
	return payload, nil
}

func (c *Client) InitializeDump() error {
	_, err := c.call(opInitializeDump, "initialize_dump")
	return err
}

func (c *Client) InitializeSegments(segments []agent.Segment) error {
	for _, s := range segments {
		if _, err := c.call(opAddDumpSegment, "add_dump_segment", s.Address, s.Length); err != nil {
			return err
		}
	}
	return nil
}

// TakeDump widens the transport's per-call timeout to 60 seconds before
// the call (one-shot, never a retry loop); no sleep loop is inserted
// since the debug link survives a dump taken over the network, unlike
// the in-band probe case.
func (c *Client) TakeDump() error {
	if t, ok := c.conn.(Timeouts); ok {
		t.SetTimeout(60 * time.Second)
	}
	_, err := c.call(opTakeDump, "take_dump")
	return err
}

func (c *Client) ReadDump(index uint32, offset uint32) ([]byte, error) {
	payload, err := c.call(opReadDump, "read_dump", index, offset)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, curated.Errorf(ErrEmptyReply, "read_dump")
	}
	return payload, nil
}

func (c *Client) ReadDumpHeaders(raw bool) ([]dumpreader.HeaderEntry, error) {
	return dumpreader.ReadHeaders(windowAdapter{c}, raw)
}

func (c *Client) ReadDumpFull(selector dumpreader.AreaSelector, sink dumpreader.Sink) (*dumpreader.Task, error) {
	return dumpreader.ReadLogicalDump(windowAdapter{c}, selector, sink, nil)
}

type windowAdapter struct{ c *Client }

func (w windowAdapter) Window(index uint32, offset uint32) ([]byte, error) {
	return w.c.ReadDump(index, offset)
}

var _ agent.Agent = (*Client)(nil)
