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

// Package agent describes the transport-abstracted dump agent: a uniform
// capability record the orchestrator depends on, with two implementations
// (hiffy, a stack-machine RPC substrate over a debug probe; udpagent, a
// fixed request/reply UDP protocol). Neither implementation is an
// inheritance hierarchy - both satisfy this one interface and the
// orchestrator never type-switches on which it holds.
package agent

import (
	"github.com/rtos-tools/dumpcore/debugcore"
	"github.com/rtos-tools/dumpcore/dumpreader"
)

// error patterns raised by agent implementations and consumed by callers
// via curated.Is. Invalid-area reports reuse dumpreader.ErrInvalidArea so
// that errors returned from ReadDump and errors surfaced internally while
// walking a ReadDumpHeaders/ReadDumpFull call are the same pattern.
const (
	ErrTimeout      = "agent: timeout after %s"
	ErrTruncated    = "agent: truncated reply from area %d offset %d"
	ErrDisconnected = "agent: probe disconnected"
)

// Segment is one intended RAM region to capture, as passed to
// InitializeSegments for a whole-system dump.
type Segment struct {
	Address uint32
	Length  uint32
}

// Agent is the capability set the orchestrator depends on, independent of
// the substrate beneath it.
type Agent interface {
	// InitializeDump clears on-device state, setting every area header's
	// dumper field back to NONE.
	InitializeDump() error

	// InitializeSegments pushes the intended RAM regions for a
	// whole-system dump.
	InitializeSegments(segments []Segment) error

	// TakeDump instructs the device to capture state. May block for tens
	// of seconds; callers should raise their timeout around this call.
	TakeDump() error

	// ReadDump returns a fixed-size window starting at offset within the
	// area named by index. ErrInvalidArea means "index past end".
	ReadDump(index uint32, offset uint32) ([]byte, error)

	// ReadDumpHeaders returns headers in area order. Unless raw is set,
	// it stops at (and omits) the first header with Dumper == NONE.
	ReadDumpHeaders(raw bool) ([]dumpreader.HeaderEntry, error)

	// ReadDumpFull pulls the entire logical dump named by selector into
	// sink, returning the Task it belonged to (nil for whole-system).
	ReadDumpFull(selector dumpreader.AreaSelector, sink dumpreader.Sink) (*dumpreader.Task, error)

	// Core returns the underlying debug interface, when this agent is
	// attached to one (nil for a pure network agent with no probe).
	Core() debugcore.Core
}
