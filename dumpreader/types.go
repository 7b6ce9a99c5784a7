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

package dumpreader

import "github.com/rtos-tools/dumpcore/dumpformat"

// Task identifies which task's state a header or segment block belongs
// to, as learned from a decoded Task marker.
type Task struct {
	ID   uint16
	Time uint64
}

// HeaderEntry pairs a decoded area header with its Task marker, when one
// is present (task and task-region dumps only).
type HeaderEntry struct {
	Index  uint32
	Header dumpformat.AreaHeader
	Task   *Task
}

// AreaSelector picks which logical dump ReadLogicalDump should pull.
// Exactly one of the three should be set; WholeSystem implies index 0.
type AreaSelector struct {
	WholeSystem bool
	Index       *uint32
	Address     *uint32
}

// Sink receives decoded RAM regions and registers as ReadLogicalDump
// walks segments; it is the boundary between the Area Reader and the
// codec driver that actually mutates a virtualcore.Core.
type Sink interface {
	InsertRAM(base uint32, data []byte) error
	SetRegister(id uint16, value uint32)
}

// WindowReader is the one primitive the Area Reader needs from a
// transport client: a fixed-size window into a specific area.
// ErrInvalidArea from Window means "index past end" and is recovered
// locally as end-of-list, never propagated to the caller.
type WindowReader interface {
	Window(index uint32, offset uint32) ([]byte, error)
}
