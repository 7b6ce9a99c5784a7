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

// Package archive describes the firmware archive collaborator: the loader
// that supplies flash contents, memory-region lists, task descriptors and
// IDL signatures. Parsing the archive's on-disk format is out of scope;
// this package only fixes the interface the rest of the module consumes,
// plus a minimal ELF-backed reference adapter in elfarchive.
package archive

import "github.com/rtos-tools/dumpcore/virtualcore"

// Task describes one schedulable entity the archive knows about.
type Task struct {
	ID   uint16
	Name string
}

// Archive is the firmware archive collaborator interface.
type Archive interface {
	// FlashMap returns the ordered, disjoint flash regions backing this
	// firmware image, ready to hand to virtualcore.New.
	FlashMap() ([]virtualcore.FlashRegion, []byte, error)

	// DumpSegments returns the RAM regions that should be captured for a
	// dump: the whole system when task is nil, or just the regions that
	// belong to the named task.
	DumpSegments(core interface{}, task *Task) ([]virtualcore.FlashRegion, error)

	// LookupTask resolves a user-specified task name to its archive
	// descriptor.
	LookupTask(name string) (Task, error)

	// CurrentTask reports which task is presently running on the target.
	CurrentTask(core interface{}) (Task, error)

	// Ticks returns the target's current tick count, used to stamp
	// emulated dumps with a capture time.
	Ticks(core interface{}) (uint64, error)

	// LookupIDL resolves an agent method name to its IDL record layout,
	// used by the Hiffy transport to build stack-machine programs.
	LookupIDL(method string) (IDLMethod, error)

	// DecodeAgentError turns a raw agent error code into a human name
	// using the archive's enum table, when one is available.
	DecodeAgentError(code uint32) (string, bool)
}

// IDLMethod describes one agent method's wire shape as discovered from
// the firmware manifest: the operation name, its discovered function id,
// its argument byte layout, and the interpreter's working-buffer size
// (rdata_size), which bounds how many read_dump windows can be batched
// into one program.
type IDLMethod struct {
	Name       string
	ID         uint32
	ArgsSize   int
	ReplySize  int
	RDataSize  int
	HasNetFlag bool
}
