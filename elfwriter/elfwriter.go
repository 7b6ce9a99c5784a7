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

// Package elfwriter describes the external ELF core-file writer
// collaborator: given a populated VirtualCore, it emits a
// debugger-consumable core file. Writing that file's actual ELF/DWARF
// structure is out of scope for this module; this package only fixes the
// interface the Acquisition Orchestrator consumes, plus a recording fake
// used by the orchestrator's own tests.
package elfwriter

import (
	"time"

	"github.com/rtos-tools/dumpcore/archive"
	"github.com/rtos-tools/dumpcore/virtualcore"
)

// Writer emits a core file from a completed acquisition. task is nil for
// a whole-system dump; outPath and startedAt may be zero-valued when the
// caller didn't supply them.
type Writer interface {
	Dump(core *virtualcore.Core, task *archive.Task, outPath string, startedAt *time.Time) error
}
