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

package elfwriter

import (
	"time"

	"github.com/rtos-tools/dumpcore/archive"
	"github.com/rtos-tools/dumpcore/virtualcore"
)

// Fake records the arguments of its last Dump call, for use by the
// Acquisition Orchestrator's tests in place of a real ELF writer.
type Fake struct {
	Calls int

	Core      *virtualcore.Core
	Task      *archive.Task
	OutPath   string
	StartedAt *time.Time

	Err error
}

func (f *Fake) Dump(core *virtualcore.Core, task *archive.Task, outPath string, startedAt *time.Time) error {
	f.Calls++
	f.Core = core
	f.Task = task
	f.OutPath = outPath
	f.StartedAt = startedAt
	return f.Err
}

var _ Writer = (*Fake)(nil)
