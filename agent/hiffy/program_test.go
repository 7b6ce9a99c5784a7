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

package hiffy

import (
	"testing"

	"github.com/rtos-tools/dumpcore/test"
)

// TestSleepLoopIsHundredIterations checks that the emitted program
// sleeps 100 times in 100ms steps before take_dump is called, and that
// the result slot it checks must be index 100 (0-based, right after the
// 100 sleep results).
func TestSleepLoopIsHundredIterations(t *testing.T) {
	ops, calls := sleepLoop(42)
	test.Equate(t, calls, 100)

	var sleeps int
	for _, op := range ops {
		if op.Kind == OpCall && op.Method == 42 {
			sleeps++
			test.Equate(t, op.Arity, 1)
		}
	}
	// the program contains exactly one Call op textually; its 100
	// executions come from the device looping it at runtime, not from
	// 100 literal Call ops in the program.
	test.Equate(t, sleeps, 1)
}
