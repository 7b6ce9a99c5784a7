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

package acquire

import (
	"os"

	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
)

// waitForAcknowledgement puts stdin into cbreak mode just long enough to
// block for a single keypress, the same termios.Cfmakecbreak/Tcsetattr
// pattern as easyterm.Initialise/CBreakMode, then restores canonical
// mode. Used by forceManualInitiation so the printed instructions don't
// scroll away before the operator has acknowledged them.
func waitForAcknowledgement(in *os.File) error {
	fd := in.Fd()

	var canonical, cbreak unix.Termios
	if err := termios.Tcgetattr(fd, &canonical); err != nil {
		return err
	}

	cbreak = canonical
	termios.Cfmakecbreak(&cbreak)

	if err := termios.Tcsetattr(fd, termios.TCIFLUSH, &cbreak); err != nil {
		return err
	}
	defer termios.Tcsetattr(fd, termios.TCIFLUSH, &canonical)

	var b [1]byte
	_, err := in.Read(b[:])
	return err
}
