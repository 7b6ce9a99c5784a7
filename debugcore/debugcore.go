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

// Package debugcore describes the low-level ARM debug-probe interface the
// orchestrator drives directly during simulate/emulate/force-manual-initiation
// paths. A real implementation talks to a debug probe or a network agent;
// this package only describes the capability record and an in-memory
// fake useful in tests.
package debugcore

import "time"

// Core is the minimal debug surface the orchestrator and the Hiffy agent
// need. It is deliberately small: halt/run/step, register access, byte
// access, and the two bits of identity (IsNet, SetTimeout) the orchestrator
// needs to pick a transport and size its waits.
type Core interface {
	Halt() error
	Run() error
	Step() error

	ReadReg(id uint16) (uint32, error)
	WriteReg(id uint16, value uint32) error

	Read8(addr uint32) (byte, error)
	Write8(addr uint32, value byte) error

	// IsNet reports whether this core is attached over a network link
	// rather than an in-band debug probe. The orchestrator uses this to
	// decide between the Hiffy and UDP transports.
	IsNet() bool

	// SetTimeout installs the per-call timeout for blocking operations.
	// The transport widens this once, ahead of take_dump.
	SetTimeout(d time.Duration)
}
