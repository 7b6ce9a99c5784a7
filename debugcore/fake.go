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

package debugcore

import (
	"time"

	"github.com/rtos-tools/dumpcore/curated"
)

// ErrOutOfRange is raised by Fake's Read8/Write8 when an address falls
// outside the backing memory slice.
const ErrOutOfRange = "debugcore: address %#08x out of range"

// Fake is an in-memory Core used by tests. It backs memory with a
// flat byte slice starting at Base, and registers with a plain map.
type Fake struct {
	Base    uint32
	Mem     []byte
	Net     bool
	Halted  bool
	Timeout time.Duration

	registers map[uint16]uint32
}

// NewFake creates a Fake core over mem, addressed starting at base.
func NewFake(base uint32, mem []byte, net bool) *Fake {
	return &Fake{
		Base:      base,
		Mem:       mem,
		Net:       net,
		registers: make(map[uint16]uint32),
	}
}

func (f *Fake) Halt() error { f.Halted = true; return nil }
func (f *Fake) Run() error  { f.Halted = false; return nil }
func (f *Fake) Step() error { return nil }

func (f *Fake) ReadReg(id uint16) (uint32, error) {
	return f.registers[id], nil
}

func (f *Fake) WriteReg(id uint16, value uint32) error {
	f.registers[id] = value
	return nil
}

func (f *Fake) Read8(addr uint32) (byte, error) {
	if addr < f.Base || addr >= f.Base+uint32(len(f.Mem)) {
		return 0, curated.Errorf(ErrOutOfRange, addr)
	}
	return f.Mem[addr-f.Base], nil
}

func (f *Fake) Write8(addr uint32, value byte) error {
	if addr < f.Base || addr >= f.Base+uint32(len(f.Mem)) {
		return curated.Errorf(ErrOutOfRange, addr)
	}
	f.Mem[addr-f.Base] = value
	return nil
}

func (f *Fake) IsNet() bool { return f.Net }

func (f *Fake) SetTimeout(d time.Duration) { f.Timeout = d }
