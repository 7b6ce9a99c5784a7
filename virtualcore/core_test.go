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

package virtualcore_test

import (
	"testing"

	"github.com/rtos-tools/dumpcore/curated"
	"github.com/rtos-tools/dumpcore/test"
	"github.com/rtos-tools/dumpcore/virtualcore"
)

func flashBlob() []byte {
	b := make([]byte, 0x3000)
	for i := range b {
		b[i] = byte(0xf0 | (i % 16))
	}
	return b
}

func TestReadWithinSingleRAMRegion(t *testing.T) {
	vc, err := virtualcore.New(flashBlob(), nil)
	test.ExpectSuccess(t, err)

	data := make([]byte, 512)
	for i := range data {
		data[i] = byte(i % 251)
	}
	test.ExpectSuccess(t, vc.InsertRAM(0x2000_0000, data))

	out := make([]byte, 16)
	test.ExpectSuccess(t, vc.Read(0x2000_0010, out))
	test.Equate(t, out, data[0x10:0x10+16])
}

func TestReadAcrossTwoRAMRegions(t *testing.T) {
	vc, err := virtualcore.New(flashBlob(), nil)
	test.ExpectSuccess(t, err)

	first := []byte{1, 2, 3, 4}
	second := []byte{5, 6, 7, 8}
	test.ExpectSuccess(t, vc.InsertRAM(0x2000_0000, first))
	test.ExpectSuccess(t, vc.InsertRAM(0x2000_0004, second))

	out := make([]byte, 8)
	test.ExpectSuccess(t, vc.Read(0x2000_0000, out))
	test.Equate(t, out, append(append([]byte{}, first...), second...))
}

func TestRAMShadowsFlash(t *testing.T) {
	blob := flashBlob()
	vc, err := virtualcore.New(blob, []virtualcore.FlashRegion{
		{Base: 0x0800_0000, Length: 0x3000, Offset: 0},
	})
	test.ExpectSuccess(t, err)

	shadow := []byte{0xaa, 0xbb, 0xcc, 0xdd}
	test.ExpectSuccess(t, vc.InsertRAM(0x0800_0100, shadow))

	out := make([]byte, 4)
	test.ExpectSuccess(t, vc.Read(0x0800_0100, out))
	test.Equate(t, out, shadow)

	// an address just before the shadow still reads flash
	out = make([]byte, 1)
	test.ExpectSuccess(t, vc.Read(0x0800_00ff, out))
	test.Equate(t, out, []byte{blob[0xff]})
}

func TestAddressNotMapped(t *testing.T) {
	vc, err := virtualcore.New(flashBlob(), []virtualcore.FlashRegion{
		{Base: 0x0800_0000, Length: 0x3000, Offset: 0},
	})
	test.ExpectSuccess(t, err)
	test.ExpectSuccess(t, vc.InsertRAM(0x2000_0000, make([]byte, 512)))

	err = vc.Read(0x2000_0fff, make([]byte, 1))
	test.ExpectFailure(t, err)
	test.Equate(t, curated.Is(err, virtualcore.ErrAddressNotMapped), true)
}

func TestReadFallsThroughRAMToFlash(t *testing.T) {
	blob := flashBlob()
	vc, err := virtualcore.New(blob, []virtualcore.FlashRegion{
		{Base: 0x0800_0000, Length: 0x3000, Offset: 0},
	})
	test.ExpectSuccess(t, err)

	ram := []byte{0x11, 0x22}
	test.ExpectSuccess(t, vc.InsertRAM(0x2000_0000, ram))

	// a read that starts in RAM and runs past its end should fail, since
	// there is no flash mapped at that address
	err = vc.Read(0x2000_0001, make([]byte, 4))
	test.ExpectFailure(t, err)
	test.Equate(t, curated.Is(err, virtualcore.ErrAddressNotMapped), true)
}

func TestOverlappingFlashRegionsRejected(t *testing.T) {
	_, err := virtualcore.New(flashBlob(), []virtualcore.FlashRegion{
		{Base: 0x0800_0000, Length: 0x1000, Offset: 0},
		{Base: 0x0800_0800, Length: 0x1000, Offset: 0x800},
	})
	test.ExpectFailure(t, err)
	test.Equate(t, curated.Is(err, virtualcore.ErrOverlap), true)
}

func TestOverlappingRAMRegionsRejected(t *testing.T) {
	vc, err := virtualcore.New(flashBlob(), nil)
	test.ExpectSuccess(t, err)

	test.ExpectSuccess(t, vc.InsertRAM(0x2000_0000, make([]byte, 16)))
	err = vc.InsertRAM(0x2000_0008, make([]byte, 16))
	test.ExpectFailure(t, err)
	test.Equate(t, curated.Is(err, virtualcore.ErrOverlap), true)
}

func TestRegisterCapture(t *testing.T) {
	vc, err := virtualcore.New(flashBlob(), nil)
	test.ExpectSuccess(t, err)

	vc.SetRegister(15, 0x0800_1234) // pc
	got, err := vc.Register(15)
	test.ExpectSuccess(t, err)
	test.Equate(t, got, uint32(0x0800_1234))

	_, err = vc.Register(16)
	test.ExpectFailure(t, err)
	test.Equate(t, curated.Is(err, virtualcore.ErrUnknownRegister), true)
}

func TestWritesRejected(t *testing.T) {
	vc, err := virtualcore.New(flashBlob(), nil)
	test.ExpectSuccess(t, err)

	test.ExpectFailure(t, vc.Write(0x2000_0000, []byte{0}))
	test.ExpectFailure(t, vc.WriteRegister(0, 0))
	test.ExpectFailure(t, vc.Halt())
	test.ExpectFailure(t, vc.Run())
	test.ExpectFailure(t, vc.Step())
}
