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

package virtualcore

import (
	"sort"

	"github.com/rtos-tools/dumpcore/curated"
)

// error patterns raised by this package.
const (
	ErrAddressNotMapped = "virtualcore: address %#08x not mapped"
	ErrUnknownRegister  = "virtualcore: register %d not captured"
	ErrNotWritable      = "virtualcore: %s not supported on a frozen dump"
	ErrOverlap          = "virtualcore: region at %#08x overlaps existing region at %#08x"
)

// FlashRegion describes one contiguous slice of the firmware archive's
// flash image, in terms of an offset into the archive's flash blob.
type FlashRegion struct {
	Base   uint32
	Length uint32
	Offset uint32
}

type ramRegion struct {
	base uint32
	data []byte
}

// Core is the virtual core: flash is fixed at construction, RAM grows as
// the codec driver inserts decoded Data segments, and registers accumulate
// as Register records are decoded. Every read-side method is safe to call
// concurrently; nothing here is ever mutated after acquisition completes.
type Core struct {
	flashBlob []byte
	flash     []FlashRegion // sorted by Base, pairwise disjoint

	ram []ramRegion // sorted by base, pairwise disjoint

	registers map[uint16]uint32
}

// New creates an empty Core over the given flash image. flashBlob is the
// raw bytes of the firmware archive's flash section; regions index into it.
// Overlapping flash regions are a Fatal construction error - the firmware
// archive that supplied them is malformed.
func New(flashBlob []byte, regions []FlashRegion) (*Core, error) {
	sorted := append([]FlashRegion(nil), regions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Base < sorted[j].Base })

	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1]
		if uint64(prev.Base)+uint64(prev.Length) > uint64(sorted[i].Base) {
			return nil, curated.Errorf(ErrOverlap, sorted[i].Base, prev.Base)
		}
	}

	return &Core{
		flashBlob: flashBlob,
		flash:     sorted,
		registers: make(map[uint16]uint32),
	}, nil
}

// InsertRAM adds a captured RAM region. It is the only way RAM grows; the
// region must not overlap any region already present.
func (c *Core) InsertRAM(base uint32, data []byte) error {
	idx := sort.Search(len(c.ram), func(i int) bool { return c.ram[i].base > base })

	if idx > 0 {
		prev := c.ram[idx-1]
		if uint64(prev.base)+uint64(len(prev.data)) > uint64(base) {
			return curated.Errorf(ErrOverlap, base, prev.base)
		}
	}
	if idx < len(c.ram) {
		next := c.ram[idx]
		if uint64(base)+uint64(len(data)) > uint64(next.base) {
			return curated.Errorf(ErrOverlap, base, next.base)
		}
	}

	region := ramRegion{base: base, data: append([]byte(nil), data...)}
	c.ram = append(c.ram, ramRegion{})
	copy(c.ram[idx+1:], c.ram[idx:])
	c.ram[idx] = region

	return nil
}

// SetRegister records a captured register value.
func (c *Core) SetRegister(id uint16, value uint32) {
	c.registers[id] = value
}

// Register returns a captured register value, or ErrUnknownRegister if it
// was never captured.
func (c *Core) Register(id uint16) (uint32, error) {
	v, ok := c.registers[id]
	if !ok {
		return 0, curated.Errorf(ErrUnknownRegister, id)
	}
	return v, nil
}

// Read fills out starting at addr, walking across region boundaries and
// preferring RAM over flash at every address. It fails with
// ErrAddressNotMapped as soon as it reaches an address covered by neither.
func (c *Core) Read(addr uint32, out []byte) error {
	for len(out) > 0 {
		if n, ok := copyFrom(c.ram, addr, out); ok {
			if n == len(out) {
				return nil
			}
			addr += uint32(n)
			out = out[n:]
			continue
		}

		if n, ok := c.copyFromFlash(addr, out); ok {
			if n == len(out) {
				return nil
			}
			addr += uint32(n)
			out = out[n:]
			continue
		}

		return curated.Errorf(ErrAddressNotMapped, addr)
	}

	return nil
}

// copyFrom locates the greatest RAM region whose base is <= addr and, if
// it contains addr, copies the intersection with out into out's front.
func copyFrom(regions []ramRegion, addr uint32, out []byte) (int, bool) {
	idx := sort.Search(len(regions), func(i int) bool { return regions[i].base > addr }) - 1
	if idx < 0 {
		return 0, false
	}

	r := regions[idx]
	if addr >= r.base+uint32(len(r.data)) {
		return 0, false
	}

	off := addr - r.base
	n := copy(out, r.data[off:])
	return n, true
}

// copyFromFlash mirrors copyFrom over flash regions, materialising bytes
// out of the archive blob lazily.
func (c *Core) copyFromFlash(addr uint32, out []byte) (int, bool) {
	idx := sort.Search(len(c.flash), func(i int) bool { return c.flash[i].Base > addr }) - 1
	if idx < 0 {
		return 0, false
	}

	r := c.flash[idx]
	if addr >= r.Base+r.Length {
		return 0, false
	}

	off := addr - r.Base
	avail := r.Length - off
	n := len(out)
	if uint32(n) > avail {
		n = int(avail)
	}

	blobOff := r.Offset + off
	copy(out[:n], c.flashBlob[blobOff:blobOff+uint32(n)])
	return n, true
}

// Halt, Run and Step are not supported: the dump is a frozen snapshot.
// Each one always fails with ErrNotWritable.
func (c *Core) Halt() error { return curated.Errorf(ErrNotWritable, "halt") }
func (c *Core) Run() error  { return curated.Errorf(ErrNotWritable, "run") }
func (c *Core) Step() error { return curated.Errorf(ErrNotWritable, "step") }

// Write always fails: virtual cores are read-only.
func (c *Core) Write(addr uint32, data []byte) error {
	return curated.Errorf(ErrNotWritable, "write")
}

// WriteRegister always fails: virtual cores are read-only.
func (c *Core) WriteRegister(id uint16, value uint32) error {
	return curated.Errorf(ErrNotWritable, "write register")
}
