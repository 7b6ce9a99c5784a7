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

package dumpformat

import (
	"encoding/binary"

	"github.com/rtos-tools/dumpcore/curated"
)

// Magic identifies a valid, initialised dump area. A header that doesn't
// start with this value is either uninitialised flash or garbage.
const Magic uint32 = 0xa5d0_41ea

// Dumper identifies who produced the contents of a dump area.
type Dumper uint8

const (
	// DumperNone marks an area that has never been written: the first
	// DumperNone header encountered during enumeration ends the ring.
	DumperNone Dumper = 0

	// DumperEmulated marks an area written by the host during a simulate
	// or emulate acquisition, rather than by on-device firmware.
	DumperEmulated Dumper = 1

	// DumperAgent marks an area written by the on-device dump agent
	// itself, in response to take_dump().
	DumperAgent Dumper = 2
)

// Contents distinguishes what kind of dump an area (or the first area of a
// group) holds.
type Contents uint8

const (
	ContentsWholeSystem Contents = 0
	ContentsSingleTask  Contents = 1
	ContentsTaskRegion  Contents = 2
)

// HeaderSize is the fixed, wire-exact size of an AreaHeader.
const HeaderSize = 4 + 4 + 4 + 4 + 1 + 1 + 2

// AreaHeader is the fixed-size record at the start of every physical dump
// area.
type AreaHeader struct {
	Address   uint32
	Length    uint32
	Written   uint32
	Dumper    Dumper
	Contents  Contents
	NSegments uint16
}

// error patterns raised by this package. Callers distinguish them with
// curated.Is.
const (
	ErrMagicMismatch    = "dumpformat: bad magic %#08x"
	ErrShortRead        = "dumpformat: short read at offset %d (need %d, have %d)"
	ErrUnknownSignature = "dumpformat: unknown segment signature %#02x at offset %d"
	ErrLengthOverflow   = "dumpformat: length would overflow buffer (%d > capacity %d)"
	ErrCompression      = "dumpformat: compression overflow"
	ErrDecodeMismatch   = "dumpformat: decompressed length mismatch (want %d, got %d)"
)

// ParseAreaHeader validates the magic and decodes the fixed-size header
// from the front of b. It returns the number of bytes consumed so the
// caller can continue parsing the segment-header table immediately after.
func ParseAreaHeader(b []byte) (AreaHeader, int, error) {
	if len(b) < HeaderSize {
		return AreaHeader{}, 0, curated.Errorf(ErrShortRead, 0, HeaderSize, len(b))
	}

	magic := binary.LittleEndian.Uint32(b[0:4])
	if magic != Magic {
		return AreaHeader{}, 0, curated.Errorf(ErrMagicMismatch, magic)
	}

	h := AreaHeader{
		Address:   binary.LittleEndian.Uint32(b[4:8]),
		Length:    binary.LittleEndian.Uint32(b[8:12]),
		Written:   binary.LittleEndian.Uint32(b[12:16]),
		Dumper:    Dumper(b[16]),
		Contents:  Contents(b[17]),
		NSegments: binary.LittleEndian.Uint16(b[18:20]),
	}

	return h, HeaderSize, nil
}

// PutAreaHeader is the inverse of ParseAreaHeader. It's used by the
// simulate/emulate acquisition paths, which construct dump
// areas on the host the way the device firmware would.
func PutAreaHeader(h AreaHeader) []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Address)
	binary.LittleEndian.PutUint32(b[8:12], h.Length)
	binary.LittleEndian.PutUint32(b[12:16], h.Written)
	b[16] = byte(h.Dumper)
	b[17] = byte(h.Contents)
	binary.LittleEndian.PutUint16(b[18:20], h.NSegments)
	return b
}

// SegmentHeaderSize is the fixed, wire-exact size of a SegmentHeader.
const SegmentHeaderSize = 4 + 4

// SegmentHeader describes one intended RAM region within an area, ahead of
// the self-describing segment records that follow.
type SegmentHeader struct {
	Address uint32
	Length  uint32
}

// ParseSegmentHeaders decodes the n fixed-size segment-header records
// starting at the front of b.
func ParseSegmentHeaders(b []byte, n int) ([]SegmentHeader, int, error) {
	need := n * SegmentHeaderSize
	if len(b) < need {
		return nil, 0, curated.Errorf(ErrShortRead, 0, need, len(b))
	}

	out := make([]SegmentHeader, n)
	for i := 0; i < n; i++ {
		off := i * SegmentHeaderSize
		out[i] = SegmentHeader{
			Address: binary.LittleEndian.Uint32(b[off : off+4]),
			Length:  binary.LittleEndian.Uint32(b[off+4 : off+8]),
		}
	}

	return out, need, nil
}

// PutSegmentHeaders is the inverse of ParseSegmentHeaders.
func PutSegmentHeaders(headers []SegmentHeader) []byte {
	b := make([]byte, len(headers)*SegmentHeaderSize)
	for i, h := range headers {
		off := i * SegmentHeaderSize
		binary.LittleEndian.PutUint32(b[off:off+4], h.Address)
		binary.LittleEndian.PutUint32(b[off+4:off+8], h.Length)
	}
	return b
}
