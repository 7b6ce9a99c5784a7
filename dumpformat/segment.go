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

// signature bytes identifying the kind of record at the current cursor.
// Chosen to be readable in a hex dump; the device and host must agree on
// these byte-for-byte the same way they must agree on the LZSS parameters.
const (
	sigTask     = 0x54 // 'T'
	sigRegister = 0x52 // 'R'
	sigData     = 0x44 // 'D'

	// PadByte fills the gap between the end of a Data record's compressed
	// bytes and the next record's alignment boundary.
	PadByte = 0x00

	// dataAlignment is the boundary Data records are padded up to.
	dataAlignment = 4
)

// SegmentKind distinguishes the variants of DumpSegment.
type SegmentKind int

const (
	KindTask SegmentKind = iota
	KindRegister
	KindData
)

// DumpSegment is one self-describing record following the segment-header
// table. Exactly one of the Task/Register/Data fields is meaningful,
// selected by Kind.
type DumpSegment struct {
	Kind SegmentKind

	// KindTask
	TaskID uint16
	Time   uint64

	// KindRegister
	RegisterID uint16
	Value      uint32

	// KindData
	Address            uint32
	UncompressedLength uint16
	CompressedLength   uint16
	Compressed         []byte
}

// SegmentReader walks self-describing segment records out of a byte slice,
// one at a time, the way bufio.Scanner walks lines. It is positioned by the
// caller just past the segment-header table (see ParseSegmentHeaders).
type SegmentReader struct {
	b   []byte
	off int
}

// NewSegmentReader creates a reader positioned at off within b.
func NewSegmentReader(b []byte, off int) *SegmentReader {
	return &SegmentReader{b: b, off: off}
}

// Offset returns the reader's current cursor, for error context.
func (r *SegmentReader) Offset() int {
	return r.off
}

// Next decodes the next segment record. It returns ok=false once the
// reader has consumed every byte of its input; that is not an error.
func (r *SegmentReader) Next() (seg DumpSegment, ok bool, err error) {
	r.skipPad()

	if r.off >= len(r.b) {
		return DumpSegment{}, false, nil
	}

	sig := r.b[r.off]

	switch sig {
	case sigTask:
		const need = 1 + 2 + 8
		if r.off+need > len(r.b) {
			return DumpSegment{}, false, curated.Errorf(ErrShortRead, r.off, need, len(r.b)-r.off)
		}
		seg.Kind = KindTask
		seg.TaskID = binary.LittleEndian.Uint16(r.b[r.off+1 : r.off+3])
		seg.Time = binary.LittleEndian.Uint64(r.b[r.off+3 : r.off+11])
		r.off += need
		return seg, true, nil

	case sigRegister:
		const need = 1 + 2 + 4
		if r.off+need > len(r.b) {
			return DumpSegment{}, false, curated.Errorf(ErrShortRead, r.off, need, len(r.b)-r.off)
		}
		seg.Kind = KindRegister
		seg.RegisterID = binary.LittleEndian.Uint16(r.b[r.off+1 : r.off+3])
		seg.Value = binary.LittleEndian.Uint32(r.b[r.off+3 : r.off+7])
		r.off += need
		return seg, true, nil

	case sigData:
		const head = 1 + 4 + 2 + 2
		if r.off+head > len(r.b) {
			return DumpSegment{}, false, curated.Errorf(ErrShortRead, r.off, head, len(r.b)-r.off)
		}
		seg.Kind = KindData
		seg.Address = binary.LittleEndian.Uint32(r.b[r.off+1 : r.off+5])
		seg.UncompressedLength = binary.LittleEndian.Uint16(r.b[r.off+5 : r.off+7])
		seg.CompressedLength = binary.LittleEndian.Uint16(r.b[r.off+7 : r.off+9])

		start := r.off + head
		end := start + int(seg.CompressedLength)
		if end > len(r.b) {
			return DumpSegment{}, false, curated.Errorf(ErrShortRead, start, int(seg.CompressedLength), len(r.b)-start)
		}

		seg.Compressed = r.b[start:end]
		r.off = end
		return seg, true, nil

	default:
		return DumpSegment{}, false, curated.Errorf(ErrUnknownSignature, sig, r.off)
	}
}

// skipPad advances past any run of PadByte values, as the device inserts
// between a Data record's compressed bytes and the next record's
// alignment boundary.
func (r *SegmentReader) skipPad() {
	for r.off < len(r.b) && r.b[r.off] == PadByte {
		r.off++
	}
}

// PutTaskSegment encodes a Task marker. Used by the emulate acquisition
// path, which has the host stand in for the on-device dumper
// and so must write records the parser above can read back.
func PutTaskSegment(taskID uint16, time uint64) []byte {
	b := make([]byte, 1+2+8)
	b[0] = sigTask
	binary.LittleEndian.PutUint16(b[1:3], taskID)
	binary.LittleEndian.PutUint64(b[3:11], time)
	return b
}

// PutRegisterSegment encodes one captured register value.
func PutRegisterSegment(id uint16, value uint32) []byte {
	b := make([]byte, 1+2+4)
	b[0] = sigRegister
	binary.LittleEndian.PutUint16(b[1:3], id)
	binary.LittleEndian.PutUint32(b[3:7], value)
	return b
}

// PutDataSegment compresses plain and encodes it as a Data record,
// followed by PAD bytes up to the next alignment boundary. It fails with
// ErrCompression if plain does not compress (see CompressInPlace).
func PutDataSegment(address uint32, plain []byte) ([]byte, error) {
	compressed, err := CompressInPlace(plain)
	if err != nil {
		return nil, err
	}

	b := make([]byte, 1+4+2+2)
	b[0] = sigData
	binary.LittleEndian.PutUint32(b[1:5], address)
	binary.LittleEndian.PutUint16(b[5:7], uint16(len(plain)))
	binary.LittleEndian.PutUint16(b[7:9], uint16(len(compressed)))

	out := append(b, compressed...)
	pad := PadTo(len(out))
	for i := 0; i < pad; i++ {
		out = append(out, PadByte)
	}
	return out, nil
}

// PadTo returns the number of PadByte bytes needed to bring length up to
// the next dataAlignment boundary, matching the device's encoder.
func PadTo(length int) int {
	rem := length % dataAlignment
	if rem == 0 {
		return 0
	}
	return dataAlignment - rem
}
