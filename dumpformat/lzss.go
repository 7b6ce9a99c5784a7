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

import "github.com/rtos-tools/dumpcore/curated"

// LZSS parameters, fixed across device and host. A match is
// encoded as a 1-bit flag, a 12-bit dictionary position (distance - 1,
// since a zero distance is never useful) and a 4-bit length field (match
// length - lzssMinMatch). A literal is a 0-bit flag followed by 8 bits of
// raw byte. The dictionary is conceptually zero-filled before the start of
// the stream, so a match may legally reference a position at or before the
// beginning of output; see Decompress's handling of negative indices.
const (
	lzssWindowBits = 12
	lzssWindowSize = 1 << lzssWindowBits
	lzssMinMatch   = 2
	lzssLengthBits = 4
	lzssMaxMatch   = lzssMinMatch + (1 << lzssLengthBits) - 1
)

type bitWriter struct {
	out  []byte
	cur  byte
	nbit uint
}

func (w *bitWriter) writeBit(b uint8) {
	w.cur = (w.cur << 1) | (b & 1)
	w.nbit++
	if w.nbit == 8 {
		w.out = append(w.out, w.cur)
		w.cur = 0
		w.nbit = 0
	}
}

func (w *bitWriter) writeBits(v uint32, n uint) {
	for i := int(n) - 1; i >= 0; i-- {
		w.writeBit(uint8((v >> uint(i)) & 1))
	}
}

func (w *bitWriter) flush() []byte {
	if w.nbit > 0 {
		w.cur <<= 8 - w.nbit
		w.out = append(w.out, w.cur)
		w.cur = 0
		w.nbit = 0
	}
	return w.out
}

type bitReader struct {
	in   []byte
	pos  int
	cur  byte
	nbit uint
}

func (r *bitReader) readBit() (uint8, bool) {
	if r.nbit == 0 {
		if r.pos >= len(r.in) {
			return 0, false
		}
		r.cur = r.in[r.pos]
		r.pos++
		r.nbit = 8
	}
	r.nbit--
	return (r.cur >> r.nbit) & 1, true
}

func (r *bitReader) readBits(n uint) (uint32, bool) {
	var v uint32
	for i := uint(0); i < n; i++ {
		b, ok := r.readBit()
		if !ok {
			return 0, false
		}
		v = (v << 1) | uint32(b)
	}
	return v, true
}

// findMatch searches the window behind pos for the longest run that
// matches what follows pos, allowing the match to overlap pos itself (runs
// of a repeated byte are common in RAM and compress well this way).
func findMatch(data []byte, pos int) (length, distance int) {
	windowStart := pos - lzssWindowSize
	if windowStart < 0 {
		windowStart = 0
	}

	maxLen := lzssMaxMatch
	if pos+maxLen > len(data) {
		maxLen = len(data) - pos
	}

	best, bestDist := 0, 0
	for cand := windowStart; cand < pos; cand++ {
		l := 0
		for l < maxLen && data[cand+l] == data[pos+l] {
			l++
		}
		if l > best {
			best = l
			bestDist = pos - cand
		}
	}

	return best, bestDist
}

// CompressInPlace compresses the entirety of data using the LZSS scheme
// above. It returns ErrCompression if the compressed form would be no
// smaller than the input - the device only ever uses the compressed
// output when it shrinks the data, since there is no benefit otherwise.
func CompressInPlace(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	w := &bitWriter{}
	pos := 0
	for pos < len(data) {
		length, distance := findMatch(data, pos)
		if length >= lzssMinMatch {
			w.writeBit(1)
			w.writeBits(uint32(distance-1), lzssWindowBits)
			w.writeBits(uint32(length-lzssMinMatch), lzssLengthBits)
			pos += length
		} else {
			w.writeBit(0)
			w.writeBits(uint32(data[pos]), 8)
			pos++
		}
	}

	out := w.flush()
	if len(out) >= len(data) {
		return nil, curated.Errorf(ErrCompression)
	}

	return out, nil
}

// Decompress expands input, which must hold exactly the bytes produced by
// CompressInPlace for an output of outputLength bytes. It fails with
// ErrShortRead if input runs out before outputLength bytes have been
// produced, or ErrDecodeMismatch if a decoded record would overshoot
// outputLength.
func Decompress(input []byte, outputLength int) ([]byte, error) {
	r := &bitReader{in: input}
	out := make([]byte, 0, outputLength)

	for len(out) < outputLength {
		flag, ok := r.readBit()
		if !ok {
			return nil, curated.Errorf(ErrShortRead, r.pos, outputLength-len(out), 0)
		}

		if flag == 0 {
			v, ok := r.readBits(8)
			if !ok {
				return nil, curated.Errorf(ErrShortRead, r.pos, 1, 0)
			}
			if len(out)+1 > outputLength {
				return nil, curated.Errorf(ErrDecodeMismatch, outputLength, len(out)+1)
			}
			out = append(out, byte(v))
			continue
		}

		distv, ok := r.readBits(lzssWindowBits)
		if !ok {
			return nil, curated.Errorf(ErrShortRead, r.pos, lzssWindowBits, 0)
		}
		lenv, ok := r.readBits(lzssLengthBits)
		if !ok {
			return nil, curated.Errorf(ErrShortRead, r.pos, lzssLengthBits, 0)
		}

		dist := int(distv) + 1
		length := int(lenv) + lzssMinMatch

		if len(out)+length > outputLength {
			return nil, curated.Errorf(ErrDecodeMismatch, outputLength, len(out)+length)
		}

		start := len(out) - dist
		for i := 0; i < length; i++ {
			idx := start + i
			var b byte
			if idx >= 0 {
				b = out[idx]
			}
			out = append(out, b)
		}
	}

	return out, nil
}
