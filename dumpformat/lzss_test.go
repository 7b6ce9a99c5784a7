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

package dumpformat_test

import (
	"testing"

	"github.com/rtos-tools/dumpcore/curated"
	"github.com/rtos-tools/dumpcore/dumpformat"
	"github.com/rtos-tools/dumpcore/test"
)

// TestLZSSRoundTrip checks that a 1024-byte buffer of the pattern i&0xFF
// round-trips through compress then decompress.
func TestLZSSRoundTrip(t *testing.T) {
	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i & 0xff)
	}

	compressed, err := dumpformat.CompressInPlace(data)
	test.ExpectSuccess(t, err)

	if len(compressed) >= len(data) {
		t.Fatalf("expected compression to shrink the highly repetitive pattern, got %d >= %d", len(compressed), len(data))
	}

	out, err := dumpformat.Decompress(compressed, len(data))
	test.ExpectSuccess(t, err)
	test.Equate(t, out, data)
}

func TestLZSSRoundTripRandomish(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog the quick brown fox")

	compressed, err := dumpformat.CompressInPlace(data)
	test.ExpectSuccess(t, err)

	out, err := dumpformat.Decompress(compressed, len(data))
	test.ExpectSuccess(t, err)
	test.Equate(t, out, data)
}

func TestLZSSEmpty(t *testing.T) {
	compressed, err := dumpformat.CompressInPlace(nil)
	test.ExpectSuccess(t, err)
	test.Equate(t, len(compressed), 0)

	out, err := dumpformat.Decompress(nil, 0)
	test.ExpectSuccess(t, err)
	test.Equate(t, len(out), 0)
}

func TestLZSSCompressionOverflow(t *testing.T) {
	// two bytes with no internal repetition and nothing in the (empty)
	// window cannot ever compress smaller than themselves.
	data := []byte{0x01, 0x02}
	_, err := dumpformat.CompressInPlace(data)
	test.ExpectFailure(t, err)
	test.Equate(t, curated.Is(err, dumpformat.ErrCompression), true)
}

func TestLZSSDecodeMismatch(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i % 8)
	}
	compressed, err := dumpformat.CompressInPlace(data)
	test.ExpectSuccess(t, err)

	// ask for more bytes than the stream actually encodes
	_, err = dumpformat.Decompress(compressed, len(data)+16)
	test.ExpectFailure(t, err)
}
