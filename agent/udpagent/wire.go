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

package udpagent

import "encoding/binary"

// Each agent call maps to one request datagram and one reply datagram:
// a one-byte opcode plus a little-endian argument payload,
// answered by a one-byte status plus either a result payload or a
// four-byte errno. There is no batching: every call is its own
// round-trip, unlike Hiffy's packed programs.
const (
	opInitializeDump byte = 1
	opAddDumpSegment byte = 2
	opTakeDump       byte = 3
	opReadDump       byte = 4
)

const (
	statusOK  byte = 0
	statusErr byte = 1
)

// errnoInvalidArea is the fixed errno value meaning "index past end",
// the UDP counterpart of hiffy's invalidArea convention - both transports
// must report the same failure class to dumpreader.ErrInvalidArea even
// though their wire encodings differ.
const errnoInvalidArea uint32 = 1

func encodeRequest(op byte, args ...uint32) []byte {
	b := make([]byte, 1+4*len(args))
	b[0] = op
	for i, a := range args {
		binary.LittleEndian.PutUint32(b[1+4*i:5+4*i], a)
	}
	return b
}

func decodeReply(b []byte) (ok bool, errno uint32, payload []byte) {
	if len(b) == 0 {
		return false, 0, nil
	}
	if b[0] == statusErr {
		if len(b) >= 5 {
			errno = binary.LittleEndian.Uint32(b[1:5])
		}
		return false, errno, nil
	}
	return true, 0, b[1:]
}
