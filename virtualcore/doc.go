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

// Package virtualcore implements an in-memory, read-only, address-indexed
// merge of flash and captured RAM, plus a captured register file. It is a
// frozen snapshot assembled once by a codec driver and then read by the
// external core-file writer: RAM always shadows flash at overlapping
// addresses, and nothing in a Core is ever mutated once acquisition ends.
package virtualcore
