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

// Package dumpreader implements the Area Reader: iterating physical dump
// areas, grouping them per task, and surfacing progress while pulling a
// logical dump's bytes through to the codec. It depends on nothing but a
// WindowReader, so it is shared verbatim by both agent implementations.
package dumpreader

import (
	"github.com/rtos-tools/dumpcore/curated"
	"github.com/rtos-tools/dumpcore/dumpformat"
)

// ErrInvalidArea mirrors the transport-level pattern so callers of this
// package can curated.Is against it without importing agent.
const ErrInvalidArea = "dumpreader: invalid area index %d"

// ErrAreaContext wraps a propagated transport error with the area index
// and offset it failed at.
const ErrAreaContext = "dumpreader: area %d offset %d: %s"

// ReadHeaders iterates areas starting at index 0, one Window call per
// area, parsing each area's header, its segment-header table, and - for
// task/region dumps - the trailing Task marker reachable within the same
// window. It stops at the first header with Dumper == dumpformat.DumperNone,
// omitting it unless raw is set; with raw set that header is included and
// is the last one returned.
func ReadHeaders(r WindowReader, raw bool) ([]HeaderEntry, error) {
	var out []HeaderEntry

	for index := uint32(0); ; index++ {
		window, err := r.Window(index, 0)
		if err != nil {
			if curated.Is(err, ErrInvalidArea) {
				break
			}
			return nil, curated.Errorf(ErrAreaContext, index, 0, err.Error())
		}

		header, n, err := dumpformat.ParseAreaHeader(window)
		if err != nil {
			return nil, curated.Errorf(ErrAreaContext, index, 0, err.Error())
		}

		if header.Dumper == dumpformat.DumperNone && !raw {
			break
		}

		_, segN, err := dumpformat.ParseSegmentHeaders(window[n:], int(header.NSegments))
		if err != nil {
			return nil, curated.Errorf(ErrAreaContext, index, 0, err.Error())
		}

		entry := HeaderEntry{Index: index, Header: header}

		if header.Contents != dumpformat.ContentsWholeSystem {
			sr := dumpformat.NewSegmentReader(window[n+segN:], 0)
			seg, ok, err := sr.Next()
			if err == nil && ok && seg.Kind == dumpformat.KindTask {
				entry.Task = &Task{ID: seg.TaskID, Time: seg.Time}
			}
		}

		out = append(out, entry)

		if header.Dumper == dumpformat.DumperNone {
			break
		}
	}

	return out, nil
}

// group is one task-area grouping result: the first area's index, the
// task it carries (nil for a whole-system dump), and its member headers
// in ascending index order.
type group struct {
	firstIndex uint32
	task       *Task
	headers    []HeaderEntry
}

// groupByTask implements the task-area grouping algorithm of the Area
// Reader: the initial area of a group carries a Task marker; a subsequent
// area belongs to the preceding group iff its dumper is not NONE and it
// carries no task marker of its own; any later Task marker opens a new
// group; traversal stops at the first NONE. Groups are returned in
// discovery (ascending index) order.
func groupByTask(headers []HeaderEntry) []group {
	var groups []group
	var current *group

	for _, h := range headers {
		if h.Header.Dumper == dumpformat.DumperNone {
			break
		}
		if h.Task != nil {
			groups = append(groups, group{firstIndex: h.Index, task: h.Task})
			current = &groups[len(groups)-1]
			current.headers = append(current.headers, h)
			continue
		}
		if current != nil {
			current.headers = append(current.headers, h)
		}
	}

	return groups
}

// resolveSelector turns an AreaSelector into the ordered list of headers
// making up the requested logical dump, plus the Task it belongs to (nil
// for whole-system).
func resolveSelector(headers []HeaderEntry, selector AreaSelector) (*Task, []HeaderEntry, error) {
	if selector.WholeSystem || (selector.Index == nil && selector.Address == nil) {
		if len(headers) == 0 {
			return nil, nil, nil
		}
		// A read-back with no explicit area/index, such as the one
		// following a fresh take_dump, doesn't know in advance whether
		// the ring holds a whole-system dump or a task dump: learn it
		// from area 0's own Task marker and follow its group exactly as
		// an address/index selector would, rather than assuming a
		// single whole-system area.
		if headers[0].Task != nil {
			groups := groupByTask(headers)
			if len(groups) > 0 {
				return groups[0].task, groups[0].headers, nil
			}
		}
		return nil, headers[:1], nil
	}

	var startIndex uint32
	if selector.Index != nil {
		startIndex = *selector.Index
	} else {
		found := false
		for _, h := range headers {
			if h.Header.Address == *selector.Address {
				startIndex = h.Index
				found = true
				break
			}
		}
		if !found {
			return nil, nil, curated.Errorf(ErrInvalidArea, 0)
		}
	}

	groups := groupByTask(headers)
	for _, g := range groups {
		if g.firstIndex == startIndex {
			return g.task, g.headers, nil
		}
	}

	return nil, nil, curated.Errorf(ErrInvalidArea, startIndex)
}

// ReadLogicalDump resolves selector to the physical areas that make up
// one logical dump, then pulls successive windows from each area via
// Window(index, offset), appending into a growing buffer bounded by the
// area's Written field, and feeds each window through progress (which may
// request early termination by returning false). It returns the Task the
// dump belonged to, or nil for a whole-system dump.
func ReadLogicalDump(r WindowReader, selector AreaSelector, sink Sink, progress func(read, total int) bool) (*Task, error) {
	headers, err := ReadHeaders(r, false)
	if err != nil {
		return nil, err
	}

	task, members, err := resolveSelector(headers, selector)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return task, nil
	}

	// Only the leading area's own AreaHeader and segment-header table
	// belong in the parsed stream; a spill-over area's copy of the same
	// fixed preamble is a re-statement of its own physical layout, not
	// payload, and must be skipped before its bytes are appended.
	skips := make([]uint32, len(members))
	total := 0
	for i, h := range members {
		if i > 0 {
			skip, err := areaPayloadOffset(r, h.Index)
			if err != nil {
				return nil, err
			}
			skips[i] = skip
		}
		total += int(h.Header.Written) - int(skips[i])
	}

	var buf []byte
	read := 0
	for i, h := range members {
		offset := skips[i]
		for offset < h.Header.Written {
			window, err := r.Window(h.Index, offset)
			if err != nil {
				if curated.Is(err, ErrInvalidArea) {
					break
				}
				return nil, curated.Errorf(ErrAreaContext, h.Index, offset, err.Error())
			}
			if len(window) == 0 {
				break
			}

			remaining := h.Header.Written - offset
			if uint32(len(window)) > remaining {
				window = window[:remaining]
			}

			buf = append(buf, window...)
			offset += uint32(len(window))
			read += len(window)

			if progress != nil && !progress(read, total) {
				return task, nil
			}
		}
	}

	if err := decodeInto(buf, sink); err != nil {
		return nil, err
	}

	return task, nil
}

// areaPayloadOffset reads just enough of area index's leading window to
// parse its AreaHeader and segment-header table, returning the byte
// offset at which actual segment payload begins. A spill-over area
// carries no Task marker of its own (see groupByTask), so the payload
// always starts immediately after the segment-header table.
func areaPayloadOffset(r WindowReader, index uint32) (uint32, error) {
	window, err := r.Window(index, 0)
	if err != nil {
		return 0, curated.Errorf(ErrAreaContext, index, 0, err.Error())
	}

	header, n, err := dumpformat.ParseAreaHeader(window)
	if err != nil {
		return 0, curated.Errorf(ErrAreaContext, index, 0, err.Error())
	}

	_, segN, err := dumpformat.ParseSegmentHeaders(window[n:], int(header.NSegments))
	if err != nil {
		return 0, curated.Errorf(ErrAreaContext, index, 0, err.Error())
	}

	return uint32(n + segN), nil
}

// decodeInto walks the concatenated buffer through the codec, a single
// contiguous parse even when the bytes spanned multiple physical areas.
func decodeInto(buf []byte, sink Sink) error {
	header, n, err := dumpformat.ParseAreaHeader(buf)
	if err != nil {
		return err
	}

	_, segN, err := dumpformat.ParseSegmentHeaders(buf[n:], int(header.NSegments))
	if err != nil {
		return err
	}

	sr := dumpformat.NewSegmentReader(buf, n+segN)
	for {
		seg, ok, err := sr.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		switch seg.Kind {
		case dumpformat.KindTask:
			// already recovered via ReadHeaders; nothing further to do
		case dumpformat.KindRegister:
			sink.SetRegister(seg.RegisterID, seg.Value)
		case dumpformat.KindData:
			plain, err := dumpformat.Decompress(seg.Compressed, int(seg.UncompressedLength))
			if err != nil {
				return err
			}
			if err := sink.InsertRAM(seg.Address, plain); err != nil {
				return err
			}
		}
	}

	return nil
}
