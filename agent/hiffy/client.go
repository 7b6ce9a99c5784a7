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

package hiffy

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/rtos-tools/dumpcore/agent"
	"github.com/rtos-tools/dumpcore/archive"
	"github.com/rtos-tools/dumpcore/curated"
	"github.com/rtos-tools/dumpcore/debugcore"
	"github.com/rtos-tools/dumpcore/dumpformat"
	"github.com/rtos-tools/dumpcore/dumpreader"
	"github.com/rtos-tools/dumpcore/logger"
)

// error patterns raised by this package.
const (
	ErrReadDumpSizeTooSmall  = "hiffy: read_dump size %d is smaller than the minimum %d"
	ErrReadDumpSizeTooFew    = "hiffy: read_dump size %d can only hold %d dumpable segments (want >= 16)"
	ErrCallFailed            = "hiffy: %s failed: errno %d"
	ErrCallFailedDecoded     = "hiffy: %s failed: %s (errno %d)"
	ErrUnexpectedResultCount = "hiffy: expected %d results, got %d"
	ErrArgsSizeMismatch      = "hiffy: %s: manifest reports %d argument bytes, this client would push %d"
)

// Client is the Hiffy Agent Transport implementation: it speaks the
// device's stack-machine interpreter over a debug probe, batching
// multiple read_dump windows into one program to amortize the
// interpreter's per-program overhead.
type Client struct {
	archive archive.Archive
	core    debugcore.Core
	runner  Runner

	rsize     int
	chunksize int

	// pending holds the remaining windows of the last batch fetched by
	// ReadDump. Batches are always requested in ascending order by the
	// reader, so a small scan-and-remove queue is sufficient.
	pending []pendingWindow

	// limit is the first area index the agent reported as invalid, or -1
	// while the end of the ring is still unknown. It persists across
	// enumeration passes: an index at or past it can be refused without
	// another round trip, while indices below it always remain valid.
	limit int
}

type pendingWindow struct {
	index  uint32
	offset uint32
	data   []byte
}

// NewClient constructs a Hiffy client, running its sanity gates at
// construction: rsize must be at least large enough for one AreaHeader
// plus one Task segment record (the largest fixed-size record), and the
// implied maximum number of per-response segment headers must be at
// least 16.
func NewClient(a archive.Archive, core debugcore.Core, runner Runner) (*Client, error) {
	readDump, err := a.LookupIDL("DumpAgent.read_dump")
	if err != nil {
		return nil, err
	}

	rsize := readDump.ReplySize
	const taskRecordSize = 1 + 2 + 8 // signature + task_id + time: the largest fixed segment record
	min := dumpformat.HeaderSize + taskRecordSize
	if rsize < min {
		return nil, curated.Errorf(ErrReadDumpSizeTooSmall, rsize, min)
	}

	maxSegments := (rsize - min) / dumpformat.SegmentHeaderSize
	if maxSegments < 16 {
		return nil, curated.Errorf(ErrReadDumpSizeTooFew, rsize, maxSegments)
	}

	chunksize := readDump.RDataSize/rsize - 1

	return &Client{
		archive:   a,
		core:      core,
		runner:    runner,
		rsize:     rsize,
		chunksize: chunksize,
		limit:     -1,
	}, nil
}

func (c *Client) Core() debugcore.Core { return c.core }

func (c *Client) InitializeDump() error {
	op, err := c.archive.LookupIDL("DumpAgent.initialize_dump")
	if err != nil {
		return err
	}
	if err := checkArgsSize(op, 0); err != nil {
		return err
	}
	results, err := c.runner.Run([]Op{Call(opID(op), 0), Done()})
	if err != nil {
		return err
	}
	return c.checkResult(results, 0, "initialize_dump")
}

func (c *Client) InitializeSegments(segments []agent.Segment) error {
	op, err := c.archive.LookupIDL("DumpAgent.add_dump_segment")
	if err != nil {
		return err
	}
	if err := checkArgsSize(op, 2); err != nil {
		return err
	}

	var ops []Op
	for _, s := range segments {
		ops = append(ops, Push(s.Address), Push(s.Length), Call(opID(op), 2))
	}
	ops = append(ops, Done())

	results, err := c.runner.Run(ops)
	if err != nil {
		return err
	}
	for i := range segments {
		if err := c.checkResult(results, i, "add_dump_segment"); err != nil {
			return err
		}
	}
	return nil
}

// TakeDump instructs the device to capture state. When the core is not a
// network core, taking the dump will sever the debug link, so the client
// first emits a 100x100ms sleep loop to give the operator time to unplug;
// it widens the core's timeout to 60 seconds before the call (one-shot,
// not a retry loop) since the dump itself can take the better part of a
// minute.
func (c *Client) TakeDump() error {
	takeDump, err := c.archive.LookupIDL("DumpAgent.take_dump")
	if err != nil {
		return err
	}
	if err := checkArgsSize(takeDump, 0); err != nil {
		return err
	}

	c.core.SetTimeout(60 * time.Second)

	var ops []Op
	resultIndex := 0

	if !c.core.IsNet() {
		sleepFn, err := c.archive.LookupIDL("Sleep")
		if err != nil {
			return err
		}
		if err := checkArgsSize(sleepFn, 1); err != nil {
			return err
		}
		loop, calls := sleepLoop(opID(sleepFn))
		ops = append(ops, loop...)
		resultIndex = calls

		logger.Log(logger.Allow, "hiffy", "dump will start in 10 seconds; unplug probe now")
	} else {
		logger.Log(logger.Allow, "hiffy", "taking dump; target will be stopped briefly")
	}

	ops = append(ops, Call(opID(takeDump), 0), Done())

	var start unix.Timespec
	haveStart := unix.ClockGettime(unix.CLOCK_MONOTONIC, &start) == nil

	results, err := c.runner.Run(ops)
	if err != nil {
		return err
	}

	if haveStart {
		var end unix.Timespec
		if unix.ClockGettime(unix.CLOCK_MONOTONIC, &end) == nil {
			elapsed := time.Duration(end.Sec-start.Sec)*time.Second + time.Duration(end.Nsec-start.Nsec)
			logger.Logf(logger.Allow, "hiffy", "take_dump run completed in %s", elapsed)
		}
	}

	return c.checkResult(results, resultIndex, "take_dump")
}

// ReadDump returns a fixed-size window for one area. Internally it
// batches chunksize consecutive read_dump calls into a single program
// the first time a new batch is needed, caching the rest for subsequent
// calls. N areas therefore cost ceil(N/chunksize) round trips without
// the Area Reader needing to know about batching at all.
func (c *Client) ReadDump(index uint32, offset uint32) ([]byte, error) {
	for i, p := range c.pending {
		if p.index == index && p.offset == offset {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return p.data, nil
		}
	}

	if c.limit >= 0 && index >= uint32(c.limit) {
		return nil, curated.Errorf(dumpreader.ErrInvalidArea, index)
	}

	op, err := c.archive.LookupIDL("DumpAgent.read_dump")
	if err != nil {
		return nil, err
	}
	if err := checkArgsSize(op, 2); err != nil {
		return nil, err
	}

	type req struct{ index, offset uint32 }
	var reqs []req
	var ops []Op
	for i := 0; i < c.chunksize; i++ {
		reqs = append(reqs, req{index + uint32(i), offset})
		ops = append(ops, Push(index+uint32(i)), Push(offset), Call(opID(op), 2))
	}
	ops = append(ops, Done())

	results, err := c.runner.Run(ops)
	if err != nil {
		return nil, err
	}
	if len(results) != len(reqs) {
		return nil, curated.Errorf(ErrUnexpectedResultCount, len(reqs), len(results))
	}

	var first []byte
	haveFirst := false
	for i, r := range results {
		if !r.Ok {
			if invalidArea(r.Errno) {
				c.limit = int(reqs[i].index)
				break
			}
			return nil, c.agentError("read_dump", r.Errno)
		}
		if !haveFirst {
			first = r.Value
			haveFirst = true
			continue
		}
		c.pending = append(c.pending, pendingWindow{index: reqs[i].index, offset: reqs[i].offset, data: r.Value})
	}

	if !haveFirst {
		return nil, curated.Errorf(dumpreader.ErrInvalidArea, index)
	}

	return first, nil
}

func (c *Client) ReadDumpHeaders(raw bool) ([]dumpreader.HeaderEntry, error) {
	return dumpreader.ReadHeaders(windowAdapter{c}, raw)
}

func (c *Client) ReadDumpFull(selector dumpreader.AreaSelector, sink dumpreader.Sink) (*dumpreader.Task, error) {
	return dumpreader.ReadLogicalDump(windowAdapter{c}, selector, sink, nil)
}

// windowAdapter lets *Client satisfy dumpreader.WindowReader without
// exporting that method under a name that collides with the Agent
// interface's ReadDump.
type windowAdapter struct{ c *Client }

func (w windowAdapter) Window(index uint32, offset uint32) ([]byte, error) {
	return w.c.ReadDump(index, offset)
}

// invalidArea reports whether an agent errno means "index past the end
// of the ring". The value is fixed by the agent protocol, the same
// convention as udpagent's errnoInvalidArea; both transports must report
// the same failure class so the Area Reader can recover it as
// end-of-list.
func invalidArea(errno uint32) bool {
	return errno == 1
}

// checkArgsSize validates that the manifest's reported argument byte
// width for m matches what this client is about to push onto the stack
// (arity 4-byte words), catching a stale or mismatched IDL record as an
// ArchiveError before a desynced program ever reaches the interpreter.
func checkArgsSize(m archive.IDLMethod, arity int) error {
	want := arity * 4
	if m.ArgsSize != want {
		return curated.Errorf(ErrArgsSizeMismatch, m.Name, m.ArgsSize, want)
	}
	return nil
}

func opID(m archive.IDLMethod) uint32 {
	return m.ID
}

func (c *Client) checkResult(results []Result, index int, name string) error {
	if index >= len(results) {
		return curated.Errorf(ErrUnexpectedResultCount, index+1, len(results))
	}
	if !results[index].Ok {
		return c.agentError(name, results[index].Errno)
	}
	return nil
}

// agentError builds the error for a failed agent call, decoding errno to a name via
// the archive's enum table when one is available and falling back to the
// bare code otherwise.
func (c *Client) agentError(name string, errno uint32) error {
	if decoded, ok := c.archive.DecodeAgentError(errno); ok {
		return curated.Errorf(ErrCallFailedDecoded, name, decoded, errno)
	}
	return curated.Errorf(ErrCallFailed, name, errno)
}

var _ agent.Agent = (*Client)(nil)
