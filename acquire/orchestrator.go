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

// Package acquire implements the Acquisition Orchestrator: the
// top-level state machine that chooses a transport, drives it through one
// of list/status/simulate/emulate/force_read/area/default, and hands the
// resulting VirtualCore to the external ELF writer.
package acquire

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rtos-tools/dumpcore/agent"
	"github.com/rtos-tools/dumpcore/archive"
	"github.com/rtos-tools/dumpcore/config"
	"github.com/rtos-tools/dumpcore/curated"
	"github.com/rtos-tools/dumpcore/debugcore"
	"github.com/rtos-tools/dumpcore/dumpformat"
	"github.com/rtos-tools/dumpcore/dumpreader"
	"github.com/rtos-tools/dumpcore/elfwriter"
	"github.com/rtos-tools/dumpcore/logger"
	"github.com/rtos-tools/dumpcore/virtualcore"
)

// numRegisters is the ARM general register count captured whole for a
// whole-system simulate/emulate, matching the coprocessor's own register
// file size.
const numRegisters = 16

// chunkSize bounds the compress/decompress sanity check performed while
// simulating a dump directly off the target.
const chunkSize = 1024

// error patterns raised by this package. ErrRunningTask,
// ErrOverwriteRefused and ErrNetForceDumpAgent refuse an operator
// request; the rest report target state the acquisition cannot handle.
const (
	ErrOverwriteRefused    = "acquire: dump agent already holds one or more dumps; list them with list, clear them with initialize_dump_agent, or force an overwrite with force_overwrite"
	ErrRunningTask         = "acquire: cannot dump task %d while it is currently running"
	ErrNetForceDumpAgent   = "acquire: can only force the dump agent when attached via a debug probe"
	ErrNoFreeArea          = "acquire: no free dump area to claim"
	ErrCompressionOverflow = "acquire: compression overflow at %#08x"
	ErrRoundTripMismatch   = "acquire: compress/decompress round trip mismatch at %#08x"
)

// AgentFactory constructs the two Agent Transport implementations on
// demand, so the orchestrator never imports hiffy or udpagent directly
// and stays ignorant of which one it's holding.
type AgentFactory struct {
	NewHiffy func() (agent.Agent, error)
	NewUDP   func() (agent.Agent, error)
}

// Orchestrator drives one acquisition run end to end.
type Orchestrator struct {
	Archive archive.Archive
	Core    debugcore.Core
	Writer  elfwriter.Writer
	Agents  AgentFactory

	// NetFeature reports whether the UDP transport is available to select
	// at all; some builds are compiled without network support even when
	// the core itself is network-attached.
	NetFeature func() bool

	// Now supplies the acquisition's started_at timestamp, overridable in
	// tests. Defaults to time.Now.
	Now func() time.Time

	// Output receives list/status rendering and force-manual-initiation
	// instructions. Defaults to os.Stdout.
	Output io.Writer

	// Acknowledge blocks until the operator confirms they've invoked the
	// dumper out of band, for the force-manual-initiation path. Defaults
	// to a cbreak-mode wait on stdin (see prompt.go).
	Acknowledge func() error
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) output() io.Writer {
	if o.Output != nil {
		return o.Output
	}
	return os.Stdout
}

func (o *Orchestrator) acknowledge() error {
	if o.Acknowledge != nil {
		return o.Acknowledge()
	}
	return waitForAcknowledgement(os.Stdin)
}

// Run validates opts and executes one full acquisition.
func (o *Orchestrator) Run(opts config.Options) error {
	if err := config.Validate(opts); err != nil {
		return err
	}

	if opts.TimeoutMS > 0 {
		o.Core.SetTimeout(time.Duration(opts.TimeoutMS) * time.Millisecond)
	}

	if opts.ForceDumpAgent && o.Core.IsNet() {
		return curated.Errorf(ErrNetForceDumpAgent)
	}

	a, err := o.chooseAgent(opts)
	if err != nil {
		return err
	}

	if opts.List {
		return o.list(a)
	}
	if opts.DumpAgentStatus {
		return o.status(a)
	}

	var task *archive.Task
	if opts.Task != "" {
		t, err := o.Archive.LookupTask(opts.Task)
		if err != nil {
			return err
		}
		task = &t
	}

	started := o.now()

	if opts.SimulateDumper {
		return o.simulate(opts, task)
	}
	return o.viaAgent(a, opts, task, started)
}

// chooseAgent picks UDP over Hiffy only when the core is network-attached,
// the caller hasn't forced Hiffy, and the agent task declares a net
// feature; otherwise Hiffy, the universal fallback over a debug probe.
func (o *Orchestrator) chooseAgent(opts config.Options) (agent.Agent, error) {
	if o.Core.IsNet() && !opts.ForceHiffyAgent && o.netFeature() {
		return o.Agents.NewUDP()
	}
	return o.Agents.NewHiffy()
}

// netFeature reports whether the UDP transport may be selected at all:
// NetFeature, when set, gates it at the build level (some builds are
// compiled without network support even when the core itself is
// network-attached); the agent task's own IDL record then supplies the
// manifest-level net declaration.
func (o *Orchestrator) netFeature() bool {
	if o.NetFeature != nil && !o.NetFeature() {
		return false
	}
	m, err := o.Archive.LookupIDL("DumpAgent.read_dump")
	if err != nil {
		return false
	}
	return m.HasNetFlag
}

// listRow is one rendered line of the list operation.
type listRow struct {
	firstIndex uint32
	task       *dumpreader.Task
	size       uint64
}

// buildListRows prepares the rendered rows: an empty or uninitialized
// ring renders nothing; a ring whose first area carries no Task marker is a
// single whole-system entry spanning every non-NONE area; otherwise each
// task-area run (see dumpreader's task-area grouping) becomes its own row.
func buildListRows(headers []dumpreader.HeaderEntry) []listRow {
	if len(headers) == 0 || headers[0].Header.Dumper == dumpformat.DumperNone {
		return nil
	}

	if headers[0].Task == nil {
		var size uint64
		for _, h := range headers {
			if h.Header.Dumper != dumpformat.DumperNone {
				size += uint64(h.Header.Written)
			}
		}
		return []listRow{{size: size}}
	}

	var rows []listRow
	var current *listRow
	for _, h := range headers {
		if h.Header.Dumper == dumpformat.DumperNone {
			break
		}
		if h.Task != nil {
			rows = append(rows, listRow{firstIndex: h.Index, task: h.Task, size: uint64(h.Header.Written)})
			current = &rows[len(rows)-1]
			continue
		}
		if current != nil {
			current.size += uint64(h.Header.Written)
		}
	}
	return rows
}

func (o *Orchestrator) list(a agent.Agent) error {
	headers, err := a.ReadDumpHeaders(false)
	if err != nil {
		return err
	}

	w := o.output()
	fmt.Fprintf(w, "%-4s %-12s %-10s %s\n", "AREA", "TASK", "TIME", "SIZE")
	for _, row := range buildListRows(headers) {
		if row.task == nil {
			fmt.Fprintf(w, "%-4d %-12s %-10s %d\n", 0, "<system>", "-", row.size)
		} else {
			fmt.Fprintf(w, "%-4d task %-7d %-10d %d\n", row.firstIndex, row.task.ID, row.task.Time, row.size)
		}
	}
	return nil
}

func (o *Orchestrator) status(a agent.Agent) error {
	headers, err := a.ReadDumpHeaders(true)
	if err != nil {
		return err
	}

	w := o.output()
	for _, h := range headers {
		fmt.Fprintf(w, "area %d: address=%#08x length=%d written=%d dumper=%d contents=%d nsegments=%d\n",
			h.Index, h.Header.Address, h.Header.Length, h.Header.Written,
			h.Header.Dumper, h.Header.Contents, h.Header.NSegments)
	}
	return nil
}

// viaAgent implements every agent-driven branch besides simulate: the
// overwrite-refusal/initialize sequence, emulate's in-situ write, the
// default take_dump, and force_read/area's read-only shortcuts, all
// converging on readBack.
func (o *Orchestrator) viaAgent(a agent.Agent, opts config.Options, task *archive.Task, started time.Time) error {
	wholeSystemSegments, err := o.Archive.DumpSegments(o.Core, nil)
	if err != nil {
		return err
	}

	headers, err := a.ReadDumpHeaders(true)
	if err != nil {
		return err
	}

	skipInit := opts.ForceRead || opts.Area != nil

	if !skipInit {
		if len(headers) > 0 && headers[0].Header.Dumper != dumpformat.DumperNone {
			if !(opts.InitializeDumpAgent || opts.ForceOverwrite || task != nil) {
				return curated.Errorf(ErrOverwriteRefused)
			}
		}

		if task == nil || opts.InitializeDumpAgent {
			if err := a.InitializeDump(); err != nil {
				return err
			}
		}

		if opts.InitializeDumpAgent {
			return nil
		}

		if task == nil {
			if err := a.InitializeSegments(toAgentSegments(wholeSystemSegments)); err != nil {
				return err
			}
		}
	}

	var claimedAddr uint32
	claimed := false

	switch {
	case opts.EmulateDumper:
		if err := o.Core.Halt(); err != nil {
			return err
		}

		if err := o.writeStockDump(opts, task); err != nil {
			o.Core.Run()
			return err
		}

		addr, err := o.writeEmulatedArea(headers, task)
		if err != nil {
			o.Core.Run()
			return err
		}
		claimedAddr, claimed = addr, true

		if err := o.Core.Run(); err != nil {
			return err
		}

	case !skipInit:
		if opts.ForceManualInitiation {
			if err := o.Core.Halt(); err != nil {
				return err
			}
			return o.forceManualInitiation(headers)
		}

		if err := a.TakeDump(); err != nil {
			return err
		}
	}

	var selector dumpreader.AreaSelector
	switch {
	case opts.Area != nil:
		idx := *opts.Area
		selector = dumpreader.AreaSelector{Index: &idx}
	case claimed && task != nil:
		selector = dumpreader.AreaSelector{Address: &claimedAddr}
	default:
		selector = dumpreader.AreaSelector{WholeSystem: true}
	}

	return o.readBack(a, selector, task, started, opts)
}

// readBack pulls the logical dump named by selector into a fresh
// VirtualCore and hands it to the ELF writer. It is the single convergence
// point every branch of viaAgent reaches once the device side of the
// acquisition is done.
func (o *Orchestrator) readBack(a agent.Agent, selector dumpreader.AreaSelector, task *archive.Task, started time.Time, opts config.Options) error {
	regions, flashBlob, err := o.Archive.FlashMap()
	if err != nil {
		return err
	}

	vcore, err := virtualcore.New(flashBlob, regions)
	if err != nil {
		return err
	}

	readTask, err := a.ReadDumpFull(selector, vcore)
	if err != nil {
		return err
	}

	outTask := task
	if outTask == nil && readTask != nil {
		outTask = &archive.Task{ID: readTask.ID}
	}

	// Whole-system read-backs leave the ring in a state a following task
	// dump would append to; re-initializing gives the next run a clean
	// slate. Task-dump selections never re-initialize.
	if readTask == nil && !opts.RetainState {
		if err := a.InitializeDump(); err != nil {
			return err
		}
	}

	return o.Writer.Dump(vcore, outTask, opts.Dumpfile, &started)
}

// simulate implements the simulate_dumper branch: read RAM directly off the
// target rather than through the agent protocol at all.
func (o *Orchestrator) simulate(opts config.Options, task *archive.Task) error {
	if err := o.Core.Halt(); err != nil {
		return err
	}

	if err := o.writeStockDump(opts, task); err != nil {
		o.Core.Run()
		return err
	}

	if task != nil {
		current, err := o.Archive.CurrentTask(o.Core)
		if err != nil {
			o.Core.Run()
			return err
		}
		if current.ID == task.ID {
			o.Core.Run()
			return curated.Errorf(ErrRunningTask, task.ID)
		}
	}

	started := o.now()
	vcore, err := o.captureDirect(task)

	if opts.LeaveHalted {
		if err != nil {
			return err
		}
	} else if runErr := o.Core.Run(); err == nil {
		err = runErr
	}
	if err != nil {
		return err
	}

	return o.Writer.Dump(vcore, task, opts.Dumpfile, &started)
}

// captureDirect builds a VirtualCore from the target's present RAM
// contents, sanity-checking the LZSS round trip over each chunk the way
// the device's own encoder would be exercised. The core must already be
// halted.
func (o *Orchestrator) captureDirect(task *archive.Task) (*virtualcore.Core, error) {
	regions, flashBlob, err := o.Archive.FlashMap()
	if err != nil {
		return nil, err
	}

	vcore, err := virtualcore.New(flashBlob, regions)
	if err != nil {
		return nil, err
	}

	if task == nil {
		for id := uint16(0); id < numRegisters; id++ {
			v, err := o.Core.ReadReg(id)
			if err != nil {
				return nil, err
			}
			vcore.SetRegister(id, v)
		}
	}

	segments, err := o.Archive.DumpSegments(o.Core, task)
	if err != nil {
		return nil, err
	}

	for _, seg := range segments {
		data := make([]byte, seg.Length)
		if err := readBytes(o.Core, seg.Base, data); err != nil {
			return nil, err
		}

		for off := uint32(0); off < seg.Length; off += chunkSize {
			end := off + chunkSize
			if end > seg.Length {
				end = seg.Length
			}
			if err := verifyChunk(seg.Base+off, data[off:end]); err != nil {
				return nil, err
			}
		}

		if err := vcore.InsertRAM(seg.Base, data); err != nil {
			return nil, err
		}
	}

	return vcore, nil
}

// verifyChunk runs a chunk through the same compress/decompress pair the
// device encoder would, failing loudly on any mismatch rather than
// silently trusting a read that was never actually exercised through the
// wire format.
func verifyChunk(addr uint32, chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	compressed, err := dumpformat.CompressInPlace(chunk)
	if err != nil {
		return curated.Errorf(ErrCompressionOverflow, addr)
	}

	decoded, err := dumpformat.Decompress(compressed, len(chunk))
	if err != nil {
		return err
	}
	if !bytes.Equal(decoded, chunk) {
		return curated.Errorf(ErrRoundTripMismatch, addr)
	}

	logger.Logf(logger.Allow, "acquire", "chunk at %#08x: %d -> %d bytes", addr, len(chunk), len(compressed))
	return nil
}

// writeStockDump emits a baseline dump of the target's present state to
// the stock dumpfile path, when one was requested alongside a simulate
// or emulate run. It gives the operator a known-good dump of the same
// halted state the simulated/emulated dumper is about to process, so the
// two can be compared afterwards. The core must already be halted.
func (o *Orchestrator) writeStockDump(opts config.Options, task *archive.Task) error {
	if opts.StockDumpfile == "" {
		return nil
	}

	stock, err := o.captureDirect(task)
	if err != nil {
		return err
	}

	return o.Writer.Dump(stock, task, opts.StockDumpfile, nil)
}

// writeEmulatedArea has the host stand in for the on-device dumper: with
// a task, it claims the first free area and marks it SingleTask; without
// one, it overwrites area 0 in place as a fresh whole-system dump (the
// same target a take_dump would have written). Either way it returns the
// area's base address. The core must already be halted.
func (o *Orchestrator) writeEmulatedArea(headers []dumpreader.HeaderEntry, task *archive.Task) (uint32, error) {
	var claim dumpreader.HeaderEntry
	contents := dumpformat.ContentsWholeSystem

	if task != nil {
		var err error
		claim, err = claimTaskArea(headers)
		if err != nil {
			return 0, err
		}
		contents = dumpformat.ContentsSingleTask
	} else {
		if len(headers) == 0 {
			return 0, curated.Errorf(ErrNoFreeArea)
		}
		claim = headers[0]
	}

	segments, err := o.Archive.DumpSegments(o.Core, task)
	if err != nil {
		return 0, err
	}

	body := dumpformat.PutSegmentHeaders(toSegmentHeaders(segments))

	if task != nil {
		ticks, err := o.Archive.Ticks(o.Core)
		if err != nil {
			return 0, err
		}
		body = append(body, dumpformat.PutTaskSegment(task.ID, ticks)...)
	}

	for id := uint16(0); id < numRegisters; id++ {
		v, err := o.Core.ReadReg(id)
		if err != nil {
			return 0, err
		}
		body = append(body, dumpformat.PutRegisterSegment(id, v)...)
	}

	compressedTotal := 0
	for _, seg := range segments {
		data := make([]byte, seg.Length)
		if err := readBytes(o.Core, seg.Base, data); err != nil {
			return 0, err
		}

		rec, err := dumpformat.PutDataSegment(seg.Base, data)
		if err != nil {
			return 0, curated.Errorf(ErrCompressionOverflow, seg.Base)
		}
		compressedTotal += len(rec)
		body = append(body, rec...)
	}

	header := dumpformat.AreaHeader{
		Address:   claim.Header.Address,
		Length:    claim.Header.Length,
		Written:   uint32(dumpformat.HeaderSize + len(body)),
		Dumper:    dumpformat.DumperEmulated,
		Contents:  contents,
		NSegments: uint16(len(segments)),
	}
	area := append(dumpformat.PutAreaHeader(header), body...)

	if err := writeAreaBytes(o.Core, header.Address, area); err != nil {
		return 0, err
	}

	logger.Logf(logger.Allow, "acquire", "emulated dump at %#08x: %d bytes compressed", header.Address, compressedTotal)

	return header.Address, nil
}

func claimTaskArea(headers []dumpreader.HeaderEntry) (dumpreader.HeaderEntry, error) {
	for _, h := range headers {
		if h.Header.Dumper == dumpformat.DumperNone {
			return h, nil
		}
	}
	return dumpreader.HeaderEntry{}, curated.Errorf(ErrNoFreeArea)
}

func toSegmentHeaders(regions []virtualcore.FlashRegion) []dumpformat.SegmentHeader {
	out := make([]dumpformat.SegmentHeader, len(regions))
	for i, r := range regions {
		out[i] = dumpformat.SegmentHeader{Address: r.Base, Length: r.Length}
	}
	return out
}

func toAgentSegments(regions []virtualcore.FlashRegion) []agent.Segment {
	out := make([]agent.Segment, len(regions))
	for i, r := range regions {
		out[i] = agent.Segment{Address: r.Base, Length: r.Length}
	}
	return out
}

func readBytes(core debugcore.Core, base uint32, out []byte) error {
	for i := range out {
		b, err := core.Read8(base + uint32(i))
		if err != nil {
			return err
		}
		out[i] = b
	}
	return nil
}

func writeAreaBytes(core debugcore.Core, base uint32, data []byte) error {
	for i, b := range data {
		if err := core.Write8(base+uint32(i), b); err != nil {
			return err
		}
	}
	return nil
}

// forceManualInitiation prints the first area's base address with
// instructions for an out-of-band operator and waits for acknowledgement
// before returning - deliberately without taking a dump or resuming the
// core, leaving it halted and ready for the operator's own tooling. The
// core must already be halted.
func (o *Orchestrator) forceManualInitiation(headers []dumpreader.HeaderEntry) error {
	var base uint32
	if len(headers) > 0 {
		base = headers[0].Header.Address
	}

	w := o.output()
	fmt.Fprintf(w, "dump area base address: %#08x\n", base)
	fmt.Fprintln(w, "invoke the dumper out of band now, then press any key to continue")

	return o.acknowledge()
}
