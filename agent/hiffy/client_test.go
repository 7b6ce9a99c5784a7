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

package hiffy_test

import (
	"testing"

	"github.com/rtos-tools/dumpcore/agent/hiffy"
	"github.com/rtos-tools/dumpcore/archive"
	"github.com/rtos-tools/dumpcore/curated"
	"github.com/rtos-tools/dumpcore/debugcore"
	"github.com/rtos-tools/dumpcore/dumpformat"
	"github.com/rtos-tools/dumpcore/dumpreader"
	"github.com/rtos-tools/dumpcore/test"
	"github.com/rtos-tools/dumpcore/virtualcore"
)

const ErrUnknownIDL = "hiffytest: unknown idl method %q"

type fakeArchive struct {
	idl map[string]archive.IDLMethod
}

func newFakeArchive(rsize, rdataSize int) *fakeArchive {
	return &fakeArchive{idl: map[string]archive.IDLMethod{
		"DumpAgent.read_dump":        {Name: "DumpAgent.read_dump", ID: 4, ReplySize: rsize, RDataSize: rdataSize, ArgsSize: 8},
		"DumpAgent.initialize_dump":  {Name: "DumpAgent.initialize_dump", ID: 1},
		"DumpAgent.add_dump_segment": {Name: "DumpAgent.add_dump_segment", ID: 2, ArgsSize: 8},
		"DumpAgent.take_dump":        {Name: "DumpAgent.take_dump", ID: 3},
		"Sleep":                      {Name: "Sleep", ID: 9, ArgsSize: 4},
	}}
}

func (f *fakeArchive) FlashMap() ([]virtualcore.FlashRegion, []byte, error) { return nil, nil, nil }
func (f *fakeArchive) DumpSegments(core interface{}, task *archive.Task) ([]virtualcore.FlashRegion, error) {
	return nil, nil
}
func (f *fakeArchive) LookupTask(name string) (archive.Task, error)      { return archive.Task{}, nil }
func (f *fakeArchive) CurrentTask(core interface{}) (archive.Task, error) { return archive.Task{}, nil }
func (f *fakeArchive) Ticks(core interface{}) (uint64, error)            { return 0, nil }
func (f *fakeArchive) LookupIDL(method string) (archive.IDLMethod, error) {
	m, ok := f.idl[method]
	if !ok {
		return archive.IDLMethod{}, curated.Errorf(ErrUnknownIDL, method)
	}
	return m, nil
}
func (f *fakeArchive) DecodeAgentError(code uint32) (string, bool) { return "", false }

var _ archive.Archive = (*fakeArchive)(nil)

// fakeRunner is a real (if tiny) stack-machine interpreter: it honors
// Label/BranchGreaterThan looping so the 100-iteration sleep loop ahead
// of take_dump actually executes 100 times, the same as the device would, and
// counts invocations of Run (one Run call == one transport round trip).
// Call results for "read_dump"-shaped calls (arity 2: index, offset) are
// served from a table of canned per-area window bytes; all other calls
// (Sleep, initialize_dump, take_dump, add_dump_segment) just succeed.
type fakeRunner struct {
	areas [][]byte
	runs  int
}

func (r *fakeRunner) Run(ops []hiffy.Op) ([]hiffy.Result, error) {
	r.runs++

	labels := map[int]int{}
	for i, op := range ops {
		if op.Kind == hiffy.OpLabel {
			labels[op.Target] = i
		}
	}

	var results []hiffy.Result
	var stack []uint32

	pop := func() uint32 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}

	for pc := 0; pc < len(ops); pc++ {
		op := ops[pc]
		switch op.Kind {
		case hiffy.OpPush:
			stack = append(stack, op.Value)
		case hiffy.OpDrop:
			pop()
		case hiffy.OpAdd:
			b, a := pop(), pop()
			stack = append(stack, a+b)
		case hiffy.OpLabel:
			// marker only
		case hiffy.OpBranchGreaterThan:
			limit := pop()
			if limit > stack[len(stack)-1] {
				pc = labels[op.Target]
			}
		case hiffy.OpCall:
			args := make([]uint32, op.Arity)
			for i := op.Arity - 1; i >= 0; i-- {
				args[i] = pop()
			}
			if op.Arity == 2 {
				index, offset := args[0], args[1]
				if int(index) < len(r.areas) {
					buf := r.areas[index]
					if int(offset) > len(buf) {
						offset = uint32(len(buf))
					}
					results = append(results, hiffy.Result{Ok: true, Value: buf[offset:]})
				} else {
					results = append(results, hiffy.Result{Ok: false, Errno: 1})
				}
			} else {
				results = append(results, hiffy.Result{Ok: true})
			}
		case hiffy.OpDone:
		}
	}

	return results, nil
}

func wholeSystemArea(dumper dumpformat.Dumper) []byte {
	h := dumpformat.AreaHeader{Dumper: dumper, Contents: dumpformat.ContentsWholeSystem}
	return dumpformat.PutAreaHeader(h)
}

func TestReadHeadersBatchesIntoFewRoundTrips(t *testing.T) {
	// rsize chosen so rdata_size/rsize - 1 == 2, i.e. chunksize 2.
	a := newFakeArchive(256, 768) // chunksize = 768/256 - 1 = 2

	areas := [][]byte{
		wholeSystemArea(dumpformat.DumperEmulated),
		wholeSystemArea(dumpformat.DumperEmulated),
		wholeSystemArea(dumpformat.DumperEmulated),
		wholeSystemArea(dumpformat.DumperEmulated),
		wholeSystemArea(dumpformat.DumperEmulated),
		wholeSystemArea(dumpformat.DumperNone),
	}
	runner := &fakeRunner{areas: areas}

	c, err := hiffy.NewClient(a, nil, runner)
	test.ExpectSuccess(t, err)

	entries, err := c.ReadDumpHeaders(false)
	test.ExpectSuccess(t, err)
	test.Equate(t, len(entries), 5)

	// 5 live areas (plus the stopping NONE) at chunksize 2 -> ceil(6/2) = 3
	test.Equate(t, runner.runs, 3)
}

// TestHeaderPassThenFullReadSameClient drives the same client through a
// raw header enumeration (which runs off the end of the ring) and then a
// full dump read. Reaching the end of the ring must only mark where the
// ring ends - it must not make later reads of valid, lower indices
// report InvalidArea.
func TestHeaderPassThenFullReadSameClient(t *testing.T) {
	a := newFakeArchive(256, 768)

	plain := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	data, err := dumpformat.PutDataSegment(0x2000_0000, plain)
	test.ExpectSuccess(t, err)

	area0 := dumpformat.PutAreaHeader(dumpformat.AreaHeader{
		Written:  uint32(dumpformat.HeaderSize + len(data)),
		Dumper:   dumpformat.DumperAgent,
		Contents: dumpformat.ContentsWholeSystem,
	})
	area0 = append(area0, data...)

	runner := &fakeRunner{areas: [][]byte{area0}}
	c, err := hiffy.NewClient(a, nil, runner)
	test.ExpectSuccess(t, err)

	entries, err := c.ReadDumpHeaders(true)
	test.ExpectSuccess(t, err)
	test.Equate(t, len(entries), 1)

	vcore, err := virtualcore.New(nil, nil)
	test.ExpectSuccess(t, err)

	task, err := c.ReadDumpFull(dumpreader.AreaSelector{WholeSystem: true}, vcore)
	test.ExpectSuccess(t, err)
	test.Equate(t, task == nil, true)

	got := make([]byte, len(plain))
	test.ExpectSuccess(t, vcore.Read(0x2000_0000, got))
	test.Equate(t, got, plain)
}

func TestConstructionSanityGateRejectsSmallRSize(t *testing.T) {
	a := newFakeArchive(4, 64) // below the rsize sanity floor
	_, err := hiffy.NewClient(a, nil, &fakeRunner{})
	test.ExpectFailure(t, err)
}

func TestTakeDumpProbeAttachedRunsHundredSleeps(t *testing.T) {
	a := newFakeArchive(256, 1024)
	runner := &fakeRunner{areas: [][]byte{wholeSystemArea(dumpformat.DumperNone)}}
	core := debugcore.NewFake(0, nil, false)

	c, err := hiffy.NewClient(a, core, runner)
	test.ExpectSuccess(t, err)

	test.ExpectSuccess(t, c.TakeDump())
}

func TestTakeDumpNetworkSkipsSleepLoop(t *testing.T) {
	a := newFakeArchive(256, 1024)
	runner := &fakeRunner{areas: [][]byte{wholeSystemArea(dumpformat.DumperNone)}}
	core := debugcore.NewFake(0, nil, true)

	c, err := hiffy.NewClient(a, core, runner)
	test.ExpectSuccess(t, err)

	test.ExpectSuccess(t, c.TakeDump())
	test.Equate(t, core.Timeout.Seconds(), 60.0)
}
