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

// Package hiffy implements the Agent Transport over the device's
// stack-machine interpreter (a small RPC substrate run across a debug
// probe): programs built from Push/Drop/Add/Label/BranchGreaterThan/Call/
// Done operations, batched so multiple read_dump windows travel in a
// single program, and a sleep loop inserted ahead of take_dump when the
// probe link will be severed by the dump.
package hiffy

// OpKind distinguishes the stack-machine operations. These are tagged
// variants, not a type hierarchy - a program is just a []Op.
type OpKind int

const (
	OpPush OpKind = iota
	OpDrop
	OpAdd
	OpLabel
	OpBranchGreaterThan
	OpCall
	OpDone
)

// Op is one stack-machine instruction. Only the fields relevant to Kind
// are meaningful. A Call pops its Arity arguments from the stack; its
// result goes to the return area, not the stack. BranchGreaterThan pops
// the limit from the top of the stack and branches back to its Label
// while the limit is greater than the value beneath it.
type Op struct {
	Kind OpKind

	Value  uint32 // OpPush
	Target int    // OpLabel, OpBranchGreaterThan
	Method uint32 // OpCall: the IDL-resolved function id
	Arity  int    // OpCall: number of stack args this call consumes
}

func Push(v uint32) Op                { return Op{Kind: OpPush, Value: v} }
func Drop() Op                        { return Op{Kind: OpDrop} }
func Add() Op                         { return Op{Kind: OpAdd} }
func Label(target int) Op             { return Op{Kind: OpLabel, Target: target} }
func BranchGreaterThan(target int) Op { return Op{Kind: OpBranchGreaterThan, Target: target} }
func Call(method uint32, arity int) Op {
	return Op{Kind: OpCall, Method: method, Arity: arity}
}
func Done() Op { return Op{Kind: OpDone} }

// Result is one Call's outcome: either a reply payload or an errno, per
// the interpreter's one Result<bytes, errno> per Call contract.
type Result struct {
	Value []byte
	Errno uint32
	Ok    bool
}

// Runner executes a program on the device and returns one Result per
// OpCall in program order. Implementations talk to a real debug probe;
// tests substitute a fake that evaluates the stack machine directly.
type Runner interface {
	Run(program []Op) ([]Result, error)
}

// sleepLoop builds the 100-iterations-of-100ms delay program emitted
// ahead of a probe-attached take_dump: an iteration counter on the
// stack, a loop label, a 100ms sleep call, an increment, and a branch
// back while the counter is still below the iteration limit. sleepFn is
// the IDL-resolved id of the Sleep(ms) function. It returns the ops and
// the number of sleep results the loop produces (used by the caller to
// compute which result slot belongs to the call that follows the loop).
func sleepLoop(sleepFn uint32) (ops []Op, calls int) {
	const ms = 100
	const iterations = 100

	ops = append(ops,
		Push(0), // iterations completed
		Label(0),
		Push(ms),
		Call(sleepFn, 1),
		Push(1),
		Add(),
		Push(iterations),
		BranchGreaterThan(0),
	)

	return ops, iterations
}
