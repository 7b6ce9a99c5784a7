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

// Package config describes the mode-flag bundle the Acquisition
// Orchestrator consumes and validates its mutual-exclusion matrix.
// Parsing a command line into this bundle is the external front-end's
// job; this package only owns the struct shape and Validate - a plain,
// explicit bundle rather than a struct tag/reflection-driven validator.
package config

import "github.com/rtos-tools/dumpcore/curated"

// DefaultTimeoutMS is the default per-call transport timeout.
const DefaultTimeoutMS = 20000

// Options mirrors the CLI mode flags.
type Options struct {
	TimeoutMS uint32

	List                  bool
	DumpAgentStatus       bool
	ForceDumpAgent        bool
	ForceHiffyAgent       bool
	ForceManualInitiation bool
	ForceRead             bool
	InitializeDumpAgent   bool
	RetainState           bool
	ForceOverwrite        bool
	SimulateDumper        bool
	EmulateDumper         bool
	StockDumpfile         string
	Task                  string
	Area                  *uint32
	LeaveHalted           bool
	Dumpfile              string
}

// NewOptions returns an Options value with TimeoutMS defaulted, the way a
// front end would before applying any user-supplied flags.
func NewOptions() Options {
	return Options{TimeoutMS: DefaultTimeoutMS}
}

// error patterns raised by this package.
const (
	ErrRequires = "config: %s requires %s"
	ErrConflict = "config: %s conflicts with %s"
)

// Validate implements the mutual-exclusion matrix:
//
//	simulation ∈ {simulate, emulate} requires force_dump_agent
//	stock_dumpfile requires simulation and conflicts with task
//	area conflicts with task, simulation, list
//	retain_state conflicts with task, list, area
//	force_overwrite conflicts with initialize_dump_agent and simulate_dumper
func Validate(o Options) error {
	simulation := o.SimulateDumper || o.EmulateDumper

	if simulation && !o.ForceDumpAgent {
		return curated.Errorf(ErrRequires, "simulate_dumper/emulate_dumper", "force_dump_agent")
	}

	if o.StockDumpfile != "" {
		if !simulation {
			return curated.Errorf(ErrRequires, "stock_dumpfile", "simulate_dumper or emulate_dumper")
		}
		if o.Task != "" {
			return curated.Errorf(ErrConflict, "stock_dumpfile", "task")
		}
	}

	if o.Area != nil {
		if o.Task != "" {
			return curated.Errorf(ErrConflict, "area", "task")
		}
		if simulation {
			return curated.Errorf(ErrConflict, "area", "simulate_dumper/emulate_dumper")
		}
		if o.List {
			return curated.Errorf(ErrConflict, "area", "list")
		}
	}

	if o.RetainState {
		if o.Task != "" {
			return curated.Errorf(ErrConflict, "retain_state", "task")
		}
		if o.List {
			return curated.Errorf(ErrConflict, "retain_state", "list")
		}
		if o.Area != nil {
			return curated.Errorf(ErrConflict, "retain_state", "area")
		}
	}

	if o.ForceOverwrite {
		if o.InitializeDumpAgent {
			return curated.Errorf(ErrConflict, "force_overwrite", "initialize_dump_agent")
		}
		if o.SimulateDumper {
			return curated.Errorf(ErrConflict, "force_overwrite", "simulate_dumper")
		}
	}

	return nil
}
