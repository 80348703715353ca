// Package disasm defines the disassembler-backend collaborator
// interface named in spec §6. CFG/callgraph analysis and instruction
// decoding are explicitly out of scope for this engine; the interface
// exists so entry-point probing call sites have something concrete to
// depend on without pulling in a real disassembler.
package disasm

import "github.com/greyhatlabs/triage/internal/types"

// Instruction is the minimal decode result a backend can report.
type Instruction struct {
	Mnemonic string
	Length   int
}

// Backend decodes a single instruction at the start of code, or
// reports ok=false when it can't (unsupported arch, truncated input,
// or the backend declining for any other reason).
type Backend interface {
	DecodeOne(arch types.Arch, endianness types.Endianness, code []byte) (Instruction, bool)
}

// Unavailable is the default Backend: it never decodes anything. Wire a
// real backend in where entry-point probing is needed; the triage
// pipeline itself never requires one.
type Unavailable struct{}

func (Unavailable) DecodeOne(types.Arch, types.Endianness, []byte) (Instruction, bool) {
	return Instruction{}, false
}
