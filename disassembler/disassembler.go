// Package disassembler renders a single instruction at a given address as
// a human-readable mnemonic line, sharing the decode table cpu uses so
// the two never disagree about what a byte means.
package disassembler

import (
	"fmt"

	"github.com/mchacon6502/core6502/decoder"
	"github.com/mchacon6502/core6502/memory"
)

// Step decodes the instruction at pc and returns its text form along with
// the number of bytes it occupies (1 to 3). An illegal opcode is rendered
// as a raw byte value with a length of 1 so a caller can keep scanning.
func Step(pc uint16, r memory.Bank) (string, int) {
	op := r.Read(pc)
	entry, ok := decoder.Decode(op)
	if !ok {
		return fmt.Sprintf(".byte $%.2X", op), 1
	}

	operandBytes := entry.Mode.OperandBytes()
	switch operandBytes {
	case 0:
		return entry.Mnem.String(), 1
	case 1:
		arg := r.Read(pc + 1)
		return fmt.Sprintf("%s %s", entry.Mnem, formatOperand(entry.Mode, arg)), 2
	case 2:
		lo := r.Read(pc + 1)
		hi := r.Read(pc + 2)
		addr := uint16(hi)<<8 | uint16(lo)
		return fmt.Sprintf("%s %s", entry.Mnem, formatAddr(entry.Mode, addr)), 3
	}
	return fmt.Sprintf(".byte $%.2X", op), 1
}

func formatOperand(mode decoder.AddressMode, v uint8) string {
	switch mode {
	case decoder.Immediate:
		return fmt.Sprintf("#$%.2X", v)
	case decoder.ZeroPage:
		return fmt.Sprintf("$%.2X", v)
	case decoder.ZeroPageX:
		return fmt.Sprintf("$%.2X,X", v)
	case decoder.ZeroPageY:
		return fmt.Sprintf("$%.2X,Y", v)
	case decoder.IndirectX:
		return fmt.Sprintf("($%.2X,X)", v)
	case decoder.IndirectY:
		return fmt.Sprintf("($%.2X),Y", v)
	case decoder.Relative:
		return fmt.Sprintf("%+d", int8(v))
	default:
		return fmt.Sprintf("$%.2X", v)
	}
}

func formatAddr(mode decoder.AddressMode, addr uint16) string {
	switch mode {
	case decoder.AbsoluteX:
		return fmt.Sprintf("$%.4X,X", addr)
	case decoder.AbsoluteY:
		return fmt.Sprintf("$%.4X,Y", addr)
	case decoder.Indirect:
		return fmt.Sprintf("($%.4X)", addr)
	default:
		return fmt.Sprintf("$%.4X", addr)
	}
}

// Line is one disassembled instruction and the address it started at.
type Line struct {
	Addr uint16
	Text string
}

// Listing walks r starting at pc for count instructions, handling
// variable-length encoding by advancing each line's own byte count.
func Listing(pc uint16, r memory.Bank, count int) []Line {
	lines := make([]Line, 0, count)
	addr := pc
	for i := 0; i < count; i++ {
		text, n := Step(addr, r)
		lines = append(lines, Line{Addr: addr, Text: text})
		addr += uint16(n)
	}
	return lines
}
