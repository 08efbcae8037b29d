// Package cpu implements the 6502 execution engine: a register file, a
// flat-memory-backed address space, and a Step function that decodes and
// executes exactly one instruction per call. Step is the only suspension
// boundary a host ever sees; there is no sub-instruction cycle
// interleaving (see spec's Non-goals on cycle-accurate timing).
package cpu

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/mchacon6502/core6502/decoder"
	"github.com/mchacon6502/core6502/flags"
	"github.com/mchacon6502/core6502/memory"
)

// Vector addresses 6502 hardware reads to load PC on NMI/reset/IRQ-BRK.
const (
	NMIVector   = uint16(0xFFFA)
	ResetVector = uint16(0xFFFC)
	IRQVector   = uint16(0xFFFE) // Also the BRK vector; the core only uses this one.
)

// IllegalOpcode is returned by Step when the fetched byte has no entry in
// decoder's table. It is fatal: the state at the failure point (PC
// already advanced past the opcode byte, stack untouched) is left visible
// for post-mortem.
type IllegalOpcode struct {
	Opcode uint8
	PC     uint16 // Address the opcode byte was fetched from.
}

// Error implements error.
func (e IllegalOpcode) Error() string {
	return fmt.Sprintf("illegal opcode 0x%.2X at PC 0x%.4X", e.Opcode, e.PC)
}

// InvalidAddressingMode indicates an internal bug: a handler asked for an
// effective address in a mode that has none (Immediate/Relative/Implied
// are resolved by the caller, not by addrFor). A decoder table entry
// pairing a mnemonic with one of these modes is a decoder/handler
// mismatch and should never occur for a legal opcode.
type InvalidAddressingMode struct {
	Mode decoder.AddressMode
	Mnem decoder.Mnemonic
}

// Error implements error.
func (e InvalidAddressingMode) Error() string {
	return fmt.Sprintf("invalid addressing mode %s for %s", e.Mode, e.Mnem)
}

// Chip is a single 6502 register file plus the address space it's wired
// to. The zero value is not useful; construct with New.
type Chip struct {
	A  uint8       // Accumulator
	X  uint8       // Index register X
	Y  uint8       // Index register Y
	S  uint8       // Stack pointer, low byte of an address in page 1
	P  flags.Flags // Packed status register, unpacked for field access
	PC uint16      // Program counter

	ram memory.Bank

	lastCycles int
	halted     bool
	haltOpcode uint8
	haltErr    error
}

// New returns a Chip wired to ram, in the power-on state: A=X=Y=0, P
// all-clear, PC=0, S=0xFF. The caller is responsible for loading a
// program and either setting PC directly or calling Reset to pull PC
// from the reset vector.
func New(ram memory.Bank) *Chip {
	return &Chip{
		ram: ram,
		S:   0xFF,
	}
}

// Snapshot is a Plain-Old-Data copy of a Chip's register state, usable
// for checkpoint/restore (e.g. the monitor's undo stack).
type Snapshot struct {
	A, X, Y, S uint8
	P          flags.Flags
	PC         uint16
}

// Snapshot captures the current register state.
func (p *Chip) Snapshot() Snapshot {
	return Snapshot{A: p.A, X: p.X, Y: p.Y, S: p.S, P: p.P, PC: p.PC}
}

// RestoreSnapshot puts the Chip back into a previously captured state.
// The address space itself is not part of the snapshot.
func (p *Chip) RestoreSnapshot(s Snapshot) {
	p.A, p.X, p.Y, p.S, p.P, p.PC = s.A, s.X, s.Y, s.S, s.P, s.PC
	p.halted = false
	p.haltOpcode = 0
	p.haltErr = nil
}

// Cycles returns the cycle cost of the most recently executed
// instruction, including any page-crossing or branch-taken adjustment.
// Zero before the first Step.
func (p *Chip) Cycles() int {
	return p.lastCycles
}

// Halted reports whether the Chip has stopped due to a fatal error.
func (p *Chip) Halted() bool {
	return p.halted
}

// DebugDump renders the Chip's full state for diagnostics.
func (p *Chip) DebugDump() string {
	return spew.Sdump(p)
}

// Reset mimics the 6502 reset sequence: interrupts are disabled, the
// stack pointer moves down 3 bytes as if PC/P had been pushed (though
// nothing is actually written), and PC is loaded from the reset vector.
// A/X/Y and the other flags are left untouched.
func (p *Chip) Reset() {
	p.S -= 3
	p.P.I = true
	p.halted = false
	p.haltOpcode = 0
	p.haltErr = nil
	lo := p.ram.Read(ResetVector)
	hi := p.ram.Read(ResetVector + 1)
	p.PC = uint16(hi)<<8 | uint16(lo)
}

// Step decodes and fully executes one instruction, returning an error
// (IllegalOpcode or InvalidAddressingMode) if the chip halts. Once
// halted, further Step calls keep returning the same error.
func (p *Chip) Step() error {
	if p.halted {
		return p.haltErr
	}
	opPC := p.PC
	op := p.fetch()
	entry, ok := decoder.Decode(op)
	if !ok {
		err := IllegalOpcode{Opcode: op, PC: opPC}
		p.halt(op, err)
		return err
	}
	extra, err := p.execute(entry)
	if err != nil {
		p.halt(op, err)
		return err
	}
	p.lastCycles = entry.Cycles + extra
	return nil
}

func (p *Chip) halt(op uint8, err error) {
	p.halted = true
	p.haltOpcode = op
	p.haltErr = err
}

// fetch reads the byte at PC and advances PC by one.
func (p *Chip) fetch() uint8 {
	v := p.ram.Read(p.PC)
	p.PC++
	return v
}

// fetch16 reads a little-endian 16-bit value starting at PC, low byte
// first, advancing PC by two.
func (p *Chip) fetch16() uint16 {
	lo := p.fetch()
	hi := p.fetch()
	return uint16(hi)<<8 | uint16(lo)
}

// push writes val to the stack page at S and decrements S (with 8-bit
// wrap).
func (p *Chip) push(val uint8) {
	p.ram.Write(0x0100+uint16(p.S), val)
	p.S--
}

// pop increments S (with 8-bit wrap) and returns the byte now on top.
func (p *Chip) pop() uint8 {
	p.S++
	return p.ram.Read(0x0100 + uint16(p.S))
}

// peek returns the most-recently-pushed byte without changing S.
func (p *Chip) peek() uint8 {
	return p.ram.Read(0x0100 + uint16(uint8(p.S+1)))
}

// addrFor resolves the effective address for addressing modes that have
// one. Immediate, Relative, and Implied are resolved by their callers
// (loadOperand, branch, and the accumulator/no-operand handlers
// respectively) since they don't produce a memory address in the usual
// sense. crossed reports whether adding an index register crossed a page
// boundary, used by loadOperand to charge the extra read cycle real
// hardware takes in that case.
func (p *Chip) addrFor(mode decoder.AddressMode) (addr uint16, crossed bool, err error) {
	switch mode {
	case decoder.ZeroPage:
		return uint16(p.fetch()), false, nil
	case decoder.ZeroPageX:
		return uint16(p.fetch() + p.X), false, nil
	case decoder.ZeroPageY:
		return uint16(p.fetch() + p.Y), false, nil
	case decoder.Absolute:
		return p.fetch16(), false, nil
	case decoder.AbsoluteX:
		base := p.fetch16()
		a := base + uint16(p.X)
		return a, (base & 0xFF00) != (a & 0xFF00), nil
	case decoder.AbsoluteY:
		base := p.fetch16()
		a := base + uint16(p.Y)
		return a, (base & 0xFF00) != (a & 0xFF00), nil
	case decoder.Indirect:
		ptr := p.fetch16()
		lo := p.ram.Read(ptr)
		hi := p.ram.Read(ptr + 1)
		return uint16(hi)<<8 | uint16(lo), false, nil
	case decoder.IndirectX:
		zp := p.fetch() + p.X
		lo := p.ram.Read(uint16(zp))
		hi := p.ram.Read(uint16(zp + 1))
		return uint16(hi)<<8 | uint16(lo), false, nil
	case decoder.IndirectY:
		zp := p.fetch()
		lo := p.ram.Read(uint16(zp))
		hi := p.ram.Read(uint16(zp + 1))
		base := uint16(hi)<<8 | uint16(lo)
		a := base + uint16(p.Y)
		return a, (base & 0xFF00) != (a & 0xFF00), nil
	}
	return 0, false, InvalidAddressingMode{Mode: mode}
}

// loadOperand returns the value an instruction reads, fetching an
// Immediate byte directly or resolving an address and reading memory
// otherwise. extra is 1 if resolving the address crossed a page boundary
// (which only AbsoluteX/AbsoluteY/IndirectY can report).
func (p *Chip) loadOperand(mode decoder.AddressMode) (val uint8, extra int, err error) {
	if mode == decoder.Immediate {
		return p.fetch(), 0, nil
	}
	addr, crossed, err := p.addrFor(mode)
	if err != nil {
		return 0, 0, err
	}
	if crossed {
		extra = 1
	}
	return p.ram.Read(addr), extra, nil
}

// storeOperand resolves an address and writes val there. Flags are never
// touched by a store.
func (p *Chip) storeOperand(mode decoder.AddressMode, val uint8) error {
	addr, _, err := p.addrFor(mode)
	if err != nil {
		return err
	}
	p.ram.Write(addr, val)
	return nil
}

// execute dispatches entry to its handler and returns any cycle
// adjustment beyond the table's base cost.
func (p *Chip) execute(entry decoder.Entry) (extra int, err error) {
	switch entry.Mnem {
	case decoder.ADC:
		val, ex, err := p.loadOperand(entry.Mode)
		if err != nil {
			return 0, err
		}
		p.adc(val)
		return ex, nil
	case decoder.SBC:
		val, ex, err := p.loadOperand(entry.Mode)
		if err != nil {
			return 0, err
		}
		p.sbc(val)
		return ex, nil
	case decoder.AND:
		return p.logic(entry.Mode, func(a, m uint8) uint8 { return a & m })
	case decoder.ORA:
		return p.logic(entry.Mode, func(a, m uint8) uint8 { return a | m })
	case decoder.EOR:
		return p.logic(entry.Mode, func(a, m uint8) uint8 { return a ^ m })
	case decoder.ASL:
		return 0, p.shift(entry.Mode, true, false)
	case decoder.LSR:
		return 0, p.shift(entry.Mode, false, false)
	case decoder.ROL:
		return 0, p.shift(entry.Mode, true, true)
	case decoder.ROR:
		return 0, p.shift(entry.Mode, false, true)
	case decoder.BIT:
		val, _, err := p.loadOperand(entry.Mode)
		if err != nil {
			return 0, err
		}
		p.P.Z = (p.A & val) == 0
		p.P.N = val&0x80 != 0
		p.P.V = val&0x40 != 0
		return 0, nil
	case decoder.LDA:
		return p.load(entry.Mode, &p.A)
	case decoder.LDX:
		return p.load(entry.Mode, &p.X)
	case decoder.LDY:
		return p.load(entry.Mode, &p.Y)
	case decoder.STA:
		return 0, p.storeOperand(entry.Mode, p.A)
	case decoder.STX:
		return 0, p.storeOperand(entry.Mode, p.X)
	case decoder.STY:
		return 0, p.storeOperand(entry.Mode, p.Y)
	case decoder.TAX:
		p.X = p.A
		p.P.SetZN(p.X)
	case decoder.TAY:
		p.Y = p.A
		p.P.SetZN(p.Y)
	case decoder.TSX:
		p.X = p.S
		p.P.SetZN(p.X)
	case decoder.TXA:
		p.A = p.X
		p.P.SetZN(p.A)
	case decoder.TYA:
		p.A = p.Y
		p.P.SetZN(p.A)
	case decoder.TXS:
		p.S = p.X // Does not touch N/Z.
	case decoder.INC:
		return 0, p.bump(entry.Mode, 1)
	case decoder.DEC:
		return 0, p.bump(entry.Mode, ^uint8(0))
	case decoder.INX:
		p.X++
		p.P.SetZN(p.X)
	case decoder.DEX:
		p.X--
		p.P.SetZN(p.X)
	case decoder.INY:
		p.Y++
		p.P.SetZN(p.Y)
	case decoder.DEY:
		p.Y--
		p.P.SetZN(p.Y)
	case decoder.CMP:
		val, ex, err := p.loadOperand(entry.Mode)
		if err != nil {
			return 0, err
		}
		p.P.SetForCompare(p.A, val)
		return ex, nil
	case decoder.CPX:
		val, _, err := p.loadOperand(entry.Mode)
		if err != nil {
			return 0, err
		}
		p.P.SetForCompare(p.X, val)
	case decoder.CPY:
		val, _, err := p.loadOperand(entry.Mode)
		if err != nil {
			return 0, err
		}
		p.P.SetForCompare(p.Y, val)
	case decoder.BCC:
		return p.branch(!p.P.C)
	case decoder.BCS:
		return p.branch(p.P.C)
	case decoder.BEQ:
		return p.branch(p.P.Z)
	case decoder.BNE:
		return p.branch(!p.P.Z)
	case decoder.BMI:
		return p.branch(p.P.N)
	case decoder.BPL:
		return p.branch(!p.P.N)
	case decoder.BVC:
		return p.branch(!p.P.V)
	case decoder.BVS:
		return p.branch(p.P.V)
	case decoder.JMP:
		addr, _, err := p.addrFor(entry.Mode)
		if err != nil {
			return 0, err
		}
		p.PC = addr
	case decoder.JSR:
		return 0, p.jsr()
	case decoder.RTS:
		return 0, p.rts()
	case decoder.RTI:
		return 0, p.rti()
	case decoder.BRK:
		p.brk()
	case decoder.PHA:
		p.push(p.A)
	case decoder.PHP:
		p.push(p.P.ToByte())
	case decoder.PLA:
		p.A = p.pop()
		p.P.SetZN(p.A)
	case decoder.PLP:
		p.P = flags.FromByte(p.pop())
	case decoder.CLC:
		p.P.C = false
	case decoder.SEC:
		p.P.C = true
	case decoder.CLD:
		p.P.D = false
	case decoder.SED:
		p.P.D = true
	case decoder.CLI:
		p.P.I = false
	case decoder.SEI:
		p.P.I = true
	case decoder.CLV:
		p.P.V = false
	case decoder.NOP:
		// Consumes only its opcode byte.
	default:
		return 0, InvalidAddressingMode{Mode: entry.Mode, Mnem: entry.Mnem}
	}
	return 0, nil
}

// adc implements ADC's 9-bit sum and two's-complement overflow check.
func (p *Chip) adc(val uint8) {
	carry := uint16(0)
	if p.P.C {
		carry = 1
	}
	sum := uint16(p.A) + uint16(val) + carry
	result := uint8(sum)
	p.P.V = (p.A^result)&(val^result)&0x80 != 0
	p.P.C = sum > 0xFF
	p.A = result
	p.P.SetZN(result)
}

// sbc implements SBC as ADC of the ones' complement of the operand, which
// reproduces the documented borrow/overflow semantics without a second
// carry derivation. Decimal mode is intentionally unimplemented.
func (p *Chip) sbc(val uint8) {
	p.adc(^val)
}

func (p *Chip) logic(mode decoder.AddressMode, f func(a, m uint8) uint8) (int, error) {
	val, extra, err := p.loadOperand(mode)
	if err != nil {
		return 0, err
	}
	p.A = f(p.A, val)
	p.P.SetZN(p.A)
	return extra, nil
}

func (p *Chip) load(mode decoder.AddressMode, reg *uint8) (int, error) {
	val, extra, err := p.loadOperand(mode)
	if err != nil {
		return 0, err
	}
	*reg = val
	p.P.SetZN(val)
	return extra, nil
}

// shift implements ASL/LSR/ROL/ROR on either the accumulator (Implied
// mode) or a memory cell. left selects ASL/ROL vs LSR/ROR; rotate selects
// ROL/ROR (carry feeds in) vs ASL/LSR (zero feeds in).
func (p *Chip) shift(mode decoder.AddressMode, left, rotate bool) error {
	apply := func(in uint8) uint8 {
		var carryIn uint8
		if rotate && p.P.C {
			carryIn = 1
		}
		var out uint8
		var carryOut bool
		if left {
			carryOut = in&0x80 != 0
			out = in<<1 | carryIn
		} else {
			carryOut = in&0x01 != 0
			out = in>>1 | (carryIn << 7)
		}
		p.P.C = carryOut
		p.P.SetZN(out)
		return out
	}
	if mode == decoder.Implied {
		p.A = apply(p.A)
		return nil
	}
	addr, _, err := p.addrFor(mode)
	if err != nil {
		return err
	}
	p.ram.Write(addr, apply(p.ram.Read(addr)))
	return nil
}

func (p *Chip) bump(mode decoder.AddressMode, delta uint8) error {
	addr, _, err := p.addrFor(mode)
	if err != nil {
		return err
	}
	v := p.ram.Read(addr) + delta
	p.ram.Write(addr, v)
	p.P.SetZN(v)
	return nil
}

// branch reads the signed displacement byte and, if cond holds, adds its
// sign-extended value to PC.
func (p *Chip) branch(cond bool) (int, error) {
	disp := p.fetch()
	if !cond {
		return 0, nil
	}
	old := p.PC
	p.PC += uint16(int16(int8(disp)))
	extra := 1
	if (old & 0xFF00) != (p.PC & 0xFF00) {
		extra++
	}
	return extra, nil
}

// jsr pushes the return address (the address of the last byte of the JSR
// instruction, i.e. PC-1 after the target has been fetched) high byte
// first, then jumps to the target.
func (p *Chip) jsr() error {
	target, _, err := p.addrFor(decoder.Absolute)
	if err != nil {
		return err
	}
	ret := p.PC - 1
	p.push(uint8(ret >> 8))
	p.push(uint8(ret & 0xFF))
	p.PC = target
	return nil
}

// rts pops the return address low then high and resumes at addr+1.
func (p *Chip) rts() error {
	lo := p.pop()
	hi := p.pop()
	p.PC = (uint16(hi)<<8 | uint16(lo)) + 1
	return nil
}

// rti pops P, then PC low then high, with no +1 adjustment. Kept separate
// from rts since they differ in both the status pop and the
// return-address math.
func (p *Chip) rti() error {
	p.P = flags.FromByte(p.pop())
	lo := p.pop()
	hi := p.pop()
	p.PC = uint16(hi)<<8 | uint16(lo)
	return nil
}

// brk saves PC unchanged (already advanced past the opcode byte by
// fetch, with no further decrement the way JSR's return address gets
// one), pushes P with B1/B2 forced set, and loads PC from the BRK
// vector.
func (p *Chip) brk() {
	p.push(uint8(p.PC >> 8))
	p.push(uint8(p.PC & 0xFF))
	p.P.SetBreaks()
	p.push(p.P.ToByte())
	p.P.I = true
	lo := p.ram.Read(IRQVector)
	hi := p.ram.Read(IRQVector + 1)
	p.PC = uint16(hi)<<8 | uint16(lo)
}
