// Package flags defines the packed 6502 status register (P) and the
// handful of helpers every instruction family needs to update it.
package flags

// Bit positions of the packed status byte, MSB to LSB.
const (
	Negative  = uint8(0x80) // N
	Overflow  = uint8(0x40) // V
	B2        = uint8(0x20) // Unused/break-high, set together with B1 by BRK.
	B1        = uint8(0x10) // Break-low, set by BRK, clear on hardware IRQ/NMI.
	Decimal   = uint8(0x08) // D
	Interrupt = uint8(0x04) // I
	Zero      = uint8(0x02) // Z
	Carry     = uint8(0x01) // C
)

// Flags holds the eight independent boolean fields of the status register.
// The B1/B2 pair only has an observable effect when P is pushed to the
// stack; execution never branches on them directly.
type Flags struct {
	N  bool
	V  bool
	B2 bool
	B1 bool
	D  bool
	I  bool
	Z  bool
	C  bool
}

// New returns an all-clear Flags value, matching the power-on state of P.
func New() Flags {
	return Flags{}
}

// ToByte packs f into the wire format pushed to the stack by PHP/BRK/IRQ.
func (f Flags) ToByte() uint8 {
	var b uint8
	if f.N {
		b |= Negative
	}
	if f.V {
		b |= Overflow
	}
	if f.B2 {
		b |= B2
	}
	if f.B1 {
		b |= B1
	}
	if f.D {
		b |= Decimal
	}
	if f.I {
		b |= Interrupt
	}
	if f.Z {
		b |= Zero
	}
	if f.C {
		b |= Carry
	}
	return b
}

// FromByte unpacks a status byte (as popped by PLP/RTI or loaded fresh)
// into a Flags value. FromByte(f.ToByte()) always reproduces f and
// ToByte(FromByte(b)) always reproduces b.
func FromByte(b uint8) Flags {
	return Flags{
		N:  b&Negative != 0,
		V:  b&Overflow != 0,
		B2: b&B2 != 0,
		B1: b&B1 != 0,
		D:  b&Decimal != 0,
		I:  b&Interrupt != 0,
		Z:  b&Zero != 0,
		C:  b&Carry != 0,
	}
}

// SetBreaks forces B1 and B2 true, as BRK does before pushing P.
func (f *Flags) SetBreaks() {
	f.B1 = true
	f.B2 = true
}

// ResetBreaks clears B1 and B2, as a hardware IRQ/NMI does before pushing P.
func (f *Flags) ResetBreaks() {
	f.B1 = false
	f.B2 = false
}

// SetForCompare implements the CMP/CPX/CPY flag update: C is set when reg
// is at least operand, Z when they're equal, N when reg is less than
// operand. All other flags are left untouched.
func (f *Flags) SetForCompare(reg, operand uint8) {
	f.C = reg >= operand
	f.Z = reg == operand
	f.N = reg < operand
}

// SetZN sets Z and N from the 8-bit result of a load/transfer/arithmetic
// operation, the update almost every instruction family performs.
func (f *Flags) SetZN(result uint8) {
	f.Z = result == 0
	f.N = result&Negative != 0
}
