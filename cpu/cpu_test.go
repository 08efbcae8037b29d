package cpu

import (
	"testing"

	"github.com/go-test/deep"
	"github.com/mchacon6502/core6502/decoder"
	"github.com/mchacon6502/core6502/flags"
	"github.com/mchacon6502/core6502/memory"
	"github.com/stretchr/testify/assert"
)

func newChip() (*Chip, *memory.RAM) {
	ram := memory.New(nil)
	return New(ram), ram
}

func TestNewPowerOnState(t *testing.T) {
	c, _ := newChip()
	assert.Equal(t, uint8(0), c.A)
	assert.Equal(t, uint8(0), c.X)
	assert.Equal(t, uint8(0), c.Y)
	assert.Equal(t, uint8(0xFF), c.S)
	assert.Equal(t, uint16(0), c.PC)
	assert.Equal(t, flags.New(), c.P)
}

func TestReset(t *testing.T) {
	c, ram := newChip()
	ram.Write(ResetVector, 0x00)
	ram.Write(ResetVector+1, 0x80)
	c.Reset()
	assert.Equal(t, uint16(0x8000), c.PC)
	assert.True(t, c.P.I)
	assert.Equal(t, uint8(0xFC), c.S)
}

func TestADCBasic(t *testing.T) {
	c, ram := newChip()
	ram.Write(0, 0x69) // ADC #imm
	ram.Write(1, 23)
	c.A = 0
	require(t, c.Step())
	assert.Equal(t, uint8(23), c.A)
	assert.False(t, c.P.C)
	assert.False(t, c.P.Z)
	assert.False(t, c.P.N)
}

func TestADCSignedOverflow(t *testing.T) {
	c, ram := newChip()
	ram.Write(0, 0x69)
	ram.Write(1, 80)
	c.A = 80
	require(t, c.Step())
	assert.Equal(t, uint8(160), c.A)
	assert.True(t, c.P.V)
	assert.True(t, c.P.N)
	assert.False(t, c.P.C)
}

func TestADCCarryOut(t *testing.T) {
	c, ram := newChip()
	ram.Write(0, 0x69)
	ram.Write(1, 5)
	c.A = 255
	require(t, c.Step())
	assert.Equal(t, uint8(4), c.A)
	assert.True(t, c.P.C)
}

func TestADCConsumesIncomingCarry(t *testing.T) {
	c, ram := newChip()
	ram.Write(0, 0x69)
	ram.Write(1, 1)
	c.A = 1
	c.P.C = true
	require(t, c.Step())
	assert.Equal(t, uint8(3), c.A)
}

func TestSBCBorrow(t *testing.T) {
	c, ram := newChip()
	ram.Write(0, 0xE9) // SBC #imm
	ram.Write(1, 1)
	c.A = 0
	c.P.C = true // carry set means "no borrow" going in
	require(t, c.Step())
	assert.Equal(t, uint8(0xFF), c.A)
	assert.False(t, c.P.C) // borrow occurred
	assert.True(t, c.P.N)
}

func TestCMPGreater(t *testing.T) {
	c, ram := newChip()
	ram.Write(0, 0xC9) // CMP #imm
	ram.Write(1, 10)
	c.A = 12
	require(t, c.Step())
	assert.True(t, c.P.C)
	assert.False(t, c.P.Z)
	assert.False(t, c.P.N)
}

func TestBITZeroPage(t *testing.T) {
	c, ram := newChip()
	ram.Write(0, 0x24) // BIT zp
	ram.Write(1, 10)
	ram.Write(10, 0xF0)
	c.A = 0x0F
	require(t, c.Step())
	assert.Equal(t, uint8(0x0F), c.A)
	assert.True(t, c.P.Z)
	assert.True(t, c.P.V)
	assert.True(t, c.P.N)
}

func TestBRKPushesAndJumps(t *testing.T) {
	c, ram := newChip()
	ram.Write(IRQVector, 0x98)
	ram.Write(IRQVector+1, 0x45)
	c.PC = 0x3456
	ram.Write(0x3456, 0x00) // BRK
	c.P.C = true
	require(t, c.Step())
	assert.Equal(t, uint16(0x4598), c.PC)
	assert.True(t, c.P.B1)
	assert.True(t, c.P.B2)

	pushedHi := ram.Read(0x01FF)
	pushedLo := ram.Read(0x01FE)
	pushedP := ram.Read(0x01FD)
	assert.True(t, flags.FromByte(pushedP).C)
	assert.Equal(t, uint8(0x57), pushedLo)
	assert.Equal(t, uint8(0x34), pushedHi)
}

func TestJSRThenRTS(t *testing.T) {
	c, ram := newChip()
	c.PC = 0x0200
	ram.Write(0x0200, 0x20) // JSR $0300
	ram.Write(0x0201, 0x00)
	ram.Write(0x0202, 0x03)
	ram.Write(0x0300, 0x60) // RTS
	before := c.Snapshot()

	require(t, c.Step())
	assert.Equal(t, uint16(0x0300), c.PC)

	require(t, c.Step())
	assert.Equal(t, uint16(0x0203), c.PC)
	assert.Equal(t, before.S, c.S)
}

func TestBRKThenRTIRestoresState(t *testing.T) {
	c, ram := newChip()
	ram.Write(IRQVector, 0x00)
	ram.Write(IRQVector+1, 0x40)
	ram.Write(0x4000, 0x40) // RTI
	c.PC = 0x0200
	ram.Write(0x0200, 0x00) // BRK
	c.A = 0x42
	c.P.C = true
	c.P.Z = true
	before := c.Snapshot()

	require(t, c.Step()) // BRK
	assert.Equal(t, uint16(0x4000), c.PC)

	require(t, c.Step()) // RTI
	// RTI returns to the byte right after the BRK opcode, the PC value
	// BRK actually pushed (no further +1 the way RTS gets).
	assert.Equal(t, before.PC+1, c.PC)
	assert.Equal(t, before.S, c.S)

	// BRK forces B1/B2 set in the byte it pushes, so RTI restores them
	// set regardless of what they were before BRK. Compare everything
	// else and check B1/B2 separately.
	wantP := before.P
	wantP.B1, wantP.B2 = true, true
	if diff := deep.Equal(wantP, c.P); diff != nil {
		t.Errorf("status register not restored by RTI: %v", diff)
	}
}

func TestBranchSignExtendsBackward(t *testing.T) {
	c, ram := newChip()
	c.PC = 0x0210
	ram.Write(0x0210, 0xD0) // BNE
	ram.Write(0x0211, 0xFE) // -2
	c.P.Z = false
	require(t, c.Step())
	assert.Equal(t, uint16(0x0210), c.PC)
}

func TestBranchNotTakenAddsNoCycles(t *testing.T) {
	c, ram := newChip()
	ram.Write(0, 0xF0) // BEQ
	ram.Write(1, 0x10)
	c.P.Z = false
	require(t, c.Step())
	assert.Equal(t, uint16(2), c.PC)
	base, _ := decoder.Decode(0xF0)
	assert.Equal(t, base.Cycles, c.Cycles())
}

func TestIndirectXReadsTwoBytePointer(t *testing.T) {
	c, ram := newChip()
	ram.Write(0, 0xA1) // LDA (zp,X)
	ram.Write(1, 0x20)
	c.X = 4
	ram.Write(0x24, 0x00)
	ram.Write(0x25, 0x04)
	ram.Write(0x0400, 0x99)
	require(t, c.Step())
	assert.Equal(t, uint8(0x99), c.A)
}

func TestIndirectYAddsToResolvedAddress(t *testing.T) {
	c, ram := newChip()
	ram.Write(0, 0xB1) // LDA (zp),Y
	ram.Write(1, 0x20)
	ram.Write(0x20, 0x00)
	ram.Write(0x21, 0x04)
	c.Y = 0x10
	ram.Write(0x0410, 0x55)
	require(t, c.Step())
	assert.Equal(t, uint8(0x55), c.A)
}

func TestAbsoluteIsLittleEndian(t *testing.T) {
	c, ram := newChip()
	ram.Write(0, 0xAD) // LDA abs
	ram.Write(1, 0x00) // low byte
	ram.Write(2, 0x04) // high byte
	ram.Write(0x0400, 0x7A)
	require(t, c.Step())
	assert.Equal(t, uint8(0x7A), c.A)
}

func TestINCWraps(t *testing.T) {
	c, ram := newChip()
	ram.Write(0, 0xE6) // INC zp
	ram.Write(1, 0x10)
	ram.Write(0x10, 0xFF)
	require(t, c.Step())
	assert.Equal(t, uint8(0x00), ram.Read(0x10))
	assert.True(t, c.P.Z)
}

func TestDEXWraps(t *testing.T) {
	c, ram := newChip()
	ram.Write(0, 0xCA) // DEX
	c.X = 0
	require(t, c.Step())
	assert.Equal(t, uint8(0xFF), c.X)
	assert.True(t, c.P.N)
}

func TestPHAPLARoundTrip(t *testing.T) {
	c, ram := newChip()
	c.A = 0x77
	ram.Write(0, 0x48) // PHA
	ram.Write(1, 0x68) // PLA
	require(t, c.Step())
	c.A = 0
	require(t, c.Step())
	assert.Equal(t, uint8(0x77), c.A)
}

func TestPHPPLPRoundTrip(t *testing.T) {
	c, ram := newChip()
	ram.Write(0, 0x08) // PHP
	ram.Write(1, 0x28) // PLP
	c.P = flags.Flags{N: true, C: true, Z: true}
	before := c.P
	require(t, c.Step())
	c.P = flags.New()
	require(t, c.Step())
	if diff := deep.Equal(before, c.P); diff != nil {
		t.Errorf("status register not restored by PLP: %v", diff)
	}
}

func TestStackIsLIFO(t *testing.T) {
	c, _ := newChip()
	c.push(1)
	c.push(2)
	c.push(3)
	assert.Equal(t, uint8(3), c.peek())
	assert.Equal(t, uint8(3), c.pop())
	assert.Equal(t, uint8(2), c.pop())
	assert.Equal(t, uint8(1), c.pop())
}

func TestIllegalOpcodeHalts(t *testing.T) {
	c, ram := newChip()
	ram.Write(0, 0x02) // documented-illegal
	err := c.Step()
	assert.Error(t, err)
	var ill IllegalOpcode
	assert.ErrorAs(t, err, &ill)
	assert.Equal(t, uint8(0x02), ill.Opcode)
	assert.Equal(t, uint16(0), ill.PC)

	// Once halted, Step keeps returning the same error.
	err2 := c.Step()
	assert.Equal(t, err, err2)
}

func TestSnapshotRestore(t *testing.T) {
	c, _ := newChip()
	c.A, c.X, c.Y, c.PC = 1, 2, 3, 0x1234
	s := c.Snapshot()
	c.A = 0xFF
	c.RestoreSnapshot(s)
	assert.Equal(t, uint8(1), c.A)
	assert.Equal(t, uint16(0x1234), c.PC)
}

func TestCyclesTracksTakenBranchPageCross(t *testing.T) {
	c, ram := newChip()
	c.PC = 0x00F0
	ram.Write(0x00F0, 0xF0) // BEQ
	ram.Write(0x00F1, 0x20) // +32, crosses to 0x0112
	c.P.Z = true
	require(t, c.Step())
	base, _ := decoder.Decode(0xF0)
	assert.Equal(t, base.Cycles+2, c.Cycles())
}

func require(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
