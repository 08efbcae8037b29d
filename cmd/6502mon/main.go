// 6502mon is a terminal stepping monitor: it loads an image, then lets
// the user single-step the core while watching registers, flags, the
// disassembly around PC, and a page of RAM.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mchacon6502/core6502/cpu"
	"github.com/mchacon6502/core6502/disassembler"
	"github.com/mchacon6502/core6502/memory"
)

var (
	offset  = flag.Int("offset", 0x0000, "offset into the 64K address space to load the image at")
	startPC = flag.Int("start_pc", -1, "PC to start execution at; defaults to the reset vector")
)

type model struct {
	chip   *cpu.Chip
	ram    *memory.RAM
	undo   []cpu.Snapshot
	lastPC uint16
	err    error
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ":
		m.undo = append(m.undo, m.chip.Snapshot())
		m.lastPC = m.chip.PC
		if err := m.chip.Step(); err != nil {
			m.err = err
		}
	case "r":
		m.chip.Reset()
		m.undo = nil
		m.err = nil
	case "u":
		if n := len(m.undo); n > 0 {
			m.chip.RestoreSnapshot(m.undo[n-1])
			m.undo = m.undo[:n-1]
			m.err = nil
		}
	}
	return m, nil
}

func (m model) registers() string {
	c := m.chip
	flagBits := []bool{c.P.N, c.P.V, c.P.B2, c.P.B1, c.P.D, c.P.I, c.P.Z, c.P.C}
	var flags strings.Builder
	for _, set := range flagBits {
		if set {
			flags.WriteString("1 ")
		} else {
			flags.WriteString("0 ")
		}
	}
	status := "running"
	if m.err != nil {
		status = fmt.Sprintf("halted: %v", m.err)
	}
	return fmt.Sprintf(
		"PC: %.4X (was %.4X)\n A: %.2X\n X: %.2X\n Y: %.2X\n S: %.2X\ncycles: %d\nN V B2 B1 D I Z C\n%s\n%s",
		c.PC, m.lastPC, c.A, c.X, c.Y, c.S, c.Cycles(), flags.String(), status,
	)
}

func (m model) disassembly() string {
	lines := disassembler.Listing(m.chip.PC, m.ram, 12)
	var b strings.Builder
	for _, l := range lines {
		prefix := "  "
		if l.Addr == m.chip.PC {
			prefix = "> "
		}
		fmt.Fprintf(&b, "%s%.4X  %s\n", prefix, l.Addr, l.Text)
	}
	return b.String()
}

func (m model) zeroPage() string {
	var b strings.Builder
	b.WriteString("zero page\n")
	for row := 0; row < 16; row++ {
		fmt.Fprintf(&b, "%.2X0 | ", row)
		for col := 0; col < 16; col++ {
			fmt.Fprintf(&b, "%.2X ", m.ram.Read(uint16(row<<4|col)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) View() string {
	help := "space: step   r: reset   u: undo   q: quit"
	return lipgloss.JoinVertical(
		lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, m.registers(), "    ", m.disassembly()),
		"",
		m.zeroPage(),
		"",
		help,
	)
}

func main() {
	flag.Parse()
	if len(flag.Args()) != 1 {
		log.Fatalf("usage: %s [flags] <image>", os.Args[0])
	}
	b, err := os.ReadFile(flag.Args()[0])
	if err != nil {
		log.Fatalf("can't read image: %v", err)
	}
	if *offset+len(b) > 1<<16 {
		log.Fatalf("image of %d bytes at offset 0x%.4X doesn't fit in 64K", len(b), *offset)
	}

	ram := memory.New(nil)
	ram.PowerOn()
	ram.Load(uint16(*offset), b)

	chip := cpu.New(ram)
	if *startPC >= 0 {
		chip.PC = uint16(*startPC)
	} else {
		chip.Reset()
	}

	if _, err := tea.NewProgram(model{chip: chip, ram: ram}).Run(); err != nil {
		log.Fatal(err)
	}
}
