// 6502run loads a raw binary image into a flat address space and steps
// the core until it halts or a fixed instruction budget runs out.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/mchacon6502/core6502/cpu"
	"github.com/mchacon6502/core6502/memory"
)

var (
	offset  = flag.Int("offset", 0x0000, "offset into the 64K address space to load the image at")
	startPC = flag.Int("start_pc", -1, "PC to start execution at; defaults to the reset vector")
	steps   = flag.Int("steps", 1000000, "maximum number of instructions to execute before giving up")
	debug   = flag.Bool("debug", false, "print a full register/flag dump after every instruction")
)

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

	c := cpu.New(ram)
	if *startPC >= 0 {
		c.PC = uint16(*startPC)
	} else {
		c.Reset()
	}

	for i := 0; i < *steps; i++ {
		if err := c.Step(); err != nil {
			fmt.Fprintf(os.Stderr, "halted after %d instructions: %v\n", i, err)
			if *debug {
				fmt.Fprintln(os.Stderr, spew.Sdump(c))
			}
			os.Exit(1)
		}
		if *debug {
			fmt.Fprintf(os.Stderr, "PC=%.4X A=%.2X X=%.2X Y=%.2X S=%.2X P=%.2X cycles=%d\n",
				c.PC, c.A, c.X, c.Y, c.S, c.P.ToByte(), c.Cycles())
		}
	}
	fmt.Printf("ran %d instructions, PC=0x%.4X\n", *steps, c.PC)
}
