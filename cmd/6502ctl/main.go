// 6502ctl is a subcommand-based front end for loading and running raw
// 6502 binary images, built on the same core as 6502run but grouped into
// load/run/disasm verbs.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/mchacon6502/core6502/cpu"
	"github.com/mchacon6502/core6502/disassembler"
	"github.com/mchacon6502/core6502/memory"
	"gopkg.in/urfave/cli.v2"
)

func loadImage(path string, offset uint16) (*memory.RAM, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if int(offset)+len(b) > 1<<16 {
		return nil, fmt.Errorf("image of %d bytes at offset 0x%.4X doesn't fit in 64K", len(b), offset)
	}
	ram := memory.New(nil)
	ram.PowerOn()
	ram.Load(offset, b)
	return ram, nil
}

func main() {
	app := &cli.App{
		Name:  "6502ctl",
		Usage: "load, run, and disassemble 6502 binary images",
		Commands: []*cli.Command{
			{
				Name:  "load",
				Usage: "validate an image and print its reset vector entry point",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "offset", Value: 0, Usage: "load offset into the 64K address space"},
				},
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return cli.Exit("usage: 6502ctl load [--offset N] <image>", 1)
					}
					ram, err := loadImage(c.Args().First(), uint16(c.Int("offset")))
					if err != nil {
						return cli.Exit(err, 1)
					}
					lo := ram.Read(cpu.ResetVector)
					hi := ram.Read(cpu.ResetVector + 1)
					fmt.Printf("reset vector: 0x%.4X\n", uint16(hi)<<8|uint16(lo))
					return nil
				},
			},
			{
				Name:  "run",
				Usage: "load an image and execute it until it halts",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "offset", Value: 0, Usage: "load offset into the 64K address space"},
					&cli.IntFlag{Name: "start_pc", Value: -1, Usage: "PC to start at; defaults to the reset vector"},
					&cli.IntFlag{Name: "steps", Value: 1000000, Usage: "maximum instructions to execute"},
				},
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return cli.Exit("usage: 6502ctl run [flags] <image>", 1)
					}
					ram, err := loadImage(c.Args().First(), uint16(c.Int("offset")))
					if err != nil {
						return cli.Exit(err, 1)
					}
					chip := cpu.New(ram)
					if pc := c.Int("start_pc"); pc >= 0 {
						chip.PC = uint16(pc)
					} else {
						chip.Reset()
					}
					steps := c.Int("steps")
					for i := 0; i < steps; i++ {
						if err := chip.Step(); err != nil {
							return cli.Exit(fmt.Sprintf("halted after %d instructions: %v", i, err), 1)
						}
					}
					fmt.Printf("ran %d instructions, PC=0x%.4X\n", steps, chip.PC)
					return nil
				},
			},
			{
				Name:  "disasm",
				Usage: "disassemble an image starting at a given PC",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "offset", Value: 0, Usage: "load offset into the 64K address space"},
					&cli.IntFlag{Name: "start_pc", Value: 0, Usage: "PC to start disassembling at"},
					&cli.IntFlag{Name: "count", Value: 32, Usage: "number of instructions to list"},
				},
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return cli.Exit("usage: 6502ctl disasm [flags] <image>", 1)
					}
					ram, err := loadImage(c.Args().First(), uint16(c.Int("offset")))
					if err != nil {
						return cli.Exit(err, 1)
					}
					for _, line := range disassembler.Listing(uint16(c.Int("start_pc")), ram, c.Int("count")) {
						fmt.Printf("%.4X %s\n", line.Addr, line.Text)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
