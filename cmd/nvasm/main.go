// Command nvasm assembles Nova32 source into NV32 program images.
//
// Usage:
//
//	nvasm [options] program.asm
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/novasim/nova32/asm"
	"github.com/novasim/nova32/loader"
)

var (
	output = flag.String("o", "",
		"output image path, defaults to the input with a .nv32 extension")
	list = flag.Bool("list", false,
		"print the section layout of the assembled image")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] program.asm\n",
			os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	prog, err := asm.Assemble(string(source))
	if err != nil {
		return fmt.Errorf("assembling %s: %w", path, err)
	}

	if *list {
		for _, sec := range prog.Sections {
			kind := "progbits"
			if sec.Kind == loader.KindBss {
				kind = "bss"
			}
			fmt.Printf("%-8s base 0x%08X  %d words\n",
				kind, sec.Base, sec.SizeWords())
		}
	}

	out := *output
	if out == "" {
		out = strings.TrimSuffix(path, ".asm") + ".nv32"
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := loader.Write(f, prog); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	return nil
}
