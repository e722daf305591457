// Command nova32 runs NV32 program images on the emulated machine.
//
// Usage:
//
//	nova32 [options] program.nv32
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/novasim/nova32/bus"
	"github.com/novasim/nova32/devices"
	"github.com/novasim/nova32/emu"
	"github.com/novasim/nova32/loader"
)

var (
	verbose = flag.Bool("v", false,
		"print loader progress and the final machine state")
	trace = flag.Bool("trace", false,
		"print each instruction as it executes")
	maxInsts = flag.Uint64("max", 0,
		"stop after this many instructions, 0 for no limit")
	mapFile = flag.String("map", "",
		"load the address map from a JSON file")
	console = flag.Bool("console", false,
		"connect the serial port to the terminal in raw mode")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] program.nv32\n",
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
	m := bus.DefaultAddressMap()
	if *mapFile != "" {
		loaded, err := bus.LoadAddressMap(*mapFile)
		if err != nil {
			return fmt.Errorf("loading address map: %w", err)
		}
		m = loaded
	}

	var backend devices.UartBackend
	if *console {
		term, err := newConsole()
		if err != nil {
			return fmt.Errorf("opening console: %w", err)
		}
		defer term.Close()
		backend = term
	} else {
		backend = devices.WriterBackend(os.Stdout)
	}

	b, err := bus.NewWithBackend(m, backend)
	if err != nil {
		return err
	}

	prog, err := loader.Load(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	logw := io.Discard
	if *verbose {
		logw = os.Stdout
	}
	if err := prog.Install(b, logw); err != nil {
		return err
	}

	opts := []emu.Option{emu.WithMaxInstructions(*maxInsts)}
	if *trace {
		opts = append(opts, emu.WithTrace(os.Stderr))
	}
	e := emu.New(b, opts...)

	if err := e.Run(); err != nil {
		return err
	}

	fmt.Println("CPU halted.")
	if *verbose {
		e.DumpState(os.Stdout)
	}
	return nil
}
