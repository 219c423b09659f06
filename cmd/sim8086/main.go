// Command sim8086 decodes and emulates a subset of 8086 machine code.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/retroenv/sim8086/buildinfo"
	"github.com/retroenv/sim8086/cli"
	"github.com/retroenv/sim8086/log"
	"github.com/retroenv/sim8086/x86"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	logger := log.New()

	cmd := cli.NewCommand("sim8086", "8086 instruction decoder and functional emulator")
	cmd.SetVersion(buildinfo.Version(version, commit, date))
	cmd.AddSubcommand("decode", "print the NASM-style disassembly of a binary", func(args []string) int {
		return runDecode(logger, args)
	})
	cmd.AddSubcommand("emulate", "execute a binary and print a register/flag trace", func(args []string) int {
		return runEmulate(logger, args)
	})
	return cmd.Execute(args)
}

type decodeFlags struct {
	Path string `arg:"positional" required:"true" usage:"path to the 8086 binary to decode"`
}

func runDecode(logger *log.Logger, args []string) int {
	var flags decodeFlags
	fs := cli.NewFlagSet("sim8086 decode")
	fs.AddPositional(&flags)
	if _, err := fs.Parse(args); err != nil {
		fs.ShowUsage()
		return 2
	}

	data, err := os.ReadFile(flags.Path)
	if err != nil {
		logger.Error("reading input file", "path", flags.Path, "error", err)
		return 1
	}

	program := x86.Decode(data)
	fmt.Print(program.String())
	var truncErr *x86.TruncatedError
	for _, row := range program.Rows {
		if errors.As(row.Err, &truncErr) {
			logger.Error("decoding input file", "path", flags.Path, "error", truncErr)
			return 1
		}
	}
	return 0
}

type emulateFlags struct {
	Path           string `arg:"positional" required:"true" usage:"path to the 8086 binary to emulate"`
	Quiet          bool   `flag:"quite" usage:"suppress the per-instruction trace"`
	PrintIP        bool   `flag:"print-ip" usage:"include the instruction pointer in each trace line"`
	PrintEstimates bool   `flag:"print-estimates" usage:"include clock-cycle estimates in each trace line"`
	DumpMemoryPath string `flag:"dump-memory" usage:"write the final 1 MiB memory image to this path"`
	CompatCarry    bool   `flag:"compat-carry" usage:"reproduce the legacy approximate carry-flag heuristic"`
}

func runEmulate(logger *log.Logger, args []string) int {
	var flags emulateFlags
	fs := cli.NewFlagSet("sim8086 emulate")
	fs.AddSection("emulate", &flags)
	fs.AddPositional(&flags)
	if _, err := fs.Parse(args); err != nil {
		fs.ShowUsage()
		return 2
	}

	data, err := os.ReadFile(flags.Path)
	if err != nil {
		logger.Error("reading input file", "path", flags.Path, "error", err)
		return 1
	}

	program := x86.Decode(data)
	var truncErr *x86.TruncatedError
	for _, row := range program.Rows {
		if errors.As(row.Err, &truncErr) {
			logger.Error("decoding input file", "path", flags.Path, "error", truncErr)
			return 1
		}
	}
	emulator, err := x86.NewEmulator(program, x86.WithCompatCarry(flags.CompatCarry))
	if err != nil {
		logger.Error("constructing emulator", "error", err)
		return 1
	}

	tracer := x86.NewTracer(emulator, x86.TracerOptions{
		PrintIP:        flags.PrintIP,
		PrintEstimates: flags.PrintEstimates,
		PrintTrace:     !flags.Quiet,
		DumpPath:       flags.DumpMemoryPath,
	})
	if _, err := tracer.Run(os.Stdout); err != nil {
		logger.Error("running emulation", "error", err)
		return 1
	}
	return 0
}
