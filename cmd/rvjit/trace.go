package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rvjit/config"
	"github.com/sarchlab/rvjit/emu"
	"github.com/sarchlab/rvjit/jit"
	"github.com/sarchlab/rvjit/loader"
)

func newTraceCommand(g *globals) *cobra.Command {
	var (
		from  string
		count int
		code  bool
	)

	cmd := &cobra.Command{
		Use:     "trace <program.elf>",
		Short:   "Print the traces built from a program without running it.",
		Example: "rvjit trace --pc 0x10078 --count 4 --code program.elf",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			prog, err := loader.Load(args[0])
			if err != nil {
				return fmt.Errorf("loading program: %w", err)
			}

			entry := prog.EntryPoint
			if from != "" {
				entry, err = strconv.ParseUint(from, 0, 64)
				if err != nil {
					return fmt.Errorf("bad --pc %q: %w", from, err)
				}
			}
			return printTraces(g, cfg, prog, entry, count, code)
		},
	}

	cmd.Flags().StringVar(&from, "pc", "", "address to start tracing at (default: entry point)")
	cmd.Flags().IntVar(&count, "count", 1, "number of traces to print, following static successors")
	cmd.Flags().BoolVar(&code, "code", false, "also print the lowered x86-64 bytes")
	return cmd
}

// printTraces walks static successors breadth first from entry.
func printTraces(g *globals, cfg *config.Config, prog *loader.Program, entry uint64, count int, code bool) error {
	ext, err := cfg.ISA()
	if err != nil {
		return err
	}
	e := emu.NewEmulator(emu.WithExtensions(ext | prog.Extensions()))
	prog.Install(e)

	tracer := jit.NewTracer(e, e.Decoder(),
		jit.WithMaxTraceLength(cfg.MaxTraceLength),
		jit.WithFusionWindow(cfg.FusionWindow),
		jit.WithFusion(cfg.Fusion),
		jit.WithTracerLogger(g.logger()),
	)
	emitter := jit.NewEmitter()

	seen := map[uint64]bool{entry: true}
	queue := []uint64{entry}
	for n := 0; n < count && len(queue) > 0; n++ {
		pc := queue[0]
		queue = queue[1:]

		t, err := tracer.Trace(pc)
		if err != nil {
			return err
		}
		fmt.Fprint(g.stdout, t)

		if code && t.Term.Kind != jit.TermInterpret {
			a, err := emitter.Lower(t)
			if err != nil {
				return err
			}
			fmt.Fprintf(g.stdout, "  code: % x\n", a.Bytes(".text"))
		}

		for _, next := range t.Term.Targets() {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return nil
}
