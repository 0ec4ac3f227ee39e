package main

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"

	"github.com/sarchlab/rvjit/config"
	"github.com/sarchlab/rvjit/emu"
	"github.com/sarchlab/rvjit/jit"
	"github.com/sarchlab/rvjit/loader"
)

// exitError carries a guest exit status out of a command.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func newRunCommand(g *globals) *cobra.Command {
	var (
		hot     uint64
		limit   uint64
		stats   bool
		metrics bool
	)

	cmd := &cobra.Command{
		Use:     "run <program.elf>",
		Short:   "Run a program, compiling hot traces.",
		Example: "rvjit run --hot 16 --stats program.elf",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("hot") {
				cfg.HotThreshold = hot
			}
			if cmd.Flags().Changed("max-instructions") {
				cfg.MaxInstructions = limit
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runProgram(g, cfg, args[0], stats, metrics)
		},
	}

	cmd.Flags().Uint64Var(&hot, "hot", 0, "compile a trace after this many visits (0 interprets only)")
	cmd.Flags().Uint64Var(&limit, "max-instructions", 0, "stop after this many instructions (0 means no limit)")
	cmd.Flags().BoolVar(&stats, "stats", false, "print run-loop statistics to stderr")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "print the exported metrics to stderr")
	return cmd
}

func runProgram(g *globals, cfg *config.Config, path string, stats, metrics bool) error {
	prog, err := loader.Load(path)
	if err != nil {
		return fmt.Errorf("loading program: %w", err)
	}
	ext, err := cfg.ISA()
	if err != nil {
		return err
	}

	log := g.logger()
	log.Info("loaded", "path", path, "entry", fmt.Sprintf("%#x", prog.EntryPoint), "segments", len(prog.Segments))

	e := emu.NewEmulator(
		emu.WithStdout(g.stdout),
		emu.WithStderr(g.stderr),
		emu.WithExtensions(ext|prog.Extensions()),
		emu.WithLogger(log.V(2)),
	)
	prog.Install(e)

	loop := jit.NewRunLoop(e, jit.WithConfig(cfg), jit.WithLogger(log))
	defer loop.Close()

	result := loop.Run()

	if stats {
		fmt.Fprintf(g.stderr, "instructions=%d %s\n", e.InstructionCount(), loop.Stats())
	}
	if metrics {
		if err := writeMetrics(g.stderr, jit.NewCollector(loop)); err != nil {
			return err
		}
	}

	switch {
	case result.Exited:
		if result.ExitCode != 0 {
			return exitError{code: int(result.ExitCode)}
		}
		return nil
	case errors.Is(result.Err, emu.ErrMaxInstructions):
		log.Info("instruction limit reached", "pc", fmt.Sprintf("%#x", e.State().PC))
		return nil
	case result.Err != nil:
		return result.Err
	}
	return fmt.Errorf("stopped by %s at pc=%#x", result.Trap, e.State().PC)
}

// writeMetrics gathers c through a private registry and writes one
// "name value" line per sample.
func writeMetrics(w io.Writer, c prometheus.Collector) error {
	registry := prometheus.NewRegistry()
	if err := registry.Register(c); err != nil {
		return err
	}
	families, err := registry.Gather()
	if err != nil {
		return err
	}

	sort.Slice(families, func(i, j int) bool {
		return families[i].GetName() < families[j].GetName()
	})
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fmt.Fprintf(w, "%s %g\n", mf.GetName(), sampleValue(mf.GetType(), m))
		}
	}
	return nil
}

func sampleValue(t dto.MetricType, m *dto.Metric) float64 {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	}
	return m.GetUntyped().GetValue()
}
