// Package main provides the rvjit command line.
//
// rvjit runs RV64 programs on the interpreter with hot regions compiled to
// native code, prints the traces it would build and runs the
// interpreter-versus-compiled check programs.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/spf13/cobra"

	"github.com/sarchlab/rvjit/config"
)

func main() {
	err := newRootCommand(os.Stdout, os.Stderr).Execute()
	if err == nil {
		return
	}

	var exit exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// globals holds the flags shared by every subcommand.
type globals struct {
	configPath string
	verbosity  int
	stdout     io.Writer
	stderr     io.Writer
}

func (g *globals) config() (*config.Config, error) {
	return config.Load(g.configPath)
}

// logger writes to stderr at the requested verbosity.
func (g *globals) logger() logr.Logger {
	if g.verbosity <= 0 {
		return logr.Discard()
	}
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(g.stderr, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(g.stderr, args)
	}, funcr.Options{Verbosity: g.verbosity - 1})
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	g := &globals{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "rvjit <command> [arguments]",
		Short:         "rvjit runs RV64 programs with a trace-fusing compiler.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example:       "rvjit run --hot 16 --stats program.elf",
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "",
		"configuration file (JSON, YAML or TOML); RVJIT_* variables override it")
	root.PersistentFlags().CountVarP(&g.verbosity, "verbose", "v",
		"log to stderr; repeat for more detail")

	root.AddCommand(newRunCommand(g))
	root.AddCommand(newTraceCommand(g))
	root.AddCommand(newOracleCommand(g))
	return root
}
