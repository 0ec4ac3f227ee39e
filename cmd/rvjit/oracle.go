package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rvjit/oracle"
)

func newOracleCommand(g *globals) *cobra.Command {
	var only []string

	cmd := &cobra.Command{
		Use:     "oracle",
		Short:   "Compare compiled traces against the interpreter on the built-in programs.",
		Example: "rvjit oracle --only slli_1,load_imm_1",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}

			programs := oracle.Scenarios()
			if len(only) > 0 {
				programs = selectPrograms(programs, only)
				if len(programs) == 0 {
					return fmt.Errorf("no programs named %s", strings.Join(only, ", "))
				}
			}

			h := oracle.New(oracle.WithConfig(cfg), oracle.WithLogger(g.logger()))
			reports, err := h.CheckAll(programs)
			for _, r := range reports {
				fmt.Fprintln(g.stdout, r)
			}
			if err != nil {
				return err
			}

			failed := 0
			for _, r := range reports {
				if !r.Passed() {
					failed++
				}
			}
			fmt.Fprintf(g.stdout, "%d/%d passed\n", len(reports)-failed, len(reports))
			if failed > 0 {
				return exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&only, "only", nil, "check only the named programs")
	return cmd
}

func selectPrograms(programs []oracle.Program, names []string) []oracle.Program {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []oracle.Program
	for _, p := range programs {
		if want[p.Name] {
			out = append(out, p)
		}
	}
	return out
}
