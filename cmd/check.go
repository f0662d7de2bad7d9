package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var CheckCmd = &cobra.Command{
	Use:          "check [./folder|schema.yaml]",
	Short:        "Compile a schema and report its errors",
	RunE:         runCheck,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
}

func runCheck(cmd *cobra.Command, args []string) error {
	config, err := setup(cmd)
	if err != nil {
		return err
	}
	target, err := schemaArg(args, config)
	if err != nil {
		return err
	}
	project, err := loadProject(target, config)
	if err != nil {
		return err
	}
	if err := compiled(project); err != nil {
		return err
	}

	repr := project.IR
	tests := 0
	for _, fn := range repr.Functions {
		tests += len(fn.Elem.Tests)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(),
		"ok: %d classes, %d enums, %d functions, %d tests, %d recursive class cycles, %d recursive alias cycles\n",
		len(repr.Classes), len(repr.Enums), len(repr.Functions), tests,
		len(repr.FiniteRecursiveCycles), len(repr.StructuralRecursiveAliasCycles))
	return err
}
