package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var TypesCmd = &cobra.Command{
	Use:          "types [./folder|schema.yaml]",
	Short:        "List the types a schema declares",
	RunE:         runTypes,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
}

func runTypes(cmd *cobra.Command, args []string) error {
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
	types, err := project.DisplayTypes()
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), types)
	return err
}
