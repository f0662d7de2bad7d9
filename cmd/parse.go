package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var ParseCmd = &cobra.Command{
	Use:   "parse [./folder|schema.yaml] --type T",
	Short: "Coerce model output into a type of the schema",
	Long: "Coerce model output into a type of the schema.\n" +
		"The output is read from --file, or stdin, and printed as JSON together with\n" +
		"the repairs that were needed and their score.",
	RunE:         runParse,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
}

var (
	parseType     *string
	parseFile     *string
	parseMaxScore *int
)

func init() {
	parseType = ParseCmd.Flags().StringP("type", "t", "", "type expression to coerce into, like Resume[]")
	parseFile = ParseCmd.Flags().StringP("file", "f", "", "file with the model output, stdin when empty")
	parseMaxScore = ParseCmd.Flags().Int("max-score", 0, "fail when the score is higher than this, 0 accepts anything")
	_ = ParseCmd.MarkFlagRequired("type")
}

func runParse(cmd *cobra.Command, args []string) error {
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

	raw, err := readInput(*parseFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	result, err := project.Parse(*parseType, raw)
	if err != nil {
		return err
	}
	out := newParseOutput(result)
	if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}

	maxScore := config.MaxScore
	if cmd.Flags().Changed("max-score") {
		maxScore = *parseMaxScore
	}
	if maxScore > 0 && out.Score > maxScore {
		return errors.Errorf("score %d exceeds the maximum of %d", out.Score, maxScore)
	}
	return nil
}
