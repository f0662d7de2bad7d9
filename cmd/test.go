package cmd

import (
	"time"

	"github.com/cottand/bamlc/constraints"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var TestCmd = &cobra.Command{
	Use:   "test [./folder|schema.yaml] --function F --test T",
	Short: "Check the output of a function against the constraints of a test case",
	Long: "Check the output of a function against the constraints of a test case.\n" +
		"The output is read from --file, or stdin, coerced into the function's return type,\n" +
		"and then the test's @@assert and @@check attributes are evaluated against it.",
	RunE:         runTest,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
}

var (
	testFunction *string
	testName     *string
	testFile     *string
	testLatency  *time.Duration
)

func init() {
	testFunction = TestCmd.Flags().String("function", "", "function under test")
	testName = TestCmd.Flags().String("test", "", "test case to run")
	testFile = TestCmd.Flags().StringP("file", "f", "", "file with the function's output, stdin when empty")
	testLatency = TestCmd.Flags().Duration("latency", 0, "latency of the call, available as _.latency_ms")
	_ = TestCmd.MarkFlagRequired("function")
	_ = TestCmd.MarkFlagRequired("test")
}

func runTest(cmd *cobra.Command, args []string) error {
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

	raw, err := readInput(*testFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	run, err := project.RunTest(*testFunction, *testName, raw, *testLatency)
	if err != nil {
		return err
	}

	out := testOutput{Function: run.Function, Test: run.Test, Output: newParseOutput(run.Output)}
	switch result := run.Result.(type) {
	case constraints.Completed:
		out.Passed = result.Passed()
		out.Checks = result.Checks
		out.FailedAssert = result.FailedAssert
	case constraints.InternalError:
		out.Error = result.Details
	}
	if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if !out.Passed {
		return errors.Errorf("test %s of %s did not pass", run.Test, run.Function)
	}
	return nil
}
