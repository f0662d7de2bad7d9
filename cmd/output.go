package cmd

import (
	"io"
	"os"

	"github.com/cottand/bamlc/constraints"
	"github.com/cottand/bamlc/ir"
	"github.com/cottand/bamlc/jsonish"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

type conditionOutput struct {
	Path string `json:"path"`
	Flag string `json:"flag"`
}

type parseOutput struct {
	Type       string            `json:"type"`
	Value      any               `json:"value"`
	Score      int               `json:"score"`
	Conditions []conditionOutput `json:"conditions,omitempty"`
}

func newParseOutput(result *jsonish.ValueWithFlags) parseOutput {
	out := parseOutput{
		Type:  result.Type.String(),
		Value: ir.ToAny(result.Value),
		Score: result.Score(),
	}
	for _, c := range result.Conditions() {
		out.Conditions = append(out.Conditions, conditionOutput{Path: c.Path, Flag: c.Flag.String()})
	}
	return out
}

type testOutput struct {
	Function     string                    `json:"function"`
	Test         string                    `json:"test"`
	Passed       bool                      `json:"passed"`
	Checks       []constraints.CheckResult `json:"checks,omitempty"`
	FailedAssert *string                   `json:"failed_assert,omitempty"`
	Error        string                    `json:"error,omitempty"`
	Output       parseOutput               `json:"output"`
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode output")
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// readInput reads the model output from path, or from stdin when path is empty or -
func readInput(path string, stdin io.Reader) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", errors.Wrap(err, "read stdin")
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "read %s", path)
	}
	return string(data), nil
}
