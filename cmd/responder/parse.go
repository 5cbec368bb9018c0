package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/responder/pkg/agent"
	"github.com/codeready-toolchain/responder/pkg/models"
)

type parseOutput struct {
	Diagnosis *models.DiagnosisResult `json:"diagnosis"`
	Remediate bool                    `json:"remediate"`
	Reason    string                  `json:"reason"`
}

func newParseCmd() *cobra.Command {
	var (
		minConfidence float64
		includeRaw    bool
	)
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse an agent transcript and print the diagnosis as JSON",
		Long:  "Reads agent output from a file (or - for stdin), runs the diagnosis parser and the remediation gate, and prints the result.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			d := agent.ParseDiagnosis(string(raw))
			decision := agent.NewGate(minConfidence).Evaluate(d)
			if !includeRaw {
				d.RawOutput = ""
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(parseOutput{Diagnosis: d, Remediate: decision.Remediate, Reason: decision.Reason})
		},
	}
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", agent.DefaultMinConfidence, "Remediation confidence threshold")
	cmd.Flags().BoolVar(&includeRaw, "raw", false, "Include the raw transcript in the output")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	return data, nil
}
