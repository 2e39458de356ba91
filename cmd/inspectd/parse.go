package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vbonduro/inspectflow/internal/domain"
	"github.com/vbonduro/inspectflow/internal/voice"
)

type parseOutput struct {
	domain.Finding
	Warnings []string `json:"warnings"`
}

func parseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [note...]",
		Short: "Parse an inspection note and print the finding as JSON",
		Long: `Parse an inspection note with the heuristic parser. The note is taken from
the arguments, or from stdin when none are given.

Example:
  inspectd parse "front brakes at 5 millimeters, needs replacement"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				text = string(b)
			}

			f, err := voice.Parse(text)
			if err != nil {
				return err
			}
			out := parseOutput{Finding: f, Warnings: voice.Warnings(f, text)}
			if out.Warnings == nil {
				out.Warnings = []string{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
