package main

import (
	"github.com/spf13/cobra"

	"github.com/garyjia/discharge-planner/internal/domain/process"
)

func newFmtCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fmt <file>",
		Short: "Rewrite a definition in canonical YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadDefinition(cmd, args[0])
			if err != nil {
				return err
			}
			return process.EncodeYAML(cmd.OutOrStdout(), def)
		},
	}
}
