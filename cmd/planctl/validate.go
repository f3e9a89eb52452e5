package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/discharge-planner/internal/domain/process"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a definition for structural problems",
		Long:  `Reports every missing start node, unknown end node and dangling edge in the definition.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadDefinition(cmd, args[0])
			if err != nil {
				return err
			}

			violations := process.Validate(def)
			out := cmd.OutOrStdout()
			if len(violations) == 0 {
				fmt.Fprintf(out, "%s is valid\n", def.ID)
				return nil
			}
			for _, v := range violations {
				fmt.Fprintf(out, "%s: %s\n", v.Code, v.Message)
			}
			return fmt.Errorf("%s has %d violation(s)", def.ID, len(violations))
		},
	}
}
