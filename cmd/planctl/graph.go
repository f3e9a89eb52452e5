package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/discharge-planner/internal/domain/process"
)

func newGraphCmd() *cobra.Command {
	var current string
	var visited []string

	cmd := &cobra.Command{
		Use:   "graph <file>",
		Short: "Export the definition as a Mermaid diagram",
		Long:  `Outputs a Mermaid flowchart (graph TD). --current and --visited highlight a subject's position.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadDefinition(cmd, args[0])
			if err != nil {
				return err
			}

			var overlay *process.GraphOverlay
			if current != "" || len(visited) > 0 {
				overlay = &process.GraphOverlay{CurrentNode: current, VisitedNodes: visited}
			}
			fmt.Fprint(cmd.OutOrStdout(), process.GenerateMermaid(def, overlay))
			return nil
		},
	}
	cmd.Flags().StringVar(&current, "current", "", "node to mark as current")
	cmd.Flags().StringSliceVar(&visited, "visited", nil, "nodes to mark as visited")
	return cmd
}
