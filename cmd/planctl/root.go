package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/garyjia/discharge-planner/internal/domain/entity"
	"github.com/garyjia/discharge-planner/internal/domain/process"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "planctl",
		Short:         "planctl works with discharge process definitions",
		Long:          `planctl validates process definition YAML files and exports them as Mermaid graphs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newValidateCmd(), newGraphCmd(), newFmtCmd())
	return root
}

// loadDefinition reads a definition from path, or stdin when path is "-"
func loadDefinition(cmd *cobra.Command, path string) (*entity.ProcessDefinition, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open definition: %w", err)
		}
		defer f.Close()
		r = f
	}
	return process.DecodeYAML(r)
}
