package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/finsec-lab/apiaudit/internal/auditor"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List the registered security plugins in execution order",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := auditor.DefaultRegistry()

		color.Cyan("Registered plugins (%d), in execution order:\n\n", reg.Len())
		for i, p := range reg.All() {
			color.Yellow("%d. %s - %s\n", i+1, p.ID(), p.Title())
			fmt.Printf("   %s\n", p.Description())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pluginsCmd)
}
