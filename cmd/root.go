package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "timeline-engine",
	Short: "Framefold timeline engine",
	Long:  `Local editing engine for Framefold projects: segment placement, splitting, undo/redo, and debounced persistence to the project store.`,
	Run: func(cmd *cobra.Command, args []string) {
		// bare invocation behaves like `serve`
		runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
