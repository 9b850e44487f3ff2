package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var debugFlag bool

	app := newAppContext(&configFlag, &debugFlag)

	rootCmd := &cobra.Command{
		Use:           "regretgpt",
		Short:         "RegretGPT regret classification backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), app)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "config.yaml", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable development logging")

	rootCmd.AddCommand(newServeCommand(app))
	rootCmd.AddCommand(newClassifyCommand(app))

	return rootCmd
}
